package ocr_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/wudi/scankit/ocr"
)

func TestKindClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ocr.ErrorKind
	}{
		{"nil", nil, ""},
		{"timeout", &ocr.TimeoutError{Timeout: time.Second}, ocr.KindTimeout},
		{"transport status", &ocr.TransportError{Status: 503}, ocr.KindTransport},
		{"transport err", &ocr.TransportError{Err: errors.New("conn refused")}, ocr.KindTransport},
		{"validation", &ocr.ValidationError{Reason: "empty image"}, ocr.KindValidation},
		{"unknown", errors.New("something else"), ocr.KindUnknown},
		{"wrapped timeout", fmt.Errorf("task: %w", &ocr.TimeoutError{Timeout: time.Second}), ocr.KindTimeout},
		{"wrapped transport", fmt.Errorf("task: %w", &ocr.TransportError{Status: 400}), ocr.KindTransport},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ocr.Kind(c.err); got != c.want {
				t.Errorf("Kind(%v) = %q, want %q", c.err, got, c.want)
			}
		})
	}
}

func TestTimeoutWinsOverTransportWrapping(t *testing.T) {
	// A timeout wrapped inside a transport error still classifies as timeout.
	err := &ocr.TransportError{Err: &ocr.TimeoutError{Timeout: time.Second}}
	if got := ocr.Kind(err); got != ocr.KindTimeout {
		t.Errorf("Kind = %q, want %q", got, ocr.KindTimeout)
	}
}

func TestErrorMessages(t *testing.T) {
	te := &ocr.TransportError{Status: 503}
	if te.Error() != "ocr: recognition request failed with status 503" {
		t.Errorf("Unexpected message: %s", te.Error())
	}

	inner := errors.New("dial tcp: refused")
	te2 := &ocr.TransportError{Err: inner}
	if !errors.Is(te2, inner) {
		t.Errorf("Expected TransportError to unwrap to its cause")
	}

	to := &ocr.TimeoutError{Timeout: 5 * time.Second}
	if to.Error() != "ocr: recognition timed out after 5s" {
		t.Errorf("Unexpected message: %s", to.Error())
	}
}

func TestInputReport(t *testing.T) {
	var got []string
	in := ocr.Input{Progress: func(s string) { got = append(got, s) }}
	in.Report("queued")
	in.Report("done")
	if len(got) != 2 || got[0] != "queued" || got[1] != "done" {
		t.Errorf("Expected progress deliveries, got %v", got)
	}

	// No progress sink is fine.
	ocr.Input{}.Report("ignored")
}
