package remote_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wudi/scankit/ocr"
	"github.com/wudi/scankit/ocr/remote"
)

func TestNewRequiresEndpoint(t *testing.T) {
	_, err := remote.New(remote.Config{})
	var verr *ocr.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError for missing endpoint, got %v", err)
	}
}

func TestRecognizeSuccess(t *testing.T) {
	var gotAuth, gotContentType string
	var gotBody struct {
		Image       string `json:"image"`
		Format      string `json:"format"`
		Language    string `json:"language"`
		Instruction string `json:"instruction"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("Failed to decode request body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "INVOICE #42"})
	}))
	defer server.Close()

	engine, err := remote.New(remote.Config{
		Endpoint: server.URL,
		APIKey:   "secret-token",
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var statuses []string
	res, err := engine.Recognize(context.Background(), ocr.Input{
		ID:          "page-1",
		Image:       []byte("jpeg bytes"),
		Format:      ocr.ImageFormatJPEG,
		Language:    ocr.Language("eng"),
		Instruction: "extract all text",
		Progress:    func(s string) { statuses = append(statuses, s) },
	})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}

	if res.InputID != "page-1" || res.Text != "INVOICE #42" {
		t.Errorf("Unexpected result: %+v", res)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("Expected bearer auth, got %q", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Errorf("Expected JSON content type, got %q", gotContentType)
	}
	if gotBody.Image != base64.StdEncoding.EncodeToString([]byte("jpeg bytes")) {
		t.Errorf("Expected base64 image payload, got %q", gotBody.Image)
	}
	if gotBody.Format != string(ocr.ImageFormatJPEG) {
		t.Errorf("Expected format %q, got %q", ocr.ImageFormatJPEG, gotBody.Format)
	}
	if gotBody.Language != "eng" || gotBody.Instruction != "extract all text" {
		t.Errorf("Expected language/instruction forwarded, got %q/%q",
			gotBody.Language, gotBody.Instruction)
	}

	want := []string{"uploading image", "recognizing text", "text extracted"}
	if len(statuses) != len(want) {
		t.Fatalf("Expected statuses %v, got %v", want, statuses)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("Expected statuses %v, got %v", want, statuses)
		}
	}
}

func TestRecognizeDefaults(t *testing.T) {
	var gotBody struct {
		Format   string `json:"format"`
		Language string `json:"language"`
	}
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]string{"text": "ok"})
	}))
	defer server.Close()

	engine, err := remote.New(remote.Config{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := engine.Recognize(context.Background(), ocr.Input{Image: []byte("x")}); err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if gotBody.Format != string(ocr.ImageFormatJPEG) {
		t.Errorf("Expected JPEG default format, got %q", gotBody.Format)
	}
	if gotBody.Language != string(ocr.LanguageAuto) {
		t.Errorf("Expected auto default language, got %q", gotBody.Language)
	}
	if gotAuth != "" {
		t.Errorf("Expected no auth header without an API key, got %q", gotAuth)
	}
}

func TestRecognizeEmptyImage(t *testing.T) {
	engine, err := remote.New(remote.Config{Endpoint: "http://localhost:1"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = engine.Recognize(context.Background(), ocr.Input{})
	var verr *ocr.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError for empty image, got %v", err)
	}
	if ocr.Kind(err) != ocr.KindValidation {
		t.Errorf("Expected validation kind, got %s", ocr.Kind(err))
	}
}

func TestRecognizeHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "capability overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	engine, err := remote.New(remote.Config{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = engine.Recognize(context.Background(), ocr.Input{Image: []byte("x")})
	var terr *ocr.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("Expected TransportError, got %v", err)
	}
	if terr.Status != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", terr.Status)
	}
	if ocr.Kind(err) != ocr.KindTransport {
		t.Errorf("Expected transport kind, got %s", ocr.Kind(err))
	}
}

func TestRecognizeConnectionFailure(t *testing.T) {
	// A closed server refuses connections.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	engine, err := remote.New(remote.Config{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = engine.Recognize(context.Background(), ocr.Input{Image: []byte("x")})
	if ocr.Kind(err) != ocr.KindTransport {
		t.Errorf("Expected transport kind, got %s (%v)", ocr.Kind(err), err)
	}
}

func TestRecognizeTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	engine, err := remote.New(remote.Config{
		Endpoint: server.URL,
		Timeout:  30 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = engine.Recognize(context.Background(), ocr.Input{Image: []byte("x")})
	var te *ocr.TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("Expected TimeoutError, got %v", err)
	}
	if te.Timeout != 30*time.Millisecond {
		t.Errorf("Expected the configured bound in the error, got %s", te.Timeout)
	}
	if ocr.Kind(err) != ocr.KindTimeout {
		t.Errorf("Expected timeout kind, got %s", ocr.Kind(err))
	}
}

func TestRecognizeMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not json"))
	}))
	defer server.Close()

	engine, err := remote.New(remote.Config{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = engine.Recognize(context.Background(), ocr.Input{Image: []byte("x")})
	if ocr.Kind(err) != ocr.KindTransport {
		t.Errorf("Expected transport kind for malformed response, got %s (%v)", ocr.Kind(err), err)
	}
}
