package preview_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wudi/scankit/preview"
)

// fakeLoader records load attempts and fails the URIs listed in fail. A
// non-nil gate blocks every load until the gate closes.
type fakeLoader struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
	gate  chan struct{}
}

func (l *fakeLoader) Load(_ context.Context, uri string) error {
	l.mu.Lock()
	l.calls = append(l.calls, uri)
	fail := l.fail[uri]
	gate := l.gate
	l.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if fail {
		return errors.New("load failed")
	}
	return nil
}

func (l *fakeLoader) attempts(uri string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		if c == uri {
			n++
		}
	}
	return n
}

func (l *fakeLoader) attempted(uri string) bool { return l.attempts(uri) > 0 }

var testSources = preview.Sources{
	Low:    "thumb-80.jpg",
	Medium: "thumb-200.jpg",
	High:   "thumb-400.jpg",
	Full:   "full.jpg",
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func TestNewControllerPanicsOnNilLoader(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("Expected panic for nil loader")
		}
	}()
	preview.NewController(testSources, nil)
}

func TestStartShowsLowThenMedium(t *testing.T) {
	loader := &fakeLoader{}
	c := preview.NewController(testSources, loader,
		preview.WithMediumDelay(50*time.Millisecond))
	defer c.Stop()

	c.Start(context.Background())

	waitFor(t, "low derivative", func() bool { return c.Current() == testSources.Low })
	if loader.attempted(testSources.Medium) {
		t.Errorf("Expected the medium load to wait for its delay")
	}

	waitFor(t, "medium derivative", func() bool { return c.Current() == testSources.Medium })
	if !c.Loaded(testSources.Low) || !c.Loaded(testSources.Medium) {
		t.Errorf("Expected both ladder steps confirmed loaded")
	}
}

// Without the full-resolution opt-in or a visibility signal, the ladder
// stops at medium.
func TestHighAndFullRequireOptInOrVisibility(t *testing.T) {
	loader := &fakeLoader{}
	c := preview.NewController(testSources, loader,
		preview.WithMediumDelay(5*time.Millisecond))
	defer c.Stop()

	c.Start(context.Background())
	waitFor(t, "medium derivative", func() bool { return c.Current() == testSources.Medium })
	time.Sleep(30 * time.Millisecond)

	if loader.attempted(testSources.High) || loader.attempted(testSources.Full) {
		t.Fatalf("Expected no high/full attempts without opt-in, got %v", loader.calls)
	}

	c.OnVisible()
	waitFor(t, "full derivative", func() bool { return c.Current() == testSources.Full })
}

func TestFullResOnMount(t *testing.T) {
	loader := &fakeLoader{}
	c := preview.NewController(testSources, loader,
		preview.WithMediumDelay(5*time.Millisecond),
		preview.WithFullResOnMount())
	defer c.Stop()

	c.Start(context.Background())
	waitFor(t, "full derivative", func() bool { return c.Current() == testSources.Full })
}

func TestFallbackOneStepOnFailure(t *testing.T) {
	loader := &fakeLoader{fail: map[string]bool{testSources.Full: true}}
	c := preview.NewController(testSources, loader,
		preview.WithMediumDelay(5*time.Millisecond),
		preview.WithFullResOnMount())
	defer c.Stop()

	c.Start(context.Background())

	// Full fails, the controller settles one step down on high.
	waitFor(t, "high derivative", func() bool { return c.Current() == testSources.High })

	if n := loader.attempts(testSources.Full); n != 1 {
		t.Errorf("Expected exactly one attempt at the failed stage, got %d", n)
	}

	// A later visibility signal must not climb back to the failed stage.
	c.OnVisible()
	time.Sleep(30 * time.Millisecond)
	if n := loader.attempts(testSources.Full); n != 1 {
		t.Errorf("Expected no retry of the failed stage, got %d attempts", n)
	}
	if c.Current() != testSources.High {
		t.Errorf("Expected to stay on high, got %q", c.Current())
	}
}

func TestFallbackCascadesPastMultipleFailures(t *testing.T) {
	loader := &fakeLoader{fail: map[string]bool{
		testSources.Full: true,
		testSources.High: true,
	}}
	c := preview.NewController(testSources, loader,
		preview.WithMediumDelay(time.Millisecond),
		preview.WithFullResOnMount())
	defer c.Stop()

	c.Start(context.Background())

	waitFor(t, "medium fallback", func() bool { return c.Current() == testSources.Medium })
	if n := loader.attempts(testSources.Full); n != 1 {
		t.Errorf("Expected one full attempt, got %d", n)
	}
	if n := loader.attempts(testSources.High); n != 1 {
		t.Errorf("Expected one high attempt, got %d", n)
	}
}

func TestOnLoadErrorMapsURIToStage(t *testing.T) {
	loader := &fakeLoader{}
	c := preview.NewController(testSources, loader,
		preview.WithMediumDelay(time.Millisecond))
	defer c.Stop()

	c.Start(context.Background())
	waitFor(t, "medium derivative", func() bool { return c.Current() == testSources.Medium })

	// The display layer reports the medium derivative as undisplayable.
	c.OnLoadError(testSources.Medium)
	waitFor(t, "low fallback", func() bool { return c.Current() == testSources.Low })

	// Unknown URIs are ignored.
	c.OnLoadError("never-heard-of-it.jpg")
	if c.Current() != testSources.Low {
		t.Errorf("Expected unknown URI report to be a no-op, got %q", c.Current())
	}
}

func TestLoadingTimeoutClearsIndicatorOnly(t *testing.T) {
	gate := make(chan struct{})
	loader := &fakeLoader{gate: gate}
	c := preview.NewController(preview.Sources{Low: "slow.jpg"}, loader,
		preview.WithLoadTimeout(20*time.Millisecond))
	defer c.Stop()

	c.Start(context.Background())

	waitFor(t, "loading indicator", func() bool { return c.Loading() })
	waitFor(t, "indicator timeout", func() bool { return !c.Loading() })

	// The load itself was not cancelled; releasing it still completes.
	if c.Current() != "" {
		t.Errorf("Expected nothing displayable before the load finishes, got %q", c.Current())
	}
	close(gate)
	waitFor(t, "late completion", func() bool { return c.Current() == "slow.jpg" })
}

func TestEmptySourcesAreSkipped(t *testing.T) {
	loader := &fakeLoader{fail: map[string]bool{"full.jpg": true}}
	sources := preview.Sources{Low: "low.jpg", Full: "full.jpg"}
	c := preview.NewController(sources, loader,
		preview.WithMediumDelay(time.Millisecond),
		preview.WithFullResOnMount())
	defer c.Stop()

	c.Start(context.Background())

	// Full fails; high and medium are absent, so the ladder lands on low.
	waitFor(t, "low fallback", func() bool { return c.Current() == "low.jpg" })
	if loader.attempted("") {
		t.Errorf("Expected empty sources never to be loaded")
	}
}

func TestStartIsIdempotent(t *testing.T) {
	loader := &fakeLoader{}
	c := preview.NewController(testSources, loader,
		preview.WithMediumDelay(time.Millisecond))
	defer c.Stop()

	c.Start(context.Background())
	c.Start(context.Background())
	waitFor(t, "medium derivative", func() bool { return c.Current() == testSources.Medium })

	if n := loader.attempts(testSources.Low); n != 1 {
		t.Errorf("Expected a single low attempt across repeated Starts, got %d", n)
	}
}
