// Package preview drives staged low→medium→high resolution display of image
// derivatives. The controller shows the smallest available derivative
// immediately, upgrades on a timer or visibility signal, and falls back one
// ladder step at a time when a load fails, so the UI always has the best
// displayable image without waiting for the largest one.
package preview

import (
	"context"
	"sync"
	"time"

	"github.com/wudi/scankit/observability"
)

// Defaults for the upgrade delay and the loading-indicator bound.
const (
	DefaultMediumDelay = 300 * time.Millisecond
	DefaultLoadTimeout = 5 * time.Second
)

// Sources lists the derivative URIs available to the controller, smallest
// to largest. Empty entries are skipped on the ladder.
type Sources struct {
	Low    string
	Medium string
	High   string
	Full   string
}

// Loader fetches and decodes a URI, returning once the image is displayable
// or has definitively failed.
type Loader interface {
	Load(ctx context.Context, uri string) error
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, uri string) error

func (f LoaderFunc) Load(ctx context.Context, uri string) error { return f(ctx, uri) }

// Resolution ladder stages, lowest first.
const (
	stageLow = iota
	stageMedium
	stageHigh
	stageFull
	stageCount
)

// Controller is the progressive preview state machine. All methods are safe
// for concurrent use.
type Controller struct {
	sources     [stageCount]string
	loader      Loader
	log         observability.Logger
	mediumDelay time.Duration
	loadTimeout time.Duration
	fullOnMount bool

	mu      sync.Mutex
	ctx     context.Context
	started bool
	visible bool
	loading bool
	current int
	force   int
	failed  [stageCount]bool
	loaded  map[string]bool
	timers  []*time.Timer
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithMediumDelay sets the delay before the medium derivative is attempted.
func WithMediumDelay(d time.Duration) ControllerOption {
	return func(c *Controller) { c.mediumDelay = d }
}

// WithLoadTimeout bounds how long the loading indicator may stay up for one
// load. The underlying load is not cancelled, only the visual state.
func WithLoadTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) { c.loadTimeout = d }
}

// WithFullResOnMount lets the controller attempt the high/full derivative
// immediately instead of waiting for a visibility signal.
func WithFullResOnMount() ControllerOption {
	return func(c *Controller) { c.fullOnMount = true }
}

// WithControllerLogger sets the controller logger.
func WithControllerLogger(log observability.Logger) ControllerOption {
	return func(c *Controller) { c.log = log }
}

// NewController constructs a Controller over the given derivative sources.
func NewController(sources Sources, loader Loader, opts ...ControllerOption) *Controller {
	if loader == nil {
		panic("preview: nil loader")
	}
	c := &Controller{
		sources:     [stageCount]string{sources.Low, sources.Medium, sources.High, sources.Full},
		loader:      loader,
		log:         observability.NopLogger{},
		mediumDelay: DefaultMediumDelay,
		loadTimeout: DefaultLoadTimeout,
		current:     -1,
		force:       -1,
		loaded:      make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins the staged display: the low derivative immediately, the
// medium one after the configured delay, and the high/full one only when
// requested at construction time. Start is idempotent.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.ctx = ctx
	c.mu.Unlock()

	if c.sources[stageLow] != "" {
		c.load(stageLow, false)
	}
	if c.sources[stageMedium] != "" {
		t := time.AfterFunc(c.mediumDelay, func() { c.load(stageMedium, false) })
		c.mu.Lock()
		c.timers = append(c.timers, t)
		c.mu.Unlock()
	}
	if c.fullOnMount {
		c.upgrade()
	}
}

// OnVisible signals that the preview is (about to be) on screen, unlocking
// the lazy high/full-resolution upgrade.
func (c *Controller) OnVisible() {
	c.mu.Lock()
	c.visible = true
	c.mu.Unlock()
	c.upgrade()
}

// OnLoadError reports that the given URI failed to display. The controller
// falls back exactly one usable ladder step and will not retry the failed
// stage again.
func (c *Controller) OnLoadError(uri string) {
	c.mu.Lock()
	stage := -1
	for s, u := range c.sources {
		if u != "" && u == uri {
			stage = s
			break
		}
	}
	c.mu.Unlock()
	if stage >= 0 {
		c.fail(stage)
	}
}

// Current returns the URI that should be displayed, empty when nothing is
// displayable yet.
func (c *Controller) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current < 0 {
		return ""
	}
	return c.sources[c.current]
}

// Loading reports whether a loading indicator should be shown.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Loaded reports whether the URI has been confirmed displayable.
func (c *Controller) Loaded(uri string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded[uri]
}

// Stop cancels pending upgrade timers. In-flight loads are not interrupted.
func (c *Controller) Stop() {
	c.mu.Lock()
	timers := c.timers
	c.timers = nil
	c.mu.Unlock()
	for _, t := range timers {
		t.Stop()
	}
}

// maxAllowed is the highest ladder stage the controller may attempt given
// the visibility state.
func (c *Controller) maxAllowed() int {
	if c.fullOnMount || c.visible {
		return stageFull
	}
	return stageMedium
}

// upgrade attempts the best high/full derivative currently permitted.
func (c *Controller) upgrade() {
	c.mu.Lock()
	target := -1
	for s := c.maxAllowed(); s > stageMedium; s-- {
		if c.sources[s] != "" && !c.failed[s] {
			target = s
			break
		}
	}
	current := c.current
	c.mu.Unlock()
	if target > current {
		c.load(target, false)
	}
}

func (c *Controller) load(stage int, forced bool) {
	c.mu.Lock()
	uri := c.sources[stage]
	if uri == "" || c.failed[stage] {
		c.mu.Unlock()
		return
	}
	if c.loaded[uri] {
		if forced || stage > c.current {
			c.current = stage
		}
		c.mu.Unlock()
		return
	}
	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	c.loading = true
	if forced {
		c.force = stage
	}
	c.mu.Unlock()

	// The timeout clears the indicator even when the load neither succeeds
	// nor fails in time; it does not cancel the load itself.
	timer := time.AfterFunc(c.loadTimeout, func() {
		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
	})

	go func() {
		err := c.loader.Load(ctx, uri)
		timer.Stop()
		if err != nil {
			c.log.Warn("preview load failed",
				observability.String("uri", uri),
				observability.Error("err", err))
			c.fail(stage)
			return
		}
		c.mu.Lock()
		c.loaded[uri] = true
		c.loading = false
		switch {
		case c.force == stage:
			c.current = stage
			c.force = -1
		case stage > c.current && stage <= c.maxAllowed():
			c.current = stage
		}
		c.mu.Unlock()
	}()
}

// fail marks a stage unusable and falls back one usable step down the
// ladder. Within one failure cascade the controller never climbs back up.
func (c *Controller) fail(stage int) {
	c.mu.Lock()
	c.loading = false
	c.failed[stage] = true
	if c.force == stage {
		c.force = -1
	}
	if c.current == stage {
		c.current = -1
	}
	next := stage - 1
	for next >= 0 && (c.sources[next] == "" || c.failed[next]) {
		next--
	}
	var fallbackLoaded bool
	if next >= 0 {
		fallbackLoaded = c.loaded[c.sources[next]]
	}
	c.mu.Unlock()

	if next < 0 {
		return
	}
	if fallbackLoaded {
		c.mu.Lock()
		if next > c.current {
			c.current = next
		}
		c.mu.Unlock()
		return
	}
	c.load(next, true)
}
