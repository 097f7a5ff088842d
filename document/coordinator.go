package document

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wudi/scankit/observability"
	"github.com/wudi/scankit/ocr"
)

// Coordinator drives recognition page by page, strictly in order, committing
// each page's text before starting the next. It trades throughput for
// deterministic per-page progress; use the task queue when parallel dispatch
// is acceptable.
type Coordinator struct {
	engine  ocr.Engine
	timeout time.Duration
	log     observability.Logger
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithTimeout bounds each page's recognition request.
func WithTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.timeout = d }
}

// WithLogger sets the coordinator logger.
func WithLogger(log observability.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.log = log }
}

// NewCoordinator constructs a Coordinator around the given engine.
func NewCoordinator(engine ocr.Engine, opts ...CoordinatorOption) *Coordinator {
	if engine == nil {
		panic("document: nil engine")
	}
	c := &Coordinator{
		engine:  engine,
		timeout: 30 * time.Second,
		log:     observability.NopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ProcessPages recognizes every not-yet-done page in Order sequence. Each
// page is awaited and committed before the next starts. On the first
// failure the loop stops: the failing page is marked failed, later pages
// stay untouched, and the error is returned so the caller knows processing
// is incomplete.
//
// Re-invoking ProcessPages on the same set is idempotent: pages already done
// are skipped, so a caller can retry after a partial failure and only the
// failed and unprocessed pages are attempted again.
func (c *Coordinator) ProcessPages(ctx context.Context, pages []*Page) error {
	if len(pages) == 0 {
		return &ocr.ValidationError{Reason: "document: no pages to process"}
	}

	ordered := make([]*Page, len(pages))
	copy(ordered, pages)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	for _, page := range ordered {
		if err := ctx.Err(); err != nil {
			return err
		}
		if page.Status() == StatusDone {
			c.log.Debug("page already processed, skipping",
				observability.String("page", page.ID))
			continue
		}

		page.setProcessing()
		pageCtx, cancel := context.WithTimeout(ctx, c.timeout)
		res, err := c.engine.Recognize(pageCtx, ocr.Input{ID: page.ID, Image: page.Image})
		cancel()
		if err != nil {
			page.setFailed(err)
			c.log.Warn("page recognition failed, stopping",
				observability.String("page", page.ID),
				observability.Int("order", page.Order),
				observability.Error("err", err))
			return fmt.Errorf("document: page %d (%s): %w", page.Order, page.ID, err)
		}

		page.setDone(res.Text)
		c.log.Debug("page committed",
			observability.String("page", page.ID),
			observability.Int("order", page.Order),
			observability.Int("text_len", len(res.Text)))
	}
	return nil
}
