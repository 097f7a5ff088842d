// Package imaging produces resized, recompressed derivatives of captured
// document photos: upload-sized optimized copies and fixed-footprint
// thumbnails for progressive display. All entry points degrade to returning
// the original image rather than failing, so callers always have something
// to show.
package imaging

import (
	"time"

	"github.com/wudi/scankit/enhance"
	"github.com/wudi/scankit/observability"
)

// Fixed thumbnail footprints, smallest to largest. Compression decreases as
// resolution increases.
const (
	LowResSize    = 80
	MediumResSize = 200
	HighResSize   = 400

	lowResQuality    = 60
	mediumResQuality = 75
	highResQuality   = 85
)

// Derivative is one resized/recompressed copy of a source image. Ownership
// transfers to the caller; a Derivative is never mutated after creation.
type Derivative struct {
	// URI is set by callers once the derivative has been persisted. The
	// engine itself only fills Data.
	URI       string
	Data      []byte
	Width     int
	Height    int
	SizeBytes int64
}

// ThumbnailSet holds the three standard preview derivatives.
type ThumbnailSet struct {
	Low    Derivative
	Medium Derivative
	High   Derivative
}

// ThumbnailResult pairs a batch entry with its outcome. Err is informational:
// when set, Derivative still carries the original image as a fallback.
type ThumbnailResult struct {
	Index      int
	Derivative Derivative
	Err        error
}

// OptimizeOptions bounds the derivative produced by Optimize.
type OptimizeOptions struct {
	// MaxWidth/MaxHeight cap the pixel dimensions. The image is scaled down
	// preserving aspect ratio; it is never scaled up. Zero means unbounded.
	MaxWidth  int
	MaxHeight int
	// TargetBytes is the encoded-size ceiling the quality search aims for.
	// Zero disables the search; the image is encoded once at Quality.
	TargetBytes int64
	// Quality in (0,1] is the starting JPEG quality. Zero means 0.9.
	Quality float64
	// Enhance, when non-nil, runs the enhancement pipeline before encoding.
	Enhance *enhance.Options
}

// ProcessingResult reports what Optimize did. It is read-only once returned.
type ProcessingResult struct {
	Derivative          Derivative
	OriginalSizeBytes   int64
	ProcessedSizeBytes  int64
	AppliedEnhancements []string
	Bounds              *enhance.Bounds
	ProcessingTime      time.Duration
	// Attempts counts encode passes of the quality search (0 on passthrough).
	Attempts int
	// Quality is the final quality used, 0 on passthrough.
	Quality float64
	// Passthrough is true when the original bytes were returned unchanged.
	Passthrough bool
}

// Engine computes image derivatives.
type Engine struct {
	log        observability.Logger
	tracer     observability.Tracer
	pipeline   *enhance.Pipeline
	batchPause time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(log observability.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithTracer sets the engine tracer.
func WithTracer(tracer observability.Tracer) Option {
	return func(e *Engine) { e.tracer = tracer }
}

// WithPipeline replaces the enhancement pipeline used by Optimize.
func WithPipeline(p *enhance.Pipeline) Option {
	return func(e *Engine) { e.pipeline = p }
}

// WithBatchPause sets the pause between thumbnail batches.
func WithBatchPause(d time.Duration) Option {
	return func(e *Engine) { e.batchPause = d }
}

// New constructs an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		log:        observability.NopLogger{},
		tracer:     observability.NopTracer(),
		batchPause: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.pipeline == nil {
		e.pipeline = enhance.NewPipeline(enhance.WithLogger(e.log))
	}
	return e
}

// ValidationError reports out-of-range options supplied by the caller.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "imaging: " + e.Reason }
