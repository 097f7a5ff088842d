// Package enhance implements the ordered, confidence-gated image enhancement
// pipeline applied to captured document photos before recognition. Each stage
// is a named, independently toggleable Step so callers can swap the built-in
// algorithms for platform-native ones without changing the pipeline contract.
package enhance

import (
	"context"
	"image"

	"github.com/wudi/scankit/observability"
)

// Step names in their fixed pipeline order.
const (
	StepBorderDetection       = "border_detection"
	StepPerspectiveCorrection = "perspective_correction"
	StepGlareRemoval          = "glare_removal"
	StepShadowRemoval         = "shadow_removal"
	StepContrastEnhancement   = "contrast_enhancement"
	StepSharpening            = "sharpening"
)

// ConfidenceThreshold is the minimum border-detection confidence required
// before perspective correction will rectify the image.
const ConfidenceThreshold = 0.7

// Point is a 2D pixel coordinate.
type Point struct {
	X float64
	Y float64
}

// Bounds describes a detected document quadrilateral with a confidence score
// in [0,1].
type Bounds struct {
	TopLeft     Point
	TopRight    Point
	BottomLeft  Point
	BottomRight Point
	Confidence  float64
}

// Options selects which steps run. Zero value disables everything; use
// DefaultOptions for the standard configuration.
type Options struct {
	BorderDetection       bool
	PerspectiveCorrection bool
	GlareRemoval          bool
	ShadowRemoval         bool
	ContrastEnhancement   bool
	Sharpening            bool
	// Quality in [0,1] is carried through to downstream encoding.
	Quality float64
}

// DefaultOptions enables every step at quality 0.9.
func DefaultOptions() Options {
	return Options{
		BorderDetection:       true,
		PerspectiveCorrection: true,
		GlareRemoval:          true,
		ShadowRemoval:         true,
		ContrastEnhancement:   true,
		Sharpening:            true,
		Quality:               0.9,
	}
}

// Enabled reports whether the named step is switched on.
func (o Options) Enabled(name string) bool {
	switch name {
	case StepBorderDetection:
		return o.BorderDetection
	case StepPerspectiveCorrection:
		return o.PerspectiveCorrection
	case StepGlareRemoval:
		return o.GlareRemoval
	case StepShadowRemoval:
		return o.ShadowRemoval
	case StepContrastEnhancement:
		return o.ContrastEnhancement
	case StepSharpening:
		return o.Sharpening
	}
	return false
}

// State is shared between steps of a single pipeline run. Border detection
// publishes Bounds here; perspective correction consumes them.
type State struct {
	Bounds *Bounds
}

// Step is one named enhancement stage. Apply returns the (possibly new)
// image and whether the image actually changed. A step that cannot safely
// improve the image returns the input unchanged with changed=false.
type Step interface {
	Name() string
	Apply(ctx context.Context, img image.Image, st *State) (image.Image, bool, error)
}

// Pipeline runs steps in their declared order, honoring per-step toggles.
type Pipeline struct {
	steps []Step
	log   observability.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(log observability.Logger) PipelineOption {
	return func(p *Pipeline) { p.log = log }
}

// WithSteps replaces the built-in steps. Steps run in the order given.
func WithSteps(steps ...Step) PipelineOption {
	return func(p *Pipeline) { p.steps = steps }
}

// NewPipeline constructs a pipeline with the built-in steps in their fixed
// order: border detection, perspective correction, glare removal, shadow
// removal, contrast enhancement, sharpening.
func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		steps: []Step{
			BorderDetectionStep{},
			PerspectiveCorrectionStep{},
			GlareRemovalStep{},
			ShadowRemovalStep{},
			ContrastEnhancementStep{},
			SharpeningStep{},
		},
		log: observability.NopLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result reports what a pipeline run did.
type Result struct {
	// Applied lists the names of steps that changed the image, in run order.
	Applied []string
	// Bounds holds the detected document quadrilateral, if any.
	Bounds *Bounds
}

// Run applies every enabled step in order. A failing step is logged and
// skipped; Run never aborts the remaining steps because of one stage.
func (p *Pipeline) Run(ctx context.Context, img image.Image, opts Options) (image.Image, Result, error) {
	if img == nil {
		return nil, Result{}, &InvalidInputError{Reason: "nil image"}
	}
	st := &State{}
	res := Result{}
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			return img, res, ctx.Err()
		default:
		}
		if !opts.Enabled(step.Name()) {
			continue
		}
		out, changed, err := step.Apply(ctx, img, st)
		if err != nil {
			p.log.Warn("enhancement step failed, skipping",
				observability.String("step", step.Name()),
				observability.Error("err", err))
			continue
		}
		if changed {
			img = out
			res.Applied = append(res.Applied, step.Name())
		}
	}
	res.Bounds = st.Bounds
	return img, res, nil
}

// InvalidInputError reports an unusable pipeline input.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string { return "enhance: invalid input: " + e.Reason }
