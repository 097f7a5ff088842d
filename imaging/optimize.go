package imaging

import (
	"context"
	"time"

	"github.com/wudi/scankit/observability"
)

// Quality search parameters: a bounded linear walk, not a binary search.
// Predictable attempt count is worth more than an optimal size fit on
// constrained devices.
const (
	qualityStep    = 0.15
	qualityFloor   = 0.3
	maxAttempts    = 5
	defaultQuality = 0.9
)

// Optimize produces an upload-sized derivative of a captured image: the
// enhancement pipeline (when requested), an aspect-preserving downscale
// capped by MaxWidth/MaxHeight, then repeated JPEG encoding stepping quality
// down by 0.15 per attempt (floor 0.3, at most 5 attempts) until TargetBytes
// is met.
//
// Optimize never fails: any decode or encode problem degrades to returning
// the original bytes unchanged, and the result is never larger than the
// original.
func (e *Engine) Optimize(ctx context.Context, data []byte, opts OptimizeOptions) ProcessingResult {
	start := time.Now()
	ctx, span := e.tracer.StartSpan(ctx, "imaging.optimize")
	defer span.Finish()

	res := ProcessingResult{OriginalSizeBytes: int64(len(data))}
	passthrough := func() ProcessingResult {
		res.Derivative = Derivative{Data: data, SizeBytes: int64(len(data))}
		res.ProcessedSizeBytes = res.OriginalSizeBytes
		res.AppliedEnhancements = nil
		res.Attempts = 0
		res.Quality = 0
		res.Passthrough = true
		res.ProcessingTime = time.Since(start)
		return res
	}

	img, err := Decode(data)
	if err != nil {
		e.log.Warn("optimize: undecodable input, returning original",
			observability.Error("err", err))
		span.SetError(err)
		return passthrough()
	}

	if opts.Enhance != nil {
		enhanced, er, err := e.pipeline.Run(ctx, img, *opts.Enhance)
		if err != nil {
			e.log.Warn("optimize: enhancement aborted",
				observability.Error("err", err))
		} else {
			img = enhanced
			res.AppliedEnhancements = er.Applied
			res.Bounds = er.Bounds
		}
	}

	b := img.Bounds()
	targetW, targetH := fitWithin(b.Dx(), b.Dy(), opts.MaxWidth, opts.MaxHeight)
	if targetW != b.Dx() || targetH != b.Dy() {
		img = scaleTo(img, targetW, targetH)
	}

	quality := opts.Quality
	if quality <= 0 {
		quality = defaultQuality
	}
	if quality > 1 {
		quality = 1
	}
	if quality < qualityFloor {
		quality = qualityFloor
	}

	var best []byte
	bestQuality := 0.0
	attempts := 0
	for attempts < maxAttempts {
		attempts++
		encoded, err := EncodeJPEG(img, quality)
		if err != nil {
			e.log.Warn("optimize: encode failed",
				observability.Int("attempt", attempts),
				observability.Error("err", err))
			span.SetError(err)
			break
		}
		if best == nil || len(encoded) < len(best) {
			best = encoded
			bestQuality = quality
		}
		if opts.TargetBytes <= 0 || int64(len(encoded)) <= opts.TargetBytes {
			break
		}
		next := quality - qualityStep
		if next < qualityFloor {
			if quality > qualityFloor {
				next = qualityFloor
			} else {
				break
			}
		}
		quality = next
	}

	if best == nil {
		return passthrough()
	}
	if int64(len(best)) >= res.OriginalSizeBytes && res.OriginalSizeBytes > 0 {
		// Re-encoding gained nothing; the original wins.
		e.log.Debug("optimize: derivative not smaller than original, returning original",
			observability.Int("derivative_bytes", len(best)),
			observability.Int64("original_bytes", res.OriginalSizeBytes))
		return passthrough()
	}

	res.Derivative = Derivative{
		Data:      best,
		Width:     targetW,
		Height:    targetH,
		SizeBytes: int64(len(best)),
	}
	res.ProcessedSizeBytes = int64(len(best))
	res.Attempts = attempts
	res.Quality = bestQuality
	res.ProcessingTime = time.Since(start)

	e.log.Debug("optimize: done",
		observability.Int("width", targetW),
		observability.Int("height", targetH),
		observability.Int("attempts", attempts),
		observability.Int64("bytes", res.ProcessedSizeBytes))
	span.SetTag(observability.MetricOptimizeBytes, res.ProcessedSizeBytes)
	return res
}
