package imaging

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wudi/scankit/observability"
)

// thumbnail batches bound peak memory from concurrent decodes on constrained
// devices while still parallelizing within a small window.
const batchSize = 3

// Thumbnails produces the three standard preview derivatives concurrently.
// The variants have no ordering dependency on each other. A variant that
// fails to encode falls back to the original image; Thumbnails never fails
// as a whole.
func (e *Engine) Thumbnails(ctx context.Context, data []byte) ThumbnailSet {
	var set ThumbnailSet
	if ctx.Err() != nil {
		fallback := Derivative{Data: data, SizeBytes: int64(len(data))}
		return ThumbnailSet{Low: fallback, Medium: fallback, High: fallback}
	}
	var g errgroup.Group
	g.Go(func() error {
		set.Low = e.thumbnail(data, LowResSize, LowResSize, lowResQuality)
		return nil
	})
	g.Go(func() error {
		set.Medium = e.thumbnail(data, MediumResSize, MediumResSize, mediumResQuality)
		return nil
	})
	g.Go(func() error {
		set.High = e.thumbnail(data, HighResSize, HighResSize, highResQuality)
		return nil
	})
	g.Wait() //nolint:errcheck // workers never return errors, they fall back
	return set
}

// thumbnail computes one fixed-footprint derivative, falling back to the
// original bytes on any failure.
func (e *Engine) thumbnail(data []byte, w, h, quality int) Derivative {
	d, err := e.renderThumbnail(data, w, h, quality)
	if err != nil {
		e.log.Warn("thumbnail: falling back to original",
			observability.Int("width", w),
			observability.Int("height", h),
			observability.Error("err", err))
		return Derivative{Data: data, SizeBytes: int64(len(data))}
	}
	return d
}

func (e *Engine) renderThumbnail(data []byte, w, h, quality int) (Derivative, error) {
	img, err := Decode(data)
	if err != nil {
		return Derivative{}, err
	}
	scaled := cropScale(img, w, h)
	encoded, err := EncodeJPEG(scaled, float64(quality)/100)
	if err != nil {
		return Derivative{}, err
	}
	return Derivative{
		Data:      encoded,
		Width:     w,
		Height:    h,
		SizeBytes: int64(len(encoded)),
	}, nil
}

// BatchThumbnails renders one thumbnail per input image at the given
// footprint. Inputs are processed in groups of three run concurrently,
// serialized across groups with a short pause, with cumulative progress
// reported after each group. Per-image failures produce a fallback
// derivative carrying the original bytes; the Err field records the cause.
func (e *Engine) BatchThumbnails(ctx context.Context, images [][]byte, targetW, targetH int, onProgress func(done, total int)) ([]ThumbnailResult, error) {
	if targetW <= 0 || targetH <= 0 {
		return nil, &ValidationError{Reason: "thumbnail dimensions must be positive"}
	}
	if len(images) == 0 {
		return nil, nil
	}

	results := make([]ThumbnailResult, len(images))
	total := len(images)
	for start := 0; start < total; start += batchSize {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		end := start + batchSize
		if end > total {
			end = total
		}

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				d, err := e.renderThumbnail(images[i], targetW, targetH, mediumResQuality)
				if err != nil {
					d = Derivative{Data: images[i], SizeBytes: int64(len(images[i]))}
				}
				results[i] = ThumbnailResult{Index: i, Derivative: d, Err: err}
				return nil
			})
		}
		g.Wait() //nolint:errcheck

		if onProgress != nil {
			onProgress(end, total)
		}
		if end < total && e.batchPause > 0 {
			select {
			case <-time.After(e.batchPause):
			case <-ctx.Done():
				return results, ctx.Err()
			}
		}
	}
	return results, nil
}
