package enhance

import (
	"context"
	"image"
	"math"
)

// BorderDetectionStep locates the document quadrilateral in a captured photo
// using gradient-based edge extraction and publishes it, with a confidence
// score, to the pipeline state. The image itself is not modified.
type BorderDetectionStep struct{}

func (BorderDetectionStep) Name() string { return StepBorderDetection }

func (BorderDetectionStep) Apply(ctx context.Context, img image.Image, st *State) (image.Image, bool, error) {
	bounds := DetectBounds(img)
	if bounds == nil {
		return img, false, nil
	}
	st.Bounds = bounds
	return img, true, nil
}

// detection works on a coarse grid; full resolution adds nothing but cost.
const detectGridMax = 256

// DetectBounds estimates the document quadrilateral from edge geometry. It
// samples the image onto a coarse luminance grid, extracts strong Sobel
// edges, and takes the extreme edge points along the two diagonals as corner
// candidates. Confidence combines the quad's area share with edge support;
// nil is returned when the image is too small or has no usable edges.
func DetectBounds(img image.Image) *Bounds {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 16 || h < 16 {
		return nil
	}

	stride := 1
	if m := max(w, h); m > detectGridMax {
		stride = (m + detectGridMax - 1) / detectGridMax
	}
	gw, gh := w/stride, h/stride
	if gw < 8 || gh < 8 {
		return nil
	}

	gray := make([]float64, gw*gh)
	for gy := 0; gy < gh; gy++ {
		for gx := 0; gx < gw; gx++ {
			r, g, bl, _ := img.At(b.Min.X+gx*stride, b.Min.Y+gy*stride).RGBA()
			gray[gy*gw+gx] = luminance(uint8(r>>8), uint8(g>>8), uint8(bl>>8))
		}
	}

	// Sobel gradient magnitude over the interior of the grid.
	mag := make([]float64, gw*gh)
	var sum, sumSq float64
	for gy := 1; gy < gh-1; gy++ {
		for gx := 1; gx < gw-1; gx++ {
			i := gy*gw + gx
			sx := -gray[i-gw-1] - 2*gray[i-1] - gray[i+gw-1] +
				gray[i-gw+1] + 2*gray[i+1] + gray[i+gw+1]
			sy := -gray[i-gw-1] - 2*gray[i-gw] - gray[i-gw+1] +
				gray[i+gw-1] + 2*gray[i+gw] + gray[i+gw+1]
			m := math.Hypot(sx, sy)
			mag[i] = m
			sum += m
			sumSq += m * m
		}
	}
	n := float64((gw - 2) * (gh - 2))
	mean := sum / n
	std := math.Sqrt(math.Max(0, sumSq/n-mean*mean))
	threshold := mean + 2*std

	type gridPoint struct{ x, y int }
	var edges []gridPoint
	for gy := 1; gy < gh-1; gy++ {
		for gx := 1; gx < gw-1; gx++ {
			if mag[gy*gw+gx] > threshold {
				edges = append(edges, gridPoint{gx, gy})
			}
		}
	}
	if len(edges) < 16 {
		return nil
	}

	// Corner candidates: extremes along the two image diagonals.
	tl, tr, bl2, br := edges[0], edges[0], edges[0], edges[0]
	for _, p := range edges {
		if p.x+p.y < tl.x+tl.y {
			tl = p
		}
		if p.x+p.y > br.x+br.y {
			br = p
		}
		if p.x-p.y > tr.x-tr.y {
			tr = p
		}
		if p.x-p.y < bl2.x-bl2.y {
			bl2 = p
		}
	}

	toImage := func(p gridPoint) Point {
		return Point{X: float64(b.Min.X + p.x*stride), Y: float64(b.Min.Y + p.y*stride)}
	}
	quad := Bounds{
		TopLeft:     toImage(tl),
		TopRight:    toImage(tr),
		BottomLeft:  toImage(bl2),
		BottomRight: toImage(br),
	}

	area := quadArea(quad)
	areaFrac := area / float64(w*h)
	if areaFrac > 1 {
		areaFrac = 1
	}
	support := float64(len(edges)) / float64(gw+gh)
	if support > 1 {
		support = 1
	}
	quad.Confidence = areaFrac * support
	if quad.Confidence <= 0 {
		return nil
	}
	return &quad
}

// quadArea computes the area of the quadrilateral via the shoelace formula,
// walking corners in TL→TR→BR→BL order.
func quadArea(q Bounds) float64 {
	pts := [4]Point{q.TopLeft, q.TopRight, q.BottomRight, q.BottomLeft}
	var a float64
	for i := 0; i < 4; i++ {
		j := (i + 1) % 4
		a += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return math.Abs(a) / 2
}

// PerspectiveCorrectionStep rectifies the detected document quadrilateral
// onto an axis-aligned rectangle. It skips when no bounds were detected, when
// the detection confidence is below ConfidenceThreshold, or when the quad
// already spans essentially the whole frame.
type PerspectiveCorrectionStep struct{}

func (PerspectiveCorrectionStep) Name() string { return StepPerspectiveCorrection }

func (PerspectiveCorrectionStep) Apply(ctx context.Context, img image.Image, st *State) (image.Image, bool, error) {
	if st.Bounds == nil || st.Bounds.Confidence < ConfidenceThreshold {
		return img, false, nil
	}
	if coversFrame(img, *st.Bounds) {
		return img, false, nil
	}
	out := warpQuad(toRGBA(img), *st.Bounds)
	if out == nil {
		return img, false, nil
	}
	return out, true, nil
}

// coversFrame reports whether every corner sits within 1% of the image
// corner it should map to, in which case rectification is a no-op.
func coversFrame(img image.Image, q Bounds) bool {
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	tol := 0.01 * math.Max(w, h)
	ok := func(p Point, cx, cy float64) bool {
		return math.Abs(p.X-float64(b.Min.X)-cx) <= tol && math.Abs(p.Y-float64(b.Min.Y)-cy) <= tol
	}
	return ok(q.TopLeft, 0, 0) && ok(q.TopRight, w-1, 0) &&
		ok(q.BottomLeft, 0, h-1) && ok(q.BottomRight, w-1, h-1)
}

// warpQuad resamples the source quadrilateral onto a rectangle sized from the
// quad's edge lengths, using inverse bilinear mapping with bilinear sampling.
func warpQuad(src *image.RGBA, q Bounds) *image.RGBA {
	width := int(math.Round(math.Max(dist(q.TopLeft, q.TopRight), dist(q.BottomLeft, q.BottomRight))))
	height := int(math.Round(math.Max(dist(q.TopLeft, q.BottomLeft), dist(q.TopRight, q.BottomRight))))
	if width < 1 || height < 1 {
		return nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		v := (float64(y) + 0.5) / float64(height)
		for x := 0; x < width; x++ {
			u := (float64(x) + 0.5) / float64(width)
			top := lerpPoint(q.TopLeft, q.TopRight, u)
			bot := lerpPoint(q.BottomLeft, q.BottomRight, u)
			p := lerpPoint(top, bot, v)
			r, g, b, a := bilinearSample(src, p.X, p.Y)
			off := y*dst.Stride + x*4
			dst.Pix[off] = r
			dst.Pix[off+1] = g
			dst.Pix[off+2] = b
			dst.Pix[off+3] = a
		}
	}
	return dst
}
