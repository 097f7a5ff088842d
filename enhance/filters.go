package enhance

import (
	"context"
	"image"
	"math"
	"sort"
)

// GlareRemovalStep compresses blown-out highlights, the typical artifact of
// flash or overhead lighting on glossy paper. Pixels whose luminance exceeds
// the glare threshold are soft-clipped toward it; everything else is left
// untouched.
type GlareRemovalStep struct{}

func (GlareRemovalStep) Name() string { return StepGlareRemoval }

const glareThreshold = 240.0

func (GlareRemovalStep) Apply(ctx context.Context, img image.Image, st *State) (image.Image, bool, error) {
	src := toRGBA(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	var out *image.RGBA
	changed := false
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := y*src.Stride + x*4
			r, g, b := src.Pix[off], src.Pix[off+1], src.Pix[off+2]
			luma := luminance(r, g, b)
			if luma <= glareThreshold {
				continue
			}
			if out == nil {
				out = cloneRGBA(src)
				changed = true
			}
			// Compress the range above the threshold by half.
			scale := (glareThreshold + (luma-glareThreshold)*0.5) / luma
			doff := y*out.Stride + x*4
			out.Pix[doff] = clampByte(float64(r) * scale)
			out.Pix[doff+1] = clampByte(float64(g) * scale)
			out.Pix[doff+2] = clampByte(float64(b) * scale)
		}
	}
	if !changed {
		return img, false, nil
	}
	return out, true, nil
}

// ShadowRemovalStep flattens uneven illumination by estimating the paper
// background with a wide box blur of the luminance plane and normalizing each
// pixel against it. Evenly lit captures pass through unchanged.
type ShadowRemovalStep struct{}

func (ShadowRemovalStep) Name() string { return StepShadowRemoval }

const shadowTargetLuma = 235.0

func (ShadowRemovalStep) Apply(ctx context.Context, img image.Image, st *State) (image.Image, bool, error) {
	src := toRGBA(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	if w < 8 || h < 8 {
		return img, false, nil
	}
	luma := lumaPlane(src)
	radius := max(w, h) / 8
	bg := boxBlur(luma, w, h, radius)

	// If the background is already uniform there is no shadow to lift.
	minBg, maxBg := bg[0], bg[0]
	for _, v := range bg {
		if v < minBg {
			minBg = v
		}
		if v > maxBg {
			maxBg = v
		}
	}
	if maxBg-minBg < 12 {
		return img, false, nil
	}

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			b := bg[y*w+x]
			if b < 1 {
				b = 1
			}
			scale := shadowTargetLuma / b
			if scale > 4 {
				scale = 4
			}
			soff := y*src.Stride + x*4
			doff := y*out.Stride + x*4
			out.Pix[doff] = clampByte(float64(src.Pix[soff]) * scale)
			out.Pix[doff+1] = clampByte(float64(src.Pix[soff+1]) * scale)
			out.Pix[doff+2] = clampByte(float64(src.Pix[soff+2]) * scale)
			out.Pix[doff+3] = src.Pix[soff+3]
		}
	}
	return out, true, nil
}

// ContrastEnhancementStep stretches the luminance histogram linearly between
// its 2nd and 98th percentiles. Images that already span the range are left
// alone.
type ContrastEnhancementStep struct{}

func (ContrastEnhancementStep) Name() string { return StepContrastEnhancement }

func (ContrastEnhancementStep) Apply(ctx context.Context, img image.Image, st *State) (image.Image, bool, error) {
	src := toRGBA(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	if w == 0 || h == 0 {
		return img, false, nil
	}
	luma := lumaPlane(src)
	sorted := make([]float64, len(luma))
	copy(sorted, luma)
	sort.Float64s(sorted)
	lo := sorted[len(sorted)*2/100]
	hi := sorted[len(sorted)*98/100]
	if hi-lo >= 200 || hi-lo < 1 {
		return img, false, nil
	}
	scale := 255.0 / (hi - lo)

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			soff := y*src.Stride + x*4
			doff := y*out.Stride + x*4
			out.Pix[doff] = clampByte((float64(src.Pix[soff]) - lo) * scale)
			out.Pix[doff+1] = clampByte((float64(src.Pix[soff+1]) - lo) * scale)
			out.Pix[doff+2] = clampByte((float64(src.Pix[soff+2]) - lo) * scale)
			out.Pix[doff+3] = src.Pix[soff+3]
		}
	}
	return out, true, nil
}

// SharpeningStep applies an unsharp mask: the image minus a small box blur,
// scaled and added back. Text edges gain acuity without ringing at the
// default amount.
type SharpeningStep struct{}

func (SharpeningStep) Name() string { return StepSharpening }

const sharpenAmount = 0.5

func (SharpeningStep) Apply(ctx context.Context, img image.Image, st *State) (image.Image, bool, error) {
	src := toRGBA(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	if w < 3 || h < 3 {
		return img, false, nil
	}

	plane := func(ch int) []float64 {
		out := make([]float64, w*h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out[y*w+x] = float64(src.Pix[y*src.Stride+x*4+ch])
			}
		}
		return out
	}

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	changed := false
	for ch := 0; ch < 3; ch++ {
		p := plane(ch)
		blurred := boxBlur(p, w, h, 1)
		for i, v := range p {
			nv := clampByte(v + sharpenAmount*(v-blurred[i]))
			y, x := i/w, i%w
			out.Pix[y*out.Stride+x*4+ch] = nv
			if !changed && math.Abs(float64(nv)-v) > 0.5 {
				changed = true
			}
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Pix[y*out.Stride+x*4+3] = src.Pix[y*src.Stride+x*4+3]
		}
	}
	if !changed {
		return img, false, nil
	}
	return out, true, nil
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}
