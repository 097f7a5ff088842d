package enhance

import (
	"image"
	"image/draw"
	"math"
)

// toRGBA normalizes any image to *image.RGBA so steps can index pixels
// directly. The input is returned as-is when it is already RGBA with a
// zero-origin bounds rectangle.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// luminance computes the Rec. 601 luma of an RGB triple.
func luminance(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

// lumaPlane extracts the luminance channel of an RGBA image.
func lumaPlane(img *image.RGBA) []float64 {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			out[y*w+x] = luminance(row[x*4], row[x*4+1], row[x*4+2])
		}
	}
	return out
}

// boxBlur applies an O(n) separable box blur of the given radius to a float
// plane of dimensions w×h.
func boxBlur(src []float64, w, h, radius int) []float64 {
	if radius < 1 {
		out := make([]float64, len(src))
		copy(out, src)
		return out
	}
	tmp := make([]float64, len(src))
	out := make([]float64, len(src))

	// Horizontal pass with a sliding window.
	for y := 0; y < h; y++ {
		row := src[y*w : (y+1)*w]
		var sum float64
		count := 0
		for x := 0; x < w && x <= radius; x++ {
			sum += row[x]
			count++
		}
		for x := 0; x < w; x++ {
			tmp[y*w+x] = sum / float64(count)
			if add := x + radius + 1; add < w {
				sum += row[add]
				count++
			}
			if rem := x - radius; rem >= 0 {
				sum -= row[rem]
				count--
			}
		}
	}
	// Vertical pass.
	for x := 0; x < w; x++ {
		var sum float64
		count := 0
		for y := 0; y < h && y <= radius; y++ {
			sum += tmp[y*w+x]
			count++
		}
		for y := 0; y < h; y++ {
			out[y*w+x] = sum / float64(count)
			if add := y + radius + 1; add < h {
				sum += tmp[add*w+x]
				count++
			}
			if rem := y - radius; rem >= 0 {
				sum -= tmp[rem*w+x]
				count--
			}
		}
	}
	return out
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(math.Round(v))
}

func dist(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func lerpPoint(a, b Point, t float64) Point {
	return Point{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t}
}

// bilinearSample samples an RGBA image at fractional coordinates, clamping to
// the image edges.
func bilinearSample(img *image.RGBA, x, y float64) (uint8, uint8, uint8, uint8) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if x > float64(w-1) {
		x = float64(w - 1)
	}
	if y > float64(h-1) {
		y = float64(h - 1)
	}
	x0, y0 := int(x), int(y)
	x1, y1 := x0+1, y0+1
	if x1 > w-1 {
		x1 = w - 1
	}
	if y1 > h-1 {
		y1 = h - 1
	}
	fx, fy := x-float64(x0), y-float64(y0)

	at := func(px, py int) (float64, float64, float64, float64) {
		off := py*img.Stride + px*4
		return float64(img.Pix[off]), float64(img.Pix[off+1]), float64(img.Pix[off+2]), float64(img.Pix[off+3])
	}
	r00, g00, b00, a00 := at(x0, y0)
	r10, g10, b10, a10 := at(x1, y0)
	r01, g01, b01, a01 := at(x0, y1)
	r11, g11, b11, a11 := at(x1, y1)

	mix := func(v00, v10, v01, v11 float64) uint8 {
		top := v00 + (v10-v00)*fx
		bot := v01 + (v11-v01)*fx
		return clampByte(top + (bot-top)*fy)
	}
	return mix(r00, r10, r01, r11), mix(g00, g10, g01, g11), mix(b00, b10, b01, b11), mix(a00, a10, a01, a11)
}
