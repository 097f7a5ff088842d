package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// EncodeError reports a failed decode or encode. The engine's public entry
// points never surface it; it exists for the internal degrade paths and for
// callers of the low-level helpers.
type EncodeError struct {
	Op  string
	Err error
}

func (e *EncodeError) Error() string { return fmt.Sprintf("imaging: %s: %v", e.Op, e.Err) }
func (e *EncodeError) Unwrap() error { return e.Err }

// Decode parses an encoded JPEG or PNG image.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &EncodeError{Op: "decode", Err: err}
	}
	return img, nil
}

// EncodeJPEG encodes img at quality in (0,1].
func EncodeJPEG(img image.Image, quality float64) ([]byte, error) {
	q := int(quality * 100)
	if q < 1 {
		q = 1
	}
	if q > 100 {
		q = 100
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		return nil, &EncodeError{Op: "encode jpeg", Err: err}
	}
	return buf.Bytes(), nil
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, &EncodeError{Op: "encode png", Err: err}
	}
	return buf.Bytes(), nil
}

// scaleTo resamples img to exactly width×height with Catmull-Rom
// interpolation.
func scaleTo(img image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// fitWithin computes the largest dimensions that fit inside maxW×maxH while
// preserving aspect ratio. Scaling is downward only; dimensions already
// within the bounds are returned unchanged. Zero bounds mean unbounded.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	scale := 1.0
	if maxW > 0 && w > maxW {
		scale = float64(maxW) / float64(w)
	}
	if maxH > 0 && h > maxH {
		if s := float64(maxH) / float64(h); s < scale {
			scale = s
		}
	}
	if scale >= 1 {
		return w, h
	}
	nw, nh := int(float64(w)*scale), int(float64(h)*scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}

// coverCrop returns the centered sub-rectangle of b with the target aspect
// ratio, used to fill fixed thumbnail footprints without distortion.
func coverCrop(b image.Rectangle, targetW, targetH int) image.Rectangle {
	w, h := b.Dx(), b.Dy()
	srcAspect := float64(w) / float64(h)
	dstAspect := float64(targetW) / float64(targetH)
	if srcAspect > dstAspect {
		cw := int(float64(h) * dstAspect)
		x0 := b.Min.X + (w-cw)/2
		return image.Rect(x0, b.Min.Y, x0+cw, b.Max.Y)
	}
	ch := int(float64(w) / dstAspect)
	y0 := b.Min.Y + (h-ch)/2
	return image.Rect(b.Min.X, y0, b.Max.X, y0+ch)
}

// cropScale crops img to the target aspect ratio around its center and
// scales the result to exactly targetW×targetH.
func cropScale(img image.Image, targetW, targetH int) image.Image {
	crop := coverCrop(img.Bounds(), targetW, targetH)
	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, crop, draw.Over, nil)
	return dst
}
