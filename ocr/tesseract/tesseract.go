// Package tesseract implements an ocr.Engine on the local Tesseract library
// via gosseract, for recognition without a network round-trip.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/wudi/scankit/ocr"
)

// Engine recognizes text with a local Tesseract installation.
type Engine struct {
	clientFactory func() *gosseract.Client
}

// New constructs a Tesseract-backed engine.
func New() *Engine {
	return &Engine{clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize performs OCR on a single input. The language hint maps directly
// to Tesseract trained-data names ("eng", "deu", ...); LanguageAuto leaves
// Tesseract's default in place.
func (e *Engine) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	if len(in.Image) == 0 {
		return ocr.Result{}, &ocr.ValidationError{Reason: "tesseract: empty image"}
	}
	select {
	case <-ctx.Done():
		return ocr.Result{}, ctx.Err()
	default:
	}

	c := e.clientFactory()
	defer c.Close()

	in.Report("recognizing text")
	if err := c.SetImageFromBytes(in.Image); err != nil {
		return ocr.Result{}, fmt.Errorf("tesseract: set image: %w", err)
	}
	if in.Language != "" && in.Language != ocr.LanguageAuto {
		if err := c.SetLanguage(string(in.Language)); err != nil {
			return ocr.Result{}, fmt.Errorf("tesseract: set language: %w", err)
		}
	}
	text, err := c.Text()
	if err != nil {
		return ocr.Result{}, fmt.Errorf("tesseract: recognize: %w", err)
	}
	in.Report("text extracted")
	return ocr.Result{InputID: in.ID, Text: strings.TrimSpace(text)}, nil
}
