package ocr

import "context"

// ImageFormat identifies the content type of a recognition input image.
type ImageFormat string

const (
	ImageFormatJPEG ImageFormat = "image/jpeg"
	ImageFormatPNG  ImageFormat = "image/png"
)

// Language is a recognition language hint.
type Language string

// LanguageAuto asks the provider to detect the language itself.
const LanguageAuto Language = "auto"

// Input encapsulates a single image submitted for recognition. Inputs are
// immutable once created.
type Input struct {
	// ID is an optional caller-provided identifier echoed back in the
	// corresponding Result. The task queue assigns one when empty.
	ID string
	// Image is the encoded image payload in the format declared by Format.
	Image []byte
	// Format declares the image content type. Empty means image/jpeg.
	Format ImageFormat
	// Language hints the document language; LanguageAuto or empty leaves
	// detection to the provider.
	Language Language
	// Instruction is free text forwarded to providers that accept one, for
	// example "extract all text preserving line breaks".
	Instruction string
	// Progress, when set, receives human-readable status strings while the
	// input is processed. Callbacks must return quickly.
	Progress func(status string)
}

// Result captures recognition output for a single input. Exactly one Result
// is produced per submitted input.
type Result struct {
	// InputID mirrors the Input.ID that produced this result.
	InputID string
	// Text is the extracted text, empty on failure.
	Text string
}

// Engine is the recognition provider contract: one image in, one result out.
// Implementations must honor ctx cancellation and deadlines.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, in Input) (Result, error)
}

// Report delivers a status string to the input's progress sink, if any.
func (in Input) Report(status string) {
	if in.Progress != nil {
		in.Progress(status)
	}
}
