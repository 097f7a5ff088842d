package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wudi/scankit/enhance"
	"github.com/wudi/scankit/imaging"
	"github.com/wudi/scankit/observability"
)

func runOptimize(args []string, log observability.Logger) error {
	fs := newFlagSet("optimize")
	maxWidth := fs.Int("max-width", 1920, "Maximum derivative width in pixels")
	maxHeight := fs.Int("max-height", 1920, "Maximum derivative height in pixels")
	targetKB := fs.Int64("target-kb", 800, "Encoded size ceiling in KiB (0 disables the search)")
	quality := fs.Float64("quality", 0.9, "Starting JPEG quality in (0,1]")
	doEnhance := fs.Bool("enhance", true, "Run the enhancement pipeline before encoding")
	out := fs.String("out", "", "Output path (default <input>.optimized.jpg)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("optimize: expected exactly one input image")
	}

	input := fs.Arg(0)
	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("read %s: %w", input, err)
	}

	opts := imaging.OptimizeOptions{
		MaxWidth:    *maxWidth,
		MaxHeight:   *maxHeight,
		TargetBytes: *targetKB << 10,
		Quality:     *quality,
	}
	if *doEnhance {
		eo := enhance.DefaultOptions()
		eo.Quality = *quality
		opts.Enhance = &eo
	}

	engine := imaging.New(imaging.WithLogger(log))
	res := engine.Optimize(context.Background(), data, opts)

	dest := *out
	if dest == "" {
		ext := filepath.Ext(input)
		dest = input[:len(input)-len(ext)] + ".optimized.jpg"
	}
	if err := os.WriteFile(dest, res.Derivative.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}

	fmt.Printf("%s: %d -> %d bytes", dest, res.OriginalSizeBytes, res.ProcessedSizeBytes)
	if res.Passthrough {
		fmt.Printf(" (passthrough)")
	} else {
		fmt.Printf(" (%dx%d, %d attempts, quality %.2f)",
			res.Derivative.Width, res.Derivative.Height, res.Attempts, res.Quality)
	}
	fmt.Println()
	if len(res.AppliedEnhancements) > 0 {
		fmt.Printf("enhancements: %v\n", res.AppliedEnhancements)
	}
	return nil
}
