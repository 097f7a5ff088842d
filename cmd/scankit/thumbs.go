package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wudi/scankit/imaging"
	"github.com/wudi/scankit/observability"
)

func runThumbs(args []string, log observability.Logger) error {
	fs := newFlagSet("thumbs")
	outDir := fs.String("out", ".", "Directory for thumbnail output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("thumbs: expected at least one input image")
	}

	engine := imaging.New(imaging.WithLogger(log))
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", *outDir, err)
	}

	if fs.NArg() == 1 {
		input := fs.Arg(0)
		data, err := os.ReadFile(input)
		if err != nil {
			return fmt.Errorf("read %s: %w", input, err)
		}
		set := engine.Thumbnails(context.Background(), data)
		for suffix, d := range map[string]imaging.Derivative{
			"low": set.Low, "medium": set.Medium, "high": set.High,
		} {
			if err := writeThumb(*outDir, input, suffix, d); err != nil {
				return err
			}
		}
		return nil
	}

	// Multiple inputs run through the batched path with progress reporting.
	images := make([][]byte, 0, fs.NArg())
	for _, input := range fs.Args() {
		data, err := os.ReadFile(input)
		if err != nil {
			return fmt.Errorf("read %s: %w", input, err)
		}
		images = append(images, data)
	}
	results, err := engine.BatchThumbnails(context.Background(), images,
		imaging.MediumResSize, imaging.MediumResSize,
		func(done, total int) { fmt.Printf("thumbnails: %d/%d\n", done, total) })
	if err != nil {
		return err
	}
	for i, r := range results {
		if r.Err != nil {
			log.Warn("thumbnail fell back to original",
				observability.String("input", fs.Arg(i)),
				observability.Error("err", r.Err))
		}
		if err := writeThumb(*outDir, fs.Arg(i), "thumb", r.Derivative); err != nil {
			return err
		}
	}
	return nil
}

func writeThumb(dir, input, suffix string, d imaging.Derivative) error {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	dest := filepath.Join(dir, fmt.Sprintf("%s.%s.jpg", base, suffix))
	if err := os.WriteFile(dest, d.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	fmt.Printf("%s: %dx%d, %d bytes\n", dest, d.Width, d.Height, d.SizeBytes)
	return nil
}
