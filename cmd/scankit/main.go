// Command scankit runs the document-scanning pipeline from the command
// line: derivative generation, thumbnails, and text recognition against a
// remote capability or a local Tesseract installation.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/wudi/scankit/observability"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	// Optional .env for endpoint and API key configuration.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "scankit: load .env: %v\n", err)
	}

	level := zerolog.InfoLevel
	if os.Getenv("SCANKIT_DEBUG") != "" {
		level = zerolog.DebugLevel
	}
	log := observability.NewZerolog(
		zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger())

	var err error
	switch os.Args[1] {
	case "optimize":
		err = runOptimize(os.Args[2:], log)
	case "thumbs":
		err = runThumbs(os.Args[2:], log)
	case "recognize":
		err = runRecognize(os.Args[2:], log)
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "scankit: unknown command %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "scankit: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: scankit <command> [flags] <image...>

Commands:
  optimize   Produce an upload-sized derivative of a captured image
  thumbs     Produce low/medium/high preview thumbnails
  recognize  Extract text from one or more captured images

Environment:
  SCANKIT_ENDPOINT  Remote recognition URL (recognize)
  SCANKIT_API_KEY   Bearer token for the remote capability (recognize)
  SCANKIT_DEBUG     Enable debug logging when set
`)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}
