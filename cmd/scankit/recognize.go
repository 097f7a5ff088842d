package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/wudi/scankit/document"
	"github.com/wudi/scankit/observability"
	"github.com/wudi/scankit/ocr"
	"github.com/wudi/scankit/ocr/remote"
	"github.com/wudi/scankit/ocr/tesseract"
	"github.com/wudi/scankit/queue"
)

func runRecognize(args []string, log observability.Logger) error {
	fs := newFlagSet("recognize")
	engineName := fs.String("engine", "remote", "Recognition engine: remote or tesseract")
	endpoint := fs.String("endpoint", os.Getenv("SCANKIT_ENDPOINT"), "Remote recognition URL")
	apiKey := fs.String("api-key", os.Getenv("SCANKIT_API_KEY"), "Bearer token for the remote capability")
	lang := fs.String("lang", string(ocr.LanguageAuto), "Language hint (e.g. eng, deu, auto)")
	workers := fs.Int("workers", queue.DefaultMaxWorkers, "Concurrent recognition requests")
	sequential := fs.Bool("sequential", false, "Process inputs strictly in order, stopping on first failure")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("recognize: expected at least one input image")
	}

	var engine ocr.Engine
	switch *engineName {
	case "remote":
		e, err := remote.New(remote.Config{
			Endpoint: *endpoint,
			APIKey:   *apiKey,
			Logger:   log,
		})
		if err != nil {
			return err
		}
		engine = e
	case "tesseract":
		engine = tesseract.New()
	default:
		return fmt.Errorf("recognize: unknown engine %q", *engineName)
	}

	if *sequential {
		return recognizeSequential(engine, fs.Args(), log)
	}
	return recognizeQueued(engine, fs.Args(), *lang, *workers, log)
}

// recognizeSequential drives the page-by-page coordinator: deterministic
// order, stop on first failure.
func recognizeSequential(engine ocr.Engine, inputs []string, log observability.Logger) error {
	pages := make([]*document.Page, 0, len(inputs))
	for i, input := range inputs {
		data, err := os.ReadFile(input)
		if err != nil {
			return fmt.Errorf("read %s: %w", input, err)
		}
		pages = append(pages, document.NewPage(data, i))
	}

	coord := document.NewCoordinator(engine, document.WithLogger(log))
	err := coord.ProcessPages(context.Background(), pages)
	for i, page := range pages {
		if text, ok := page.Text(); ok {
			fmt.Printf("--- %s ---\n%s\n", inputs[i], text)
		} else {
			fmt.Printf("--- %s --- (not extracted)\n", inputs[i])
		}
	}
	return err
}

// recognizeQueued submits every input to the bounded-concurrency queue and
// waits for all results. Failures are reported per input and do not block
// the others.
func recognizeQueued(engine ocr.Engine, inputs []string, lang string, workers int, log observability.Logger) error {
	m := queue.New(engine,
		queue.WithMaxWorkers(workers),
		queue.WithLogger(log))
	defer m.Close()

	var wg sync.WaitGroup
	wg.Add(len(inputs))

	var mu sync.Mutex
	failures := 0
	unsubscribe := m.Subscribe(func(r queue.Result) {
		defer wg.Done()
		if r.Err != nil {
			mu.Lock()
			failures++
			mu.Unlock()
			fmt.Printf("--- %s --- (not extracted: %s)\n", r.TaskID, r.ErrorKind())
			return
		}
		fmt.Printf("--- %s ---\n%s\n", r.TaskID, r.Text)
	})
	defer unsubscribe()

	// The input path doubles as the task id, so results can be attributed
	// without extra bookkeeping.
	for _, input := range inputs {
		data, err := os.ReadFile(input)
		if err != nil {
			return fmt.Errorf("read %s: %w", input, err)
		}
		m.Submit(ocr.Input{
			ID:       input,
			Image:    data,
			Language: ocr.Language(lang),
		})
	}

	wg.Wait()
	if failures > 0 {
		return fmt.Errorf("recognize: %d of %d inputs failed", failures, len(inputs))
	}
	return nil
}
