// Package remote implements an ocr.Engine backed by an HTTP text-recognition
// capability: one bounded-duration JSON request per image, with the image
// payload base64-encoded in the body. Failures are surfaced as typed errors;
// the client never retries.
package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wudi/scankit/observability"
	"github.com/wudi/scankit/ocr"
)

// DefaultTimeout bounds a single recognition request.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of an error response is read for diagnostics.
const maxErrorBody = 4 << 10

// Config describes the remote recognition capability.
type Config struct {
	// Endpoint is the recognition URL. Required.
	Endpoint string
	// APIKey, when set, is sent as a bearer token.
	APIKey string
	// HTTPClient overrides the default client. Timeouts are enforced per
	// request via context regardless of the client's own timeout.
	HTTPClient *http.Client
	// Timeout bounds each request. Zero means DefaultTimeout.
	Timeout time.Duration
	// Logger receives request-level diagnostics.
	Logger observability.Logger
}

// Engine is an HTTP-backed recognition engine.
type Engine struct {
	endpoint string
	apiKey   string
	client   *http.Client
	timeout  time.Duration
	log      observability.Logger
}

// New constructs a remote Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Endpoint == "" {
		return nil, &ocr.ValidationError{Reason: "remote: endpoint is required"}
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Engine{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   client,
		timeout:  timeout,
		log:      log,
	}, nil
}

func (e *Engine) Name() string { return "remote" }

// request is the wire format sent to the recognition capability.
type request struct {
	Image       string `json:"image"`
	Format      string `json:"format"`
	Language    string `json:"language,omitempty"`
	Instruction string `json:"instruction,omitempty"`
}

// response is the wire format returned by the recognition capability.
type response struct {
	Text string `json:"text"`
}

// Recognize issues one recognition request for the input. The request is
// bounded by the engine timeout independent of any deadline already on ctx;
// an elapsed bound yields *ocr.TimeoutError, any other HTTP or transport
// failure yields *ocr.TransportError.
func (e *Engine) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	if len(in.Image) == 0 {
		return ocr.Result{}, &ocr.ValidationError{Reason: "remote: empty image"}
	}
	format := in.Format
	if format == "" {
		format = ocr.ImageFormatJPEG
	}
	language := in.Language
	if language == "" {
		language = ocr.LanguageAuto
	}

	in.Report("uploading image")
	body, err := json.Marshal(request{
		Image:       base64.StdEncoding.EncodeToString(in.Image),
		Format:      string(format),
		Language:    string(language),
		Instruction: in.Instruction,
	})
	if err != nil {
		return ocr.Result{}, fmt.Errorf("remote: marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return ocr.Result{}, fmt.Errorf("remote: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	start := time.Now()
	in.Report("recognizing text")
	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			e.log.Warn("recognition timed out",
				observability.String("input", in.ID),
				observability.Int64("elapsed_ms", time.Since(start).Milliseconds()))
			return ocr.Result{}, &ocr.TimeoutError{Timeout: e.timeout, Err: err}
		}
		return ocr.Result{}, &ocr.TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		e.log.Warn("recognition rejected",
			observability.String("input", in.ID),
			observability.Int("status", resp.StatusCode),
			observability.String("body", string(snippet)))
		return ocr.Result{}, &ocr.TransportError{Status: resp.StatusCode}
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ocr.Result{}, &ocr.TransportError{Err: fmt.Errorf("decode response: %w", err)}
	}

	e.log.Debug("recognition complete",
		observability.String("input", in.ID),
		observability.Int("text_len", len(out.Text)),
		observability.Int64("elapsed_ms", time.Since(start).Milliseconds()))
	in.Report("text extracted")
	return ocr.Result{InputID: in.ID, Text: out.Text}, nil
}
