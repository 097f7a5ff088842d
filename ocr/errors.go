package ocr

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies recognition failures for result reporting.
type ErrorKind string

const (
	KindTransport  ErrorKind = "transport"
	KindTimeout    ErrorKind = "timeout"
	KindValidation ErrorKind = "validation"
	KindUnknown    ErrorKind = "unknown"
)

// TransportError reports a network or HTTP-level failure reaching the
// recognition capability. Status is zero when no HTTP response was received.
type TransportError struct {
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("ocr: recognition request failed with status %d", e.Status)
	}
	return fmt.Sprintf("ocr: recognition request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TimeoutError reports that the per-request recognition bound elapsed.
type TimeoutError struct {
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("ocr: recognition timed out after %s", e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// ValidationError reports unusable caller input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "ocr: " + e.Reason }

// Kind classifies err into the recognition error taxonomy.
func Kind(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var te *TimeoutError
	if errors.As(err, &te) {
		return KindTimeout
	}
	var tre *TransportError
	if errors.As(err, &tre) {
		return KindTransport
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return KindValidation
	}
	return KindUnknown
}
