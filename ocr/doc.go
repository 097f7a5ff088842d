// Package ocr defines the text-recognition abstraction used by the scanning
// pipeline. The Engine interface is intentionally small and
// transport-agnostic so recognition can be backed by a remote HTTP capability
// or a local native library without leaking provider concerns into callers.
package ocr
