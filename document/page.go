// Package document models multi-page scanned documents and coordinates
// page-by-page recognition.
package document

import (
	"sync"

	"github.com/google/uuid"
)

// PageStatus is the explicit processing state of a page. An explicit tag
// (rather than inferring state from text presence) keeps "not yet processed"
// distinguishable from "processed with an empty result".
type PageStatus int

const (
	StatusUnprocessed PageStatus = iota
	StatusProcessing
	StatusDone
	StatusFailed
)

func (s PageStatus) String() string {
	switch s {
	case StatusUnprocessed:
		return "unprocessed"
	case StatusProcessing:
		return "processing"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Page is one captured page of a document. The image payload and order are
// immutable; processing state is guarded so UI code can read it while the
// coordinator works.
type Page struct {
	ID    string
	Image []byte
	// Order defines the page sequence within its document.
	Order int

	mu     sync.Mutex
	status PageStatus
	text   string
	err    error
}

// NewPage creates an unprocessed page with a fresh id.
func NewPage(image []byte, order int) *Page {
	return &Page{ID: uuid.NewString(), Image: image, Order: order}
}

// Status returns the page's processing state.
func (p *Page) Status() PageStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Text returns the extracted text and whether recognition has completed
// successfully. The text may legitimately be empty for a blank page.
func (p *Page) Text() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.text, p.status == StatusDone
}

// Err returns the recognition failure, if the page is in StatusFailed.
func (p *Page) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Page) setProcessing() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = StatusProcessing
	p.err = nil
}

func (p *Page) setDone(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = StatusDone
	p.text = text
	p.err = nil
}

func (p *Page) setFailed(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = StatusFailed
	p.text = ""
	p.err = err
}
