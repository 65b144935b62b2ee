// Package page provides an in-memory page backed by a parsed html
// document. It runs flows against saved html files and stands in for a
// browser tab in tests.
package page

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ClickHandler changes the document in reaction to a click.
type ClickHandler func(doc *goquery.Document)

type handler struct {
	selector string
	f        ClickHandler
}

// Document is a static page. Clicks run registered handlers, and every
// change to the document wakes up pending WaitForElement calls.
type Document struct {
	mu       sync.Mutex
	doc      *goquery.Document
	url      string
	session  map[string]string
	handlers []handler
	clicked  []string
	// changed is closed and replaced on every mutation
	changed chan struct{}
}

func NewDocument(url, html string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("error while parsing html: %w", err)
	}
	return &Document{
		doc:     doc,
		url:     url,
		session: map[string]string{},
		changed: make(chan struct{}),
	}, nil
}

// OnClick registers f to run whenever an element matching selector is clicked.
func (d *Document) OnClick(selector string, f ClickHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, handler{selector: selector, f: f})
}

// Mutate changes the document and notifies waiters.
func (d *Document) Mutate(f ClickHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f(d.doc)
	d.signal()
}

// signal must be called with d.mu held.
func (d *Document) signal() {
	close(d.changed)
	d.changed = make(chan struct{})
}

// Navigate changes the url of the page, like a redirect in the same tab.
// The session storage is kept.
func (d *Document) Navigate(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = url
}

// Clicked returns the selectors of all clicks that hit an element.
func (d *Document) Clicked() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.clicked...)
}

func (d *Document) URL(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, nil
}

func (d *Document) Text(ctx context.Context, selector string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if selector == "" {
		return d.doc.Find("body").Text(), nil
	}
	return d.doc.Find(selector).First().Text(), nil
}

func (d *Document) Click(ctx context.Context, selector string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sel := d.doc.Find(selector).First()
	if sel.Length() == 0 {
		return false, nil
	}
	d.clicked = append(d.clicked, selector)
	hit := false
	for _, h := range d.handlers {
		if sel.Is(h.selector) {
			h.f(d.doc)
			hit = true
		}
	}
	if hit {
		d.signal()
	}
	return true, nil
}

func (d *Document) WaitForElement(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		d.mu.Lock()
		found := d.doc.Find(selector).Length() > 0
		changed := d.changed
		d.mu.Unlock()
		if found {
			return true, nil
		}
		select {
		case <-changed:
		case <-timer.C:
			return false, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

func (d *Document) SessionValue(ctx context.Context, key string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session[key], nil
}

func (d *Document) SetSessionValue(ctx context.Context, key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.session[key] = value
	return nil
}
