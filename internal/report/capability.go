package report

import (
	"context"
	"errors"
	"time"
)

// ErrNoElement is returned by QuerySelector when nothing matches.
var ErrNoElement = errors.New("no element matched")

// Engine creates pages. Implementations own whatever browser process or
// parsed document backs them and free it in Close.
type Engine interface {
	NewPage(ctx context.Context, url string) (Page, error)
	Close() error
}

// Page is one browser tab.
type Page interface {
	Navigate(ctx context.Context, url string) error

	// WaitForText blocks until text is part of the rendered page or the
	// timeout elapses.
	WaitForText(ctx context.Context, text string, timeout time.Duration) error

	// QuerySelector returns the first element matching selector, or
	// ErrNoElement.
	QuerySelector(ctx context.Context, selector string) (Element, error)

	Close() error
}

// Element is a handle to one DOM node. It must be released exactly once.
type Element interface {
	Text(ctx context.Context) (string, error)
	Release(ctx context.Context) error
}
