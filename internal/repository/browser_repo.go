package repository

import (
	"context"
	"time"
)

// Element is a handle to a node of the currently loaded page. Handles become
// stale once the browser navigates elsewhere.
type Element interface {
	// Find returns the descendants matching a CSS selector, possibly none.
	Find(ctx context.Context, selector string) ([]Element, error)
	// Text returns the text content of the element.
	Text(ctx context.Context) (string, error)
	// Attr returns the value of an attribute and whether it was present.
	Attr(ctx context.Context, name string) (string, bool, error)
	// Visible reports whether the element is currently rendered.
	Visible(ctx context.Context) (bool, error)
	// Click activates the element.
	Click(ctx context.Context) error
}

// Browser is the capability the meeting scraper needs from a browser
// automation backend.
type Browser interface {
	// Open navigates to url and waits for the page to load.
	Open(ctx context.Context, url string) error
	// Find returns the elements of the current page matching a CSS selector.
	Find(ctx context.Context, selector string) ([]Element, error)
	// WaitVisible blocks until an element matching selector, searched below
	// scope (or the whole page if scope is nil), is visible. It returns
	// ErrWaitTimeout when timeout elapses first.
	WaitVisible(ctx context.Context, scope Element, selector string, timeout time.Duration) error
	// Close releases the browser session.
	Close() error
}

// BrowserLauncher starts browser sessions.
type BrowserLauncher interface {
	Launch(ctx context.Context) (Browser, error)
}
