package browser

import (
	"context"
	"time"
)

// Page is the page-interaction API the profile flow is written against.
// Session implements it on top of rod; tests substitute an in-memory page.
type Page interface {
	// Navigate loads url and returns once the DOM content has loaded.
	Navigate(ctx context.Context, url string) error
	// WaitIdle waits, best effort, for network activity to settle.
	WaitIdle(ctx context.Context)
	Reload(ctx context.Context) error

	// Query waits up to timeout for the first visible element matching selector.
	Query(ctx context.Context, selector string, timeout time.Duration) (Element, error)
	// QueryAll returns every element matching selector in document order, without waiting.
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	// ByLabel returns form controls whose accessible label matches the
	// case-insensitive pattern.
	ByLabel(ctx context.Context, pattern string) ([]Element, error)
	// Links and Buttons return visible elements of that role whose
	// accessible name matches the case-insensitive pattern.
	Links(ctx context.Context, pattern string) ([]Element, error)
	Buttons(ctx context.Context, pattern string) ([]Element, error)
	// FindText reports whether visible page text matches the
	// case-insensitive pattern, and what it matched.
	FindText(ctx context.Context, pattern string) (string, bool, error)

	Screenshot(ctx context.Context) ([]byte, error)
	HTML(ctx context.Context) (string, error)
}

// Element is a handle to one DOM element.
type Element interface {
	Fill(ctx context.Context, value string) error
	Click(ctx context.Context) error
	PressEnter(ctx context.Context) error
	Value(ctx context.Context) (string, error)
	Visible(ctx context.Context) (bool, error)
}
