// Package browser abstracts the web-automation driver behind a small
// capability set (navigate, wait, click, type). The miner protocol only
// depends on Session/Factory, so tests can substitute fakes and the real
// Chrome driver stays confined to this package.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Selector locates a page element either by CSS query or XPath.
type Selector struct {
	Query string
	XPath bool
}

// CSS builds a CSS query selector.
func CSS(query string) Selector {
	return Selector{Query: query}
}

// XPath builds an XPath selector.
func XPath(query string) Selector {
	return Selector{Query: query, XPath: true}
}

// ID builds a selector matching an exact element id. Uses the attribute form
// because LuCI field ids contain dots, which a #id query would misparse.
func ID(id string) Selector {
	return Selector{Query: fmt.Sprintf("[id=%q]", id)}
}

// Name builds a selector matching an element's name attribute.
func Name(name string) Selector {
	return Selector{Query: fmt.Sprintf("[name=%q]", name)}
}

func (s Selector) String() string {
	if s.XPath {
		return "xpath:" + s.Query
	}
	return "css:" + s.Query
}

// Session is one live browser tab against one device. All methods must
// resolve within the supplied context or timeout; none may block unboundedly.
type Session interface {
	// Navigate loads the given URL and waits for the page load to settle.
	Navigate(ctx context.Context, url string) error
	// WaitVisible blocks until the element is rendered or the timeout elapses.
	WaitVisible(ctx context.Context, sel Selector, timeout time.Duration) error
	// WaitEnabled blocks until the element is interactable or the timeout elapses.
	WaitEnabled(ctx context.Context, sel Selector, timeout time.Duration) error
	// Exists reports whether at least one element matches right now, without waiting.
	Exists(ctx context.Context, sel Selector) (bool, error)
	// Count returns the number of elements currently matching.
	Count(ctx context.Context, sel Selector) (int, error)
	// Click activates the first matching element.
	Click(ctx context.Context, sel Selector) error
	// SetValue clears the first matching input and types the value.
	SetValue(ctx context.Context, sel Selector, value string) error
	// Close tears the session down. Safe to call exactly once per session.
	Close() error
}

// Factory opens fresh sessions. One session per miner operation; sessions are
// never shared or reused across operations.
type Factory interface {
	OpenSession(ctx context.Context) (Session, error)
}

// IsTimeout reports whether err stems from an expired wait deadline.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return strings.Contains(err.Error(), context.DeadlineExceeded.Error())
}
