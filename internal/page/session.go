// Package page drives a single interactive page session against a remote
// multi-page web flow. Two backends exist: a headless Chrome session
// (chromedp) and a plain HTTP session with an in-process DOM (resty +
// goquery).
package page

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned when no element matches a locator before its wait expires.
var ErrNotFound = eris.New("page: element not found")

// Locator selects an element by CSS query plus optional text filters.
// The first element in document order satisfying every filter wins.
type Locator struct {
	Name     string `yaml:"name"`
	CSS      string `yaml:"css"`
	Contains string `yaml:"contains,omitempty"`
	MaxLen   int    `yaml:"max_len,omitempty"`
}

func (l Locator) String() string {
	if l.Name != "" {
		return l.Name
	}
	return l.CSS
}

// Element is a located node's rendered text.
type Element struct {
	Text string
}

// Artifact is a diagnostic capture of the current page.
type Artifact struct {
	Ext  string
	Data []byte
}

// Reader locates elements on the current page without changing it.
type Reader interface {
	Find(ctx context.Context, loc Locator, wait time.Duration) (Element, error)
}

// Session is an exclusive, stateful page session. It is not safe for
// concurrent use; one worker owns it for the duration of a batch.
type Session interface {
	Reader
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, loc Locator, wait time.Duration) error
	Fill(ctx context.Context, loc Locator, value string, wait time.Duration) error
	TabCount(ctx context.Context) (int, error)
	SwitchToLatestTab(ctx context.Context) error
	WaitLoaded(ctx context.Context, wait time.Duration) error
	CloseExtraTabs(ctx context.Context) error
	Snapshot(ctx context.Context) (Artifact, error)
	Close() error
}

// Factory opens a new session.
type Factory func(ctx context.Context) (Session, error)

// matches applies the locator's text filters to rendered text.
func (l Locator) matches(text string) bool {
	if l.Contains != "" && !strings.Contains(text, l.Contains) {
		return false
	}
	if l.MaxLen > 0 && len([]rune(text)) >= l.MaxLen {
		return false
	}
	return true
}
