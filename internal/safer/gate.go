// Package safer implements the SAFER Company Snapshot flow: the search
// step, the eligibility gate chain and the contact field extractor.
package safer

import (
	"context"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/mc-extractor/internal/model"
	"github.com/sells-group/mc-extractor/internal/page"
)

// Gate is one eligibility check against a located element's text.
type Gate struct {
	Name    string
	Locator page.Locator
	// Check returns "" when the text passes, else the failure reason.
	Check func(text string) model.GateReason
	// Missing is the reason reported when the element cannot be located.
	Missing model.GateReason
}

// Evaluate reads the gate's element and applies its check. It never
// returns an error: every lookup failure, including cancellation,
// resolves to the gate's Missing reason.
func (g Gate) Evaluate(ctx context.Context, r page.Reader, wait time.Duration) model.GateResult {
	el, err := r.Find(ctx, g.Locator, wait)
	if err != nil {
		return model.Fail(g.Missing)
	}
	// Compatibility forms fold for matching only; extracted fields keep
	// the page text.
	if reason := g.Check(strings.TrimSpace(norm.NFKC.String(el.Text))); reason != "" {
		return model.Fail(reason)
	}
	return model.Pass()
}

// Contains builds a check that requires substr in the text.
func Contains(substr string, notFound model.GateReason) func(string) model.GateReason {
	return func(text string) model.GateReason {
		if strings.Contains(text, substr) {
			return ""
		}
		return notFound
	}
}
