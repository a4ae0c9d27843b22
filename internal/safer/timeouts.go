package safer

import "time"

// Timeouts bounds every wait in the SAFER flow.
type Timeouts struct {
	Search         time.Duration
	Gate           time.Duration
	Link           time.Duration
	LinkClick      time.Duration
	TabLoad        time.Duration
	Additional     time.Duration
	AdditionalLoad time.Duration
	Field          time.Duration
}

// DefaultTimeouts mirrors the waits the SAFER pages have been tuned for.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Search:         10 * time.Second,
		Gate:           5 * time.Second,
		Link:           3 * time.Second,
		LinkClick:      10 * time.Second,
		TabLoad:        5 * time.Second,
		Additional:     5 * time.Second,
		AdditionalLoad: 3 * time.Second,
		Field:          5 * time.Second,
	}
}

// withDefaults fills zero durations from DefaultTimeouts.
func (t Timeouts) withDefaults() Timeouts {
	d := DefaultTimeouts()
	fill := func(v *time.Duration, def time.Duration) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&t.Search, d.Search)
	fill(&t.Gate, d.Gate)
	fill(&t.Link, d.Link)
	fill(&t.LinkClick, d.LinkClick)
	fill(&t.TabLoad, d.TabLoad)
	fill(&t.Additional, d.Additional)
	fill(&t.AdditionalLoad, d.AdditionalLoad)
	fill(&t.Field, d.Field)
	return t
}
