package model

// Tier is the classification of a processed MC number.
type Tier string

const (
	TierSuccess        Tier = "Success"
	TierPartialSuccess Tier = "Partial Success"
	TierManualCheck    Tier = "Manual Check"
	TierFailed         Tier = "Failed"
	// TierError marks a row produced by an unexpected session fault rather
	// than a modeled ineligibility.
	TierError Tier = "Error"
)

// AllTiers returns the tiers in reporting order.
func AllTiers() []Tier {
	return []Tier{TierSuccess, TierPartialSuccess, TierManualCheck, TierFailed, TierError}
}

// ParseTier maps a label back to a Tier. Unknown labels return false.
func ParseTier(s string) (Tier, bool) {
	for _, t := range AllTiers() {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}
