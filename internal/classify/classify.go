// Package classify assigns an outcome tier to a processed carrier record.
package classify

import (
	"strings"
	"unicode"

	"github.com/sells-group/mc-extractor/internal/model"
)

// Classify maps an extraction to its tier. Any gate failure is Failed;
// otherwise the tier depends only on which contact channels were found.
func Classify(ext model.Extraction) model.Tier {
	if !ext.Gate.Passed() || ext.Contact == nil {
		return model.TierFailed
	}
	return FromContact(*ext.Contact)
}

// FromContact tiers a contact record: Success with both email and phone,
// Partial Success with one, Manual Check with neither. Company details
// never affect the tier.
func FromContact(c model.ContactRecord) model.Tier {
	email, phone := HasEmail(c), HasPhone(c)
	switch {
	case email && phone:
		return model.TierSuccess
	case email || phone:
		return model.TierPartialSuccess
	default:
		return model.TierManualCheck
	}
}

// HasCompanyInfo reports whether both name and address were found.
func HasCompanyInfo(c model.ContactRecord) bool {
	return found(c.CompanyName, model.CompanyNameNotFound) && found(c.Address, model.AddressNotFound)
}

// HasEmail reports whether the email field holds an address.
func HasEmail(c model.ContactRecord) bool {
	return found(c.Email, model.EmailNotFound) && strings.Contains(c.Email, "@")
}

// HasPhone reports whether the phone field holds at least one digit.
func HasPhone(c model.ContactRecord) bool {
	return found(c.Phone, model.PhoneNotFound) && strings.IndexFunc(c.Phone, unicode.IsDigit) >= 0
}

func found(v, sentinel string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != sentinel && v != model.NotAvailable
}

// Persist reports whether rows of tier t belong in the output sink.
func Persist(t model.Tier) bool {
	return t != model.TierFailed
}

// Outcome classifies ext for mc into a full outcome.
func Outcome(mc model.MCNumber, ext model.Extraction) model.Outcome {
	o := model.Outcome{MC: mc, Gate: ext.Gate, Tier: Classify(ext)}
	if ext.Gate.Passed() {
		o.Contact = ext.Contact
	}
	return o
}

// ErrorOutcome builds the distinctly tagged outcome for an unmodeled failure.
func ErrorOutcome(mc model.MCNumber, err error) model.Outcome {
	return model.Outcome{MC: mc, Tier: model.TierError, Err: err.Error()}
}
