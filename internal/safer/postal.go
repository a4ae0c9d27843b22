package safer

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/mc-extractor/internal/model"
)

var (
	foreignPostalRe = regexp.MustCompile(`(?i)[A-Za-z]\d[A-Za-z][\s-]?\d[A-Za-z]\d$`)
	usZipRe         = regexp.MustCompile(`\d{5}(-\d{4})?$`)
	digitRe         = regexp.MustCompile(`\d`)
)

// CheckPostal validates the postal code at the end of an address. The
// trailing comma-separated token is tested, or the whole string when there
// is no comma. NFKC folds NBSP and fullwidth digits first. A
// Canadian-format code is rejected first; otherwise the token must look
// like a ZIP or at least contain a digit.
func CheckPostal(address string) model.GateReason {
	address = strings.TrimSpace(norm.NFKC.String(address))
	token := address
	if i := strings.LastIndex(address, ","); i >= 0 {
		token = strings.TrimSpace(address[i+1:])
	}

	if foreignPostalRe.MatchString(token) {
		return model.ReasonForeignAddress
	}
	if !usZipRe.MatchString(token) && !digitRe.MatchString(token) {
		return model.ReasonInvalidPostalCode
	}
	return ""
}
