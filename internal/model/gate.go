package model

// GateReason identifies why a carrier record was ruled ineligible.
type GateReason string

const (
	ReasonNotCarrier               GateReason = "not_carrier"
	ReasonNoStatusSignal           GateReason = "no_status_signal"
	ReasonNotActive                GateReason = "not_active"
	ReasonStatusCheckFailed        GateReason = "status_check_failed"
	ReasonNotAuthorizedProperty    GateReason = "not_authorized_property"
	ReasonAuthorizationCheckFailed GateReason = "authorization_check_failed"
	ReasonNotGeneralFreight        GateReason = "not_general_freight"
	ReasonFreightCheckFailed       GateReason = "freight_check_failed"
	ReasonInvalidPostalCode        GateReason = "invalid_postal_code"
	ReasonForeignAddress           GateReason = "foreign_address_disallowed"
	ReasonAddressNotFound          GateReason = "address_not_found"
	ReasonNoFollowOnLink           GateReason = "no_follow_on_link"
)

var reasonLabels = map[GateReason]string{
	ReasonNotCarrier:               "Not a CARRIER",
	ReasonNoStatusSignal:           "No Entity Type Found",
	ReasonNotActive:                "Not ACTIVE",
	ReasonStatusCheckFailed:        "Status Check Failed",
	ReasonNotAuthorizedProperty:    "Not AUTHORIZED FOR Property",
	ReasonAuthorizationCheckFailed: "Authorization Check Failed",
	ReasonNotGeneralFreight:        "Not General Freight",
	ReasonFreightCheckFailed:       "General Freight Check Failed",
	ReasonInvalidPostalCode:        "Address without Valid Postal Code",
	ReasonForeignAddress:           "Canadian Address Not Allowed",
	ReasonAddressNotFound:          "Address Not Found",
	ReasonNoFollowOnLink:           "No SMS Link Found",
}

// AllGateReasons returns every defined reason.
func AllGateReasons() []GateReason {
	return []GateReason{
		ReasonNotCarrier,
		ReasonNoStatusSignal,
		ReasonNotActive,
		ReasonStatusCheckFailed,
		ReasonNotAuthorizedProperty,
		ReasonAuthorizationCheckFailed,
		ReasonNotGeneralFreight,
		ReasonFreightCheckFailed,
		ReasonInvalidPostalCode,
		ReasonForeignAddress,
		ReasonAddressNotFound,
		ReasonNoFollowOnLink,
	}
}

// Label returns the human-readable text shown in result views.
func (r GateReason) Label() string {
	if l, ok := reasonLabels[r]; ok {
		return l
	}
	return string(r)
}

// Parent returns the broader reason this one refines, or "" if none.
func (r GateReason) Parent() GateReason {
	if r == ReasonForeignAddress {
		return ReasonInvalidPostalCode
	}
	return ""
}

// Is reports whether r equals target or refines it.
func (r GateReason) Is(target GateReason) bool {
	return r == target || (r.Parent() != "" && r.Parent() == target)
}

// GateResult is the outcome of one gate or of the whole gate chain.
// The zero value is a pass.
type GateResult struct {
	Reason GateReason `json:"reason,omitempty"`
}

// Pass returns a passing result.
func Pass() GateResult { return GateResult{} }

// Fail returns a failing result tagged with reason.
func Fail(reason GateReason) GateResult { return GateResult{Reason: reason} }

// Passed reports whether the result carries no failure reason.
func (g GateResult) Passed() bool { return g.Reason == "" }

func (g GateResult) String() string {
	if g.Passed() {
		return "pass"
	}
	return "fail(" + string(g.Reason) + ")"
}
