package safer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/mc-extractor/internal/model"
	"github.com/sells-group/mc-extractor/internal/page"
)

// Chain evaluates gates in order on the loaded result page and stops at
// the first failure.
type Chain struct {
	gates []Gate
	wait  time.Duration
	log   *zap.Logger
}

// NewChain builds a chain over the given gates, each bounded by wait.
func NewChain(gates []Gate, wait time.Duration) *Chain {
	return &Chain{
		gates: gates,
		wait:  wait,
		log:   zap.L().With(zap.String("component", "safer.chain")),
	}
}

// EligibilityGates returns the five SAFER eligibility gates in evaluation
// order: carrier type, active status, property authority, general freight
// and postal validity.
func EligibilityGates(loc Locators) []Gate {
	return []Gate{
		{
			Name:    "carrier",
			Locator: loc.Gates.Carrier,
			Check:   Contains("CARRIER", model.ReasonNotCarrier),
			Missing: model.ReasonNoStatusSignal,
		},
		{
			Name:    "active",
			Locator: loc.Gates.Active,
			Check:   Contains("ACTIVE", model.ReasonNotActive),
			Missing: model.ReasonStatusCheckFailed,
		},
		{
			Name:    "authority",
			Locator: loc.Gates.Authority,
			Check:   Contains("AUTHORIZED FOR Property", model.ReasonNotAuthorizedProperty),
			Missing: model.ReasonAuthorizationCheckFailed,
		},
		{
			Name:    "general_freight",
			Locator: loc.Gates.Freight,
			Check:   Contains("X", model.ReasonNotGeneralFreight),
			Missing: model.ReasonFreightCheckFailed,
		},
		{
			Name:    "postal",
			Locator: loc.Gates.Address,
			Check:   CheckPostal,
			Missing: model.ReasonAddressNotFound,
		},
	}
}

// Evaluate runs the gates in order. Gates after the first failure are
// never evaluated.
func (c *Chain) Evaluate(ctx context.Context, r page.Reader) model.GateResult {
	for _, g := range c.gates {
		res := g.Evaluate(ctx, r, c.wait)
		if !res.Passed() {
			c.log.Debug("gate failed",
				zap.String("gate", g.Name),
				zap.String("reason", string(res.Reason)),
			)
			return res
		}
	}
	return model.Pass()
}
