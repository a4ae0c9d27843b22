package safer

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mc-extractor/internal/model"
	"github.com/sells-group/mc-extractor/internal/page"
)

// Pipeline runs the full SAFER flow for one MC number: search, gate
// chain, then field extraction when every gate passes.
type Pipeline struct {
	loc       Locators
	t         Timeouts
	chain     *Chain
	extractor *Extractor
	log       *zap.Logger
}

// NewPipeline builds the SAFER pipeline from a locator profile.
func NewPipeline(loc Locators, t Timeouts) *Pipeline {
	t = t.withDefaults()
	return &Pipeline{
		loc:       loc,
		t:         t,
		chain:     NewChain(EligibilityGates(loc), t.Gate),
		extractor: NewExtractor(loc, t),
		log:       zap.L().With(zap.String("component", "safer.pipeline")),
	}
}

// Run processes one MC number on s. Gate failures are returned as an
// Extraction, not an error; an error means the session itself failed.
func (p *Pipeline) Run(ctx context.Context, s page.Session, mc model.MCNumber) (model.Extraction, error) {
	if err := p.search(ctx, s, mc); err != nil {
		return model.Extraction{}, err
	}

	if res := p.chain.Evaluate(ctx, s); !res.Passed() {
		p.log.Info("carrier ineligible",
			zap.Int("mc", int(mc)),
			zap.String("reason", string(res.Reason)),
		)
		return model.Extraction{Gate: res}, nil
	}

	ext, err := p.extractor.Extract(ctx, s)
	if err != nil {
		return model.Extraction{}, eris.Wrapf(err, "safer: extract mc %d", mc)
	}
	return ext, nil
}

func (p *Pipeline) search(ctx context.Context, s page.Session, mc model.MCNumber) error {
	if err := s.Navigate(ctx, p.loc.SnapshotURL); err != nil {
		return eris.Wrapf(err, "safer: open snapshot search for mc %d", mc)
	}
	if err := s.Click(ctx, p.loc.Search.Radio, p.t.Search); err != nil {
		return eris.Wrapf(err, "safer: select MC search for mc %d", mc)
	}
	if err := s.Fill(ctx, p.loc.Search.Query, mc.String(), p.t.Search); err != nil {
		return eris.Wrapf(err, "safer: enter mc %d", mc)
	}
	if err := s.Click(ctx, p.loc.Search.Submit, p.t.Search); err != nil {
		return eris.Wrapf(err, "safer: submit search for mc %d", mc)
	}
	return nil
}
