package safer

import (
	"context"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mc-extractor/internal/model"
	"github.com/sells-group/mc-extractor/internal/page"
)

var phoneStripRe = regexp.MustCompile(`[^\d()\- ]`)

// Extractor follows the results link from an eligible snapshot page and
// reads the contact fields.
type Extractor struct {
	loc Locators
	t   Timeouts
	log *zap.Logger
}

// NewExtractor returns an extractor for the given profile.
func NewExtractor(loc Locators, t Timeouts) *Extractor {
	return &Extractor{
		loc: loc,
		t:   t.withDefaults(),
		log: zap.L().With(zap.String("component", "safer.extract")),
	}
}

// Extract navigates to the contact page and reads every field. A missing
// results link yields a NoFollowOnLink gate failure. Field misses become
// sentinels. Extra tabs are closed before returning on every path.
func (e *Extractor) Extract(ctx context.Context, s page.Session) (ext model.Extraction, err error) {
	defer func() {
		if cerr := s.CloseExtraTabs(ctx); cerr != nil && err == nil {
			err = eris.Wrap(cerr, "safer: close extra tabs")
		}
	}()

	noLink := model.Extraction{Gate: model.Fail(model.ReasonNoFollowOnLink)}

	if _, err := s.Find(ctx, e.loc.ResultsLink, e.t.Link); err != nil {
		return noLink, nil
	}
	if err := s.Click(ctx, e.loc.ResultsLink, e.t.LinkClick); err != nil {
		if eris.Is(err, page.ErrNotFound) {
			return noLink, nil
		}
		return model.Extraction{}, eris.Wrap(err, "safer: follow results link")
	}

	tabs, err := s.TabCount(ctx)
	if err != nil {
		return model.Extraction{}, eris.Wrap(err, "safer: count tabs")
	}
	if tabs > 1 {
		if err := s.SwitchToLatestTab(ctx); err != nil {
			return model.Extraction{}, eris.Wrap(err, "safer: switch tab")
		}
	}
	if err := s.WaitLoaded(ctx, e.t.TabLoad); err != nil {
		return noLink, nil
	}

	// The detail page is optional: any failure to reach it leaves the
	// fields to be read from the current page.
	if err := s.Click(ctx, e.loc.AdditionalLink, e.t.Additional); err != nil {
		if eris.Is(err, page.ErrNotFound) {
			e.log.Debug("no additional detail link")
		} else {
			e.log.Warn("additional detail link failed", zap.Error(err))
		}
	} else {
		_ = s.WaitLoaded(ctx, e.t.AdditionalLoad)
	}

	contact := model.ContactRecord{
		CompanyName: e.companyName(ctx, s),
		Address:     e.address(ctx, s),
		Email:       e.email(ctx, s),
		Phone:       e.phone(ctx, s),
	}
	return model.Extraction{Gate: model.Pass(), Contact: &contact}, nil
}

// field reads one locator's text, or returns "" on any miss.
func (e *Extractor) field(ctx context.Context, r page.Reader, loc page.Locator) string {
	el, err := r.Find(ctx, loc, e.t.Field)
	if err != nil {
		e.log.Debug("field not found", zap.String("field", loc.String()), zap.Error(err))
		return ""
	}
	return strings.TrimSpace(el.Text)
}

func (e *Extractor) companyName(ctx context.Context, r page.Reader) string {
	if v := e.field(ctx, r, e.loc.Fields.CompanyName); v != "" {
		return v
	}
	return model.CompanyNameNotFound
}

func (e *Extractor) address(ctx context.Context, r page.Reader) string {
	v := e.field(ctx, r, e.loc.Fields.Address)
	v = strings.TrimSpace(strings.TrimPrefix(v, "Address:"))
	if v == "" {
		return model.AddressNotFound
	}
	return v
}

// email tries the fast locators without waiting, accepting the first
// match whose text has an "@", then the bounded catch-all locator.
func (e *Extractor) email(ctx context.Context, r page.Reader) string {
	for _, loc := range e.loc.Fields.EmailFast {
		el, err := r.Find(ctx, loc, 0)
		if err != nil {
			continue
		}
		if text := strings.TrimSpace(el.Text); strings.Contains(text, "@") {
			return text
		}
	}
	if v := e.field(ctx, r, e.loc.Fields.Email); v != "" {
		return v
	}
	return model.EmailNotFound
}

func (e *Extractor) phone(ctx context.Context, r page.Reader) string {
	v := strings.TrimSpace(phoneStripRe.ReplaceAllString(e.field(ctx, r, e.loc.Fields.Phone), ""))
	if v == "" {
		return model.PhoneNotFound
	}
	return v
}
