package safer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mc-extractor/internal/model"
	"github.com/sells-group/mc-extractor/internal/page"
	"github.com/sells-group/mc-extractor/internal/resilience"
	"github.com/sells-group/mc-extractor/internal/safer/safertest"
)

func newPipeline(t *testing.T, carriers map[int]safertest.Carrier) (*Pipeline, *page.HTTPSession, *safertest.Server) {
	t.Helper()
	srv := safertest.NewServer(t, carriers)

	loc := DefaultLocators()
	loc.SnapshotURL = srv.SnapshotURL()

	sess, err := page.NewHTTPSession(page.HTTPConfig{
		Timeout: 5 * time.Second,
		Retry:   resilience.RetryConfig{MaxAttempts: 1},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })

	short := Timeouts{
		Search: time.Second, Gate: time.Second, Link: time.Second, LinkClick: time.Second,
		TabLoad: time.Second, Additional: time.Second, AdditionalLoad: time.Second, Field: time.Second,
	}
	return NewPipeline(loc, short), sess, srv
}

func TestPipeline_EligibleCarrier(t *testing.T) {
	p, sess, srv := newPipeline(t, map[int]safertest.Carrier{1706527: safertest.Acme()})
	ctx := context.Background()

	ext, err := p.Run(ctx, sess, 1706527)
	require.NoError(t, err)
	require.True(t, ext.Gate.Passed())
	require.NotNil(t, ext.Contact)

	assert.Equal(t, model.ContactRecord{
		CompanyName: "ACME TRUCKING",
		Address:     "100 MAIN ST, SPRINGFIELD, IL 62704",
		Email:       "ops@acme.example",
		Phone:       "(217) 555-0100",
	}, *ext.Contact)

	assert.Equal(t, 1, srv.Hits("/registration"))
	tabs, err := sess.TabCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, tabs, "extra tabs are closed after extraction")
}

func TestPipeline_NoAdditionalLinkIsSkipped(t *testing.T) {
	c := safertest.Acme()
	c.NoAdditional = true
	p, sess, srv := newPipeline(t, map[int]safertest.Carrier{5: c})

	ext, err := p.Run(context.Background(), sess, 5)
	require.NoError(t, err)
	require.NotNil(t, ext.Contact)
	assert.Equal(t, "ACME TRUCKING", ext.Contact.CompanyName)
	assert.Equal(t, 0, srv.Hits("/registration"))
}

func TestPipeline_MissingFieldsUseSentinels(t *testing.T) {
	c := safertest.Acme()
	c.CompanyName, c.Address, c.Email, c.Phone = "", "", "", ""
	p, sess, _ := newPipeline(t, map[int]safertest.Carrier{6: c})

	ext, err := p.Run(context.Background(), sess, 6)
	require.NoError(t, err)
	require.NotNil(t, ext.Contact)
	assert.Equal(t, model.ContactRecord{
		CompanyName: model.CompanyNameNotFound,
		Address:     model.AddressNotFound,
		Email:       model.EmailNotFound,
		Phone:       model.PhoneNotFound,
	}, *ext.Contact)
}

func TestPipeline_PhoneIsStripped(t *testing.T) {
	c := safertest.Acme()
	c.Phone = "Tel. (217) 555-0100 ext"
	p, sess, _ := newPipeline(t, map[int]safertest.Carrier{8: c})

	ext, err := p.Run(context.Background(), sess, 8)
	require.NoError(t, err)
	assert.Equal(t, "(217) 555-0100", ext.Contact.Phone)
}

func TestPipeline_EmailFallbacks(t *testing.T) {
	long := func(n int) string { return strings.Repeat("a", n-len("@x.example")) + "@x.example" }

	tests := []struct {
		name   string
		markup string
		want   string
	}{
		{
			name:   "div class",
			markup: `<div class="email-box">div@x.example</div>`,
			want:   "div@x.example",
		},
		{
			name:   "span class",
			markup: `<p><span class="contact-email">span@x.example</span></p>`,
			want:   "span@x.example",
		},
		{
			name:   "mailto without address falls through to cell",
			markup: `<p><a href="mailto:td@x.example">Contact us</a></p><table><tr><td>Email: td@x.example</td></tr></table>`,
			want:   "Email: td@x.example",
		},
		{
			name:   "mailto wins over cell",
			markup: `<table><tr><td>cell@x.example</td></tr></table><p><a href="mailto:a@x.example">a@x.example</a></p>`,
			want:   "a@x.example",
		},
		{
			name:   "any element",
			markup: `<p><b>any@x.example</b></p>`,
			want:   "any@x.example",
		},
		{
			name:   "any element under length bound",
			markup: "<p>" + long(49) + "</p>",
			want:   long(49),
		},
		{
			name:   "any element at length bound",
			markup: "<p>" + long(50) + "</p>",
			want:   model.EmailNotFound,
		},
		{
			name:   "long text",
			markup: "<p>" + long(55) + "</p>",
			want:   model.EmailNotFound,
		},
		{
			name:   "no address anywhere",
			markup: `<p>write to us</p>`,
			want:   model.EmailNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := safertest.Acme()
			c.EmailMarkup = tt.markup
			p, sess, _ := newPipeline(t, map[int]safertest.Carrier{20: c})

			ext, err := p.Run(context.Background(), sess, 20)
			require.NoError(t, err)
			require.NotNil(t, ext.Contact)
			assert.Equal(t, tt.want, ext.Contact.Email)
		})
	}
}

func TestPipeline_BrokenAdditionalLinkIsSkipped(t *testing.T) {
	for _, href := range []string{"javascript:void(0)", "/missing"} {
		t.Run(href, func(t *testing.T) {
			c := safertest.Acme()
			c.AdditionalHref = href
			p, sess, srv := newPipeline(t, map[int]safertest.Carrier{21: c})

			ext, err := p.Run(context.Background(), sess, 21)
			require.NoError(t, err)
			require.NotNil(t, ext.Contact)
			assert.Equal(t, "ACME TRUCKING", ext.Contact.CompanyName)
			assert.Equal(t, "ops@acme.example", ext.Contact.Email)
			assert.Equal(t, 0, srv.Hits("/registration"))
		})
	}
}

func TestPipeline_InactiveCarrierStopsAtGate(t *testing.T) {
	c := safertest.Acme()
	c.Status = "OUT-OF-SERVICE"
	p, sess, srv := newPipeline(t, map[int]safertest.Carrier{7: c})

	ext, err := p.Run(context.Background(), sess, 7)
	require.NoError(t, err)
	assert.Equal(t, model.ReasonNotActive, ext.Gate.Reason)
	assert.Nil(t, ext.Contact)
	assert.Equal(t, 0, srv.Hits("/safer_xfr.aspx"))
}

func TestPipeline_NotCarrierNeverNavigatesFurther(t *testing.T) {
	c := safertest.Acme()
	c.EntityType = "BROKER"
	p, sess, srv := newPipeline(t, map[int]safertest.Carrier{9: c})

	ext, err := p.Run(context.Background(), sess, 9)
	require.NoError(t, err)
	assert.Equal(t, model.ReasonNotCarrier, ext.Gate.Reason)
	assert.Equal(t, 1, srv.Hits("/query.asp"))
	assert.Equal(t, 0, srv.Hits("/safer_xfr.aspx"))
	assert.Equal(t, 0, srv.Hits("/registration"))
}

func TestPipeline_ForeignAddress(t *testing.T) {
	c := safertest.Acme()
	c.PhysicalAddr = "1 RUE PRINCIPALE<br>MONTREAL, QC A1A 1A1"
	p, sess, _ := newPipeline(t, map[int]safertest.Carrier{10: c})

	ext, err := p.Run(context.Background(), sess, 10)
	require.NoError(t, err)
	assert.Equal(t, model.ReasonForeignAddress, ext.Gate.Reason)
}

func TestPipeline_NoResultsLink(t *testing.T) {
	c := safertest.Acme()
	c.NoResultsLink = true
	p, sess, _ := newPipeline(t, map[int]safertest.Carrier{11: c})

	ext, err := p.Run(context.Background(), sess, 11)
	require.NoError(t, err)
	assert.Equal(t, model.ReasonNoFollowOnLink, ext.Gate.Reason)
}

func TestPipeline_UnknownRecordFailsCarrierGate(t *testing.T) {
	p, sess, _ := newPipeline(t, map[int]safertest.Carrier{})

	ext, err := p.Run(context.Background(), sess, 12)
	require.NoError(t, err)
	assert.Equal(t, model.ReasonNoStatusSignal, ext.Gate.Reason)
}

func TestPipeline_SearchFailureIsError(t *testing.T) {
	p, sess, srv := newPipeline(t, nil)
	srv.Close()

	_, err := p.Run(context.Background(), sess, 13)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "safer: open snapshot search")
}

func TestLoadLocators(t *testing.T) {
	l, err := LoadLocators("")
	require.NoError(t, err)
	assert.Equal(t, "https://safer.fmcsa.dot.gov/CompanySnapshot.aspx", l.SnapshotURL)
	assert.Len(t, l.Fields.EmailFast, 4)
	assert.NoError(t, l.Validate())

	_, err = LoadLocators(t.TempDir() + "/missing.yaml")
	assert.Error(t, err)
}
