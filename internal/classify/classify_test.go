package classify

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/mc-extractor/internal/model"
)

func contact(company, email, phone bool) model.ContactRecord {
	c := model.ContactRecord{
		CompanyName: model.CompanyNameNotFound,
		Address:     model.AddressNotFound,
		Email:       model.EmailNotFound,
		Phone:       model.PhoneNotFound,
	}
	if company {
		c.CompanyName, c.Address = "ACME TRUCKING", "100 MAIN ST, SPRINGFIELD, IL 62704"
	}
	if email {
		c.Email = "ops@acme.example"
	}
	if phone {
		c.Phone = "(217) 555-0100"
	}
	return c
}

func TestFromContact_AllCombinations(t *testing.T) {
	for _, company := range []bool{true, false} {
		for _, email := range []bool{true, false} {
			for _, phone := range []bool{true, false} {
				name := fmt.Sprintf("company=%v/email=%v/phone=%v", company, email, phone)
				t.Run(name, func(t *testing.T) {
					c := contact(company, email, phone)
					assert.Equal(t, company, HasCompanyInfo(c))

					want := model.TierManualCheck
					switch {
					case email && phone:
						want = model.TierSuccess
					case email != phone:
						want = model.TierPartialSuccess
					}

					got := FromContact(c)
					assert.Equal(t, want, got)
					assert.Equal(t, got, FromContact(c), "classification is deterministic")
					assert.True(t, Persist(got))
				})
			}
		}
	}
}

func TestClassify_GateFailureIsFailed(t *testing.T) {
	for _, r := range model.AllGateReasons() {
		ext := model.Extraction{Gate: model.Fail(r)}
		assert.Equal(t, model.TierFailed, Classify(ext), "reason %s", r)
	}
	assert.False(t, Persist(model.TierFailed))
}

func TestClassify_GateFailureIgnoresContact(t *testing.T) {
	c := contact(true, true, true)
	o := Outcome(42, model.Extraction{Gate: model.Fail(model.ReasonNotActive), Contact: &c})
	assert.Equal(t, model.TierFailed, o.Tier)
	assert.Nil(t, o.Contact)
}

func TestHasEmail(t *testing.T) {
	assert.False(t, HasEmail(model.ContactRecord{Email: "no at sign"}))
	assert.False(t, HasEmail(model.ContactRecord{Email: model.NotAvailable}))
	assert.True(t, HasEmail(model.ContactRecord{Email: "a@b.c"}))
}

func TestHasPhone(t *testing.T) {
	assert.False(t, HasPhone(model.ContactRecord{Phone: "() -"}))
	assert.False(t, HasPhone(model.ContactRecord{Phone: ""}))
	assert.True(t, HasPhone(model.ContactRecord{Phone: "5"}))
}

func TestOutcome_Success(t *testing.T) {
	c := contact(true, true, true)
	o := Outcome(1706527, model.Extraction{Contact: &c})
	assert.Equal(t, model.TierSuccess, o.Tier)
	assert.Equal(t, "ACME TRUCKING", o.Row().CompanyName)
}

func TestErrorOutcome(t *testing.T) {
	o := ErrorOutcome(3, errors.New("boom"))
	assert.Equal(t, model.TierError, o.Tier)
	assert.True(t, Persist(o.Tier))
	assert.Equal(t, "Error: boom", o.Row().Email)
}
