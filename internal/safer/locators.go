package safer

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/mc-extractor/internal/page"
)

//go:embed locators.yaml
var defaultProfile []byte

// Locators is the locator profile for the SAFER page flow. Every locator is
// coupled to the remote page structure.
type Locators struct {
	SnapshotURL string `yaml:"snapshot_url"`

	Search struct {
		Radio  page.Locator `yaml:"radio"`
		Query  page.Locator `yaml:"query"`
		Submit page.Locator `yaml:"submit"`
	} `yaml:"search"`

	Gates struct {
		Carrier   page.Locator `yaml:"carrier"`
		Active    page.Locator `yaml:"active"`
		Authority page.Locator `yaml:"authority"`
		Freight   page.Locator `yaml:"freight"`
		Address   page.Locator `yaml:"address"`
	} `yaml:"gates"`

	ResultsLink    page.Locator `yaml:"results_link"`
	AdditionalLink page.Locator `yaml:"additional_link"`

	Fields struct {
		CompanyName page.Locator   `yaml:"company_name"`
		Address     page.Locator   `yaml:"address"`
		Phone       page.Locator   `yaml:"phone"`
		Email       page.Locator   `yaml:"email"`
		EmailFast   []page.Locator `yaml:"email_fast"`
	} `yaml:"fields"`
}

// DefaultLocators returns the built-in profile.
func DefaultLocators() Locators {
	var l Locators
	if err := yaml.Unmarshal(defaultProfile, &l); err != nil {
		panic("safer: embedded locator profile: " + err.Error())
	}
	return l
}

// LoadLocators reads a profile from path, layered over the built-in one.
// An empty path returns the built-in profile.
func LoadLocators(path string) (Locators, error) {
	l := DefaultLocators()
	if path == "" {
		return l, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Locators{}, eris.Wrapf(err, "safer: read locator profile %s", path)
	}
	if err := yaml.Unmarshal(data, &l); err != nil {
		return Locators{}, eris.Wrapf(err, "safer: parse locator profile %s", path)
	}
	if err := l.Validate(); err != nil {
		return Locators{}, err
	}
	return l, nil
}

// Validate checks that every required locator has a query.
func (l Locators) Validate() error {
	if l.SnapshotURL == "" {
		return eris.New("safer: locator profile: snapshot_url is required")
	}
	required := []page.Locator{
		l.Search.Radio, l.Search.Query, l.Search.Submit,
		l.Gates.Carrier, l.Gates.Active, l.Gates.Authority, l.Gates.Freight, l.Gates.Address,
		l.ResultsLink, l.AdditionalLink,
		l.Fields.CompanyName, l.Fields.Address, l.Fields.Phone, l.Fields.Email,
	}
	for i, loc := range required {
		if loc.CSS == "" {
			return eris.Errorf("safer: locator profile: entry %d (%s) has no css", i, loc.Name)
		}
	}
	return nil
}
