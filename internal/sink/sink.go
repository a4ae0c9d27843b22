// Package sink writes persisted result rows and renders the interactive
// result view.
package sink

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mc-extractor/internal/model"
)

// Header is the first row of every persisted output.
var Header = []string{"MC Number", "Company Name", "Address", "Email", "Phone", "Status"}

// Sink receives rows in worklist order. Callers never pass Failed rows.
type Sink interface {
	Write(row model.ResultRow) error
	Close() error
}

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// PersistedAddress flattens line breaks to single spaces.
func PersistedAddress(addr string) string {
	return strings.ReplaceAll(lineBreaks.Replace(addr), "\n", " ")
}

// DisplayAddress flattens line breaks to comma separators.
func DisplayAddress(addr string) string {
	return strings.ReplaceAll(lineBreaks.Replace(addr), "\n", ", ")
}

// Record renders row as output cells using the given address form.
func Record(row model.ResultRow, address func(string) string) []string {
	return []string{
		row.MC.String(),
		row.CompanyName,
		address(row.Address),
		row.Email,
		row.Phone,
		string(row.Tier),
	}
}

type multi []Sink

// Multi fans every row out to each sink in order.
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

func (m multi) Write(row model.ResultRow) error {
	for _, s := range m {
		if err := s.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func (m multi) Close() error {
	var first error
	for _, s := range m {
		if err := s.Close(); err != nil && first == nil {
			first = eris.Wrap(err, "sink: close")
		}
	}
	return first
}
