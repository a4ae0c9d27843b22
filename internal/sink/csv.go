package sink

import (
	"encoding/csv"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mc-extractor/internal/model"
)

// CSVSink writes rows to a CSV file, flushing after every row so a stopped
// run leaves a complete file.
type CSVSink struct {
	f *os.File
	w *csv.Writer
}

// NewCSV truncates path and writes the header row.
func NewCSV(path string) (*CSVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrapf(err, "sink: create csv %s", path)
	}

	s := &CSVSink{f: f, w: csv.NewWriter(f)}
	if err := s.writeRecord(Header); err != nil {
		f.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

func (s *CSVSink) writeRecord(rec []string) error {
	if err := s.w.Write(rec); err != nil {
		return eris.Wrap(err, "sink: write csv row")
	}
	s.w.Flush()
	return eris.Wrap(s.w.Error(), "sink: flush csv")
}

func (s *CSVSink) Write(row model.ResultRow) error {
	return s.writeRecord(Record(row, PersistedAddress))
}

func (s *CSVSink) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.f.Close() //nolint:errcheck
		return eris.Wrap(err, "sink: flush csv")
	}
	return eris.Wrap(s.f.Close(), "sink: close csv")
}
