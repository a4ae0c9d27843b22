package sink

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/mc-extractor/internal/model"
)

// XLSXSink collects rows into a workbook saved on Close.
type XLSXSink struct {
	path  string
	file  *xlsx.File
	sheet *xlsx.Sheet
}

// NewXLSX starts a workbook with a header row.
func NewXLSX(path string) (*XLSXSink, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("MC Records")
	if err != nil {
		return nil, eris.Wrap(err, "sink: add xlsx sheet")
	}
	s := &XLSXSink{path: path, file: f, sheet: sheet}
	s.addRow(Header)
	return s, nil
}

func (s *XLSXSink) addRow(cells []string) {
	row := s.sheet.AddRow()
	for _, v := range cells {
		row.AddCell().SetString(v)
	}
}

func (s *XLSXSink) Write(row model.ResultRow) error {
	s.addRow(Record(row, PersistedAddress))
	return nil
}

func (s *XLSXSink) Close() error {
	return eris.Wrapf(s.file.Save(s.path), "sink: save xlsx %s", s.path)
}

// ReadXLSX returns every row of the first sheet of the workbook at path.
func ReadXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "sink: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("sink: %s has no sheets", path)
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}
