package question

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	HeaderSoal    = "SOAL"
	HeaderGambar  = "GAMBAR"
	HeaderOpsiA   = "OPSI A"
	HeaderOpsiB   = "OPSI B"
	HeaderOpsiC   = "OPSI C"
	HeaderOpsiD   = "OPSI D"
	HeaderJawaban = "JAWABAN"

	TemplateSheetName = "Template Soal"
	TemplateFileName  = "Template_Soal_Quiz.xlsx"
)

// RequiredHeaders lists the upload columns in template order.
var RequiredHeaders = []string{
	HeaderSoal,
	HeaderGambar,
	HeaderOpsiA,
	HeaderOpsiB,
	HeaderOpsiC,
	HeaderOpsiD,
	HeaderJawaban,
}

// ImportRow maps a header to its cell value. Absent cells hold "".
type ImportRow map[string]string

// ParseFile turns an uploaded workbook into validated records for sel. It is
// all-or-nothing: the first failing row aborts the whole import.
func ParseFile(mapel, materi string, r io.Reader) ([]Record, error) {
	if _, err := NewSelection(mapel, materi); err != nil {
		return nil, err
	}
	rows, err := ReadRows(r)
	if err != nil {
		return nil, err
	}
	return BuildRecords(rows)
}

// ReadRows decodes the first sheet of an xlsx workbook. The first row is the
// header; fully blank rows below it are skipped.
func ReadRows(r io.Reader) ([]ImportRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: read rows: %v", ErrUnreadableFile, err)
	}
	return toImportRows(rows), nil
}

func toImportRows(rows [][]string) []ImportRow {
	if len(rows) == 0 {
		return nil
	}

	type column struct {
		name string
		idx  int
	}
	columns := make([]column, 0, len(rows[0]))
	seen := map[string]bool{}
	for i, h := range rows[0] {
		if strings.TrimSpace(h) == "" || seen[h] {
			continue
		}
		seen[h] = true
		columns = append(columns, column{name: h, idx: i})
	}

	out := make([]ImportRow, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		item := make(ImportRow, len(columns))
		for _, c := range columns {
			v := ""
			if c.idx < len(row) {
				v = row[c.idx]
			}
			item[c.name] = v
		}
		out = append(out, item)
	}
	return out
}

// isBlankRow reports rows without any cell value. Whitespace counts as a
// value, so such rows still reach validation.
func isBlankRow(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}

// BuildRecords validates decoded rows and assigns ids 1..N in row order.
func BuildRecords(rows []ImportRow) ([]Record, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	for _, h := range RequiredHeaders {
		if _, ok := rows[0][h]; !ok {
			return nil, fmt.Errorf("%w: missing column %s", ErrInvalidHeader, h)
		}
	}

	out := make([]Record, 0, len(rows))
	for i, row := range rows {
		rowNo := i + 2
		rec := Record{
			Soal:    row[HeaderSoal],
			Gambar:  row[HeaderGambar],
			OpsiA:   row[HeaderOpsiA],
			OpsiB:   row[HeaderOpsiB],
			OpsiC:   row[HeaderOpsiC],
			OpsiD:   row[HeaderOpsiD],
			Jawaban: row[HeaderJawaban],
		}.normalized()

		if !validAnswers[rec.Jawaban] {
			return nil, &RowError{Row: rowNo, Err: ErrInvalidAnswer}
		}
		if !rec.hasRequiredFields() {
			return nil, &RowError{Row: rowNo, Err: ErrMissingRequiredField}
		}
		rec.ID = strconv.Itoa(len(out) + 1)
		out = append(out, rec)
	}
	return out, nil
}

// Template returns an xlsx workbook holding only the upload header row.
func Template() ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), TemplateSheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for i, h := range RequiredHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(TemplateSheetName, cell, h)
	}
	_ = f.SetColWidth(TemplateSheetName, "A", "A", 48)
	_ = f.SetColWidth(TemplateSheetName, "B", "G", 20)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}
