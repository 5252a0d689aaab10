package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const ExportFileName = "Hasil_Ujian.xlsx"

// ExportExcel writes results in table order, one row per result, followed by
// the per-question answer columns.
func ExportExcel(results []Result, withStatus bool) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := "Hasil Ujian"
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headers := []string{"No", "Nama", "Mata Pelajaran", "Bab", "Jenis Ujian"}
	if withStatus {
		headers = append(headers, "Status")
	}
	headers = append(headers, "Nilai", "Persentase", "Tanggal", "File Ujian")
	for i := 1; i <= AnswerColumns; i++ {
		headers = append(headers, fmt.Sprintf("Soal %d", i))
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, r := range results {
		row := i + 2
		values := []any{i + 1, r.Nama, r.MataPelajaran, r.BabNama, r.JenisUjian}
		if withStatus {
			values = append(values, r.Status)
		}
		values = append(values, r.Nilai, r.Persentase, DateLabel(r.Timestamp), r.FileUjian)
		for _, a := range r.Answers {
			values = append(values, a)
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	last, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.SetColWidth(sheet, "A", "A", 6)
	_ = f.SetColWidth(sheet, "B", last, 18)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}
