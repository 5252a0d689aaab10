package masterdata

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"cbtsheet/internal/sheet"
)

type Student struct {
	ID        string `json:"id"`
	NISN      string `json:"nisn"`
	NamaSiswa string `json:"nama_siswa"`
}

type StudentInput struct {
	NISN      string `json:"nisn" validate:"required"`
	NamaSiswa string `json:"nama_siswa" validate:"required"`
}

func (in StudentInput) normalized() StudentInput {
	return StudentInput{
		NISN:      strings.TrimSpace(in.NISN),
		NamaSiswa: strings.TrimSpace(in.NamaSiswa),
	}
}

type wireStudent struct {
	ID        sheet.Text `json:"id"`
	NISN      sheet.Text `json:"nisn"`
	NamaSiswa sheet.Text `json:"nama_siswa"`
}

type studentRow struct {
	NISN      string `json:"nisn"`
	NamaSiswa string `json:"nama_siswa"`
}

type ImportStudentsReport struct {
	TotalRows   int              `json:"total_rows"`
	SuccessRows int              `json:"success_rows"`
	FailedRows  int              `json:"failed_rows"`
	Errors      []ImportRowError `json:"errors"`
}

type ImportRowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

func (s *Service) ListStudents(ctx context.Context) ([]Student, error) {
	var rows []wireStudent
	if err := s.sheet.ReadLenient(ctx, sheet.ActionGetFromDataSiswa, nil, &rows); err != nil {
		return nil, fmt.Errorf("get students: %w", err)
	}
	out := make([]Student, 0, len(rows))
	for _, r := range rows {
		st := Student{ID: r.ID.String(), NISN: r.NISN.String(), NamaSiswa: r.NamaSiswa.String()}
		if st.ID == "" {
			st.ID = st.NISN + "-" + st.NamaSiswa
		}
		out = append(out, st)
	}
	return out, nil
}

// nisnTaken reports whether another student than exceptID already holds nisn.
func nisnTaken(students []Student, nisn, exceptID string) bool {
	for _, st := range students {
		if st.NISN == nisn && (exceptID == "" || st.ID != exceptID) {
			return true
		}
	}
	return false
}

func (s *Service) CreateStudent(ctx context.Context, in StudentInput) error {
	in = in.normalized()
	if err := s.check(in); err != nil {
		return err
	}
	students, err := s.ListStudents(ctx)
	if err != nil {
		return err
	}
	if nisnTaken(students, in.NISN, "") {
		return ErrDuplicateNISN
	}
	return s.write(ctx, sheet.ActionAddToDataSiswa, map[string]any{
		"data": []studentRow{{NISN: in.NISN, NamaSiswa: in.NamaSiswa}},
	})
}

func (s *Service) UpdateStudent(ctx context.Context, id string, in StudentInput) error {
	id, err := requireID(id)
	if err != nil {
		return err
	}
	in = in.normalized()
	if err := s.check(in); err != nil {
		return err
	}
	students, err := s.ListStudents(ctx)
	if err != nil {
		return err
	}
	if nisnTaken(students, in.NISN, id) {
		return ErrDuplicateNISN
	}
	return s.write(ctx, sheet.ActionEditStudent, map[string]any{
		"id":         id,
		"nisn":       in.NISN,
		"nama_siswa": in.NamaSiswa,
	})
}

func (s *Service) DeleteStudent(ctx context.Context, id string) error {
	id, err := requireID(id)
	if err != nil {
		return err
	}
	return s.write(ctx, sheet.ActionDeleteStudent, map[string]any{"id": id})
}

func (s *Service) DeleteAllStudents(ctx context.Context) error {
	return s.write(ctx, sheet.ActionDeleteAllStudents, nil)
}

// ImportStudentsCSV adds every valid, not yet registered student of a CSV
// with nisn and nama_siswa columns in a single write. Rejected rows are
// listed in the report.
func (s *Service) ImportStudentsCSV(ctx context.Context, r io.Reader) (*ImportStudentsReport, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read csv header: %v", ErrInvalidInput, err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		n := normalizeHeader(h)
		if _, dup := index[n]; n != "" && !dup {
			index[n] = i
		}
	}
	for _, col := range []string{"nisn", "nama_siswa"} {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: missing required column: %s", ErrInvalidInput, col)
		}
	}

	existing, err := s.ListStudents(ctx)
	if err != nil {
		return nil, err
	}
	taken := make(map[string]bool, len(existing))
	for _, st := range existing {
		taken[st.NISN] = true
	}

	report := &ImportStudentsReport{Errors: make([]ImportRowError, 0)}
	rows := make([]studentRow, 0)
	rowNo := 1
	for {
		rowNo++
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		report.TotalRows++
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return nil, fmt.Errorf("read csv: %w", err)
			}
			report.FailedRows++
			report.Errors = append(report.Errors, ImportRowError{Row: rowNo, Error: fmt.Sprintf("csv parse error: %v", err)})
			continue
		}
		if isRowEmpty(rec) {
			report.TotalRows--
			continue
		}

		in := StudentInput{NISN: cell(rec, index, "nisn"), NamaSiswa: cell(rec, index, "nama_siswa")}
		if err := s.check(in); err != nil {
			report.FailedRows++
			report.Errors = append(report.Errors, ImportRowError{Row: rowNo, Error: err.Error()})
			continue
		}
		if taken[in.NISN] {
			report.FailedRows++
			report.Errors = append(report.Errors, ImportRowError{Row: rowNo, Error: ErrDuplicateNISN.Error()})
			continue
		}
		taken[in.NISN] = true
		rows = append(rows, studentRow{NISN: in.NISN, NamaSiswa: in.NamaSiswa})
	}

	if len(rows) == 0 {
		return report, nil
	}
	if err := s.write(ctx, sheet.ActionAddToDataSiswa, map[string]any{"data": rows}); err != nil {
		return nil, err
	}
	report.SuccessRows = len(rows)
	return report, nil
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	h = strings.ReplaceAll(h, "-", "_")
	h = strings.ReplaceAll(h, " ", "_")
	return h
}

func cell(rec []string, idx map[string]int, key string) string {
	i, ok := idx[key]
	if !ok || i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func isRowEmpty(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
