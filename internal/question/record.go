package question

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrMissingSelection     = errors.New("mapel and materi must be selected")
	ErrUnknownSelection     = errors.New("mapel/materi not registered")
	ErrUnreadableFile       = errors.New("file is not a readable xlsx workbook")
	ErrEmptyFile            = errors.New("file has no data rows")
	ErrInvalidHeader        = errors.New("file header does not match template")
	ErrInvalidAnswer        = errors.New("answer must be A, B, C or D")
	ErrMissingRequiredField = errors.New("required field is empty")
	ErrQuestionNotFound     = errors.New("question not found")
	ErrEditInProgress       = errors.New("another question is being edited")
	ErrNotEditing           = errors.New("question is not in edit mode")
	ErrLastQuestion         = errors.New("at least one question must remain")
	ErrNothingToSubmit      = errors.New("no questions to submit")
)

// RowError pins a validation failure to a row. For file imports Row uses
// spreadsheet numbering (first data row is 2); for drafts it is the 1-based
// position in the list.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

var validAnswers = map[string]bool{"A": true, "B": true, "C": true, "D": true}

// Record is one multiple-choice question of a mapel/materi bank.
type Record struct {
	ID      string `json:"id"`
	Soal    string `json:"soal"`
	Gambar  string `json:"gambar"`
	OpsiA   string `json:"opsiA"`
	OpsiB   string `json:"opsiB"`
	OpsiC   string `json:"opsiC"`
	OpsiD   string `json:"opsiD"`
	Jawaban string `json:"jawaban"`
}

func (r Record) normalized() Record {
	return Record{
		ID:      r.ID,
		Soal:    strings.TrimSpace(r.Soal),
		Gambar:  strings.TrimSpace(r.Gambar),
		OpsiA:   strings.TrimSpace(r.OpsiA),
		OpsiB:   strings.TrimSpace(r.OpsiB),
		OpsiC:   strings.TrimSpace(r.OpsiC),
		OpsiD:   strings.TrimSpace(r.OpsiD),
		Jawaban: strings.ToUpper(strings.TrimSpace(r.Jawaban)),
	}
}

func (r Record) hasRequiredFields() bool {
	return r.Soal != "" && r.OpsiA != "" && r.OpsiB != "" && r.OpsiC != "" && r.OpsiD != ""
}

// validateEdited checks a record edited by hand. Expects a normalized record.
func (r Record) validateEdited() error {
	if !r.hasRequiredFields() || r.Jawaban == "" {
		return ErrMissingRequiredField
	}
	if !validAnswers[r.Jawaban] {
		return ErrInvalidAnswer
	}
	return nil
}

func (r Record) payload() questionPayload {
	return questionPayload{
		Soal:    r.Soal,
		Gambar:  r.Gambar,
		OpsiA:   r.OpsiA,
		OpsiB:   r.OpsiB,
		OpsiC:   r.OpsiC,
		OpsiD:   r.OpsiD,
		Jawaban: r.Jawaban,
	}
}

func (r *Record) setField(field, value string) error {
	switch field {
	case "soal":
		r.Soal = value
	case "gambar":
		r.Gambar = value
	case "opsiA":
		r.OpsiA = value
	case "opsiB":
		r.OpsiB = value
	case "opsiC":
		r.OpsiC = value
	case "opsiD":
		r.OpsiD = value
	case "jawaban":
		r.Jawaban = value
	default:
		return fmt.Errorf("%w: unknown field %q", ErrInvalidInput, field)
	}
	return nil
}

type questionPayload struct {
	Soal    string `json:"soal"`
	Gambar  string `json:"gambar"`
	OpsiA   string `json:"opsiA"`
	OpsiB   string `json:"opsiB"`
	OpsiC   string `json:"opsiC"`
	OpsiD   string `json:"opsiD"`
	Jawaban string `json:"jawaban"`
}

func payloads(records []Record) []questionPayload {
	out := make([]questionPayload, 0, len(records))
	for _, r := range records {
		out = append(out, r.payload())
	}
	return out
}

// Selection is the mapel/materi pair that scopes a question bank.
type Selection struct {
	Mapel  string `json:"mapel"`
	Materi string `json:"materi"`
}

func NewSelection(mapel, materi string) (Selection, error) {
	sel := Selection{Mapel: strings.TrimSpace(mapel), Materi: strings.TrimSpace(materi)}
	if sel.Mapel == "" || sel.Materi == "" {
		return Selection{}, ErrMissingSelection
	}
	return sel, nil
}

func (s Selection) fields() map[string]any {
	return map[string]any{
		"mapel":  s.Mapel,
		"materi": s.Materi,
	}
}
