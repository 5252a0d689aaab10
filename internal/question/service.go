package question

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"

	"cbtsheet/internal/sheet"
)

type sheetClient interface {
	Read(ctx context.Context, action string, params url.Values, out any) error
	Write(ctx context.Context, action string, fields map[string]any) sheet.WriteResult
}

// SheetResolver maps a mapel/materi pair to the sheet that stores it.
type SheetResolver interface {
	SheetName(ctx context.Context, mapel, materi string) (string, bool, error)
}

type Service struct {
	sheet    sheetClient
	resolver SheetResolver

	mu     sync.Mutex
	drafts map[Selection]*Draft
}

type ImportResult struct {
	Mapel     string   `json:"mapel"`
	Materi    string   `json:"materi"`
	SheetName string   `json:"sheet_name"`
	Total     int      `json:"total"`
	Questions []Record `json:"questions"`
}

type SubmitResult struct {
	Mapel     string `json:"mapel"`
	Materi    string `json:"materi"`
	SheetName string `json:"sheet_name"`
	Total     int    `json:"total"`
}

type sheetQuestion struct {
	ID       sheet.Text   `json:"id"`
	Question sheet.Text   `json:"question"`
	ImageURL sheet.Text   `json:"imageUrl"`
	Options  []sheet.Text `json:"options"`
	Answer   sheet.Text   `json:"answer"`
}

func (q sheetQuestion) record() Record {
	opt := func(i int) string {
		if i < len(q.Options) {
			return q.Options[i].String()
		}
		return ""
	}
	answer := q.Answer.String()
	if answer == "" {
		answer = "A"
	}
	return Record{
		ID:      q.ID.String(),
		Soal:    q.Question.String(),
		Gambar:  q.ImageURL.String(),
		OpsiA:   opt(0),
		OpsiB:   opt(1),
		OpsiC:   opt(2),
		OpsiD:   opt(3),
		Jawaban: answer,
	}
}

// NewService builds the question service. resolver may be nil, in which case
// every selection is accepted and sheet names are not reported.
func NewService(client sheetClient, resolver SheetResolver) *Service {
	return &Service{
		sheet:    client,
		resolver: resolver,
		drafts:   make(map[Selection]*Draft),
	}
}

func (s *Service) draft(sel Selection) *Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[sel]
	if !ok {
		d = &Draft{}
		s.drafts[sel] = d
	}
	return d
}

func (s *Service) sheetName(ctx context.Context, sel Selection) (string, error) {
	if s.resolver == nil {
		return "", nil
	}
	name, ok, err := s.resolver.SheetName(ctx, sel.Mapel, sel.Materi)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrUnknownSelection
	}
	return name, nil
}

func (s *Service) fetch(ctx context.Context, sel Selection) ([]Record, error) {
	var items []sheetQuestion
	err := s.sheet.Read(ctx, sheet.ActionGetQuestions, url.Values{
		"mapel":  {sel.Mapel},
		"materi": {sel.Materi},
	}, &items)
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}
	out := make([]Record, 0, len(items))
	for _, it := range items {
		out = append(out, it.record())
	}
	return out, nil
}

// Load replaces the draft with the bank currently stored in the sheet.
func (s *Service) Load(ctx context.Context, sel Selection) (*DraftView, error) {
	if _, err := s.sheetName(ctx, sel); err != nil {
		return nil, err
	}
	records, err := s.fetch(ctx, sel)
	if err != nil {
		return nil, err
	}
	d := s.draft(sel)
	d.replace(records)
	v := d.view(sel)
	return &v, nil
}

// View returns the local draft without contacting the sheet.
func (s *Service) View(sel Selection) DraftView {
	return s.draft(sel).view(sel)
}

// Add appends a blank question to the draft only; Submit sends it.
func (s *Service) Add(sel Selection) Record {
	return s.draft(sel).add()
}

func (s *Service) StartEdit(sel Selection, id string) error {
	return s.draft(sel).startEdit(id)
}

func (s *Service) UpdateField(sel Selection, id, field, value string) (*Record, error) {
	rec, err := s.draft(sel).update(id, field, value)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// SaveEdit validates the record in edit mode and sends it as one editQuestion
// write. On failure the draft is left untouched and stays in edit mode.
func (s *Service) SaveEdit(ctx context.Context, sel Selection) (*Record, error) {
	d := s.draft(sel)
	current, err := d.editing()
	if err != nil {
		return nil, err
	}
	rec := current.normalized()
	if err := rec.validateEdited(); err != nil {
		return nil, err
	}

	fields := sel.fields()
	fields["id"] = rec.ID
	fields["soal"] = rec.Soal
	fields["gambar"] = rec.Gambar
	fields["opsiA"] = rec.OpsiA
	fields["opsiB"] = rec.OpsiB
	fields["opsiC"] = rec.OpsiC
	fields["opsiD"] = rec.OpsiD
	fields["jawaban"] = rec.Jawaban

	res := s.sheet.Write(ctx, sheet.ActionEditQuestion, fields)
	if err := res.Failure(); err != nil {
		return nil, fmt.Errorf("edit question: %w", err)
	}
	d.commitEdit(rec)
	return &rec, nil
}

// CancelEdit leaves edit mode and reloads the bank from the sheet, dropping
// unsaved local edits. A failed reload keeps the current list.
func (s *Service) CancelEdit(ctx context.Context, sel Selection) (*DraftView, error) {
	d := s.draft(sel)
	d.clearEdit()

	records, err := s.fetch(ctx, sel)
	if err != nil {
		return nil, err
	}
	d.replace(records)
	v := d.view(sel)
	return &v, nil
}

// Delete removes one question from the sheet, then from the draft. The last
// remaining question cannot be deleted.
func (s *Service) Delete(ctx context.Context, sel Selection, id string) error {
	d := s.draft(sel)
	if err := d.reserveDelete(id); err != nil {
		return err
	}

	fields := sel.fields()
	fields["id"] = id
	res := s.sheet.Write(ctx, sheet.ActionDeleteQuestion, fields)
	d.finishDelete(id, res.Accepted())
	if err := res.Failure(); err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	return nil
}

// Submit appends every draft question to the sheet in one addToSheet write.
// Nothing is sent unless all questions are complete.
func (s *Service) Submit(ctx context.Context, sel Selection) (*SubmitResult, error) {
	name, err := s.sheetName(ctx, sel)
	if err != nil {
		return nil, err
	}

	records := s.draft(sel).snapshot()
	if len(records) == 0 {
		return nil, ErrNothingToSubmit
	}
	normalized := make([]Record, 0, len(records))
	for i, r := range records {
		n := r.normalized()
		if err := n.validateEdited(); err != nil {
			return nil, &RowError{Row: i + 1, Err: err}
		}
		normalized = append(normalized, n)
	}

	fields := sel.fields()
	fields["data"] = payloads(normalized)
	res := s.sheet.Write(ctx, sheet.ActionAddToSheet, fields)
	if err := res.Failure(); err != nil {
		return nil, fmt.Errorf("submit questions: %w", err)
	}
	return &SubmitResult{Mapel: sel.Mapel, Materi: sel.Materi, SheetName: name, Total: len(normalized)}, nil
}

// Import validates an uploaded workbook and, only when every row passes,
// replaces the draft and the stored bank with it in one replaceQuestions write.
// The write is not rolled back locally if it fails.
func (s *Service) Import(ctx context.Context, mapel, materi string, r io.Reader) (*ImportResult, error) {
	records, err := ParseFile(mapel, materi, r)
	if err != nil {
		return nil, err
	}
	sel, _ := NewSelection(mapel, materi)
	name, err := s.sheetName(ctx, sel)
	if err != nil {
		return nil, err
	}

	s.draft(sel).replace(records)

	fields := sel.fields()
	fields["data"] = payloads(records)
	res := s.sheet.Write(ctx, sheet.ActionReplaceQuestions, fields)
	if err := res.Failure(); err != nil {
		return nil, fmt.Errorf("replace questions: %w", err)
	}
	return &ImportResult{
		Mapel:     sel.Mapel,
		Materi:    sel.Materi,
		SheetName: name,
		Total:     len(records),
		Questions: cloneRecords(records),
	}, nil
}
