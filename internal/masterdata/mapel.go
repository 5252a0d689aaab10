package masterdata

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"cbtsheet/internal/sheet"
)

const (
	StatusAllowed    = "Izinkan"
	StatusDisallowed = "Tidak Diizinkan"
)

// Mapel is one row of the mapel reference sheet. ID is the sheet row number.
type Mapel struct {
	ID        string `json:"id"`
	Mapel     string `json:"mapel"`
	Materi    string `json:"materi"`
	SheetName string `json:"sheetName"`
	Status    string `json:"status"`
}

type MapelInput struct {
	Mapel     string `json:"mapel" validate:"required"`
	Materi    string `json:"materi" validate:"required"`
	SheetName string `json:"sheetName" validate:"required"`
	Status    string `json:"status" validate:"omitempty,oneof=Izinkan 'Tidak Diizinkan'"`
}

func (in MapelInput) normalized() MapelInput {
	return MapelInput{
		Mapel:     strings.TrimSpace(in.Mapel),
		Materi:    strings.TrimSpace(in.Materi),
		SheetName: strings.TrimSpace(in.SheetName),
		Status:    strings.TrimSpace(in.Status),
	}
}

func (in MapelInput) fields() map[string]any {
	return map[string]any{
		"mapel":     in.Mapel,
		"materi":    in.Materi,
		"sheetName": in.SheetName,
		"status":    in.Status,
	}
}

type wireMapel struct {
	Mapel     sheet.Text `json:"mapel"`
	Materi    sheet.Text `json:"materi"`
	SheetName sheet.Text `json:"sheetName"`
	Status    sheet.Text `json:"status"`
}

func (s *Service) ListMapel(ctx context.Context) ([]Mapel, error) {
	var rows []wireMapel
	if err := s.sheet.Read(ctx, sheet.ActionGetMapelData, nil, &rows); err != nil {
		return nil, fmt.Errorf("get mapel data: %w", err)
	}
	out := make([]Mapel, 0, len(rows))
	for i, r := range rows {
		out = append(out, Mapel{
			ID:        strconv.Itoa(i + 2),
			Mapel:     r.Mapel.String(),
			Materi:    r.Materi.String(),
			SheetName: r.SheetName.String(),
			Status:    r.Status.String(),
		})
	}
	return out, nil
}

// Subjects lists distinct mapel names in sheet order.
func (s *Service) Subjects(ctx context.Context) ([]string, error) {
	items, err := s.ListMapel(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it.Mapel == "" || seen[it.Mapel] {
			continue
		}
		seen[it.Mapel] = true
		out = append(out, it.Mapel)
	}
	return out, nil
}

// Topics lists the materi registered under mapel in sheet order.
func (s *Service) Topics(ctx context.Context, mapel string) ([]string, error) {
	items, err := s.ListMapel(ctx)
	if err != nil {
		return nil, err
	}
	out := []string{}
	for _, it := range items {
		if it.Mapel == mapel {
			out = append(out, it.Materi)
		}
	}
	return out, nil
}

// SheetName resolves the question sheet of a mapel/materi pair. ok is false
// when the pair is not registered.
func (s *Service) SheetName(ctx context.Context, mapel, materi string) (string, bool, error) {
	items, err := s.ListMapel(ctx)
	if err != nil {
		return "", false, err
	}
	for _, it := range items {
		if it.Mapel == mapel && it.Materi == materi {
			return it.SheetName, true, nil
		}
	}
	return "", false, nil
}

func (s *Service) CreateMapel(ctx context.Context, in MapelInput) error {
	in = in.normalized()
	if err := s.check(in); err != nil {
		return err
	}
	return s.write(ctx, sheet.ActionAddMapelData, in.fields())
}

func (s *Service) UpdateMapel(ctx context.Context, id string, in MapelInput) error {
	id, err := requireID(id)
	if err != nil {
		return err
	}
	in = in.normalized()
	if err := s.check(in); err != nil {
		return err
	}
	fields := in.fields()
	fields["id"] = id
	return s.write(ctx, sheet.ActionEditMapelData, fields)
}

func (s *Service) DeleteMapel(ctx context.Context, id string) error {
	id, err := requireID(id)
	if err != nil {
		return err
	}
	return s.write(ctx, sheet.ActionDeleteMapelData, map[string]any{"id": id})
}

// DeleteAllMapel clears the mapel reference sheet.
func (s *Service) DeleteAllMapel(ctx context.Context) error {
	return s.write(ctx, sheet.ActionDeleteAllQuestions, nil)
}
