package report

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"cbtsheet/internal/sheet"

	"go.uber.org/zap"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrDeleteInProgress = errors.New("another result deletion is in progress")
	ErrFeatureDisabled  = errors.New("feature disabled")
)

type sheetClient interface {
	Read(ctx context.Context, action string, params url.Values, out any) error
	Write(ctx context.Context, action string, fields map[string]any) sheet.WriteResult
}

// SubjectSource lists the subjects registered in the mapel reference sheet.
type SubjectSource interface {
	Subjects(ctx context.Context) ([]string, error)
}

// Features switches the optional parts of the result table.
type Features struct {
	// ResultStatus shows the status column and enables the status filter.
	ResultStatus bool `json:"result_status"`
	// ResultDelete allows deleting single results.
	ResultDelete bool `json:"result_delete"`
}

type Service struct {
	sheet    sheetClient
	subjects SubjectSource
	store    *Store
	features Features
	log      *zap.Logger

	deleting atomic.Bool
}

type QueryInput struct {
	Filter Filter
	Sort   SortMode
}

// View is the result table as shown to staff.
type View struct {
	Results   []Result      `json:"results"`
	Options   FilterOptions `json:"options"`
	Summary   Summary       `json:"summary"`
	Features  Features      `json:"features"`
	Version   uint64        `json:"version"`
	Loaded    bool          `json:"loaded"`
	UpdatedAt time.Time     `json:"updated_at"`
	Deleting  bool          `json:"deleting"`
}

func NewService(client sheetClient, subjects SubjectSource, features Features, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		sheet:    client,
		subjects: subjects,
		store:    NewStore(),
		features: features,
		log:      log.Named("report"),
	}
}

func (s *Service) Features() Features {
	return s.features
}

func (s *Service) Store() *Store {
	return s.store
}

// Refresh fetches the full result set and commits it when it differs from the
// held one. On error the held set is kept.
func (s *Service) Refresh(ctx context.Context) (bool, error) {
	var rows []wireResult
	if err := s.sheet.Read(ctx, sheet.ActionGetExamResults, nil, &rows); err != nil {
		return false, fmt.Errorf("get exam results: %w", err)
	}
	return s.store.Commit(decodeResults(rows)), nil
}

// Query derives the visible table from the held set.
func (s *Service) Query(in QueryInput) View {
	f := in.Filter
	if !s.features.ResultStatus {
		f.Status = ""
	}
	snap := s.store.Snapshot()
	visible := Query(snap.Records, f, in.Sort)
	return View{
		Results:   visible,
		Options:   Options(snap.Records, s.features.ResultStatus),
		Summary:   Summarize(visible),
		Features:  s.features,
		Version:   snap.Version,
		Loaded:    snap.Loaded,
		UpdatedAt: snap.UpdatedAt,
		Deleting:  s.deleting.Load(),
	}
}

// SubjectOptions returns the subject dropdown built from the mapel sheet.
func (s *Service) SubjectOptions(ctx context.Context) ([]string, error) {
	if s.subjects == nil {
		return []string{}, nil
	}
	subjects, err := s.subjects.Subjects(ctx)
	if err != nil {
		return nil, err
	}
	return SubjectOptions(subjects), nil
}

// Delete removes one result and re-fetches the set. Only one deletion may be
// in flight at a time across all callers.
func (s *Service) Delete(ctx context.Context, id string) error {
	if !s.features.ResultDelete {
		return ErrFeatureDisabled
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	if !s.deleting.CompareAndSwap(false, true) {
		return ErrDeleteInProgress
	}
	defer s.deleting.Store(false)

	res := s.sheet.Write(ctx, sheet.ActionDeleteExamResult, map[string]any{"id": id})
	if err := res.Failure(); err != nil {
		return fmt.Errorf("delete exam result: %w", err)
	}
	if _, err := s.Refresh(ctx); err != nil {
		s.log.Warn("refresh after delete failed", zap.String("id", id), zap.Error(err))
	}
	return nil
}

// Export writes the visible table to an xlsx workbook.
func (s *Service) Export(in QueryInput) ([]byte, error) {
	v := s.Query(in)
	return ExportExcel(v.Results, s.features.ResultStatus)
}
