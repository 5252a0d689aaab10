package report

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"cbtsheet/internal/sheet"

	"github.com/go-chi/chi/v5"
)

type mockReportService struct {
	features  Features
	refreshFn func(ctx context.Context) (bool, error)
	queryFn   func(in QueryInput) View
	deleteFn  func(ctx context.Context, id string) error
}

func (m *mockReportService) Features() Features { return m.features }

func (m *mockReportService) Refresh(ctx context.Context) (bool, error) {
	if m.refreshFn == nil {
		return false, errors.New("not implemented")
	}
	return m.refreshFn(ctx)
}

func (m *mockReportService) Query(in QueryInput) View {
	if m.queryFn == nil {
		return View{}
	}
	return m.queryFn(in)
}

func (m *mockReportService) SubjectOptions(ctx context.Context) ([]string, error) {
	return []string{"IPA"}, nil
}

func (m *mockReportService) Delete(ctx context.Context, id string) error {
	if m.deleteFn == nil {
		return errors.New("not implemented")
	}
	return m.deleteFn(ctx, id)
}

func (m *mockReportService) Export(in QueryInput) ([]byte, error) {
	return ExportExcel(nil, m.features.ResultStatus)
}

func newTestRouter(svc reportService) http.Handler {
	h := &Handler{svc: svc}
	r := chi.NewRouter()
	r.Route("/results", h.Routes)
	return r
}

func TestHandlerListParsesFilterAndSort(t *testing.T) {
	var got QueryInput
	router := newTestRouter(&mockReportService{
		queryFn: func(in QueryInput) View {
			got = in
			return View{Results: []Result{{ID: "a1"}}}
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/results?mata_pelajaran=Math&status=Lulus&sort=highest", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got.Filter.MataPelajaran != "Math" || got.Filter.Status != "Lulus" || got.Sort != SortHighest {
		t.Fatalf("unexpected query input: %+v", got)
	}
}

func TestHandlerDeleteRouteFollowsFeature(t *testing.T) {
	router := newTestRouter(&mockReportService{})
	req := httptest.NewRequest(http.MethodDelete, "/results/a1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed && rr.Code != http.StatusNotFound {
		t.Fatalf("expected delete route to be absent, got %d", rr.Code)
	}

	var deleted string
	router = newTestRouter(&mockReportService{
		features: Features{ResultDelete: true},
		deleteFn: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	})
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/results/a1", nil))
	if rr.Code != http.StatusOK || deleted != "a1" {
		t.Fatalf("expected delete of a1, got code=%d id=%q", rr.Code, deleted)
	}
}

func TestHandlerDeleteErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{name: "in progress", err: ErrDeleteInProgress, wantCode: http.StatusConflict},
		{name: "network", err: sheet.ErrNetworkFailure, wantCode: http.StatusBadGateway},
		{name: "invalid", err: ErrInvalidInput, wantCode: http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(&mockReportService{
				features: Features{ResultDelete: true},
				deleteFn: func(ctx context.Context, id string) error { return tc.err },
			})
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/results/a1", nil))
			if rr.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rr.Code)
			}
		})
	}
}

func TestHandlerRefreshReportsChange(t *testing.T) {
	router := newTestRouter(&mockReportService{
		refreshFn: func(ctx context.Context) (bool, error) { return true, nil },
	})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/results/refresh", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var env struct {
		Data struct {
			Changed bool `json:"changed"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !env.Data.Changed {
		t.Fatalf("expected changed=true")
	}
}

func TestHandlerExport(t *testing.T) {
	router := newTestRouter(&mockReportService{features: Features{ResultStatus: true}})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/results/export", nil))
	if rr.Code != http.StatusOK || rr.Body.Len() == 0 {
		t.Fatalf("expected workbook, got code=%d len=%d", rr.Code, rr.Body.Len())
	}
}
