package report

import (
	"context"
	"errors"
	"net/http"

	"cbtsheet/internal/app/apiresp"
	"cbtsheet/internal/sheet"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc reportService
}

type reportService interface {
	Features() Features
	Refresh(ctx context.Context) (bool, error)
	Query(in QueryInput) View
	SubjectOptions(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id string) error
	Export(in QueryInput) ([]byte, error)
}

type apiResponse struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/subjects", h.Subjects)
	r.Get("/export", h.Export)
	r.Post("/refresh", h.Refresh)
	if h.svc.Features().ResultDelete {
		r.Delete("/{id}", h.Delete)
	}
}

func queryInput(r *http.Request) QueryInput {
	q := r.URL.Query()
	return QueryInput{
		Filter: Filter{
			Nama:          q.Get("nama"),
			MataPelajaran: q.Get("mata_pelajaran"),
			BabNama:       q.Get("bab_nama"),
			Status:        q.Get("status"),
			JenisUjian:    q.Get("jenis_ujian"),
		},
		Sort: ParseSortMode(q.Get("sort")),
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: h.svc.Query(queryInput(r))})
}

func (h *Handler) Subjects(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.SubjectOptions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: items})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	changed, err := h.svc.Refresh(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	view := h.svc.Query(queryInput(r))
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: map[string]any{
		"changed": changed,
		"view":    view,
	}})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, sheet.ErrNetworkFailure) {
			writeJSON(w, r, http.StatusBadGateway, apiResponse{OK: false, Error: "Gagal menghapus hasil ujian. Silakan coba lagi."})
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: map[string]any{
		"message": "Hasil ujian berhasil dihapus!",
	}})
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.Export(queryInput(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	apiresp.WriteXLSX(w, ExportFileName, b)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: err.Error()})
	case errors.Is(err, ErrDeleteInProgress):
		writeJSON(w, r, http.StatusConflict, apiResponse{OK: false, Error: "Masih ada hasil ujian yang sedang dihapus."})
	case errors.Is(err, ErrFeatureDisabled):
		writeJSON(w, r, http.StatusNotFound, apiResponse{OK: false, Error: "Fitur tidak tersedia."})
	case errors.Is(err, sheet.ErrNetworkFailure), errors.Is(err, sheet.ErrUnexpectedResponseShape):
		writeJSON(w, r, http.StatusBadGateway, apiResponse{OK: false, Error: "Gagal mengambil data hasil ujian dari HasilUjian."})
	default:
		writeJSON(w, r, http.StatusInternalServerError, apiResponse{OK: false, Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, payload apiResponse) {
	if payload.OK {
		apiresp.WriteOK(w, r, code, payload.Data)
		return
	}
	apiresp.WriteError(w, r, code, payload.Error)
}
