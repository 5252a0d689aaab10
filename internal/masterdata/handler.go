package masterdata

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"cbtsheet/internal/app/apiresp"
	"cbtsheet/internal/sheet"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc masterdataService
}

type masterdataService interface {
	ListMapel(ctx context.Context) ([]Mapel, error)
	Subjects(ctx context.Context) ([]string, error)
	Topics(ctx context.Context, mapel string) ([]string, error)
	CreateMapel(ctx context.Context, in MapelInput) error
	UpdateMapel(ctx context.Context, id string, in MapelInput) error
	DeleteMapel(ctx context.Context, id string) error
	DeleteAllMapel(ctx context.Context) error
	ListStudents(ctx context.Context) ([]Student, error)
	CreateStudent(ctx context.Context, in StudentInput) error
	UpdateStudent(ctx context.Context, id string, in StudentInput) error
	DeleteStudent(ctx context.Context, id string) error
	DeleteAllStudents(ctx context.Context) error
	ImportStudentsCSV(ctx context.Context, r io.Reader) (*ImportStudentsReport, error)
}

type apiResponse struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) MapelRoutes(r chi.Router) {
	r.Get("/", h.ListMapel)
	r.Post("/", h.CreateMapel)
	r.Delete("/", h.DeleteAllMapel)
	r.Get("/subjects", h.Subjects)
	r.Get("/topics", h.Topics)
	r.Put("/{id}", h.UpdateMapel)
	r.Delete("/{id}", h.DeleteMapel)
}

func (h *Handler) StudentRoutes(r chi.Router) {
	r.Get("/", h.ListStudents)
	r.Post("/", h.CreateStudent)
	r.Delete("/", h.DeleteAllStudents)
	r.Post("/import", h.ImportStudentsCSV)
	r.Put("/{id}", h.UpdateStudent)
	r.Delete("/{id}", h.DeleteStudent)
}

func (h *Handler) ListMapel(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListMapel(r.Context())
	if err != nil {
		writeError(w, r, err, "Gagal mengambil data mapel.")
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: items})
}

func (h *Handler) Subjects(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Subjects(r.Context())
	if err != nil {
		writeError(w, r, err, "Gagal mengambil data mapel.")
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: items})
}

func (h *Handler) Topics(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Topics(r.Context(), r.URL.Query().Get("mapel"))
	if err != nil {
		writeError(w, r, err, "Gagal mengambil data mapel.")
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: items})
}

func (h *Handler) CreateMapel(w http.ResponseWriter, r *http.Request) {
	var req MapelInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid request body"})
		return
	}
	if err := h.svc.CreateMapel(r.Context(), req); err != nil {
		writeMapelError(w, r, err, "Gagal menambahkan data mapel.")
		return
	}
	writeJSON(w, r, http.StatusCreated, apiResponse{OK: true, Data: map[string]any{
		"message": "Data mapel berhasil ditambahkan!",
	}})
}

func (h *Handler) UpdateMapel(w http.ResponseWriter, r *http.Request) {
	var req MapelInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid request body"})
		return
	}
	if err := h.svc.UpdateMapel(r.Context(), chi.URLParam(r, "id"), req); err != nil {
		writeMapelError(w, r, err, "Gagal memperbarui data mapel.")
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: map[string]any{
		"message": "Data mapel berhasil diperbarui!",
	}})
}

func (h *Handler) DeleteMapel(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteMapel(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err, "Gagal menghapus data mapel.")
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: map[string]any{
		"message": "Data mapel berhasil dihapus!",
	}})
}

func (h *Handler) DeleteAllMapel(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteAllMapel(r.Context()); err != nil {
		writeError(w, r, err, "Gagal menghapus semua data mapel.")
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: map[string]any{
		"message": "Semua data mapel berhasil dihapus!",
	}})
}

func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListStudents(r.Context())
	if err != nil {
		writeError(w, r, err, "Gagal mengambil data siswa.")
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: items})
}

func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req StudentInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid request body"})
		return
	}
	if err := h.svc.CreateStudent(r.Context(), req); err != nil {
		writeStudentError(w, r, err, "Gagal menambahkan siswa.")
		return
	}
	writeJSON(w, r, http.StatusCreated, apiResponse{OK: true, Data: map[string]any{
		"message": "Data siswa berhasil ditambahkan!",
	}})
}

func (h *Handler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	var req StudentInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid request body"})
		return
	}
	if err := h.svc.UpdateStudent(r.Context(), chi.URLParam(r, "id"), req); err != nil {
		writeStudentError(w, r, err, "Gagal memperbarui data siswa.")
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: map[string]any{
		"message": "Data siswa berhasil diperbarui!",
	}})
}

func (h *Handler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteStudent(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err, "Gagal menghapus siswa.")
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: map[string]any{
		"message": "Siswa berhasil dihapus!",
	}})
}

func (h *Handler) DeleteAllStudents(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteAllStudents(r.Context()); err != nil {
		writeError(w, r, err, "Gagal menghapus semua data siswa.")
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: map[string]any{
		"message": "Semua data siswa berhasil dihapus!",
	}})
}

func (h *Handler) ImportStudentsCSV(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(16 << 20); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid multipart form"})
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "file field is required"})
		return
	}
	defer file.Close()

	report, err := h.svc.ImportStudentsCSV(r.Context(), file)
	if err != nil {
		writeError(w, r, err, "Gagal mengimpor data siswa.")
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: map[string]any{
		"filename": hdr.Filename,
		"report":   report,
	}})
}

func writeMapelError(w http.ResponseWriter, r *http.Request, err error, upstreamMsg string) {
	if errors.Is(err, ErrInvalidInput) {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "Mapel, materi, dan nama sheet wajib diisi!"})
		return
	}
	writeError(w, r, err, upstreamMsg)
}

func writeStudentError(w http.ResponseWriter, r *http.Request, err error, upstreamMsg string) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "NISN dan nama siswa wajib diisi!"})
	case errors.Is(err, ErrDuplicateNISN):
		writeJSON(w, r, http.StatusConflict, apiResponse{OK: false, Error: "NISN sudah terdaftar!"})
	default:
		writeError(w, r, err, upstreamMsg)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error, upstreamMsg string) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: err.Error()})
	case errors.Is(err, sheet.ErrNetworkFailure), errors.Is(err, sheet.ErrUnexpectedResponseShape):
		writeJSON(w, r, http.StatusBadGateway, apiResponse{OK: false, Error: upstreamMsg})
	default:
		writeJSON(w, r, http.StatusInternalServerError, apiResponse{OK: false, Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, payload apiResponse) {
	apiresp.WriteLegacy(w, r, code, payload.OK, payload.Data, payload.Error)
}
