package question

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cbtsheet/internal/app/apiresp"
	"cbtsheet/internal/sheet"

	"github.com/go-chi/chi/v5"
)

const defaultUploadLimit = 10 << 20

type Handler struct {
	svc         questionService
	uploadLimit int64
}

type questionService interface {
	Load(ctx context.Context, sel Selection) (*DraftView, error)
	View(sel Selection) DraftView
	Add(sel Selection) Record
	StartEdit(sel Selection, id string) error
	UpdateField(sel Selection, id, field, value string) (*Record, error)
	SaveEdit(ctx context.Context, sel Selection) (*Record, error)
	CancelEdit(ctx context.Context, sel Selection) (*DraftView, error)
	Delete(ctx context.Context, sel Selection, id string) error
	Submit(ctx context.Context, sel Selection) (*SubmitResult, error)
	Import(ctx context.Context, mapel, materi string, r io.Reader) (*ImportResult, error)
}

type apiResponse struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type updateFieldRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// NewHandler wires the question endpoints. uploadLimit caps import uploads in
// bytes; zero or less uses 10 MiB.
func NewHandler(svc *Service, uploadLimit int64) *Handler {
	if uploadLimit <= 0 {
		uploadLimit = defaultUploadLimit
	}
	return &Handler{svc: svc, uploadLimit: uploadLimit}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.Load)
	r.Post("/", h.Add)
	r.Get("/draft", h.View)
	r.Get("/template", h.DownloadTemplate)
	r.Post("/import", h.Import)
	r.Post("/submit", h.Submit)
	r.Post("/edit/save", h.SaveEdit)
	r.Post("/edit/cancel", h.CancelEdit)
	r.Post("/{id}/edit", h.StartEdit)
	r.Patch("/{id}", h.UpdateField)
	r.Delete("/{id}", h.Delete)
}

func selectionFromQuery(r *http.Request) (Selection, error) {
	q := r.URL.Query()
	return NewSelection(q.Get("mapel"), q.Get("materi"))
}

func (h *Handler) Load(w http.ResponseWriter, r *http.Request) {
	sel, err := selectionFromQuery(r)
	if err != nil {
		writeError(w, r, err, "baris")
		return
	}
	view, err := h.svc.Load(r.Context(), sel)
	if err != nil {
		writeError(w, r, err, "baris")
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: view})
}

func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	sel, err := selectionFromQuery(r)
	if err != nil {
		writeError(w, r, err, "baris")
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: h.svc.View(sel)})
}

func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	sel, err := selectionFromQuery(r)
	if err != nil {
		writeError(w, r, err, "baris")
		return
	}
	writeJSON(w, r, http.StatusCreated, apiResponse{OK: true, Data: h.svc.Add(sel)})
}

func (h *Handler) StartEdit(w http.ResponseWriter, r *http.Request) {
	sel, err := selectionFromQuery(r)
	if err != nil {
		writeError(w, r, err, "baris")
		return
	}
	if err := h.svc.StartEdit(sel, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err, "baris")
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: h.svc.View(sel)})
}

func (h *Handler) UpdateField(w http.ResponseWriter, r *http.Request) {
	sel, err := selectionFromQuery(r)
	if err != nil {
		writeError(w, r, err, "baris")
		return
	}
	var req updateFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "payload tidak valid"})
		return
	}
	rec, err := h.svc.UpdateField(sel, chi.URLParam(r, "id"), strings.TrimSpace(req.Field), req.Value)
	if err != nil {
		writeError(w, r, err, "baris")
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: rec})
}

func (h *Handler) SaveEdit(w http.ResponseWriter, r *http.Request) {
	sel, err := selectionFromQuery(r)
	if err != nil {
		writeError(w, r, err, "baris")
		return
	}
	rec, err := h.svc.SaveEdit(r.Context(), sel)
	if err != nil {
		writeError(w, r, err, "baris")
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: map[string]any{
		"question": rec,
		"message":  "Soal berhasil diperbarui!",
	}})
}

func (h *Handler) CancelEdit(w http.ResponseWriter, r *http.Request) {
	sel, err := selectionFromQuery(r)
	if err != nil {
		writeError(w, r, err, "baris")
		return
	}
	view, err := h.svc.CancelEdit(r.Context(), sel)
	if err != nil {
		writeError(w, r, err, "baris")
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: view})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	sel, err := selectionFromQuery(r)
	if err != nil {
		writeError(w, r, err, "baris")
		return
	}
	if err := h.svc.Delete(r.Context(), sel, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err, "baris")
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: map[string]any{
		"message": "Soal berhasil dihapus!",
	}})
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	sel, err := selectionFromQuery(r)
	if err != nil {
		writeError(w, r, err, "soal nomor")
		return
	}
	res, err := h.svc.Submit(r.Context(), sel)
	if err != nil {
		writeError(w, r, err, "soal nomor")
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: map[string]any{
		"result":  res,
		"message": fmt.Sprintf("Data berhasil dikirim ke %s!", sheetLabel(res.SheetName, sel)),
	}})
}

func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.uploadLimit)
	if err := r.ParseMultipartForm(h.uploadLimit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, r, http.StatusRequestEntityTooLarge, apiResponse{OK: false, Error: "Ukuran file melebihi batas unggah."})
			return
		}
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "file upload tidak valid"})
		return
	}
	mapel, materi := r.FormValue("mapel"), r.FormValue("materi")
	if _, err := NewSelection(mapel, materi); err != nil {
		writeError(w, r, err, "baris")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "file wajib diunggah"})
		return
	}
	defer file.Close()

	res, err := h.svc.Import(r.Context(), mapel, materi, file)
	if err != nil {
		writeError(w, r, err, "baris")
		return
	}
	sel := Selection{Mapel: res.Mapel, Materi: res.Materi}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: map[string]any{
		"result":  res,
		"message": fmt.Sprintf("Data dari file berhasil diunggah dan menggantikan data di %s!", sheetLabel(res.SheetName, sel)),
	}})
}

func (h *Handler) DownloadTemplate(w http.ResponseWriter, r *http.Request) {
	b, err := Template()
	if err != nil {
		writeJSON(w, r, http.StatusInternalServerError, apiResponse{OK: false, Error: "internal error"})
		return
	}
	apiresp.WriteXLSX(w, TemplateFileName, b)
}

func sheetLabel(name string, sel Selection) string {
	if name != "" {
		return name
	}
	return sel.Mapel + " - " + sel.Materi
}

// StatusMessage converts a question error into the status line shown to staff.
// rowLabel names the unit in row-level messages ("baris" for uploads).
func StatusMessage(err error, rowLabel string) (int, string) {
	var rowErr *RowError
	if errors.As(err, &rowErr) {
		switch {
		case errors.Is(rowErr.Err, ErrInvalidAnswer):
			return http.StatusBadRequest, fmt.Sprintf("Jawaban tidak valid pada %s %d. Harus A, B, C, atau D.", rowLabel, rowErr.Row)
		case errors.Is(rowErr.Err, ErrMissingRequiredField):
			return http.StatusBadRequest, fmt.Sprintf("Ada field wajib kosong pada %s %d.", rowLabel, rowErr.Row)
		}
	}

	switch {
	case errors.Is(err, ErrMissingSelection):
		return http.StatusBadRequest, "Pilih mata pelajaran dan materi terlebih dahulu!"
	case errors.Is(err, ErrUnreadableFile):
		return http.StatusBadRequest, "File tidak dapat dibaca sebagai XLSX."
	case errors.Is(err, ErrEmptyFile):
		return http.StatusBadRequest, "File XLSX kosong."
	case errors.Is(err, ErrInvalidHeader):
		return http.StatusBadRequest, "Format file tidak sesuai. Pastikan header kolom: SOAL, GAMBAR, OPSI A, OPSI B, OPSI C, OPSI D, JAWABAN ada di file."
	case errors.Is(err, ErrMissingRequiredField):
		return http.StatusBadRequest, "Semua field wajib diisi!"
	case errors.Is(err, ErrInvalidAnswer):
		return http.StatusBadRequest, "Jawaban tidak valid. Harus A, B, C, atau D."
	case errors.Is(err, ErrNothingToSubmit):
		return http.StatusBadRequest, "Belum ada soal untuk dikirim."
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrQuestionNotFound):
		return http.StatusNotFound, "Soal tidak ditemukan."
	case errors.Is(err, ErrUnknownSelection):
		return http.StatusNotFound, "Mata pelajaran dan materi belum terdaftar."
	case errors.Is(err, ErrEditInProgress):
		return http.StatusConflict, "Soal lain sedang diedit. Simpan atau batalkan terlebih dahulu."
	case errors.Is(err, ErrNotEditing):
		return http.StatusConflict, "Soal tidak sedang dalam mode edit."
	case errors.Is(err, ErrLastQuestion):
		return http.StatusConflict, "Minimal satu soal harus tersisa."
	case errors.Is(err, sheet.ErrUnexpectedResponseShape):
		return http.StatusBadGateway, "Format response dari spreadsheet tidak sesuai."
	case errors.Is(err, sheet.ErrNetworkFailure):
		return http.StatusBadGateway, "Gagal terhubung ke spreadsheet."
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error, rowLabel string) {
	code, msg := StatusMessage(err, rowLabel)
	var rowErr *RowError
	if errors.As(err, &rowErr) {
		apiresp.WriteRowError(w, r, code, msg, rowErr.Row)
		return
	}
	writeJSON(w, r, code, apiResponse{OK: false, Error: msg})
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, payload apiResponse) {
	if payload.OK {
		apiresp.WriteOK(w, r, code, payload.Data)
		return
	}
	apiresp.WriteError(w, r, code, payload.Error)
}
