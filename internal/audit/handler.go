package audit

import (
	"context"
	"net/http"
	"strconv"

	"cbtsheet/internal/app/apiresp"
)

type Handler struct {
	svc auditReader
}

type auditReader interface {
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

func NewHandler(r *Recorder) *Handler {
	return &Handler{svc: r}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.svc.Recent(r.Context(), limit)
	if err != nil {
		apiresp.WriteError(w, r, http.StatusInternalServerError, "gagal membaca log audit")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, items)
}
