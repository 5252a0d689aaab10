package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	internaldb "cbtsheet/internal/db"
	"cbtsheet/internal/sheet"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS sheet_audit_logs (
	id BIGSERIAL PRIMARY KEY,
	request_id TEXT NOT NULL DEFAULT '',
	action TEXT NOT NULL,
	status TEXT NOT NULL,
	payload JSONB NOT NULL DEFAULT '{}'::jsonb,
	error TEXT NOT NULL DEFAULT '',
	elapsed_ms BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const schemaIndex = `
CREATE INDEX IF NOT EXISTS sheet_audit_logs_created_at_idx ON sheet_audit_logs (created_at DESC)`

const insertTimeout = 3 * time.Second

// Entry is one recorded write against the sheet endpoint.
type Entry struct {
	ID        int64           `json:"id"`
	RequestID string          `json:"request_id,omitempty"`
	Action    string          `json:"action"`
	Status    string          `json:"status"`
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error,omitempty"`
	ElapsedMS int64           `json:"elapsed_ms"`
	CreatedAt time.Time       `json:"created_at"`
}

// Recorder stores every sheet write in Postgres. Reads are not recorded.
type Recorder struct {
	db  *sql.DB
	log *zap.Logger
}

func NewRecorder(db *sql.DB, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{db: db, log: log.Named("audit")}
}

func (r *Recorder) Migrate(ctx context.Context) error {
	return internaldb.ApplySchema(ctx, r.db, schema, schemaIndex)
}

func (r *Recorder) ObserveCall(ctx context.Context, call sheet.Call) {
	e, ok := entryFromCall(ctx, call)
	if !ok {
		return
	}

	// The write already happened; record it even if the request was cancelled.
	insCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), insertTimeout)
	defer cancel()

	_, err := r.db.ExecContext(insCtx, `
		INSERT INTO sheet_audit_logs (request_id, action, status, payload, error, elapsed_ms, created_at)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6, now())
	`, e.RequestID, e.Action, e.Status, string(e.Payload), e.Error, e.ElapsedMS)
	if err != nil {
		r.log.Warn("audit insert failed", zap.String("action", e.Action), zap.Error(err))
	}
}

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	}
	return limit
}

// Recent lists the latest entries, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]Entry, error) {
	limit = clampLimit(limit)
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, request_id, action, status, payload, error, elapsed_ms, created_at
		FROM sheet_audit_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var payload []byte
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Action, &e.Status, &payload, &e.Error, &e.ElapsedMS, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		e.Payload = json.RawMessage(payload)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit logs: %w", err)
	}
	return out, nil
}

func entryFromCall(ctx context.Context, call sheet.Call) (Entry, bool) {
	if call.Method != http.MethodPost {
		return Entry{}, false
	}
	payload, err := json.Marshal(call.Fields)
	if err != nil || call.Fields == nil {
		payload = []byte("{}")
	}
	e := Entry{
		RequestID: middleware.GetReqID(ctx),
		Action:    call.Action,
		Status:    sheet.WriteAccepted.String(),
		Payload:   payload,
		ElapsedMS: call.Elapsed.Milliseconds(),
	}
	if call.Err != nil {
		e.Status = sheet.WriteTransportFailed.String()
		e.Error = call.Err.Error()
	}
	return e, true
}
