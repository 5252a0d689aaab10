package sheet

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls []Call
}

func (o *recordingObserver) ObserveCall(ctx context.Context, call Call) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, call)
}

type mapelRow struct {
	Mapel  Text `json:"mapel"`
	Materi Text `json:"materi"`
}

func TestReadDecodesDataArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("expected GET, got %s", r.Method)
		}
		q := r.URL.Query()
		if q.Get("action") != ActionGetQuestions || q.Get("mapel") != "Bahasa Indonesia" || q.Get("materi") != "Bab 1 & 2" {
			t.Fatalf("unexpected query: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"success":true,"data":[{"mapel":"Bahasa Indonesia","materi":"Bab 1 & 2"}]}`))
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	c := NewClient(Config{ScriptURL: srv.URL, Observers: []CallObserver{obs}})

	var out []mapelRow
	err := c.Read(context.Background(), ActionGetQuestions, url.Values{
		"mapel":  {"Bahasa Indonesia"},
		"materi": {"Bab 1 & 2"},
	}, &out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(out) != 1 || out[0].Materi != "Bab 1 & 2" {
		t.Fatalf("unexpected rows: %+v", out)
	}
	if len(obs.calls) != 1 || obs.calls[0].Method != http.MethodGet || obs.calls[0].Err != nil {
		t.Fatalf("unexpected observed calls: %+v", obs.calls)
	}
}

func TestReadRejectsUnexpectedShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "success false", body: `{"success":false,"message":"sheet not found"}`},
		{name: "success missing", body: `{"data":[]}`},
		{name: "data not array", body: `{"success":true,"data":{"a":1}}`},
		{name: "data missing", body: `{"success":true}`},
		{name: "not json", body: `<html>error</html>`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			var out []mapelRow
			err := NewClient(Config{ScriptURL: srv.URL}).Read(context.Background(), ActionGetMapelData, nil, &out)
			if !errors.Is(err, ErrUnexpectedResponseShape) {
				t.Fatalf("expected ErrUnexpectedResponseShape, got %v", err)
			}
		})
	}
}

func TestReadNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	var out []mapelRow
	err := NewClient(Config{ScriptURL: addr}).Read(context.Background(), ActionGetMapelData, nil, &out)
	if !errors.Is(err, ErrNetworkFailure) {
		t.Fatalf("expected ErrNetworkFailure, got %v", err)
	}
}

func TestReadNon2xxIsNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	var out []mapelRow
	err := NewClient(Config{ScriptURL: srv.URL}).Read(context.Background(), ActionGetMapelData, nil, &out)
	if !errors.Is(err, ErrNetworkFailure) {
		t.Fatalf("expected ErrNetworkFailure, got %v", err)
	}
}

func TestReadLenientShapes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    int
		wantErr bool
	}{
		{name: "status success", body: `{"status":"success","data":[{"mapel":"A"}]}`, want: 1},
		{name: "success true", body: `{"success":true,"data":[{"mapel":"A"},{"mapel":"B"}]}`, want: 2},
		{name: "bare array", body: `[{"mapel":"A"}]`, want: 1},
		{name: "error status", body: `{"status":"error","message":"x"}`, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			var out []mapelRow
			err := NewClient(Config{ScriptURL: srv.URL}).ReadLenient(context.Background(), ActionGetFromDataSiswa, nil, &out)
			if tc.wantErr {
				if !errors.Is(err, ErrUnexpectedResponseShape) {
					t.Fatalf("expected ErrUnexpectedResponseShape, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(out) != tc.want {
				t.Fatalf("expected %d rows, got %d", tc.want, len(out))
			}
		})
	}
}

func TestWriteAcceptedIgnoresBody(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		b, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(b, &got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"success":false,"message":"ignored"}`))
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	res := NewClient(Config{ScriptURL: srv.URL, Observers: []CallObserver{obs}}).Write(context.Background(), ActionDeleteQuestion, map[string]any{
		"mapel":  "IPA",
		"materi": "Bab 1",
		"id":     "3",
	})
	if !res.Accepted() || res.Failure() != nil {
		t.Fatalf("expected accepted write, got %+v", res)
	}
	if got["action"] != ActionDeleteQuestion || got["id"] != "3" || got["mapel"] != "IPA" {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if len(obs.calls) != 1 || obs.calls[0].Method != http.MethodPost || obs.calls[0].Action != ActionDeleteQuestion {
		t.Fatalf("unexpected observed calls: %+v", obs.calls)
	}
}

func TestWriteTransportFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	res := NewClient(Config{ScriptURL: srv.URL}).Write(context.Background(), ActionAddToSheet, nil)
	if res.Accepted() || res.Status != WriteTransportFailed {
		t.Fatalf("expected transport failure, got %+v", res)
	}
	if !errors.Is(res.Failure(), ErrNetworkFailure) {
		t.Fatalf("expected ErrNetworkFailure, got %v", res.Failure())
	}
}
