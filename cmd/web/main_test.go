package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cbtsheet/internal/app"

	"go.uber.org/zap"
)

func TestRunReturnsListenErrorInsteadOfExiting(t *testing.T) {
	script := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":true,"data":[]}`)
	}))
	defer script.Close()

	cfg := app.Config{
		HTTPAddr:           "127.0.0.1:-1",
		ScriptURL:          script.URL,
		ScriptTimeout:      time.Second,
		ResultRefresh:      time.Minute,
		CORSAllowedOrigins: []string{"*"},
		RateLimitPerMin:    60,
	}

	done := make(chan error, 1)
	go func() { done <- run(cfg, zap.NewNop()) }()

	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "listen") {
			t.Fatalf("expected listen error, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not return after listen failure")
	}
}
