package app

import (
	"database/sql"
	"net/http"
	"time"

	"cbtsheet/internal/app/observability"
	"cbtsheet/internal/audit"
	"cbtsheet/internal/masterdata"
	"cbtsheet/internal/question"
	"cbtsheet/internal/report"
	"cbtsheet/internal/sheet"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Services holds everything the router serves. Audit is nil when no
// database is configured.
type Services struct {
	Sheet      *sheet.Client
	Masterdata *masterdata.Service
	Questions  *question.Service
	Results    *report.Service
	Audit      *audit.Recorder
	Metrics    *observability.Collector
}

// NewServices builds the sheet client and the domain services on top of it.
// db may be nil.
func NewServices(cfg Config, db *sql.DB, log *zap.Logger) *Services {
	if log == nil {
		log = zap.NewNop()
	}
	metrics := observability.NewCollector(log)
	observers := []sheet.CallObserver{metrics}

	var recorder *audit.Recorder
	if db != nil {
		recorder = audit.NewRecorder(db, log)
		observers = append(observers, recorder)
	}

	client := sheet.NewClient(sheet.Config{
		ScriptURL:  cfg.ScriptURL,
		HTTPClient: &http.Client{Timeout: cfg.ScriptTimeout},
		Observers:  observers,
	})
	md := masterdata.NewService(client)
	features := report.Features{
		ResultStatus: cfg.ResultStatusEnabled,
		ResultDelete: cfg.ResultDeleteEnabled,
	}

	return &Services{
		Sheet:      client,
		Masterdata: md,
		Questions:  question.NewService(client, md),
		Results:    report.NewService(client, md, features, log),
		Audit:      recorder,
		Metrics:    metrics,
	}
}

func NewRouter(cfg Config, svc *Services) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(svc.Metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", csrfHeaderName, middleware.RequestIDHeader},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: !allowsAnyOrigin(cfg.CORSAllowedOrigins),
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Handle("/metrics", svc.Metrics.MetricsHandler())

	limiter := NewIPRateLimiter(cfg.RateLimitPerMin, time.Minute)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(RateLimitMiddleware(limiter))
		api.Use(CSRFMiddleware(cfg.CSRFEnforced))

		api.Get("/csrf", CSRFTokenHandler(cfg.IsProduction()))

		api.Route("/questions", question.NewHandler(svc.Questions, cfg.UploadMaxBytes).Routes)
		api.Route("/results", report.NewHandler(svc.Results).Routes)

		md := masterdata.NewHandler(svc.Masterdata)
		api.Route("/mapel", md.MapelRoutes)
		api.Route("/students", md.StudentRoutes)

		if svc.Audit != nil {
			api.Get("/audit", audit.NewHandler(svc.Audit).List)
		}
	})

	return r
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
