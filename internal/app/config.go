package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"cbtsheet/internal/sheet"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	AppEnv        string
	HTTPAddr      string
	ScriptURL     string
	ScriptTimeout time.Duration

	ResultRefresh       time.Duration
	ResultStatusEnabled bool
	ResultDeleteEnabled bool

	CORSAllowedOrigins []string
	CSRFEnforced       bool
	RateLimitPerMin    int
	UploadMaxBytes     int64

	LogLevel string
	LogFile  string

	// DBDSN is optional; without it the write audit log is disabled.
	DBDSN             string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifeMins int
}

// LoadConfig reads .env when present, then the process environment.
func LoadConfig() Config {
	_ = godotenv.Load()

	return Config{
		AppEnv:              envOrDefault("APP_ENV", "development"),
		HTTPAddr:            envOrDefault("HTTP_ADDR", ":8080"),
		ScriptURL:           envOrDefault("SCRIPT_URL", sheet.DefaultScriptURL),
		ScriptTimeout:       time.Duration(intOrDefault("SCRIPT_TIMEOUT_SECONDS", 30)) * time.Second,
		ResultRefresh:       time.Duration(intOrDefault("RESULT_REFRESH_SECONDS", 10)) * time.Second,
		ResultStatusEnabled: boolOrDefault("FEATURE_RESULT_STATUS", true),
		ResultDeleteEnabled: boolOrDefault("FEATURE_RESULT_DELETE", true),
		CORSAllowedOrigins:  listOrDefault("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CSRFEnforced:        boolOrDefault("CSRF_ENFORCED", false),
		RateLimitPerMin:     intOrDefault("RATE_LIMIT_PER_MINUTE", 120),
		UploadMaxBytes:      int64(intOrDefault("UPLOAD_MAX_MB", 10)) << 20,
		LogLevel:            envOrDefault("LOG_LEVEL", "info"),
		LogFile:             os.Getenv("LOG_FILE"),
		DBDSN:               os.Getenv("DB_DSN"),
		DBMaxOpenConns:      intOrDefault("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns:      intOrDefault("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifeMins:   intOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30),
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsToInt(v string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(v))
	return n
}

func intOrDefault(key string, fallback int) int {
	v := stringsToInt(os.Getenv(key))
	if v <= 0 {
		return fallback
	}
	return v
}

func boolOrDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func listOrDefault(key string, fallback []string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
