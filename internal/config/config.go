package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string

	DBDriver string
	DBDSN    string

	// StorageRoot holds the _incoming staging area and one directory per course/level.
	StorageRoot        string
	MaxUploadBytes     int64
	MaxImageEntryBytes int64

	// LegacyQuestionFallback keeps the cross-upload union when a course/level
	// has no processed upload. Deprecated; only old data depends on it.
	LegacyQuestionFallback bool

	LogMode string
	LogFile string

	EnableAuth     bool
	AuthHMACSecret string
	AdminUser      string
	AdminPassHash  string // bcrypt; login is refused while empty

	CORSOrigins []string

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// FromEnv loads an optional .env file and then reads the process environment.
func FromEnv() Config {
	_ = godotenv.Load()

	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	logMode := "dev"
	if mode == ModeOnline {
		logMode = "prod"
	}
	return Config{
		Mode:                   mode,
		HTTPAddr:               envOr("HTTP_ADDR", ":5190"),
		DBDriver:               envOr("DB_DRIVER", "sqlite"),
		DBDSN:                  envOr("DB_DSN", ""),
		StorageRoot:            envOr("STORAGE_ROOT", "./storage/quiz-docs"),
		MaxUploadBytes:         envInt64("MAX_UPLOAD_BYTES", 50<<20),
		MaxImageEntryBytes:     envInt64("MAX_IMAGE_ENTRY_BYTES", 20<<20),
		LegacyQuestionFallback: envBool("LEGACY_QUESTION_FALLBACK", true),
		LogMode:                envOr("LOG_MODE", logMode),
		LogFile:                os.Getenv("LOG_FILE"),
		EnableAuth:             envBool("ENABLE_AUTH", mode == ModeOnline),
		AuthHMACSecret:         envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		AdminUser:              envOr("ADMIN_USER", "admin"),
		AdminPassHash:          os.Getenv("ADMIN_PASS_HASH"),
		CORSOrigins:            csvOr("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		RequestTimeout:         envDuration("REQUEST_TIMEOUT", 2*time.Minute),
		ShutdownTimeout:        envDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envInt64(k string, def int64) int64 {
	n, err := strconv.ParseInt(os.Getenv(k), 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
func envDuration(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(k))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
