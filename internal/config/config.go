package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"freightrate/internal/logging"
)

type Config struct {
	DatabaseURL string
	Port        string
	AutoMigrate bool

	Logging logging.Config

	// CORSOrigins is empty when cross-origin requests are not allowed.
	CORSOrigins []string

	// CalcRateLimit is the sustained /api/calculate rate in requests per
	// second. Zero disables limiting.
	CalcRateLimit float64
	CalcRateBurst int

	RegionLookupTimeout time.Duration
	SeasonalityTimeout  time.Duration

	// Pool settings; zero means the db package default.
	DBMaxConns         int
	DBStatementTimeout time.Duration
}

func Load() Config {
	logCfg := logging.DefaultConfig()
	logCfg.Level = getenv("LOG_LEVEL", logCfg.Level)
	logCfg.Format = getenv("LOG_FORMAT", logCfg.Format)

	return Config{
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		Port:                getenv("PORT", "8080"),
		AutoMigrate:         getenvBool("AUTO_MIGRATE", false),
		Logging:             logCfg,
		CORSOrigins:         splitList(os.Getenv("CORS_ORIGINS")),
		CalcRateLimit:       getenvFloat("CALC_RATE_LIMIT", 0),
		CalcRateBurst:       getenvInt("CALC_RATE_BURST", 5),
		RegionLookupTimeout: getenvDuration("REGION_LOOKUP_TIMEOUT", 2*time.Second),
		SeasonalityTimeout:  getenvDuration("SEASONALITY_TIMEOUT", 3*time.Second),
		DBMaxConns:          getenvInt("DB_MAX_CONNS", 0),
		DBStatementTimeout:  getenvDuration("DB_STATEMENT_TIMEOUT", 0),
	}
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

// getenvDuration accepts Go duration strings ("1500ms") or bare seconds.
func getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
