package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Row policy failure modes.
const (
	RowPolicyFailOpen   = "open"
	RowPolicyFailClosed = "closed"
)

// AppConfig holds application configuration loaded from environment variables and .env file.
type AppConfig struct {
	// HTTP
	Port string

	// Catalog database config
	DBHost string
	DBPort int
	DBUser string
	DBPass string
	DBName string

	// Logging config
	LogLevel      string
	LogFile       string
	LogMaxSize    int // MB
	LogMaxBackups int
	LogMaxAge     int // days
	LogCompress   bool

	// Engine config
	QueryTimeout         time.Duration // Upper bound for a single backend execution
	DefaultPageSize      int
	DedupGrace           time.Duration // How long a finished execution is shared with stragglers
	DedupMaxEntries      int
	CacheTTL             time.Duration
	CacheMaxEntries      int
	CacheListResponses   bool // Cache every list response, not only requests asking for it
	RowPolicyFailureMode string

	// Target database pools
	PoolMaxOpen      int
	PoolMaxIdle      int
	PoolConnLifetime time.Duration

	// Realtime
	RealtimePollInterval time.Duration
	RealtimeBuffer       int

	// Rate limiting for the REST surface
	RateLimitRPM   int
	RateLimitBurst int

	// Schemas never offered by table discovery
	SystemSchemas []string
}

// Cfg is the global application configuration instance.
var Cfg AppConfig

// LoadConfig loads application configuration from .env file and environment variables.
func LoadConfig() error {
	if err := godotenv.Load(); err != nil {
		// Use standard log here since logger is not initialized yet
		log.Printf("[WARN] .env file not found or cannot be loaded: %v", err)
	} else {
		log.Printf("[INFO] .env file loaded successfully")
	}

	Cfg = FromEnv()

	log.Printf("[INFO] Config loaded - catalog DB: %s@%s:%d/%s, LogLevel: %s",
		Cfg.DBUser, Cfg.DBHost, Cfg.DBPort, Cfg.DBName, Cfg.LogLevel)
	log.Printf("[INFO] Engine config - QueryTimeout: %v, CacheTTL: %v, DedupGrace: %v, RowPolicyFailureMode: %s",
		Cfg.QueryTimeout, Cfg.CacheTTL, Cfg.DedupGrace, Cfg.RowPolicyFailureMode)
	return nil
}

// FromEnv builds an AppConfig from the current environment without touching .env files.
func FromEnv() AppConfig {
	var c AppConfig

	c.Port = getEnv("PORT", "8081")

	c.DBHost = getEnv("DB_HOST", "127.0.0.1")
	c.DBPort = getEnvInt("DB_PORT", 3306)
	c.DBUser = getEnv("DB_USER", "root")
	c.DBPass = getEnv("DB_PASS", "")
	c.DBName = getEnv("DB_NAME", "autorest_catalog")

	c.LogLevel = getEnv("LOG_LEVEL", "INFO")
	c.LogFile = getEnv("LOG_FILE", "")
	c.LogMaxSize = getEnvInt("LOG_MAX_SIZE", 10)
	c.LogMaxBackups = getEnvInt("LOG_MAX_BACKUPS", 3)
	c.LogMaxAge = getEnvInt("LOG_MAX_AGE", 28)
	c.LogCompress = getEnvBool("LOG_COMPRESS", true)

	c.QueryTimeout = getEnvDuration("QUERY_TIMEOUT", 15*time.Second)
	c.DefaultPageSize = getEnvInt("DEFAULT_PAGE_SIZE", 20)
	c.DedupGrace = getEnvDuration("DEDUP_GRACE", 250*time.Millisecond)
	c.DedupMaxEntries = getEnvInt("DEDUP_MAX_ENTRIES", 10000)
	c.CacheTTL = getEnvDuration("CACHE_TTL", 5*time.Second)
	c.CacheMaxEntries = getEnvInt("CACHE_MAX_ENTRIES", 5000)
	c.CacheListResponses = getEnvBool("CACHE_LIST_RESPONSES", false)

	c.RowPolicyFailureMode = strings.ToLower(getEnv("ROW_POLICY_FAILURE_MODE", RowPolicyFailOpen))
	if c.RowPolicyFailureMode != RowPolicyFailClosed {
		c.RowPolicyFailureMode = RowPolicyFailOpen
	}

	c.PoolMaxOpen = getEnvInt("POOL_MAX_OPEN", 10)
	c.PoolMaxIdle = getEnvInt("POOL_MAX_IDLE", 5)
	c.PoolConnLifetime = getEnvDuration("POOL_CONN_LIFETIME", 30*time.Minute)

	c.RealtimePollInterval = getEnvDuration("REALTIME_POLL_INTERVAL", 5*time.Second)
	c.RealtimeBuffer = getEnvInt("REALTIME_BUFFER", 16)

	c.RateLimitRPM = getEnvInt("RATE_LIMIT_RPM", 600)
	c.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 100)

	c.SystemSchemas = getEnvStringSlice("SYSTEM_SCHEMAS", []string{
		"information_schema",
		"pg_catalog",
		"pg_toast",
		"mysql",
		"performance_schema",
		"sys",
		"INFORMATION_SCHEMA",
	})
	return c
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

// getEnvDuration accepts Go durations ("250ms", "5s") or a bare number of seconds.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultVal
}

// getEnvStringSlice parses comma-separated environment variable into string slice
// Format: "item1,item2,item3" -> []string{"item1", "item2", "item3"}
func getEnvStringSlice(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		items := strings.Split(val, ",")
		result := make([]string, 0, len(items))
		for _, item := range items {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return defaultVal
}

// IsSystemSchema checks if a schema name is in the system exclusion list.
func (c AppConfig) IsSystemSchema(name string) bool {
	for _, s := range c.SystemSchemas {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}
