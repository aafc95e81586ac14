package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName        = "DJQS"
	defaultAppEnv         = "local"
	defaultAppPort        = "8001"
	defaultIndex          = "sqlite:///djqs.db"
	defaultResultsBackend = "memory"
	defaultResultsPrefix  = ""
	defaultRedisAddr      = "localhost:6379"
	defaultQueueDriver    = "memory"
	defaultConfigFile     = "config/djqs.json"
	defaultDotEnvFile     = ".env"
)

var (
	loadOnce sync.Once
	loadErr  error

	mu        sync.RWMutex
	values    = defaultValues()
	overrides = map[string]string{}
)

// Load reads the JSON config file, the dotenv file named by DOTENV_FILE and
// the process environment, in increasing order of precedence. It runs once;
// subsequent calls return the first result.
func Load() error {
	loadOnce.Do(func() {
		loadErr = loadFrom(
			envOr("CONFIG_FILE", defaultConfigFile),
			envOr("DOTENV_FILE", defaultDotEnvFile),
		)
	})
	return loadErr
}

// Reset discards loaded values and overrides so the next Load starts over.
func Reset() {
	mu.Lock()
	values = defaultValues()
	overrides = map[string]string{}
	mu.Unlock()
	loadOnce = sync.Once{}
	loadErr = nil
}

// Set overrides key for the rest of the process. Overrides win over every
// other layer.
func Set(key, value string) {
	mu.Lock()
	defer mu.Unlock()
	overrides[strings.ToUpper(key)] = value
}

func defaultValues() map[string]string {
	return map[string]string{
		"APP_NAME":             defaultAppName,
		"APP_ENV":              defaultAppEnv,
		"APP_PORT":             defaultAppPort,
		"INDEX":                defaultIndex,
		"RESULTS_BACKEND":      defaultResultsBackend,
		"RESULTS_TTL":          "0",
		"RESULTS_PREFIX":       defaultResultsPrefix,
		"REDIS_ADDR":           defaultRedisAddr,
		"REDIS_DB":             "0",
		"QUEUE_DRIVER":         defaultQueueDriver,
		"QUEUE_WORKERS":        "4",
		"QUEUE_MAX_RETRY":      "1",
		"STORAGE_DISK":         "local",
		"STORAGE_LOCAL_ROOT":   "storage",
		"S3_REGION":            "us-east-1",
		"LOG_MONGO_DB":         "djqs",
		"LOG_MONGO_COLLECTION": "logs",
		"MAX_BODY_BYTES":       "4194304",
		"RATE_LIMIT":           "600",
		"CORS_ORIGINS":         "*",
	}
}

func AppName() string { _ = Load(); return get("APP_NAME", defaultAppName) }
func AppEnv() string  { _ = Load(); return get("APP_ENV", defaultAppEnv) }
func AppPort() string { _ = Load(); return get("APP_PORT", defaultAppPort) }

// GRPCPort returns the gRPC health port, or "" when gRPC is disabled.
func GRPCPort() string { _ = Load(); return get("GRPC_PORT", "") }

// Index is the URI of the metadata database holding catalogs, engines and
// queries.
func Index() string { _ = Load(); return get("INDEX", defaultIndex) }

// ── Results backend ──────────────────────────────────────────────────────────

func ResultsBackend() string {
	_ = Load()

	backend := strings.ToLower(get("RESULTS_BACKEND", defaultResultsBackend))
	switch backend {
	case "memory", "redis", "storage":
		return backend
	default:
		return defaultResultsBackend
	}
}

func ResultsTTL() time.Duration {
	_ = Load()
	return time.Duration(Int("RESULTS_TTL", 0)) * time.Second
}

func ResultsPrefix() string { _ = Load(); return get("RESULTS_PREFIX", defaultResultsPrefix) }

// ── Redis / queue ────────────────────────────────────────────────────────────

func RedisAddr() string     { _ = Load(); return get("REDIS_ADDR", defaultRedisAddr) }
func RedisPassword() string { _ = Load(); return get("REDIS_PASSWORD", "") }
func RedisDB() int          { return Int("REDIS_DB", 0) }

func QueueDriver() string {
	_ = Load()
	if strings.ToLower(get("QUEUE_DRIVER", defaultQueueDriver)) == "redis" {
		return "redis"
	}
	return defaultQueueDriver
}

func QueueWorkers() int  { return Int("QUEUE_WORKERS", 4) }
func QueueMaxRetry() int { return Int("QUEUE_MAX_RETRY", 1) }

// ── Storage ──────────────────────────────────────────────────────────────────

func StorageDefault() string   { _ = Load(); return get("STORAGE_DISK", "local") }
func StorageLocalRoot() string { _ = Load(); return get("STORAGE_LOCAL_ROOT", "storage") }

func StorageS3Bucket() string   { _ = Load(); return get("S3_BUCKET", "") }
func StorageS3Region() string   { _ = Load(); return get("S3_REGION", "us-east-1") }
func StorageS3Key() string      { _ = Load(); return get("S3_KEY", "") }
func StorageS3Secret() string   { _ = Load(); return get("S3_SECRET", "") }
func StorageS3Endpoint() string { _ = Load(); return get("S3_ENDPOINT", "") }

// ── Logging ──────────────────────────────────────────────────────────────────

func LogMongoURI() string        { _ = Load(); return get("LOG_MONGO_URI", "") }
func LogMongoDB() string         { _ = Load(); return get("LOG_MONGO_DB", "djqs") }
func LogMongoCollection() string { _ = Load(); return get("LOG_MONGO_COLLECTION", "logs") }

// ── HTTP ─────────────────────────────────────────────────────────────────────

func MaxBodyBytes() int64 {
	n := Int("MAX_BODY_BYTES", 4<<20)
	if n <= 0 {
		return 4 << 20
	}
	return int64(n)
}

func RateLimit() int { return Int("RATE_LIMIT", 600) }

func CORSOrigins() []string { return list("CORS_ORIGINS", "*") }

// TrustedProxies lists the IPs or CIDRs allowed to set X-Forwarded-For.
func TrustedProxies() []string { return list("RATE_TRUSTED_PROXIES", "") }

func list(key, fallback string) []string {
	_ = Load()
	var out []string
	for _, v := range strings.Split(get(key, fallback), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Get reads any config key by name with an optional fallback.
func Get(key, fallback string) string {
	_ = Load()
	return get(strings.ToUpper(key), fallback)
}

// Int reads key as an integer, returning fallback when it is unset or
// malformed.
func Int(key string, fallback int) int {
	_ = Load()
	n, err := strconv.Atoi(get(strings.ToUpper(key), ""))
	if err != nil {
		return fallback
	}
	return n
}

func loadFrom(configPath, envPath string) error {
	loaded := defaultValues()

	if err := mergeJSONConfig(configPath, loaded); err != nil && !os.IsNotExist(err) {
		return err
	}

	if err := mergeDotEnv(envPath, loaded); err != nil && !os.IsNotExist(err) {
		return err
	}

	for key := range loaded {
		if v, ok := os.LookupEnv(key); ok {
			loaded[key] = strings.TrimSpace(v)
		}
	}
	for _, kv := range os.Environ() {
		k, v, _ := strings.Cut(kv, "=")
		if _, known := loaded[k]; !known && isConfigKey(k) {
			loaded[k] = strings.TrimSpace(v)
		}
	}

	mu.Lock()
	values = loaded
	mu.Unlock()

	return nil
}

// isConfigKey limits which unknown environment variables leak into the
// config map.
func isConfigKey(k string) bool {
	for _, prefix := range []string{"APP_", "GRPC_", "INDEX", "RESULTS_", "REDIS_", "QUEUE_", "STORAGE_", "S3_", "LOG_", "MAX_", "RATE_", "CORS_"} {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

func mergeJSONConfig(path string, out map[string]string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	var raw map[string]interface{}
	if err := json.NewDecoder(file).Decode(&raw); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	for key, val := range raw {
		k := strings.ToUpper(strings.TrimSpace(key))
		if k == "" {
			continue
		}
		switch v := val.(type) {
		case string:
			out[k] = strings.TrimSpace(v)
		case float64, bool:
			out[k] = fmt.Sprint(v)
		}
	}

	return nil
}

func mergeDotEnv(path string, out map[string]string) error {
	env, err := godotenv.Read(path)
	if err != nil {
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			return statErr
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	for key, value := range env {
		k := strings.ToUpper(strings.TrimSpace(key))
		if k == "" {
			continue
		}
		out[k] = strings.TrimSpace(value)
	}

	return nil
}

func get(key, fallback string) string {
	mu.RLock()
	defer mu.RUnlock()

	if value, ok := overrides[key]; ok {
		return value
	}
	if value := strings.TrimSpace(values[key]); value != "" {
		return value
	}

	return fallback
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
