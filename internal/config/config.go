package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type RedisConfig struct {
	URL            string
	ClientPassword string
	USE_TLS        bool
	JOB_TTL_DAYS   int
}

type FreeCacheConfig struct {
	SIZE_BYTES   int
	JOB_TTL_DAYS int
}

type MinioConfig struct {
	URL         string
	JOBS_BUCKET string
	ACCESS_KEY  string
	SECRET_KEY  string
	USE_SSL     bool
}

type LocalStorageConfig struct {
	DIR string
}

type NatsConfig struct {
	URL          string
	SUBJECT      string
	JOB_BUCKET   string
	QUEUE_STREAM string
	JOB_TTL_DAYS int
}

type PostgresConfig struct {
	URL string
}

type ToolchainConfig struct {
	PROJECT_GENERATOR string
	GRADLE_PATH       string
	KEYTOOL_PATH      string
	APKSIGNER_PATH    string
	JARSIGNER_PATH    string
}

type WorkerConfig struct {
	MAX_RETRIES   int
	POLL_INTERVAL time.Duration
	CONCURRENCY   int
}

type CleanupConfig struct {
	ROOT       string
	DELAY      time.Duration
	SWEEP_CRON string
	ORPHAN_AGE time.Duration
}

type ServerConfig struct {
	ADDR              string
	SYNC_MAX_INFLIGHT int
	SYNC_QUEUE_SIZE   int
}

type Config struct {
	SERVICE_NAME   string
	ENVIRONMENT    string
	TRACE_URL      string
	LOG_LEVEL      string
	STORE_TYPE     string
	STORAGE_TYPE   string
	TELEMETRY_TYPE string
	AUDIT_ENABLED  bool
}

const (
	defaultJobTTLDays    = 90
	defaultFreeCacheSize = 64 * 1024 * 1024
)

func env(key string) string {
	v := os.Getenv(key)
	return v
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func convertStringToInt(s string, key string) (int, error) {
	sInt, err := strconv.Atoi(s)
	if err != nil {
		return -1, fmt.Errorf("error initializing config with key: %s, err: %v", key, err)
	}
	return sInt, nil
}

func intOr(key string, def int) (int, error) {
	v := env(key)
	if v == "" {
		return def, nil
	}
	return convertStringToInt(v, key)
}

func durationOr(key string, def time.Duration) (time.Duration, error) {
	v := env(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("error initializing config with key: %s, err: %v", key, err)
	}
	return d, nil
}

func boolOr(key string, def bool) (bool, error) {
	v := env(key)
	switch v {
	case "":
		return def, nil
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("KEY: %s is invalid", key)
	}
}

func GetConfig() (*Config, error) {
	sn := env("SERVICE_NAME")
	if sn == "" {
		return nil, fmt.Errorf("KEY: SERVICE_NAME is empty")
	}
	st := env("STORE_TYPE")
	if st == "" {
		return nil, fmt.Errorf("KEY: STORE_TYPE is empty")
	}
	bt := env("STORAGE_TYPE")
	if bt == "" {
		return nil, fmt.Errorf("KEY: STORAGE_TYPE is empty")
	}
	ae, err := boolOr("AUDIT_ENABLED", false)
	if err != nil {
		return nil, err
	}
	return &Config{
		SERVICE_NAME:   sn,
		ENVIRONMENT:    envOr("ENVIRONMENT", "development"),
		TRACE_URL:      env("TRACE_URL"),
		LOG_LEVEL:      envOr("LOG_LEVEL", "info"),
		STORE_TYPE:     st,
		STORAGE_TYPE:   bt,
		TELEMETRY_TYPE: envOr("TELEMETRY_TYPE", "none"),
		AUDIT_ENABLED:  ae,
	}, nil
}

// IsProduction reports whether the service runs against production queues.
func (c *Config) IsProduction() bool {
	return c.ENVIRONMENT == "production"
}

func GetRedisConfig() (*RedisConfig, error) {
	url := env("REDIS_ENDPOINT")
	if url == "" {
		return nil, fmt.Errorf("KEY: REDIS_ENDPOINT is empty")
	}
	ttl, err := intOr("JOB_TTL_DAYS", defaultJobTTLDays)
	if err != nil {
		return nil, err
	}
	tls, err := boolOr("REDIS_TLS", false)
	if err != nil {
		return nil, err
	}
	return &RedisConfig{
		URL:            url,
		ClientPassword: env("REDIS_CLIENT_PASSWORD"),
		USE_TLS:        tls,
		JOB_TTL_DAYS:   ttl,
	}, nil
}

func GetFreeCacheConfig() (*FreeCacheConfig, error) {
	fs, err := intOr("FREECACHE_SIZE", defaultFreeCacheSize)
	if err != nil {
		return nil, err
	}
	ttl, err := intOr("JOB_TTL_DAYS", defaultJobTTLDays)
	if err != nil {
		return nil, err
	}
	return &FreeCacheConfig{
		SIZE_BYTES:   fs,
		JOB_TTL_DAYS: ttl,
	}, nil
}

func GetMinioConfig() (*MinioConfig, error) {
	url := env("MINIO_ENDPOINT")
	if url == "" {
		return nil, fmt.Errorf("KEY: MINIO_ENDPOINT is empty")
	}

	jb := env("MINIO_JOBS_BUCKET")
	if jb == "" {
		return nil, fmt.Errorf("KEY: MINIO_JOBS_BUCKET is empty")
	}

	ssl := env("MINIO_USE_SSL")
	if ssl != "true" && ssl != "false" {
		return nil, fmt.Errorf("KEY: MINIO_USE_SSL is invalid")
	}

	ak := env("MINIO_ACCESS_KEY")
	if ak == "" {
		return nil, fmt.Errorf("KEY: MINIO_ACCESS_KEY is empty")
	}

	sk := env("MINIO_SECRET_KEY")
	if sk == "" {
		return nil, fmt.Errorf("KEY: MINIO_SECRET_KEY is empty")
	}

	return &MinioConfig{
		URL:         url,
		JOBS_BUCKET: jb,
		USE_SSL:     ssl == "true",
		ACCESS_KEY:  ak,
		SECRET_KEY:  sk,
	}, nil
}

func GetLocalStorageConfig() (*LocalStorageConfig, error) {
	dir := env("LOCAL_STORAGE_DIR")
	if dir == "" {
		return nil, fmt.Errorf("KEY: LOCAL_STORAGE_DIR is empty")
	}
	return &LocalStorageConfig{DIR: dir}, nil
}

func GetNatsConfig() (*NatsConfig, error) {
	url := env("NATS_URL")
	if url == "" {
		return nil, fmt.Errorf("KEY: NATS_URL is empty")
	}
	ttl, err := intOr("JOB_TTL_DAYS", defaultJobTTLDays)
	if err != nil {
		return nil, err
	}
	return &NatsConfig{
		URL:          url,
		SUBJECT:      envOr("TELEMETRY_SUBJECT", "pwabuilder.telemetry.android"),
		JOB_BUCKET:   envOr("NATS_JOB_BUCKET", "PWABUILDER_JOBS"),
		QUEUE_STREAM: envOr("NATS_QUEUE_STREAM", "PWABUILDER_JOB_QUEUE"),
		JOB_TTL_DAYS: ttl,
	}, nil
}

func GetPostgresConfig() (*PostgresConfig, error) {
	url := env("POSTGRES_URL")
	if url == "" {
		return nil, fmt.Errorf("KEY: POSTGRES_URL is empty")
	}
	return &PostgresConfig{
		URL: url,
	}, nil
}

func GetToolchainConfig() (*ToolchainConfig, error) {
	pg := env("PROJECT_GENERATOR")
	if pg == "" {
		return nil, fmt.Errorf("KEY: PROJECT_GENERATOR is empty")
	}
	return &ToolchainConfig{
		PROJECT_GENERATOR: pg,
		GRADLE_PATH:       envOr("GRADLE_PATH", "gradle"),
		KEYTOOL_PATH:      envOr("KEYTOOL_PATH", "keytool"),
		APKSIGNER_PATH:    envOr("APKSIGNER_PATH", "apksigner"),
		JARSIGNER_PATH:    envOr("JARSIGNER_PATH", "jarsigner"),
	}, nil
}

func GetWorkerConfig() (*WorkerConfig, error) {
	mr, err := intOr("WORKER_MAX_RETRIES", 1)
	if err != nil {
		return nil, err
	}
	if mr < 0 {
		return nil, fmt.Errorf("KEY: WORKER_MAX_RETRIES is invalid")
	}
	pi, err := durationOr("WORKER_POLL_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, err
	}
	c, err := intOr("WORKER_CONCURRENCY", 1)
	if err != nil {
		return nil, err
	}
	if c < 1 {
		return nil, fmt.Errorf("KEY: WORKER_CONCURRENCY is invalid")
	}
	return &WorkerConfig{
		MAX_RETRIES:   mr,
		POLL_INTERVAL: pi,
		CONCURRENCY:   c,
	}, nil
}

func GetCleanupConfig() (*CleanupConfig, error) {
	d, err := durationOr("CLEANUP_DELAY", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	oa, err := durationOr("CLEANUP_ORPHAN_AGE", 2*time.Hour)
	if err != nil {
		return nil, err
	}
	return &CleanupConfig{
		ROOT:       envOr("CLEANUP_ROOT", os.TempDir()),
		DELAY:      d,
		SWEEP_CRON: envOr("CLEANUP_SWEEP_CRON", "@every 30m"),
		ORPHAN_AGE: oa,
	}, nil
}

func GetServerConfig() (*ServerConfig, error) {
	mi, err := intOr("SYNC_MAX_INFLIGHT", 2)
	if err != nil {
		return nil, err
	}
	qs, err := intOr("SYNC_QUEUE_SIZE", 10)
	if err != nil {
		return nil, err
	}
	return &ServerConfig{
		ADDR:              envOr("HTTP_ADDR", ":8080"),
		SYNC_MAX_INFLIGHT: mi,
		SYNC_QUEUE_SIZE:   qs,
	}, nil
}
