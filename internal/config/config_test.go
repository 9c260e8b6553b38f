package config

import (
	"os"
	"reflect"
	"testing"
	"time"
)

func withEnv(t *testing.T, envs map[string]string) {
	t.Helper()

	original := make(map[string]string)
	for k := range envs {
		original[k] = os.Getenv(k)
	}

	for k, v := range envs {
		_ = os.Setenv(k, v)
	}

	t.Cleanup(func() {
		for k, v := range original {
			if v == "" {
				_ = os.Unsetenv(k)
			} else {
				_ = os.Setenv(k, v)
			}
		}
	})
}

func TestGetConfig(t *testing.T) {
	tests := []struct {
		name      string
		envs      map[string]string
		expected  *Config
		shouldErr bool
	}{
		{
			name: "valid config with defaults",
			envs: map[string]string{
				"SERVICE_NAME":   "cloudapk",
				"STORE_TYPE":     "redis",
				"STORAGE_TYPE":   "minio",
				"ENVIRONMENT":    "",
				"LOG_LEVEL":      "",
				"TELEMETRY_TYPE": "",
				"AUDIT_ENABLED":  "",
				"TRACE_URL":      "",
			},
			expected: &Config{
				SERVICE_NAME:   "cloudapk",
				ENVIRONMENT:    "development",
				LOG_LEVEL:      "info",
				STORE_TYPE:     "redis",
				STORAGE_TYPE:   "minio",
				TELEMETRY_TYPE: "none",
			},
		},
		{
			name: "valid production config",
			envs: map[string]string{
				"SERVICE_NAME":   "cloudapk",
				"STORE_TYPE":     "memory",
				"STORAGE_TYPE":   "local",
				"ENVIRONMENT":    "production",
				"LOG_LEVEL":      "debug",
				"TELEMETRY_TYPE": "nats",
				"AUDIT_ENABLED":  "true",
				"TRACE_URL":      "localhost:4318",
			},
			expected: &Config{
				SERVICE_NAME:   "cloudapk",
				ENVIRONMENT:    "production",
				TRACE_URL:      "localhost:4318",
				LOG_LEVEL:      "debug",
				STORE_TYPE:     "memory",
				STORAGE_TYPE:   "local",
				TELEMETRY_TYPE: "nats",
				AUDIT_ENABLED:  true,
			},
		},
		{
			name: "invalid config: missing service name",
			envs: map[string]string{
				"SERVICE_NAME": "",
				"STORE_TYPE":   "redis",
				"STORAGE_TYPE": "minio",
			},
			shouldErr: true,
		},
		{
			name: "invalid config: missing store type",
			envs: map[string]string{
				"SERVICE_NAME": "cloudapk",
				"STORE_TYPE":   "",
				"STORAGE_TYPE": "minio",
			},
			shouldErr: true,
		},
		{
			name: "invalid config: bad audit flag",
			envs: map[string]string{
				"SERVICE_NAME":  "cloudapk",
				"STORE_TYPE":    "redis",
				"STORAGE_TYPE":  "minio",
				"AUDIT_ENABLED": "yes",
			},
			shouldErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withEnv(t, tt.envs)

			cfg, err := GetConfig()
			if tt.shouldErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !reflect.DeepEqual(cfg, tt.expected) {
				t.Fatalf("got %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

func TestConfigIsProduction(t *testing.T) {
	if (&Config{ENVIRONMENT: "production"}).IsProduction() != true {
		t.Fatalf("expected production")
	}
	if (&Config{ENVIRONMENT: "staging"}).IsProduction() != false {
		t.Fatalf("expected non production")
	}
}

func TestGetRedisConfig(t *testing.T) {
	tests := []struct {
		name      string
		envs      map[string]string
		expected  *RedisConfig
		shouldErr bool
	}{
		{
			name: "valid redis config",
			envs: map[string]string{
				"REDIS_ENDPOINT":        "localhost:6379",
				"REDIS_CLIENT_PASSWORD": "secret",
				"REDIS_TLS":             "",
				"JOB_TTL_DAYS":          "",
			},
			expected: &RedisConfig{
				URL:            "localhost:6379",
				ClientPassword: "secret",
				JOB_TTL_DAYS:   90,
			},
		},
		{
			name: "valid redis config with tls and ttl",
			envs: map[string]string{
				"REDIS_ENDPOINT":        "cache.example.com:6380",
				"REDIS_CLIENT_PASSWORD": "",
				"REDIS_TLS":             "true",
				"JOB_TTL_DAYS":          "30",
			},
			expected: &RedisConfig{
				URL:          "cache.example.com:6380",
				USE_TLS:      true,
				JOB_TTL_DAYS: 30,
			},
		},
		{
			name:      "invalid redis config: missing endpoint",
			envs:      map[string]string{"REDIS_ENDPOINT": ""},
			shouldErr: true,
		},
		{
			name: "invalid redis config: bad ttl",
			envs: map[string]string{
				"REDIS_ENDPOINT": "localhost:6379",
				"JOB_TTL_DAYS":   "ninety",
			},
			shouldErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withEnv(t, tt.envs)

			cfg, err := GetRedisConfig()
			if tt.shouldErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !reflect.DeepEqual(cfg, tt.expected) {
				t.Fatalf("got %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

func TestGetFreeCacheConfig(t *testing.T) {
	tests := []struct {
		name      string
		envs      map[string]string
		expected  *FreeCacheConfig
		shouldErr bool
	}{
		{
			name: "defaults",
			envs: map[string]string{"FREECACHE_SIZE": "", "JOB_TTL_DAYS": ""},
			expected: &FreeCacheConfig{
				SIZE_BYTES:   64 * 1024 * 1024,
				JOB_TTL_DAYS: 90,
			},
		},
		{
			name: "explicit size",
			envs: map[string]string{"FREECACHE_SIZE": "1048576", "JOB_TTL_DAYS": "1"},
			expected: &FreeCacheConfig{
				SIZE_BYTES:   1048576,
				JOB_TTL_DAYS: 1,
			},
		},
		{
			name:      "invalid size",
			envs:      map[string]string{"FREECACHE_SIZE": "big"},
			shouldErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withEnv(t, tt.envs)

			cfg, err := GetFreeCacheConfig()
			if tt.shouldErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(cfg, tt.expected) {
				t.Fatalf("got %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

func TestGetMinioConfig(t *testing.T) {
	valid := map[string]string{
		"MINIO_ENDPOINT":    "localhost:9000",
		"MINIO_JOBS_BUCKET": "packages",
		"MINIO_USE_SSL":     "false",
		"MINIO_ACCESS_KEY":  "minioadmin",
		"MINIO_SECRET_KEY":  "minioadmin",
	}
	with := func(k, v string) map[string]string {
		m := make(map[string]string, len(valid))
		for key, val := range valid {
			m[key] = val
		}
		m[k] = v
		return m
	}

	tests := []struct {
		name      string
		envs      map[string]string
		expected  *MinioConfig
		shouldErr bool
	}{
		{
			name: "valid minio config",
			envs: valid,
			expected: &MinioConfig{
				URL:         "localhost:9000",
				JOBS_BUCKET: "packages",
				ACCESS_KEY:  "minioadmin",
				SECRET_KEY:  "minioadmin",
			},
		},
		{name: "missing endpoint", envs: with("MINIO_ENDPOINT", ""), shouldErr: true},
		{name: "missing bucket", envs: with("MINIO_JOBS_BUCKET", ""), shouldErr: true},
		{name: "invalid ssl flag", envs: with("MINIO_USE_SSL", "maybe"), shouldErr: true},
		{name: "missing access key", envs: with("MINIO_ACCESS_KEY", ""), shouldErr: true},
		{name: "missing secret key", envs: with("MINIO_SECRET_KEY", ""), shouldErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withEnv(t, tt.envs)

			cfg, err := GetMinioConfig()
			if tt.shouldErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(cfg, tt.expected) {
				t.Fatalf("got %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

func TestGetToolchainConfig(t *testing.T) {
	withEnv(t, map[string]string{
		"PROJECT_GENERATOR": "/opt/bubblewrap/bin/bubblewrap",
		"GRADLE_PATH":       "",
		"KEYTOOL_PATH":      "/usr/lib/jvm/bin/keytool",
		"APKSIGNER_PATH":    "",
		"JARSIGNER_PATH":    "",
	})

	cfg, err := GetToolchainConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := &ToolchainConfig{
		PROJECT_GENERATOR: "/opt/bubblewrap/bin/bubblewrap",
		GRADLE_PATH:       "gradle",
		KEYTOOL_PATH:      "/usr/lib/jvm/bin/keytool",
		APKSIGNER_PATH:    "apksigner",
		JARSIGNER_PATH:    "jarsigner",
	}
	if !reflect.DeepEqual(cfg, expected) {
		t.Fatalf("got %+v, want %+v", cfg, expected)
	}

	withEnv(t, map[string]string{"PROJECT_GENERATOR": ""})
	if _, err := GetToolchainConfig(); err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestGetWorkerConfig(t *testing.T) {
	tests := []struct {
		name      string
		envs      map[string]string
		expected  *WorkerConfig
		shouldErr bool
	}{
		{
			name: "defaults",
			envs: map[string]string{"WORKER_MAX_RETRIES": "", "WORKER_POLL_INTERVAL": "", "WORKER_CONCURRENCY": ""},
			expected: &WorkerConfig{
				MAX_RETRIES:   1,
				POLL_INTERVAL: 5 * time.Second,
				CONCURRENCY:   1,
			},
		},
		{
			name: "explicit values",
			envs: map[string]string{"WORKER_MAX_RETRIES": "3", "WORKER_POLL_INTERVAL": "250ms", "WORKER_CONCURRENCY": "4"},
			expected: &WorkerConfig{
				MAX_RETRIES:   3,
				POLL_INTERVAL: 250 * time.Millisecond,
				CONCURRENCY:   4,
			},
		},
		{
			name:      "invalid poll interval",
			envs:      map[string]string{"WORKER_MAX_RETRIES": "", "WORKER_POLL_INTERVAL": "soon", "WORKER_CONCURRENCY": ""},
			shouldErr: true,
		},
		{
			name:      "negative retries",
			envs:      map[string]string{"WORKER_MAX_RETRIES": "-1", "WORKER_POLL_INTERVAL": "", "WORKER_CONCURRENCY": ""},
			shouldErr: true,
		},
		{
			name:      "zero concurrency",
			envs:      map[string]string{"WORKER_MAX_RETRIES": "", "WORKER_POLL_INTERVAL": "", "WORKER_CONCURRENCY": "0"},
			shouldErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withEnv(t, tt.envs)

			cfg, err := GetWorkerConfig()
			if tt.shouldErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(cfg, tt.expected) {
				t.Fatalf("got %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

func TestGetCleanupConfig(t *testing.T) {
	withEnv(t, map[string]string{
		"CLEANUP_ROOT":       "/var/tmp/cloudapk",
		"CLEANUP_DELAY":      "10m",
		"CLEANUP_SWEEP_CRON": "",
		"CLEANUP_ORPHAN_AGE": "",
	})

	cfg, err := GetCleanupConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := &CleanupConfig{
		ROOT:       "/var/tmp/cloudapk",
		DELAY:      10 * time.Minute,
		SWEEP_CRON: "@every 30m",
		ORPHAN_AGE: 2 * time.Hour,
	}
	if !reflect.DeepEqual(cfg, expected) {
		t.Fatalf("got %+v, want %+v", cfg, expected)
	}

	withEnv(t, map[string]string{"CLEANUP_DELAY": "five"})
	if _, err := GetCleanupConfig(); err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestGetServerConfig(t *testing.T) {
	withEnv(t, map[string]string{
		"HTTP_ADDR":         "",
		"SYNC_MAX_INFLIGHT": "4",
		"SYNC_QUEUE_SIZE":   "",
	})

	cfg, err := GetServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := &ServerConfig{
		ADDR:              ":8080",
		SYNC_MAX_INFLIGHT: 4,
		SYNC_QUEUE_SIZE:   10,
	}
	if !reflect.DeepEqual(cfg, expected) {
		t.Fatalf("got %+v, want %+v", cfg, expected)
	}
}

func TestGetNatsAndPostgresConfig(t *testing.T) {
	withEnv(t, map[string]string{"NATS_URL": "", "POSTGRES_URL": ""})
	if _, err := GetNatsConfig(); err == nil {
		t.Fatalf("expected error, got nil")
	}
	if _, err := GetPostgresConfig(); err == nil {
		t.Fatalf("expected error, got nil")
	}

	withEnv(t, map[string]string{
		"NATS_URL":          "nats://localhost:4222",
		"TELEMETRY_SUBJECT": "",
		"NATS_JOB_BUCKET":   "",
		"NATS_QUEUE_STREAM": "JOBQ",
		"JOB_TTL_DAYS":      "",
		"POSTGRES_URL":      "postgres://u:p@localhost:5432/db",
	})
	nc, err := GetNatsConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if nc.SUBJECT != "pwabuilder.telemetry.android" {
		t.Fatalf("unexpected subject %q", nc.SUBJECT)
	}
	if nc.JOB_BUCKET != "PWABUILDER_JOBS" || nc.QUEUE_STREAM != "JOBQ" || nc.JOB_TTL_DAYS != 90 {
		t.Fatalf("unexpected jetstream config %+v", nc)
	}
	pc, err := GetPostgresConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pc.URL != "postgres://u:p@localhost:5432/db" {
		t.Fatalf("unexpected url %q", pc.URL)
	}
}
