package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func envMap(m map[string]string) Lookup {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoaderParse(t *testing.T) {
	yaml := `
server:
  port: 9090
  read_timeout: 10s
  write_timeout: 20s
  shutdown_timeout: 5s

faults:
  failure_rate: 0.25
  slow_response_ms: 150
  force_unready: true
  exempt_routes:
    - /health

logging:
  level: debug
  output: stderr
  file: /var/log/faultbox/app.log

chaos:
  max_cpu_spike: 90s
`

	loader := NewLoaderWithLookup(envMap(nil))
	cfg, err := loader.Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("expected read_timeout 10s, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != 20*time.Second {
		t.Errorf("expected write_timeout 20s, got %v", cfg.Server.WriteTimeout)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("expected shutdown_timeout 5s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Faults.FailureRate != 0.25 {
		t.Errorf("expected failure_rate 0.25, got %v", cfg.Faults.FailureRate)
	}
	if cfg.Faults.SlowResponse() != 150*time.Millisecond {
		t.Errorf("expected slow response 150ms, got %v", cfg.Faults.SlowResponse())
	}
	if !cfg.Faults.ForceUnready {
		t.Error("expected force_unready")
	}
	if len(cfg.Faults.ExemptRoutes) != 1 || cfg.Faults.ExemptRoutes[0] != "/health" {
		t.Errorf("unexpected exempt routes %v", cfg.Faults.ExemptRoutes)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Output != "stderr" {
		t.Errorf("unexpected logging %+v", cfg.Logging)
	}
	if cfg.Chaos.MaxCPUSpike != 90*time.Second {
		t.Errorf("expected max_cpu_spike 90s, got %v", cfg.Chaos.MaxCPUSpike)
	}

	// untouched sections keep their defaults
	if cfg.Chaos.DefaultLeakSize != 1_000_000 {
		t.Errorf("expected default leak size, got %d", cfg.Chaos.DefaultLeakSize)
	}
	if cfg.Logging.Rotation.MaxSize != 100 {
		t.Errorf("expected default rotation, got %+v", cfg.Logging.Rotation)
	}
}

func TestLoaderEnvExpansion(t *testing.T) {
	yaml := `
server:
  port: ${TEST_PORT}
tracing:
  enabled: true
  endpoint: ${TEST_ENDPOINT}
  service_name: ${UNSET_NAME}
`

	loader := NewLoaderWithLookup(envMap(map[string]string{
		"TEST_PORT":     "7777",
		"TEST_ENDPOINT": "collector:4317",
	}))
	cfg, err := loader.Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Server.Port != 7777 {
		t.Errorf("expected port 7777, got %d", cfg.Server.Port)
	}
	if cfg.Tracing.Endpoint != "collector:4317" {
		t.Errorf("expected endpoint collector:4317, got %s", cfg.Tracing.Endpoint)
	}
	if cfg.Tracing.ServiceName != "${UNSET_NAME}" {
		t.Errorf("unset variables should be kept verbatim, got %s", cfg.Tracing.ServiceName)
	}
}

func TestLoaderValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "valid",
			yaml:    "server:\n  port: 8080\n",
			wantErr: "",
		},
		{
			name:    "port out of range",
			yaml:    "server:\n  port: 70000\n",
			wantErr: "server.port",
		},
		{
			name:    "failure rate above one",
			yaml:    "faults:\n  failure_rate: 1.5\n",
			wantErr: "faults.failure_rate",
		},
		{
			name:    "negative failure rate",
			yaml:    "faults:\n  failure_rate: -0.1\n",
			wantErr: "faults.failure_rate",
		},
		{
			name:    "negative slow response",
			yaml:    "faults:\n  slow_response_ms: -1\n",
			wantErr: "faults.slow_response_ms",
		},
		{
			name:    "relative exempt route",
			yaml:    "faults:\n  exempt_routes:\n    - health\n",
			wantErr: "faults.exempt_routes[0]",
		},
		{
			name:    "unknown log level",
			yaml:    "logging:\n  level: verbose\n",
			wantErr: "logging.level",
		},
		{
			name:    "unknown log output",
			yaml:    "logging:\n  output: syslog\n",
			wantErr: "logging.output",
		},
		{
			name:    "tracing without endpoint",
			yaml:    "tracing:\n  enabled: true\n",
			wantErr: "tracing.endpoint",
		},
		{
			name:    "max spike below default",
			yaml:    "chaos:\n  default_cpu_spike: 10s\n  max_cpu_spike: 5s\n",
			wantErr: "chaos.max_cpu_spike",
		},
		{
			name:    "max leak size below default",
			yaml:    "chaos:\n  default_leak_size: 500\n  max_leak_size: 100\n",
			wantErr: "chaos.max_leak_size",
		},
		{
			name:    "zero shutdown timeout",
			yaml:    "server:\n  shutdown_timeout: 0s\n",
			wantErr: "server.shutdown_timeout",
		},
		{
			name:    "malformed yaml",
			yaml:    "server: [port",
			wantErr: "failed to parse YAML",
		},
	}

	loader := NewLoaderWithLookup(envMap(nil))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.Parse([]byte(tt.yaml))
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidationErrorType(t *testing.T) {
	loader := NewLoaderWithLookup(envMap(nil))
	_, err := loader.Parse([]byte("server:\n  port: 0\nfaults:\n  failure_rate: 2\n"))

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(verr.Problems) != 2 {
		t.Errorf("expected 2 problems, got %v", verr.Problems)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != 3000 {
		t.Errorf("expected default port 3000, got %d", cfg.Server.Port)
	}
	if cfg.Faults.FailureRate != 0 || cfg.Faults.SlowResponseMS != 0 || cfg.Faults.ForceUnready {
		t.Errorf("faults should be off by default, got %+v", cfg.Faults)
	}
	if cfg.Server.WriteTimeout != 0 {
		t.Errorf("expected no write timeout, got %v", cfg.Server.WriteTimeout)
	}
	if cfg.Tracing.Enabled {
		t.Error("tracing should be disabled by default")
	}
	if cfg.Chaos.MaxLeakSize < cfg.Chaos.DefaultLeakSize {
		t.Errorf("max leak size %d below default %d", cfg.Chaos.MaxLeakSize, cfg.Chaos.DefaultLeakSize)
	}
	if err := NewLoaderWithLookup(envMap(nil)).Validate(cfg); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	loader := NewLoaderWithLookup(envMap(map[string]string{
		"PORT":                        "8081",
		"FAILURE_RATE":                "0.3",
		"SLOW_RESPONSE_MS":            "250",
		"FORCE_UNREADY":               "true",
		"SHUTDOWN_TIMEOUT":            "3s",
		"LOG_LEVEL":                   "WARN",
		"LOG_OUTPUT":                  "none",
		"LOG_FILE":                    "/tmp/app.log",
		"LOG_ERROR_FILE":              "/tmp/error.log",
		"OTEL_EXPORTER_OTLP_ENDPOINT": "otel:4317",
		"OTEL_SERVICE_NAME":           "checkout-sim",
	}))

	cfg := DefaultConfig()
	if err := loader.ApplyEnv(cfg); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}

	if cfg.Server.Port != 8081 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Faults.FailureRate != 0.3 {
		t.Errorf("failure rate = %v", cfg.Faults.FailureRate)
	}
	if cfg.Faults.SlowResponseMS != 250 {
		t.Errorf("slow response = %d", cfg.Faults.SlowResponseMS)
	}
	if !cfg.Faults.ForceUnready {
		t.Error("expected force unready")
	}
	if cfg.Server.ShutdownTimeout != 3*time.Second {
		t.Errorf("shutdown timeout = %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Logging.Level != "warn" || cfg.Logging.Output != "none" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Logging.File != "/tmp/app.log" || cfg.Logging.ErrorFile != "/tmp/error.log" {
		t.Errorf("log files = %q %q", cfg.Logging.File, cfg.Logging.ErrorFile)
	}
	if !cfg.Tracing.Enabled || cfg.Tracing.Endpoint != "otel:4317" {
		t.Errorf("tracing = %+v", cfg.Tracing)
	}
	if cfg.Tracing.ServiceName != "checkout-sim" {
		t.Errorf("service name = %s", cfg.Tracing.ServiceName)
	}
}

func TestApplyEnvInvalidValues(t *testing.T) {
	loader := NewLoaderWithLookup(envMap(map[string]string{
		"PORT":          "http",
		"FAILURE_RATE":  "often",
		"FORCE_UNREADY": "maybe",
		"LOG_LEVEL":     "info",
	}))

	err := loader.ApplyEnv(DefaultConfig())
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if len(verr.Problems) != 3 {
		t.Errorf("expected 3 problems, got %v", verr.Problems)
	}
	for _, key := range []string{"PORT", "FAILURE_RATE", "FORCE_UNREADY"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not name %s", err, key)
		}
	}
}

func TestApplyEnvEmptyValuesIgnored(t *testing.T) {
	loader := NewLoaderWithLookup(envMap(map[string]string{
		"PORT":         "",
		"FAILURE_RATE": "  ",
	}))

	cfg := DefaultConfig()
	if err := loader.ApplyEnv(cfg); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}
	if cfg.Server.Port != 3000 || cfg.Faults.FailureRate != 0 {
		t.Errorf("empty values should keep defaults, got port=%d rate=%v", cfg.Server.Port, cfg.Faults.FailureRate)
	}
}

func TestLoadFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faultbox.yaml")
	data := "server:\n  port: 9000\nfaults:\n  failure_rate: 0.1\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	loader := NewLoaderWithLookup(envMap(map[string]string{"FAILURE_RATE": "0.9"}))
	cfg, err := loader.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port from file, got %d", cfg.Server.Port)
	}
	if cfg.Faults.FailureRate != 0.9 {
		t.Errorf("environment should win over file, got %v", cfg.Faults.FailureRate)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("PORT", "4321")
	t.Setenv("FAILURE_RATE", "")

	cfg, err := NewLoader().Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 4321 {
		t.Errorf("expected port 4321, got %d", cfg.Server.Port)
	}
}

func TestLoadRejectsOutOfRangeEnv(t *testing.T) {
	loader := NewLoaderWithLookup(envMap(map[string]string{"FAILURE_RATE": "1.5"}))
	_, err := loader.Load("")

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if !strings.Contains(err.Error(), "faults.failure_rate") {
		t.Errorf("unexpected error %q", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewLoaderWithLookup(envMap(nil)).Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("expected read error, got %v", err)
	}
}
