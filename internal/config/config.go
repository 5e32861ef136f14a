package config

import "time"

// Config represents the complete service configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Faults  FaultsConfig  `yaml:"faults"`
	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
	Chaos   ChaosConfig   `yaml:"chaos"`
	API     APIConfig     `yaml:"api"`
}

// ServerConfig defines the HTTP listener
type ServerConfig struct {
	Port              int           `yaml:"port" validate:"min=1,max=65535"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" validate:"gte=0"`
	ReadTimeout       time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout      time.Duration `yaml:"write_timeout" validate:"gte=0"` // 0 = no limit; CPU spikes can run for a minute
	IdleTimeout       time.Duration `yaml:"idle_timeout" validate:"gte=0"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
	MaxBodySize       int64         `yaml:"max_body_size" validate:"gt=0"`
}

// FaultsConfig is the process-wide fault policy
type FaultsConfig struct {
	FailureRate    float64  `yaml:"failure_rate" validate:"gte=0,lte=1"`
	SlowResponseMS int      `yaml:"slow_response_ms" validate:"gte=0"`
	ForceUnready   bool     `yaml:"force_unready"`
	ExemptRoutes   []string `yaml:"exempt_routes" validate:"dive,startswith=/"`
}

// SlowResponse returns the fixed delay as a duration.
func (f FaultsConfig) SlowResponse() time.Duration {
	return time.Duration(f.SlowResponseMS) * time.Millisecond
}

// LoggingConfig defines log sinks
type LoggingConfig struct {
	Level     string            `yaml:"level" validate:"oneof=debug info warn error"`
	Output    string            `yaml:"output" validate:"oneof=stdout stderr none"`
	File      string            `yaml:"file"`       // combined log, empty = disabled
	ErrorFile string            `yaml:"error_file"` // error-level log, empty = disabled
	Rotation  LogRotationConfig `yaml:"rotation"`
}

// LogRotationConfig defines rotation for the file sinks
type LogRotationConfig struct {
	MaxSize    int  `yaml:"max_size" validate:"gte=0"` // megabytes
	MaxBackups int  `yaml:"max_backups" validate:"gte=0"`
	MaxAge     int  `yaml:"max_age" validate:"gte=0"` // days
	Compress   bool `yaml:"compress"`
	LocalTime  bool `yaml:"local_time"`
}

// TracingConfig defines OTLP span export
type TracingConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Endpoint    string            `yaml:"endpoint" validate:"required_if=Enabled true"`
	ServiceName string            `yaml:"service_name" validate:"required"`
	SampleRate  float64           `yaml:"sample_rate" validate:"gte=0,lte=1"`
	Insecure    bool              `yaml:"insecure"`
	Headers     map[string]string `yaml:"headers"`
}

// ChaosConfig defines the debug endpoint parameters
type ChaosConfig struct {
	DefaultLeakSize int           `yaml:"default_leak_size" validate:"gt=0"`
	MaxLeakSize     int           `yaml:"max_leak_size" validate:"gtefield=DefaultLeakSize"`
	DefaultCPUSpike time.Duration `yaml:"default_cpu_spike" validate:"gt=0"`
	MaxCPUSpike     time.Duration `yaml:"max_cpu_spike" validate:"gtefield=DefaultCPUSpike"`
	ErrorDelay      time.Duration `yaml:"error_delay" validate:"gt=0"`
}

// APIConfig defines the sample endpoint randomness
type APIConfig struct {
	UserSlowRate     float64       `yaml:"user_slow_rate" validate:"gte=0,lte=1"`
	UserSlowDelay    time.Duration `yaml:"user_slow_delay" validate:"gte=0"`
	OrderFailureRate float64       `yaml:"order_failure_rate" validate:"gte=0,lte=1"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              3000,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   30 * time.Second,
			MaxBodySize:       1 << 20,
		},
		Faults: FaultsConfig{
			ExemptRoutes: []string{"/health", "/ready", "/metrics"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stdout",
			Rotation: LogRotationConfig{
				MaxSize:    100,
				MaxBackups: 3,
				MaxAge:     28,
				Compress:   true,
			},
		},
		Tracing: TracingConfig{
			ServiceName: "faultbox",
			SampleRate:  1.0,
			Insecure:    true,
		},
		Chaos: ChaosConfig{
			DefaultLeakSize: 1_000_000,
			MaxLeakSize:     10_000_000,
			DefaultCPUSpike: 5 * time.Second,
			MaxCPUSpike:     60 * time.Second,
			ErrorDelay:      5 * time.Second,
		},
		API: APIConfig{
			UserSlowRate:     0.1,
			UserSlowDelay:    500 * time.Millisecond,
			OrderFailureRate: 0.05,
		},
	}
}
