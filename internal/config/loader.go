package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
)

// ValidationError reports configuration values that cannot be applied.
// It is fatal at startup.
type ValidationError struct {
	Problems []string
	err      error
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Unwrap() error {
	return e.err
}

// Lookup reads an environment variable.
type Lookup func(key string) (string, bool)

// Loader handles configuration loading and parsing
type Loader struct {
	envPattern *regexp.Regexp
	validate   *validator.Validate
	lookup     Lookup
}

// NewLoader creates a new configuration loader reading the process
// environment.
func NewLoader() *Loader {
	return NewLoaderWithLookup(os.LookupEnv)
}

// NewLoaderWithLookup creates a loader with a custom environment source.
func NewLoaderWithLookup(lookup Lookup) *Loader {
	v := validator.New()
	// Report problems by their YAML key.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Loader{
		envPattern: regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`),
		validate:   v,
		lookup:     lookup,
	}
}

// Load builds the effective configuration: defaults, then the YAML file at
// path when path is non-empty, then environment overrides. The result is
// validated.
func (l *Loader) Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if cfg, err = l.parse(data); err != nil {
			return nil, err
		}
	}
	if err := l.ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := l.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse parses and validates configuration from YAML bytes. Environment
// overrides are not applied.
func (l *Loader) Parse(data []byte) (*Config, error) {
	cfg, err := l.parse(data)
	if err != nil {
		return nil, err
	}
	if err := l.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) parse(data []byte) (*Config, error) {
	expanded := l.expandEnvVars(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} with environment variable values
func (l *Loader) expandEnvVars(input string) string {
	return l.envPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := strings.TrimPrefix(strings.TrimSuffix(match, "}"), "${")
		if value, exists := l.lookup(varName); exists {
			return value
		}
		return match // Keep original if env var not set
	})
}

// envOverride applies one environment variable to cfg.
type envOverride struct {
	key   string
	apply func(cfg *Config, value string) error
}

var envOverrides = []envOverride{
	{"PORT", func(cfg *Config, v string) error {
		n, err := strconv.Atoi(v)
		cfg.Server.Port = n
		return err
	}},
	{"FAILURE_RATE", func(cfg *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		cfg.Faults.FailureRate = f
		return err
	}},
	{"SLOW_RESPONSE_MS", func(cfg *Config, v string) error {
		n, err := strconv.Atoi(v)
		cfg.Faults.SlowResponseMS = n
		return err
	}},
	{"FORCE_UNREADY", func(cfg *Config, v string) error {
		b, err := strconv.ParseBool(v)
		cfg.Faults.ForceUnready = b
		return err
	}},
	{"SHUTDOWN_TIMEOUT", func(cfg *Config, v string) error {
		d, err := time.ParseDuration(v)
		cfg.Server.ShutdownTimeout = d
		return err
	}},
	{"LOG_LEVEL", func(cfg *Config, v string) error {
		cfg.Logging.Level = strings.ToLower(v)
		return nil
	}},
	{"LOG_OUTPUT", func(cfg *Config, v string) error {
		cfg.Logging.Output = strings.ToLower(v)
		return nil
	}},
	{"LOG_FILE", func(cfg *Config, v string) error {
		cfg.Logging.File = v
		return nil
	}},
	{"LOG_ERROR_FILE", func(cfg *Config, v string) error {
		cfg.Logging.ErrorFile = v
		return nil
	}},
	{"OTEL_EXPORTER_OTLP_ENDPOINT", func(cfg *Config, v string) error {
		cfg.Tracing.Endpoint = v
		cfg.Tracing.Enabled = v != ""
		return nil
	}},
	{"OTEL_SERVICE_NAME", func(cfg *Config, v string) error {
		cfg.Tracing.ServiceName = v
		return nil
	}},
}

// ApplyEnv overlays the recognized environment variables on cfg. Unset
// variables leave the current value. Malformed values are reported as a
// *ValidationError naming every offending variable.
func (l *Loader) ApplyEnv(cfg *Config) error {
	var problems []string
	var errs []error
	for _, o := range envOverrides {
		raw, ok := l.lookup(o.key)
		if !ok {
			continue
		}
		raw = strings.TrimSpace(raw)
		if raw == "" && o.key != "OTEL_EXPORTER_OTLP_ENDPOINT" {
			continue
		}
		if err := o.apply(cfg, raw); err != nil {
			problems = append(problems, fmt.Sprintf("%s=%q: %v", o.key, raw, err))
			errs = append(errs, err)
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems, err: errors.Join(errs...)}
	}
	return nil
}

// Validate checks configuration values against their constraints.
func (l *Loader) Validate(cfg *Config) error {
	err := l.validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Problems: []string{err.Error()}, err: err}
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, describe(fe))
	}
	return &ValidationError{Problems: problems, err: err}
}

// describe renders a field error as "section.key: constraint".
func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	constraint := fe.Tag()
	if fe.Param() != "" {
		constraint += "=" + fe.Param()
	}
	return fmt.Sprintf("%s: value %v violates %s", field, fe.Value(), constraint)
}
