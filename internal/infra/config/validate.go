package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
// An empty token is allowed here; commands that talk to the API check it.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateAPI(cfg, ve)
	validateGateway(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateAPI(cfg *Config, ve *ValidationError) {
	api := cfg.API
	if api.BaseURL == "" {
		ve.Add("api.base_url must not be empty")
	} else if u, err := url.Parse(api.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		ve.Add("api.base_url %q must be an absolute http(s) URL", api.BaseURL)
	}
	switch api.TokenType {
	case TokenTypeBot, TokenTypeOAuth2:
	default:
		ve.Add("api.token_type %q must be %q or %q", api.TokenType, TokenTypeBot, TokenTypeOAuth2)
	}
	if api.ConnTimeout < 0 {
		ve.Add("api.conn_timeout must be >= 0")
	}
	if api.RespTimeout < 0 {
		ve.Add("api.resp_timeout must be >= 0")
	}
	if api.MaxBodyBytes <= 0 {
		ve.Add("api.max_body_bytes must be > 0")
	}
	if api.Breaker.Enabled && api.Breaker.MaxFailures == 0 {
		ve.Add("api.breaker.max_failures must be > 0 when the breaker is enabled")
	}
}

func validateGateway(cfg *Config, ve *ValidationError) {
	if cfg.Gateway.DialTimeout < 0 {
		ve.Add("gateway.dial_timeout must be >= 0")
	}
	if cfg.Gateway.ReadLimit < 0 {
		ve.Add("gateway.read_limit must be >= 0")
	}
}

var validLogLevels = map[string]bool{
	"": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true,
}

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q is not one of debug, info, warn, error", cfg.Logger.Level)
	}
	switch strings.ToLower(cfg.Logger.Format) {
	case "", "text", "json":
	default:
		ve.Add("logger.format %q must be text or json", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	switch cfg.Tracer.Exporter {
	case "", "noop", "stdout":
	default:
		ve.Add("tracer.exporter %q must be noop or stdout", cfg.Tracer.Exporter)
	}
}
