package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult holds the result of config validation.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// ConfigValidationError is returned when config validation fails.
type ConfigValidationError struct {
	Errors []ValidationError
}

func (e *ConfigValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "config validation failed"
	}
	return "config validation failed: " + e.Errors[0].Field + ": " + e.Errors[0].Message
}

// Validate checks the config for invalid values.
func (c *Config) Validate() ValidationResult {
	var errors []ValidationError

	errors = append(errors, validateAPI(&c.API)...)
	errors = append(errors, validateUpdates(&c.Updates)...)
	errors = append(errors, validateAnalysis(&c.Analysis)...)
	errors = append(errors, validateStatusServer(&c.StatusServer)...)

	return ValidationResult{
		Valid:  len(errors) == 0,
		Errors: errors,
	}
}

// Check returns a *ConfigValidationError when Validate fails.
func (c *Config) Check() error {
	result := c.Validate()
	if !result.Valid {
		return &ConfigValidationError{Errors: result.Errors}
	}
	return nil
}

func validateAPI(api *APIConfig) []ValidationError {
	var errors []ValidationError

	u, err := url.Parse(api.BaseURL)
	if err != nil || u.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "api.base_url",
			Message: "must be an absolute URL",
		})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errors = append(errors, ValidationError{
			Field:   "api.base_url",
			Message: fmt.Sprintf("unsupported scheme %q", u.Scheme),
		})
	}

	if api.Timeout < 1*time.Second {
		errors = append(errors, ValidationError{
			Field:   "api.timeout",
			Message: "must be at least 1 second",
		})
	}

	return errors
}

func validateUpdates(up *UpdatesConfig) []ValidationError {
	if up.URL == "" {
		return nil
	}

	u, err := url.Parse(up.URL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return []ValidationError{{
			Field:   "updates.url",
			Message: "must be a ws:// or wss:// URL",
		}}
	}
	return nil
}

// validateAnalysis requires the fixed conditions sent with every city
// analysis. An empty insight type falls back to "general".
func validateAnalysis(a *AnalysisConfig) []ValidationError {
	var errors []ValidationError

	for _, f := range []struct {
		field string
		value string
	}{
		{"analysis.location", a.Location},
		{"analysis.weather", a.Weather},
		{"analysis.time", a.Time},
	} {
		if strings.TrimSpace(f.value) == "" {
			errors = append(errors, ValidationError{
				Field:   f.field,
				Message: "must not be empty",
			})
		}
	}

	return errors
}

func validateStatusServer(ss *StatusServerConfig) []ValidationError {
	if !ss.Enabled {
		return nil
	}

	if ss.Port < 1 || ss.Port > 65535 {
		return []ValidationError{{
			Field:   "status_server.port",
			Message: "must be between 1 and 65535",
		}}
	}
	return nil
}
