package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// Validator collects configuration problems so they can be reported
// together at startup.
type Validator struct {
	errors []ValidationError
}

// AddError adds a validation error.
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are validation errors.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// ErrorString returns a formatted string of all errors.
func (v *Validator) ErrorString() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Configuration validation failed with %d error(s):\n", len(v.errors))
	for i, err := range v.errors {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Err returns the collected problems as one error, or nil.
func (v *Validator) Err() error {
	if !v.HasErrors() {
		return nil
	}
	return &Errors{List: v.errors, text: v.ErrorString()}
}

// Errors is returned by Config.Validate.
type Errors struct {
	List []ValidationError
	text string
}

func (e *Errors) Error() string { return e.text }

// Required records an error when value is empty.
func (v *Validator) Required(key, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(key, "required value not set")
	}
}

// ListenAddr validates a host:port listen address.
func (v *Validator) ListenAddr(key, value string) {
	if value == "" {
		return
	}
	if _, _, err := net.SplitHostPort(value); err != nil {
		v.AddError(key, fmt.Sprintf("must be host:port (%v)", err))
	}
}

// DatabaseURL validates a postgres connection URL.
func (v *Validator) DatabaseURL(key, value string) {
	if value == "" {
		return
	}
	u, err := url.Parse(value)
	if err != nil {
		v.AddError(key, fmt.Sprintf("invalid URL format: %v", err))
		return
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		v.AddError(key, "URL must use postgres or postgresql scheme")
	}
}

// MinLength validates minimum string length.
func (v *Validator) MinLength(key, value string, minLen int) {
	if value == "" {
		return
	}
	if len(value) < minLen {
		v.AddError(key, fmt.Sprintf("must be at least %d characters long (got %d)", minLen, len(value)))
	}
}

// OneOf validates that value is one of the allowed options.
func (v *Validator) OneOf(key, value string, allowed ...string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.AddError(key, fmt.Sprintf("must be one of %s (got %q)", strings.Join(allowed, ", "), value))
}
