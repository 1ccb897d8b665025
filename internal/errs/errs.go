// Package errs defines the error taxonomy surfaced by LangCoach at startup.
package errs

import (
	"errors"
	"fmt"
)

// Standard error codes for the application.
const (
	CodeUnknown = "UNKNOWN"
	CodeConfig  = "CONFIG"
	CodeStartup = "STARTUP"
)

// ApplicationError is the interface that all our custom errors implement.
type ApplicationError interface {
	error
	Code() string
	Unwrap() error
}

// Error represents a basic application error.
type Error struct {
	code    string
	message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}

	return e.message
}

func (e *Error) Code() string {
	return e.code
}

func (e *Error) Unwrap() error {
	return e.err
}

// Code returns the code of the first ApplicationError in err's chain,
// or CodeUnknown if it doesn't carry one.
func Code(err error) string {
	var appErr ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}

	return CodeUnknown
}

// ConfigurationError reports a missing or invalid configuration value.
type ConfigurationError struct {
	base Error
}

func (e *ConfigurationError) Error() string {
	return e.base.Error()
}

func (e *ConfigurationError) Code() string {
	return e.base.Code()
}

func (e *ConfigurationError) Unwrap() error {
	return e.base.Unwrap()
}

func NewConfigurationError(message string, cause error) error {
	return &ConfigurationError{
		base: Error{
			code:    CodeConfig,
			message: message,
			err:     cause,
		},
	}
}

// StartupError reports a channel adapter that could not be constructed or registered.
type StartupError struct {
	Adapter string
	base    Error
}

func (e *StartupError) Error() string {
	return e.base.Error()
}

func (e *StartupError) Code() string {
	return e.base.Code()
}

func (e *StartupError) Unwrap() error {
	return e.base.Unwrap()
}

func NewStartupError(adapter string, cause error) error {
	return &StartupError{
		Adapter: adapter,
		base: Error{
			code:    CodeStartup,
			message: fmt.Sprintf("adapter %q failed to start", adapter),
			err:     cause,
		},
	}
}

// IsConfiguration reports whether err wraps a ConfigurationError.
func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsStartup reports whether err wraps a StartupError.
func IsStartup(err error) bool {
	var target *StartupError
	return errors.As(err, &target)
}
