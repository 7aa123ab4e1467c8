package driver

import "fmt"

// ConfigError is a custom error type for configuration errors
type ConfigError struct {
	msg string
}

func NewConfigError(msg string) *ConfigError {
	return &ConfigError{msg}
}

func (e *ConfigError) Error() string {
	return e.msg
}

// APIError is returned when a call into the SDRplay API fails. Message holds
// the API's own error string.
type APIError struct {
	Op      string
	Code    int
	Message string
}

func NewAPIError(op string, code int, msg string) *APIError {
	return &APIError{Op: op, Code: code, Message: msg}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s() failed: %s", e.Op, e.Message)
}
