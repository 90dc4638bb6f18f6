package common

import (
	"errors"
	"strings"
)

// Codes carried by AppError. They show up in logs next to the failed stage.
const (
	CodeConfig     = "CONFIG_ERROR"
	CodeValidation = "VALIDATION_ERROR"
	CodeUpstream   = "UPSTREAM_ERROR"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConfig       = errors.New("invalid configuration")
	ErrUpstream     = errors.New("upstream service error")
)

// AppError pairs a stable code with a human message. Cause is expected to
// include one of the sentinels above so callers can match with errors.Is.
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func NewAppError(code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(e.Code)
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *AppError) Unwrap() error { return e.Cause }

// ConfigError reports a bad setting or file. The result matches ErrConfig
// and, when err is non-nil, err as well.
func ConfigError(message string, err error) error {
	return NewAppError(CodeConfig, message, errors.Join(ErrConfig, err))
}

// UpstreamError tags err as a failure of the named external service.
func UpstreamError(service string, err error) error {
	if err == nil {
		return nil
	}
	return NewAppError(CodeUpstream, service, errors.Join(ErrUpstream, err))
}

// CodeOf returns the code of the outermost AppError in err's chain, or "".
func CodeOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
