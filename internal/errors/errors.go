package errors

import (
	"errors"
	"fmt"
)

// Code is a stable machine-readable error code. Codes never change once
// released; user-facing messages may.
type Code string

const (
	CodeCancelled           Code = "CANCELLED"
	CodeDenied              Code = "DENIED"
	CodeIO                  Code = "IO"
	CodeIntegrity           Code = "INTEGRITY"
	CodeEncoding            Code = "ENCODING"
	CodeCrypto              Code = "CRYPTO"
	CodeProviderUnavailable Code = "PROVIDER_UNAVAILABLE"
	CodeQuotaExceeded       Code = "QUOTA_EXCEEDED"
	CodeNotFound            Code = "NOT_FOUND"
	CodeValidation          Code = "VALIDATION"
)

// Risk classifies the severity of an audit denial.
type Risk string

const (
	RiskLow      Risk = "low"
	RiskMedium   Risk = "medium"
	RiskHigh     Risk = "high"
	RiskCritical Risk = "critical"
)

// Error is the common error shape for the whole engine. Every error that
// crosses a package boundary carries a Code so callers and the JSON surface
// can switch on it without string matching.
type Error struct {
	Code    Code
	Message string
	// Reason identifies the triggering rule for Denied errors,
	// e.g. "critical_path", "sensitive_pattern", "in_use".
	Reason string
	// Risk is set on Denied errors.
	Risk Risk
	// Provider is set on provider-scoped errors.
	Provider string
	// RequiresConfirmation marks denials the caller may override by
	// explicitly confirming.
	RequiresConfirmation bool
	cause                error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches two engine errors by Code, so callers can write
// errors.Is(err, Denied("", "", "")) style sentinels if they want to.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// CodeOf extracts the engine code from err, or empty if err is not ours.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool { return CodeOf(err) == code }

// Cancelled wraps a context cancellation or deadline as an engine error.
func Cancelled(op string, cause error) error {
	return &Error{Code: CodeCancelled, Message: op + " cancelled", cause: cause}
}

// Denied builds an audit rejection with the triggering rule and risk class.
func Denied(reason string, risk Risk, msg string) *Error {
	return &Error{Code: CodeDenied, Message: msg, Reason: reason, Risk: risk}
}

// DeniedConfirmable is a denial the caller may override with explicit
// confirmation (sensitive-pattern matches).
func DeniedConfirmable(reason string, risk Risk, msg string) *Error {
	e := Denied(reason, risk, msg)
	e.RequiresConfirmation = true
	return e
}

// IO wraps a filesystem error.
func IO(msg string, cause error) error {
	return &Error{Code: CodeIO, Message: msg, cause: cause}
}

// Integrity reports a post-delete verification failure.
func Integrity(path string) error {
	return &Error{Code: CodeIntegrity, Message: "path still exists after delete: " + path}
}

// Encoding wraps a serialization or deserialization failure.
func Encoding(msg string, cause error) error {
	return &Error{Code: CodeEncoding, Message: msg, cause: cause}
}

// Crypto wraps a keychain or encryption failure.
func Crypto(msg string, cause error) error {
	return &Error{Code: CodeCrypto, Message: msg, cause: cause}
}

// ProviderUnavailable reports missing credentials, a missing mount, or an
// unreachable provider endpoint.
func ProviderUnavailable(provider, msg string) error {
	return &Error{Code: CodeProviderUnavailable, Provider: provider, Message: msg}
}

// QuotaExceeded reports a payload over the provider's limit.
func QuotaExceeded(provider string, size, limit int64) error {
	return &Error{
		Code:     CodeQuotaExceeded,
		Provider: provider,
		Message:  fmt.Sprintf("payload %d bytes exceeds %s limit of %d bytes", size, provider, limit),
	}
}

// NotFound reports a missing backup id or registry entry.
func NotFound(what string) error {
	return &Error{Code: CodeNotFound, Message: what + " not found"}
}

// Validation reports a configuration value out of range.
func Validation(msg string) error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf is Validation with formatting.
func Validationf(format string, args ...interface{}) error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}
