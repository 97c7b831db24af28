package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies one anticipated failure condition. Everything except
// CodeInternal is operational: safe to surface verbatim to the client.

type Code string

const (
	CodeValidation            Code = "validation_error"
	CodeNotFound              Code = "not_found"
	CodeAuthRequired          Code = "auth_required"
	CodeTokenExpired          Code = "token_expired"
	CodeInvalidToken          Code = "invalid_token"
	CodePasswordChanged       Code = "password_changed"
	CodeForbidden             Code = "forbidden"
	CodeDuplicateKey          Code = "duplicate_key"
	CodeInvalidOrExpiredToken Code = "invalid_or_expired_token"
	CodeInternal              Code = "internal_error"
)

type Error struct {
	Code    Code
	Status  int
	Message string
	Details any   // optional structured detail, e.g. per-field validation errors
	Err     error // wrapped cause, never serialized in prod
}

// WithDetails attaches structured detail and returns the error for chaining.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Operational reports whether the failure is anticipated and safe to
// disclose. Anything non-operational must be logged and masked.
func (e *Error) Operational() bool {
	return e.Code != CodeInternal
}

func New(code Code, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

func Validation(message string) *Error {
	return New(CodeValidation, http.StatusBadRequest, message)
}

func NotFound(message string) *Error {
	return New(CodeNotFound, http.StatusNotFound, message)
}

func AuthRequired(message string) *Error {
	return New(CodeAuthRequired, http.StatusUnauthorized, message)
}

func TokenExpired() *Error {
	return New(CodeTokenExpired, http.StatusUnauthorized, "Token is expired! Please log in again.")
}

func InvalidToken() *Error {
	return New(CodeInvalidToken, http.StatusUnauthorized, "Invalid token! Please log in again.")
}

func PasswordChanged() *Error {
	return New(CodePasswordChanged, http.StatusUnauthorized, "Password was changed recently. Please log in again.")
}

func Forbidden(message string) *Error {
	return New(CodeForbidden, http.StatusForbidden, message)
}

func DuplicateKey(message string) *Error {
	return New(CodeDuplicateKey, http.StatusBadRequest, message)
}

func InvalidOrExpiredToken() *Error {
	return New(CodeInvalidOrExpiredToken, http.StatusBadRequest, "Token is invalid or has expired")
}

func Internal(err error) *Error {
	return &Error{
		Code:    CodeInternal,
		Status:  http.StatusInternalServerError,
		Message: "Something went very wrong",
		Err:     err,
	}
}

func Wrap(code Code, status int, message string, err error) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// From extracts an *Error from an error chain. The second return is false
// when the error is not an application error (a programming error).
func From(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func IsCode(err error, code Code) bool {
	appErr, ok := From(err)
	return ok && appErr.Code == code
}
