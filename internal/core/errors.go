// AngelaMos | 2026
// errors.go

package core

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound           = errors.New("resource not found")
	ErrDuplicateKey       = errors.New("duplicate key")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrUserNotFound       = errors.New("user not found")
	ErrNoWorkspace        = errors.New("no workspace")
	ErrWorkspaceForbidden = errors.New("workspace forbidden")
	ErrLastWorkspace      = errors.New("last workspace")
)

const (
	CodeAuthRequired       = "AUTH_REQUIRED"
	CodeTokenInvalid       = "TOKEN_INVALID"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeNoWorkspace        = "NO_WORKSPACE"
	CodeWorkspaceForbidden = "WORKSPACE_FORBIDDEN"
	CodeValidation         = "VALIDATION_ERROR"
	CodeEmailExists        = "EMAIL_EXISTS"
	CodeDuplicate          = "DUPLICATE"
	CodeLastWorkspace      = "LAST_WORKSPACE"
	CodeNotFound           = "NOT_FOUND"
	CodeRateLimited        = "RATE_LIMITED"
	CodeUpstream           = "UPSTREAM_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
	Code       string
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(err error, message string, status int, code string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		StatusCode: status,
		Code:       code,
	}
}

func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func UnauthorizedError(message string) *AppError {
	if message == "" {
		message = "authentication required"
	}
	return NewAppError(
		ErrUnauthorized,
		message,
		http.StatusUnauthorized,
		CodeAuthRequired,
	)
}

func TokenInvalidError() *AppError {
	return NewAppError(
		ErrTokenInvalid,
		"token is invalid or expired",
		http.StatusUnauthorized,
		CodeTokenInvalid,
	)
}

func InvalidCredentialsError() *AppError {
	return NewAppError(
		ErrUnauthorized,
		"invalid email or password",
		http.StatusUnauthorized,
		CodeInvalidCredentials,
	)
}

func UserNotFoundError() *AppError {
	return NewAppError(
		ErrUserNotFound,
		"user not found",
		http.StatusNotFound,
		CodeUserNotFound,
	)
}

func NoWorkspaceError() *AppError {
	return NewAppError(
		ErrNoWorkspace,
		"no workspace available, create a workspace first",
		http.StatusForbidden,
		CodeNoWorkspace,
	)
}

func WorkspaceForbiddenError(message string) *AppError {
	if message == "" {
		message = "workspace access denied"
	}
	return NewAppError(
		ErrWorkspaceForbidden,
		message,
		http.StatusForbidden,
		CodeWorkspaceForbidden,
	)
}

func LastWorkspaceError() *AppError {
	return NewAppError(
		ErrLastWorkspace,
		"cannot delete your only workspace",
		http.StatusConflict,
		CodeLastWorkspace,
	)
}

func ValidationError(message string) *AppError {
	return NewAppError(
		ErrInvalidInput,
		message,
		http.StatusBadRequest,
		CodeValidation,
	)
}

func DuplicateError(field string) *AppError {
	if field == "email" {
		return NewAppError(
			ErrDuplicateKey,
			"email already registered",
			http.StatusConflict,
			CodeEmailExists,
		)
	}
	return NewAppError(
		ErrDuplicateKey,
		fmt.Sprintf("%s already exists", field),
		http.StatusConflict,
		CodeDuplicate,
	)
}

func NotFoundError(resource string) *AppError {
	return NewAppError(
		ErrNotFound,
		fmt.Sprintf("%s not found", resource),
		http.StatusNotFound,
		CodeNotFound,
	)
}

func InternalError(err error) *AppError {
	return NewAppError(
		err,
		"an internal error occurred",
		http.StatusInternalServerError,
		CodeInternal,
	)
}

// Classify maps a wrapped sentinel onto its transport error. Unknown errors
// become INTERNAL_ERROR.
func Classify(err error) *AppError {
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}

	switch {
	case errors.Is(err, ErrTokenInvalid):
		return TokenInvalidError()
	case errors.Is(err, ErrUnauthorized):
		return UnauthorizedError("")
	case errors.Is(err, ErrUserNotFound):
		return UserNotFoundError()
	case errors.Is(err, ErrNoWorkspace):
		return NoWorkspaceError()
	case errors.Is(err, ErrWorkspaceForbidden), errors.Is(err, ErrForbidden):
		return WorkspaceForbiddenError("")
	case errors.Is(err, ErrLastWorkspace):
		return LastWorkspaceError()
	case errors.Is(err, ErrInvalidInput):
		return ValidationError(unwrapMessage(err))
	case errors.Is(err, ErrDuplicateKey):
		return DuplicateError("resource")
	case errors.Is(err, ErrNotFound):
		return NotFoundError("resource")
	default:
		return InternalError(err)
	}
}

func unwrapMessage(err error) string {
	var detail *detailError
	if errors.As(err, &detail) {
		return detail.msg
	}
	return "invalid input"
}

type detailError struct {
	msg string
	err error
}

func (e *detailError) Error() string { return e.msg }
func (e *detailError) Unwrap() error { return e.err }

// Invalid returns ErrInvalidInput carrying a caller-safe message.
func Invalid(format string, args ...any) error {
	return &detailError{msg: fmt.Sprintf(format, args...), err: ErrInvalidInput}
}
