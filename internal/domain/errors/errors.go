package errors

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// Kind classifies an error for presentation.
type Kind string

const (
	KindAuthentication Kind = "AUTHENTICATION"
	KindNetwork        Kind = "NETWORK"
	KindValidation     Kind = "VALIDATION"
	KindPermission     Kind = "PERMISSION"
	KindNotFound       Kind = "NOT_FOUND"
	KindServer         Kind = "SERVER"
	KindClient         Kind = "CLIENT"
	KindUnknown        Kind = "UNKNOWN"
)

// Error codes
const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeBadGateway         = "BAD_GATEWAY"
	CodeTimeout            = "TIMEOUT"
	CodeNetwork            = "NETWORK_ERROR"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeAccountNotFound    = "ACCOUNT_NOT_FOUND"
	CodeLoginRequired      = "LOGIN_REQUIRED"
	CodeLoginRedirect      = "LOGIN_REDIRECT"
	CodeQuantityLimit      = "QUANTITY_LIMIT"
	CodeVerificationNeeded = "VERIFICATION_REQUIRED"
	CodeFileTooLarge       = "FILE_TOO_LARGE"
	CodeUnknown            = "UNKNOWN"
)

// Domain errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountNotFound    = errors.New("account not found")
	ErrLoginRequired      = errors.New("login required")
	ErrLoginRedirect      = errors.New("backend answered with an html login page")
	ErrQuantityLimit      = errors.New("quantity limit exceeded")
	ErrNetwork            = errors.New("network failure")
	ErrServer             = errors.New("server failure")
)

var defaultUserMessages = map[Kind]string{
	KindAuthentication: "Please log in to continue.",
	KindNetwork:        "We could not reach the server. Check your connection and try again.",
	KindValidation:     "Some of the information you entered is not valid.",
	KindPermission:     "You do not have permission to do that.",
	KindNotFound:       "We could not find what you were looking for.",
	KindServer:         "Something went wrong on our side. Please try again later.",
	KindClient:         "The request could not be completed.",
	KindUnknown:        "An unexpected error occurred.",
}

// DefaultUserMessage returns the user-facing fallback text for a kind.
func DefaultUserMessage(kind Kind) string {
	if msg, ok := defaultUserMessages[kind]; ok {
		return msg
	}
	return defaultUserMessages[KindUnknown]
}

// AppError represents application error with HTTP status
type AppError struct {
	Status      int    `json:"-"`
	Kind        Kind   `json:"kind"`
	Code        string `json:"code"`
	Message     string `json:"message"`
	UserMessage string `json:"userMessage"`
	Err         error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the same call may succeed.
func (e *AppError) Retryable() bool {
	return e.Kind == KindNetwork || e.Kind == KindServer
}

// WithUserMessage returns a copy carrying a custom user-facing message.
func (e *AppError) WithUserMessage(msg string) *AppError {
	cp := *e
	cp.UserMessage = msg
	return &cp
}

// NewAppError creates a new app error. Kind is derived from the status.
func NewAppError(status int, code, message string, err error) *AppError {
	kind := KindForStatus(status)
	return &AppError{
		Status:      status,
		Kind:        kind,
		Code:        code,
		Message:     message,
		UserMessage: DefaultUserMessage(kind),
		Err:         err,
	}
}

func BadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, CodeInvalidInput, message, ErrInvalidInput)
}

func Unauthorized(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, CodeUnauthorized, message, ErrUnauthorized)
}

func Forbidden(message string) *AppError {
	return NewAppError(http.StatusForbidden, CodeForbidden, message, ErrForbidden)
}

func NotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, CodeNotFound, message, ErrNotFound)
}

func InternalError(err error) *AppError {
	return NewAppError(http.StatusInternalServerError, CodeInternalError, "internal server error", err)
}

// Network wraps a transport failure.
func Network(err error) *AppError {
	e := NewAppError(http.StatusBadGateway, CodeNetwork, "network request failed", err)
	e.Kind = KindNetwork
	e.UserMessage = DefaultUserMessage(KindNetwork)
	return e
}

// LoginRequired is returned by operations that need an authenticated user.
func LoginRequired() *AppError {
	e := NewAppError(http.StatusUnauthorized, CodeLoginRequired, "login required", ErrLoginRequired)
	e.UserMessage = "Please log in to manage your cart."
	return e
}

// LoginRedirect is returned when the backend served an HTML page instead of JSON.
func LoginRedirect() *AppError {
	e := NewAppError(http.StatusUnauthorized, CodeLoginRedirect, "received html instead of json", ErrLoginRedirect)
	e.UserMessage = "Your session has ended. Please log in again."
	return e
}

// KindForStatus maps an HTTP status onto the taxonomy.
func KindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuthentication
	case status == http.StatusForbidden:
		return KindPermission
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity,
		status == http.StatusRequestEntityTooLarge, status == http.StatusUnsupportedMediaType:
		return KindValidation
	case status >= 500:
		return KindServer
	case status >= 400:
		return KindClient
	default:
		return KindUnknown
	}
}

// FromStatus builds an AppError for a non-2xx backend answer.
func FromStatus(status int, message string) *AppError {
	if message == "" {
		message = http.StatusText(status)
	}
	var sentinel error
	code := CodeUnknown
	switch KindForStatus(status) {
	case KindAuthentication:
		sentinel, code = ErrUnauthorized, CodeUnauthorized
	case KindPermission:
		sentinel, code = ErrForbidden, CodeForbidden
	case KindNotFound:
		sentinel, code = ErrNotFound, CodeNotFound
	case KindValidation:
		sentinel, code = ErrInvalidInput, CodeInvalidInput
	case KindServer:
		sentinel, code = ErrServer, CodeInternalError
	}
	return NewAppError(status, code, message, sentinel)
}

// Normalize maps any error onto an AppError. Nil stays nil.
func Normalize(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		e := Network(err)
		e.Code = CodeTimeout
		return e
	}
	if errors.Is(err, context.Canceled) {
		e := NewAppError(0, CodeUnknown, "request cancelled", err)
		e.Kind = KindClient
		e.UserMessage = DefaultUserMessage(KindClient)
		return e
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return Network(err)
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "fetch") || strings.Contains(msg, "network") || strings.Contains(msg, "connection refused") {
		return Network(err)
	}

	e := NewAppError(http.StatusInternalServerError, CodeUnknown, err.Error(), err)
	e.Kind = KindUnknown
	e.UserMessage = DefaultUserMessage(KindUnknown)
	return e
}

// KindOf is a shorthand for Normalize(err).Kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return Normalize(err).Kind
}
