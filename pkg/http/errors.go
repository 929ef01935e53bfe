package http

import (
	"fmt"
	"net/http"
)

// AppError is an error with an HTTP status and a stable code for clients.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func newAppError(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

func NotFoundErrorf(format string, a ...interface{}) *AppError {
	return newAppError(http.StatusNotFound, "ERR_NOT_FOUND", fmt.Sprintf(format, a...))
}

func ConflictError(message string) *AppError {
	return newAppError(http.StatusConflict, "ERR_CONFLICT", message)
}

func TooManyRequestsError(message string) *AppError {
	return newAppError(http.StatusTooManyRequests, "ERR_RATE_LIMITED", message)
}

// internalError hides err from the client.
func internalError(err error) *AppError {
	e := newAppError(http.StatusInternalServerError, "ERR_INTERNAL", "something went wrong")
	e.Err = err
	return e
}
