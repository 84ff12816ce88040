package response

import (
	"net/http"

	"backend/pkg/apperr"
)

// Response represents a standard API response format
type Response struct {
	Status     string            `json:"status"`      // "success" or "error"
	StatusCode int               `json:"status_code"` // HTTP status code
	Data       interface{}       `json:"data,omitempty"`
	Error      string            `json:"error,omitempty"`
	Code       string            `json:"code,omitempty"`   // stable machine-readable error code
	Fields     map[string]string `json:"fields,omitempty"` // per-field validation detail
}

// Success returns a standard success response wrapping the data
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// Error returns a standard error response wrapping the error message
func Error(statusCode int, err string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      err,
	}
}

// FromError maps a typed domain error to its HTTP status and error envelope.
// Unrecognized errors are reported as 500 without leaking internals.
func FromError(err error) (int, Response) {
	appErr, ok := apperr.From(err)
	if !ok {
		return http.StatusInternalServerError, Error(http.StatusInternalServerError, "internal server error")
	}

	status := http.StatusInternalServerError
	switch appErr.Kind {
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindUnauthorized:
		status = http.StatusForbidden
	}

	resp := Error(status, appErr.Message)
	resp.Code = appErr.Code
	resp.Fields = appErr.Fields
	return status, resp
}
