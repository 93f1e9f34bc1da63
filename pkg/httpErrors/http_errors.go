package httpErrors

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/amankumarsingh77/batch-image-compressor/internal/jobs"
)

const (
	CodeNotFound      = "NOT_FOUND"
	CodeInvalidInput  = "INVALID_INPUT"
	CodeConflict      = "CONFLICT"
	CodeQueueFull     = "QUEUE_FULL"
	CodeIntegrity     = "INTEGRITY_FAULT"
	CodeInternalError = "INTERNAL_ERROR"
)

// RestErr is the JSON body of every failed request.
type RestErr struct {
	Success bool   `json:"success"`
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *RestErr) Error() string {
	return e.Message
}

func NewRestError(status int, code, message string) *RestErr {
	return &RestErr{Status: status, Code: code, Message: message}
}

func NewBadRequestError(message string) *RestErr {
	return NewRestError(http.StatusBadRequest, CodeInvalidInput, message)
}

// ParseErrors maps a domain error onto a RestErr. Internal failures keep a
// generic message so filesystem details are not leaked.
func ParseErrors(err error) *RestErr {
	var restErr *RestErr
	switch {
	case errors.As(err, &restErr):
		return restErr
	case errors.Is(err, jobs.ErrNotFound):
		return NewRestError(http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, jobs.ErrInvalidInput), errors.Is(err, jobs.ErrEmptyBatch):
		return NewRestError(http.StatusBadRequest, CodeInvalidInput, err.Error())
	case errors.Is(err, jobs.ErrConflict):
		return NewRestError(http.StatusConflict, CodeConflict, err.Error())
	case errors.Is(err, jobs.ErrQueueFull):
		return NewRestError(http.StatusServiceUnavailable, CodeQueueFull, err.Error())
	case errors.Is(err, jobs.ErrIntegrity):
		return NewRestError(http.StatusInternalServerError, CodeIntegrity, "job archive is missing")
	default:
		return NewRestError(http.StatusInternalServerError, CodeInternalError, "internal server error")
	}
}

// ErrorResponse writes err as JSON using the mapped status.
func ErrorResponse(c echo.Context, err error) error {
	restErr := ParseErrors(err)
	return c.JSON(restErr.Status, restErr)
}
