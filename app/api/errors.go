package api

import (
	"consultant/model"
	"consultant/service"
	"consultant/types"
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler turns every error returned by a handler into the JSON error
// body. Internal details are logged, never sent to the client.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var apiErr Error
	if !errors.As(err, &apiErr) {
		apiErr = fromError(err)
	}

	attrs := []any{"code", apiErr.Code, "path", c.Path(), "error", err.Error()}
	if apiErr.Stage != "" {
		attrs = append(attrs, "stage", apiErr.Stage)
	}
	if rid, ok := c.Locals("requestid").(string); ok {
		attrs = append(attrs, "request_id", rid)
	}
	if apiErr.Code >= fiber.StatusInternalServerError {
		slog.Error("request failed", attrs...)
	} else {
		slog.Debug("request rejected", attrs...)
	}

	return c.Status(apiErr.Code).JSON(apiErr)
}

func fromError(err error) Error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return NewError(fiberErr.Code, fiberErr.Message)
	}

	var apiErr Error
	switch {
	case errors.Is(err, model.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		apiErr = NewError(fiber.StatusGatewayTimeout, "the request timed out")
	case errors.Is(err, model.ErrUnavailable):
		apiErr = NewError(fiber.StatusServiceUnavailable, "the language model runtime is unavailable")
	case errors.Is(err, service.ErrEmptyQuestion):
		apiErr = NewValidationError(map[string]string{"Question": "failed on 'required' tag"})
	default:
		apiErr = NewError(fiber.StatusInternalServerError, "failed to answer the question")
	}

	var stageErr *service.StageError
	if errors.As(err, &stageErr) {
		apiErr.Stage = string(stageErr.Stage)
	}
	return apiErr
}

type Error struct {
	Status  string            `json:"status"`
	Code    int               `json:"code"`
	Message string            `json:"error"`
	Stage   string            `json:"stage,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// Error implements the Error interface
func (e Error) Error() string {
	return e.Message
}

func NewError(code int, err string) Error {
	return Error{
		Status:  types.StatusError,
		Code:    code,
		Message: err,
	}
}

func NewValidationError(errors map[string]string) Error {
	return Error{
		Status:  types.StatusError,
		Code:    fiber.StatusUnprocessableEntity,
		Message: "validation failed",
		Errors:  errors,
	}
}

func ErrBadRequest() Error {
	return NewError(fiber.StatusBadRequest, "invalid JSON request")
}

func ErrNotReady() Error {
	return NewError(fiber.StatusServiceUnavailable, "service is not ready")
}
