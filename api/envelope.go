package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/vigil"
)

// Envelope wraps every response body.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Not-found messages. Clients use them to tell a missing queue from a
// missing job, as both are reported with 404.
const (
	MsgQueueNotFound = "Queue not found."
	MsgJobNotFound   = "Job not found."
)

// Operator-facing messages.
const (
	msgBadLimit      = "Invalid limit."
	msgBackendFailed = "The queue backend could not complete the request."
	msgRetried       = "Job queued for retry."
	msgReleased      = "Job released."
	msgRetriedAll    = "All failed jobs queued for retry."
	msgReleasedAll   = "All jobs released."
	msgPartialBulk   = "Some jobs could not be processed."
)

func (a *API) ok(ctx forge.Context, data any, message string) error {
	return ctx.JSON(http.StatusOK, Envelope{Success: true, Data: data, Message: message})
}

// fail maps err to a status and writes a failure envelope.
func (a *API) fail(ctx forge.Context, err error) error {
	status, message := classify(err)
	if status >= http.StatusInternalServerError {
		a.logger.Warn("api: request failed",
			slog.String("queue", ctx.Param("queueId")),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
	}
	return ctx.JSON(status, Envelope{Success: false, Message: message, Error: err.Error()})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, vigil.ErrBackendNotFound):
		return http.StatusNotFound, MsgQueueNotFound
	case errors.Is(err, vigil.ErrJobNotFound):
		return http.StatusNotFound, MsgJobNotFound
	case errors.Is(err, errBadLimit):
		return http.StatusBadRequest, msgBadLimit
	case errors.Is(err, vigil.ErrAdapter):
		return http.StatusBadGateway, msgBackendFailed
	default:
		return http.StatusInternalServerError, msgBackendFailed
	}
}
