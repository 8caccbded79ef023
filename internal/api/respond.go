package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hackgods/mentor-appointments/internal/appointment"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeServiceError maps the appointment error taxonomy onto HTTP. Lost races
// and invalid transitions are normal outcomes and are logged at info level.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	fields := []zap.Field{
		zap.String("request_id", GetRequestID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	}
	if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
		fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
	}

	switch {
	case errors.Is(err, appointment.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, appointment.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrMentorNotFound):
		writeError(w, http.StatusNotFound, "mentor_not_found", err.Error())
	case errors.Is(err, appointment.ErrInvalidTransition):
		logger.Info("transition refused", fields...)
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrAlreadyAccepted):
		logger.Info("emergency claim lost", fields...)
		writeError(w, http.StatusConflict, "already_accepted", "This emergency request has already been accepted by another mentor or is no longer available.")
	case errors.Is(err, appointment.ErrConflict):
		logger.Info("concurrent update", fields...)
		writeError(w, http.StatusConflict, "conflict", "The appointment changed while you were updating it. Refresh and try again.")
	case errors.Is(err, appointment.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		logger.Error("appointment store unavailable", fields...)
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", "please retry shortly")
	default:
		logger.Error("unhandled error", fields...)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
