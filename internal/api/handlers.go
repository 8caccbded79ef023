package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/mentor-appointments/internal/appointment"
	"github.com/hackgods/mentor-appointments/internal/identity"
)

// AppointmentService is the slice of appointment.Service the transport needs.
type AppointmentService interface {
	BookRegular(ctx context.Context, caller identity.Caller, req appointment.BookingRequest) (*appointment.Appointment, error)
	UpdateStatus(ctx context.Context, caller identity.Caller, id uuid.UUID, target appointment.Status, mentorNote *string) (*appointment.Appointment, error)
	CreateEmergency(ctx context.Context, caller identity.Caller, notes *string) (*appointment.Appointment, error)
	AcceptEmergency(ctx context.Context, caller identity.Caller, id uuid.UUID) (*appointment.Appointment, error)

	ListMine(ctx context.Context, caller identity.Caller) ([]appointment.AppointmentView, error)
	ListForStudent(ctx context.Context, caller identity.Caller) ([]appointment.AppointmentView, error)
	ListMentorRegular(ctx context.Context, caller identity.Caller) ([]appointment.AppointmentView, error)
	ListPendingEmergencies(ctx context.Context, caller identity.Caller) ([]appointment.AppointmentView, error)
}

type handlers struct {
	svc      AppointmentService
	validate *requestValidator
	logger   *zap.Logger
}

// decodeJSON reads the body into dst. An empty body is accepted when allowEmpty is set.
func decodeJSON(r *http.Request, dst any, allowEmpty bool) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) && allowEmpty {
		return nil
	}
	return err
}

func appointmentIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func mustCaller(w http.ResponseWriter, r *http.Request) (identity.Caller, bool) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing caller")
	}
	return caller, ok
}

func (h *handlers) createAppointment(w http.ResponseWriter, r *http.Request) {
	caller, ok := mustCaller(w, r)
	if !ok {
		return
	}

	var req CreateAppointmentRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if fields := h.validate.Check(req); fields != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Fields: fields})
		return
	}

	appt, err := h.svc.BookRegular(r.Context(), caller, appointment.BookingRequest{
		MentorID: uuid.MustParse(req.MentorID),
		Date:     req.Date,
		Time:     req.Time,
		Notes:    req.Notes,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
}

func (h *handlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := mustCaller(w, r)
	if !ok {
		return
	}
	id, ok := appointmentIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if fields := h.validate.Check(req); fields != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Fields: fields})
		return
	}

	target, valid := appointment.ParseStatus(req.Status)
	if !valid {
		writeError(w, http.StatusBadRequest, "invalid_status", "status must be one of Pending, Accepted, Rejected, Completed, Cancelled")
		return
	}

	appt, err := h.svc.UpdateStatus(r.Context(), caller, id, target, req.MentorNote)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
}

func (h *handlers) createEmergency(w http.ResponseWriter, r *http.Request) {
	caller, ok := mustCaller(w, r)
	if !ok {
		return
	}

	var req CreateEmergencyRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if fields := h.validate.Check(req); fields != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Fields: fields})
		return
	}

	appt, err := h.svc.CreateEmergency(r.Context(), caller, req.Notes)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
}

func (h *handlers) acceptEmergency(w http.ResponseWriter, r *http.Request) {
	caller, ok := mustCaller(w, r)
	if !ok {
		return
	}
	id, ok := appointmentIDParam(w, r)
	if !ok {
		return
	}

	appt, err := h.svc.AcceptEmergency(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
}

type listFunc func(ctx context.Context, caller identity.Caller) ([]appointment.AppointmentView, error)

func (h *handlers) list(fn listFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := mustCaller(w, r)
		if !ok {
			return
		}

		views, err := fn(r.Context(), caller)
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toViewResponses(views))
	}
}
