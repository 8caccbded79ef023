package appointment

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/hackgods/mentor-appointments/internal/identity"
)

// CreateEmergency files an unassigned emergency request for the calling student.
func (s *Service) CreateEmergency(ctx context.Context, caller identity.Caller, notes *string) (*Appointment, error) {
	if !caller.IsStudent() {
		return nil, forbidden("only students can create emergency requests")
	}

	note := DefaultEmergencyNote
	if notes != nil {
		if trimmed := strings.TrimSpace(*notes); trimmed != "" {
			note = trimmed
		}
	}

	now := s.now()
	appt, err := s.store.Create(ctx, Appointment{
		ID:            uuid.New(),
		StudentID:     caller.ID,
		ScheduledDate: now,
		ScheduledTime: ScheduledTimeASAP,
		Kind:          KindEmergency,
		Status:        StatusPending,
		StudentNotes:  &note,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return nil, err
		}
		return nil, unavailable("create emergency appointment", err)
	}

	s.logger.Info("emergency requested",
		zap.Stringer("appointment_id", appt.ID),
		zap.Stringer("student_id", caller.ID),
	)
	s.logEvent(ctx, appt.ID, EventEmergencyRequested, map[string]any{
		"student_id": caller.ID.String(),
	})

	return appt, nil
}

// AcceptEmergency claims an unassigned emergency request for the calling
// mentor. Exactly one concurrent caller wins; the others get ErrAlreadyAccepted.
func (s *Service) AcceptEmergency(ctx context.Context, caller identity.Caller, id uuid.UUID) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.AcceptEmergency")
	defer span.End()
	span.SetAttributes(attribute.String("appointment.id", id.String()))

	if !caller.IsMentor() {
		return nil, forbidden("only mentors can accept emergency requests")
	}

	kind := KindEmergency
	mentorID := caller.ID
	pred := Predicate{
		Status:     StatusPending,
		Kind:       &kind,
		Unassigned: true,
	}
	mut := Mutation{
		Status:   StatusAccepted,
		MentorID: &mentorID,
	}

	appt, err := s.store.ConditionalUpdate(ctx, id, pred, mut)
	if err != nil {
		if !errors.Is(err, ErrNoMatch) {
			return nil, unavailable("accept emergency appointment", err)
		}
		return nil, s.explainLostClaim(ctx, id, caller.ID)
	}

	span.SetAttributes(attribute.Bool("appointment.claimed", true))
	s.logger.Info("emergency accepted",
		zap.Stringer("appointment_id", id),
		zap.Stringer("mentor_id", caller.ID),
	)
	s.logEvent(ctx, id, EventEmergencyAccepted, map[string]any{
		"mentor_id":  caller.ID.String(),
		"student_id": appt.StudentID.String(),
	})

	return appt, nil
}

// explainLostClaim separates "no such emergency" from "somebody got there
// first". Losing the race is an expected outcome and is not logged as an error.
func (s *Service) explainLostClaim(ctx context.Context, id, mentorID uuid.UUID) error {
	current, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if current.Kind != KindEmergency {
		return ErrAppointmentNotFound
	}

	s.logger.Debug("emergency claim lost",
		zap.Stringer("appointment_id", id),
		zap.Stringer("mentor_id", mentorID),
		zap.String("status", string(current.Status)),
	)
	return ErrAlreadyAccepted
}
