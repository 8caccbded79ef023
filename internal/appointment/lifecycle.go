package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/hackgods/mentor-appointments/internal/identity"
)

// Event is a lifecycle trigger on a single appointment.
type Event string

const (
	EventCancel   Event = "cancel"
	EventAccept   Event = "accept"
	EventReject   Event = "reject"
	EventComplete Event = "complete"
)

func (e Event) pastTense() string {
	switch e {
	case EventCancel:
		return "cancelled"
	case EventAccept:
		return "accepted"
	case EventReject:
		return "rejected"
	case EventComplete:
		return "completed"
	}
	return string(e)
}

type transitionKey struct {
	from  Status
	event Event
}

// transitions is the whole state machine for the lifecycle engine. Emergency
// claiming goes through AcceptEmergency instead.
var transitions = map[transitionKey]Status{
	{StatusPending, EventCancel}:    StatusCancelled,
	{StatusPending, EventAccept}:    StatusAccepted,
	{StatusAccepted, EventReject}:   StatusRejected,
	{StatusAccepted, EventComplete}: StatusCompleted,
}

var eventActors = map[Event]identity.Role{
	EventCancel:   identity.RoleStudent,
	EventAccept:   identity.RoleMentor,
	EventReject:   identity.RoleMentor,
	EventComplete: identity.RoleMentor,
}

var eventTypes = map[Event]string{
	EventCancel:   EventAppointmentCancelled,
	EventAccept:   EventAppointmentAccepted,
	EventReject:   EventAppointmentRejected,
	EventComplete: EventAppointmentCompleted,
}

func nextStatus(from Status, ev Event) (Status, bool) {
	to, ok := transitions[transitionKey{from: from, event: ev}]
	return to, ok
}

// EventForTarget maps the status a caller asks for onto the event that
// produces it. Pending is never a target.
func EventForTarget(target Status) (Event, bool) {
	switch target {
	case StatusCancelled:
		return EventCancel, true
	case StatusAccepted:
		return EventAccept, true
	case StatusRejected:
		return EventReject, true
	case StatusCompleted:
		return EventComplete, true
	}
	return "", false
}

// guard checks actor, ownership, kind and table entry against the current
// record, in that order. It returns the target status when all hold.
func guard(caller identity.Caller, appt *Appointment, ev Event) (Status, error) {
	role, ok := eventActors[ev]
	if !ok {
		return "", validationError("unknown event %q", ev)
	}

	switch role {
	case identity.RoleStudent:
		if !caller.IsStudent() {
			return "", forbidden("only students can cancel appointments")
		}
		if appt.StudentID != caller.ID {
			return "", forbidden("appointment belongs to another student")
		}
	case identity.RoleMentor:
		if !caller.IsMentor() {
			return "", forbidden("only mentors can accept, reject or complete appointments")
		}
		if !appt.AssignedTo(caller.ID) {
			return "", forbidden("appointment is not assigned to this mentor")
		}
		if appt.Kind != KindRegular {
			return "", invalidTransition(appt.Status, ev)
		}
	}

	to, ok := nextStatus(appt.Status, ev)
	if !ok {
		return "", invalidTransition(appt.Status, ev)
	}
	return to, nil
}

// participates reports whether caller is the student on record or the
// assigned mentor.
func participates(caller identity.Caller, appt *Appointment) bool {
	switch {
	case caller.IsStudent():
		return appt.StudentID == caller.ID
	case caller.IsMentor():
		return appt.AssignedTo(caller.ID)
	}
	return false
}

// predicateFor encodes the expected pre-state and the actor guard so the
// store re-checks both inside the atomic update.
func predicateFor(caller identity.Caller, from Status, ev Event) Predicate {
	pred := Predicate{Status: from}
	if eventActors[ev] == identity.RoleStudent {
		id := caller.ID
		pred.StudentID = &id
		return pred
	}

	kind := KindRegular
	id := caller.ID
	pred.Kind = &kind
	pred.MentorID = &id
	return pred
}

// Transition drives one lifecycle event. mentorNote is persisted as sent on
// EventComplete and ignored otherwise.
func (s *Service) Transition(ctx context.Context, caller identity.Caller, id uuid.UUID, ev Event, mentorNote *string) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.Transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("appointment.id", id.String()),
		attribute.String("appointment.event", string(ev)),
	)

	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	to, err := guard(caller, appt, ev)
	if err != nil {
		return nil, err
	}

	mut := Mutation{Status: to}
	if ev == EventComplete && mentorNote != nil {
		note := *mentorNote
		mut.MentorNote = &note
	}

	updated, err := s.store.ConditionalUpdate(ctx, id, predicateFor(caller, appt.Status, ev), mut)
	if err != nil {
		if !errors.Is(err, ErrNoMatch) {
			return nil, unavailable("update appointment status", err)
		}
		return nil, s.classifyLostUpdate(ctx, caller, id, ev)
	}

	s.logger.Info("appointment status changed",
		zap.Stringer("appointment_id", id),
		zap.String("from", string(appt.Status)),
		zap.String("to", string(updated.Status)),
		zap.Stringer("caller_id", caller.ID),
	)

	payload := map[string]any{
		"from":      appt.Status,
		"to":        updated.Status,
		"caller_id": caller.ID.String(),
	}
	if mut.MentorNote != nil {
		payload["mentor_note"] = *mut.MentorNote
	}
	s.logEvent(ctx, id, eventTypes[ev], payload)

	return updated, nil
}

// classifyLostUpdate explains a NoMatch: the record moved between the guard
// check and the conditional write.
func (s *Service) classifyLostUpdate(ctx context.Context, caller identity.Caller, id uuid.UUID, ev Event) error {
	current, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if _, err := guard(caller, current, ev); err != nil {
		return err
	}
	return ErrConflict
}

// UpdateStatus is the transport entry point: it accepts the requested
// target status instead of an event.
func (s *Service) UpdateStatus(ctx context.Context, caller identity.Caller, id uuid.UUID, target Status, mentorNote *string) (*Appointment, error) {
	if !target.Valid() {
		return nil, validationError("invalid status %q", target)
	}

	ev, ok := EventForTarget(target)
	if !ok {
		appt, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if !participates(caller, appt) {
			return nil, forbidden("caller is not a participant of this appointment")
		}
		return nil, fmt.Errorf("%w: appointment is %s and cannot return to %s", ErrInvalidTransition, appt.Status, target)
	}

	return s.Transition(ctx, caller, id, ev, mentorNote)
}

func (s *Service) Cancel(ctx context.Context, caller identity.Caller, id uuid.UUID) (*Appointment, error) {
	return s.Transition(ctx, caller, id, EventCancel, nil)
}

func (s *Service) Accept(ctx context.Context, caller identity.Caller, id uuid.UUID) (*Appointment, error) {
	return s.Transition(ctx, caller, id, EventAccept, nil)
}

func (s *Service) Reject(ctx context.Context, caller identity.Caller, id uuid.UUID) (*Appointment, error) {
	return s.Transition(ctx, caller, id, EventReject, nil)
}

func (s *Service) Complete(ctx context.Context, caller identity.Caller, id uuid.UUID, mentorNote *string) (*Appointment, error) {
	return s.Transition(ctx, caller, id, EventComplete, mentorNote)
}
