package appointment

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/mentor-appointments/internal/identity"
)

// BookingRequest is a regular booking as submitted by a student.
type BookingRequest struct {
	MentorID uuid.UUID
	Date     string
	Time     string
	Notes    *string
}

var clockPattern = regexp.MustCompile(`^(2[0-3]|[01]?[0-9]):([0-5]?[0-9])$`)

// ParseScheduledDate accepts a calendar date (2006-01-02) or an RFC 3339
// timestamp and returns midnight UTC of that calendar day.
func ParseScheduledDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, validationError("date is required")
	}

	if d, err := time.Parse(time.DateOnly, raw); err == nil {
		return d.UTC(), nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		y, m, d := ts.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, validationError("date %q is not a valid ISO 8601 date", raw)
}

// NormalizeScheduledTime validates an H:MM or HH:MM clock time and returns it
// zero padded so lexical order matches chronological order.
func NormalizeScheduledTime(raw string) (string, error) {
	m := clockPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", validationError("time %q must be in HH:MM format", raw)
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}

// BookRegular creates a pending regular appointment with a chosen mentor.
func (s *Service) BookRegular(ctx context.Context, caller identity.Caller, req BookingRequest) (*Appointment, error) {
	if !caller.IsStudent() {
		return nil, forbidden("only students can book appointments")
	}
	if req.MentorID == uuid.Nil {
		return nil, validationError("mentor id is required")
	}

	date, err := ParseScheduledDate(req.Date)
	if err != nil {
		return nil, err
	}
	clock, err := NormalizeScheduledTime(req.Time)
	if err != nil {
		return nil, err
	}

	mentor, err := s.directory.GetUser(ctx, req.MentorID)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return nil, ErrMentorNotFound
		}
		return nil, unavailable("load mentor", err)
	}
	if mentor.Role != identity.RoleMentor {
		return nil, ErrMentorNotFound
	}

	var notes *string
	if req.Notes != nil {
		if trimmed := strings.TrimSpace(*req.Notes); trimmed != "" {
			notes = &trimmed
		}
	}

	now := s.now()
	mentorID := mentor.ID
	appt, err := s.store.Create(ctx, Appointment{
		ID:            uuid.New(),
		StudentID:     caller.ID,
		MentorID:      &mentorID,
		ScheduledDate: date,
		ScheduledTime: clock,
		Kind:          KindRegular,
		Status:        StatusPending,
		StudentNotes:  notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return nil, err
		}
		return nil, unavailable("create appointment", err)
	}

	s.logger.Info("appointment booked",
		zap.Stringer("appointment_id", appt.ID),
		zap.Stringer("student_id", caller.ID),
		zap.Stringer("mentor_id", mentorID),
	)
	s.logEvent(ctx, appt.ID, EventAppointmentCreated, map[string]any{
		"student_id":     caller.ID.String(),
		"mentor_id":      mentorID.String(),
		"scheduled_date": date.Format(time.DateOnly),
		"scheduled_time": clock,
	})

	return appt, nil
}

// validateNew enforces the creation invariants shared by every Store.
func validateNew(a Appointment) error {
	switch {
	case a.ID == uuid.Nil:
		return validationError("id is required")
	case a.StudentID == uuid.Nil:
		return validationError("student id is required")
	case !a.Kind.Valid():
		return validationError("invalid kind %q", a.Kind)
	case a.Status != StatusPending:
		return validationError("new appointments must be %s", StatusPending)
	case a.ScheduledDate.IsZero():
		return validationError("scheduled date is required")
	case a.ScheduledTime == "":
		return validationError("scheduled time is required")
	case a.Kind == KindRegular && a.MentorID == nil:
		return validationError("regular appointments need a mentor")
	case a.Kind == KindEmergency && a.MentorID != nil:
		return validationError("emergency requests start unassigned")
	}
	return nil
}
