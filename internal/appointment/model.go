package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/mentor-appointments/internal/identity"
)

type Kind string

const (
	KindRegular   Kind = "Regular"
	KindEmergency Kind = "Emergency"
)

func (k Kind) Valid() bool {
	switch k {
	case KindRegular, KindEmergency:
		return true
	}
	return false
}

type Status string

const (
	StatusPending   Status = "Pending"
	StatusAccepted  Status = "Accepted"
	StatusRejected  Status = "Rejected"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ParseStatus accepts the exact names used on the wire.
func ParseStatus(raw string) (Status, bool) {
	s := Status(raw)
	return s, s.Valid()
}

// ScheduledTimeASAP marks an emergency request that has no booked slot.
const ScheduledTimeASAP = "ASAP"

// DefaultEmergencyNote is stored when a student sends an emergency request without notes.
const DefaultEmergencyNote = "Emergency support requested."

type Appointment struct {
	ID            uuid.UUID
	StudentID     uuid.UUID
	MentorID      *uuid.UUID
	ScheduledDate time.Time
	ScheduledTime string
	Kind          Kind
	Status        Status
	StudentNotes  *string
	MentorNote    *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Unassigned is true for an emergency request no mentor has claimed yet.
func (a Appointment) Unassigned() bool {
	return a.MentorID == nil
}

// AssignedTo reports whether mentorID is the mentor on record.
func (a Appointment) AssignedTo(mentorID uuid.UUID) bool {
	return a.MentorID != nil && *a.MentorID == mentorID
}

// AppointmentView is an appointment with its participants resolved from the directory.
type AppointmentView struct {
	Appointment
	Student *identity.User
	Mentor  *identity.User
}

// lessBySchedule orders by (ScheduledDate, ScheduledTime) with CreatedAt as tie breaker.
func lessBySchedule(a, b Appointment) bool {
	if !a.ScheduledDate.Equal(b.ScheduledDate) {
		return a.ScheduledDate.Before(b.ScheduledDate)
	}
	if a.ScheduledTime != b.ScheduledTime {
		return a.ScheduledTime < b.ScheduledTime
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func lessByCreated(a, b Appointment) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}

type EventRecord struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
	PublishedAt   *time.Time
}
