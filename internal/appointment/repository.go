package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/hackgods/mentor-appointments/internal/identity"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	// ErrNoMatch is the outcome of a conditional update whose predicate did not hold.
	ErrNoMatch = errors.New("appointment did not match expected state")
)

// Predicate describes the state a stored appointment must be in for a
// conditional update to apply. Nil fields are not checked.
type Predicate struct {
	Status     Status
	Kind       *Kind
	StudentID  *uuid.UUID
	MentorID   *uuid.UUID
	Unassigned bool
}

// Matches evaluates the predicate against an in-memory copy.
func (p Predicate) Matches(a Appointment) bool {
	if a.Status != p.Status {
		return false
	}
	if p.Kind != nil && a.Kind != *p.Kind {
		return false
	}
	if p.StudentID != nil && a.StudentID != *p.StudentID {
		return false
	}
	if p.MentorID != nil && !a.AssignedTo(*p.MentorID) {
		return false
	}
	if p.Unassigned && !a.Unassigned() {
		return false
	}
	return true
}

// Mutation is applied only when the predicate holds. Nil fields are left unchanged.
type Mutation struct {
	Status     Status
	MentorID   *uuid.UUID
	MentorNote *string
}

func (m Mutation) apply(a *Appointment) {
	a.Status = m.Status
	if m.MentorID != nil {
		id := *m.MentorID
		a.MentorID = &id
	}
	if m.MentorNote != nil {
		note := *m.MentorNote
		a.MentorNote = &note
	}
}

// Store is the only path to appointment state. Implementations must apply
// ConditionalUpdate as a single atomic operation, never as a read followed by a write.
type Store interface {
	Create(ctx context.Context, a Appointment) (*Appointment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ConditionalUpdate(ctx context.Context, id uuid.UUID, pred Predicate, mut Mutation) (*Appointment, error)

	QueryByStudent(ctx context.Context, studentID uuid.UUID) ([]Appointment, error)
	QueryByMentor(ctx context.Context, mentorID uuid.UUID, kind *Kind) ([]Appointment, error)
	QueryUnassignedPendingEmergencies(ctx context.Context) ([]Appointment, error)
}

// EventLog receives lifecycle events for the outbox.
type EventLog interface {
	InsertEvent(ctx context.Context, ev EventRecord) error
}

// Directory resolves users referenced by appointments.
type Directory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*identity.User, error)
	UsersByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]identity.User, error)
}
