package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps appointments in process. It is the single-process
// fallback: one mutex makes each ConditionalUpdate atomic. It is used by
// tests and must not back more than one server instance.
type MemoryStore struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]*Appointment
	events []EventRecord
	nextEv int64
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID: make(map[uuid.UUID]*Appointment),
		now:  time.Now,
	}
}

func clone(a *Appointment) *Appointment {
	c := *a
	if a.MentorID != nil {
		id := *a.MentorID
		c.MentorID = &id
	}
	if a.StudentNotes != nil {
		n := *a.StudentNotes
		c.StudentNotes = &n
	}
	if a.MentorNote != nil {
		n := *a.MentorNote
		c.MentorNote = &n
	}
	return &c
}

func (m *MemoryStore) Create(_ context.Context, a Appointment) (*Appointment, error) {
	if err := validateNew(a); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byID[a.ID]; exists {
		return nil, validationError("appointment %s already exists", a.ID)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = m.now()
	}
	a.UpdatedAt = a.CreatedAt
	m.byID[a.ID] = clone(&a)
	return clone(&a), nil
}

func (m *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.byID[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return clone(a), nil
}

func (m *MemoryStore) ConditionalUpdate(_ context.Context, id uuid.UUID, pred Predicate, mut Mutation) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.byID[id]
	if !ok || !pred.Matches(*a) {
		return nil, ErrNoMatch
	}

	mut.apply(a)
	a.UpdatedAt = m.now()
	return clone(a), nil
}

func (m *MemoryStore) filter(keep func(a *Appointment) bool, less func(a, b Appointment) bool) []Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Appointment
	for _, a := range m.byID {
		if keep(a) {
			out = append(out, *clone(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (m *MemoryStore) QueryByStudent(_ context.Context, studentID uuid.UUID) ([]Appointment, error) {
	return m.filter(func(a *Appointment) bool {
		return a.StudentID == studentID
	}, lessBySchedule), nil
}

func (m *MemoryStore) QueryByMentor(_ context.Context, mentorID uuid.UUID, kind *Kind) ([]Appointment, error) {
	return m.filter(func(a *Appointment) bool {
		return a.AssignedTo(mentorID) && (kind == nil || a.Kind == *kind)
	}, lessBySchedule), nil
}

func (m *MemoryStore) QueryUnassignedPendingEmergencies(_ context.Context) ([]Appointment, error) {
	return m.filter(func(a *Appointment) bool {
		return a.Kind == KindEmergency && a.Status == StatusPending && a.Unassigned()
	}, lessByCreated), nil
}

func (m *MemoryStore) InsertEvent(_ context.Context, ev EventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextEv++
	ev.ID = m.nextEv
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = m.now()
	}
	m.events = append(m.events, ev)
	return nil
}

// Events returns a copy of the recorded outbox rows.
func (m *MemoryStore) Events() []EventRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]EventRecord, len(m.events))
	copy(out, m.events)
	return out
}
