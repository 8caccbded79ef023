package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/mentor-appointments/internal/identity"
)

type fixture struct {
	svc     *Service
	store   *MemoryStore
	dir     *identity.MemoryDirectory
	student identity.Caller
	other   identity.Caller
	mentor  identity.Caller
	mentor2 identity.Caller
}

// steppingClock hands out strictly increasing instants so creation order is
// deterministic.
type steppingClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:   NewMemoryStore(),
		student: identity.Caller{ID: uuid.New(), Role: identity.RoleStudent},
		other:   identity.Caller{ID: uuid.New(), Role: identity.RoleStudent},
		mentor:  identity.Caller{ID: uuid.New(), Role: identity.RoleMentor},
		mentor2: identity.Caller{ID: uuid.New(), Role: identity.RoleMentor},
	}
	f.dir = identity.NewMemoryDirectory(
		identity.User{ID: f.student.ID, Name: "Ada Student", Email: "ada@campus.edu", Role: identity.RoleStudent},
		identity.User{ID: f.other.ID, Name: "Bo Student", Email: "bo@campus.edu", Role: identity.RoleStudent},
		identity.User{ID: f.mentor.ID, Name: "Cy Mentor", Email: "cy@campus.edu", Role: identity.RoleMentor},
		identity.User{ID: f.mentor2.ID, Name: "Di Mentor", Email: "di@campus.edu", Role: identity.RoleMentor},
	)

	clock := &steppingClock{t: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
	f.store.now = clock.Now
	f.svc = NewService(f.store, f.store, f.dir, nil)
	f.svc.now = clock.Now
	return f
}

func (f *fixture) book(t *testing.T, student, mentor identity.Caller, date, clock string) *Appointment {
	t.Helper()
	appt, err := f.svc.BookRegular(context.Background(), student, BookingRequest{
		MentorID: mentor.ID,
		Date:     date,
		Time:     clock,
	})
	require.NoError(t, err)
	return appt
}

func (f *fixture) emergency(t *testing.T, student identity.Caller) *Appointment {
	t.Helper()
	appt, err := f.svc.CreateEmergency(context.Background(), student, nil)
	require.NoError(t, err)
	return appt
}

func eventTypesOf(events []EventRecord) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.EventType)
	}
	return out
}
