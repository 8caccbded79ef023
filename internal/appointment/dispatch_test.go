package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/mentor-appointments/internal/identity"
)

func errorsIsAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func TestCreateEmergencyDefaults(t *testing.T) {
	f := newFixture(t)

	em := f.emergency(t, f.student)
	assert.Equal(t, KindEmergency, em.Kind)
	assert.Equal(t, StatusPending, em.Status)
	assert.Equal(t, ScheduledTimeASAP, em.ScheduledTime)
	assert.Nil(t, em.MentorID)
	require.NotNil(t, em.StudentNotes)
	assert.Equal(t, DefaultEmergencyNote, *em.StudentNotes)

	custom, err := f.svc.CreateEmergency(context.Background(), f.student, strPtr("  panic attack  "))
	require.NoError(t, err)
	assert.Equal(t, "panic attack", *custom.StudentNotes)
}

func TestCreateEmergencyRequiresStudent(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateEmergency(context.Background(), f.mentor, nil)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAcceptEmergencySingleWinner(t *testing.T) {
	const contenders = 16

	f := newFixture(t)
	ctx := context.Background()
	em := f.emergency(t, f.student)

	mentors := make([]identity.Caller, contenders)
	for i := range mentors {
		mentors[i] = identity.Caller{ID: uuid.New(), Role: identity.RoleMentor}
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  []uuid.UUID
		start    = make(chan struct{})
		failures = make([]error, 0, contenders)
	)
	for _, m := range mentors {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			appt, err := f.svc.AcceptEmergency(ctx, m, em.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				return
			}
			winners = append(winners, *appt.MentorID)
		}()
	}
	close(start)
	wg.Wait()

	require.Len(t, winners, 1)
	require.Len(t, failures, contenders-1)
	for _, err := range failures {
		assert.ErrorIs(t, err, ErrAlreadyAccepted)
		assert.ErrorIs(t, err, ErrConflict)
	}

	stored, err := f.store.GetByID(ctx, em.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, stored.Status)
	require.NotNil(t, stored.MentorID)
	assert.Equal(t, winners[0], *stored.MentorID)

	var accepted int
	for _, ev := range f.store.Events() {
		if ev.EventType == EventEmergencyAccepted {
			accepted++
		}
	}
	assert.Equal(t, 1, accepted)
}

func TestAcceptEmergencyLoserDoesNotOverwrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	em := f.emergency(t, f.student)

	_, err := f.svc.AcceptEmergency(ctx, f.mentor, em.ID)
	require.NoError(t, err)

	_, err = f.svc.AcceptEmergency(ctx, f.mentor2, em.ID)
	assert.ErrorIs(t, err, ErrAlreadyAccepted)

	stored, err := f.store.GetByID(ctx, em.ID)
	require.NoError(t, err)
	assert.True(t, stored.AssignedTo(f.mentor.ID))
}

func TestAcceptEmergencyAfterCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	em := f.emergency(t, f.student)

	_, err := f.svc.Cancel(ctx, f.student, em.ID)
	require.NoError(t, err)

	_, err = f.svc.AcceptEmergency(ctx, f.mentor, em.ID)
	assert.ErrorIs(t, err, ErrConflict)

	stored, err := f.store.GetByID(ctx, em.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, stored.Status)
	assert.Nil(t, stored.MentorID, "a cancelled request must never gain a mentor")
}

func TestAcceptEmergencyNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AcceptEmergency(ctx, f.mentor, uuid.New())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	regular := f.book(t, f.student, f.mentor, "2025-03-10", "11:00")
	_, err = f.svc.AcceptEmergency(ctx, f.mentor, regular.ID)
	assert.ErrorIs(t, err, ErrAppointmentNotFound, "regular appointments are not emergencies")
}

func TestAcceptEmergencyRequiresMentor(t *testing.T) {
	f := newFixture(t)
	em := f.emergency(t, f.student)

	_, err := f.svc.AcceptEmergency(context.Background(), f.other, em.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestPendingEmergencyQueue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.emergency(t, f.student)
	second := f.emergency(t, f.other)
	third := f.emergency(t, f.student)

	_, err := f.svc.AcceptEmergency(ctx, f.mentor, second.ID)
	require.NoError(t, err)

	queue, err := f.svc.ListPendingEmergencies(ctx, f.mentor2)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, first.ID, queue[0].ID)
	assert.Equal(t, third.ID, queue[1].ID)
	require.NotNil(t, queue[0].Student)
	assert.Equal(t, "Ada Student", queue[0].Student.Name)

	_, err = f.svc.ListPendingEmergencies(ctx, f.student)
	assert.ErrorIs(t, err, ErrForbidden)
}
