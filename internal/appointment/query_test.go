package appointment

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/mentor-appointments/internal/identity"
)

func idsOf(views []AppointmentView) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(views))
	for _, v := range views {
		out = append(out, v.ID)
	}
	return out
}

func TestListForStudentOrdersBySchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	late := f.book(t, f.student, f.mentor, "2025-03-11", "9:00")
	earlyAfternoon := f.book(t, f.student, f.mentor, "2025-03-10", "14:00")
	earlyMorning := f.book(t, f.student, f.mentor2, "2025-03-10", "9:30")
	f.book(t, f.other, f.mentor, "2025-03-09", "9:00")

	views, err := f.svc.ListForStudent(ctx, f.student)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{earlyMorning.ID, earlyAfternoon.ID, late.ID}, idsOf(views))

	require.NotNil(t, views[0].Mentor)
	assert.Equal(t, "Di Mentor", views[0].Mentor.Name)
	require.NotNil(t, views[0].Student)
	assert.Equal(t, "ada@campus.edu", views[0].Student.Email)

	_, err = f.svc.ListForStudent(ctx, f.mentor)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestListMentorRegularExcludesEmergencies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	regular := f.book(t, f.student, f.mentor, "2025-03-10", "10:00")
	f.book(t, f.student, f.mentor2, "2025-03-10", "10:00")
	em := f.emergency(t, f.other)
	_, err := f.svc.AcceptEmergency(ctx, f.mentor, em.ID)
	require.NoError(t, err)

	views, err := f.svc.ListMentorRegular(ctx, f.mentor)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{regular.ID}, idsOf(views))

	mine, err := f.svc.ListMine(ctx, f.mentor)
	require.NoError(t, err)
	assert.Equal(t, idsOf(views), idsOf(mine))

	_, err = f.svc.ListMentorRegular(ctx, f.student)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestListMineForStudentIncludesEmergencies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	regular := f.book(t, f.student, f.mentor, "2025-03-10", "10:00")
	em := f.emergency(t, f.student)

	mine, err := f.svc.ListMine(ctx, f.student)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{regular.ID, em.ID}, idsOf(mine))
}

type failingDirectory struct{ identity.MemoryDirectory }

func (*failingDirectory) UsersByID(context.Context, []uuid.UUID) (map[uuid.UUID]identity.User, error) {
	return nil, errors.New("directory down")
}

func TestListDegradesWhenDirectoryFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.book(t, f.student, f.mentor, "2025-03-10", "10:00")

	svc := NewService(f.store, nil, &failingDirectory{}, nil)
	views, err := svc.ListForStudent(ctx, f.student)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, appt.ID, views[0].ID)
	assert.Nil(t, views[0].Student)
	assert.Nil(t, views[0].Mentor)
}
