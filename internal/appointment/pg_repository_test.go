package appointment

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/mentor-appointments/internal/db"
	"github.com/hackgods/mentor-appointments/internal/identity"
)

// These tests run against a real database and are skipped unless
// TEST_POSTGRES_DSN points at one. Every row they write uses fresh ids.
func newPgRepository(t *testing.T) (*PgRepository, *pgxpool.Pool) {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = db.Migrate(ctx, pool)
	require.NoError(t, err)

	return NewPgRepository(pool), pool
}

func insertUser(t *testing.T, pool *pgxpool.Pool, role identity.Role) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO users (id, name, email, role)
		VALUES ($1, $2, $3, $4)
	`, id, "user "+id.String()[:8], id.String()+"@campus.test", string(role))
	require.NoError(t, err)
	return id
}

func pgEmergency(t *testing.T, repo *PgRepository, student uuid.UUID) *Appointment {
	t.Helper()
	note := DefaultEmergencyNote
	appt, err := repo.Create(context.Background(), Appointment{
		ID:            uuid.New(),
		StudentID:     student,
		ScheduledDate: time.Now().UTC(),
		ScheduledTime: ScheduledTimeASAP,
		Kind:          KindEmergency,
		Status:        StatusPending,
		StudentNotes:  &note,
	})
	require.NoError(t, err)
	return appt
}

func pgRegular(t *testing.T, repo *PgRepository, student, mentor uuid.UUID, date time.Time, clock string) *Appointment {
	t.Helper()
	appt, err := repo.Create(context.Background(), Appointment{
		ID:            uuid.New(),
		StudentID:     student,
		MentorID:      &mentor,
		ScheduledDate: date,
		ScheduledTime: clock,
		Kind:          KindRegular,
		Status:        StatusPending,
	})
	require.NoError(t, err)
	return appt
}

func TestPgEmergencyClaimSingleWinner(t *testing.T) {
	const contenders = 12

	repo, pool := newPgRepository(t)
	ctx := context.Background()

	student := insertUser(t, pool, identity.RoleStudent)
	mentors := make([]uuid.UUID, contenders)
	for i := range mentors {
		mentors[i] = insertUser(t, pool, identity.RoleMentor)
	}
	em := pgEmergency(t, repo, student)

	kind := KindEmergency
	pred := Predicate{Status: StatusPending, Kind: &kind, Unassigned: true}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []uuid.UUID
		noMatch int
		start   = make(chan struct{})
	)
	for _, mentor := range mentors {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			updated, err := repo.ConditionalUpdate(ctx, em.ID, pred, Mutation{Status: StatusAccepted, MentorID: &mentor})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, *updated.MentorID)
			case assert.ErrorIs(t, err, ErrNoMatch):
				noMatch++
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, contenders-1, noMatch)

	stored, err := repo.GetByID(ctx, em.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, stored.Status)
	require.NotNil(t, stored.MentorID)
	assert.Equal(t, winners[0], *stored.MentorID)
}

func TestPgConditionalUpdatePredicates(t *testing.T) {
	repo, pool := newPgRepository(t)
	ctx := context.Background()

	student := insertUser(t, pool, identity.RoleStudent)
	stranger := insertUser(t, pool, identity.RoleStudent)
	mentor := insertUser(t, pool, identity.RoleMentor)
	otherMentor := insertUser(t, pool, identity.RoleMentor)
	regularKind, emergencyKind := KindRegular, KindEmergency

	regular := pgRegular(t, repo, student, mentor, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), "10:00")

	tests := []struct {
		name string
		pred Predicate
	}{
		{name: "wrong status", pred: Predicate{Status: StatusAccepted}},
		{name: "wrong kind", pred: Predicate{Status: StatusPending, Kind: &emergencyKind}},
		{name: "wrong student", pred: Predicate{Status: StatusPending, StudentID: &stranger}},
		{name: "other mentor", pred: Predicate{Status: StatusPending, Kind: &regularKind, MentorID: &otherMentor}},
		{name: "not unassigned", pred: Predicate{Status: StatusPending, Unassigned: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.ConditionalUpdate(ctx, regular.ID, tt.pred, Mutation{Status: StatusAccepted})
			assert.ErrorIs(t, err, ErrNoMatch)
		})
	}

	_, err := repo.ConditionalUpdate(ctx, uuid.New(), Predicate{Status: StatusPending}, Mutation{Status: StatusAccepted})
	assert.ErrorIs(t, err, ErrNoMatch, "unknown id")

	stored, err := repo.GetByID(ctx, regular.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status, "failed predicates must not write")

	accepted, err := repo.ConditionalUpdate(ctx, regular.ID,
		Predicate{Status: StatusPending, Kind: &regularKind, MentorID: &mentor},
		Mutation{Status: StatusAccepted})
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, accepted.Status)
	require.NotNil(t, accepted.MentorID)
	assert.Equal(t, mentor, *accepted.MentorID, "nil MentorID mutation keeps the assignee")
	assert.Nil(t, accepted.MentorNote)

	note := "  Discussed stress management\n"
	completed, err := repo.ConditionalUpdate(ctx, regular.ID,
		Predicate{Status: StatusAccepted, Kind: &regularKind, MentorID: &mentor},
		Mutation{Status: StatusCompleted, MentorNote: &note})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, completed.Status)
	require.NotNil(t, completed.MentorNote)
	assert.Equal(t, note, *completed.MentorNote)

	cancelled, err := repo.ConditionalUpdate(ctx, pgEmergency(t, repo, student).ID,
		Predicate{Status: StatusPending, StudentID: &student},
		Mutation{Status: StatusCancelled})
	require.NoError(t, err)
	assert.Nil(t, cancelled.MentorID)
}

func TestPgQueriesOrdering(t *testing.T) {
	repo, pool := newPgRepository(t)
	ctx := context.Background()

	student := insertUser(t, pool, identity.RoleStudent)
	mentor := insertUser(t, pool, identity.RoleMentor)
	day1 := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	late := pgRegular(t, repo, student, mentor, day2, "09:00")
	afternoon := pgRegular(t, repo, student, mentor, day1, "14:00")
	morning := pgRegular(t, repo, student, mentor, day1, "09:30")
	em := pgEmergency(t, repo, student)

	byStudent, err := repo.QueryByStudent(ctx, student)
	require.NoError(t, err)
	var regularIDs []uuid.UUID
	for _, a := range byStudent {
		if a.Kind == KindRegular {
			regularIDs = append(regularIDs, a.ID)
		}
	}
	assert.Equal(t, []uuid.UUID{morning.ID, afternoon.ID, late.ID}, regularIDs)
	assert.Len(t, byStudent, 4)

	kind := KindRegular
	byMentor, err := repo.QueryByMentor(ctx, mentor, &kind)
	require.NoError(t, err)
	require.Len(t, byMentor, 3)
	assert.Equal(t, morning.ID, byMentor[0].ID)

	pending, err := repo.QueryUnassignedPendingEmergencies(ctx)
	require.NoError(t, err)
	var found bool
	for i, a := range pending {
		assert.Equal(t, KindEmergency, a.Kind)
		assert.Nil(t, a.MentorID)
		if i > 0 {
			assert.False(t, a.CreatedAt.Before(pending[i-1].CreatedAt), "queue must be oldest first")
		}
		found = found || a.ID == em.ID
	}
	assert.True(t, found)
}

func TestPgCreateRejectsUnknownStudent(t *testing.T) {
	repo, _ := newPgRepository(t)

	note := DefaultEmergencyNote
	_, err := repo.Create(context.Background(), Appointment{
		ID:            uuid.New(),
		StudentID:     uuid.New(),
		ScheduledDate: time.Now().UTC(),
		ScheduledTime: ScheduledTimeASAP,
		Kind:          KindEmergency,
		Status:        StatusPending,
		StudentNotes:  &note,
	})
	assert.ErrorIs(t, err, ErrValidation)
}
