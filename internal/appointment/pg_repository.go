package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `id, student_id, mentor_id, scheduled_date, scheduled_time, kind, status,
	student_notes, mentor_note, created_at, updated_at`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var mentorID *uuid.UUID
	var studentNotes, mentorNote *string

	err := row.Scan(
		&a.ID,
		&a.StudentID,
		&mentorID,
		&a.ScheduledDate,
		&a.ScheduledTime,
		&a.Kind,
		&a.Status,
		&studentNotes,
		&mentorNote,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.MentorID = mentorID
	a.StudentNotes = studentNotes
	a.MentorNote = mentorNote
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// isConstraintViolation reports integrity errors caused by the input rather
// than by the database being unreachable.
func isConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "23502", "23503", "23514":
		return true
	}
	return false
}

func nullableString[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

// Interface methods

func (r *PgRepository) Create(ctx context.Context, a Appointment) (*Appointment, error) {
	if err := validateNew(a); err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, student_id, mentor_id, scheduled_date, scheduled_time, kind, status,
			student_notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'Pending', $7, now(), now())
		RETURNING `+appointmentColumns,
		a.ID, a.StudentID, a.MentorID, a.ScheduledDate, a.ScheduledTime, string(a.Kind), a.StudentNotes)

	created, err := scanAppointment(row)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

// ConditionalUpdate is a single UPDATE whose WHERE clause carries the whole
// predicate, so Postgres row locking serialises concurrent attempts and the
// losers see zero rows.
func (r *PgRepository) ConditionalUpdate(ctx context.Context, id uuid.UUID, pred Predicate, mut Mutation) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    mentor_id = COALESCE($3::uuid, mentor_id),
		    mentor_note = COALESCE($4::text, mentor_note),
		    updated_at = now()
		WHERE id = $1
		  AND status = $5
		  AND ($6::text IS NULL OR kind = $6::text)
		  AND ($7::uuid IS NULL OR student_id = $7::uuid)
		  AND ($8::uuid IS NULL OR mentor_id = $8::uuid)
		  AND (NOT $9::boolean OR mentor_id IS NULL)
		RETURNING `+appointmentColumns,
		id,
		string(mut.Status),
		mut.MentorID,
		mut.MentorNote,
		string(pred.Status),
		nullableString(pred.Kind),
		pred.StudentID,
		pred.MentorID,
		pred.Unassigned,
	)

	updated, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrNoMatch
		}
		return nil, fmt.Errorf("conditional update: %w", err)
	}
	return updated, nil
}

func (r *PgRepository) QueryByStudent(ctx context.Context, studentID uuid.UUID) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE student_id = $1
		ORDER BY scheduled_date, scheduled_time, created_at
	`, studentID)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) QueryByMentor(ctx context.Context, mentorID uuid.UUID, kind *Kind) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE mentor_id = $1
		  AND ($2::text IS NULL OR kind = $2::text)
		ORDER BY scheduled_date, scheduled_time, created_at
	`, mentorID, nullableString(kind))
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

// QueryUnassignedPendingEmergencies is served by the partial index
// appointments_pending_emergency_idx.
func (r *PgRepository) QueryUnassignedPendingEmergencies(ctx context.Context) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE kind = 'Emergency'
		  AND status = 'Pending'
		  AND mentor_id IS NULL
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointment_events (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert appointment event: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
