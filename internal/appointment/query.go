package appointment

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/mentor-appointments/internal/identity"
)

// ListForStudent returns every appointment the calling student owns, ordered
// by scheduled date and time.
func (s *Service) ListForStudent(ctx context.Context, caller identity.Caller) ([]AppointmentView, error) {
	if !caller.IsStudent() {
		return nil, forbidden("only students can view their appointments")
	}

	appts, err := s.store.QueryByStudent(ctx, caller.ID)
	if err != nil {
		return nil, unavailable("list appointments by student", err)
	}
	return s.withParticipants(ctx, appts), nil
}

// ListMentorRegular returns the calling mentor's regular appointments.
func (s *Service) ListMentorRegular(ctx context.Context, caller identity.Caller) ([]AppointmentView, error) {
	if !caller.IsMentor() {
		return nil, forbidden("only mentors can view their appointments")
	}

	kind := KindRegular
	appts, err := s.store.QueryByMentor(ctx, caller.ID, &kind)
	if err != nil {
		return nil, unavailable("list appointments by mentor", err)
	}
	return s.withParticipants(ctx, appts), nil
}

// ListPendingEmergencies returns unclaimed emergency requests, oldest first.
// The order is for display only and does not decide who wins a claim.
func (s *Service) ListPendingEmergencies(ctx context.Context, caller identity.Caller) ([]AppointmentView, error) {
	if !caller.IsMentor() {
		return nil, forbidden("only mentors can view pending emergency requests")
	}

	appts, err := s.store.QueryUnassignedPendingEmergencies(ctx)
	if err != nil {
		return nil, unavailable("list pending emergencies", err)
	}
	return s.withParticipants(ctx, appts), nil
}

// ListMine picks the view that matches the caller's role.
func (s *Service) ListMine(ctx context.Context, caller identity.Caller) ([]AppointmentView, error) {
	if caller.IsMentor() {
		return s.ListMentorRegular(ctx, caller)
	}
	return s.ListForStudent(ctx, caller)
}

// withParticipants attaches student and mentor summaries. A directory outage
// degrades the view instead of failing it.
func (s *Service) withParticipants(ctx context.Context, appts []Appointment) []AppointmentView {
	views := make([]AppointmentView, 0, len(appts))
	if len(appts) == 0 {
		return views
	}

	seen := make(map[uuid.UUID]struct{}, len(appts)*2)
	var ids []uuid.UUID
	add := func(id uuid.UUID) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for _, a := range appts {
		add(a.StudentID)
		if a.MentorID != nil {
			add(*a.MentorID)
		}
	}

	var users map[uuid.UUID]identity.User
	if s.directory != nil {
		var err error
		users, err = s.directory.UsersByID(ctx, ids)
		if err != nil {
			s.logger.Warn("failed to resolve appointment participants", zap.Error(err))
		}
	}

	for _, a := range appts {
		v := AppointmentView{Appointment: a}
		if u, ok := users[a.StudentID]; ok {
			v.Student = &u
		}
		if a.MentorID != nil {
			if u, ok := users[*a.MentorID]; ok {
				v.Mentor = &u
			}
		}
		views = append(views, v)
	}
	return views
}
