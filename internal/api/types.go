package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/mentor-appointments/internal/appointment"
	"github.com/hackgods/mentor-appointments/internal/identity"
)

type CreateAppointmentRequest struct {
	MentorID string  `json:"mentorId" validate:"required,uuid"`
	Date     string  `json:"date" validate:"required"`
	Time     string  `json:"time" validate:"required"`
	Notes    *string `json:"notes" validate:"omitempty,max=2000"`
}

type UpdateStatusRequest struct {
	Status     string  `json:"status" validate:"required"`
	MentorNote *string `json:"mentorNote" validate:"omitempty,max=4000"`
}

type CreateEmergencyRequest struct {
	Notes *string `json:"notes" validate:"omitempty,max=2000"`
}

type UserSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

type AppointmentResponse struct {
	ID         uuid.UUID    `json:"id"`
	StudentID  uuid.UUID    `json:"studentId"`
	MentorID   *uuid.UUID   `json:"mentorId"`
	Date       time.Time    `json:"date"`
	Time       string       `json:"time"`
	Type       string       `json:"type"`
	Status     string       `json:"status"`
	Notes      *string      `json:"notes,omitempty"`
	MentorNote *string      `json:"mentorNote,omitempty"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
	Student    *UserSummary `json:"student,omitempty"`
	Mentor     *UserSummary `json:"mentor,omitempty"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func toAppointmentResponse(a appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:         a.ID,
		StudentID:  a.StudentID,
		MentorID:   a.MentorID,
		Date:       a.ScheduledDate,
		Time:       a.ScheduledTime,
		Type:       string(a.Kind),
		Status:     string(a.Status),
		Notes:      a.StudentNotes,
		MentorNote: a.MentorNote,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

func toUserSummary(u *identity.User) *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

func toViewResponses(views []appointment.AppointmentView) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(views))
	for _, v := range views {
		resp := toAppointmentResponse(v.Appointment)
		resp.Student = toUserSummary(v.Student)
		resp.Mentor = toUserSummary(v.Mentor)
		out = append(out, resp)
	}
	return out
}
