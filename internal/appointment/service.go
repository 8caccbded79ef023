package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventEmergencyRequested   = "EMERGENCY_REQUESTED"
	EventAppointmentAccepted  = "APPOINTMENT_ACCEPTED"
	EventAppointmentRejected  = "APPOINTMENT_REJECTED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventEmergencyAccepted    = "EMERGENCY_ACCEPTED"
)

var tracer = otel.Tracer("github.com/hackgods/mentor-appointments/internal/appointment")

// Service hosts the lifecycle engine, the emergency dispatch engine and the
// role-scoped queries. It holds no appointment state of its own: every
// concurrent decision is delegated to Store.ConditionalUpdate.
type Service struct {
	store     Store
	events    EventLog
	directory Directory
	logger    *zap.Logger
	now       func() time.Time
}

// NewService wires the engine. events may be nil when no outbox is configured.
func NewService(store Store, events EventLog, directory Directory, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		events:    events,
		directory: directory,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, unavailable("load appointment", err)
	}
	return appt, nil
}

// logEvent records an outbox row. Failures never change the outcome of the
// operation that produced the event.
func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	if s.events == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to marshal event payload", zap.String("event_type", eventType), zap.Error(err))
		data = nil
	}

	apptID := appointmentID
	ev := EventRecord{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.events.InsertEvent(ctx, ev); err != nil {
		s.logger.Warn("failed to insert appointment event",
			zap.String("event_type", eventType),
			zap.Stringer("appointment_id", appointmentID),
			zap.Error(err),
		)
	}
}
