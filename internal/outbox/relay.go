package outbox

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/hackgods/mentor-appointments/internal/appointment"
	redisclient "github.com/hackgods/mentor-appointments/internal/redis"
)

const relayLockName = "outbox-relay"

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Relay struct {
	source    Source
	writer    MessageWriter
	locker    redisclient.Locker
	logger    *zap.Logger
	topic     string
	batchSize int
}

type RelayConfig struct {
	Topic     string
	BatchSize int
}

func NewRelay(source Source, writer MessageWriter, locker redisclient.Locker, logger *zap.Logger, cfg RelayConfig) *Relay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Relay{
		source:    source,
		writer:    writer,
		locker:    locker,
		logger:    logger,
		topic:     cfg.Topic,
		batchSize: cfg.BatchSize,
	}
}

// NewKafkaWriter keys messages by appointment id so one appointment's events
// stay ordered within a partition.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
}

// RunOnce publishes batches until the outbox is drained. Another instance
// holding the relay lock is not an error.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	total := 0
	err := r.locker.WithLock(ctx, relayLockName, func(lockCtx context.Context) error {
		for {
			n, err := r.source.Claim(lockCtx, r.batchSize, r.publish)
			if err != nil {
				return err
			}
			total += n
			if n < r.batchSize {
				return nil
			}
		}
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		r.logger.Debug("outbox relay lock held elsewhere, skipping run")
		return 0, nil
	}
	return total, err
}

func (r *Relay) publish(ctx context.Context, events []appointment.EventRecord) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		var key []byte
		if ev.AppointmentID != nil {
			key = []byte(ev.AppointmentID.String())
		}
		msgs = append(msgs, kafka.Message{
			Key:   key,
			Value: ev.Payload,
			Time:  ev.CreatedAt,
			Headers: []kafka.Header{
				{Key: "event_id", Value: []byte(strconv.FormatInt(ev.ID, 10))},
				{Key: "event_type", Value: []byte(ev.EventType)},
			},
		})
	}

	if err := r.writer.WriteMessages(ctx, msgs...); err != nil {
		return err
	}

	r.logger.Info("outbox batch published", zap.Int("count", len(msgs)), zap.String("topic", r.topic))
	return nil
}
