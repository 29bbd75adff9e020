package notification

import (
	"context"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/application/enforcement"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/messaging/kafka"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/monitoring/logging"
	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

// EventSource is stamped on every envelope this service publishes.
const EventSource = "ip-whisperer"

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, msg *kafka.Message) error
}

var _ enforcement.Notifier = (*KafkaNotifier)(nil)

// KafkaNotifier publishes alerts as event envelopes keyed by IP id, so all
// alerts of one asset land on one partition.
type KafkaNotifier struct {
	producer Publisher
	topic    string
}

// NewKafkaNotifier publishes to topic, or kafka.TopicViolationAlerts when empty.
func NewKafkaNotifier(producer Publisher, topic string) *KafkaNotifier {
	if topic == "" {
		topic = kafka.TopicViolationAlerts
	}
	return &KafkaNotifier{producer: producer, topic: topic}
}

func (n *KafkaNotifier) Name() string { return "kafka" }

func (n *KafkaNotifier) Notify(ctx context.Context, alert enforcement.Alert) error {
	env, err := kafka.NewEventEnvelope(kafka.EventEnforcementAlert, EventSource, alert)
	if err != nil {
		return err
	}
	msg, err := env.ToMessage(n.topic, alert.IPID)
	if err != nil {
		return err
	}
	if err := n.producer.Publish(ctx, msg); err != nil {
		return errors.Wrap(err, errors.ErrCodeAlertDeliveryFailed, "failed to publish alert")
	}
	return nil
}

// AlertRelay is a kafka.MessageHandler that forwards consumed alerts to a
// Notifier. Unknown event types are skipped; malformed payloads are dropped
// without retry because retrying cannot fix them.
type AlertRelay struct {
	target enforcement.Notifier
	logger logging.Logger
}

// NewAlertRelay forwards to target.
func NewAlertRelay(target enforcement.Notifier, logger logging.Logger) *AlertRelay {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &AlertRelay{target: target, logger: logger}
}

// Handle satisfies kafka.MessageHandler.
func (r *AlertRelay) Handle(ctx context.Context, msg *kafka.Message) error {
	env, err := kafka.EnvelopeFromMessage(msg)
	if err != nil {
		r.logger.Warn("dropping undecodable alert", logging.Int64("offset", msg.Offset), logging.Err(err))
		return nil
	}
	if env.EventType != kafka.EventEnforcementAlert {
		r.logger.Debug("skipping event", logging.String("event_type", env.EventType))
		return nil
	}
	var alert enforcement.Alert
	if err := env.DecodePayload(&alert); err != nil {
		r.logger.Warn("dropping malformed alert", logging.String("event_id", env.EventID), logging.Err(err))
		return nil
	}
	return r.target.Notify(ctx, alert)
}
