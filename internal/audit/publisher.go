package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/event-booking/internal/logging"
	"github.com/Shivanand-hulikatti/event-booking/internal/metrics"
)

// Publisher is the Sink used in production. Record only enqueues; Run drains
// the queue and publishes each entry. A full queue drops the entry.
type Publisher struct {
	pub     message.Publisher
	topic   string
	entries chan Entry
	logger  *logrus.Entry
}

// NewPublisher builds a Publisher buffering up to bufferSize entries.
func NewPublisher(pub message.Publisher, topic string, bufferSize int) *Publisher {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Publisher{
		pub:     pub,
		topic:   topic,
		entries: make(chan Entry, bufferSize),
		logger:  logrus.WithField("component", "audit-publisher"),
	}
}

// Record implements Sink.
func (p *Publisher) Record(ctx context.Context, e Entry) {
	e = e.withDefaults()
	select {
	case p.entries <- e:
	default:
		metrics.AuditDropped.Inc()
		logging.FromContext(ctx).
			WithField("audit_id", e.ID).
			WithField("action", e.Action).
			Warn("audit buffer full, entry dropped")
	}
}

// Run publishes queued entries until ctx is cancelled, then flushes what is
// already buffered.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.flush()
			return nil
		case e := <-p.entries:
			p.publish(e)
		}
	}
}

func (p *Publisher) flush() {
	for {
		select {
		case e := <-p.entries:
			p.publish(e)
		default:
			return
		}
	}
}

func (p *Publisher) publish(e Entry) {
	msg, err := newMessage(e)
	if err != nil {
		metrics.AuditDropped.Inc()
		p.logger.WithError(err).WithField("audit_id", e.ID).Error("marshal audit entry")
		return
	}
	if err := p.pub.Publish(p.topic, msg); err != nil {
		metrics.AuditDropped.Inc()
		p.logger.WithError(err).WithField("audit_id", e.ID).Error("publish audit entry")
	}
}

func newMessage(e Entry) (*message.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	msg := message.NewMessage(e.ID, payload)
	msg.Metadata.Set("action", e.Action)
	msg.Metadata.Set("resource_type", e.ResourceType)
	return msg, nil
}
