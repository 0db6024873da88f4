package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"

	"github.com/Shivanand-hulikatti/event-booking/internal/config"
	"github.com/Shivanand-hulikatti/event-booking/internal/logging"
	"github.com/Shivanand-hulikatti/event-booking/internal/metrics"
)

const consumerGroup = "svc-event-booking.audit"

// Transport bundles the pub/sub pair the audit pipeline runs on.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	closers    []func() error
}

// Close releases the transport's resources in reverse order of creation.
func (t *Transport) Close() error {
	var first error
	for i := len(t.closers) - 1; i >= 0; i-- {
		if err := t.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NewTransport builds the pub/sub selected by cfg.Transport.
func NewTransport(cfg config.AuditConfig, logger watermill.LoggerAdapter) (*Transport, error) {
	switch cfg.Transport {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

		pub, err := redisstream.NewPublisher(redisstream.PublisherConfig{
			Client: rdb,
		}, logger)
		if err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("creating redis publisher: %w", err)
		}
		sub, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
			Client:        rdb,
			ConsumerGroup: consumerGroup,
		}, logger)
		if err != nil {
			_ = pub.Close()
			_ = rdb.Close()
			return nil, fmt.Errorf("creating redis subscriber: %w", err)
		}
		return &Transport{
			Publisher:  pub,
			Subscriber: sub,
			closers:    []func() error{rdb.Close, pub.Close, sub.Close},
		}, nil

	case "gochannel", "":
		pubSub := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: int64(cfg.BufferSize),
		}, logger)
		return &Transport{
			Publisher:  pubSub,
			Subscriber: pubSub,
			closers:    []func() error{pubSub.Close},
		}, nil

	default:
		return nil, fmt.Errorf("unknown audit transport %q", cfg.Transport)
	}
}

// NewRouter wires the consumer that persists entries published on topic.
func NewRouter(
	sub message.Subscriber,
	topic string,
	store *Store,
	logger watermill.LoggerAdapter,
) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating router: %w", err)
	}

	router.AddMiddleware(middleware.Recoverer)
	router.AddMiddleware(middleware.Retry{
		MaxRetries:      5,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2,
		Logger:          logger,
	}.Middleware)

	router.AddNoPublisherHandler(
		"store-audit-entries",
		topic,
		sub,
		StoreHandler(store),
	)
	return router, nil
}

type entryInserter interface {
	Insert(ctx context.Context, e Entry) error
}

// StoreHandler persists each message. Malformed payloads are acknowledged and
// logged so they cannot block the stream.
func StoreHandler(store entryInserter) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		var e Entry
		if err := json.Unmarshal(msg.Payload, &e); err != nil {
			logging.FromContext(msg.Context()).
				WithError(err).
				WithField("message_uuid", msg.UUID).
				Warn("skipping malformed audit message")
			return nil
		}
		if err := store.Insert(msg.Context(), e.withDefaults()); err != nil {
			return err
		}
		metrics.AuditStored.Inc()
		return nil
	}
}
