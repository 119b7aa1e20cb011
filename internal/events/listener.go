// Package events subscribes to configuration change channels and
// applies them to the route registry and caches.
package events

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/your-org/edge-gateway/internal/config"
	"github.com/your-org/edge-gateway/pkg/logger"
)

// Listener consumes configuration events over Redis pub/sub.
// Malformed messages are logged and absorbed; the subscription loop
// never stops on a bad payload.
type Listener struct {
	client  redis.UniversalClient
	cfg     config.EventsConfig
	handler *Handler
}

// NewListener creates the event listener.
func NewListener(client redis.UniversalClient, cfg config.EventsConfig, handler *Handler) *Listener {
	return &Listener{
		client:  client,
		cfg:     cfg,
		handler: handler,
	}
}

// Start subscribes to the configured channels and processes messages
// until the context is canceled. A broken subscription reconnects
// after the configured backoff.
func (l *Listener) Start(ctx context.Context) {
	if !l.cfg.Enabled {
		logger.Info("event listener disabled")
		return
	}

	go l.run(ctx)
}

func (l *Listener) run(ctx context.Context) {
	channels := []string{
		l.cfg.CollectionChannel,
		l.cfg.WorkerChannel,
		l.cfg.RecordChannel,
	}

	for {
		if ctx.Err() != nil {
			return
		}

		pubsub := l.client.Subscribe(ctx, channels...)

		logger.Info("subscribed to config event channels",
			logger.Strings("channels", channels),
		)

		l.consume(ctx, pubsub)

		pubsub.Close()

		select {
		case <-ctx.Done():
			return
		case <-time.After(l.cfg.ReconnectBackoff):
			logger.Warn("event subscription lost, resubscribing")
		}
	}
}

func (l *Listener) consume(ctx context.Context, pubsub *redis.PubSub) {
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			l.dispatch(ctx, msg)
		}
	}
}

func (l *Listener) dispatch(ctx context.Context, msg *redis.Message) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event handler panicked",
				logger.String("channel", msg.Channel),
				logger.Any("panic", r),
			)
		}
	}()

	payload := []byte(msg.Payload)

	switch msg.Channel {
	case l.cfg.CollectionChannel:
		l.handler.HandleCollectionChanged(ctx, payload)
	case l.cfg.WorkerChannel:
		l.handler.HandleWorkerAssignmentChanged(ctx, payload)
	case l.cfg.RecordChannel:
		l.handler.HandleRecordChanged(ctx, payload)
	default:
		logger.Debug("message on unexpected channel", logger.String("channel", msg.Channel))
	}
}
