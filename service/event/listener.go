package event

import (
	"context"
	"errors"
	"sync"

	"github.com/viant/deepresearch/internal/logging"
	"github.com/viant/deepresearch/service/messaging"
	"go.uber.org/zap"
)

// Handler processes one event; an error nacks the message for redelivery.
type Handler[T any] func(ctx context.Context, event *Event[T]) error

// Listener drains a queue into a handler on its own goroutine.
type Listener[T any] struct {
	queue   messaging.Queue[Event[T]]
	handler Handler[T]
	logger  *zap.Logger
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

func NewListener[T any](queue messaging.Queue[Event[T]], handler Handler[T]) *Listener[T] {
	return &Listener[T]{
		queue:   queue,
		handler: handler,
		logger:  logging.Named("event.listener"),
		done:    make(chan struct{}),
	}
}

// Start launches the consume loop. It returns immediately.
func (l *Listener[T]) Start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)
	go func() {
		defer close(l.done)
		for {
			msg, err := l.queue.Consume(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, context.Canceled) {
					return
				}
				l.logger.Warn("failed to consume event", zap.Error(err))
				continue
			}
			if msg == nil {
				continue
			}
			if err := l.handler(ctx, msg.T()); err != nil {
				l.logger.Warn("event handler failed", zap.Error(err))
				_ = msg.Nack(err)
				continue
			}
			if err := msg.Ack(); err != nil {
				l.logger.Warn("failed to ack event", zap.Error(err))
			}
		}
	}()
}

// Stop cancels the loop and waits for it to exit.
func (l *Listener[T]) Stop() {
	l.once.Do(func() {
		if l.cancel == nil {
			close(l.done)
			return
		}
		l.cancel()
	})
	<-l.done
}
