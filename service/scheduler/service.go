package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/viant/deepresearch/internal/clock"
	"github.com/viant/deepresearch/internal/logging"
	"github.com/viant/deepresearch/model"
	"github.com/viant/deepresearch/service/kanban"
	"github.com/viant/deepresearch/service/messaging"
	"github.com/viant/deepresearch/service/notifier"
	"github.com/viant/deepresearch/tracing"
	"go.uber.org/zap"
)

// Dispatch asks the processor to run a promoted task.
type Dispatch struct {
	TaskID     string    `json:"taskId"`
	Attempt    int       `json:"attempt"`
	PromotedAt time.Time `json:"promotedAt"`
}

// Config represents scheduler configuration
type Config struct {
	// TickInterval is how often the scheduler looks for work
	TickInterval time.Duration `json:"tickInterval" yaml:"tickInterval"`
	// StaleAfter is the in_progress age after which a task lock is recovered
	StaleAfter time.Duration `json:"staleAfter" yaml:"staleAfter"`
}

// DefaultConfig ticks every 30 minutes and recovers locks older than twice
// the default 30 minute investigation ceiling.
func DefaultConfig() Config {
	return Config{
		TickInterval: 30 * time.Minute,
		StaleAfter:   time.Hour,
	}
}

// Service drives the kanban queue.
type Service struct {
	config     Config
	queue      *kanban.Service
	dispatch   messaging.Queue[Dispatch]
	shutdownCh chan struct{}
	once       sync.Once
	channel    notifier.Channel
	logger     *zap.Logger
}

// Option customises the scheduler.
type Option func(s *Service)

// WithNotifier reports tasks the scheduler rejects, e.g. after a stale lock
// exhausted their retries.
func WithNotifier(channel notifier.Channel) Option {
	return func(s *Service) { s.channel = channel }
}

// New creates a scheduler publishing promoted tasks on dispatch.
func New(queue *kanban.Service, dispatch messaging.Queue[Dispatch], config Config, opts ...Option) *Service {
	defaults := DefaultConfig()
	if config.TickInterval <= 0 {
		config.TickInterval = defaults.TickInterval
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = defaults.StaleAfter
	}
	s := &Service{
		config:     config,
		queue:      queue,
		dispatch:   dispatch,
		shutdownCh: make(chan struct{}),
		logger:     logging.Named("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs one pass immediately and then one per tick until ctx is done or
// Shutdown is called.
func (s *Service) Start(ctx context.Context) error {
	if _, err := s.Tick(ctx); err != nil {
		s.logger.Warn("tick failed", zap.Error(err))
	}
	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.shutdownCh:
			return nil
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				s.logger.Warn("tick failed", zap.Error(err))
			}
		}
	}
}

// Shutdown stops the loop started by Start.
func (s *Service) Shutdown() {
	s.once.Do(func() { close(s.shutdownCh) })
}

// Tick performs one scheduling pass and returns the promoted task, if any.
func (s *Service) Tick(ctx context.Context) (promoted *model.Task, err error) {
	ctx, span := tracing.StartSpan(ctx, "scheduler.tick")
	defer func() { tracing.EndSpan(span, err) }()

	recovered, err := s.queue.RecoverStale(ctx, s.config.StaleAfter)
	if err != nil {
		return nil, fmt.Errorf("failed to recover stale tasks: %w", err)
	}
	span.WithInt("recovered", len(recovered))
	for _, t := range recovered {
		if t.Stage == model.StageRejected {
			s.rejected(ctx, t)
		}
	}

	inbox, err := s.queue.List(ctx, model.StageInbox)
	if err != nil {
		return nil, fmt.Errorf("failed to list inbox: %w", err)
	}
	for _, t := range inbox {
		if _, err := s.queue.Triage(ctx, t.ID); err != nil {
			s.logger.Warn("failed to triage task", zap.String("task", t.ID), zap.Error(err))
		}
	}
	span.WithInt("triaged", len(inbox))

	if id, ok := s.queue.ActiveID(); ok {
		s.logger.Debug("task still active", zap.String("task", id))
		return nil, nil
	}
	promoted, err = s.queue.PromoteNext(ctx)
	if err != nil {
		if errors.Is(err, kanban.ErrConcurrencyViolation) {
			return nil, nil
		}
		return nil, err
	}
	if promoted == nil {
		return nil, nil
	}
	span.WithAttributes(map[string]string{"task": promoted.ID})
	dispatch := &Dispatch{TaskID: promoted.ID, Attempt: promoted.RetryCount + 1, PromotedAt: clock.Now()}
	if err = s.dispatch.Publish(ctx, dispatch); err != nil {
		s.release(ctx, promoted, err)
		return nil, fmt.Errorf("failed to dispatch task %s: %w", promoted.ID, err)
	}
	s.logger.Info("task dispatched", zap.String("task", promoted.ID), zap.Int("attempt", dispatch.Attempt))
	return promoted, nil
}

// release gives the token back when the dispatch could not be queued and
// applies the requeue policy.
func (s *Service) release(ctx context.Context, t *model.Task, cause error) {
	if _, err := s.queue.Fail(ctx, t.ID, model.FailureInternal, cause); err != nil {
		s.logger.Error("failed to release task", zap.String("task", t.ID), zap.Error(err))
		return
	}
	requeued, err := s.queue.Requeue(ctx, t.ID)
	switch {
	case errors.Is(err, kanban.ErrRetriesExhausted):
		s.rejected(ctx, requeued)
	case err != nil:
		s.logger.Error("failed to requeue task", zap.String("task", t.ID), zap.Error(err))
	}
}

func (s *Service) rejected(ctx context.Context, t *model.Task) {
	if s.channel == nil || t == nil {
		return
	}
	if err := s.channel.Notify(ctx, t.ID, "", notifier.FailureSummary(t)); err != nil {
		s.logger.Error("failed to notify rejection", zap.String("task", t.ID), zap.Error(err))
	}
}
