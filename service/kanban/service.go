// Package kanban is the durable task queue. Tasks move through inbox, todo,
// in_progress and then done, failed or rejected. At most one task is
// in_progress at any instant; the exclusivity token is an atomic pointer to
// the active task id, claimed by compare-and-swap and rebuilt from persisted
// state on Load.
package kanban

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/viant/deepresearch/internal/clock"
	"github.com/viant/deepresearch/internal/idgen"
	"github.com/viant/deepresearch/internal/logging"
	"github.com/viant/deepresearch/model"
	"github.com/viant/deepresearch/service/dao"
	"github.com/viant/deepresearch/service/dao/criteria"
	"github.com/viant/deepresearch/service/dao/task"
	"go.uber.org/zap"
)

// DefaultMaxRetries is the number of explicit requeues a failed task gets.
const DefaultMaxRetries = 1

// Listener observes committed transitions.
type Listener func(ctx context.Context, from model.Stage, t *model.Task)

// Service is the kanban store.
type Service struct {
	dao        task.Service
	mu         sync.Mutex
	active     atomic.Pointer[string]
	seq        atomic.Int64
	maxRetries int
	logger     *zap.Logger
	listeners  []Listener
}

// New creates a kanban store over dao. Call Load before use when dao holds
// persisted tasks.
func New(dao task.Service, opts ...Option) *Service {
	s := &Service{
		dao:        dao,
		maxRetries: DefaultMaxRetries,
		logger:     logging.Named("kanban"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load rebuilds the exclusivity token and insertion sequence from persisted
// state. If more than one task is found in_progress (a corrupted store) the
// oldest keeps the token and the others are failed.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.dao.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}
	var maxSeq int64
	s.active.Store(nil)
	for _, t := range all {
		if t.Seq > maxSeq {
			maxSeq = t.Seq
		}
		if t.Stage != model.StageInProgress {
			continue
		}
		id := t.ID
		if s.active.CompareAndSwap(nil, &id) {
			continue
		}
		s.logger.Error("multiple in_progress tasks found", zap.String("task", t.ID), zap.String("active", *s.active.Load()))
		if _, err := s.transition(ctx, t.ID, func(t *model.Task) error {
			return s.markFailed(t, model.FailureInternal, errors.New("duplicate in_progress task"))
		}); err != nil {
			return err
		}
	}
	s.seq.Store(maxSeq)
	return nil
}

// Enqueue adds a new task for brief in the inbox.
func (s *Service) Enqueue(ctx context.Context, brief model.Brief) (*model.Task, error) {
	if err := brief.Validate(); err != nil {
		return nil, err
	}
	now := clock.Now()
	t := &model.Task{
		ID:        idgen.Prefixed("task"),
		Brief:     brief.Clone(),
		Stage:     model.StageInbox,
		Seq:       s.seq.Add(1),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if t.Brief.ID == "" {
		t.Brief.ID = t.ID
	}
	if err := s.dao.Save(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}
	s.logger.Info("task enqueued", zap.String("task", t.ID), zap.String("topic", brief.Topic))
	s.notify(ctx, "", t)
	return t.Clone(), nil
}

// Triage moves an inbox task to todo.
func (s *Service) Triage(ctx context.Context, id string) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(ctx, id, func(t *model.Task) error {
		return s.move(t, model.StageTodo)
	})
}

// Promote moves a todo task to in_progress, claiming the exclusivity token.
func (s *Service) Promote(ctx context.Context, id string) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promote(ctx, id)
}

// PromoteNext promotes the oldest todo task. It returns nil when todo is
// empty.
func (s *Service) PromoteNext(ctx context.Context) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if active := s.active.Load(); active != nil {
		return nil, fmt.Errorf("task %s holds the token: %w", *active, ErrConcurrencyViolation)
	}
	todo, err := s.dao.List(ctx, criteria.Stages(model.StageTodo))
	if err != nil {
		return nil, fmt.Errorf("failed to list todo: %w", err)
	}
	if len(todo) == 0 {
		return nil, nil
	}
	return s.promote(ctx, todo[0].ID)
}

func (s *Service) promote(ctx context.Context, id string) (*model.Task, error) {
	claim := id
	if !s.active.CompareAndSwap(nil, &claim) {
		return nil, fmt.Errorf("task %s holds the token: %w", *s.active.Load(), ErrConcurrencyViolation)
	}
	ret, err := s.transition(ctx, id, func(t *model.Task) error {
		if err := s.move(t, model.StageInProgress); err != nil {
			return err
		}
		started := t.UpdatedAt
		t.StartedAt = &started
		t.FinishedAt = nil
		t.Phase = ""
		return nil
	})
	if err != nil {
		s.active.CompareAndSwap(&claim, nil)
		return nil, err
	}
	return ret, nil
}

// Complete moves an in_progress task to done and releases the token.
func (s *Service) Complete(ctx context.Context, id, documentID string) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret, err := s.transition(ctx, id, func(t *model.Task) error {
		if err := s.move(t, model.StageDone); err != nil {
			return err
		}
		t.DocumentID = documentID
		t.Failure = ""
		t.Error = ""
		finished := t.UpdatedAt
		t.FinishedAt = &finished
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.release(id)
	return ret, nil
}

// Fail moves an in_progress task to failed, records the cause and releases
// the token.
func (s *Service) Fail(ctx context.Context, id string, kind model.FailureKind, cause error) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret, err := s.transition(ctx, id, func(t *model.Task) error {
		if t.Stage != model.StageInProgress {
			return fmt.Errorf("fail %s from %s: %w", t.ID, t.Stage, ErrInvalidTransition)
		}
		return s.markFailed(t, kind, cause)
	})
	if err != nil {
		return nil, err
	}
	s.release(id)
	return ret, nil
}

// Requeue moves a failed task back to todo. When the retry budget is spent
// the task becomes rejected and ErrRetriesExhausted is returned with it.
func (s *Service) Requeue(ctx context.Context, id string) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requeue(ctx, id)
}

func (s *Service) requeue(ctx context.Context, id string) (*model.Task, error) {
	exhausted := false
	ret, err := s.transition(ctx, id, func(t *model.Task) error {
		if t.Stage != model.StageFailed {
			return fmt.Errorf("requeue %s from %s: %w", t.ID, t.Stage, ErrInvalidTransition)
		}
		if t.RetryCount >= s.maxRetries {
			exhausted = true
			return s.move(t, model.StageRejected)
		}
		if err := s.move(t, model.StageTodo); err != nil {
			return err
		}
		t.RetryCount++
		t.Phase = ""
		t.StartedAt = nil
		t.FinishedAt = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	if exhausted {
		s.logger.Warn("task rejected", zap.String("task", id), zap.Int("retries", ret.RetryCount))
		return ret, fmt.Errorf("task %s: %w", id, ErrRetriesExhausted)
	}
	return ret, nil
}

// Abort fails a todo or in_progress task immediately, releasing the token if
// it was held.
func (s *Service) Abort(ctx context.Context, id, reason string) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret, err := s.transition(ctx, id, func(t *model.Task) error {
		if t.Stage != model.StageTodo && t.Stage != model.StageInProgress {
			return fmt.Errorf("abort %s from %s: %w", t.ID, t.Stage, ErrInvalidTransition)
		}
		if reason == "" {
			reason = "aborted"
		}
		return s.markFailed(t, model.FailureAborted, errors.New(reason))
	})
	if err != nil {
		return nil, err
	}
	s.release(id)
	return ret, nil
}

// Checkpoint records the phase an in_progress task reached.
func (s *Service) Checkpoint(ctx context.Context, id string, phase model.Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.transition(ctx, id, func(t *model.Task) error {
		if t.Stage != model.StageInProgress {
			return fmt.Errorf("checkpoint %s in %s: %w", t.ID, t.Stage, ErrInvalidTransition)
		}
		t.Phase = phase
		t.UpdatedAt = clock.Now()
		return nil
	})
	return err
}

// RecoverStale fails every in_progress task started more than olderThan ago
// and applies the requeue policy to it. Recovered tasks are returned in their
// final stage (todo or rejected).
func (s *Service) RecoverStale(ctx context.Context, olderThan time.Duration) ([]*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	running, err := s.dao.List(ctx, criteria.Stages(model.StageInProgress))
	if err != nil {
		return nil, fmt.Errorf("failed to list in_progress: %w", err)
	}
	var recovered []*model.Task
	for _, candidate := range running {
		started := candidate.UpdatedAt
		if candidate.StartedAt != nil {
			started = *candidate.StartedAt
		}
		if clock.Since(started) < olderThan {
			continue
		}
		s.logger.Warn("recovering stale task", zap.String("task", candidate.ID), zap.Time("started", started), zap.String("phase", string(candidate.Phase)))
		if _, err := s.transition(ctx, candidate.ID, func(t *model.Task) error {
			return s.markFailed(t, model.FailureStaleLock, ErrStaleLockRecovered)
		}); err != nil {
			return recovered, err
		}
		s.release(candidate.ID)
		ret, err := s.requeue(ctx, candidate.ID)
		if err != nil && !errors.Is(err, ErrRetriesExhausted) {
			return recovered, err
		}
		recovered = append(recovered, ret)
	}
	return recovered, nil
}

// List returns tasks in the given stages (all when none) in FIFO order.
func (s *Service) List(ctx context.Context, stages ...model.Stage) ([]*model.Task, error) {
	var parameters []*dao.Parameter
	if len(stages) > 0 {
		parameters = append(parameters, criteria.Stages(stages...))
	}
	return s.dao.List(ctx, parameters...)
}

// Get returns a task by id.
func (s *Service) Get(ctx context.Context, id string) (*model.Task, error) {
	return s.dao.Load(ctx, id)
}

// Active returns the in_progress task or nil.
func (s *Service) Active(ctx context.Context) (*model.Task, error) {
	id := s.active.Load()
	if id == nil {
		return nil, nil
	}
	return s.dao.Load(ctx, *id)
}

// ActiveID returns the id holding the exclusivity token, if any.
func (s *Service) ActiveID() (string, bool) {
	id := s.active.Load()
	if id == nil {
		return "", false
	}
	return *id, true
}

func (s *Service) release(id string) {
	current := s.active.Load()
	if current != nil && *current == id {
		s.active.CompareAndSwap(current, nil)
	}
}

func (s *Service) move(t *model.Task, next model.Stage) error {
	if !t.Stage.CanTransition(next) {
		return fmt.Errorf("%s %s -> %s: %w", t.ID, t.Stage, next, ErrInvalidTransition)
	}
	t.Stage = next
	t.UpdatedAt = clock.Now()
	return nil
}

func (s *Service) markFailed(t *model.Task, kind model.FailureKind, cause error) error {
	if err := s.move(t, model.StageFailed); err != nil {
		return err
	}
	t.Failure = kind
	if cause != nil {
		t.Error = cause.Error()
	}
	finished := t.UpdatedAt
	t.FinishedAt = &finished
	return nil
}

// transition loads id, applies mutate and persists it conditionally on the
// stage it was loaded in. Callers hold s.mu.
func (s *Service) transition(ctx context.Context, id string, mutate func(t *model.Task) error) (*model.Task, error) {
	current, err := s.dao.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	from := current.Stage
	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	if err := s.dao.Swap(ctx, next, from); err != nil {
		return nil, fmt.Errorf("failed to persist task %s: %w", id, err)
	}
	if from != next.Stage {
		s.logger.Info("task moved", zap.String("task", id), zap.String("from", string(from)), zap.String("to", string(next.Stage)))
		s.notify(ctx, from, next)
	}
	return next.Clone(), nil
}

func (s *Service) notify(ctx context.Context, from model.Stage, t *model.Task) {
	for _, listener := range s.listeners {
		listener(ctx, from, t.Clone())
	}
}
