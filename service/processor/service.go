package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/viant/deepresearch/internal/clock"
	"github.com/viant/deepresearch/internal/logging"
	"github.com/viant/deepresearch/model"
	"github.com/viant/deepresearch/service/aggregator"
	"github.com/viant/deepresearch/service/document"
	"github.com/viant/deepresearch/service/investigator"
	"github.com/viant/deepresearch/service/kanban"
	"github.com/viant/deepresearch/service/messaging"
	"github.com/viant/deepresearch/service/notifier"
	"github.com/viant/deepresearch/service/scheduler"
	"github.com/viant/deepresearch/service/synthesizer"
	"github.com/viant/deepresearch/tracing"
	"go.uber.org/zap"
)

// errSuperseded marks a run whose task left in_progress underneath it
// (aborted or recovered); its result is discarded.
var errSuperseded = errors.New("task no longer in progress")

// Investigators runs one investigation round.
type Investigators interface {
	Run(ctx context.Context, brief *model.Brief) (*investigator.Outcome, error)
}

// Aggregator dedupes, caps and clusters an outcome.
type Aggregator interface {
	Aggregate(brief *model.Brief, outcome *investigator.Outcome) (*aggregator.Result, error)
}

// Synthesizer writes the report.
type Synthesizer interface {
	Synthesize(ctx context.Context, input synthesizer.Input) (*model.ReportDocument, error)
}

// Config represents processor configuration
type Config struct {
	// Timeout bounds a whole run: investigation, synthesis and saving
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
	// MinViable is re-checked after cross-investigator deduplication
	MinViable int `json:"minViable" yaml:"minViable"`
}

// DefaultConfig allows 45 minutes per run and requires 10 distinct sources.
func DefaultConfig() Config {
	return Config{
		Timeout:   45 * time.Minute,
		MinViable: 10,
	}
}

// Service runs promoted tasks one at a time.
type Service struct {
	config      Config
	queue       *kanban.Service
	dispatch    messaging.Queue[scheduler.Dispatch]
	pool        Investigators
	aggregator  Aggregator
	synthesizer Synthesizer
	documents   document.Store
	locate      func(documentID string) string
	channel     notifier.Channel
	channelID   string

	mu      sync.Mutex
	running map[string]context.CancelFunc

	cancel   context.CancelFunc
	workerWg sync.WaitGroup
	logger   *zap.Logger
}

// New creates a processor; kanban, investigators, aggregator, synthesizer
// and document store are required.
func New(options ...Option) (*Service, error) {
	s := &Service{
		config:  DefaultConfig(),
		locate:  func(id string) string { return id },
		running: map[string]context.CancelFunc{},
		logger:  logging.Named("processor"),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.queue == nil {
		return nil, fmt.Errorf("kanban queue is required")
	}
	if s.pool == nil {
		return nil, fmt.Errorf("investigator pool is required")
	}
	if s.aggregator == nil {
		return nil, fmt.Errorf("aggregator is required")
	}
	if s.synthesizer == nil {
		return nil, fmt.Errorf("synthesizer is required")
	}
	if s.documents == nil {
		return nil, fmt.Errorf("document store is required")
	}
	if s.channel == nil {
		s.channel = notifier.NewLog()
	}
	if s.config.Timeout <= 0 {
		s.config.Timeout = DefaultConfig().Timeout
	}
	return s, nil
}

// Start launches the worker consuming the dispatch queue.
func (s *Service) Start(ctx context.Context) error {
	if s.dispatch == nil {
		return fmt.Errorf("dispatch queue is required")
	}
	workerCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.workerWg.Add(1)
	go s.work(workerCtx)
	return nil
}

// Shutdown stops the worker and waits for the current run to return.
func (s *Service) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
	s.workerWg.Wait()
}

func (s *Service) work(ctx context.Context) {
	defer s.workerWg.Done()
	for {
		msg, err := s.dispatch.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("failed to consume dispatch", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		if msg == nil {
			continue
		}
		if err := s.Run(ctx, msg.T().TaskID); err != nil {
			s.logger.Error("run failed", zap.String("task", msg.T().TaskID), zap.Error(err))
			_ = msg.Nack(err)
			continue
		}
		if err := msg.Ack(); err != nil {
			s.logger.Warn("failed to ack dispatch", zap.Error(err))
		}
	}
}

// Run processes one promoted task to its terminal transition. Dispatches for
// tasks that are not in_progress are ignored. The returned error is reserved
// for bookkeeping failures; task failures are recorded on the task.
func (s *Service) Run(ctx context.Context, taskID string) (err error) {
	ctx, span := tracing.StartSpan(ctx, "processor.run")
	defer func() { tracing.EndSpan(span, err) }()
	span.WithAttributes(map[string]string{"task": taskID})

	t, err := s.queue.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if t.Stage != model.StageInProgress {
		s.logger.Info("ignoring dispatch", zap.String("task", taskID), zap.String("stage", string(t.Stage)))
		return nil
	}

	runCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()
	s.mu.Lock()
	s.running[taskID] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.running, taskID)
		s.mu.Unlock()
	}()

	started := clock.Now()
	if t.StartedAt != nil {
		started = *t.StartedAt
	}
	docID, kind, runErr := s.execute(runCtx, t, started)
	if runErr != nil && ctx.Err() != nil {
		// shutting down: the task stays in_progress for redelivery or stale recovery
		return ctx.Err()
	}
	// bookkeeping must survive the run deadline
	ctx = context.WithoutCancel(ctx)
	if runErr != nil {
		return s.fail(ctx, t, kind, runErr)
	}
	return s.complete(ctx, t, docID)
}

func (s *Service) execute(ctx context.Context, t *model.Task, started time.Time) (string, model.FailureKind, error) {
	brief := t.Brief
	if err := s.checkpoint(ctx, t.ID, model.PhaseInvestigating); err != nil {
		return "", model.FailureInternal, err
	}
	outcome, err := s.pool.Run(ctx, &brief)
	if err != nil {
		if errors.Is(err, investigator.ErrInsufficientSources) {
			return "", model.FailureInsufficientSources, err
		}
		return "", model.FailureInternal, err
	}

	if err = s.checkpoint(ctx, t.ID, model.PhaseAggregating); err != nil {
		return "", model.FailureInternal, err
	}
	result, err := s.aggregator.Aggregate(&brief, outcome)
	if err != nil {
		if errors.Is(err, aggregator.ErrNoFindings) {
			return "", model.FailureInsufficientSources, fmt.Errorf("%w: %v", investigator.ErrInsufficientSources, err)
		}
		return "", model.FailureInternal, err
	}
	if len(result.Findings) < s.config.MinViable {
		return "", model.FailureInsufficientSources, fmt.Errorf("%d distinct findings, minimum %d: %w", len(result.Findings), s.config.MinViable, investigator.ErrInsufficientSources)
	}

	if err = s.checkpoint(ctx, t.ID, model.PhaseSynthesizing); err != nil {
		return "", model.FailureInternal, err
	}
	doc, err := s.synthesizer.Synthesize(ctx, synthesizer.Input{
		Task:      t,
		Brief:     &brief,
		Aggregate: result,
		Outcome:   outcome,
		StartedAt: started,
	})
	if err != nil {
		return "", model.FailureSynthesis, err
	}

	if err = s.checkpoint(ctx, t.ID, model.PhaseSaving); err != nil {
		return "", model.FailureInternal, err
	}
	docID, err := s.documents.Save(ctx, doc)
	if err != nil {
		return "", model.FailureInternal, err
	}
	return docID, "", nil
}

func (s *Service) checkpoint(ctx context.Context, id string, phase model.Phase) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.queue.Checkpoint(ctx, id, phase)
	if errors.Is(err, kanban.ErrInvalidTransition) {
		return fmt.Errorf("%w: %v", errSuperseded, err)
	}
	return err
}

func (s *Service) complete(ctx context.Context, t *model.Task, docID string) error {
	done, err := s.queue.Complete(ctx, t.ID, docID)
	if errors.Is(err, kanban.ErrInvalidTransition) {
		s.logger.Warn("discarding completion of superseded task", zap.String("task", t.ID), zap.String("documentId", docID))
		if err := s.documents.Delete(ctx, docID); err != nil {
			s.logger.Error("failed to withdraw report", zap.String("documentId", docID), zap.Error(err))
		}
		return nil
	}
	if err != nil {
		return err
	}
	location := s.locate(docID)
	s.logger.Info("task completed", zap.String("task", t.ID), zap.String("location", location))
	s.notify(ctx, done, docID, notifier.SuccessSummary(done, location))
	if poster, ok := s.channel.(notifier.ChannelPoster); ok && s.channelID != "" {
		if err := poster.PostToChannel(ctx, s.channelID, notifier.SuccessSummary(done, location)); err != nil {
			s.logger.Warn("failed to post to channel", zap.String("channel", s.channelID), zap.Error(err))
		}
	}
	return nil
}

// fail records the failure and applies the requeue policy. Exactly one
// notification goes out, and only when the task ends up rejected.
func (s *Service) fail(ctx context.Context, t *model.Task, kind model.FailureKind, cause error) error {
	if errors.Is(cause, errSuperseded) {
		s.logger.Info("run superseded", zap.String("task", t.ID), zap.Error(cause))
		return nil
	}
	failed, err := s.queue.Fail(ctx, t.ID, kind, cause)
	if errors.Is(err, kanban.ErrInvalidTransition) {
		s.logger.Info("discarding failure of superseded task", zap.String("task", t.ID), zap.Error(cause))
		return nil
	}
	if err != nil {
		return err
	}
	s.logger.Warn("task failed", zap.String("task", t.ID), zap.String("kind", string(kind)), zap.Error(cause))
	requeued, err := s.Requeue(ctx, failed.ID)
	switch {
	case errors.Is(err, kanban.ErrRetriesExhausted):
		return nil
	case err != nil:
		return err
	}
	s.logger.Info("task requeued", zap.String("task", t.ID), zap.Int("retry", requeued.RetryCount))
	return nil
}

// Requeue moves a failed task back to todo. A task out of retries is
// rejected instead, and its requester gets the one failure notification.
func (s *Service) Requeue(ctx context.Context, taskID string) (*model.Task, error) {
	requeued, err := s.queue.Requeue(ctx, taskID)
	if errors.Is(err, kanban.ErrRetriesExhausted) {
		s.notify(ctx, requeued, "", notifier.FailureSummary(requeued))
	}
	return requeued, err
}

func (s *Service) notify(ctx context.Context, t *model.Task, docID, summary string) {
	if err := s.channel.Notify(ctx, t.ID, docID, summary); err != nil {
		s.logger.Error("failed to notify", zap.String("task", t.ID), zap.Error(err))
	}
}

// Abort fails a todo or in_progress task and cancels its run if one is
// active. Aborted tasks are not requeued.
func (s *Service) Abort(ctx context.Context, taskID, reason string) (*model.Task, error) {
	aborted, err := s.queue.Abort(ctx, taskID, reason)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	cancel, ok := s.running[taskID]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	s.logger.Info("task aborted", zap.String("task", taskID), zap.Bool("wasRunning", ok))
	return aborted, nil
}
