package deepresearch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/viant/deepresearch/model"
	"github.com/viant/deepresearch/service/document"
	"github.com/viant/deepresearch/service/intake"
	"github.com/viant/deepresearch/service/kanban"
	"github.com/viant/deepresearch/service/notifier"
	"github.com/viant/deepresearch/service/processor"
	"github.com/viant/deepresearch/service/scheduler"
	"go.uber.org/zap"
)

// Runtime runs the scheduler, the processor worker, the notification relay
// and the clarification sweep, and exposes the operator operations.
type Runtime struct {
	kanban        *kanban.Service
	intake        *intake.Service
	scheduler     *scheduler.Service
	processor     *processor.Service
	documents     *document.FsStore
	relay         *notifier.Relay
	sweepInterval time.Duration
	closers       []func() error

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	logger  *zap.Logger
}

// Start launches the background loops. The first scheduling pass runs
// immediately.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.New("runtime already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	r.relay.Start(ctx)
	if err := r.processor.Start(ctx); err != nil {
		cancel()
		r.relay.Stop()
		return err
	}
	r.cancel = cancel
	r.started = true
	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		if err := r.scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("scheduler stopped", zap.Error(err))
		}
	}()
	go func() {
		defer r.wg.Done()
		r.intake.Run(ctx, r.sweepInterval)
	}()
	r.logger.Info("runtime started")
	return nil
}

// Shutdown stops the loops and waits for the current run to return. A task
// interrupted mid-run stays in_progress and is recovered later.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		r.scheduler.Shutdown()
		r.cancel()
		r.processor.Shutdown()
		r.relay.Stop()
		r.wg.Wait()
		r.started = false
		r.logger.Info("runtime stopped")
	}
	return r.close()
}

func (r *Runtime) close() error {
	var errs []error
	for _, closer := range r.closers {
		errs = append(errs, closer())
	}
	r.closers = nil
	return errors.Join(errs...)
}

// Receive opens a clarification session for an inbound chat message.
func (r *Runtime) Receive(ctx context.Context, msg intake.Message) (*intake.Session, error) {
	return r.intake.Receive(ctx, msg)
}

// Reply answers the clarifying questions of a session.
func (r *Runtime) Reply(ctx context.Context, sessionID, text string) (*intake.Session, error) {
	return r.intake.Reply(ctx, sessionID, text)
}

// Session returns a clarification session.
func (r *Runtime) Session(ctx context.Context, sessionID string) (*intake.Session, error) {
	return r.intake.Get(ctx, sessionID)
}

// Submit enqueues a brief that needs no clarification.
func (r *Runtime) Submit(ctx context.Context, brief model.Brief) (*model.Task, error) {
	return r.kanban.Enqueue(ctx, brief)
}

// Tick runs one scheduling pass outside the periodic loop.
func (r *Runtime) Tick(ctx context.Context) (*model.Task, error) {
	return r.scheduler.Tick(ctx)
}

// Run processes a task synchronously; it must already be in_progress.
func (r *Runtime) Run(ctx context.Context, taskID string) error {
	return r.processor.Run(ctx, taskID)
}

// Tasks lists tasks, optionally restricted to stages.
func (r *Runtime) Tasks(ctx context.Context, stages ...model.Stage) ([]*model.Task, error) {
	return r.kanban.List(ctx, stages...)
}

// Task returns a task.
func (r *Runtime) Task(ctx context.Context, id string) (*model.Task, error) {
	return r.kanban.Get(ctx, id)
}

// Requeue moves a failed task back to todo, or rejects it once its retries
// are spent.
func (r *Runtime) Requeue(ctx context.Context, id string) (*model.Task, error) {
	return r.processor.Requeue(ctx, id)
}

// Abort fails a todo or in_progress task without requeueing it.
func (r *Runtime) Abort(ctx context.Context, id, reason string) (*model.Task, error) {
	return r.processor.Abort(ctx, id, reason)
}

// Reports lists the document ids of done tasks, newest first. Reports left
// behind by runs that never completed are not listed.
func (r *Runtime) Reports(ctx context.Context) ([]string, error) {
	ids, err := r.documents.List(ctx)
	if err != nil || len(ids) == 0 {
		return ids, err
	}
	done, err := r.kanban.List(ctx, model.StageDone)
	if err != nil {
		return nil, err
	}
	delivered := make(map[string]bool, len(done))
	for _, t := range done {
		delivered[t.DocumentID] = true
	}
	var ret []string
	for _, id := range ids {
		if delivered[id] {
			ret = append(ret, id)
		}
	}
	return ret, nil
}

// Report returns the stored report and its verified markdown.
func (r *Runtime) Report(ctx context.Context, documentID string) (*model.ReportDocument, string, error) {
	doc, err := r.documents.Load(ctx, documentID)
	if err != nil {
		return nil, "", err
	}
	markdown, err := r.documents.Markdown(ctx, documentID)
	if err != nil {
		return nil, "", err
	}
	return doc, markdown, nil
}

// ReportLocation is the URL of a stored report.md.
func (r *Runtime) ReportLocation(documentID string) string {
	return r.documents.Location(documentID)
}
