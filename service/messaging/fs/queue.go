// Package fs implements a durable messaging.Queue on top of afs. Messages are
// JSON files that move between pending, processing, failed, completed and
// dlq folders, so anything left in processing after a crash is redelivered
// when the queue is reopened.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
	"github.com/viant/deepresearch/internal/clock"
	"github.com/viant/deepresearch/internal/idgen"
	"github.com/viant/deepresearch/service/messaging"
)

// ErrProcessed is returned when a message is acked or nacked twice.
var ErrProcessed = errors.New("message already processed")

// MessageState represents the state of a message in the filesystem queue
type MessageState string

const (
	MessageStatePending    MessageState = "pending"
	MessageStateProcessing MessageState = "processing"
	MessageStateCompleted  MessageState = "completed"
	MessageStateFailed     MessageState = "failed"
)

// Message is a queue entry persisted as JSON.
type Message[T any] struct {
	ID        string       `json:"id"`
	Data      T            `json:"data"`
	State     MessageState `json:"state"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Retries   int          `json:"retries"`

	name      string
	queue     *Queue[T]
	processed bool
	mu        sync.Mutex
}

// T returns the message payload
func (m *Message[T]) T() *T {
	return &m.Data
}

// Ack moves the message to completed.
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return ErrProcessed
	}
	m.processed = true
	m.State = MessageStateCompleted
	m.UpdatedAt = clock.Now()
	return m.queue.settle(context.Background(), m, m.queue.completedDir)
}

// Nack moves the message to failed for a delayed retry, or to dlq once
// MaxRetries is exceeded.
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return ErrProcessed
	}
	m.processed = true
	m.State = MessageStateFailed
	if err != nil {
		m.Error = err.Error()
	}
	m.Retries++
	m.UpdatedAt = clock.Now()
	target := m.queue.failedDir
	if m.Retries > m.queue.config.MaxRetries {
		target = m.queue.dlqDir
	}
	return m.queue.settle(context.Background(), m, target)
}

// Config holds configuration for filesystem queue
type Config struct {
	BasePath     string        `json:"basePath" yaml:"basePath"`
	MaxRetries   int           `json:"maxRetries" yaml:"maxRetries"`
	RetryDelay   time.Duration `json:"retryDelay" yaml:"retryDelay"`
	PollInterval time.Duration `json:"pollInterval" yaml:"pollInterval"`
}

// DefaultConfig returns a default queue configuration
func DefaultConfig() Config {
	return Config{
		BasePath:     "/tmp/deepresearch/queue",
		MaxRetries:   3,
		RetryDelay:   time.Second,
		PollInterval: 250 * time.Millisecond,
	}
}

// Queue implements a filesystem-based messaging.Queue
type Queue[T any] struct {
	fs            afs.Service
	config        Config
	pendingDir    string
	processingDir string
	completedDir  string
	failedDir     string
	dlqDir        string
	mu            sync.Mutex
}

// NewQueue opens (or creates) a queue rooted at config.BasePath and returns
// any in-flight messages left by a previous process to pending.
func NewQueue[T any](fs afs.Service, config Config) (*Queue[T], error) {
	if config.BasePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	if url.Scheme(config.BasePath, "") == "" {
		config.BasePath = url.Normalize(config.BasePath, file.Scheme)
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	q := &Queue[T]{
		fs:            fs,
		config:        config,
		pendingDir:    url.Join(config.BasePath, "pending"),
		processingDir: url.Join(config.BasePath, "processing"),
		completedDir:  url.Join(config.BasePath, "completed"),
		failedDir:     url.Join(config.BasePath, "failed"),
		dlqDir:        url.Join(config.BasePath, "dlq"),
	}
	ctx := context.Background()
	for _, dir := range []string{q.pendingDir, q.processingDir, q.completedDir, q.failedDir, q.dlqDir} {
		exists, _ := fs.Exists(ctx, dir)
		if !exists {
			if err := fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
				return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}
	if err := q.recoverInFlight(ctx); err != nil {
		return nil, err
	}
	return q, nil
}

// Publish writes a new pending message. File names sort by publish time so
// consumption is FIFO.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	now := clock.Now()
	message := &Message[T]{
		ID:        idgen.New(),
		Data:      *t,
		State:     MessageStatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	message.name = fmt.Sprintf("%020d-%s.json", now.UnixNano(), message.ID)
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.write(ctx, url.Join(q.pendingDir, message.name), message)
}

// Consume polls until a pending or retry-eligible failed message exists.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	for {
		message, err := q.TryConsume(ctx)
		if err != nil || message != nil {
			return message, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.config.PollInterval):
		}
	}
}

// TryConsume returns the next message or nil when none is ready.
func (q *Queue[T]) TryConsume(ctx context.Context) (*Message[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	failed, err := q.list(ctx, q.failedDir)
	if err != nil {
		return nil, err
	}
	for _, obj := range failed {
		message, err := q.read(ctx, obj)
		if err != nil {
			_ = q.fs.Move(ctx, obj.URL(), url.Join(q.dlqDir, "invalid-"+obj.Name()))
			continue
		}
		if clock.Since(message.UpdatedAt) < q.config.RetryDelay {
			continue
		}
		return q.claim(ctx, obj, message)
	}
	pending, err := q.list(ctx, q.pendingDir)
	if err != nil {
		return nil, err
	}
	for _, obj := range pending {
		message, err := q.read(ctx, obj)
		if err != nil {
			_ = q.fs.Move(ctx, obj.URL(), url.Join(q.dlqDir, "invalid-"+obj.Name()))
			continue
		}
		return q.claim(ctx, obj, message)
	}
	return nil, nil
}

// Pending returns the number of messages waiting in pending.
func (q *Queue[T]) Pending(ctx context.Context) (int, error) {
	return q.count(ctx, q.pendingDir)
}

// DeadLetters returns the number of messages in dlq.
func (q *Queue[T]) DeadLetters(ctx context.Context) (int, error) {
	return q.count(ctx, q.dlqDir)
}

func (q *Queue[T]) count(ctx context.Context, dir string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	objects, err := q.list(ctx, dir)
	return len(objects), err
}

func (q *Queue[T]) claim(ctx context.Context, obj storage.Object, message *Message[T]) (*Message[T], error) {
	message.State = MessageStateProcessing
	message.UpdatedAt = clock.Now()
	if err := q.write(ctx, url.Join(q.processingDir, message.name), message); err != nil {
		return nil, fmt.Errorf("failed to move message to processing: %w", err)
	}
	if err := q.fs.Delete(ctx, obj.URL()); err != nil {
		return nil, fmt.Errorf("failed to delete claimed message: %w", err)
	}
	return message, nil
}

func (q *Queue[T]) settle(ctx context.Context, m *Message[T], dir string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.write(ctx, url.Join(dir, m.name), m); err != nil {
		return err
	}
	processing := url.Join(q.processingDir, m.name)
	if exists, _ := q.fs.Exists(ctx, processing); exists {
		if err := q.fs.Delete(ctx, processing); err != nil {
			return fmt.Errorf("failed to delete message from processing directory: %w", err)
		}
	}
	return nil
}

func (q *Queue[T]) recoverInFlight(ctx context.Context) error {
	objects, err := q.list(ctx, q.processingDir)
	if err != nil {
		return err
	}
	for _, obj := range objects {
		if err := q.fs.Move(ctx, obj.URL(), url.Join(q.pendingDir, obj.Name())); err != nil {
			return fmt.Errorf("failed to recover in-flight message %s: %w", obj.Name(), err)
		}
	}
	return nil
}

func (q *Queue[T]) list(ctx context.Context, dir string) ([]storage.Object, error) {
	objects, err := q.fs.List(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var ret []storage.Object
	for _, obj := range objects {
		if !obj.IsDir() && strings.HasSuffix(obj.Name(), ".json") {
			ret = append(ret, obj)
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Name() < ret[j].Name() })
	return ret, nil
}

func (q *Queue[T]) write(ctx context.Context, URL string, m *Message[T]) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return q.fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(data))
}

func (q *Queue[T]) read(ctx context.Context, obj storage.Object) (*Message[T], error) {
	data, err := q.fs.Download(ctx, obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read message %s: %w", obj.URL(), err)
	}
	var message Message[T]
	if err := json.Unmarshal(data, &message); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message %s: %w", obj.URL(), err)
	}
	message.name = obj.Name()
	message.queue = q
	return &message, nil
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
