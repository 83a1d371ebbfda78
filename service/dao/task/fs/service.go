package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"
	"github.com/viant/deepresearch/internal/logging"
	"github.com/viant/deepresearch/model"
	"github.com/viant/deepresearch/service/dao"
	"github.com/viant/deepresearch/service/dao/criteria"
	"github.com/viant/deepresearch/service/dao/task"
	"go.uber.org/zap"
)

// Service implements a filesystem-based task store: one JSON document per
// task under basePath. Any afs scheme works (file://, mem://, gs://, s3://).
type Service struct {
	basePath string
	fs       afs.Service
	mu       sync.RWMutex
	logger   *zap.Logger
}

var _ task.Service = (*Service)(nil)

// Save persists a task.
func (s *Service) Save(ctx context.Context, t *model.Task) error {
	if t == nil {
		return dao.ErrNilEntity
	}
	if t.ID == "" {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, t)
}

func (s *Service) save(ctx context.Context, t *model.Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	filePath := s.taskPath(t.ID)
	if err = s.fs.Upload(ctx, filePath, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save task to file %s: %w", filePath, err)
	}
	return nil
}

// Load retrieves a task.
func (s *Service) Load(ctx context.Context, id string) (*model.Task, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(ctx, id)
}

func (s *Service) load(ctx context.Context, id string) (*model.Task, error) {
	filePath := s.taskPath(id)
	exists, err := s.fs.Exists(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to check if task exists: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("task %s: %w", id, dao.ErrNotFound)
	}
	data, err := s.fs.DownloadWithURL(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read task file: %w", err)
	}
	var ret model.Task
	if err := json.Unmarshal(data, &ret); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task data: %w", err)
	}
	return &ret, nil
}

// Delete removes a task.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	filePath := s.taskPath(id)
	exists, err := s.fs.Exists(ctx, filePath)
	if err != nil {
		return fmt.Errorf("failed to check if task exists: %w", err)
	}
	if !exists {
		return fmt.Errorf("task %s: %w", id, dao.ErrNotFound)
	}
	if err := s.fs.Delete(ctx, filePath); err != nil {
		return fmt.Errorf("failed to delete task file: %w", err)
	}
	return nil
}

// List returns stored tasks matching the stage parameters in FIFO order.
// Unreadable documents are logged and skipped.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	objects, err := s.fs.List(ctx, s.basePath, option.NewRecursive(true))
	if err != nil {
		return nil, fmt.Errorf("failed to list task files: %w", err)
	}
	var tasks []*model.Task
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			s.logger.Warn("skipping unreadable task", zap.String("url", object.URL()), zap.Error(err))
			continue
		}
		var t model.Task
		if err := json.Unmarshal(data, &t); err != nil {
			s.logger.Warn("skipping malformed task", zap.String("url", object.URL()), zap.Error(err))
			continue
		}
		if !criteria.FilterByStage(t.Stage, parameters) {
			continue
		}
		tasks = append(tasks, &t)
	}
	task.SortFIFO(tasks)
	return tasks, nil
}

// Swap stores t when the persisted stage equals expect.
func (s *Service) Swap(ctx context.Context, t *model.Task, expect model.Stage) error {
	if t == nil {
		return dao.ErrNilEntity
	}
	if t.ID == "" {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.load(ctx, t.ID)
	if err != nil {
		return err
	}
	if current.Stage != expect {
		return fmt.Errorf("task %s is %s, expected %s: %w", t.ID, current.Stage, expect, dao.ErrConflict)
	}
	return s.save(ctx, t)
}

func (s *Service) taskPath(id string) string {
	return url.Join(s.basePath, id+".json")
}

// New creates a filesystem task store rooted at basePath.
func New(basePath string) (*Service, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	fs := afs.New()
	ctx := context.Background()
	if url.Scheme(basePath, "") == "" {
		basePath = url.Normalize(path.Clean(basePath), file.Scheme)
	}
	exists, _ := fs.Exists(ctx, basePath)
	if !exists {
		if err := fs.Create(ctx, basePath, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
	}
	return &Service{
		basePath: basePath,
		fs:       fs,
		logger:   logging.Named("task.fs"),
	}, nil
}
