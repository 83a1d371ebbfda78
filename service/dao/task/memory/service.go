package memory

import (
	"context"

	"github.com/viant/deepresearch/model"
	"github.com/viant/deepresearch/service/dao"
	"github.com/viant/deepresearch/service/dao/criteria"
	"github.com/viant/deepresearch/service/dao/store"
	"github.com/viant/deepresearch/service/dao/task"
)

// Service is an in-memory, thread-safe task store. All methods work with
// copies to eliminate data races between goroutines.
type Service struct {
	store *store.MemoryStore[string, model.Task]
}

var _ task.Service = (*Service)(nil)

func (s *Service) Save(ctx context.Context, t *model.Task) error {
	if t == nil {
		return dao.ErrNilEntity
	}
	return s.store.Save(ctx, t)
}

func (s *Service) Load(ctx context.Context, id string) (*model.Task, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	return s.store.Load(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	return s.store.Delete(ctx, id)
}

// List returns tasks matching the stage parameters in FIFO order.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*model.Task, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	var result []*model.Task
	for _, t := range all {
		if criteria.FilterByStage(t.Stage, parameters) {
			result = append(result, t)
		}
	}
	task.SortFIFO(result)
	return result, nil
}

func (s *Service) Swap(ctx context.Context, t *model.Task, expect model.Stage) error {
	if t == nil {
		return dao.ErrNilEntity
	}
	if t.ID == "" {
		return dao.ErrInvalidID
	}
	return s.store.Update(ctx, t.ID, func(current *model.Task) (*model.Task, error) {
		if current.Stage != expect {
			return nil, dao.ErrConflict
		}
		return t, nil
	})
}

// New creates an empty store.
func New() *Service {
	return &Service{
		store: store.NewMemoryStore[string, model.Task](func(t *model.Task) string { return t.ID }).
			WithCopier((*model.Task).Clone),
	}
}
