// Package task defines the persistence contract for kanban tasks. Concrete
// stores live in the memory, fs and sqlite subpackages.
package task

import (
	"context"
	"sort"

	"github.com/viant/deepresearch/model"
	"github.com/viant/deepresearch/service/dao"
)

// Service persists tasks. Swap is a conditional write: it stores t only when
// the persisted stage still equals expect, otherwise it returns
// dao.ErrConflict.
type Service interface {
	dao.Service[string, model.Task]
	Swap(ctx context.Context, t *model.Task, expect model.Stage) error
}

// SortFIFO orders tasks by creation time then insertion sequence.
func SortFIFO(tasks []*model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Before(tasks[j])
	})
}
