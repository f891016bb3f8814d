package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	taskDomain "github.com/davicafu/hexaquery/internal/task/domain"
	"github.com/davicafu/hexaquery/pkg/operators"
	sharedDomain "github.com/davicafu/hexaquery/shared/domain"
)

// TaskRepo implementa TaskRepository en memoria. Sirve para desarrollo local
// y para los tests de servicio y HTTP.
type TaskRepo struct {
	mu        sync.RWMutex
	tasks     map[uuid.UUID]*taskDomain.Task
	order     []uuid.UUID // orden de inserción
	assignees map[uuid.UUID]taskDomain.Assignee
}

var (
	_ taskDomain.TaskRepository    = (*TaskRepo)(nil)
	_ taskDomain.AssigneeDirectory = (*TaskRepo)(nil)
)

func NewTaskRepo() *TaskRepo {
	return &TaskRepo{
		tasks:     make(map[uuid.UUID]*taskDomain.Task),
		assignees: make(map[uuid.UUID]taskDomain.Assignee),
	}
}

// SaveAssignee registra un usuario que se puede poblar con $populate=assignee.
func (r *TaskRepo) SaveAssignee(ctx context.Context, a taskDomain.Assignee) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assignees[a.ID] = a
	return nil
}

func (r *TaskRepo) Create(ctx context.Context, t *taskDomain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[t.ID]; ok {
		return taskDomain.ErrTaskAlreadyExists
	}
	cp := *t
	r.tasks[t.ID] = &cp
	r.order = append(r.order, t.ID)
	return nil
}

func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*taskDomain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, taskDomain.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *TaskRepo) Update(ctx context.Context, t *taskDomain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[t.ID]; !ok {
		return taskDomain.ErrTaskNotFound
	}
	cp := *t
	cp.Assignee = nil
	r.tasks[t.ID] = &cp
	return nil
}

func (r *TaskRepo) DeleteByID(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return taskDomain.ErrTaskNotFound
	}
	delete(r.tasks, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *TaskRepo) ListByQuery(ctx context.Context, criteria sharedDomain.Criteria, apply operators.ApplyFunc) ([]*taskDomain.Task, error) {
	var b operators.Builder = NewQueryBuilder(criteria)
	if apply != nil {
		var err error
		if b, err = apply(b); err != nil {
			return nil, err
		}
	}
	qb, ok := b.(*QueryBuilder)
	if !ok {
		return nil, fmt.Errorf("memory: unexpected builder %T", b)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*taskDomain.Task, 0, len(r.order))
	for _, id := range r.order {
		all = append(all, r.tasks[id])
	}
	return qb.Run(all, r.assignees)
}
