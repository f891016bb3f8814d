package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	sharedCache "github.com/davicafu/hexaquery/internal/shared/infra/platform/cache"
	taskDomain "github.com/davicafu/hexaquery/internal/task/domain"
	"github.com/davicafu/hexaquery/internal/task/infra/outbound/db/memory"
	"github.com/davicafu/hexaquery/pkg/operators"
	sharedDomain "github.com/davicafu/hexaquery/shared/domain"
)

func newService(t *testing.T) (*TaskService, *memory.TaskRepo, *sharedCache.InMemoryCache) {
	t.Helper()
	repo := memory.NewTaskRepo()
	cache := sharedCache.NewInMemoryCache(time.Minute, 0)
	t.Cleanup(cache.Stop)
	return NewTaskService(repo, cache, zap.NewNop()), repo, cache
}

func extract(src map[string]any) *operators.Extraction {
	return operators.Extract(src, &operators.Options{Allow: []string{taskDomain.SearchOperator}})
}

// countingRepo cuenta las llamadas a ListByQuery para comprobar la caché.
type countingRepo struct {
	*memory.TaskRepo
	lists int
}

func (r *countingRepo) ListByQuery(ctx context.Context, c sharedDomain.Criteria, apply operators.ApplyFunc) ([]*taskDomain.Task, error) {
	r.lists++
	return r.TaskRepo.ListByQuery(ctx, c, apply)
}

// flakyRepo falla las primeras n lecturas por id.
type flakyRepo struct {
	*memory.TaskRepo
	failures int
	calls    int
}

func (r *flakyRepo) GetByID(ctx context.Context, id uuid.UUID) (*taskDomain.Task, error) {
	r.calls++
	if r.calls <= r.failures {
		return nil, errors.New("connection reset")
	}
	return r.TaskRepo.GetByID(ctx, id)
}

// -------------------- CRUD --------------------

func TestCreateTask_Success(t *testing.T) {
	// Arrange
	service, repo, _ := newService(t)
	assigneeID := uuid.New()

	// Act
	task, err := service.CreateTask(context.Background(), "Mi primera tarea", "Hacer algo importante", assigneeID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "Mi primera tarea", task.Title)
	assert.Equal(t, taskDomain.TaskPending, task.Status)

	stored, err := repo.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, assigneeID, stored.AssigneeID)
}

func TestCreateTask_Invalid(t *testing.T) {
	service, _, _ := newService(t)

	_, err := service.CreateTask(context.Background(), "", "sin título", uuid.New())

	assert.ErrorIs(t, err, taskDomain.ErrInvalidTask)
}

func TestUpdateTask_Success(t *testing.T) {
	// Arrange
	service, repo, _ := newService(t)
	task, err := service.CreateTask(context.Background(), "Tarea original", "desc", uuid.New())
	require.NoError(t, err)
	task.Update("Título actualizado", "desc")
	task.Complete()

	// Act
	err = service.UpdateTask(context.Background(), task)

	// Assert
	require.NoError(t, err)
	updated, _ := repo.GetByID(context.Background(), task.ID)
	assert.Equal(t, "Título actualizado", updated.Title)
	assert.Equal(t, taskDomain.TaskCompleted, updated.Status)
}

func TestUpdateTask_NotFound(t *testing.T) {
	service, _, _ := newService(t)

	err := service.UpdateTask(context.Background(), &taskDomain.Task{ID: uuid.New(), Title: "x", Status: taskDomain.TaskPending})

	assert.ErrorIs(t, err, taskDomain.ErrTaskNotFound)
}

func TestDeleteTask_Success(t *testing.T) {
	// Arrange
	service, repo, _ := newService(t)
	task, _ := service.CreateTask(context.Background(), "Tarea a borrar", "desc", uuid.New())

	// Act
	err := service.DeleteTask(context.Background(), task.ID)

	// Assert
	require.NoError(t, err)
	_, err = repo.GetByID(context.Background(), task.ID)
	assert.ErrorIs(t, err, taskDomain.ErrTaskNotFound)
}

// -------------------- GetTask con Cache --------------------

func TestGetTask_NotFound(t *testing.T) {
	service, _, _ := newService(t)

	_, err := service.GetTaskByID(context.Background(), uuid.New())

	assert.ErrorIs(t, err, taskDomain.ErrTaskNotFound)
}

func TestGetTask_CacheHit(t *testing.T) {
	// Arrange: la tarea solo está en caché
	service, _, cache := newService(t)
	taskID := uuid.New()
	require.NoError(t, cache.Set(context.Background(), taskDomain.TaskCacheKeyByID(taskID), &taskDomain.Task{ID: taskID, Title: "Tarea en caché"}, 60))

	// Act
	fetched, err := service.GetTaskByID(context.Background(), taskID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "Tarea en caché", fetched.Title)
}

func TestGetTask_CacheMiss(t *testing.T) {
	// Arrange
	service, repo, cache := newService(t)
	task := &taskDomain.Task{ID: uuid.New(), Title: "Tarea en repo", Status: taskDomain.TaskPending}
	require.NoError(t, repo.Create(context.Background(), task))

	// Act
	fetched, err := service.GetTaskByID(context.Background(), task.ID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, task.ID, fetched.ID)
	assert.Eventually(t, func() bool {
		var cached taskDomain.Task
		hit, _ := cache.Get(context.Background(), taskDomain.TaskCacheKeyByID(task.ID), &cached)
		return hit
	}, time.Second, 10*time.Millisecond, "la caché debería poblarse tras el miss")
}

func TestGetTask_RetriesTransientErrors(t *testing.T) {
	repo := &flakyRepo{TaskRepo: memory.NewTaskRepo(), failures: 2}
	task := &taskDomain.Task{ID: uuid.New(), Title: "Tarea", Status: taskDomain.TaskPending}
	require.NoError(t, repo.Create(context.Background(), task))
	service := NewTaskService(repo, nil, zap.NewNop())

	fetched, err := service.GetTaskByID(context.Background(), task.ID)

	require.NoError(t, err)
	assert.Equal(t, task.ID, fetched.ID)
	assert.Equal(t, 3, repo.calls)
}

// ----------------- ListTasks con operadores -----------------

func TestListTasks_PaginationAndSorting(t *testing.T) {
	// Arrange
	repo := memory.NewTaskRepo()
	service := NewTaskService(repo, nil, zap.NewNop())
	now := time.Now().UTC()
	for i, title := range []string{"A - Tarea Alfa", "B - Tarea Beta", "C - Tarea Gamma", "D - Tarea Delta", "E - Tarea Epsilon"} {
		require.NoError(t, repo.Create(context.Background(), &taskDomain.Task{
			ID: uuid.New(), Title: title, Status: taskDomain.TaskPending,
			CreatedAt: now.Add(time.Duration(i-5) * time.Hour),
		}))
	}

	// Act: página 1 de tamaño 2, más recientes primero
	results, err := service.ListTasks(context.Background(), nil, extract(map[string]any{
		"$sort": "-createdAt", "$page": "1", "$limit": "2",
	}))

	// Assert
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "C - Tarea Gamma", results[0].Title)
	assert.Equal(t, "B - Tarea Beta", results[1].Title)
}

func TestListPendingTasksForUser_Filtering(t *testing.T) {
	// Arrange
	repo := memory.NewTaskRepo()
	service := NewTaskService(repo, nil, zap.NewNop())
	userA, userB := uuid.New(), uuid.New()
	for _, task := range []*taskDomain.Task{
		{ID: uuid.New(), Title: "a1", AssigneeID: userA, Status: taskDomain.TaskPending},
		{ID: uuid.New(), Title: "a2", AssigneeID: userA, Status: taskDomain.TaskCompleted},
		{ID: uuid.New(), Title: "b1", AssigneeID: userB, Status: taskDomain.TaskPending},
	} {
		require.NoError(t, repo.Create(context.Background(), task))
	}

	// Act
	results, err := service.ListPendingTasksForUser(context.Background(), userA, extract(map[string]any{"$limit": 10}))

	// Assert
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, userA, results[0].AssigneeID)
	assert.Equal(t, taskDomain.TaskPending, results[0].Status)
}

func TestListTasks_NilExtraction(t *testing.T) {
	repo := memory.NewTaskRepo()
	service := NewTaskService(repo, nil, zap.NewNop())
	require.NoError(t, repo.Create(context.Background(), &taskDomain.Task{ID: uuid.New(), Title: "x", Status: taskDomain.TaskPending}))

	results, err := service.ListTasks(context.Background(), nil, nil)

	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestListTasks_InvalidOperator(t *testing.T) {
	service, _, _ := newService(t)

	_, err := service.ListTasks(context.Background(), nil, extract(map[string]any{"$search": 7}))

	var opErr operators.InvalidOperatorError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, taskDomain.SearchOperator, opErr.Operator)
}

func TestRegisterAssignee(t *testing.T) {
	service, repo, _ := newService(t)
	task, err := service.CreateTask(context.Background(), "Tarea", "", uuid.New())
	require.NoError(t, err)

	a, err := service.RegisterAssignee(context.Background(), "ana@example.com", "Ana")
	require.NoError(t, err)
	task.AssigneeID = a.ID
	require.NoError(t, repo.Update(context.Background(), task))

	tasks, err := service.ListTasks(context.Background(), nil, extract(map[string]any{"$populate": "assignee"}))
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.NotNil(t, tasks[0].Assignee)
	assert.Equal(t, "Ana", tasks[0].Assignee.Name)
}

func TestRegisterAssignee_Errors(t *testing.T) {
	service, _, _ := newService(t)
	_, err := service.RegisterAssignee(context.Background(), "", "Ana")
	assert.ErrorIs(t, err, taskDomain.ErrInvalidAssignee)

	// Un repositorio sin directorio de usuarios.
	bare := NewTaskService(struct{ taskDomain.TaskRepository }{memory.NewTaskRepo()}, nil, zap.NewNop())
	_, err = bare.RegisterAssignee(context.Background(), "ana@example.com", "Ana")
	assert.ErrorIs(t, err, taskDomain.ErrNoAssigneeStore)
}

func TestListTasks_CachedUntilWrite(t *testing.T) {
	// Arrange
	repo := &countingRepo{TaskRepo: memory.NewTaskRepo()}
	cache := sharedCache.NewInMemoryCache(time.Minute, 0)
	t.Cleanup(cache.Stop)
	service := NewTaskService(repo, cache, zap.NewNop())
	ctx := context.Background()
	_, err := service.CreateTask(ctx, "Primera", "", uuid.New())
	require.NoError(t, err)
	query := map[string]any{"$sort": "title", "$limit": "5"}

	// Act: la primera lectura va al repo; la segunda, cuando la caché ya
	// está poblada, no.
	first, err := service.ListTasks(ctx, nil, extract(query))
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Eventually(t, func() bool {
		before := repo.lists
		_, err := service.ListTasks(ctx, nil, extract(query))
		return err == nil && repo.lists == before
	}, time.Second, 10*time.Millisecond)

	// Una escritura invalida los listados.
	_, err = service.CreateTask(ctx, "Segunda", "", uuid.New())
	require.NoError(t, err)
	after, err := service.ListTasks(ctx, nil, extract(query))

	// Assert
	require.NoError(t, err)
	assert.Len(t, after, 2)
}
