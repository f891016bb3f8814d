package application

import (
	"context"
	"errors"
	"time"

	sharedCache "github.com/davicafu/hexaquery/internal/shared/infra/platform/cache"
	taskDomain "github.com/davicafu/hexaquery/internal/task/domain"
	"github.com/davicafu/hexaquery/pkg/operators"
	sharedDomain "github.com/davicafu/hexaquery/shared/domain"
	sharedUtils "github.com/davicafu/hexaquery/shared/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TTLs de caché en segundos.
const (
	taskCacheTTL = 120
	listCacheTTL = 30
)

// listGenerationKey guarda la generación vigente de los listados; cambiarla
// invalida todas las claves de listado de golpe.
var listGenerationKey = taskDomain.TaskListCachePrefix + ":gen"

// TaskService define los casos de uso relacionados con Task.
// Incorpora repositorio, caché y logger.
type TaskService struct {
	repo  taskDomain.TaskRepository
	cache sharedCache.Cache
	log   *zap.Logger
}

// NewTaskService es el constructor para el servicio de tareas. cache puede ser nil.
func NewTaskService(repo taskDomain.TaskRepository, cache sharedCache.Cache, log *zap.Logger) *TaskService {
	return &TaskService{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// CreateTask crea una nueva tarea pendiente y la guarda en caché.
func (s *TaskService) CreateTask(ctx context.Context, title, description string, assigneeID uuid.UUID) (*taskDomain.Task, error) {
	now := time.Now().UTC()
	task := &taskDomain.Task{
		ID:          uuid.New(),
		Title:       title,
		Description: description,
		AssigneeID:  assigneeID,
		Status:      taskDomain.TaskPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := task.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, task); err != nil {
		s.log.Error("Failed to create task", zap.Error(err))
		return nil, err
	}

	s.invalidateLists(ctx)
	sharedCache.AsyncCacheSet(s.cache, taskDomain.TaskCacheKeyByID(task.ID), task, taskCacheTTL, s.log)

	return task, nil
}

// UpdateTask persiste la tarea y refresca la caché.
func (s *TaskService) UpdateTask(ctx context.Context, t *taskDomain.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, t); err != nil {
		return err
	}

	s.invalidateLists(ctx)
	sharedCache.AsyncCacheSet(s.cache, taskDomain.TaskCacheKeyByID(t.ID), t, taskCacheTTL, s.log)

	return nil
}

// DeleteTask elimina una tarea y limpia la caché.
func (s *TaskService) DeleteTask(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return err
	}

	s.invalidateLists(ctx)
	sharedCache.AsyncCacheDelete(s.cache, taskDomain.TaskCacheKeyByID(id), s.log)

	return nil
}

// GetTaskByID obtiene una tarea, usando el patrón cache-aside con reintentos.
func (s *TaskService) GetTaskByID(ctx context.Context, id uuid.UUID) (*taskDomain.Task, error) {
	// 1. Intentar obtener de la caché
	if s.cache != nil {
		var t taskDomain.Task
		if hit, _ := s.cache.Get(ctx, taskDomain.TaskCacheKeyByID(id), &t); hit {
			return &t, nil
		}
	}

	// 2. Si es 'miss', ir al repositorio con reintentos. Un not found no se reintenta.
	var task *taskDomain.Task
	err := sharedUtils.RetryIf(ctx, 3, 100*time.Millisecond, isTransient, func() error {
		var errRetry error
		task, errRetry = s.repo.GetByID(ctx, id)
		return errRetry
	})

	if err != nil {
		if errors.Is(err, taskDomain.ErrTaskNotFound) {
			s.log.Warn("Task not found", zap.String("task_id", id.String()))
		} else {
			s.log.Error("Failed to fetch task", zap.String("task_id", id.String()), zap.Error(err))
		}
		return nil, err
	}

	// 3. Actualizar caché en segundo plano para la próxima vez
	sharedCache.AsyncCacheSet(s.cache, taskDomain.TaskCacheKeyByID(task.ID), task, taskCacheTTL, s.log)

	return task, nil
}

// ListTasks filtra por criteria y aplica los operadores de ex. Los resultados
// se cachean por criterios + operadores hasta la siguiente escritura.
func (s *TaskService) ListTasks(ctx context.Context, criteria sharedDomain.Criteria, ex *operators.Extraction) ([]*taskDomain.Task, error) {
	key := s.listKey(ctx, criteria, ex)
	if key != "" {
		var cached []*taskDomain.Task
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return cached, nil
		}
	}

	var apply operators.ApplyFunc
	if ex != nil {
		apply = ex.Apply
	}
	tasks, err := s.repo.ListByQuery(ctx, criteria, apply)
	if err != nil {
		var opErr operators.InvalidOperatorError
		if !errors.As(err, &opErr) {
			s.log.Error("Failed to list tasks", zap.Error(err))
		}
		return nil, err
	}

	if key != "" {
		sharedCache.AsyncCacheSet(s.cache, key, tasks, listCacheTTL, s.log)
	}
	return tasks, nil
}

// RegisterAssignee da de alta un usuario que se podrá poblar en las tareas.
// Falla con ErrNoAssigneeStore si el repositorio no guarda usuarios.
func (s *TaskService) RegisterAssignee(ctx context.Context, email, name string) (*taskDomain.Assignee, error) {
	dir, ok := s.repo.(taskDomain.AssigneeDirectory)
	if !ok {
		return nil, taskDomain.ErrNoAssigneeStore
	}
	if email == "" || name == "" {
		return nil, taskDomain.ErrInvalidAssignee
	}

	a := &taskDomain.Assignee{ID: uuid.New(), Email: email, Name: name}
	if err := dir.SaveAssignee(ctx, *a); err != nil {
		s.log.Error("Failed to save assignee", zap.Error(err))
		return nil, err
	}
	// Los listados con $populate pueden cambiar.
	s.invalidateLists(ctx)
	return a, nil
}

// ListPendingTasksForUser lista las tareas pendientes de un usuario.
func (s *TaskService) ListPendingTasksForUser(ctx context.Context, userID uuid.UUID, ex *operators.Extraction) ([]*taskDomain.Task, error) {
	criteria := sharedDomain.And(
		taskDomain.StatusCriteria{Status: taskDomain.TaskPending},
		taskDomain.AssigneeIDCriteria{ID: userID},
	)
	return s.ListTasks(ctx, criteria, ex)
}

// listKey devuelve "" si no hay caché o la consulta no se puede serializar.
func (s *TaskService) listKey(ctx context.Context, criteria sharedDomain.Criteria, ex *operators.Extraction) string {
	if s.cache == nil {
		return ""
	}
	var ops operators.Operators
	if ex != nil {
		ops = ex.Operators
	}
	gen := sharedCache.Generation(ctx, s.cache, listGenerationKey)
	key, err := sharedCache.QueryKey(taskDomain.TaskListCachePrefix+":"+gen, sharedDomain.Conditions(criteria), ops)
	if err != nil {
		s.log.Debug("List not cacheable", zap.Error(err))
		return ""
	}
	return key
}

func isTransient(err error) bool {
	return !errors.Is(err, taskDomain.ErrTaskNotFound)
}

func (s *TaskService) invalidateLists(ctx context.Context) {
	if s.cache == nil {
		return
	}
	sharedCache.Bump(ctx, s.cache, listGenerationKey)
}
