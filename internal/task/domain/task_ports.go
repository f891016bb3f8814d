package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/davicafu/hexaquery/pkg/operators"
	sharedDomain "github.com/davicafu/hexaquery/shared/domain"
	"github.com/google/uuid"
)

var (
	ErrTaskNotFound       = errors.New("task not found")
	ErrTaskAlreadyExists  = errors.New("task already exists")
	ErrInvalidTask        = errors.New("invalid task")
	ErrTaskCannotComplete = errors.New("task cannot be marked as completed")
	ErrInvalidAssignee    = errors.New("invalid assignee")
	ErrNoAssigneeStore    = errors.New("backend does not store assignees")
)

// Operadores propios que entienden todos los repositorios de tareas.
const (
	SearchOperator = "$search" // búsqueda por título, sin distinguir mayúsculas
)

// PopulateAssignee es la única relación que se puede poblar.
const PopulateAssignee = "assignee"

// --- Repositorio de Tasks ---
type TaskRepository interface {
	Create(ctx context.Context, t *Task) error
	Update(ctx context.Context, t *Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*Task, error)
	// ListByQuery filtra por criteria y aplica los operadores de consulta
	// (orden, paginación, proyección y relaciones) mediante apply.
	ListByQuery(ctx context.Context, criteria sharedDomain.Criteria, apply operators.ApplyFunc) ([]*Task, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

// AssigneeDirectory lo implementan los repositorios que guardan también los
// usuarios que carga $populate=assignee.
type AssigneeDirectory interface {
	SaveAssignee(ctx context.Context, a Assignee) error
}

// ---------- Helpers comunes (cache keys, etc.) ----------

func TaskCacheKeyByID(id uuid.UUID) string {
	return fmt.Sprintf("task:id:%s", id.String())
}

// TaskListCachePrefix agrupa las claves de listados cacheados.
const TaskListCachePrefix = "task:list"
