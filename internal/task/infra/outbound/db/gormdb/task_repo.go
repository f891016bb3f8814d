// Package gormdb implementa TaskRepository con gorm (SQLite o PostgreSQL).
package gormdb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	sharedGorm "github.com/davicafu/hexaquery/internal/shared/infra/platform/db/gormdb"
	taskDomain "github.com/davicafu/hexaquery/internal/task/domain"
	"github.com/davicafu/hexaquery/pkg/operators"
	sharedDomain "github.com/davicafu/hexaquery/shared/domain"
)

// TaskRepoGorm implementa la interfaz TaskRepository sobre gorm.
type TaskRepoGorm struct {
	db *gorm.DB
}

var (
	_ taskDomain.TaskRepository    = (*TaskRepoGorm)(nil)
	_ taskDomain.AssigneeDirectory = (*TaskRepoGorm)(nil)
)

func NewTaskRepoGorm(db *gorm.DB) *TaskRepoGorm {
	return &TaskRepoGorm{db: db}
}

// Migrate crea las tablas tasks y users.
func (r *TaskRepoGorm) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&userModel{}, &taskModel{})
}

// ------------------ Modelos ------------------

type taskModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Title       string    `gorm:"not null"`
	Description string
	AssigneeID  uuid.UUID `gorm:"type:uuid;index"`
	Status      string    `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Assignee *userModel `gorm:"foreignKey:AssigneeID"`
}

func (taskModel) TableName() string { return "tasks" }

type userModel struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email string
	Name  string
}

func (userModel) TableName() string { return "users" }

// taskColumns es la lista blanca de campos de dominio -> columna.
var taskColumns = map[string]string{
	taskDomain.FieldID:          "id",
	taskDomain.FieldTitle:       "title",
	taskDomain.FieldDescription: "description",
	taskDomain.FieldAssigneeID:  "assignee_id",
	taskDomain.FieldStatus:      "status",
	taskDomain.FieldCreatedAt:   "created_at",
	taskDomain.FieldUpdatedAt:   "updated_at",
}

var taskRelations = map[string]sharedGorm.Relation{
	taskDomain.PopulateAssignee: {Association: "Assignee", ForeignKey: "assignee_id"},
}

// ------------------ CRUD ------------------

func (r *TaskRepoGorm) Create(ctx context.Context, t *taskDomain.Task) error {
	err := r.db.WithContext(ctx).Omit("Assignee").Create(toTaskModel(t)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return taskDomain.ErrTaskAlreadyExists
	}
	return err
}

func (r *TaskRepoGorm) Update(ctx context.Context, t *taskDomain.Task) error {
	res := r.db.WithContext(ctx).Model(&taskModel{}).Where("id = ?", t.ID).Updates(map[string]any{
		"title":       t.Title,
		"description": t.Description,
		"assignee_id": t.AssigneeID,
		"status":      string(t.Status),
		"updated_at":  t.UpdatedAt,
	})
	if res.Error != nil {
		return fmt.Errorf("db error: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return taskDomain.ErrTaskNotFound
	}
	return nil
}

func (r *TaskRepoGorm) DeleteByID(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&taskModel{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("db error: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return taskDomain.ErrTaskNotFound
	}
	return nil
}

// ------------------ Lectura ------------------

func (r *TaskRepoGorm) GetByID(ctx context.Context, id uuid.UUID) (*taskDomain.Task, error) {
	var m taskModel
	err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, taskDomain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("db scan error: %w", err)
	}
	return fromTaskModel(&m), nil
}

// ListByQuery filtra por criteria y deja que apply ordene, pagine, proyecte
// y precargue relaciones sobre el builder de gorm.
func (r *TaskRepoGorm) ListByQuery(ctx context.Context, criteria sharedDomain.Criteria, apply operators.ApplyFunc) ([]*taskDomain.Task, error) {
	b, err := r.buildQuery(ctx, criteria, apply)
	if err != nil {
		return nil, err
	}

	var models []taskModel
	if err := b.Find(&models); err != nil {
		return nil, err
	}

	tasks := make([]*taskDomain.Task, len(models))
	for i := range models {
		tasks[i] = fromTaskModel(&models[i])
	}
	return tasks, nil
}

// NewTaskBuilder prepara el builder de tareas con los filtros de criteria y
// el operador $search.
func NewTaskBuilder(db *gorm.DB, criteria sharedDomain.Criteria) (*sharedGorm.Builder, error) {
	b := sharedGorm.NewBuilder(db.Model(&taskModel{}), taskColumns, taskRelations)

	for _, c := range sharedDomain.Conditions(criteria) {
		col, ok := b.Column(c.Field)
		if !ok {
			return nil, fmt.Errorf("unknown filter field %q", c.Field)
		}
		if !c.Op.Valid() {
			return nil, fmt.Errorf("unsupported operator %q", c.Op)
		}
		switch c.Op {
		case sharedDomain.OpILike:
			// SQLite no tiene ILIKE.
			b = b.Where(fmt.Sprintf("LOWER(%s) LIKE ? ESCAPE '\\'", col), containsPattern(strings.ToLower(likeText(c.Value))))
			continue
		case sharedDomain.OpLike:
			b = b.Where(fmt.Sprintf("%s LIKE ? ESCAPE '\\'", col), containsPattern(likeText(c.Value)))
			continue
		}
		b = b.Where(fmt.Sprintf("%s %s ?", col, c.Op), sqlValue(c.Value))
	}

	b.Register(operators.Extension{
		Name: operators.MethodName(taskDomain.SearchOperator),
		Validate: func(v any) error {
			if _, ok := v.(string); !ok {
				return fmt.Errorf("search expects a string, got %T", v)
			}
			return nil
		},
		Apply: func(ob operators.Builder, v any) (operators.Builder, error) {
			q := containsPattern(strings.ToLower(v.(string)))
			return ob.(*sharedGorm.Builder).Where("LOWER(title) LIKE ? ESCAPE '\\'", q), nil
		},
	})
	return b, nil
}

func (r *TaskRepoGorm) buildQuery(ctx context.Context, criteria sharedDomain.Criteria, apply operators.ApplyFunc) (*sharedGorm.Builder, error) {
	b, err := NewTaskBuilder(r.db.WithContext(ctx), criteria)
	if err != nil {
		return nil, err
	}
	if apply == nil {
		return b, nil
	}

	out, err := apply(b)
	if err != nil {
		return nil, err
	}
	gb, ok := out.(*sharedGorm.Builder)
	if !ok {
		return nil, fmt.Errorf("gormdb: unexpected builder %T", out)
	}
	return gb, nil
}

// likeEscaper escapa los comodines de LIKE para que el texto se compare literalmente.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// containsPattern devuelve el patrón LIKE "contiene s", con s literal.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// likeText quita los % con los que los criterios envuelven el texto, igual
// que los adaptadores de Mongo y memoria.
func likeText(v any) string {
	return strings.Trim(fmt.Sprint(v), "%")
}

// ------------------ Mapeo ------------------

// sqlValue pasa los tipos de dominio a tipos que entiende el driver.
func sqlValue(v any) any {
	if s, ok := v.(taskDomain.TaskStatus); ok {
		return string(s)
	}
	return v
}

func toTaskModel(t *taskDomain.Task) *taskModel {
	return &taskModel{
		ID: t.ID, Title: t.Title, Description: t.Description, AssigneeID: t.AssigneeID,
		Status: string(t.Status), CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt,
	}
}

func fromTaskModel(m *taskModel) *taskDomain.Task {
	t := &taskDomain.Task{
		ID: m.ID, Title: m.Title, Description: m.Description, AssigneeID: m.AssigneeID,
		Status: taskDomain.TaskStatus(m.Status), CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}
	if m.Assignee != nil {
		t.Assignee = &taskDomain.Assignee{ID: m.Assignee.ID, Email: m.Assignee.Email, Name: m.Assignee.Name}
	}
	return t
}

// SaveAssignee inserta o actualiza un usuario poblable.
func (r *TaskRepoGorm) SaveAssignee(ctx context.Context, a taskDomain.Assignee) error {
	return r.db.WithContext(ctx).Save(&userModel{ID: a.ID, Email: a.Email, Name: a.Name}).Error
}
