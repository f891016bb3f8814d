package domain

import (
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Valid indica si el estado es uno de los conocidos.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskCompleted, TaskFailed:
		return true
	}
	return false
}

type Task struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	AssigneeID  uuid.UUID  `json:"assigneeId"`
	Status      TaskStatus `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	// Assignee solo se rellena con $populate=assignee.
	Assignee *Assignee `json:"assignee,omitempty"`
}

// Assignee es la vista de usuario que se puede poblar en una tarea.
type Assignee struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
}

// --- Métodos de dominio ---
func (t *Task) Complete() {
	t.Status = TaskCompleted
	t.UpdatedAt = time.Now()
}

func (t *Task) Fail() {
	t.Status = TaskFailed
	t.UpdatedAt = time.Now()
}

func (t *Task) Update(title, description string) {
	t.Title = title
	t.Description = description
	t.UpdatedAt = time.Now()
}

// Validate comprueba los invariantes mínimos antes de persistir.
func (t *Task) Validate() error {
	if t.Title == "" || !t.Status.Valid() {
		return ErrInvalidTask
	}
	return nil
}
