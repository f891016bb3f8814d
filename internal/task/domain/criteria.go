package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	shared "github.com/davicafu/hexaquery/shared/domain"
)

// Campos de Task sobre los que se puede filtrar u ordenar. Cada adaptador
// los traduce a sus propios nombres de columna.
const (
	FieldID          = "id"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldAssigneeID  = "assigneeId"
	FieldStatus      = "status"
	FieldCreatedAt   = "createdAt"
	FieldUpdatedAt   = "updatedAt"
)

// Fields lista los campos conocidos de Task.
var Fields = []string{FieldID, FieldTitle, FieldDescription, FieldAssigneeID, FieldStatus, FieldCreatedAt, FieldUpdatedAt}

// --- Criterios Específicos para el Dominio Task ---

// StatusCriteria busca tareas por su estado (pending, completed, etc.).
type StatusCriteria struct {
	Status TaskStatus
}

// ToConditions implementa la interfaz shared.Criteria.
func (c StatusCriteria) ToConditions() []shared.Criterion {
	return []shared.Criterion{
		{Field: FieldStatus, Op: shared.OpEq, Value: c.Status},
	}
}

// -----------------------------------------------------------

// AssigneeIDCriteria busca tareas asignadas a un usuario específico.
type AssigneeIDCriteria struct {
	ID uuid.UUID
}

// ToConditions implementa la interfaz shared.Criteria.
func (c AssigneeIDCriteria) ToConditions() []shared.Criterion {
	return []shared.Criterion{
		{Field: FieldAssigneeID, Op: shared.OpEq, Value: c.ID},
	}
}

// -----------------------------------------------------------

// TitleLikeCriteria busca tareas cuyo título contenga un texto.
type TitleLikeCriteria struct {
	Title string
}

// ToConditions implementa la interfaz shared.Criteria.
func (c TitleLikeCriteria) ToConditions() []shared.Criterion {
	return []shared.Criterion{
		// ILIKE para búsquedas insensibles a mayúsculas/minúsculas
		{Field: FieldTitle, Op: shared.OpILike, Value: "%" + c.Title + "%"},
	}
}

// -----------------------------------------------------------

// CreatedAtRangeCriteria busca tareas creadas en un rango de fechas.
type CreatedAtRangeCriteria struct {
	Start *time.Time
	End   *time.Time
}

// ToConditions implementa la interfaz shared.Criteria.
func (c CreatedAtRangeCriteria) ToConditions() []shared.Criterion {
	var conds []shared.Criterion
	if c.Start != nil {
		conds = append(conds, shared.Criterion{Field: FieldCreatedAt, Op: shared.OpGte, Value: *c.Start})
	}
	if c.End != nil {
		conds = append(conds, shared.Criterion{Field: FieldCreatedAt, Op: shared.OpLte, Value: *c.End})
	}
	return conds
}

// -----------------------------------------------------------

// CriteriaFromParams traduce los parámetros que quedan tras extraer los
// operadores ("title", "status", "assigneeId", "createdFrom", "createdTo")
// a criterios. Las claves desconocidas se ignoran.
func CriteriaFromParams(params map[string]any) (shared.Criteria, error) {
	var criterias []shared.Criteria

	if title := stringParam(params, "title"); title != "" {
		criterias = append(criterias, TitleLikeCriteria{Title: title})
	}
	if status := stringParam(params, "status"); status != "" {
		if !TaskStatus(status).Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTask, status)
		}
		criterias = append(criterias, StatusCriteria{Status: TaskStatus(status)})
	}
	if assignee := stringParam(params, "assigneeId"); assignee != "" {
		id, err := uuid.Parse(assignee)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid assigneeId: %v", ErrInvalidTask, err)
		}
		criterias = append(criterias, AssigneeIDCriteria{ID: id})
	}

	var rng CreatedAtRangeCriteria
	for key, dst := range map[string]**time.Time{"createdFrom": &rng.Start, "createdTo": &rng.End} {
		raw := stringParam(params, key)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid %s: %v", ErrInvalidTask, key, err)
		}
		*dst = &ts
	}
	if rng.Start != nil || rng.End != nil {
		criterias = append(criterias, rng)
	}

	return shared.And(criterias...), nil
}

// stringParam devuelve el primer valor de un parámetro como string.
func stringParam(params map[string]any, key string) string {
	switch v := params[key].(type) {
	case string:
		return v
	case []any:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	}
	return ""
}
