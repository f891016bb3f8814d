package memory

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	taskDomain "github.com/davicafu/hexaquery/internal/task/domain"
	"github.com/davicafu/hexaquery/pkg/operators"
	sharedDomain "github.com/davicafu/hexaquery/shared/domain"
	sharedQuery "github.com/davicafu/hexaquery/shared/platform/query"
)

// QueryBuilder implementa operators.Builder sobre un slice de tareas.
type QueryBuilder struct {
	operators.Extensions

	conds      []sharedDomain.Criterion
	search     []string
	sorts      []sharedQuery.Sort
	offset     int
	limit      int // 0 = sin límite
	projection *sharedQuery.Projection
	populate   bool
	ops        operators.Operators
	errs       []error
}

var (
	_ operators.Builder     = (*QueryBuilder)(nil)
	_ operators.Extender    = (*QueryBuilder)(nil)
	_ operators.Inspectable = (*QueryBuilder)(nil)
)

// NewQueryBuilder crea un builder con el operador $search registrado.
func NewQueryBuilder(criteria sharedDomain.Criteria) *QueryBuilder {
	b := &QueryBuilder{conds: sharedDomain.Conditions(criteria)}
	b.Register(operators.Extension{
		Name:     operators.MethodName(taskDomain.SearchOperator),
		Validate: validateSearch,
		Apply: func(ob operators.Builder, v any) (operators.Builder, error) {
			qb := ob.(*QueryBuilder)
			qb.search = append(qb.search, strings.ToLower(fmt.Sprint(v)))
			return qb, nil
		},
	})
	return b
}

func validateSearch(v any) error {
	if _, ok := v.(string); !ok {
		return fmt.Errorf("search expects a string, got %T", v)
	}
	return nil
}

func (b *QueryBuilder) Sort(value any) operators.Builder {
	sorts, err := sharedQuery.ParseSort(value)
	if err != nil {
		b.fail(operators.OpSort, err)
		return b
	}
	for _, s := range sorts {
		if !known(s.Field) {
			b.fail(operators.OpSort, fmt.Errorf("unknown field %q", s.Field))
			continue
		}
		b.sorts = append(b.sorts, s)
	}
	return b
}

func (b *QueryBuilder) Skip(n float64) operators.Builder {
	if !operators.IsFinite(n) || n < 0 {
		return b
	}
	v, ok := operators.Int(n)
	if !ok {
		b.fail(operators.OpSkip, operators.ErrOutOfRange)
		return b
	}
	b.offset = int(v)
	return b
}

func (b *QueryBuilder) Limit(n float64) operators.Builder {
	if !operators.IsFinite(n) || n < 0 {
		return b
	}
	v, ok := operators.Int(n)
	if !ok {
		b.fail(operators.OpLimit, operators.ErrOutOfRange)
		return b
	}
	b.limit = int(v)
	return b
}

func (b *QueryBuilder) Select(value any) operators.Builder {
	p := sharedQuery.ParseProjection(value)
	for _, f := range append(append([]string{}, p.Include...), p.Exclude...) {
		if !known(f) {
			b.fail(operators.OpSelect, fmt.Errorf("unknown field %q", f))
			return b
		}
	}
	b.projection = &p
	return b
}

func (b *QueryBuilder) Populate(value any) operators.Builder {
	for _, path := range sharedQuery.ParsePaths(value) {
		if path != taskDomain.PopulateAssignee {
			b.fail(operators.OpPopulate, fmt.Errorf("unknown path %q", path))
			continue
		}
		b.populate = true
	}
	return b
}

func (b *QueryBuilder) SetOperators(ops operators.Operators) {
	b.ops = ops
}

// Operators devuelve los operadores aplicados.
func (b *QueryBuilder) Operators() operators.Operators {
	return b.ops
}

func (b *QueryBuilder) Err() error {
	return errors.Join(b.errs...)
}

func (b *QueryBuilder) fail(op string, err error) {
	b.errs = append(b.errs, operators.InvalidOperatorError{Operator: op, Err: err})
}

// Run filtra, ordena, pagina y proyecta tasks. Las tareas devueltas son copias.
func (b *QueryBuilder) Run(tasks []*taskDomain.Task, assignees map[uuid.UUID]taskDomain.Assignee) ([]*taskDomain.Task, error) {
	if err := b.Err(); err != nil {
		return nil, err
	}

	var list []*taskDomain.Task
	for _, t := range tasks {
		if b.match(t) {
			list = append(list, t)
		}
	}

	sorts := b.sorts
	if len(sorts) == 0 {
		sorts = []sharedQuery.Sort{{Field: taskDomain.FieldID}}
	}
	sort.SliceStable(list, func(i, j int) bool {
		for _, s := range sorts {
			c := compareTasks(list[i], list[j], s.Field)
			if c == 0 {
				continue
			}
			if s.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})

	if b.offset >= len(list) {
		return []*taskDomain.Task{}, nil
	}
	list = list[b.offset:]
	if b.limit > 0 && b.limit < len(list) {
		list = list[:b.limit]
	}

	out := make([]*taskDomain.Task, len(list))
	for i, t := range list {
		cp := *t
		if b.populate {
			if a, ok := assignees[t.AssigneeID]; ok {
				a := a
				cp.Assignee = &a
			}
		}
		if b.projection != nil {
			project(&cp, *b.projection)
		}
		out[i] = &cp
	}
	return out, nil
}

// --- Lógica de filtrado y ordenamiento ---

func (b *QueryBuilder) match(t *taskDomain.Task) bool {
	for _, q := range b.search {
		if !strings.Contains(strings.ToLower(t.Title), q) {
			return false
		}
	}
	for _, cond := range b.conds {
		if !matchCondition(t, cond) {
			return false
		}
	}
	return true
}

func matchCondition(t *taskDomain.Task, cond sharedDomain.Criterion) bool {
	switch cond.Field {
	case taskDomain.FieldStatus:
		return string(t.Status) == fmt.Sprintf("%v", cond.Value)
	case taskDomain.FieldAssigneeID:
		id, ok := cond.Value.(uuid.UUID)
		return ok && t.AssigneeID == id
	case taskDomain.FieldTitle:
		title, ok := cond.Value.(string)
		if !ok {
			return false
		}
		if cond.Op == sharedDomain.OpILike || cond.Op == sharedDomain.OpLike {
			return strings.Contains(strings.ToLower(t.Title), strings.ToLower(strings.Trim(title, "%")))
		}
		return t.Title == title
	case taskDomain.FieldCreatedAt:
		ts, ok := cond.Value.(time.Time)
		if !ok {
			return false
		}
		switch cond.Op {
		case sharedDomain.OpGte:
			return !t.CreatedAt.Before(ts)
		case sharedDomain.OpLte:
			return !t.CreatedAt.After(ts)
		case sharedDomain.OpGt:
			return t.CreatedAt.After(ts)
		case sharedDomain.OpLt:
			return t.CreatedAt.Before(ts)
		}
	}
	return false
}

func compareTasks(t1, t2 *taskDomain.Task, field string) int {
	switch field {
	case taskDomain.FieldTitle:
		return strings.Compare(t1.Title, t2.Title)
	case taskDomain.FieldDescription:
		return strings.Compare(t1.Description, t2.Description)
	case taskDomain.FieldStatus:
		return strings.Compare(string(t1.Status), string(t2.Status))
	case taskDomain.FieldAssigneeID:
		return strings.Compare(t1.AssigneeID.String(), t2.AssigneeID.String())
	case taskDomain.FieldCreatedAt:
		return t1.CreatedAt.Compare(t2.CreatedAt)
	case taskDomain.FieldUpdatedAt:
		return t1.UpdatedAt.Compare(t2.UpdatedAt)
	default:
		return strings.Compare(t1.ID.String(), t2.ID.String())
	}
}

// project pone a cero los campos que la proyección deja fuera. El id y las
// relaciones pobladas se conservan siempre.
func project(t *taskDomain.Task, p sharedQuery.Projection) {
	keep := func(field string) bool {
		if len(p.Include) > 0 {
			return field == taskDomain.FieldID || contains(p.Include, field)
		}
		return !contains(p.Exclude, field)
	}
	if !keep(taskDomain.FieldTitle) {
		t.Title = ""
	}
	if !keep(taskDomain.FieldDescription) {
		t.Description = ""
	}
	if !keep(taskDomain.FieldAssigneeID) {
		t.AssigneeID = uuid.Nil
	}
	if !keep(taskDomain.FieldStatus) {
		t.Status = ""
	}
	if !keep(taskDomain.FieldCreatedAt) {
		t.CreatedAt = time.Time{}
	}
	if !keep(taskDomain.FieldUpdatedAt) {
		t.UpdatedAt = time.Time{}
	}
}

func known(field string) bool {
	return contains(taskDomain.Fields, field)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
