// Package domain contiene los criterios de filtrado neutrales que cada
// repositorio traduce a su propio lenguaje de consulta.
package domain

import "fmt"

// ---------------- Operadores ----------------

type Operator string

const (
	OpEq    Operator = "="
	OpNe    Operator = "<>"
	OpGt    Operator = ">"
	OpGte   Operator = ">="
	OpLt    Operator = "<"
	OpLte   Operator = "<="
	OpLike  Operator = "LIKE"
	OpILike Operator = "ILIKE"
)

// Valid indica si op es uno de los operadores conocidos. Los adaptadores SQL
// interpolan el operador en la consulta, así que solo aceptan estos.
func (op Operator) Valid() bool {
	switch op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpLike, OpILike:
		return true
	}
	return false
}

// ---------------- Criterion ----------------

// Criterion describe una condición neutral de filtrado
type Criterion struct {
	Field string
	Op    Operator
	Value interface{}
}

func (c Criterion) String() string {
	return fmt.Sprintf("%s %s %v", c.Field, c.Op, c.Value)
}

// ToConditions permite usar un Criterion suelto como Criteria.
func (c Criterion) ToConditions() []Criterion {
	return []Criterion{c}
}

// Where es un atajo para un Criterion.
func Where(field string, op Operator, value interface{}) Criterion {
	return Criterion{Field: field, Op: op, Value: value}
}

// ---------------- Criteria interface ----------------

// Criteria permite transformar filtros a condiciones neutrales. Las
// condiciones se combinan siempre con AND.
type Criteria interface {
	ToConditions() []Criterion
}

// Conditions es ToConditions tolerante a nil.
func Conditions(c Criteria) []Criterion {
	if c == nil {
		return nil
	}
	return c.ToConditions()
}

// ---------------- Composite Criteria ----------------

// AllOf agrupa varios criterios en conjunción.
type AllOf []Criteria

func (a AllOf) ToConditions() []Criterion {
	var all []Criterion
	for _, crit := range a {
		all = append(all, Conditions(crit)...)
	}
	return all
}

// And crea un AllOf.
func And(criterias ...Criteria) AllOf {
	return AllOf(criterias)
}
