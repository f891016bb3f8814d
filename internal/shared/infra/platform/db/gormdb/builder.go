// Package gormdb adapta los operadores de consulta a gorm (SQLite/Postgres).
package gormdb

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/davicafu/hexaquery/pkg/operators"
	sharedQuery "github.com/davicafu/hexaquery/shared/platform/query"
)

// Relation describe una asociación de gorm que se puede poblar.
type Relation struct {
	Association string // nombre del campo de asociación en el modelo (p.ej. "Assignee")
	ForeignKey  string // columna local que la referencia; se añade al SELECT si hace falta
}

// Builder implementa operators.Builder sobre *gorm.DB. Igual que gorm, cada
// llamada devuelve un Builder nuevo y deja intacto el anterior.
type Builder struct {
	operators.Extensions

	db        *gorm.DB
	columns   map[string]string // campo de dominio -> columna
	relations map[string]Relation
	selected  *sharedQuery.Projection
	populated []string
	ops       operators.Operators
	errs      []error
}

var (
	_ operators.Builder     = (*Builder)(nil)
	_ operators.Extender    = (*Builder)(nil)
	_ operators.Inspectable = (*Builder)(nil)
)

// NewBuilder crea un builder sobre db. columns es la lista blanca de campos
// ordenables/seleccionables; nada fuera de ella llega al SQL.
func NewBuilder(db *gorm.DB, columns map[string]string, relations map[string]Relation) *Builder {
	return &Builder{db: db.Session(&gorm.Session{}), columns: columns, relations: relations}
}

// DB devuelve la consulta acumulada sin la proyección.
func (b *Builder) DB() *gorm.DB {
	return b.db
}

// Where añade una condición; lo usan las extensiones.
func (b *Builder) Where(query any, args ...any) *Builder {
	return b.with(b.db.Where(query, args...))
}

// Column traduce un campo de dominio a columna.
func (b *Builder) Column(field string) (string, bool) {
	col, ok := b.columns[field]
	return col, ok
}

// --- operators.Builder ---

func (b *Builder) Sort(value any) operators.Builder {
	sorts, err := sharedQuery.ParseSort(value)
	if err != nil {
		return b.fail(operators.OpSort, err)
	}
	next := b
	for _, s := range sorts {
		col, ok := b.Column(s.Field)
		if !ok {
			return b.fail(operators.OpSort, fmt.Errorf("unknown field %q", s.Field))
		}
		next = next.with(next.db.Order(clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: s.Desc}))
	}
	return next
}

// Skip ignora valores no finitos o negativos.
func (b *Builder) Skip(n float64) operators.Builder {
	if !operators.IsFinite(n) || n < 0 {
		return b
	}
	v, ok := operators.Int(n)
	if !ok {
		return b.fail(operators.OpSkip, operators.ErrOutOfRange)
	}
	return b.with(b.db.Offset(int(v)))
}

// Limit ignora valores no finitos o negativos.
func (b *Builder) Limit(n float64) operators.Builder {
	if !operators.IsFinite(n) || n < 0 {
		return b
	}
	v, ok := operators.Int(n)
	if !ok {
		return b.fail(operators.OpLimit, operators.ErrOutOfRange)
	}
	return b.with(b.db.Limit(int(v)))
}

// Select valida los campos y aplaza la proyección hasta Query, porque las
// relaciones pobladas después necesitan sus claves foráneas.
func (b *Builder) Select(value any) operators.Builder {
	p := sharedQuery.ParseProjection(value)
	for _, f := range append(append([]string{}, p.Include...), p.Exclude...) {
		if _, ok := b.Column(f); !ok {
			return b.fail(operators.OpSelect, fmt.Errorf("unknown field %q", f))
		}
	}
	next := b.with(b.db)
	next.selected = &p
	return next
}

func (b *Builder) Populate(value any) operators.Builder {
	next := b
	for _, path := range sharedQuery.ParsePaths(value) {
		rel, ok := b.relations[path]
		if !ok {
			return b.fail(operators.OpPopulate, fmt.Errorf("unknown path %q", path))
		}
		next = next.with(next.db.Preload(rel.Association))
		next.populated = append(append([]string{}, next.populated...), path)
	}
	return next
}

// SetOperators implementa operators.Inspectable.
func (b *Builder) SetOperators(ops operators.Operators) {
	b.ops = ops
}

// --- Resultado ---

// Operators devuelve los operadores aplicados.
func (b *Builder) Operators() operators.Operators {
	return b.ops
}

// Err agrupa los errores encontrados al interpretar los operadores; todos
// son operators.InvalidOperatorError.
func (b *Builder) Err() error {
	return errors.Join(b.errs...)
}

// Query devuelve la consulta final con la proyección aplicada.
func (b *Builder) Query() *gorm.DB {
	db := b.db
	if b.selected == nil || b.selected.Empty() {
		return db
	}

	if len(b.selected.Include) > 0 {
		cols := make([]string, 0, len(b.selected.Include)+len(b.populated))
		for _, f := range b.selected.Include {
			col, _ := b.Column(f)
			cols = appendUnique(cols, col)
		}
		for _, path := range b.populated {
			if fk := b.relations[path].ForeignKey; fk != "" {
				cols = appendUnique(cols, fk)
			}
		}
		return db.Select(cols)
	}

	cols := make([]string, 0, len(b.selected.Exclude))
	for _, f := range b.selected.Exclude {
		col, _ := b.Column(f)
		cols = append(cols, col)
	}
	return db.Omit(cols...)
}

// Find ejecuta la consulta sobre dest (puntero a slice de modelos).
func (b *Builder) Find(dest any) error {
	if err := b.Err(); err != nil {
		return err
	}
	return b.Query().Find(dest).Error
}

func (b *Builder) with(db *gorm.DB) *Builder {
	next := *b
	// Una sesión nueva hace que la siguiente llamada clone el Statement en
	// lugar de modificar el compartido.
	next.db = db.Session(&gorm.Session{})
	return &next
}

func (b *Builder) fail(op string, err error) *Builder {
	next := b.with(b.db)
	next.errs = append(append([]error{}, b.errs...), operators.InvalidOperatorError{Operator: op, Err: err})
	return next
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
