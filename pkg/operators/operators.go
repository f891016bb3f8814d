// Package operators extrae operadores de consulta ($limit, $sort, $page...)
// de un mapa de parámetros y los aplica sobre un query builder fluido.
package operators

import (
	"math"
	"strings"
)

// Sigil es el prefijo que distingue un operador de un filtro normal.
const Sigil = "$"

// DefaultPageLimit es el tamaño de página usado por $page cuando no hay $limit.
const DefaultPageLimit = 20

// Operadores reconocidos, en orden de extracción.
const (
	OpLimit    = "$limit"
	OpSort     = "$sort"
	OpPage     = "$page"
	OpSkip     = "$skip"
	OpSelect   = "$select"
	OpPopulate = "$populate"
)

var builtins = []string{OpLimit, OpSort, OpPage, OpSkip, OpSelect, OpPopulate}

// Operators mapea nombre de operador -> valor extraído.
type Operators map[string]any

// Clone devuelve una copia superficial.
func (o Operators) Clone() Operators {
	if o == nil {
		return nil
	}
	out := make(Operators, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// ApplyFunc aplica los operadores extraídos sobre un builder.
type ApplyFunc func(b Builder) (Builder, error)

// Options configura la extracción.
type Options struct {
	Defaults      map[string]any  // valores por defecto si el operador falta o es nil
	Ignore        map[string]bool // operadores que no se extraen
	DeleteIgnored bool            // borra igualmente los ignorados del mapa origen
	Allow         []string        // operadores propios, además de los built-in

	// InPlace borra los operadores directamente del mapa origen en lugar de
	// trabajar sobre una copia.
	InPlace bool
	// PageLimit sustituye a DefaultPageLimit si es > 0.
	PageLimit int
	// PreferSkip hace que un $skip explícito prevalezca sobre $page.
	PreferSkip bool
}

func (o *Options) pageLimit() float64 {
	if o.PageLimit > 0 {
		return float64(o.PageLimit)
	}
	return DefaultPageLimit
}

// Names devuelve la lista de operadores reconocidos: built-in + Allow,
// sin duplicados y en orden.
func (o *Options) Names() []string {
	seen := make(map[string]bool, len(builtins)+len(o.Allow))
	names := make([]string, 0, len(builtins)+len(o.Allow))
	for _, n := range append(append([]string{}, builtins...), o.Allow...) {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		names = append(names, n)
	}
	return names
}

// ---------------- Extracción ----------------

// Extraction es el resultado de Extract.
type Extraction struct {
	Operators Operators      // nil si no había mapa origen
	Remaining map[string]any // parámetros que no son operadores

	opts Options
}

// Extract separa los operadores reconocidos de src. Por defecto src no se
// modifica y los parámetros restantes quedan en Remaining; con InPlace los
// operadores se borran de src, que se devuelve también como Remaining.
//
// Si src es nil la extracción es un no-op: Apply devuelve el builder tal cual.
func Extract(src map[string]any, opts *Options) *Extraction {
	var o Options
	if opts != nil {
		o = *opts
	}
	if src == nil {
		return &Extraction{opts: o}
	}

	remaining := src
	if !o.InPlace {
		remaining = make(map[string]any, len(src))
		for k, v := range src {
			remaining[k] = v
		}
	}

	ops := make(Operators)
	for _, name := range o.Names() {
		if o.Ignore[name] {
			if o.DeleteIgnored {
				delete(remaining, name)
			}
			continue
		}

		value, ok := remaining[name]
		delete(remaining, name)
		if !ok || value == nil {
			if def, hasDef := o.Defaults[name]; hasDef {
				value = def
			}
		}
		ops[name] = value
	}

	return &Extraction{Operators: ops, Remaining: remaining, opts: o}
}

// Get devuelve el valor de un operador si está presente.
func (e *Extraction) Get(name string) (any, bool) {
	v, ok := e.Operators[name]
	if !ok || !truthy(v) {
		return nil, false
	}
	return v, true
}

// Noop indica si la extracción no tuvo mapa origen.
func (e *Extraction) Noop() bool {
	return e == nil || e.Operators == nil
}

// ---------------- Aplicación ----------------

// Apply encadena sobre b las llamadas que corresponden a los operadores
// extraídos. Puede ejecutarse varias veces sobre builders distintos.
func (e *Extraction) Apply(b Builder) (Builder, error) {
	if e.Noop() {
		return b, nil
	}

	if v, ok := e.Get(OpSort); ok {
		b = each(b, v, Builder.Sort)
	}

	skipped := false
	if v, ok := e.Get(OpSkip); ok {
		b = b.Skip(Number(v))
		skipped = true
	}

	limit, hasLimit := e.Get(OpLimit)
	if page, ok := e.Get(OpPage); ok {
		if !hasLimit {
			limit, hasLimit = e.opts.pageLimit(), true
		}
		// $page pisa a $skip salvo que se pida lo contrario.
		if !(skipped && e.opts.PreferSkip) {
			b = b.Skip(Number(page) * Number(limit))
		}
	}

	if hasLimit {
		b = b.Limit(Number(limit))
	}

	if v, ok := e.Get(OpSelect); ok {
		if items, isSeq := asSlice(v); isSeq {
			v = joinSpaces(items)
		}
		b = b.Select(v)
	}

	if v, ok := e.Get(OpPopulate); ok {
		b = each(b, v, Builder.Populate)
	}

	for _, name := range e.opts.Allow {
		if isBuiltin(name) {
			continue
		}
		v, ok := e.Get(name)
		if !ok {
			continue
		}
		next, err := applyExtension(b, name, v)
		if err != nil {
			return b, err
		}
		if next != nil {
			b = next
		}
	}

	if in, ok := b.(Inspectable); ok {
		in.SetOperators(e.Operators.Clone())
	}
	return b, nil
}

func applyExtension(b Builder, name string, value any) (Builder, error) {
	method := MethodName(name)
	ext, ok := lookupExtension(b, method)
	if !ok {
		return nil, InvalidOperatorError{Operator: name}
	}
	if ext.Validate != nil {
		if err := ext.Validate(value); err != nil {
			return nil, InvalidOperatorError{Operator: name, Err: err}
		}
	}
	return ext.Apply(b, value)
}

func lookupExtension(b Builder, method string) (Extension, bool) {
	x, ok := b.(Extender)
	if !ok {
		return Extension{}, false
	}
	return x.Extension(method)
}

// MethodName quita el sigilo del nombre de un operador.
func MethodName(op string) string {
	return strings.TrimPrefix(op, Sigil)
}

func isBuiltin(name string) bool {
	for _, n := range builtins {
		if n == name {
			return true
		}
	}
	return false
}

func each(b Builder, v any, call func(Builder, any) Builder) Builder {
	items, ok := asSlice(v)
	if !ok {
		return call(b, v)
	}
	for _, it := range items {
		b = call(b, it)
	}
	return b
}

// IsFinite indica si n se puede usar como skip/limit.
func IsFinite(n float64) bool {
	return !math.IsNaN(n) && !math.IsInf(n, 0)
}

// Int convierte un skip/limit ya validado con IsFinite a entero. Devuelve
// false si n no cabe en int64 (p.ej. $skip=1e20).
func Int(n float64) (int64, bool) {
	if n >= math.MaxInt64 || n < math.MinInt64 {
		return 0, false
	}
	return int64(n), true
}
