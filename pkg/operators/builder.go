package operators

import "fmt"

// ---------------- Builder ----------------

// Builder es el contrato de un query builder fluido. Cada método devuelve el
// builder con el que se debe seguir encadenando, que puede ser el mismo o uno
// nuevo (como hace *gorm.DB).
type Builder interface {
	Sort(value any) Builder
	Skip(n float64) Builder
	Limit(n float64) Builder
	Select(value any) Builder
	Populate(value any) Builder
}

// Inspectable lo implementan los builders que quieren conservar el mapa de
// operadores extraídos tras aplicarlos.
type Inspectable interface {
	SetOperators(ops Operators)
}

// Extender lo implementan los builders que aceptan operadores propios
// (los que llegan por Options.Allow).
type Extender interface {
	Extension(method string) (Extension, bool)
}

// ---------------- Extensiones ----------------

// Extension asocia un método (el nombre del operador sin sigilo) con la
// función que lo aplica sobre el builder.
type Extension struct {
	Name     string
	Validate func(value any) error
	Apply    func(b Builder, value any) (Builder, error)
}

// Extensions es un registro de extensiones indexado por nombre de método.
// Los builders lo embeben para satisfacer Extender.
type Extensions map[string]Extension

// Register añade (o reemplaza) una extensión.
func (e *Extensions) Register(ext Extension) {
	if ext.Name == "" || ext.Apply == nil {
		panic(fmt.Sprintf("operators: invalid extension %q", ext.Name))
	}
	if *e == nil {
		*e = make(Extensions)
	}
	(*e)[ext.Name] = ext
}

// Extension implementa Extender.
func (e Extensions) Extension(method string) (Extension, bool) {
	ext, ok := e[method]
	return ext, ok
}
