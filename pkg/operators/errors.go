package operators

import (
	"errors"
	"fmt"
)

// InvalidOperatorError se devuelve al aplicar un operador permitido (Allow)
// para el que el builder no expone ningún método, o cuando el builder no
// puede interpretar el valor de un operador.
type InvalidOperatorError struct {
	Operator string
	Err      error // causa opcional, p.ej. un fallo de validación
}

func (e InvalidOperatorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid query operator %s: %v", e.Operator, e.Err)
	}
	return fmt.Sprintf("invalid query operator %s", e.Operator)
}

func (e InvalidOperatorError) Unwrap() error {
	return e.Err
}

// ErrOutOfRange indica un skip/limit finito demasiado grande para el backend.
var ErrOutOfRange = errors.New("value out of range")
