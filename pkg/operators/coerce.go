package operators

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/spf13/cast"
)

// Number convierte un valor de query string a número de forma permisiva.
// Nunca falla: lo que no se puede interpretar se convierte en NaN.
func Number(v any) float64 {
	switch x := v.(type) {
	case nil:
		return 0
	case bool:
		if x {
			return 1
		}
		return 0
	case float64:
		return x
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0
		}
		f, err := cast.ToFloat64E(s)
		if err != nil {
			return math.NaN()
		}
		return f
	}

	if items, ok := asSlice(v); ok {
		switch len(items) {
		case 0:
			return 0
		case 1:
			return Number(items[0])
		default:
			return math.NaN()
		}
	}

	f, err := cast.ToFloat64E(v)
	if err != nil {
		return math.NaN()
	}
	return f
}

// truthy replica la noción de "valor presente" de los query strings:
// nil, false, 0, NaN y "" se consideran ausentes.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0 && !math.IsNaN(x)
	case float32:
		return x != 0 && !math.IsNaN(float64(x))
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Ptr, reflect.Interface:
		return !rv.IsNil()
	}
	// Slices y mapas cuentan como presentes aunque estén vacíos.
	return true
}

// asSlice devuelve los elementos de v si es una secuencia.
func asSlice(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out, true
	case string, []byte:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func joinSpaces(items []any) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = fmt.Sprint(it)
	}
	return strings.Join(parts, " ")
}
