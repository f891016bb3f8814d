package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// ---------- Tipos de ordenamiento / proyección ----------

// Sort indica campo y dirección.
type Sort struct {
	Field string // ej. "createdAt", "title"
	Desc  bool
}

// Projection separa los campos pedidos de los excluidos.
type Projection struct {
	Include []string
	Exclude []string
}

// Empty indica si la proyección no restringe nada.
func (p Projection) Empty() bool {
	return len(p.Include) == 0 && len(p.Exclude) == 0
}

// ---------- Parsers ----------

// ParseSort interpreta el valor de un $sort:
//   - "title -createdAt": lista de campos, '-' indica descendente
//   - map[string]any{"title": 1, "createdAt": "desc"}
//
// Los mapas se recorren en orden alfabético para que el resultado sea estable.
func ParseSort(v any) ([]Sort, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		var sorts []Sort
		for _, f := range Fields(x) {
			s := Sort{Field: strings.TrimPrefix(f, "-"), Desc: strings.HasPrefix(f, "-")}
			s.Field = strings.TrimPrefix(s.Field, "+")
			if s.Field != "" {
				sorts = append(sorts, s)
			}
		}
		return sorts, nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sorts := make([]Sort, 0, len(keys))
		for _, k := range keys {
			desc, err := direction(x[k])
			if err != nil {
				return nil, fmt.Errorf("sort %s: %w", k, err)
			}
			sorts = append(sorts, Sort{Field: k, Desc: desc})
		}
		return sorts, nil
	default:
		return nil, fmt.Errorf("unsupported sort value %T", v)
	}
}

func direction(v any) (bool, error) {
	if s, ok := v.(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "asc", "ascending", "1":
			return false, nil
		case "desc", "descending", "-1":
			return true, nil
		}
		return false, fmt.Errorf("invalid direction %q", s)
	}
	n, err := cast.ToIntE(v)
	if err != nil || (n != 1 && n != -1) {
		return false, fmt.Errorf("invalid direction %v (must be 1 or -1)", v)
	}
	return n == -1, nil
}

// ParseProjection interpreta el valor de un $select: "title -description".
func ParseProjection(v any) Projection {
	var p Projection
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	for _, f := range Fields(s) {
		if strings.HasPrefix(f, "-") {
			if f = strings.TrimPrefix(f, "-"); f != "" {
				p.Exclude = append(p.Exclude, f)
			}
			continue
		}
		p.Include = append(p.Include, strings.TrimPrefix(f, "+"))
	}
	return p
}

// ParsePaths interpreta el valor de un $populate: "assignee project".
func ParsePaths(v any) []string {
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	return Fields(s)
}

// Fields separa por espacios y comas.
func Fields(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t'
	})
}
