// Package middleware expone la extracción de operadores como middleware de gin.
package middleware

import (
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/davicafu/hexaquery/pkg/operators"
)

const (
	// ContextKey guarda el *operators.Extraction de la petición.
	ContextKey = "queryOperators"
	// ParamsKey guarda los parámetros que no son operadores.
	ParamsKey = "queryParams"
)

// Middleware extrae los operadores de la query string y los deja en el
// contexto de gin para los handlers siguientes.
func Middleware(opts *operators.Options) gin.HandlerFunc {
	return MiddlewareWithLogger(opts, zap.NewNop())
}

// MiddlewareWithLogger es Middleware con trazas de depuración.
func MiddlewareWithLogger(opts *operators.Options, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		params := QueryToMap(c.Request.URL.Query())
		ex := operators.Extract(params, opts)

		log.Debug("query operators extracted",
			zap.String("path", c.FullPath()),
			zap.Any("operators", ex.Operators),
			zap.Int("params", len(ex.Remaining)),
		)

		c.Set(ContextKey, ex)
		c.Set(ParamsKey, ex.Remaining)
		c.Next()
	}
}

// FromContext devuelve la extracción guardada por el middleware. Si el
// middleware no se ejecutó devuelve una extracción no-op.
func FromContext(c *gin.Context) *operators.Extraction {
	if v, ok := c.Get(ContextKey); ok {
		if ex, ok := v.(*operators.Extraction); ok {
			return ex
		}
	}
	return operators.Extract(nil, nil)
}

// Params devuelve los parámetros restantes (sin operadores).
func Params(c *gin.Context) map[string]any {
	if v, ok := c.Get(ParamsKey); ok {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return QueryToMap(c.Request.URL.Query())
}

// QueryToMap convierte url.Values en un mapa sin tipos: una clave con un
// único valor queda como string y una clave repetida como []any.
func QueryToMap(values url.Values) map[string]any {
	out := make(map[string]any, len(values))
	for k, vs := range values {
		switch len(vs) {
		case 0:
			out[k] = ""
		case 1:
			out[k] = vs[0]
		default:
			items := make([]any, len(vs))
			for i, v := range vs {
				items[i] = v
			}
			out[k] = items
		}
	}
	return out
}
