// Package mongodb adapta los operadores de consulta al driver oficial de MongoDB.
package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/davicafu/hexaquery/pkg/operators"
	sharedQuery "github.com/davicafu/hexaquery/shared/platform/query"
)

// Relation describe cómo poblar una referencia con $lookup.
type Relation struct {
	From         string // colección referenciada
	LocalField   string
	ForeignField string
	As           string // campo donde queda el documento poblado
	Many         bool   // si es false se hace $unwind para dejar un único documento
}

// FindBuilder implementa operators.Builder sobre options.FindOptions.
// Cuando hay relaciones pobladas la consulta se ejecuta como agregación.
type FindBuilder struct {
	operators.Extensions

	Filter bson.D

	opts       *options.FindOptions
	sort       bson.D
	projection bson.D
	relations  map[string]Relation
	populate   []string
	fields     map[string]string
	ops        operators.Operators
	errs       []error
}

var (
	_ operators.Builder     = (*FindBuilder)(nil)
	_ operators.Extender    = (*FindBuilder)(nil)
	_ operators.Inspectable = (*FindBuilder)(nil)
)

// NewFindBuilder crea un builder para el filtro dado.
func NewFindBuilder(filter bson.D) *FindBuilder {
	if filter == nil {
		filter = bson.D{}
	}
	return &FindBuilder{
		Filter:    filter,
		opts:      options.Find(),
		relations: make(map[string]Relation),
		fields:    make(map[string]string),
	}
}

// WithRelation registra una ruta que se puede usar en $populate.
func (b *FindBuilder) WithRelation(path string, r Relation) *FindBuilder {
	if r.As == "" {
		r.As = path
	}
	b.relations[path] = r
	return b
}

// WithFields traduce nombres de campo de dominio a claves BSON (p.ej. id -> _id).
func (b *FindBuilder) WithFields(m map[string]string) *FindBuilder {
	for k, v := range m {
		b.fields[k] = v
	}
	return b
}

// Field devuelve la clave BSON de un campo de dominio.
func (b *FindBuilder) Field(name string) string {
	if f, ok := b.fields[name]; ok {
		return f
	}
	return name
}

// --- operators.Builder ---

func (b *FindBuilder) Sort(value any) operators.Builder {
	sorts, err := sharedQuery.ParseSort(value)
	if err != nil {
		b.fail(operators.OpSort, err)
		return b
	}
	for _, s := range sorts {
		dir := 1
		if s.Desc {
			dir = -1
		}
		b.sort = append(b.sort, bson.E{Key: b.Field(s.Field), Value: dir})
	}
	if len(b.sort) > 0 {
		b.opts.SetSort(b.sort)
	}
	return b
}

// Skip ignora valores no finitos o negativos.
func (b *FindBuilder) Skip(n float64) operators.Builder {
	if !operators.IsFinite(n) || n < 0 {
		return b
	}
	v, ok := operators.Int(n)
	if !ok {
		b.fail(operators.OpSkip, operators.ErrOutOfRange)
		return b
	}
	b.opts.SetSkip(v)
	return b
}

// Limit ignora valores no finitos o negativos.
func (b *FindBuilder) Limit(n float64) operators.Builder {
	if !operators.IsFinite(n) || n < 0 {
		return b
	}
	v, ok := operators.Int(n)
	if !ok {
		b.fail(operators.OpLimit, operators.ErrOutOfRange)
		return b
	}
	b.opts.SetLimit(v)
	return b
}

func (b *FindBuilder) Select(value any) operators.Builder {
	p := sharedQuery.ParseProjection(value)
	if len(p.Include) > 0 && len(p.Exclude) > 0 {
		b.fail(operators.OpSelect, fmt.Errorf("cannot mix included and excluded fields"))
		return b
	}
	b.projection = bson.D{}
	for _, f := range p.Include {
		b.projection = append(b.projection, bson.E{Key: b.Field(f), Value: 1})
	}
	for _, f := range p.Exclude {
		b.projection = append(b.projection, bson.E{Key: b.Field(f), Value: 0})
	}
	if len(b.projection) > 0 {
		b.opts.SetProjection(b.projection)
	}
	return b
}

func (b *FindBuilder) Populate(value any) operators.Builder {
	for _, path := range sharedQuery.ParsePaths(value) {
		if _, ok := b.relations[path]; !ok {
			b.fail(operators.OpPopulate, fmt.Errorf("unknown path %q", path))
			continue
		}
		if !contains(b.populate, path) {
			b.populate = append(b.populate, path)
		}
	}
	return b
}

// SetOperators implementa operators.Inspectable.
func (b *FindBuilder) SetOperators(ops operators.Operators) {
	b.ops = ops
}

// --- Resultado ---

// Operators devuelve los operadores aplicados.
func (b *FindBuilder) Operators() operators.Operators {
	return b.ops
}

// Err agrupa los errores encontrados al interpretar los operadores; todos
// son operators.InvalidOperatorError.
func (b *FindBuilder) Err() error {
	return errors.Join(b.errs...)
}

// FindOptions devuelve las opciones para Collection.Find.
func (b *FindBuilder) FindOptions() *options.FindOptions {
	return b.opts
}

// Populated devuelve las rutas pedidas en $populate, en orden.
func (b *FindBuilder) Populated() []string {
	return b.populate
}

// Pipeline traduce la consulta a una agregación: $match, $sort, $skip y
// $limit primero y luego un $lookup por relación.
func (b *FindBuilder) Pipeline() mongo.Pipeline {
	pipeline := mongo.Pipeline{{{Key: "$match", Value: b.Filter}}}
	if len(b.sort) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: b.sort}})
	}
	if b.opts.Skip != nil {
		pipeline = append(pipeline, bson.D{{Key: "$skip", Value: *b.opts.Skip}})
	}
	if b.opts.Limit != nil && *b.opts.Limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: *b.opts.Limit}})
	}

	for _, path := range b.populate {
		r := b.relations[path]
		pipeline = append(pipeline, bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: r.From},
			{Key: "localField", Value: r.LocalField},
			{Key: "foreignField", Value: r.ForeignField},
			{Key: "as", Value: r.As},
		}}})
		if !r.Many {
			pipeline = append(pipeline, bson.D{{Key: "$unwind", Value: bson.D{
				{Key: "path", Value: "$" + r.As},
				{Key: "preserveNullAndEmptyArrays", Value: true},
			}}})
		}
	}

	if len(b.projection) > 0 {
		project := append(bson.D{}, b.projection...)
		// En modo inclusión las relaciones pobladas tienen que sobrevivir al $project.
		if included(b.projection) {
			for _, path := range b.populate {
				project = append(project, bson.E{Key: b.relations[path].As, Value: 1})
			}
		}
		pipeline = append(pipeline, bson.D{{Key: "$project", Value: project}})
	}
	return pipeline
}

// Find ejecuta la consulta sobre coll.
func (b *FindBuilder) Find(ctx context.Context, coll *mongo.Collection) (*mongo.Cursor, error) {
	if err := b.Err(); err != nil {
		return nil, err
	}
	if len(b.populate) == 0 {
		return coll.Find(ctx, b.Filter, b.opts)
	}
	return coll.Aggregate(ctx, b.Pipeline())
}

func (b *FindBuilder) fail(op string, err error) {
	b.errs = append(b.errs, operators.InvalidOperatorError{Operator: op, Err: err})
}

func included(projection bson.D) bool {
	for _, e := range projection {
		if v, ok := e.Value.(int); ok && v == 1 {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
