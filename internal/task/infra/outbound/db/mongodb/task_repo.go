package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	sharedMongo "github.com/davicafu/hexaquery/internal/shared/infra/platform/db/mongodb"
	taskDomain "github.com/davicafu/hexaquery/internal/task/domain"
	"github.com/davicafu/hexaquery/pkg/operators"
	sharedDomain "github.com/davicafu/hexaquery/shared/domain"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// TaskRepoMongoDB implementa la interfaz TaskRepository para MongoDB.
type TaskRepoMongoDB struct {
	tasksColl *mongo.Collection
	usersColl *mongo.Collection
}

var (
	_ taskDomain.TaskRepository    = (*TaskRepoMongoDB)(nil)
	_ taskDomain.AssigneeDirectory = (*TaskRepoMongoDB)(nil)
)

// Nombres de colección.
const (
	TasksCollection = "tasks"
	UsersCollection = "users"
)

// NewTaskRepoMongoDB es el constructor del repositorio.
func NewTaskRepoMongoDB(ctx context.Context, client *mongo.Client, dbName string) (*TaskRepoMongoDB, error) {
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("could not ping mongoDB: %w", err)
	}
	db := client.Database(dbName)
	return &TaskRepoMongoDB{
		tasksColl: db.Collection(TasksCollection),
		usersColl: db.Collection(UsersCollection),
	}, nil
}

// --- Structs de BSON para el mapeo ---
// Se definen localmente para no "contaminar" el dominio con tags de BSON.

type mongoTask struct {
	ID          uuid.UUID             `bson:"_id"`
	Title       string                `bson:"title"`
	Description string                `bson:"description"`
	AssigneeID  uuid.UUID             `bson:"assigneeId"`
	Status      taskDomain.TaskStatus `bson:"status"`
	CreatedAt   time.Time             `bson:"createdAt"`
	UpdatedAt   time.Time             `bson:"updatedAt"`

	// Solo llega relleno desde el $lookup de $populate=assignee.
	Assignee *mongoUser `bson:"assignee,omitempty"`
}

type mongoUser struct {
	ID    uuid.UUID `bson:"_id"`
	Email string    `bson:"email"`
	Name  string    `bson:"name"`
}

// --- CRUD ---

func (r *TaskRepoMongoDB) Create(ctx context.Context, t *taskDomain.Task) error {
	if _, err := r.tasksColl.InsertOne(ctx, toMongoTask(t)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return taskDomain.ErrTaskAlreadyExists
		}
		return err
	}
	return nil
}

func (r *TaskRepoMongoDB) Update(ctx context.Context, t *taskDomain.Task) error {
	mt := toMongoTask(t)
	res, err := r.tasksColl.UpdateOne(ctx, bson.M{"_id": mt.ID}, bson.M{"$set": mt})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return taskDomain.ErrTaskNotFound
	}
	return nil
}

func (r *TaskRepoMongoDB) DeleteByID(ctx context.Context, id uuid.UUID) error {
	res, err := r.tasksColl.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return taskDomain.ErrTaskNotFound
	}
	return nil
}

// SaveAssignee inserta o reemplaza el usuario en la colección users.
func (r *TaskRepoMongoDB) SaveAssignee(ctx context.Context, a taskDomain.Assignee) error {
	u := mongoUser{ID: a.ID, Email: a.Email, Name: a.Name}
	_, err := r.usersColl.ReplaceOne(ctx, bson.M{"_id": u.ID}, u, options.Replace().SetUpsert(true))
	return err
}

// --- Lectura ---

func (r *TaskRepoMongoDB) GetByID(ctx context.Context, id uuid.UUID) (*taskDomain.Task, error) {
	var mt mongoTask
	err := r.tasksColl.FindOne(ctx, bson.M{"_id": id}).Decode(&mt)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, taskDomain.ErrTaskNotFound
		}
		return nil, err
	}
	return fromMongoTask(&mt), nil
}

// ListByQuery aplica los operadores sobre un FindBuilder; si se pide
// $populate la consulta se ejecuta como agregación.
func (r *TaskRepoMongoDB) ListByQuery(ctx context.Context, criteria sharedDomain.Criteria, apply operators.ApplyFunc) ([]*taskDomain.Task, error) {
	fb, err := buildQuery(criteria, apply)
	if err != nil {
		return nil, err
	}

	cursor, err := fb.Find(ctx, r.tasksColl)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	tasks := []*taskDomain.Task{}
	for cursor.Next(ctx) {
		var mt mongoTask
		if err := cursor.Decode(&mt); err != nil {
			return nil, err
		}
		tasks = append(tasks, fromMongoTask(&mt))
	}
	return tasks, cursor.Err()
}

// NewTaskFindBuilder prepara el builder de tareas: campos, relaciones y el
// operador $search.
func NewTaskFindBuilder(criteria sharedDomain.Criteria) *sharedMongo.FindBuilder {
	fb := sharedMongo.NewFindBuilder(criteriaToMongoFilter(criteria)).
		WithFields(map[string]string{taskDomain.FieldID: "_id"}).
		WithRelation(taskDomain.PopulateAssignee, sharedMongo.Relation{
			From:         UsersCollection,
			LocalField:   "assigneeId",
			ForeignField: "_id",
		})
	fb.Register(operators.Extension{
		Name: operators.MethodName(taskDomain.SearchOperator),
		Validate: func(v any) error {
			if _, ok := v.(string); !ok {
				return fmt.Errorf("search expects a string, got %T", v)
			}
			return nil
		},
		Apply: func(b operators.Builder, v any) (operators.Builder, error) {
			fb := b.(*sharedMongo.FindBuilder)
			fb.Filter = append(fb.Filter, bson.E{Key: "title", Value: bson.M{
				"$regex":   regexp.QuoteMeta(v.(string)),
				"$options": "i",
			}})
			return fb, nil
		},
	})
	return fb
}

func buildQuery(criteria sharedDomain.Criteria, apply operators.ApplyFunc) (*sharedMongo.FindBuilder, error) {
	var b operators.Builder = NewTaskFindBuilder(criteria)
	if apply != nil {
		var err error
		if b, err = apply(b); err != nil {
			return nil, err
		}
	}
	fb, ok := b.(*sharedMongo.FindBuilder)
	if !ok {
		return nil, fmt.Errorf("mongodb: unexpected builder %T", b)
	}
	return fb, fb.Err()
}

// --- Helpers de Mapeo y Conversión ---

func toMongoTask(t *taskDomain.Task) *mongoTask {
	return &mongoTask{
		ID: t.ID, Title: t.Title, Description: t.Description,
		AssigneeID: t.AssigneeID, Status: t.Status, CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt,
	}
}

func fromMongoTask(mt *mongoTask) *taskDomain.Task {
	t := &taskDomain.Task{
		ID: mt.ID, Title: mt.Title, Description: mt.Description,
		AssigneeID: mt.AssigneeID, Status: mt.Status, CreatedAt: mt.CreatedAt, UpdatedAt: mt.UpdatedAt,
	}
	if mt.Assignee != nil {
		t.Assignee = &taskDomain.Assignee{ID: mt.Assignee.ID, Email: mt.Assignee.Email, Name: mt.Assignee.Name}
	}
	return t
}

// mongoFields traduce los campos de dominio a claves BSON.
var mongoFields = map[string]string{taskDomain.FieldID: "_id"}

func criteriaToMongoFilter(criteria sharedDomain.Criteria) bson.D {
	conds := sharedDomain.Conditions(criteria)
	filter := bson.D{}
	for _, c := range conds {
		key := c.Field
		if k, ok := mongoFields[key]; ok {
			key = k
		}

		// Mapeo de operadores genéricos a operadores de MongoDB
		var mongoOp string
		switch c.Op {
		case sharedDomain.OpEq:
			mongoOp = "$eq"
		case sharedDomain.OpNe:
			mongoOp = "$ne"
		case sharedDomain.OpGt:
			mongoOp = "$gt"
		case sharedDomain.OpGte:
			mongoOp = "$gte"
		case sharedDomain.OpLt:
			mongoOp = "$lt"
		case sharedDomain.OpLte:
			mongoOp = "$lte"
		case sharedDomain.OpLike, sharedDomain.OpILike:
			mongoOp = "$regex"
		default:
			mongoOp = "$eq" // Operador por defecto
		}

		if mongoOp == "$regex" {
			pattern := regexp.QuoteMeta(strings.Trim(fmt.Sprint(c.Value), "%"))
			value := bson.M{mongoOp: pattern}
			// Para ILIKE, añadimos la opción 'i' de insensibilidad a mayúsculas
			if c.Op == sharedDomain.OpILike {
				value["$options"] = "i"
			}
			filter = append(filter, bson.E{Key: key, Value: value})
			continue
		}
		filter = append(filter, bson.E{Key: key, Value: bson.M{mongoOp: c.Value}})
	}
	return filter
}
