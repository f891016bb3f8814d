package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	taskDomain "github.com/davicafu/hexaquery/internal/task/domain"
	"github.com/davicafu/hexaquery/pkg/operators"
	sharedDomain "github.com/davicafu/hexaquery/shared/domain"
)

var (
	ana  = taskDomain.Assignee{ID: uuid.New(), Email: "ana@example.com", Name: "Ana"}
	base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

func seededRepo(t *testing.T) *TaskRepo {
	t.Helper()
	repo := NewTaskRepo()
	require.NoError(t, repo.SaveAssignee(context.Background(), ana))
	for i, title := range []string{"Deploy api", "Write docs", "deploy web", "Fix bug", "Review PR"} {
		status := taskDomain.TaskPending
		if i%2 == 1 {
			status = taskDomain.TaskCompleted
		}
		require.NoError(t, repo.Create(context.Background(), &taskDomain.Task{
			ID: uuid.New(), Title: title, AssigneeID: ana.ID, Status: status,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	return repo
}

func list(t *testing.T, repo *TaskRepo, criteria sharedDomain.Criteria, src map[string]any) []*taskDomain.Task {
	t.Helper()
	ex := operators.Extract(src, &operators.Options{Allow: []string{taskDomain.SearchOperator}})
	tasks, err := repo.ListByQuery(context.Background(), criteria, ex.Apply)
	require.NoError(t, err)
	return tasks
}

func titles(tasks []*taskDomain.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Title
	}
	return out
}

func TestTaskRepo_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepo()
	task := &taskDomain.Task{ID: uuid.New(), Title: "Deploy", Status: taskDomain.TaskPending}

	require.NoError(t, repo.Create(ctx, task))
	assert.ErrorIs(t, repo.Create(ctx, task), taskDomain.ErrTaskAlreadyExists)

	task.Complete()
	require.NoError(t, repo.Update(ctx, task))
	got, err := repo.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, taskDomain.TaskCompleted, got.Status)

	require.NoError(t, repo.DeleteByID(ctx, task.ID))
	_, err = repo.GetByID(ctx, task.ID)
	assert.ErrorIs(t, err, taskDomain.ErrTaskNotFound)
	assert.ErrorIs(t, repo.Update(ctx, task), taskDomain.ErrTaskNotFound)
}

func TestTaskRepo_ListWithoutOperators(t *testing.T) {
	repo := seededRepo(t)

	tasks, err := repo.ListByQuery(context.Background(), nil, nil)

	require.NoError(t, err)
	assert.Len(t, tasks, 5)
}

func TestTaskRepo_SortPageLimit(t *testing.T) {
	repo := seededRepo(t)

	tasks := list(t, repo, nil, map[string]any{"$sort": "-createdAt", "$page": "1", "$limit": "2"})

	assert.Equal(t, []string{"deploy web", "Write docs"}, titles(tasks))
}

func TestTaskRepo_MultipleSorts(t *testing.T) {
	repo := seededRepo(t)

	tasks := list(t, repo, nil, map[string]any{"$sort": []any{"status", "-title"}})

	assert.Equal(t, []string{"Write docs", "Fix bug", "deploy web", "Review PR", "Deploy api"}, titles(tasks))
}

func TestTaskRepo_SkipBeyondEnd(t *testing.T) {
	repo := seededRepo(t)

	tasks := list(t, repo, nil, map[string]any{"$skip": 10})

	assert.Empty(t, tasks)
}

func TestTaskRepo_WindowOutOfRange(t *testing.T) {
	repo := seededRepo(t)
	tests := []struct {
		name string
		src  map[string]any
		op   string
	}{
		{"skip", map[string]any{"$skip": "1e20"}, operators.OpSkip},
		{"page", map[string]any{"$page": "1e18"}, operators.OpSkip},
		{"limit", map[string]any{"$limit": "1e19"}, operators.OpLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := operators.Extract(tt.src, nil)

			_, err := repo.ListByQuery(context.Background(), nil, ex.Apply)

			var opErr operators.InvalidOperatorError
			require.ErrorAs(t, err, &opErr)
			assert.Equal(t, tt.op, opErr.Operator)
			assert.ErrorIs(t, err, operators.ErrOutOfRange)
		})
	}
}

func TestTaskRepo_LargeSkipWithinRange(t *testing.T) {
	repo := seededRepo(t)

	tasks := list(t, repo, nil, map[string]any{"$skip": "9e18"})

	assert.Empty(t, tasks)
}

func TestTaskRepo_CriteriaAndSearch(t *testing.T) {
	repo := seededRepo(t)
	criteria := sharedDomain.And(
		taskDomain.StatusCriteria{Status: taskDomain.TaskPending},
		taskDomain.AssigneeIDCriteria{ID: ana.ID},
	)

	tasks := list(t, repo, criteria, map[string]any{"$search": "DEPLOY", "$sort": "title"})

	assert.Equal(t, []string{"Deploy api", "deploy web"}, titles(tasks))
}

func TestTaskRepo_CreatedAtRange(t *testing.T) {
	repo := seededRepo(t)
	from, to := base.Add(time.Hour), base.Add(2*time.Hour)

	tasks := list(t, repo, taskDomain.CreatedAtRangeCriteria{Start: &from, End: &to}, map[string]any{"$sort": "createdAt"})

	assert.Equal(t, []string{"Write docs", "deploy web"}, titles(tasks))
}

func TestTaskRepo_SelectAndPopulate(t *testing.T) {
	repo := seededRepo(t)

	tasks := list(t, repo, nil, map[string]any{"$select": []any{"title"}, "$populate": "assignee", "$limit": 1, "$sort": "title"})

	require.Len(t, tasks, 1)
	task := tasks[0]
	assert.Equal(t, "Deploy api", task.Title)
	assert.NotEqual(t, uuid.Nil, task.ID)
	assert.Empty(t, task.Status)
	assert.Equal(t, uuid.Nil, task.AssigneeID)
	require.NotNil(t, task.Assignee)
	assert.Equal(t, "Ana", task.Assignee.Name)
}

func TestTaskRepo_SelectExclude(t *testing.T) {
	repo := seededRepo(t)

	tasks := list(t, repo, nil, map[string]any{"$select": "-title", "$limit": 1})

	require.Len(t, tasks, 1)
	assert.Empty(t, tasks[0].Title)
	assert.NotEmpty(t, tasks[0].Status)
}

func TestTaskRepo_ResultsAreCopies(t *testing.T) {
	repo := seededRepo(t)

	tasks := list(t, repo, nil, map[string]any{"$sort": "title", "$limit": 1})
	tasks[0].Title = "changed"

	again := list(t, repo, nil, map[string]any{"$sort": "title", "$limit": 1})
	assert.Equal(t, "Deploy api", again[0].Title)
}

func TestTaskRepo_InvalidOperators(t *testing.T) {
	repo := seededRepo(t)
	tests := []struct {
		name string
		src  map[string]any
	}{
		{"campo de orden desconocido", map[string]any{"$sort": "password"}},
		{"campo de select desconocido", map[string]any{"$select": "password"}},
		{"relación desconocida", map[string]any{"$populate": "project"}},
		{"search no string", map[string]any{"$search": 42}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := operators.Extract(tt.src, &operators.Options{Allow: []string{taskDomain.SearchOperator}})
			_, err := repo.ListByQuery(context.Background(), nil, ex.Apply)
			assert.Error(t, err)
		})
	}
}

func TestQueryBuilder_KeepsOperators(t *testing.T) {
	ex := operators.Extract(map[string]any{"$limit": "3", "status": "pending"}, nil)

	out, err := ex.Apply(NewQueryBuilder(nil))

	require.NoError(t, err)
	qb := out.(*QueryBuilder)
	assert.Equal(t, "3", qb.Operators()[operators.OpLimit])
	assert.Equal(t, 3, qb.limit)
}
