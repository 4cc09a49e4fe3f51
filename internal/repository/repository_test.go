package repository

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/hiroki-koketsu/go-todo/internal/lifecycle"
	"github.com/hiroki-koketsu/go-todo/internal/model"
	"github.com/hiroki-koketsu/go-todo/internal/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// store is the combined contract both repositories implement.
type store interface {
	query.Reader
	lifecycle.Store
	Count() int64
	Close() error
}

var (
	_ store = (*TaskRepository)(nil)
	_ store = (*SQLRepository)(nil)
)

// setupStores returns a fresh instance of every store implementation.
func setupStores(t *testing.T) map[string]store {
	t.Helper()

	sqlRepo, err := OpenSQL(":memory:", false)
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() { _ = sqlRepo.Close() })

	return map[string]store{
		"memory": NewTaskRepository(),
		"sqlite": sqlRepo,
	}
}

var base = time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)

func date(month time.Month, day int) *model.Date {
	return &model.Date{Year: 2026, Month: month, Day: day}
}

func seed(t *testing.T, s store, tasks ...model.Task) []string {
	t.Helper()
	ids := make([]string, 0, len(tasks))
	for i := range tasks {
		task := tasks[i]
		require.NoError(t, s.Insert(context.Background(), &task))
		ids = append(ids, task.ID)
	}
	return ids
}

func titles(tasks []model.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Title
	}
	return out
}

func sample() []model.Task {
	done1 := base.Add(48 * time.Hour)
	done2 := base.Add(72 * time.Hour)
	return []model.Task{
		{Title: "Buy milk", Author: "sato", CreatedAt: base, DueDate: date(time.March, 5), Priority: model.PriorityFree, Status: model.StatusNotStarted},
		{Title: "Write report", Detail: "Quarterly MILK sales", Author: "suzuki", CreatedAt: base.Add(time.Hour), NoDueDate: true, Priority: model.PriorityTop, Status: model.StatusInProgress},
		{Title: "Call client", Author: "Milkman", CreatedAt: base.Add(2 * time.Hour), DueDate: date(time.March, 2), Priority: model.PriorityToday, Status: model.StatusOnHold},
		{Title: "Archive mail", Author: "sato", CreatedAt: base.Add(3 * time.Hour), NoDueDate: true, Priority: model.PriorityThisWeek, Status: model.StatusCompleted, CompletedAt: &done1},
		{Title: "Pay invoice", Author: "ito", CreatedAt: base.Add(4 * time.Hour), DueDate: date(time.March, 3), Priority: model.PriorityTop, Status: model.StatusCompleted, CompletedAt: &done2},
	}
}

func TestStores_InsertAndFetchByID(t *testing.T) {
	for name, s := range setupStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			done := base.Add(time.Hour)
			task := model.Task{
				Title:       "Ship release",
				Detail:      "v1.2",
				Author:      "kato",
				CreatedAt:   base,
				DueDate:     date(time.April, 1),
				Priority:    model.PriorityTop,
				Status:      model.StatusCompleted,
				CompletedAt: &done,
			}
			require.NoError(t, s.Insert(ctx, &task))
			require.NotEmpty(t, task.ID)

			got, err := s.FetchByID(ctx, task.ID)
			require.NoError(t, err)
			assert.Equal(t, task.ID, got.ID)
			assert.Equal(t, "Ship release", got.Title)
			assert.Equal(t, "v1.2", got.Detail)
			assert.Equal(t, "kato", got.Author)
			assert.True(t, base.Equal(got.CreatedAt))
			assert.Equal(t, *task.DueDate, *got.DueDate)
			assert.Equal(t, model.PriorityTop, got.Priority)
			assert.Equal(t, model.StatusCompleted, got.Status)
			require.NotNil(t, got.CompletedAt)
			assert.True(t, done.Equal(*got.CompletedAt))

			_, err = s.FetchByID(ctx, "missing")
			assert.ErrorIs(t, err, model.ErrTaskNotFound)
		})
	}
}

func TestStores_ActiveQueries(t *testing.T) {
	for name, s := range setupStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed(t, s, sample()...)

			n, err := s.CountActive(ctx, "")
			require.NoError(t, err)
			assert.Equal(t, int64(3), n)
			assert.Equal(t, int64(3), s.Count())

			n, err = s.CountActive(ctx, "milk")
			require.NoError(t, err)
			assert.Equal(t, int64(3), n, "keyword matches title, detail and author case-insensitively")

			n, err = s.CountActive(ctx, "report")
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			got, err := s.FetchActive(ctx, "", query.SortCreatedAt, query.Desc, 15, 0)
			require.NoError(t, err)
			assert.Equal(t, []string{"Call client", "Write report", "Buy milk"}, titles(got))

			got, err = s.FetchActive(ctx, "", query.SortPriority, query.Asc, 15, 0)
			require.NoError(t, err)
			assert.Equal(t, []string{"Write report", "Call client", "Buy milk"}, titles(got))

			got, err = s.FetchActive(ctx, "", query.SortStatus, query.Desc, 15, 0)
			require.NoError(t, err)
			assert.Equal(t, []string{"Call client", "Write report", "Buy milk"}, titles(got))

			got, err = s.FetchActive(ctx, "", query.SortDueDate, query.Asc, 15, 0)
			require.NoError(t, err)
			assert.Equal(t, []string{"Write report", "Call client", "Buy milk"}, titles(got), "null due date sorts first ascending")

			got, err = s.FetchActive(ctx, "", query.SortDueDate, query.Desc, 15, 0)
			require.NoError(t, err)
			assert.Equal(t, []string{"Buy milk", "Call client", "Write report"}, titles(got), "null due date sorts last descending")

			got, err = s.FetchActive(ctx, "", query.SortTitle, query.Asc, 2, 1)
			require.NoError(t, err)
			assert.Equal(t, []string{"Call client", "Write report"}, titles(got))

			got, err = s.FetchActive(ctx, "", query.SortCreatedBy, query.Asc, 15, 0)
			require.NoError(t, err)
			assert.Equal(t, []string{"Call client", "Buy milk", "Write report"}, titles(got))

			got, err = s.FetchActive(ctx, "", query.SortTitle, query.Asc, 15, 30)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestStores_FetchActiveWindow(t *testing.T) {
	for name, s := range setupStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed(t, s, sample()...)

			_, err := s.FetchActive(ctx, "", query.SortTitle, query.Asc, 15, -15)
			assert.Error(t, err)

			_, err = s.FetchActive(ctx, "", query.SortTitle, query.Asc, -1, 0)
			assert.Error(t, err)

			got, err := s.FetchActive(ctx, "", query.SortTitle, query.Asc, math.MaxInt, 1)
			require.NoError(t, err)
			assert.Equal(t, []string{"Call client", "Write report"}, titles(got))
		})
	}
}

func TestStores_KeywordIsLiteral(t *testing.T) {
	for name, s := range setupStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed(t, s,
				model.Task{Title: "100% done", Author: "a", CreatedAt: base, NoDueDate: true, Priority: model.PriorityFree, Status: model.StatusReady},
				model.Task{Title: "1000 done", Author: "a", CreatedAt: base, NoDueDate: true, Priority: model.PriorityFree, Status: model.StatusReady},
				model.Task{Title: "snake_case", Author: "a", CreatedAt: base, NoDueDate: true, Priority: model.PriorityFree, Status: model.StatusReady},
				model.Task{Title: "snakeXcase", Author: "a", CreatedAt: base, NoDueDate: true, Priority: model.PriorityFree, Status: model.StatusReady},
			)

			n, err := s.CountActive(ctx, "0%")
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			n, err = s.CountActive(ctx, "e_c")
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)
		})
	}
}

func TestStores_FetchCompleted(t *testing.T) {
	for name, s := range setupStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed(t, s, sample()...)

			got, err := s.FetchCompleted(ctx, "", 5)
			require.NoError(t, err)
			assert.Equal(t, []string{"Pay invoice", "Archive mail"}, titles(got))

			got, err = s.FetchCompleted(ctx, "", 1)
			require.NoError(t, err)
			assert.Equal(t, []string{"Pay invoice"}, titles(got))

			got, err = s.FetchCompleted(ctx, "SATO", 5)
			require.NoError(t, err)
			assert.Equal(t, []string{"Archive mail"}, titles(got))
		})
	}
}

func TestStores_FetchAll(t *testing.T) {
	for name, s := range setupStores(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, s, sample()...)

			got, err := s.FetchAll(context.Background(), "", query.SortCreatedAt, query.Asc)
			require.NoError(t, err)
			assert.Equal(t, []string{"Buy milk", "Write report", "Call client", "Archive mail", "Pay invoice"}, titles(got))
		})
	}
}

func TestStores_TiesBreakByID(t *testing.T) {
	for name, s := range setupStores(t) {
		t.Run(name, func(t *testing.T) {
			var tasks []model.Task
			for i := 0; i < 6; i++ {
				tasks = append(tasks, model.Task{
					Title: fmt.Sprintf("same %d", i), Author: "a", CreatedAt: base,
					NoDueDate: true, Priority: model.PriorityToday, Status: model.StatusReady,
				})
			}
			seed(t, s, tasks...)

			first, err := s.FetchActive(context.Background(), "", query.SortCreatedAt, query.Desc, 6, 0)
			require.NoError(t, err)
			for i := 1; i < len(first); i++ {
				assert.Less(t, first[i-1].ID, first[i].ID)
			}

			page1, err := s.FetchActive(context.Background(), "", query.SortPriority, query.Asc, 3, 0)
			require.NoError(t, err)
			page2, err := s.FetchActive(context.Background(), "", query.SortPriority, query.Asc, 3, 3)
			require.NoError(t, err)
			assert.Equal(t, first, append(page1, page2...))
		})
	}
}

func TestStores_Updates(t *testing.T) {
	for name, s := range setupStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ids := seed(t, s, sample()...)

			task, err := s.FetchByID(ctx, ids[0])
			require.NoError(t, err)
			task.Title = "Buy oat milk"
			task.DueDate = nil
			task.NoDueDate = true
			task.Status = model.StatusReady
			require.NoError(t, s.UpdateFull(ctx, task))

			got, err := s.FetchByID(ctx, ids[0])
			require.NoError(t, err)
			assert.Equal(t, "Buy oat milk", got.Title)
			assert.Nil(t, got.DueDate)
			assert.True(t, got.NoDueDate)
			assert.Equal(t, model.StatusReady, got.Status)
			assert.True(t, base.Equal(got.CreatedAt))

			done := base.Add(96 * time.Hour)
			require.NoError(t, s.UpdateStatus(ctx, ids[0], model.StatusCompleted, &done))
			got, err = s.FetchByID(ctx, ids[0])
			require.NoError(t, err)
			assert.Equal(t, model.StatusCompleted, got.Status)
			require.NotNil(t, got.CompletedAt)
			assert.True(t, done.Equal(*got.CompletedAt))
			assert.Equal(t, "Buy oat milk", got.Title)

			require.NoError(t, s.UpdateStatus(ctx, ids[0], model.StatusInReview, nil))
			got, err = s.FetchByID(ctx, ids[0])
			require.NoError(t, err)
			assert.Nil(t, got.CompletedAt)

			require.NoError(t, s.UpdatePriority(ctx, ids[0], model.PriorityTop))
			got, err = s.FetchByID(ctx, ids[0])
			require.NoError(t, err)
			assert.Equal(t, model.PriorityTop, got.Priority)
			assert.Equal(t, model.StatusInReview, got.Status)

			missing := &model.Task{ID: "missing", Title: "x", Author: "y", Priority: model.PriorityTop, Status: model.StatusReady}
			assert.ErrorIs(t, s.UpdateFull(ctx, missing), model.ErrTaskNotFound)
			assert.ErrorIs(t, s.UpdateStatus(ctx, "missing", model.StatusReady, nil), model.ErrTaskNotFound)
			assert.ErrorIs(t, s.UpdatePriority(ctx, "missing", model.PriorityTop), model.ErrTaskNotFound)
		})
	}
}

func TestStores_Delete(t *testing.T) {
	for name, s := range setupStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ids := seed(t, s, sample()...)

			require.NoError(t, s.Delete(ctx, ids[1]))
			_, err := s.FetchByID(ctx, ids[1])
			assert.ErrorIs(t, err, model.ErrTaskNotFound)
			assert.ErrorIs(t, s.Delete(ctx, ids[1]), model.ErrTaskNotFound)
			assert.Equal(t, int64(2), s.Count())
		})
	}
}

func TestTaskRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository()
	ids := seed(t, repo, sample()[0])

	got, err := repo.FetchByID(ctx, ids[0])
	require.NoError(t, err)
	got.Title = "mutated"
	got.DueDate.Day = 28

	again, err := repo.FetchByID(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", again.Title)
	assert.Equal(t, 5, again.DueDate.Day)
}

func TestRankExpression(t *testing.T) {
	expr := rankExpression("priority", model.Priorities())
	assert.Equal(t, "CASE priority WHEN 'TOP' THEN 0 WHEN 'TODAY' THEN 1 WHEN 'THIS_WEEK' THEN 2 WHEN 'FREE' THEN 3 ELSE 4 END", expr)

	for _, f := range query.SortFields() {
		assert.Contains(t, sortExpressions, f)
	}
}
