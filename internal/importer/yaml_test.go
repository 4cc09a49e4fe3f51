package importer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hiroki-koketsu/go-todo/internal/lifecycle"
	"github.com/hiroki-koketsu/go-todo/internal/model"
	"github.com/hiroki-koketsu/go-todo/internal/query"
	"github.com/hiroki-koketsu/go-todo/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const document = `
tasks:
  - title: Renew passport
    author: sato
    due_date: 2026-12-01
    priority: TOP
    status: IN_PROGRESS
    created_at: 2025-06-01T10:00:00Z
  - title: Read book
    detail: chapter 3
    author: ito
    no_due_date: true
    due_date: 2026-01-01
  - title: File taxes
    author: sato
    no_due_date: true
    priority: TODAY
    status: COMPLETED
    created_at: 2025-02-01T09:00:00Z
    completed_at: 2025-03-10T18:30:00Z
`

func setup() (*lifecycle.Engine, *repository.TaskRepository) {
	repo := repository.NewTaskRepository()
	return lifecycle.NewEngine(repo), repo
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	engine, repo := setup()

	n, err := Import(ctx, engine, []byte(document))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	all, err := repo.FetchAll(ctx, "", query.SortTitle, query.Asc)
	require.NoError(t, err)
	require.Len(t, all, 3)

	taxes, book, passport := all[0], all[1], all[2]

	assert.Equal(t, "Renew passport", passport.Title)
	assert.Equal(t, model.PriorityTop, passport.Priority)
	assert.Equal(t, model.StatusInProgress, passport.Status)
	assert.Equal(t, "2026-12-01", passport.DueDate.String())
	assert.True(t, time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC).Equal(passport.CreatedAt))

	assert.Equal(t, "Read book", book.Title)
	assert.Nil(t, book.DueDate, "no_due_date wins over due_date")
	assert.Equal(t, model.DefaultPriority, book.Priority)
	assert.Equal(t, model.DefaultStatus, book.Status)
	assert.False(t, book.CreatedAt.IsZero())

	assert.Equal(t, "File taxes", taxes.Title)
	require.NotNil(t, taxes.CompletedAt)
	assert.True(t, time.Date(2025, time.March, 10, 18, 30, 0, 0, time.UTC).Equal(*taxes.CompletedAt))
}

func TestImport_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("malformed yaml", func(t *testing.T) {
		engine, _ := setup()
		_, err := Import(ctx, engine, []byte("tasks: [unclosed"))
		assert.Error(t, err)
	})

	t.Run("empty document", func(t *testing.T) {
		engine, _ := setup()
		_, err := Import(ctx, engine, []byte("tasks: []"))
		assert.Error(t, err)
	})

	t.Run("stops at first invalid task", func(t *testing.T) {
		engine, repo := setup()
		doc := `
tasks:
  - title: ok
    author: a
    no_due_date: true
  - title: ""
    author: b
    no_due_date: true
  - title: never
    author: c
    no_due_date: true
`
		n, err := Import(ctx, engine, []byte(doc))
		assert.Equal(t, 1, n)

		var ierr *ImportError
		require.True(t, errors.As(err, &ierr))
		assert.Equal(t, 1, ierr.Index)

		var verr *model.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.True(t, verr.Has("title"))
		assert.Equal(t, int64(1), repo.Count())
	})

	t.Run("bad due date", func(t *testing.T) {
		engine, _ := setup()
		_, err := Import(ctx, engine, []byte("tasks:\n  - title: x\n    author: y\n    due_date: tomorrow\n"))
		var ierr *ImportError
		require.ErrorAs(t, err, &ierr)
		assert.Equal(t, 0, ierr.Index)
	})
}

func TestExportRoundTrip(t *testing.T) {
	ctx := context.Background()
	engine, repo := setup()
	_, err := Import(ctx, engine, []byte(document))
	require.NoError(t, err)

	source, err := repo.FetchAll(ctx, "", query.SortTitle, query.Asc)
	require.NoError(t, err)

	out, err := Export(source)
	require.NoError(t, err)
	assert.Contains(t, string(out), "title: Renew passport")

	engine2, repo2 := setup()
	n, err := Import(ctx, engine2, out)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	copied, err := repo2.FetchAll(ctx, "", query.SortTitle, query.Asc)
	require.NoError(t, err)
	require.Len(t, copied, len(source))

	for i := range source {
		want, got := source[i], copied[i]
		assert.NotEqual(t, want.ID, got.ID, "ids are reassigned")
		assert.Equal(t, want.Title, got.Title)
		assert.Equal(t, want.Detail, got.Detail)
		assert.Equal(t, want.Author, got.Author)
		assert.Equal(t, want.DueDate, got.DueDate)
		assert.Equal(t, want.NoDueDate, got.NoDueDate)
		assert.Equal(t, want.Priority, got.Priority)
		assert.Equal(t, want.Status, got.Status)
		assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
		if want.CompletedAt == nil {
			assert.Nil(t, got.CompletedAt)
		} else {
			require.NotNil(t, got.CompletedAt)
			assert.True(t, want.CompletedAt.Equal(*got.CompletedAt))
		}
	}
}
