package repository

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/hiroki-koketsu/go-todo/internal/model"
	"github.com/hiroki-koketsu/go-todo/internal/query"
)

// matchesKeyword reports whether the keyword occurs case-insensitively in
// the title, detail or author. An empty keyword matches everything.
func matchesKeyword(t *model.Task, keyword string) bool {
	if keyword == "" {
		return true
	}
	kw := strings.ToLower(keyword)
	return strings.Contains(strings.ToLower(t.Title), kw) ||
		strings.Contains(strings.ToLower(t.Detail), kw) ||
		strings.Contains(strings.ToLower(t.Author), kw)
}

// compareNullable orders nil before any value.
func compareNullable[T any](a, b *T, compare func(T, T) int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return compare(*a, *b)
}

func compareDate(a, b model.Date) int {
	switch {
	case a.Before(b):
		return -1
	case b.Before(a):
		return 1
	}
	return 0
}

func compareField(a, b *model.Task, field query.SortField) int {
	switch field {
	case query.SortDueDate:
		return compareNullable(a.DueDate, b.DueDate, compareDate)
	case query.SortTitle:
		return cmp.Compare(a.Title, b.Title)
	case query.SortCreatedBy:
		return cmp.Compare(a.Author, b.Author)
	case query.SortStatus:
		return cmp.Compare(a.Status.Rank(), b.Status.Rank())
	case query.SortPriority:
		return cmp.Compare(a.Priority.Rank(), b.Priority.Rank())
	case query.SortCompletedAt:
		return compareNullable(a.CompletedAt, b.CompletedAt, time.Time.Compare)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

// sortTasks orders tasks by field and direction with id ascending as the
// tie-breaker. Nulls come first ascending and last descending.
func sortTasks(tasks []*model.Task, field query.SortField, dir query.Direction) {
	slices.SortStableFunc(tasks, func(a, b *model.Task) int {
		c := compareField(a, b, field)
		if dir == query.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
