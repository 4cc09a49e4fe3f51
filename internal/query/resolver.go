package query

import (
	"context"
	"fmt"

	"github.com/hiroki-koketsu/go-todo/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/hiroki-koketsu/go-todo/internal/query")

// Reader is the read side of a task record store. An empty keyword means
// no keyword filter.
type Reader interface {
	CountActive(ctx context.Context, keyword string) (int64, error)
	FetchActive(ctx context.Context, keyword string, sort SortField, dir Direction, limit, offset int) ([]model.Task, error)
	FetchCompleted(ctx context.Context, keyword string, limit int) ([]model.Task, error)
	FetchAll(ctx context.Context, keyword string, sort SortField, dir Direction) ([]model.Task, error)
}

// Resolver builds pages and listings from a Reader.
type Resolver struct {
	reader Reader
}

// NewResolver creates a new Resolver.
func NewResolver(reader Reader) *Resolver {
	return &Resolver{reader: reader}
}

// ActivePage returns one page of non-completed tasks. The count and the
// fetch are separate store calls, so under concurrent writes the content
// may not reconcile exactly with the reported total.
func (r *Resolver) ActivePage(ctx context.Context, q Query) (Page, error) {
	kw, _ := ResolveKeyword(q.Keyword)
	sort := ResolveSort(string(q.Sort))
	dir := ResolveDirection(string(q.Direction))
	index, size := ResolvePage(q.PageIndex, q.PageSize)

	ctx, span := tracer.Start(ctx, "Resolver.ActivePage",
		trace.WithAttributes(
			attribute.String("query.sort", string(sort)),
			attribute.String("query.direction", string(dir)),
			attribute.Int("query.page", index),
			attribute.Int("query.page_size", size),
			attribute.Bool("query.keyword", kw != ""),
		),
	)
	defer span.End()

	total, err := r.reader.CountActive(ctx, kw)
	if err != nil {
		return Page{}, fmt.Errorf("failed to count active tasks: %w", err)
	}

	var content []model.Task
	if offset, ok := pageOffset(index, size, total); ok {
		content, err = r.reader.FetchActive(ctx, kw, sort, dir, size, offset)
		if err != nil {
			return Page{}, fmt.Errorf("failed to fetch active tasks: %w", err)
		}
	}

	span.SetAttributes(attribute.Int64("query.total", total))
	return NewPage(content, index, size, total), nil
}

// pageOffset returns the offset of the first record of page index, or false
// when the page lies past the end of total records.
func pageOffset(index, size int, total int64) (int, bool) {
	if total <= 0 || int64(index) > (total-1)/int64(size) {
		return 0, false
	}
	return index * size, true
}

// CompletedDigest returns up to limit completed tasks, most recently
// completed first. limit is clamped to at least 1.
func (r *Resolver) CompletedDigest(ctx context.Context, keyword string, limit int) ([]model.Task, error) {
	kw, _ := ResolveKeyword(keyword)
	limit = max(limit, 1)

	ctx, span := tracer.Start(ctx, "Resolver.CompletedDigest",
		trace.WithAttributes(attribute.Int("query.limit", limit)),
	)
	defer span.End()

	tasks, err := r.reader.FetchCompleted(ctx, kw, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch completed tasks: %w", err)
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}

// All returns every task regardless of status in the resolved order.
func (r *Resolver) All(ctx context.Context, keyword, sort, dir string) ([]model.Task, error) {
	kw, _ := ResolveKeyword(keyword)

	ctx, span := tracer.Start(ctx, "Resolver.All")
	defer span.End()

	tasks, err := r.reader.FetchAll(ctx, kw, ResolveSort(sort), ResolveDirection(dir))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tasks: %w", err)
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}
