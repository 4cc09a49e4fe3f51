package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hiroki-koketsu/go-todo/internal/model"
	"github.com/hiroki-koketsu/go-todo/internal/query"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/hiroki-koketsu/go-todo/internal/repository")

// TaskRepository provides an in-memory storage for tasks.
type TaskRepository struct {
	mu    sync.RWMutex
	tasks map[string]*model.Task
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository() *TaskRepository {
	return &TaskRepository{
		tasks: make(map[string]*model.Task),
	}
}

func clone(t *model.Task) *model.Task {
	c := *t
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		c.CompletedAt = &ts
	}
	return &c
}

// Insert stores a new task and assigns its id.
func (r *TaskRepository) Insert(ctx context.Context, task *model.Task) error {
	_, span := tracer.Start(ctx, "TaskRepository.Insert",
		trace.WithAttributes(attribute.String("task.title", task.Title)),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	task.ID = uuid.New().String()
	r.tasks[task.ID] = clone(task)

	span.SetAttributes(attribute.String("task.id", task.ID))
	return nil
}

// FetchByID retrieves a task by its ID.
func (r *TaskRepository) FetchByID(ctx context.Context, id string) (*model.Task, error) {
	_, span := tracer.Start(ctx, "TaskRepository.FetchByID",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[id]
	if !ok {
		span.SetAttributes(attribute.Bool("task.found", false))
		return nil, model.ErrTaskNotFound
	}

	span.SetAttributes(attribute.Bool("task.found", true))
	return clone(task), nil
}

// collect returns copies of the tasks accepted by keep.
func (r *TaskRepository) collect(keep func(*model.Task) bool) []*model.Task {
	out := make([]*model.Task, 0, len(r.tasks))
	for _, task := range r.tasks {
		if keep(task) {
			out = append(out, clone(task))
		}
	}
	return out
}

func deref(tasks []*model.Task) []model.Task {
	out := make([]model.Task, len(tasks))
	for i, t := range tasks {
		out[i] = *t
	}
	return out
}

// CountActive counts non-completed tasks matching the keyword.
func (r *TaskRepository) CountActive(ctx context.Context, keyword string) (int64, error) {
	_, span := tracer.Start(ctx, "TaskRepository.CountActive")
	defer span.End()

	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, task := range r.tasks {
		if !task.IsCompleted() && matchesKeyword(task, keyword) {
			n++
		}
	}

	span.SetAttributes(attribute.Int64("task.count", n))
	return n, nil
}

// checkWindow rejects a negative page window.
func checkWindow(limit, offset int) error {
	if limit < 0 || offset < 0 {
		return fmt.Errorf("invalid page window: limit %d, offset %d", limit, offset)
	}
	return nil
}

// FetchActive returns one ordered slice of non-completed tasks.
func (r *TaskRepository) FetchActive(ctx context.Context, keyword string, sort query.SortField, dir query.Direction, limit, offset int) ([]model.Task, error) {
	_, span := tracer.Start(ctx, "TaskRepository.FetchActive",
		trace.WithAttributes(
			attribute.String("query.sort", string(sort)),
			attribute.Int("query.limit", limit),
			attribute.Int("query.offset", offset),
		),
	)
	defer span.End()

	if err := checkWindow(limit, offset); err != nil {
		span.RecordError(err)
		return nil, err
	}

	r.mu.RLock()
	tasks := r.collect(func(t *model.Task) bool {
		return !t.IsCompleted() && matchesKeyword(t, keyword)
	})
	r.mu.RUnlock()

	sortTasks(tasks, sort, dir)

	if offset >= len(tasks) {
		return []model.Task{}, nil
	}
	end := offset + min(limit, len(tasks)-offset)

	span.SetAttributes(attribute.Int("task.count", end-offset))
	return deref(tasks[offset:end]), nil
}

// FetchCompleted returns up to limit completed tasks, latest completion first.
func (r *TaskRepository) FetchCompleted(ctx context.Context, keyword string, limit int) ([]model.Task, error) {
	_, span := tracer.Start(ctx, "TaskRepository.FetchCompleted",
		trace.WithAttributes(attribute.Int("query.limit", limit)),
	)
	defer span.End()

	r.mu.RLock()
	tasks := r.collect(func(t *model.Task) bool {
		return t.IsCompleted() && matchesKeyword(t, keyword)
	})
	r.mu.RUnlock()

	sortTasks(tasks, query.SortCompletedAt, query.Desc)
	if len(tasks) > limit {
		tasks = tasks[:limit]
	}

	span.SetAttributes(attribute.Int("task.count", len(tasks)))
	return deref(tasks), nil
}

// FetchAll returns every task matching the keyword in the given order.
func (r *TaskRepository) FetchAll(ctx context.Context, keyword string, sort query.SortField, dir query.Direction) ([]model.Task, error) {
	_, span := tracer.Start(ctx, "TaskRepository.FetchAll")
	defer span.End()

	r.mu.RLock()
	tasks := r.collect(func(t *model.Task) bool {
		return matchesKeyword(t, keyword)
	})
	r.mu.RUnlock()

	sortTasks(tasks, sort, dir)

	span.SetAttributes(attribute.Int("task.count", len(tasks)))
	return deref(tasks), nil
}

// UpdateFull replaces a stored task with the given record.
func (r *TaskRepository) UpdateFull(ctx context.Context, task *model.Task) error {
	_, span := tracer.Start(ctx, "TaskRepository.UpdateFull",
		trace.WithAttributes(attribute.String("task.id", task.ID)),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[task.ID]; !ok {
		span.SetAttributes(attribute.Bool("task.found", false))
		return model.ErrTaskNotFound
	}

	r.tasks[task.ID] = clone(task)
	span.SetAttributes(attribute.Bool("task.found", true))
	return nil
}

// UpdateStatus sets the status and completion time of a task.
func (r *TaskRepository) UpdateStatus(ctx context.Context, id string, status model.Status, completedAt *time.Time) error {
	_, span := tracer.Start(ctx, "TaskRepository.UpdateStatus",
		trace.WithAttributes(
			attribute.String("task.id", id),
			attribute.String("task.status", string(status)),
		),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		span.SetAttributes(attribute.Bool("task.found", false))
		return model.ErrTaskNotFound
	}

	task.Status = status
	task.CompletedAt = nil
	if completedAt != nil {
		ts := *completedAt
		task.CompletedAt = &ts
	}

	span.SetAttributes(attribute.Bool("task.found", true))
	return nil
}

// UpdatePriority sets the priority of a task.
func (r *TaskRepository) UpdatePriority(ctx context.Context, id string, priority model.Priority) error {
	_, span := tracer.Start(ctx, "TaskRepository.UpdatePriority",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		span.SetAttributes(attribute.Bool("task.found", false))
		return model.ErrTaskNotFound
	}

	task.Priority = priority
	span.SetAttributes(attribute.Bool("task.found", true))
	return nil
}

// Delete removes a task from the repository.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	_, span := tracer.Start(ctx, "TaskRepository.Delete",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; !ok {
		span.SetAttributes(attribute.Bool("task.found", false))
		return model.ErrTaskNotFound
	}

	delete(r.tasks, id)
	span.SetAttributes(attribute.Bool("task.found", true))
	return nil
}

// Count returns the current number of active tasks.
func (r *TaskRepository) Count() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, task := range r.tasks {
		if !task.IsCompleted() {
			n++
		}
	}
	return n
}

// Close is a no-op; it lets the in-memory store stand in for the SQL store.
func (r *TaskRepository) Close() error {
	return nil
}
