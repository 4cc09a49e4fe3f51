// Package lifecycle enforces the task invariants on create, update and
// targeted status or priority transitions.
package lifecycle

import (
	"context"
	"time"

	"github.com/hiroki-koketsu/go-todo/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/hiroki-koketsu/go-todo/internal/lifecycle")

// Store is the write side of a task record store. Operations addressing a
// missing id return model.ErrTaskNotFound.
type Store interface {
	FetchByID(ctx context.Context, id string) (*model.Task, error)
	Insert(ctx context.Context, task *model.Task) error
	UpdateFull(ctx context.Context, task *model.Task) error
	UpdateStatus(ctx context.Context, id string, status model.Status, completedAt *time.Time) error
	UpdatePriority(ctx context.Context, id string, priority model.Priority) error
	Delete(ctx context.Context, id string) error
}

// Engine applies the lifecycle rules before handing records to a Store.
type Engine struct {
	store Store
	now   func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the time source used for createdAt and completedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a new Engine.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Create stamps, normalizes and validates task, then inserts it. An
// existing createdAt is kept so imported records retain their history.
// The store assigns the id.
func (e *Engine) Create(ctx context.Context, task *model.Task) (*model.Task, error) {
	ctx, span := tracer.Start(ctx, "Engine.Create",
		trace.WithAttributes(attribute.String("task.status", string(task.Status))),
	)
	defer span.End()

	now := e.now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	normalizeDueDate(task)
	applyCompletion(task, now)

	if err := task.Validate(); err != nil {
		return nil, err
	}

	if err := e.store.Insert(ctx, task); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("task.id", task.ID))
	return task, nil
}

// Update replaces every mutable field of the task with the incoming values
// and persists the whole record. id and createdAt are never changed.
func (e *Engine) Update(ctx context.Context, id string, incoming *model.Task) (*model.Task, error) {
	ctx, span := tracer.Start(ctx, "Engine.Update",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	existing, err := e.store.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}

	existing.Title = incoming.Title
	existing.Detail = incoming.Detail
	existing.Author = incoming.Author
	existing.DueDate = incoming.DueDate
	existing.NoDueDate = incoming.NoDueDate
	existing.Priority = incoming.Priority
	existing.Status = incoming.Status

	normalizeDueDate(existing)
	applyCompletion(existing, e.now())

	if err := existing.Validate(); err != nil {
		return nil, err
	}

	if err := e.store.UpdateFull(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// TransitionStatus writes the status and its completion time without
// reading the rest of the record.
func (e *Engine) TransitionStatus(ctx context.Context, id string, status model.Status) (*time.Time, error) {
	ctx, span := tracer.Start(ctx, "Engine.TransitionStatus",
		trace.WithAttributes(
			attribute.String("task.id", id),
			attribute.String("task.status", string(status)),
		),
	)
	defer span.End()

	if err := model.ValidateStatus(status); err != nil {
		return nil, err
	}

	var completedAt *time.Time
	if status == model.StatusCompleted {
		now := e.now()
		completedAt = &now
	}

	if err := e.store.UpdateStatus(ctx, id, status, completedAt); err != nil {
		return nil, err
	}
	return completedAt, nil
}

// TransitionPriority writes the priority only.
func (e *Engine) TransitionPriority(ctx context.Context, id string, priority model.Priority) error {
	ctx, span := tracer.Start(ctx, "Engine.TransitionPriority",
		trace.WithAttributes(
			attribute.String("task.id", id),
			attribute.String("task.priority", string(priority)),
		),
	)
	defer span.End()

	if err := model.ValidatePriority(priority); err != nil {
		return err
	}
	return e.store.UpdatePriority(ctx, id, priority)
}

// Delete removes the task permanently.
func (e *Engine) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Engine.Delete",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	return e.store.Delete(ctx, id)
}

// Get returns the task with the given id.
func (e *Engine) Get(ctx context.Context, id string) (*model.Task, error) {
	return e.store.FetchByID(ctx, id)
}

// normalizeDueDate clears the due date when the no-due-date flag is set.
func normalizeDueDate(task *model.Task) {
	if task.NoDueDate {
		task.DueDate = nil
	}
}

// applyCompletion makes completedAt follow the status: a completed task
// keeps an existing completion time or gets now, any other status clears it.
func applyCompletion(task *model.Task, now time.Time) {
	if task.Status != model.StatusCompleted {
		task.CompletedAt = nil
		return
	}
	if task.CompletedAt == nil {
		task.CompletedAt = &now
	}
}
