package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hiroki-koketsu/go-todo/internal/importer"
	"github.com/hiroki-koketsu/go-todo/internal/lifecycle"
	"github.com/hiroki-koketsu/go-todo/internal/model"
	"github.com/hiroki-koketsu/go-todo/internal/query"
	"github.com/hiroki-koketsu/go-todo/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("github.com/hiroki-koketsu/go-todo/internal/handler")

const maxImportBytes = 1 << 20

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tunes the listing endpoints.
type Options struct {
	PageSize       int
	CompletedLimit int
	Pinger         Pinger
}

// TaskHandler handles HTTP requests for tasks.
type TaskHandler struct {
	resolver *query.Resolver
	engine   *lifecycle.Engine
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	opts     Options
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(resolver *query.Resolver, engine *lifecycle.Engine, logger *slog.Logger, metrics *telemetry.Metrics, opts Options) *TaskHandler {
	opts.PageSize = max(opts.PageSize, 1)
	opts.CompletedLimit = max(opts.CompletedLimit, 1)
	return &TaskHandler{
		resolver: resolver,
		engine:   engine,
		logger:   logger,
		metrics:  metrics,
		opts:     opts,
	}
}

// Routes returns the chi router with task routes.
func (h *TaskHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/completed", h.Completed)
	r.Get("/options", h.Options)
	r.Get("/export", h.Export)
	r.Post("/import", h.Import)
	r.Get("/{id}", h.GetByID)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Patch("/{id}/priority", h.UpdatePriority)

	return r
}

// TaskView is a task with its display labels.
type TaskView struct {
	model.Task
	PriorityLabel string `json:"priority_label"`
	StatusLabel   string `json:"status_label"`
}

func newTaskView(t model.Task) TaskView {
	return TaskView{
		Task:          t,
		PriorityLabel: t.Priority.Label(),
		StatusLabel:   t.Status.Label(),
	}
}

func newTaskViews(tasks []model.Task) []TaskView {
	views := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, newTaskView(t))
	}
	return views
}

// ListResponse is the body of the task list endpoint.
type ListResponse struct {
	Tasks      []TaskView `json:"tasks"`
	Completed  []TaskView `json:"completed"`
	Q          string     `json:"q"`
	Sort       string     `json:"sort"`
	Dir        string     `json:"dir"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
	TotalCount int64      `json:"total_count"`
	RangeStart int64      `json:"range_start"`
	RangeEnd   int64      `json:"range_end"`
}

// List returns one page of active tasks and the latest completed tasks.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	const route = "/api/v1/tasks"

	params := r.URL.Query()
	q := query.Resolve(query.Params{
		Keyword:   params.Get("q"),
		Sort:      params.Get("sort"),
		Direction: params.Get("dir"),
		Page:      query.ParseInt(params.Get("page"), 0),
		PageSize:  h.opts.PageSize,
	})

	ctx, span := tracer.Start(ctx, "TaskHandler.List",
		trace.WithAttributes(
			attribute.String("query.sort", string(q.Sort)),
			attribute.Int("query.page", q.PageIndex),
		),
	)
	defer span.End()

	h.logger.InfoContext(ctx, "listing tasks",
		slog.String("sort", string(q.Sort)),
		slog.String("dir", string(q.Direction)),
		slog.Int("page", q.PageIndex),
	)

	var (
		page      query.Page
		completed []model.Task
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		page, err = h.resolver.ActivePage(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		completed, err = h.resolver.CompletedDigest(gctx, q.Keyword, h.opts.CompletedLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		h.fail(ctx, w, r, route, start, "failed to list tasks", err)
		return
	}

	rangeStart, rangeEnd := page.Range()
	span.SetAttributes(attribute.Int64("task.total", page.TotalElements))
	h.logger.InfoContext(ctx, "tasks listed",
		slog.Int("count", page.NumberOfElements),
		slog.Int64("total", page.TotalElements),
	)

	h.respondJSON(w, http.StatusOK, ListResponse{
		Tasks:      newTaskViews(page.Content),
		Completed:  newTaskViews(completed),
		Q:          params.Get("q"),
		Sort:       params.Get("sort"),
		Dir:        params.Get("dir"),
		Page:       page.PageIndex,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
		TotalCount: page.TotalElements,
		RangeStart: rangeStart,
		RangeEnd:   rangeEnd,
	})
	h.recordMetrics(ctx, r.Method, route, http.StatusOK, start)
}

// Completed returns the most recently completed tasks.
func (h *TaskHandler) Completed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	const route = "/api/v1/tasks/completed"

	ctx, span := tracer.Start(ctx, "TaskHandler.Completed")
	defer span.End()

	params := r.URL.Query()
	limit := query.ParseInt(params.Get("limit"), h.opts.CompletedLimit)

	tasks, err := h.resolver.CompletedDigest(ctx, params.Get("q"), limit)
	if err != nil {
		h.fail(ctx, w, r, route, start, "failed to list completed tasks", err)
		return
	}

	h.respondJSON(w, http.StatusOK, newTaskViews(tasks))
	h.recordMetrics(ctx, r.Method, route, http.StatusOK, start)
}

// Option is a selectable enumeration value.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// OptionsResponse lists the enumerations and the defaults for a new task.
type OptionsResponse struct {
	Priorities      []Option `json:"priorities"`
	Statuses        []Option `json:"statuses"`
	SortFields      []string `json:"sort_fields"`
	DefaultPriority string   `json:"default_priority"`
	DefaultStatus   string   `json:"default_status"`
}

// Options returns the selectable priorities and statuses.
func (h *TaskHandler) Options(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	resp := OptionsResponse{
		DefaultPriority: string(model.DefaultPriority),
		DefaultStatus:   string(model.DefaultStatus),
	}
	for _, p := range model.Priorities() {
		resp.Priorities = append(resp.Priorities, Option{Value: string(p), Label: p.Label()})
	}
	for _, s := range model.Statuses() {
		resp.Statuses = append(resp.Statuses, Option{Value: string(s), Label: s.Label()})
	}
	for _, f := range query.SortFields() {
		resp.SortFields = append(resp.SortFields, string(f))
	}

	h.respondJSON(w, http.StatusOK, resp)
	h.recordMetrics(r.Context(), r.Method, "/api/v1/tasks/options", http.StatusOK, start)
}

// Create adds a new task.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	const route = "/api/v1/tasks"

	ctx, span := tracer.Start(ctx, "TaskHandler.Create")
	defer span.End()

	var req model.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid request body", slog.Any("error", err))
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		h.recordMetrics(ctx, r.Method, route, http.StatusBadRequest, start)
		return
	}

	h.logger.InfoContext(ctx, "creating task", slog.String("title", req.Title))

	task, err := h.engine.Create(ctx, req.ToTask())
	if err != nil {
		h.fail(ctx, w, r, route, start, "failed to create task", err)
		return
	}

	span.SetAttributes(attribute.String("task.id", task.ID))
	h.logger.InfoContext(ctx, "task created", slog.String("id", task.ID))

	h.respondJSON(w, http.StatusCreated, newTaskView(*task))
	h.recordMetrics(ctx, r.Method, route, http.StatusCreated, start)
}

// GetByID returns a task by ID.
func (h *TaskHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id := chi.URLParam(r, "id")
	const route = "/api/v1/tasks/{id}"

	ctx, span := tracer.Start(ctx, "TaskHandler.GetByID",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	task, err := h.engine.Get(ctx, id)
	if err != nil {
		h.fail(ctx, w, r, route, start, "failed to get task", err, slog.String("id", id))
		return
	}

	h.respondJSON(w, http.StatusOK, newTaskView(*task))
	h.recordMetrics(ctx, r.Method, route, http.StatusOK, start)
}

// Update replaces every mutable field of an existing task.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id := chi.URLParam(r, "id")
	const route = "/api/v1/tasks/{id}"

	ctx, span := tracer.Start(ctx, "TaskHandler.Update",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	var req model.UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid request body", slog.Any("error", err))
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		h.recordMetrics(ctx, r.Method, route, http.StatusBadRequest, start)
		return
	}

	h.logger.InfoContext(ctx, "updating task", slog.String("id", id))

	task, err := h.engine.Update(ctx, id, req.ToTask())
	if err != nil {
		h.fail(ctx, w, r, route, start, "failed to update task", err, slog.String("id", id))
		return
	}

	h.logger.InfoContext(ctx, "task updated", slog.String("id", id))

	h.respondJSON(w, http.StatusOK, newTaskView(*task))
	h.recordMetrics(ctx, r.Method, route, http.StatusOK, start)
}

// StatusResponse is the body returned after a status transition.
type StatusResponse struct {
	ID          string       `json:"id"`
	Status      model.Status `json:"status"`
	StatusLabel string       `json:"status_label"`
	CompletedAt *time.Time   `json:"completed_at"`
}

// UpdateStatus moves a task to another status.
func (h *TaskHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id := chi.URLParam(r, "id")
	const route = "/api/v1/tasks/{id}/status"

	ctx, span := tracer.Start(ctx, "TaskHandler.UpdateStatus",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	var req model.StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid request body", slog.Any("error", err))
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		h.recordMetrics(ctx, r.Method, route, http.StatusBadRequest, start)
		return
	}

	completedAt, err := h.engine.TransitionStatus(ctx, id, req.Status)
	if err != nil {
		h.fail(ctx, w, r, route, start, "failed to update task status", err, slog.String("id", id))
		return
	}

	h.metrics.TransitionCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("task.status", string(req.Status))),
	)
	h.logger.InfoContext(ctx, "task status updated",
		slog.String("id", id),
		slog.String("status", string(req.Status)),
	)

	h.respondJSON(w, http.StatusOK, StatusResponse{
		ID:          id,
		Status:      req.Status,
		StatusLabel: req.Status.Label(),
		CompletedAt: completedAt,
	})
	h.recordMetrics(ctx, r.Method, route, http.StatusOK, start)
}

// UpdatePriority changes the priority of a task.
func (h *TaskHandler) UpdatePriority(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id := chi.URLParam(r, "id")
	const route = "/api/v1/tasks/{id}/priority"

	ctx, span := tracer.Start(ctx, "TaskHandler.UpdatePriority",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	var req model.PriorityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid request body", slog.Any("error", err))
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		h.recordMetrics(ctx, r.Method, route, http.StatusBadRequest, start)
		return
	}

	if err := h.engine.TransitionPriority(ctx, id, req.Priority); err != nil {
		h.fail(ctx, w, r, route, start, "failed to update task priority", err, slog.String("id", id))
		return
	}

	h.logger.InfoContext(ctx, "task priority updated",
		slog.String("id", id),
		slog.String("priority", string(req.Priority)),
	)

	h.respondJSON(w, http.StatusOK, map[string]string{
		"id":             id,
		"priority":       string(req.Priority),
		"priority_label": req.Priority.Label(),
	})
	h.recordMetrics(ctx, r.Method, route, http.StatusOK, start)
}

// Delete removes a task.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id := chi.URLParam(r, "id")
	const route = "/api/v1/tasks/{id}"

	ctx, span := tracer.Start(ctx, "TaskHandler.Delete",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	h.logger.InfoContext(ctx, "deleting task", slog.String("id", id))

	if err := h.engine.Delete(ctx, id); err != nil {
		h.fail(ctx, w, r, route, start, "failed to delete task", err, slog.String("id", id))
		return
	}

	h.logger.InfoContext(ctx, "task deleted", slog.String("id", id))

	w.WriteHeader(http.StatusNoContent)
	h.recordMetrics(ctx, r.Method, route, http.StatusNoContent, start)
}

// Export writes every task matching the query as a YAML document.
func (h *TaskHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	const route = "/api/v1/tasks/export"

	ctx, span := tracer.Start(ctx, "TaskHandler.Export")
	defer span.End()

	params := r.URL.Query()
	tasks, err := h.resolver.All(ctx, params.Get("q"), params.Get("sort"), params.Get("dir"))
	if err != nil {
		h.fail(ctx, w, r, route, start, "failed to export tasks", err)
		return
	}

	out, err := importer.Export(tasks)
	if err != nil {
		h.fail(ctx, w, r, route, start, "failed to export tasks", err)
		return
	}

	h.logger.InfoContext(ctx, "tasks exported", slog.Int("count", len(tasks)))

	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	w.Write(out)
	h.recordMetrics(ctx, r.Method, route, http.StatusOK, start)
}

// Import creates tasks from a YAML document in the request body.
func (h *TaskHandler) Import(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	const route = "/api/v1/tasks/import"

	ctx, span := tracer.Start(ctx, "TaskHandler.Import")
	defer span.End()

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		h.logger.WarnContext(ctx, "invalid request body", slog.Any("error", err))
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		h.recordMetrics(ctx, r.Method, route, http.StatusBadRequest, start)
		return
	}

	n, err := importer.Import(ctx, h.engine, data)
	span.SetAttributes(attribute.Int("task.imported", n))
	if err != nil {
		status := http.StatusBadRequest
		var ierr *importer.ImportError
		if errors.As(err, &ierr) {
			status = http.StatusUnprocessableEntity
		}
		h.logger.WarnContext(ctx, "import failed", slog.Int("imported", n), slog.Any("error", err))
		h.respondJSON(w, status, map[string]any{"error": err.Error(), "imported": n})
		h.recordMetrics(ctx, r.Method, route, status, start)
		return
	}

	h.logger.InfoContext(ctx, "tasks imported", slog.Int("count", n))

	h.respondJSON(w, http.StatusCreated, map[string]int{"imported": n})
	h.recordMetrics(ctx, r.Method, route, http.StatusCreated, start)
}

// Health returns a health check response.
func (h *TaskHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.opts.Pinger != nil {
		if err := h.opts.Pinger.Ping(r.Context()); err != nil {
			h.logger.ErrorContext(r.Context(), "health check failed", slog.Any("error", err))
			h.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// fail maps a lifecycle or store error to a response and records it.
func (h *TaskHandler) fail(ctx context.Context, w http.ResponseWriter, r *http.Request, route string, start time.Time, msg string, err error, attrs ...any) {
	var verr *model.ValidationError
	switch {
	case errors.Is(err, model.ErrTaskNotFound):
		h.logger.WarnContext(ctx, "task not found", attrs...)
		h.respondError(w, http.StatusNotFound, "task not found")
		h.recordMetrics(ctx, r.Method, route, http.StatusNotFound, start)
	case errors.As(err, &verr):
		h.logger.WarnContext(ctx, "validation failed", append(attrs, slog.Any("error", err))...)
		h.respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
		h.recordMetrics(ctx, r.Method, route, http.StatusUnprocessableEntity, start)
	default:
		trace.SpanFromContext(ctx).RecordError(err)
		h.logger.ErrorContext(ctx, msg, append(attrs, slog.Any("error", err))...)
		h.respondError(w, http.StatusInternalServerError, msg)
		h.recordMetrics(ctx, r.Method, route, http.StatusInternalServerError, start)
	}
}

func (h *TaskHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func (h *TaskHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

func (h *TaskHandler) recordMetrics(ctx context.Context, method, route string, status int, start time.Time) {
	duration := time.Since(start).Seconds()

	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	)

	h.metrics.RequestCounter.Add(ctx, 1, attrs)
	h.metrics.RequestDuration.Record(ctx, duration, attrs)
}
