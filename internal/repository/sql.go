package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hiroki-koketsu/go-todo/internal/model"
	"github.com/hiroki-koketsu/go-todo/internal/query"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// taskRecord is the persisted shape of a task.
type taskRecord struct {
	ID          string     `gorm:"primaryKey;size:36"`
	Title       string     `gorm:"size:255;not null"`
	Detail      string     `gorm:"size:1000"`
	Author      string     `gorm:"column:created_by;size:100;not null"`
	CreatedAt   time.Time  `gorm:"autoCreateTime:false;not null;index"`
	DueDate     *string    `gorm:"size:10"`
	NoDueDate   bool       `gorm:"not null"`
	Priority    string     `gorm:"size:16;not null"`
	Status      string     `gorm:"size:16;not null;index"`
	CompletedAt *time.Time `gorm:"index"`
}

// TableName returns the table name for taskRecord.
func (taskRecord) TableName() string {
	return "tasks"
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func toRecord(t *model.Task) taskRecord {
	rec := taskRecord{
		ID:          t.ID,
		Title:       t.Title,
		Detail:      t.Detail,
		Author:      t.Author,
		CreatedAt:   t.CreatedAt.UTC(),
		NoDueDate:   t.NoDueDate,
		Priority:    string(t.Priority),
		Status:      string(t.Status),
		CompletedAt: utcPtr(t.CompletedAt),
	}
	if t.DueDate != nil {
		s := t.DueDate.String()
		rec.DueDate = &s
	}
	return rec
}

func (rec taskRecord) toTask() (model.Task, error) {
	t := model.Task{
		ID:          rec.ID,
		Title:       rec.Title,
		Detail:      rec.Detail,
		Author:      rec.Author,
		CreatedAt:   rec.CreatedAt.UTC(),
		NoDueDate:   rec.NoDueDate,
		Priority:    model.Priority(rec.Priority),
		Status:      model.Status(rec.Status),
		CompletedAt: utcPtr(rec.CompletedAt),
	}
	if rec.DueDate != nil {
		d, err := model.ParseDate(*rec.DueDate)
		if err != nil {
			return model.Task{}, fmt.Errorf("task %s: %w", rec.ID, err)
		}
		t.DueDate = &d
	}
	return t, nil
}

func toTasks(recs []taskRecord) ([]model.Task, error) {
	tasks := make([]model.Task, 0, len(recs))
	for _, rec := range recs {
		t, err := rec.toTask()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// rankExpression orders an enumeration column by declaration order.
func rankExpression[T ~string](column string, values []T) string {
	var b strings.Builder
	b.WriteString("CASE ")
	b.WriteString(column)
	for i, v := range values {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", v, i)
	}
	fmt.Fprintf(&b, " ELSE %d END", len(values))
	return b.String()
}

// sortExpressions maps every allow-listed sort field to a fixed ORDER BY
// expression. Nothing else reaches the ORDER BY clause.
var sortExpressions = map[query.SortField]string{
	query.SortCreatedAt:   "created_at",
	query.SortDueDate:     "due_date",
	query.SortTitle:       "title",
	query.SortCreatedBy:   "created_by",
	query.SortStatus:      rankExpression("status", model.Statuses()),
	query.SortPriority:    rankExpression("priority", model.Priorities()),
	query.SortCompletedAt: "completed_at",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func keywordScope(keyword string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if keyword == "" {
			return db
		}
		pattern := "%" + likeEscaper.Replace(strings.ToLower(keyword)) + "%"
		return db.Where(
			`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(detail) LIKE ? ESCAPE '\' OR LOWER(created_by) LIKE ? ESCAPE '\')`,
			pattern, pattern, pattern,
		)
	}
}

func orderScope(sort query.SortField, dir query.Direction) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		expr, ok := sortExpressions[sort]
		if !ok {
			expr = sortExpressions[query.DefaultSort]
		}
		direction := "DESC"
		if dir == query.Asc {
			direction = "ASC"
		}
		return db.Order(expr + " " + direction).Order("id ASC")
	}
}

// SQLRepository stores tasks in SQLite through GORM.
type SQLRepository struct {
	db *gorm.DB
}

// OpenSQL opens (or creates) the SQLite database at path and migrates the
// schema. debug enables GORM statement logging.
func OpenSQL(path string, debug bool) (*SQLRepository, error) {
	logLevel := logger.Silent
	if debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if path == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		sqlDB.SetMaxOpenConns(1)
	} else if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := db.AutoMigrate(&taskRecord{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLRepository{db: db}, nil
}

// Insert stores a new task and assigns its id.
func (r *SQLRepository) Insert(ctx context.Context, task *model.Task) error {
	ctx, span := tracer.Start(ctx, "SQLRepository.Insert",
		trace.WithAttributes(attribute.String("task.title", task.Title)),
	)
	defer span.End()

	rec := toRecord(task)
	rec.ID = uuid.New().String()

	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create task: %w", err)
	}

	task.ID = rec.ID
	span.SetAttributes(attribute.String("task.id", task.ID))
	return nil
}

// FetchByID retrieves a task by its ID.
func (r *SQLRepository) FetchByID(ctx context.Context, id string) (*model.Task, error) {
	ctx, span := tracer.Start(ctx, "SQLRepository.FetchByID",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	var rec taskRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetAttributes(attribute.Bool("task.found", false))
			return nil, model.ErrTaskNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	task, err := rec.toTask()
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Bool("task.found", true))
	return &task, nil
}

// CountActive counts non-completed tasks matching the keyword.
func (r *SQLRepository) CountActive(ctx context.Context, keyword string) (int64, error) {
	ctx, span := tracer.Start(ctx, "SQLRepository.CountActive")
	defer span.End()

	var n int64
	err := r.db.WithContext(ctx).Model(&taskRecord{}).
		Where("status <> ?", string(model.StatusCompleted)).
		Scopes(keywordScope(keyword)).
		Count(&n).Error
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	span.SetAttributes(attribute.Int64("task.count", n))
	return n, nil
}

// FetchActive returns one ordered slice of non-completed tasks.
func (r *SQLRepository) FetchActive(ctx context.Context, keyword string, sort query.SortField, dir query.Direction, limit, offset int) ([]model.Task, error) {
	ctx, span := tracer.Start(ctx, "SQLRepository.FetchActive",
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

	var recs []taskRecord
	err := r.db.WithContext(ctx).
		Where("status <> ?", string(model.StatusCompleted)).
		Scopes(keywordScope(keyword), orderScope(sort, dir)).
		Limit(limit).
		Offset(offset).
		Find(&recs).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to fetch tasks: %w", err)
	}

	span.SetAttributes(attribute.Int("task.count", len(recs)))
	return toTasks(recs)
}

// FetchCompleted returns up to limit completed tasks, latest completion first.
func (r *SQLRepository) FetchCompleted(ctx context.Context, keyword string, limit int) ([]model.Task, error) {
	ctx, span := tracer.Start(ctx, "SQLRepository.FetchCompleted",
		trace.WithAttributes(attribute.Int("query.limit", limit)),
	)
	defer span.End()

	var recs []taskRecord
	err := r.db.WithContext(ctx).
		Where("status = ?", string(model.StatusCompleted)).
		Scopes(keywordScope(keyword), orderScope(query.SortCompletedAt, query.Desc)).
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to fetch completed tasks: %w", err)
	}

	span.SetAttributes(attribute.Int("task.count", len(recs)))
	return toTasks(recs)
}

// FetchAll returns every task matching the keyword in the given order.
func (r *SQLRepository) FetchAll(ctx context.Context, keyword string, sort query.SortField, dir query.Direction) ([]model.Task, error) {
	ctx, span := tracer.Start(ctx, "SQLRepository.FetchAll")
	defer span.End()

	var recs []taskRecord
	err := r.db.WithContext(ctx).
		Scopes(keywordScope(keyword), orderScope(sort, dir)).
		Find(&recs).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to fetch tasks: %w", err)
	}

	span.SetAttributes(attribute.Int("task.count", len(recs)))
	return toTasks(recs)
}

// updateColumns applies a column map to one task.
func (r *SQLRepository) updateColumns(ctx context.Context, id string, columns map[string]any) error {
	result := r.db.WithContext(ctx).Model(&taskRecord{}).Where("id = ?", id).Updates(columns)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if result.RowsAffected == 0 {
		return model.ErrTaskNotFound
	}
	return nil
}

func nullable[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}

// UpdateFull replaces every mutable column of a stored task.
func (r *SQLRepository) UpdateFull(ctx context.Context, task *model.Task) error {
	ctx, span := tracer.Start(ctx, "SQLRepository.UpdateFull",
		trace.WithAttributes(attribute.String("task.id", task.ID)),
	)
	defer span.End()

	rec := toRecord(task)
	return r.updateColumns(ctx, task.ID, map[string]any{
		"title":        rec.Title,
		"detail":       rec.Detail,
		"created_by":   rec.Author,
		"due_date":     nullable(rec.DueDate),
		"no_due_date":  rec.NoDueDate,
		"priority":     rec.Priority,
		"status":       rec.Status,
		"completed_at": nullable(rec.CompletedAt),
	})
}

// UpdateStatus sets the status and completion time of a task.
func (r *SQLRepository) UpdateStatus(ctx context.Context, id string, status model.Status, completedAt *time.Time) error {
	ctx, span := tracer.Start(ctx, "SQLRepository.UpdateStatus",
		trace.WithAttributes(
			attribute.String("task.id", id),
			attribute.String("task.status", string(status)),
		),
	)
	defer span.End()

	return r.updateColumns(ctx, id, map[string]any{
		"status":       string(status),
		"completed_at": nullable(utcPtr(completedAt)),
	})
}

// UpdatePriority sets the priority of a task.
func (r *SQLRepository) UpdatePriority(ctx context.Context, id string, priority model.Priority) error {
	ctx, span := tracer.Start(ctx, "SQLRepository.UpdatePriority",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	return r.updateColumns(ctx, id, map[string]any{
		"priority": string(priority),
	})
}

// Delete removes a task permanently.
func (r *SQLRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "SQLRepository.Delete",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	result := r.db.WithContext(ctx).Delete(&taskRecord{}, "id = ?", id)
	if err := result.Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if result.RowsAffected == 0 {
		span.SetAttributes(attribute.Bool("task.found", false))
		return model.ErrTaskNotFound
	}
	return nil
}

// Count returns the current number of active tasks, or 0 if the database
// cannot be read.
func (r *SQLRepository) Count() int64 {
	n, err := r.CountActive(context.Background(), "")
	if err != nil {
		return 0
	}
	return n
}

// Ping checks that the database is reachable.
func (r *SQLRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.Close()
}
