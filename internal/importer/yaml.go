// Package importer reads and writes task lists as YAML documents.
package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/hiroki-koketsu/go-todo/internal/model"
	"gopkg.in/yaml.v3"
)

// YAMLTask represents a single task in the YAML document.
type YAMLTask struct {
	ID          string     `yaml:"id,omitempty"`
	Title       string     `yaml:"title"`
	Detail      string     `yaml:"detail,omitempty"`
	Author      string     `yaml:"author"`
	DueDate     string     `yaml:"due_date,omitempty"`
	NoDueDate   bool       `yaml:"no_due_date,omitempty"`
	Priority    string     `yaml:"priority,omitempty"`
	Status      string     `yaml:"status,omitempty"`
	CreatedAt   *time.Time `yaml:"created_at,omitempty"`
	CompletedAt *time.Time `yaml:"completed_at,omitempty"`
}

// YAMLDocument represents the root structure of the YAML document.
type YAMLDocument struct {
	Tasks []YAMLTask `yaml:"tasks"`
}

// Creator creates tasks, applying the lifecycle rules.
type Creator interface {
	Create(ctx context.Context, task *model.Task) (*model.Task, error)
}

// ImportError reports which entry of a document could not be imported.
type ImportError struct {
	Index int
	Title string
	Err   error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("task %d (%q): %v", e.Index, e.Title, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// Import parses a YAML document and creates its tasks in order. Ids in the
// document are ignored; created_at and completed_at are kept when present.
// It stops at the first failing task and returns the number created.
func Import(ctx context.Context, c Creator, data []byte) (int, error) {
	var doc YAMLDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("YAML parse error: %w", err)
	}

	if len(doc.Tasks) == 0 {
		return 0, fmt.Errorf("no tasks found in YAML")
	}

	count := 0
	for i, yt := range doc.Tasks {
		task, err := yt.toTask()
		if err != nil {
			return count, &ImportError{Index: i, Title: yt.Title, Err: err}
		}
		if _, err := c.Create(ctx, task); err != nil {
			return count, &ImportError{Index: i, Title: yt.Title, Err: err}
		}
		count++
	}
	return count, nil
}

func (yt YAMLTask) toTask() (*model.Task, error) {
	task := &model.Task{
		Title:       yt.Title,
		Detail:      yt.Detail,
		Author:      yt.Author,
		NoDueDate:   yt.NoDueDate,
		Priority:    model.Priority(yt.Priority),
		Status:      model.Status(yt.Status),
		CompletedAt: yt.CompletedAt,
	}
	if task.Priority == "" {
		task.Priority = model.DefaultPriority
	}
	if task.Status == "" {
		task.Status = model.DefaultStatus
	}
	if yt.CreatedAt != nil {
		task.CreatedAt = *yt.CreatedAt
	}
	if yt.DueDate != "" {
		d, err := model.ParseDate(yt.DueDate)
		if err != nil {
			return nil, err
		}
		task.DueDate = &d
	}
	return task, nil
}

// Export renders tasks as a YAML document that Import accepts.
func Export(tasks []model.Task) ([]byte, error) {
	doc := YAMLDocument{Tasks: make([]YAMLTask, 0, len(tasks))}
	for _, t := range tasks {
		createdAt := t.CreatedAt
		yt := YAMLTask{
			ID:          t.ID,
			Title:       t.Title,
			Detail:      t.Detail,
			Author:      t.Author,
			NoDueDate:   t.NoDueDate,
			Priority:    string(t.Priority),
			Status:      string(t.Status),
			CreatedAt:   &createdAt,
			CompletedAt: t.CompletedAt,
		}
		if t.DueDate != nil {
			yt.DueDate = t.DueDate.String()
		}
		doc.Tasks = append(doc.Tasks, yt)
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("YAML encode error: %w", err)
	}
	return out, nil
}
