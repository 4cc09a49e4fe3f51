package model

import (
	"time"
)

// Task represents a todo item in the system.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Detail      string     `json:"detail"`
	Author      string     `json:"author"`
	CreatedAt   time.Time  `json:"created_at"`
	DueDate     *Date      `json:"due_date,omitempty"`
	NoDueDate   bool       `json:"no_due_date"`
	Priority    Priority   `json:"priority"`
	Status      Status     `json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// IsCompleted reports whether the task is in the COMPLETED status.
func (t *Task) IsCompleted() bool {
	return t.Status == StatusCompleted
}

// CreateTaskRequest represents the request body for creating a task.
type CreateTaskRequest struct {
	Title     string   `json:"title"`
	Detail    string   `json:"detail"`
	Author    string   `json:"author"`
	DueDate   *Date    `json:"due_date,omitempty"`
	NoDueDate bool     `json:"no_due_date"`
	Priority  Priority `json:"priority,omitempty"`
	Status    Status   `json:"status,omitempty"`
}

// ToTask builds a new task from the request, filling the create defaults
// for priority and status when they are left empty.
func (r *CreateTaskRequest) ToTask() *Task {
	priority := r.Priority
	if priority == "" {
		priority = DefaultPriority
	}
	status := r.Status
	if status == "" {
		status = DefaultStatus
	}
	return &Task{
		Title:     r.Title,
		Detail:    r.Detail,
		Author:    r.Author,
		DueDate:   r.DueDate,
		NoDueDate: r.NoDueDate,
		Priority:  priority,
		Status:    status,
	}
}

// UpdateTaskRequest represents the request body for a full task update.
// Every mutable field is replaced.
type UpdateTaskRequest struct {
	Title     string   `json:"title"`
	Detail    string   `json:"detail"`
	Author    string   `json:"author"`
	DueDate   *Date    `json:"due_date,omitempty"`
	NoDueDate bool     `json:"no_due_date"`
	Priority  Priority `json:"priority"`
	Status    Status   `json:"status"`
}

// ToTask converts the request into the incoming field set of an update.
func (r *UpdateTaskRequest) ToTask() *Task {
	return &Task{
		Title:     r.Title,
		Detail:    r.Detail,
		Author:    r.Author,
		DueDate:   r.DueDate,
		NoDueDate: r.NoDueDate,
		Priority:  r.Priority,
		Status:    r.Status,
	}
}

// StatusRequest represents the request body for a status transition.
type StatusRequest struct {
	Status Status `json:"status"`
}

// PriorityRequest represents the request body for a priority transition.
type PriorityRequest struct {
	Priority Priority `json:"priority"`
}
