package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTask() *Task {
	due := Date{Year: 2026, Month: time.November, Day: 3}
	return &Task{
		Title:    "Write report",
		Detail:   "quarterly numbers",
		Author:   "sato",
		DueDate:  &due,
		Priority: PriorityToday,
		Status:   StatusNotStarted,
	}
}

func TestTask_Validate(t *testing.T) {
	t.Run("valid task", func(t *testing.T) {
		assert.NoError(t, validTask().Validate())
	})

	t.Run("no due date flag without date", func(t *testing.T) {
		task := validTask()
		task.DueDate = nil
		task.NoDueDate = true
		assert.NoError(t, task.Validate())
	})

	tests := []struct {
		name   string
		mutate func(*Task)
		field  string
		code   string
	}{
		{"blank title", func(t *Task) { t.Title = "   " }, "title", CodeRequired},
		{"long title", func(t *Task) { t.Title = strings.Repeat("a", MaxTitleLength+1) }, "title", CodeTooLong},
		{"blank author", func(t *Task) { t.Author = "" }, "author", CodeRequired},
		{"long author", func(t *Task) { t.Author = strings.Repeat("b", MaxAuthorLength+1) }, "author", CodeTooLong},
		{"long detail", func(t *Task) { t.Detail = strings.Repeat("c", MaxDetailLength+1) }, "detail", CodeTooLong},
		{"missing due date", func(t *Task) { t.DueDate = nil }, "due_date", CodeRequired},
		{"due date with flag", func(t *Task) { t.NoDueDate = true }, "due_date", CodeInvalid},
		{"missing priority", func(t *Task) { t.Priority = "" }, "priority", CodeRequired},
		{"unknown priority", func(t *Task) { t.Priority = "URGENT" }, "priority", CodeInvalid},
		{"missing status", func(t *Task) { t.Status = "" }, "status", CodeRequired},
		{"unknown status", func(t *Task) { t.Status = "DONE" }, "status", CodeInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := validTask()
			tt.mutate(task)

			err := task.Validate()
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected *ValidationError, got %v", err)
			require.Len(t, verr.Fields, 1)
			assert.Equal(t, tt.field, verr.Fields[0].Field)
			assert.Equal(t, tt.code, verr.Fields[0].Code)
		})
	}

	t.Run("length counts characters not bytes", func(t *testing.T) {
		task := validTask()
		task.Title = strings.Repeat("締", MaxTitleLength)
		assert.NoError(t, task.Validate())
	})
}

func TestValidateStatusAndPriority(t *testing.T) {
	assert.NoError(t, ValidateStatus(StatusReady))
	assert.NoError(t, ValidatePriority(PriorityFree))

	var verr *ValidationError
	require.ErrorAs(t, ValidateStatus(""), &verr)
	assert.True(t, verr.Has("status"))
	require.ErrorAs(t, ValidatePriority("SOMEDAY"), &verr)
	assert.Equal(t, CodeInvalid, verr.Fields[0].Code)
}

func TestEnums(t *testing.T) {
	assert.Equal(t, []Priority{PriorityTop, PriorityToday, PriorityThisWeek, PriorityFree}, Priorities())
	assert.Equal(t, 0, PriorityTop.Rank())
	assert.Equal(t, 3, PriorityFree.Rank())
	assert.Equal(t, -1, Priority("X").Rank())
	assert.Equal(t, "This week", PriorityThisWeek.Label())

	assert.Len(t, Statuses(), 6)
	assert.Equal(t, 5, StatusCompleted.Rank())
	assert.Equal(t, "Ready to start", StatusReady.Label())
	assert.Equal(t, "BOGUS", Status("BOGUS").Label())
	assert.False(t, Status("BOGUS").Valid())
}

func TestCreateTaskRequest_ToTaskDefaults(t *testing.T) {
	req := CreateTaskRequest{Title: "t", Author: "a", NoDueDate: true}
	task := req.ToTask()
	assert.Equal(t, PriorityToday, task.Priority)
	assert.Equal(t, StatusNotStarted, task.Status)

	req.Priority = PriorityTop
	req.Status = StatusReady
	task = req.ToTask()
	assert.Equal(t, PriorityTop, task.Priority)
	assert.Equal(t, StatusReady, task.Status)
}

func TestDate_JSON(t *testing.T) {
	var task Task
	require.NoError(t, json.Unmarshal([]byte(`{"title":"x","due_date":"2026-02-09"}`), &task))
	require.NotNil(t, task.DueDate)
	assert.Equal(t, Date{Year: 2026, Month: time.February, Day: 9}, *task.DueDate)

	out, err := json.Marshal(task.DueDate)
	require.NoError(t, err)
	assert.JSONEq(t, `"2026-02-09"`, string(out))

	err = json.Unmarshal([]byte(`{"due_date":"09/02/2026"}`), &task)
	assert.Error(t, err)
}

func TestDate_Before(t *testing.T) {
	a := Date{Year: 2026, Month: time.January, Day: 31}
	b := Date{Year: 2026, Month: time.February, Day: 1}
	assert.True(t, a.Before(b))
	assert.False(t, b.Before(a))
	assert.False(t, a.Before(a))
}
