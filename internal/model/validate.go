package model

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Field limits.
const (
	MaxTitleLength  = 255
	MaxDetailLength = 1000
	MaxAuthorLength = 100
)

// Validate checks the task's required fields, lengths and due-date state.
// It returns a *ValidationError listing every rejected field, or nil.
func (t *Task) Validate() error {
	verr := &ValidationError{}

	checkRequiredText(verr, "title", t.Title, MaxTitleLength)
	checkRequiredText(verr, "author", t.Author, MaxAuthorLength)
	if utf8.RuneCountInString(t.Detail) > MaxDetailLength {
		verr.add("detail", CodeTooLong, fmt.Sprintf("must be at most %d characters", MaxDetailLength))
	}

	if !t.NoDueDate && t.DueDate == nil {
		verr.add("due_date", CodeRequired, "set a due date or choose no due date")
	}
	if t.NoDueDate && t.DueDate != nil {
		verr.add("due_date", CodeInvalid, "must be empty when no due date is chosen")
	}

	switch {
	case t.Priority == "":
		verr.add("priority", CodeRequired, "must not be empty")
	case !t.Priority.Valid():
		verr.add("priority", CodeInvalid, fmt.Sprintf("unknown priority %q", t.Priority))
	}

	switch {
	case t.Status == "":
		verr.add("status", CodeRequired, "must not be empty")
	case !t.Status.Valid():
		verr.add("status", CodeInvalid, fmt.Sprintf("unknown status %q", t.Status))
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

func checkRequiredText(verr *ValidationError, field, value string, max int) {
	if strings.TrimSpace(value) == "" {
		verr.add(field, CodeRequired, "must not be blank")
		return
	}
	if utf8.RuneCountInString(value) > max {
		verr.add(field, CodeTooLong, fmt.Sprintf("must be at most %d characters", max))
	}
}

// ValidateStatus rejects an empty or unknown status.
func ValidateStatus(s Status) error {
	if s.Valid() {
		return nil
	}
	verr := &ValidationError{}
	if s == "" {
		verr.add("status", CodeRequired, "must not be empty")
	} else {
		verr.add("status", CodeInvalid, fmt.Sprintf("unknown status %q", s))
	}
	return verr
}

// ValidatePriority rejects an empty or unknown priority.
func ValidatePriority(p Priority) error {
	if p.Valid() {
		return nil
	}
	verr := &ValidationError{}
	if p == "" {
		verr.add("priority", CodeRequired, "must not be empty")
	} else {
		verr.add("priority", CodeInvalid, fmt.Sprintf("unknown priority %q", p))
	}
	return verr
}
