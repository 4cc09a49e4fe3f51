package model

// Priority is the urgency of a task. The declaration order is the sort order.
type Priority string

const (
	PriorityTop      Priority = "TOP"
	PriorityToday    Priority = "TODAY"
	PriorityThisWeek Priority = "THIS_WEEK"
	PriorityFree     Priority = "FREE"
)

// DefaultPriority is applied to new tasks that do not name one.
const DefaultPriority = PriorityToday

var priorities = []Priority{PriorityTop, PriorityToday, PriorityThisWeek, PriorityFree}

var priorityLabels = map[Priority]string{
	PriorityTop:      "Top priority",
	PriorityToday:    "Today",
	PriorityThisWeek: "This week",
	PriorityFree:     "When free",
}

// Priorities returns every priority in declaration order.
func Priorities() []Priority {
	out := make([]Priority, len(priorities))
	copy(out, priorities)
	return out
}

// Valid reports whether p is one of the declared priorities.
func (p Priority) Valid() bool {
	_, ok := priorityLabels[p]
	return ok
}

// Label returns the display label, or the raw value for an unknown priority.
func (p Priority) Label() string {
	if label, ok := priorityLabels[p]; ok {
		return label
	}
	return string(p)
}

// Rank returns the position of p in the declared order, -1 if unknown.
func (p Priority) Rank() int {
	for i, v := range priorities {
		if v == p {
			return i
		}
	}
	return -1
}

// Status is the lifecycle state of a task. The declaration order is the sort order.
type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusInReview   Status = "IN_REVIEW"
	StatusOnHold     Status = "ON_HOLD"
	StatusReady      Status = "READY"
	StatusCompleted  Status = "COMPLETED"
)

// DefaultStatus is applied to new tasks that do not name one.
const DefaultStatus = StatusNotStarted

var statuses = []Status{
	StatusNotStarted,
	StatusInProgress,
	StatusInReview,
	StatusOnHold,
	StatusReady,
	StatusCompleted,
}

var statusLabels = map[Status]string{
	StatusNotStarted: "Not started",
	StatusInProgress: "In progress",
	StatusInReview:   "In review",
	StatusOnHold:     "On hold",
	StatusReady:      "Ready to start",
	StatusCompleted:  "Completed",
}

// Statuses returns every status in declaration order.
func Statuses() []Status {
	out := make([]Status, len(statuses))
	copy(out, statuses)
	return out
}

// Valid reports whether s is one of the declared statuses.
func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label returns the display label, or the raw value for an unknown status.
func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Rank returns the position of s in the declared order, -1 if unknown.
func (s Status) Rank() int {
	for i, v := range statuses {
		if v == s {
			return i
		}
	}
	return -1
}
