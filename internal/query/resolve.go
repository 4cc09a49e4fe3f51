// Package query resolves untrusted list parameters into a bounded query and
// builds page descriptors from a record store.
package query

import (
	"strconv"
	"strings"
)

// SortField is an allow-listed sort identifier understood by record stores.
type SortField string

const (
	SortCreatedAt   SortField = "createdAt"
	SortDueDate     SortField = "dueDate"
	SortTitle       SortField = "title"
	SortCreatedBy   SortField = "createdBy"
	SortStatus      SortField = "status"
	SortPriority    SortField = "priority"
	SortCompletedAt SortField = "completedAt"
)

// DefaultSort is used when the requested sort is absent or not allowed.
const DefaultSort = SortCreatedAt

var allowedSorts = map[SortField]struct{}{
	SortCreatedAt:   {},
	SortDueDate:     {},
	SortTitle:       {},
	SortCreatedBy:   {},
	SortStatus:      {},
	SortPriority:    {},
	SortCompletedAt: {},
}

// SortFields returns the allow-list.
func SortFields() []SortField {
	return []SortField{
		SortCreatedAt, SortDueDate, SortTitle, SortCreatedBy,
		SortStatus, SortPriority, SortCompletedAt,
	}
}

// Allowed reports whether f is in the allow-list.
func (f SortField) Allowed() bool {
	_, ok := allowedSorts[f]
	return ok
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Params holds raw, optional list parameters as received from a caller.
type Params struct {
	Keyword   string
	Sort      string
	Direction string
	Page      int
	PageSize  int
}

// Query is a validated list query.
type Query struct {
	Keyword   string
	Sort      SortField
	Direction Direction
	PageIndex int
	PageSize  int
}

// Offset returns the number of records skipped before the page.
func (q Query) Offset() int {
	return q.PageIndex * q.PageSize
}

// ResolveKeyword trims raw and reports false when nothing is left.
func ResolveKeyword(raw string) (string, bool) {
	kw := strings.TrimSpace(raw)
	if kw == "" {
		return "", false
	}
	return kw, true
}

// ResolveSort returns raw as a SortField when it is allow-listed and
// DefaultSort otherwise. Free-text expressions are never passed through.
func ResolveSort(raw string) SortField {
	f := SortField(raw)
	if !f.Allowed() {
		return DefaultSort
	}
	return f
}

// ResolveDirection returns Asc for a case-insensitive "asc" and Desc for
// anything else.
func ResolveDirection(raw string) Direction {
	if strings.EqualFold(raw, string(Asc)) {
		return Asc
	}
	return Desc
}

// ResolvePage clamps the page index to at least 0 and the size to at least 1.
func ResolvePage(index, size int) (int, int) {
	return max(index, 0), max(size, 1)
}

// ParseInt parses a decimal query parameter, returning fallback for an
// empty or non-numeric value.
func ParseInt(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return n
}

// Resolve applies every resolution rule to p. It never fails.
func Resolve(p Params) Query {
	kw, _ := ResolveKeyword(p.Keyword)
	index, size := ResolvePage(p.Page, p.PageSize)
	return Query{
		Keyword:   kw,
		Sort:      ResolveSort(p.Sort),
		Direction: ResolveDirection(p.Direction),
		PageIndex: index,
		PageSize:  size,
	}
}
