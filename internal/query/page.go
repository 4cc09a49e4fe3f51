package query

import (
	"math"

	"github.com/hiroki-koketsu/go-todo/internal/model"
)

// Page is one page of an ordered result set.
type Page struct {
	Content          []model.Task `json:"content"`
	PageIndex        int          `json:"page"`
	PageSize         int          `json:"page_size"`
	TotalElements    int64        `json:"total_elements"`
	TotalPages       int          `json:"total_pages"`
	NumberOfElements int          `json:"number_of_elements"`
}

// NewPage builds a page descriptor. pageSize must already be resolved (>= 1).
func NewPage(content []model.Task, pageIndex, pageSize int, total int64) Page {
	if content == nil {
		content = []model.Task{}
	}
	size := int64(pageSize)
	return Page{
		Content:          content,
		PageIndex:        pageIndex,
		PageSize:         pageSize,
		TotalElements:    total,
		TotalPages:       int((total + size - 1) / size),
		NumberOfElements: len(content),
	}
}

// Range returns the 1-based inclusive positions of the page's elements
// within the whole result set. Both are 0 when the result set is empty.
func (p Page) Range() (start, end int64) {
	if p.TotalElements == 0 {
		return 0, 0
	}
	size := int64(max(p.PageSize, 1))
	if int64(p.PageIndex) > (math.MaxInt64-1)/size {
		return math.MaxInt64, p.TotalElements
	}
	start = int64(p.PageIndex)*size + 1
	end = min(start+int64(p.NumberOfElements)-1, p.TotalElements)
	return start, end
}

// HasNext reports whether a later page exists.
func (p Page) HasNext() bool {
	return p.PageIndex+1 < p.TotalPages
}

// HasPrevious reports whether an earlier page exists.
func (p Page) HasPrevious() bool {
	return p.PageIndex > 0
}
