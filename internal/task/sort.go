package task

import (
	"fmt"
	"sort"
	"time"
)

type SortField string

const (
	SortCreatedAt   SortField = "created_at"
	SortUpdatedAt   SortField = "updated_at"
	SortStartedAt   SortField = "started_at"
	SortCompletedAt SortField = "completed_at"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

type SortOptions struct {
	SortBy    SortField `json:"sortBy"`
	SortOrder SortOrder `json:"sortOrder"`
}

// DefaultSort lists the newest tasks first.
func DefaultSort() SortOptions {
	return SortOptions{SortBy: SortCreatedAt, SortOrder: SortDesc}
}

// ParseSortOptions fills blanks with defaults and rejects unknown values.
func ParseSortOptions(by, order string) (SortOptions, error) {
	opts := DefaultSort()
	if by != "" {
		opts.SortBy = SortField(by)
	}
	if order != "" {
		opts.SortOrder = SortOrder(order)
	}
	return opts, opts.Validate()
}

func (o SortOptions) Validate() error {
	switch o.SortBy {
	case SortCreatedAt, SortUpdatedAt, SortStartedAt, SortCompletedAt:
	default:
		return fmt.Errorf("unsupported sort field %q", o.SortBy)
	}
	switch o.SortOrder {
	case SortAsc, SortDesc:
	default:
		return fmt.Errorf("unsupported sort order %q", o.SortOrder)
	}
	return nil
}

func (o SortOptions) key(r Record) time.Time {
	var t *time.Time
	switch o.SortBy {
	case SortUpdatedAt:
		t = r.UpdatedAt
	case SortStartedAt:
		t = r.StartedAt
	case SortCompletedAt:
		t = r.CompletedAt
	default:
		t = r.CreatedAt
	}
	if t == nil {
		return time.Time{}
	}
	return *t
}

// Sort orders records in place. Missing timestamps compare as the zero time,
// and equal keys fall back to the id so the result never depends on input order.
func Sort(records []Record, opts SortOptions) {
	desc := opts.SortOrder == SortDesc
	sort.SliceStable(records, func(i, j int) bool {
		a, b := opts.key(records[i]), opts.key(records[j])
		if !a.Equal(b) {
			if desc {
				return a.After(b)
			}
			return a.Before(b)
		}
		return records[i].ID < records[j].ID
	})
}
