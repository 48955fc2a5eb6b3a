package query

import (
	"cmp"
	"slices"
	"strings"

	"github.com/david/bid-filter/internal/models"
)

type SortKey string

const (
	SortNone            SortKey = ""
	SortDueDate         SortKey = "dueDate"
	SortPercentComplete SortKey = "percentComplete"
	SortFitScore        SortKey = "fitScore"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Order is a sort request. The zero value leaves records in input order.
type Order struct {
	Key SortKey   `json:"key"`
	Dir Direction `json:"dir"`
}

// DefaultOrder matches the results table: soonest due first.
var DefaultOrder = Order{Key: SortDueDate, Dir: Asc}

// ParseOrder reads sort/dir query values. Unknown keys fall back to
// DefaultOrder; "none" disables sorting.
func ParseOrder(key, dir string) Order {
	o := DefaultOrder
	switch SortKey(strings.TrimSpace(key)) {
	case SortDueDate:
		o.Key = SortDueDate
	case SortPercentComplete:
		o.Key = SortPercentComplete
	case SortFitScore:
		o.Key = SortFitScore
	default:
		if strings.EqualFold(strings.TrimSpace(key), "none") {
			return Order{}
		}
	}
	if strings.EqualFold(strings.TrimSpace(dir), string(Desc)) {
		o.Dir = Desc
	}
	return o
}

// ParseSortKey recognizes the sortable columns.
func ParseSortKey(s string) (SortKey, bool) {
	switch k := SortKey(strings.TrimSpace(s)); k {
	case SortDueDate, SortPercentComplete, SortFitScore:
		return k, true
	}
	return SortNone, false
}

// Toggle flips the direction when the same key is chosen again, otherwise
// switches to key ascending.
func (o Order) Toggle(key SortKey) Order {
	if o.Key == key {
		if o.Dir == Desc {
			return Order{Key: key, Dir: Asc}
		}
		return Order{Key: key, Dir: Desc}
	}
	return Order{Key: key, Dir: Asc}
}

// Sort returns a stably sorted copy; equal keys keep their input order.
func Sort(records []models.Opportunity, o Order) []models.Opportunity {
	out := slices.Clone(records)
	if o.Key == SortNone {
		return out
	}

	compare := func(a, b models.Opportunity) int {
		switch o.Key {
		case SortDueDate:
			return a.DueDate.Compare(b.DueDate)
		case SortPercentComplete:
			return cmp.Compare(a.PercentComplete, b.PercentComplete)
		case SortFitScore:
			return cmp.Compare(a.FitScore, b.FitScore)
		}
		return 0
	}

	slices.SortStableFunc(out, func(a, b models.Opportunity) int {
		if o.Dir == Desc {
			return compare(b, a)
		}
		return compare(a, b)
	})
	return out
}
