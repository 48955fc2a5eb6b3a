// Package query evaluates a filter set against the opportunity
// dataset. Everything here is pure: no state, no I/O.
package query

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/david/bid-filter/internal/filter"
	"github.com/david/bid-filter/internal/models"
)

// Result is the matching subset and the share of it that has been submitted
// or awarded, as a rounded percentage.
type Result struct {
	Matches  []models.Opportunity `json:"opportunities"`
	Progress int                  `json:"progress"`
}

// Evaluate returns the records that satisfy every non-empty field of f, in
// input order. Relative periods are resolved against now.
func Evaluate(records []models.Opportunity, f filter.Filters, now time.Time) Result {
	keywords := lowerAll(f.Keywords)

	matches := make([]models.Opportunity, 0, len(records))
	for _, r := range records {
		if matchesAll(r, f, keywords, now) {
			matches = append(matches, r)
		}
	}

	return Result{Matches: matches, Progress: Progress(matches)}
}

// Matches reports whether a single record passes f.
func Matches(r models.Opportunity, f filter.Filters, now time.Time) bool {
	return matchesAll(r, f, lowerAll(f.Keywords), now)
}

func matchesAll(r models.Opportunity, f filter.Filters, keywords []string, now time.Time) bool {
	if f.NAICS != "" && r.NAICS != f.NAICS {
		return false
	}
	if f.Vehicle != "" && r.Vehicle != f.Vehicle {
		return false
	}
	if len(f.SetAside) > 0 && !overlaps(f.SetAside, r.SetAside) {
		return false
	}
	if len(f.Agency) > 0 && !slices.Contains(f.Agency, r.Agency) {
		return false
	}
	if !f.Period.Contains(r.DueDate, now) {
		return false
	}
	if !f.Ceiling.Contains(r.Ceiling) {
		return false
	}
	if len(keywords) > 0 && !matchesKeywords(r, keywords) {
		return false
	}
	return true
}

func overlaps(want, have []string) bool {
	for _, w := range want {
		if slices.Contains(have, w) {
			return true
		}
	}
	return false
}

// matchesKeywords is a case-insensitive substring OR across the title and the
// record's own keyword tags. keywords must already be lower-cased.
func matchesKeywords(r models.Opportunity, keywords []string) bool {
	title := strings.ToLower(r.Title)
	for _, k := range keywords {
		if strings.Contains(title, k) {
			return true
		}
	}
	for _, tag := range r.Keywords {
		tag = strings.ToLower(tag)
		for _, k := range keywords {
			if strings.Contains(tag, k) {
				return true
			}
		}
	}
	return false
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Progress is round(100 * submittedOrAwarded / len(records)), or 0 for an
// empty slice.
func Progress(records []models.Opportunity) int {
	if len(records) == 0 {
		return 0
	}
	closed := 0
	for _, r := range records {
		if r.IsClosedOut() {
			closed++
		}
	}
	return roundPercent(float64(closed) * 100 / float64(len(records)))
}

// roundPercent rounds half up, matching Math.round for non-negative values.
func roundPercent(v float64) int {
	return int(math.Floor(v + 0.5))
}
