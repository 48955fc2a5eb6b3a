package query

import (
	"html"
	"regexp"
	"slices"
	"strings"

	"github.com/david/bid-filter/internal/models"
	"github.com/microcosm-cc/bluemonday"
)

// Summary backs the progress dashboard.
type Summary struct {
	Total           int            `json:"total"`
	StatusCounts    map[string]int `json:"status_counts"`
	AverageComplete int            `json:"average_complete"`
	Progress        int            `json:"progress"`
}

// Summarize counts known statuses and averages completion. Unknown statuses
// are counted in Total only.
func Summarize(records []models.Opportunity) Summary {
	s := Summary{
		Total:        len(records),
		StatusCounts: make(map[string]int, len(models.Statuses)),
		Progress:     Progress(records),
	}
	for _, status := range models.Statuses {
		s.StatusCounts[status] = 0
	}

	var sum float64
	for _, r := range records {
		if _, ok := s.StatusCounts[r.Status]; ok {
			s.StatusCounts[r.Status]++
		}
		sum += r.PercentComplete
	}
	if len(records) > 0 {
		s.AverageComplete = roundPercent(sum / float64(len(records)))
	}
	return s
}

// FacetOptions are the distinct values offered by the filter panel.
type FacetOptions struct {
	NAICS    []string `json:"naics"`
	SetAside []string `json:"setAside"`
	Vehicle  []string `json:"vehicle"`
	Agency   []string `json:"agency"`
}

// Options collects distinct non-empty values in first-seen order.
func Options(records []models.Opportunity) FacetOptions {
	o := FacetOptions{NAICS: []string{}, SetAside: []string{}, Vehicle: []string{}, Agency: []string{}}
	for _, r := range records {
		o.NAICS = appendDistinct(o.NAICS, r.NAICS)
		for _, s := range r.SetAside {
			o.SetAside = appendDistinct(o.SetAside, s)
		}
		o.Vehicle = appendDistinct(o.Vehicle, r.Vehicle)
		o.Agency = appendDistinct(o.Agency, r.Agency)
	}
	return o
}

func appendDistinct(list []string, v string) []string {
	if v == "" || slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}

var highlightPolicy = bluemonday.NewPolicy().AllowElements("mark")

// Highlight returns title as HTML with case-insensitive keyword matches
// wrapped in <mark>. The output only ever contains text and mark elements.
func Highlight(title string, keywords []string) string {
	re := keywordPattern(keywords)
	if re == nil {
		return highlightPolicy.Sanitize(html.EscapeString(title))
	}

	var b strings.Builder
	last := 0
	for _, loc := range re.FindAllStringIndex(title, -1) {
		b.WriteString(html.EscapeString(title[last:loc[0]]))
		b.WriteString("<mark>")
		b.WriteString(html.EscapeString(title[loc[0]:loc[1]]))
		b.WriteString("</mark>")
		last = loc[1]
	}
	b.WriteString(html.EscapeString(title[last:]))

	return highlightPolicy.Sanitize(b.String())
}

// keywordPattern builds an alternation that prefers longer keywords, so
// "cloud security" wins over "cloud".
func keywordPattern(keywords []string) *regexp.Regexp {
	terms := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			terms = append(terms, regexp.QuoteMeta(k))
		}
	}
	if len(terms) == 0 {
		return nil
	}
	slices.SortStableFunc(terms, func(a, b string) int { return len(b) - len(a) })
	return regexp.MustCompile("(?i)(" + strings.Join(terms, "|") + ")")
}
