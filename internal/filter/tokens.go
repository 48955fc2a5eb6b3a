package filter

import (
	"strings"
)

// listSeparator joins multi-valued fields on the shareable channel. Tokens that
// contain it cannot be represented there.
const listSeparator = ","

func trimToken(s string) string {
	return strings.TrimSpace(s)
}

// splitCSV splits a comma-separated value into trimmed non-empty strings.
func splitCSV(s string) []string {
	var result []string
	for _, part := range strings.Split(s, listSeparator) {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

// NormalizeTokens trims set-valued selections and drops blanks, exact
// duplicates and tokens containing the list separator, keeping first-seen
// order.
func NormalizeTokens(values []string) []string {
	clean := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" || strings.Contains(trimmed, listSeparator) {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		clean = append(clean, trimmed)
	}
	return clean
}

func cloneTokens(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	return out
}

// NormalizeKeywords trims keywords, drops blanks, duplicates and tokens that
// contain the list separator, then truncates to max. A max of zero or less
// means no cap.
func NormalizeKeywords(values []string, max int) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		var added bool
		out, added = AddKeyword(out, v, max)
		if !added && max > 0 && len(out) >= max {
			break
		}
	}
	return out
}

// AddKeyword appends kw to list. Blank, duplicate or over-cap additions are
// rejected without error: the original list is returned with added == false.
func AddKeyword(list []string, kw string, max int) ([]string, bool) {
	trimmed := strings.TrimSpace(kw)
	if trimmed == "" || strings.Contains(trimmed, listSeparator) {
		return list, false
	}
	if max > 0 && len(list) >= max {
		return list, false
	}
	for _, existing := range list {
		if existing == trimmed {
			return list, false
		}
	}
	out := make([]string, len(list), len(list)+1)
	copy(out, list)
	return append(out, trimmed), true
}

// RemoveKeyword drops the keyword at idx. Out-of-range indexes return a copy
// of the list unchanged.
func RemoveKeyword(list []string, idx int) []string {
	out := make([]string, 0, len(list))
	for i, kw := range list {
		if i != idx {
			out = append(out, kw)
		}
	}
	return out
}
