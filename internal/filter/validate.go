package filter

// Issue is a draft problem that should block the apply action.
type Issue struct {
	Field   Field  `json:"-"`
	Key     string `json:"field"`
	Message string `json:"message"`
}

type Issues []Issue

func (is Issues) OK() bool { return len(is) == 0 }

// Validate checks a draft for ordering violations. The store accepts any
// syntactically valid filter set; these checks only gate the apply action.
func Validate(f Filters) Issues {
	var issues Issues

	if f.Ceiling.hasMin && f.Ceiling.hasMax && f.Ceiling.min > f.Ceiling.max {
		issues = append(issues, Issue{Field: FieldCeiling, Key: FieldCeiling.Key(), Message: "Min cannot exceed Max."})
	}
	if f.Ceiling.hasMin && f.Ceiling.min < 0 {
		issues = append(issues, Issue{Field: FieldCeiling, Key: FieldCeiling.Key(), Message: "Min cannot be negative."})
	}

	if start, end, ok := f.Period.Dates(); ok && civilDate(end).Before(civilDate(start)) {
		issues = append(issues, Issue{Field: FieldPeriod, Key: FieldPeriod.Key(), Message: "End date cannot be before start date."})
	}

	return issues
}
