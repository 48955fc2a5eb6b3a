// Package filter defines the filter set applied to the opportunity
// dataset, its typed single-field updates and its two wire encodings (the
// shareable query string and the durable JSON snapshot).
package filter

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrUnknownField = errors.New("unknown filter field")
	ErrInvalidValue = errors.New("invalid filter value")
)

// DefaultMaxKeywords mirrors the chip editor limit.
const DefaultMaxKeywords = 20

// Field identifies one member of Filters.
type Field int

const (
	FieldNAICS Field = iota
	FieldSetAside
	FieldVehicle
	FieldAgency
	FieldPeriod
	FieldCeiling
	FieldKeywords
)

// Fields lists every field in shareable-channel order.
var Fields = []Field{FieldNAICS, FieldSetAside, FieldVehicle, FieldAgency, FieldPeriod, FieldCeiling, FieldKeywords}

var fieldKeys = [...]string{
	FieldNAICS:    "naics",
	FieldSetAside: "setAside",
	FieldVehicle:  "vehicle",
	FieldAgency:   "agency",
	FieldPeriod:   "period",
	FieldCeiling:  "ceiling",
	FieldKeywords: "keywords",
}

// Key returns the shareable-channel key for the field.
func (f Field) Key() string {
	if f < 0 || int(f) >= len(fieldKeys) {
		return ""
	}
	return fieldKeys[f]
}

func (f Field) String() string { return f.Key() }

// LookupField resolves a shareable-channel key.
func LookupField(key string) (Field, bool) {
	for i, k := range fieldKeys {
		if k == key {
			return Field(i), true
		}
	}
	return 0, false
}

// Filters is the full filter set. The zero value means "no constraint"
// on every field.
type Filters struct {
	NAICS    string
	SetAside []string
	Vehicle  string
	Agency   []string
	Period   Period
	Ceiling  Ceiling
	Keywords []string
}

// Default returns the all-empty filter set with non-nil slices.
func Default() Filters {
	return Filters{
		SetAside: []string{},
		Agency:   []string{},
		Keywords: []string{},
	}
}

// Clone returns a deep copy with non-nil slices.
func (f Filters) Clone() Filters {
	out := f
	out.SetAside = cloneTokens(f.SetAside)
	out.Agency = cloneTokens(f.Agency)
	out.Keywords = cloneTokens(f.Keywords)
	return out
}

// IsEmpty reports whether the field carries no constraint.
func (f Filters) IsEmpty(field Field) bool {
	switch field {
	case FieldNAICS:
		return f.NAICS == ""
	case FieldSetAside:
		return len(f.SetAside) == 0
	case FieldVehicle:
		return f.Vehicle == ""
	case FieldAgency:
		return len(f.Agency) == 0
	case FieldPeriod:
		return f.Period.IsZero()
	case FieldCeiling:
		return f.Ceiling.IsZero()
	case FieldKeywords:
		return len(f.Keywords) == 0
	}
	return true
}

// IsFiltered reports whether any field constrains the dataset.
func IsFiltered(f Filters) bool {
	for _, field := range Fields {
		if !f.IsEmpty(field) {
			return true
		}
	}
	return false
}

// Equal compares two filter sets by value. Nil and empty slices are equal.
func Equal(a, b Filters) bool {
	return a.NAICS == b.NAICS &&
		a.Vehicle == b.Vehicle &&
		slices.Equal(a.SetAside, b.SetAside) &&
		slices.Equal(a.Agency, b.Agency) &&
		slices.Equal(a.Keywords, b.Keywords) &&
		a.Period.Equal(b.Period) &&
		a.Ceiling.Equal(b.Ceiling)
}

// Update is a typed write of a single field. Build one with the Set* helpers
// or ParseUpdate; the zero Update changes nothing.
type Update struct {
	field Field
	apply func(*Filters)
}

// Field returns the field the update writes.
func (u Update) Field() Field { return u.field }

// Apply returns a copy of f with the update applied.
func (u Update) Apply(f Filters) Filters {
	out := f.Clone()
	if u.apply != nil {
		u.apply(&out)
	}
	return out
}

func SetNAICS(code string) Update {
	return Update{field: FieldNAICS, apply: func(f *Filters) { f.NAICS = code }}
}

func SetSetAside(values []string) Update {
	values = NormalizeTokens(values)
	return Update{field: FieldSetAside, apply: func(f *Filters) { f.SetAside = values }}
}

func SetVehicle(vehicle string) Update {
	return Update{field: FieldVehicle, apply: func(f *Filters) { f.Vehicle = vehicle }}
}

func SetAgency(values []string) Update {
	values = NormalizeTokens(values)
	return Update{field: FieldAgency, apply: func(f *Filters) { f.Agency = values }}
}

func SetPeriod(p Period) Update {
	return Update{field: FieldPeriod, apply: func(f *Filters) { f.Period = p }}
}

func SetCeiling(c Ceiling) Update {
	return Update{field: FieldCeiling, apply: func(f *Filters) { f.Ceiling = c }}
}

// SetKeywords replaces the keyword list. The list is normalized without a cap;
// the state store applies its configured cap on write.
func SetKeywords(values []string) Update {
	values = NormalizeKeywords(values, 0)
	return Update{field: FieldKeywords, apply: func(f *Filters) { f.Keywords = values }}
}

// Clear returns the update that resets one field to its empty value.
func Clear(field Field) Update {
	switch field {
	case FieldNAICS:
		return SetNAICS("")
	case FieldSetAside:
		return SetSetAside(nil)
	case FieldVehicle:
		return SetVehicle("")
	case FieldAgency:
		return SetAgency(nil)
	case FieldPeriod:
		return SetPeriod(Period{})
	case FieldCeiling:
		return SetCeiling(Ceiling{})
	case FieldKeywords:
		return SetKeywords(nil)
	}
	return Update{field: field}
}

// ParseUpdate builds an update from a shareable-channel key and its raw string
// encoding. Malformed period and ceiling strings are rejected.
func ParseUpdate(key, raw string) (Update, error) {
	field, ok := LookupField(key)
	if !ok {
		return Update{}, fmt.Errorf("%w: %q", ErrUnknownField, key)
	}

	switch field {
	case FieldNAICS:
		return SetNAICS(trimToken(raw)), nil
	case FieldSetAside:
		return SetSetAside(splitCSV(raw)), nil
	case FieldVehicle:
		return SetVehicle(trimToken(raw)), nil
	case FieldAgency:
		return SetAgency(splitCSV(raw)), nil
	case FieldPeriod:
		p, err := ParsePeriod(raw)
		if err != nil {
			return Update{}, err
		}
		return SetPeriod(p), nil
	case FieldCeiling:
		c, err := ParseCeiling(raw)
		if err != nil {
			return Update{}, err
		}
		return SetCeiling(c), nil
	default:
		return SetKeywords(splitCSV(raw)), nil
	}
}
