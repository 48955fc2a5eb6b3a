package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"
)

// Encode renders f for the shareable channel. Empty fields are omitted and
// multi-valued fields are comma-joined.
func Encode(f Filters) url.Values {
	values := url.Values{}
	for _, field := range Fields {
		if raw := encodeField(f, field); raw != "" {
			values.Set(field.Key(), raw)
		}
	}
	return values
}

func encodeField(f Filters, field Field) string {
	switch field {
	case FieldNAICS:
		return f.NAICS
	case FieldSetAside:
		return strings.Join(f.SetAside, listSeparator)
	case FieldVehicle:
		return f.Vehicle
	case FieldAgency:
		return strings.Join(f.Agency, listSeparator)
	case FieldPeriod:
		return f.Period.String()
	case FieldCeiling:
		return f.Ceiling.String()
	case FieldKeywords:
		return strings.Join(f.Keywords, listSeparator)
	}
	return ""
}

// Decode reads a shareable channel. found reports whether any recognized key
// was present, even if its value was then dropped. Unknown keys are ignored;
// malformed period or ceiling values leave the field unconstrained.
func Decode(values url.Values) (f Filters, found bool) {
	f = Default()
	for _, field := range Fields {
		raw, ok := values[field.Key()]
		if !ok {
			continue
		}
		found = true
		if len(raw) == 0 {
			continue
		}

		u, err := ParseUpdate(field.Key(), raw[len(raw)-1])
		if err != nil {
			log.Printf("[filter] dropping %s from shareable channel: %v", field.Key(), err)
			continue
		}
		f = u.Apply(f)
	}
	return f, found
}

// snapshot is the durable JSON shape. Keys match the shareable channel.
type snapshot struct {
	NAICS    string    `json:"naics"`
	SetAside tokenList `json:"setAside"`
	Vehicle  string    `json:"vehicle"`
	Agency   tokenList `json:"agency"`
	Period   string    `json:"period"`
	Ceiling  string    `json:"ceiling"`
	Keywords tokenList `json:"keywords"`
}

// tokenList accepts either a JSON array or a single comma-joined string, which
// older snapshots stored for single-valued selections.
type tokenList []string

func (t *tokenList) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*t = nil
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("expected string list: %w", err)
	}
	*t = splitCSV(single)
	return nil
}

func (f Filters) MarshalJSON() ([]byte, error) {
	c := f.Clone()
	return json.Marshal(snapshot{
		NAICS:    c.NAICS,
		SetAside: c.SetAside,
		Vehicle:  c.Vehicle,
		Agency:   c.Agency,
		Period:   c.Period.String(),
		Ceiling:  c.Ceiling.String(),
		Keywords: c.Keywords,
	})
}

// UnmarshalJSON is strict about JSON syntax and lenient about values: a
// malformed period or ceiling leaves that field empty.
func (f *Filters) UnmarshalJSON(data []byte) error {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	out := Default()
	out = SetNAICS(strings.TrimSpace(s.NAICS)).Apply(out)
	out = SetSetAside(s.SetAside).Apply(out)
	out = SetVehicle(strings.TrimSpace(s.Vehicle)).Apply(out)
	out = SetAgency(s.Agency).Apply(out)
	out = SetKeywords(s.Keywords).Apply(out)

	if p, err := ParsePeriod(s.Period); err == nil {
		out.Period = p
	} else {
		log.Printf("[filter] dropping period from snapshot: %v", err)
	}
	if c, err := ParseCeiling(s.Ceiling); err == nil {
		out.Ceiling = c
	} else {
		log.Printf("[filter] dropping ceiling from snapshot: %v", err)
	}

	*f = out
	return nil
}

// DecodeSnapshot parses a durable snapshot.
func DecodeSnapshot(data []byte) (Filters, error) {
	var f Filters
	if err := json.Unmarshal(data, &f); err != nil {
		return Default(), fmt.Errorf("decode snapshot: %w", err)
	}
	return f, nil
}
