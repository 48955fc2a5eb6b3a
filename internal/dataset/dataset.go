// Package dataset loads the opportunity records the query engine runs
// against and keeps them as an immutable snapshot.
package dataset

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/david/bid-filter/internal/models"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

var ErrNotFound = errors.New("opportunity not found")

//go:embed data/opportunities.json
var embeddedOpportunities []byte

// recordNamespace seeds derived IDs for records whose id is not a UUID.
var recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("bid-filter/opportunity"))

// Catalog is the shared dataset. Records returned by it are never modified
// afterwards; MarkSubmitted swaps in a new snapshot instead.
type Catalog struct {
	mu      sync.RWMutex
	records []models.Opportunity
	index   map[uuid.UUID]int
}

func NewCatalog(records []models.Opportunity) *Catalog {
	c := &Catalog{}
	c.swap(cloneRecords(records))
	return c
}

func (c *Catalog) swap(records []models.Opportunity) {
	index := make(map[uuid.UUID]int, len(records))
	for i, r := range records {
		index[r.ID] = i
	}
	c.records = records
	c.index = index
}

// Records returns the current snapshot. Callers must treat it as read-only.
func (c *Catalog) Records() []models.Opportunity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.records
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

func (c *Catalog) Get(id uuid.UUID) (models.Opportunity, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[id]
	if !ok {
		return models.Opportunity{}, ErrNotFound
	}
	return c.records[i], nil
}

// MarkSubmitted sets the record's status to Submitted and its completion to
// 100. Earlier snapshots handed out by Records are left untouched.
func (c *Catalog) MarkSubmitted(id uuid.UUID) (models.Opportunity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.index[id]
	if !ok {
		return models.Opportunity{}, ErrNotFound
	}
	next := make([]models.Opportunity, len(c.records))
	copy(next, c.records)
	next[i].Status = models.StatusSubmitted
	next[i].PercentComplete = 100
	c.swap(next)
	return next[i], nil
}

// Replace swaps in a freshly loaded dataset.
func (c *Catalog) Replace(records []models.Opportunity) {
	records = cloneRecords(records)
	c.mu.Lock()
	c.swap(records)
	c.mu.Unlock()
}

func cloneRecords(records []models.Opportunity) []models.Opportunity {
	out := make([]models.Opportunity, len(records))
	for i, r := range records {
		r.SetAside = append([]string(nil), r.SetAside...)
		r.Keywords = append([]string(nil), r.Keywords...)
		out[i] = r
	}
	return out
}

// record is the on-disk shape. IDs may be any string and due dates may be
// plain calendar dates.
type record struct {
	ID              string   `json:"id" yaml:"id"`
	Title           string   `json:"title" yaml:"title"`
	NAICS           string   `json:"naics" yaml:"naics"`
	SetAside        []string `json:"setAside" yaml:"setAside"`
	Vehicle         string   `json:"vehicle" yaml:"vehicle"`
	Agency          string   `json:"agency" yaml:"agency"`
	Status          string   `json:"status" yaml:"status"`
	DueDate         string   `json:"dueDate" yaml:"dueDate"`
	Ceiling         float64  `json:"ceiling" yaml:"ceiling"`
	PercentComplete float64  `json:"percentComplete" yaml:"percentComplete"`
	FitScore        float64  `json:"fitScore" yaml:"fitScore"`
	Keywords        []string `json:"keywords" yaml:"keywords"`
}

// LoadEmbedded returns the bundled sample dataset.
func LoadEmbedded() ([]models.Opportunity, error) {
	return ParseJSON(embeddedOpportunities)
}

// LoadFile reads a .json, .yaml or .yml dataset.
func LoadFile(path string) ([]models.Opportunity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseJSON(data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported dataset format %q", filepath.Ext(path))
	}
}

func ParseJSON(data []byte) ([]models.Opportunity, error) {
	var raw []record
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	return convert(raw)
}

func ParseYAML(data []byte) ([]models.Opportunity, error) {
	var raw []record
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	return convert(raw)
}

func convert(raw []record) ([]models.Opportunity, error) {
	out := make([]models.Opportunity, 0, len(raw))
	seen := make(map[uuid.UUID]struct{}, len(raw))
	for i, r := range raw {
		due, err := ParseDueDate(r.DueDate)
		if err != nil {
			return nil, fmt.Errorf("record %d (%s): %w", i, r.ID, err)
		}
		id := RecordID(r.ID)
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("record %d: duplicate id %q", i, r.ID)
		}
		seen[id] = struct{}{}
		out = append(out, models.Opportunity{
			ID:              id,
			Title:           strings.TrimSpace(r.Title),
			NAICS:           strings.TrimSpace(r.NAICS),
			SetAside:        r.SetAside,
			Vehicle:         strings.TrimSpace(r.Vehicle),
			Agency:          strings.TrimSpace(r.Agency),
			Status:          strings.TrimSpace(r.Status),
			DueDate:         due,
			Ceiling:         r.Ceiling,
			PercentComplete: r.PercentComplete,
			FitScore:        r.FitScore,
			Keywords:        r.Keywords,
		})
	}
	return out, nil
}

// RecordID returns raw as a UUID when it is one, and otherwise a stable
// name-based UUID derived from it.
func RecordID(raw string) uuid.UUID {
	raw = strings.TrimSpace(raw)
	if id, err := uuid.Parse(raw); err == nil {
		return id
	}
	return uuid.NewSHA1(recordNamespace, []byte(raw))
}

var dueDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDueDate accepts RFC 3339 timestamps or plain dates. Plain dates are
// midnight UTC.
func ParseDueDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized due date %q", s)
}
