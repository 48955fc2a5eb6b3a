package models

import (
	"time"

	"github.com/google/uuid"
)

// Opportunity statuses as they appear in the dataset.
const (
	StatusDraft     = "Draft"
	StatusReady     = "Ready"
	StatusSubmitted = "Submitted"
	StatusAwarded   = "Awarded"
	StatusLost      = "Lost"
)

// Statuses lists every known status in dashboard order.
var Statuses = []string{StatusDraft, StatusReady, StatusSubmitted, StatusAwarded, StatusLost}

// Opportunity is a single procurement record. Records are loaded once and treated
// as read-only by the query engine.
type Opportunity struct {
	ID              uuid.UUID `json:"id" yaml:"id"`
	Title           string    `json:"title" yaml:"title"`
	NAICS           string    `json:"naics" yaml:"naics"`
	SetAside        []string  `json:"setAside" yaml:"setAside"`
	Vehicle         string    `json:"vehicle" yaml:"vehicle"`
	Agency          string    `json:"agency" yaml:"agency"`
	Status          string    `json:"status" yaml:"status"`
	DueDate         time.Time `json:"dueDate" yaml:"dueDate"`
	Ceiling         float64   `json:"ceiling" yaml:"ceiling"`
	PercentComplete float64   `json:"percentComplete" yaml:"percentComplete"`
	FitScore        float64   `json:"fitScore" yaml:"fitScore"`
	Keywords        []string  `json:"keywords" yaml:"keywords"`
}

// IsClosedOut reports whether the opportunity counts toward submission progress.
func (o Opportunity) IsClosedOut() bool {
	return o.Status == StatusSubmitted || o.Status == StatusAwarded
}
