package query

import (
	"testing"
	"time"

	"github.com/david/bid-filter/internal/filter"
	"github.com/david/bid-filter/internal/models"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

var fixedNow = time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC)

func opp(title string, mutate func(*models.Opportunity)) models.Opportunity {
	o := models.Opportunity{
		ID:       uuid.NewSHA1(uuid.NameSpaceURL, []byte(title)),
		Title:    title,
		NAICS:    "541512",
		SetAside: []string{"SB"},
		Vehicle:  "GSA MAS",
		Agency:   "DHS",
		Status:   models.StatusDraft,
		DueDate:  fixedNow.Add(10 * 24 * time.Hour),
		Ceiling:  250000,
		Keywords: []string{},
	}
	if mutate != nil {
		mutate(&o)
	}
	return o
}

func titles(records []models.Opportunity) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Title
	}
	return out
}

func TestEvaluateEmptyDataset(t *testing.T) {
	res := Evaluate(nil, filter.Filters{Keywords: []string{"x"}}, fixedNow)
	if res.Progress != 0 || len(res.Matches) != 0 {
		t.Fatalf("expected empty result with 0 progress, got %+v", res)
	}
}

func TestEvaluateNoFiltersReturnsAllInOrder(t *testing.T) {
	records := []models.Opportunity{opp("b", nil), opp("a", nil), opp("c", nil)}
	res := Evaluate(records, filter.Default(), fixedNow)
	if diff := cmp.Diff([]string{"b", "a", "c"}, titles(res.Matches)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluateSetAsideOverlap(t *testing.T) {
	records := []models.Opportunity{
		opp("hub", func(o *models.Opportunity) { o.SetAside = []string{"HUBZone"} }),
		opp("wosb", func(o *models.Opportunity) { o.SetAside = []string{"WOSB"} }),
	}
	res := Evaluate(records, filter.Filters{SetAside: []string{"8(a)", "HUBZone"}}, fixedNow)
	if diff := cmp.Diff([]string{"hub"}, titles(res.Matches)); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluateCeilingRange(t *testing.T) {
	c, err := filter.ParseCeiling("100000_500000")
	if err != nil {
		t.Fatal(err)
	}
	records := []models.Opportunity{
		opp("mid", func(o *models.Opportunity) { o.Ceiling = 250000 }),
		opp("over", func(o *models.Opportunity) { o.Ceiling = 600000 }),
		opp("edge", func(o *models.Opportunity) { o.Ceiling = 500000 }),
	}
	res := Evaluate(records, filter.Filters{Ceiling: c}, fixedNow)
	if diff := cmp.Diff([]string{"mid", "edge"}, titles(res.Matches)); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluateRelativePeriod(t *testing.T) {
	p, err := filter.ParsePeriod("30d")
	if err != nil {
		t.Fatal(err)
	}
	records := []models.Opportunity{
		opp("soon", func(o *models.Opportunity) { o.DueDate = fixedNow.AddDate(0, 0, 10) }),
		opp("later", func(o *models.Opportunity) { o.DueDate = fixedNow.AddDate(0, 0, 40) }),
		opp("past", func(o *models.Opportunity) { o.DueDate = fixedNow.AddDate(0, 0, -1) }),
	}
	res := Evaluate(records, filter.Filters{Period: p}, fixedNow)
	if diff := cmp.Diff([]string{"soon"}, titles(res.Matches)); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}

	// The window moves with the evaluation instant.
	res = Evaluate(records, filter.Filters{Period: p}, fixedNow.AddDate(0, 0, 20))
	if diff := cmp.Diff([]string{"later"}, titles(res.Matches)); diff != "" {
		t.Fatalf("mismatch after clock moved (-want +got):\n%s", diff)
	}
}

func TestEvaluateAbsolutePeriodIgnoresTimeOfDay(t *testing.T) {
	p, err := filter.ParsePeriod("2026-03-01_2026-03-31")
	if err != nil {
		t.Fatal(err)
	}
	records := []models.Opportunity{
		opp("first-morning", func(o *models.Opportunity) { o.DueDate = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }),
		opp("last-evening", func(o *models.Opportunity) { o.DueDate = time.Date(2026, 3, 31, 23, 59, 0, 0, time.UTC) }),
		opp("april", func(o *models.Opportunity) { o.DueDate = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC) }),
	}
	res := Evaluate(records, filter.Filters{Period: p}, fixedNow)
	if diff := cmp.Diff([]string{"first-morning", "last-evening"}, titles(res.Matches)); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluateKeywordOr(t *testing.T) {
	records := []models.Opportunity{
		opp("Cloud Migration Services", nil),
		opp("Facilities Support", func(o *models.Opportunity) { o.Keywords = []string{"security"} }),
		opp("Janitorial Services", func(o *models.Opportunity) { o.Keywords = []string{"cleaning"} }),
		opp("Network Modernization", func(o *models.Opportunity) { o.Keywords = []string{"CyberSecurity"} }),
	}
	res := Evaluate(records, filter.Filters{Keywords: []string{"cloud", "security"}}, fixedNow)
	want := []string{"Cloud Migration Services", "Facilities Support", "Network Modernization"}
	if diff := cmp.Diff(want, titles(res.Matches)); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluateAgencyAndScalars(t *testing.T) {
	records := []models.Opportunity{
		opp("dhs", nil),
		opp("va", func(o *models.Opportunity) { o.Agency = "VA" }),
		opp("gsa-va", func(o *models.Opportunity) { o.Agency = "VA"; o.Vehicle = "OASIS+" }),
	}
	res := Evaluate(records, filter.Filters{Agency: []string{"VA", "DOD"}, Vehicle: "GSA MAS"}, fixedNow)
	if diff := cmp.Diff([]string{"va"}, titles(res.Matches)); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

// Toggling one field at a time: a record passes the combined filters iff it
// passes every single-field filter.
func TestEvaluateIsConjunctionOfFields(t *testing.T) {
	period, _ := filter.ParsePeriod("30d")
	full := filter.Filters{
		NAICS:    "541512",
		SetAside: []string{"SB", "8(a)"},
		Vehicle:  "GSA MAS",
		Agency:   []string{"DHS"},
		Period:   period,
		Ceiling:  filter.Range(100000, 300000),
		Keywords: []string{"cloud"},
	}

	variants := []models.Opportunity{
		opp("Cloud all match", nil),
		opp("Cloud wrong naics", func(o *models.Opportunity) { o.NAICS = "236220" }),
		opp("Cloud wrong set-aside", func(o *models.Opportunity) { o.SetAside = []string{"WOSB"} }),
		opp("Cloud wrong vehicle", func(o *models.Opportunity) { o.Vehicle = "SEWP" }),
		opp("Cloud wrong agency", func(o *models.Opportunity) { o.Agency = "VA" }),
		opp("Cloud late", func(o *models.Opportunity) { o.DueDate = fixedNow.AddDate(0, 0, 45) }),
		opp("Cloud too big", func(o *models.Opportunity) { o.Ceiling = 900000 }),
		opp("No keyword", nil),
	}

	singles := make([]filter.Filters, 0, len(filter.Fields))
	for _, field := range filter.Fields {
		only := filter.Default()
		switch field {
		case filter.FieldNAICS:
			only.NAICS = full.NAICS
		case filter.FieldSetAside:
			only.SetAside = full.SetAside
		case filter.FieldVehicle:
			only.Vehicle = full.Vehicle
		case filter.FieldAgency:
			only.Agency = full.Agency
		case filter.FieldPeriod:
			only.Period = full.Period
		case filter.FieldCeiling:
			only.Ceiling = full.Ceiling
		case filter.FieldKeywords:
			only.Keywords = full.Keywords
		}
		singles = append(singles, only)
	}

	for _, r := range variants {
		want := true
		for _, s := range singles {
			want = want && Matches(r, s, fixedNow)
		}
		if got := Matches(r, full, fixedNow); got != want {
			t.Errorf("%s: combined=%v, conjunction of fields=%v", r.Title, got, want)
		}
	}

	res := Evaluate(variants, full, fixedNow)
	if diff := cmp.Diff([]string{"Cloud all match"}, titles(res.Matches)); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestProgress(t *testing.T) {
	statuses := []string{
		models.StatusSubmitted, models.StatusAwarded, models.StatusDraft,
		models.StatusReady, models.StatusLost, models.StatusSubmitted,
	}
	records := make([]models.Opportunity, len(statuses))
	for i, s := range statuses {
		s := s
		records[i] = opp(s, func(o *models.Opportunity) { o.Status = s })
	}

	res := Evaluate(records, filter.Default(), fixedNow)
	if res.Progress != 50 {
		t.Fatalf("expected 50, got %d", res.Progress)
	}

	// 1 of 3 = 33.3 -> 33; 2 of 3 = 66.7 -> 67
	if got := Progress(records[2:5]); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := Progress(records[:3]); got != 67 {
		t.Fatalf("expected 67, got %d", got)
	}
	if got := Progress(records[1:4]); got != 33 {
		t.Fatalf("expected 33, got %d", got)
	}
}
