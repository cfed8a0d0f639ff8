package preview

import (
	"strings"
	"testing"

	"github.com/Malith-nethsiri/valuerpro-project-sub001/internal/draft"
)

func sampleDraft() draft.Data {
	d := draft.New()
	d.MergeStep(draft.StepReportInfo, draft.StepData{
		"reference_number": "VR-2026-0142",
		"purpose":          "Mortgage security",
		"client_name":      "Bank of Ceylon",
		"currency":         "LKR",
	})
	d.MergeStep(draft.StepIdentification, draft.StepData{
		"lot_number":     "15",
		"plan_number":    "2935",
		"extent_perches": 13.8,
		"boundaries":     map[string]any{"north": "Lot 14", "west": "Canal"},
	})
	d.MergeStep(draft.StepBuildings, draft.StepData{
		"buildings": []map[string]any{{
			"id": "b-1", "type": "Dwelling House", "floor_area": 1200.0,
			"replacement_cost_per_sqft": 50.0, "depreciation_rate": 20.0,
			"construction_year": "1995", "condition": "Good",
		}},
	})
	d.MergeStep(draft.StepValuation, draft.StepData{
		"market_value":       12500000.0,
		"market_value_words": "Twelve Million Five Hundred Thousand",
		"forced_sale_value":  10000000.0,
	})
	return d
}

func TestSummarySections(t *testing.T) {
	md := Summary(sampleDraft())

	for _, want := range []string{
		"# VR-2026-0142",
		"**Client:** Bank of Ceylon",
		"## Property Identification",
		"**Extent:** 13.8 perches (349.04136643",
		"- West: Canal",
		"## Buildings",
		"| 1 | Dwelling House | 1200 |",
		"LKR 48,000",
		"## Valuation",
		"**Market Value:** LKR 12,500,000",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("summary missing %q:\n%s", want, md)
		}
	}
	// Untouched sections stay out of the preview.
	for _, absent := range []string{"## Location", "## Site", "## Comparable Evidence"} {
		if strings.Contains(md, absent) {
			t.Fatalf("summary includes empty section %q", absent)
		}
	}
}

func TestSummaryIsPure(t *testing.T) {
	d := sampleDraft()
	before := d.PopulatedFields()
	first := Summary(d)
	second := Summary(d)
	if first != second {
		t.Fatalf("summary not deterministic")
	}
	if d.PopulatedFields() != before {
		t.Fatalf("summary mutated the draft")
	}
}

func TestSummaryEmptyDraft(t *testing.T) {
	md := Summary(draft.New())
	if !strings.Contains(md, "# Valuation Report (Draft)") {
		t.Fatalf("empty draft missing fallback title:\n%s", md)
	}
	if strings.Contains(md, "## ") {
		t.Fatalf("empty draft should have no sections:\n%s", md)
	}
}

func TestMoneyGrouping(t *testing.T) {
	cases := []struct {
		in       float64
		currency string
		want     string
	}{
		{12500000, "LKR", "LKR 12,500,000"},
		{950, "LKR", "LKR 950"},
		{1234.5, "", "1,234.5"},
		{-48000, "LKR", "LKR -48,000"},
	}
	for _, tc := range cases {
		if got := money(tc.in, tc.currency); got != tc.want {
			t.Fatalf("money(%v, %q) = %q, want %q", tc.in, tc.currency, got, tc.want)
		}
	}
}

func TestHTMLRendersTables(t *testing.T) {
	doc, err := HTML(Summary(sampleDraft()), "VR-2026-0142")
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	if !strings.Contains(doc, "<table>") {
		t.Fatalf("buildings table not converted:\n%s", doc)
	}
	if !strings.Contains(doc, "<title>VR-2026-0142</title>") {
		t.Fatalf("title missing")
	}
	if !strings.Contains(doc, "Dwelling House") {
		t.Fatalf("content missing")
	}
}
