package aimerge

import (
	"math"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/Malith-nethsiri/valuerpro-project-sub001/internal/draft"
)

const comprehensivePayload = `{
  "document_analysis": {
    "comprehensive_data": {
      "property_identification": {
        "lot_number": "15",
        "plan_number": "2935",
        "surveyor_name": "W. A. Perera",
        "extent_perches": 13.8,
        "boundaries": {"north": "Lot 14", "south": "Road", "east": "Lot 16", "west": "Canal"}
      },
      "location_details": {
        "address": "No. 42, Temple Road, Kandy",
        "district": "Kandy",
        "province": "Central",
        "latitude": 7.2906,
        "longitude": 80.6337
      },
      "buildings_improvements": {
        "buildings": [
          {"type": "Dwelling house", "floor_area": 1450, "construction_year": 1998, "condition": "Good", "stories": 2},
          {"condition": "Poor"}
        ]
      },
      "legal_information": {"current_owner": "K. Silva", "encumbrances": "None declared"},
      "market_analysis": {
        "demand_level": "High",
        "comparables": [
          {"description": "Lot 8, Temple Road", "price": 4500000, "land_extent": 12.0}
        ]
      }
    }
  }
}`

func TestMergeComprehensivePayload(t *testing.T) {
	m := New(DefaultOptions())
	d := draft.New()
	res := m.Merge(d, []byte(comprehensivePayload))

	if res.Source != PayloadComprehensive {
		t.Fatalf("source = %s, want comprehensive", res.Source)
	}
	if res.FieldsUpdated == 0 {
		t.Fatalf("expected fields updated")
	}
	id := res.MergedData.Step(draft.StepIdentification)
	if got := draft.GetString(id, "lot_number"); got != "15" {
		t.Fatalf("lot_number = %q", got)
	}
	sqm, ok := draft.GetFloat(id, "extent_sqm")
	if !ok || math.Abs(sqm-349.0413664) > 0.01 {
		t.Fatalf("extent_sqm = %v, want ~349.04", sqm)
	}
	if got := draft.GetMap(id, "boundaries")["west"]; got != "Canal" {
		t.Fatalf("boundaries.west = %v", got)
	}

	rows := draft.Rows(res.MergedData.Step(draft.StepBuildings)["buildings"])
	if len(rows) != 1 {
		t.Fatalf("expected 1 real building (type-or-area filter), got %d", len(rows))
	}
	if draft.GetString(rows[0], "id") == "" {
		t.Fatalf("building row missing generated id")
	}
	if got := draft.GetString(rows[0], "type"); got != "Dwelling house" {
		t.Fatalf("building type = %q", got)
	}

	cmp := draft.Rows(res.MergedData.Step(draft.StepMarket)["comparables"])
	if len(cmp) != 1 {
		t.Fatalf("expected 1 comparable, got %d", len(cmp))
	}

	// The caller's draft is never mutated.
	if d.PopulatedFields() != 0 {
		t.Fatalf("input draft mutated: %d populated fields", d.PopulatedFields())
	}
}

func TestMergeIdempotent(t *testing.T) {
	m := New(DefaultOptions())
	first := m.Merge(draft.New(), []byte(comprehensivePayload))
	second := m.Merge(first.MergedData, []byte(comprehensivePayload))
	if second.FieldsUpdated != 0 {
		t.Fatalf("second merge updated %d fields, want 0 (changes: %v)",
			second.FieldsUpdated, second.ChangesApplied)
	}
}

func TestMergePreservesUserData(t *testing.T) {
	m := New(DefaultOptions())
	d := draft.New()
	d.MergeStep(draft.StepIdentification, draft.StepData{"lot_number": "99"})
	d.MergeStep(draft.StepLocation, draft.StepData{"district": "Galle"})
	before := d.PopulatedFields()

	res := m.Merge(d, []byte(comprehensivePayload))

	if got := draft.GetString(res.MergedData.Step(draft.StepIdentification), "lot_number"); got != "99" {
		t.Fatalf("user lot_number overwritten: %q", got)
	}
	if got := draft.GetString(res.MergedData.Step(draft.StepLocation), "district"); got != "Galle" {
		t.Fatalf("user district overwritten: %q", got)
	}
	// Skipped user fields are not validation errors.
	if len(res.ValidationErrors) != 0 {
		t.Fatalf("unexpected validation errors: %v", res.ValidationErrors)
	}
	if res.MergedData.PopulatedFields() < before {
		t.Fatalf("merge decreased populated fields: %d -> %d",
			before, res.MergedData.PopulatedFields())
	}
}

func TestMergeOverwriteWhenPreserveOff(t *testing.T) {
	opts := DefaultOptions()
	opts.PreserveUserData = false
	m := New(opts)
	d := draft.New()
	d.MergeStep(draft.StepIdentification, draft.StepData{"lot_number": "99"})

	res := m.Merge(d, []byte(comprehensivePayload))
	if got := draft.GetString(res.MergedData.Step(draft.StepIdentification), "lot_number"); got != "15" {
		t.Fatalf("expected AI value with preserve off, got %q", got)
	}
}

func TestMergeErrorPayloadIsNoOp(t *testing.T) {
	m := New(DefaultOptions())
	d := draft.New()
	d.MergeStep(draft.StepLocation, draft.StepData{"city": "Matara"})
	before := d.PopulatedFields()

	res := m.Merge(d, []byte(`{"document_analysis": {"comprehensive_data": {"error": "OCR failed"}}}`))
	if res.FieldsUpdated != 0 {
		t.Fatalf("error payload updated %d fields", res.FieldsUpdated)
	}
	if res.MergedData.PopulatedFields() != before {
		t.Fatalf("error payload changed the draft")
	}
	if res.Source != PayloadError {
		t.Fatalf("source = %s, want error", res.Source)
	}
}

func TestMergeEmptyAndInvalidPayloads(t *testing.T) {
	m := New(DefaultOptions())
	for _, raw := range []string{"", "{}", "not json", `{"document_analysis": {}}`} {
		res := m.Merge(draft.New(), []byte(raw))
		if res.FieldsUpdated != 0 {
			t.Fatalf("payload %q updated %d fields", raw, res.FieldsUpdated)
		}
	}
}

func TestMergeValidationDivertsBadValues(t *testing.T) {
	m := New(DefaultOptions())
	payload := `{
	  "document_analysis": {
	    "comprehensive_data": {
	      "location_details": {"latitude": 207.5, "longitude": 80.6, "district": "Kandy"}
	    }
	  }
	}`
	res := m.Merge(draft.New(), []byte(payload))
	loc := res.MergedData.Step(draft.StepLocation)
	if _, ok := draft.GetFloat(loc, "latitude"); ok {
		t.Fatalf("out-of-range latitude applied")
	}
	if lng, ok := draft.GetFloat(loc, "longitude"); !ok || lng != 80.6 {
		t.Fatalf("valid longitude not applied: %v %v", lng, ok)
	}
	if len(res.ValidationErrors) == 0 {
		t.Fatalf("expected a validation warning for latitude")
	}
	if draft.GetString(loc, "district") != "Kandy" {
		t.Fatalf("warning must not abort the rest of the merge")
	}
}

func TestMergeAuditTrail(t *testing.T) {
	m := New(DefaultOptions())
	res := m.Merge(draft.New(), []byte(comprehensivePayload))
	if len(res.ChangesApplied) == 0 {
		t.Fatalf("expected audit entries with LogChanges on")
	}
	found := false
	for _, ch := range res.ChangesApplied {
		if ch.Step == draft.StepIdentification && ch.Field == "lot_number" {
			found = true
			if ch.NewValue != "15" {
				t.Fatalf("audit new value = %v", ch.NewValue)
			}
			if !draft.IsEmpty(ch.OldValue) {
				t.Fatalf("audit old value should be empty, got %v", ch.OldValue)
			}
		}
	}
	if !found {
		t.Fatalf("no audit entry for identification.lot_number")
	}

	opts := DefaultOptions()
	opts.LogChanges = false
	quiet := New(opts).Merge(draft.New(), []byte(comprehensivePayload))
	if len(quiet.ChangesApplied) != 0 {
		t.Fatalf("LogChanges off still produced %d entries", len(quiet.ChangesApplied))
	}
	if quiet.FieldsUpdated == 0 {
		t.Fatalf("LogChanges off must not suppress the merge itself")
	}
}

func TestMergeLegacySurveyPlan(t *testing.T) {
	payload := `{
	  "document_analysis": {
	    "document_type": "survey_plan",
	    "extracted_data": {
	      "lot_number": "7A",
	      "plan_number": "1121",
	      "surveyor": "N. Fernando",
	      "extent_perches": 20,
	      "boundaries": {"north": "Lot 7B"},
	      "address": "Hikkaduwa"
	    }
	  }
	}`
	res := New(DefaultOptions()).Merge(draft.New(), []byte(payload))
	if res.Source != PayloadLegacy {
		t.Fatalf("source = %s", res.Source)
	}
	id := res.MergedData.Step(draft.StepIdentification)
	if draft.GetString(id, "lot_number") != "7A" {
		t.Fatalf("lot_number = %q", draft.GetString(id, "lot_number"))
	}
	if draft.GetString(id, "surveyor_name") != "N. Fernando" {
		t.Fatalf("surveyor_name = %q", draft.GetString(id, "surveyor_name"))
	}
	sqm, _ := draft.GetFloat(id, "extent_sqm")
	if math.Abs(sqm-505.857) > 0.01 {
		t.Fatalf("extent_sqm = %v", sqm)
	}
	if draft.GetString(res.MergedData.Step(draft.StepLocation), "address") != "Hikkaduwa" {
		t.Fatalf("general address not mapped")
	}
}

func TestMergeLegacyDeed(t *testing.T) {
	payload := `{
	  "document_analysis": {
	    "document_type": "deed",
	    "extracted_data": {
	      "deed_number": "4456",
	      "notary": "S. Jayawardena",
	      "current_owner": "K. Silva",
	      "encumbrances": "Mortgage to Bank of Ceylon"
	    }
	  }
	}`
	res := New(DefaultOptions()).Merge(draft.New(), []byte(payload))
	id := res.MergedData.Step(draft.StepIdentification)
	if draft.GetString(id, "deed_number") != "4456" {
		t.Fatalf("deed_number = %q", draft.GetString(id, "deed_number"))
	}
	legal := res.MergedData.Step(draft.StepLegal)
	if draft.GetString(legal, "current_owner") != "K. Silva" {
		t.Fatalf("legal current_owner = %q", draft.GetString(legal, "current_owner"))
	}
	if draft.GetString(legal, "encumbrances") != "Mortgage to Bank of Ceylon" {
		t.Fatalf("encumbrances = %q", draft.GetString(legal, "encumbrances"))
	}
}

func TestMergeRowArraysProtectedByPreserve(t *testing.T) {
	m := New(DefaultOptions())
	d := draft.New()
	d.Step(draft.StepBuildings)["buildings"] = []map[string]any{
		{"id": "user-1", "type": "Boutique", "floor_area": 300.0},
	}
	res := m.Merge(d, []byte(comprehensivePayload))
	rows := draft.Rows(res.MergedData.Step(draft.StepBuildings)["buildings"])
	if len(rows) != 1 || draft.GetString(rows[0], "id") != "user-1" {
		t.Fatalf("user buildings replaced: %v", rows)
	}
}

func TestMergeFallsBackToLegacyOnComprehensiveFailure(t *testing.T) {
	orig := mapComprehensiveFn
	mapComprehensiveFn = func(c *mergeCtx, comp gjson.Result) {
		c.set(draft.StepLocation, "city", "partial-write")
		panic("mapper bug")
	}
	defer func() { mapComprehensiveFn = orig }()

	payload := `{"document_analysis": {
	  "comprehensive_data": {"location_details": {"city": "Kandy"}},
	  "document_type": "deed",
	  "extracted_data": {"deed_number": "88"}
	}}`
	res := New(DefaultOptions()).Merge(draft.New(), []byte(payload))

	// The partial comprehensive write is discarded wholesale.
	if got := draft.GetString(res.MergedData.Step(draft.StepLocation), "city"); got == "partial-write" {
		t.Fatalf("partial comprehensive write survived fallback")
	}
	if got := draft.GetString(res.MergedData.Step(draft.StepIdentification), "deed_number"); got != "88" {
		t.Fatalf("legacy fallback did not run: deed_number = %q", got)
	}
	if len(res.ValidationErrors) == 0 {
		t.Fatalf("expected a fallback warning")
	}
}

func TestMergeBothPathsEmptyIsNoOpSuccess(t *testing.T) {
	orig := mapComprehensiveFn
	mapComprehensiveFn = func(c *mergeCtx, comp gjson.Result) { panic("mapper bug") }
	defer func() { mapComprehensiveFn = orig }()

	payload := `{"document_analysis": {"comprehensive_data": {"location_details": {"city": "Kandy"}}}}`
	res := New(DefaultOptions()).Merge(draft.New(), []byte(payload))
	if res.FieldsUpdated != 0 {
		t.Fatalf("expected no-op, got %d fields", res.FieldsUpdated)
	}
}
