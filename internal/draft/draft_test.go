package draft

import (
	"math"
	"testing"
)

func TestNewMaterializesEveryStep(t *testing.T) {
	d := New()
	if len(d) != len(StepOrder) {
		t.Fatalf("expected %d steps, got %d", len(StepOrder), len(d))
	}
	for _, step := range StepOrder {
		if d[step] == nil {
			t.Fatalf("step %s is nil", step)
		}
	}
	if rows := Rows(d[StepBuildings]["buildings"]); rows == nil {
		t.Fatalf("buildings array not initialized")
	}
	if rows := Rows(d[StepAppendices]["files"]); rows == nil {
		t.Fatalf("appendices files array not initialized")
	}
}

func TestStepMaterializesMissingStep(t *testing.T) {
	d := Data{}
	sd := d.Step(StepMarket)
	if sd == nil {
		t.Fatalf("expected materialized step")
	}
	if _, ok := d[StepMarket]; !ok {
		t.Fatalf("materialized step not stored back")
	}
	if Rows(sd["comparables"]) == nil {
		t.Fatalf("comparables array not initialized")
	}
	if got := d.Step("bogus"); len(got) != 0 {
		t.Fatalf("unknown step should yield empty record, got %v", got)
	}
}

func TestMergeStepShallowMerge(t *testing.T) {
	d := New()
	d.MergeStep(StepLocation, StepData{"city": "Kandy", "district": "Kandy"})
	d.MergeStep(StepLocation, StepData{"city": "Colombo"})
	if got := GetString(d[StepLocation], "city"); got != "Colombo" {
		t.Fatalf("expected last write to win, got %q", got)
	}
	if got := GetString(d[StepLocation], "district"); got != "Kandy" {
		t.Fatalf("untouched key clobbered, got %q", got)
	}
	d.MergeStep("bogus", StepData{"x": 1})
	if _, ok := d["bogus"]; ok {
		t.Fatalf("unknown step must not be created")
	}
}

func TestCloneIsDeep(t *testing.T) {
	d := New()
	d.MergeStep(StepIdentification, StepData{
		"lot_number": "12",
		"boundaries": map[string]any{"north": "road"},
	})
	d.Step(StepBuildings)["buildings"] = []map[string]any{{"id": "b-1", "type": "house"}}

	c := d.Clone()
	c.Step(StepIdentification)["lot_number"] = "99"
	GetMap(c.Step(StepIdentification), "boundaries")["north"] = "canal"
	Rows(c.Step(StepBuildings)["buildings"])[0]["type"] = "shed"

	if got := GetString(d[StepIdentification], "lot_number"); got != "12" {
		t.Fatalf("clone shares top-level fields: %q", got)
	}
	if got := GetMap(d[StepIdentification], "boundaries")["north"]; got != "road" {
		t.Fatalf("clone shares nested maps: %v", got)
	}
	if got := Rows(d[StepBuildings]["buildings"])[0]["type"]; got != "house" {
		t.Fatalf("clone shares rows: %v", got)
	}
}

func TestPerchesToSqm(t *testing.T) {
	got := PerchesToSqm(13.8)
	if math.Abs(got-349.0413664) > 0.001 {
		t.Fatalf("13.8 perches = %v sqm, want ~349.04", got)
	}
}

func TestBuildingValue(t *testing.T) {
	row := map[string]any{
		"floor_area":                1200.0,
		"replacement_cost_per_sqft": 50.0,
		"depreciation_rate":         20.0,
	}
	v, ok := BuildingValue(row)
	if !ok {
		t.Fatalf("expected a value")
	}
	if math.Abs(v-48000) > 0.01 {
		t.Fatalf("value = %v, want 48000", v)
	}
	if _, ok := BuildingValue(map[string]any{"floor_area": 1200.0}); ok {
		t.Fatalf("missing cost rate must not yield a value")
	}
}

func TestIsEmpty(t *testing.T) {
	cases := []struct {
		v    any
		want bool
	}{
		{nil, true},
		{"", true},
		{"  ", true},
		{"x", false},
		{0.0, false},
		{map[string]any{}, true},
		{map[string]any{"k": 1}, false},
		{[]any{}, true},
		{[]map[string]any{{}}, false},
	}
	for _, c := range cases {
		if got := IsEmpty(c.v); got != c.want {
			t.Fatalf("IsEmpty(%v) = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestGetFloatParsesGroupedStrings(t *testing.T) {
	m := map[string]any{"market_value": "1,250,000.50", "bad": "n/a"}
	f, ok := GetFloat(m, "market_value")
	if !ok || f != 1250000.50 {
		t.Fatalf("got %v %v", f, ok)
	}
	if _, ok := GetFloat(m, "bad"); ok {
		t.Fatalf("non-numeric string must not parse")
	}
	if _, ok := GetFloat(m, "absent"); ok {
		t.Fatalf("absent key must not parse")
	}
}

func TestPopulatedFieldsCountsLeaves(t *testing.T) {
	d := New()
	if d.PopulatedFields() != 0 {
		t.Fatalf("fresh draft should have zero populated fields")
	}
	d.MergeStep(StepLocation, StepData{"city": "Galle", "postal_code": ""})
	d.Step(StepBuildings)["buildings"] = []map[string]any{
		{"id": "b-1", "type": "house", "floor_area": 900.0},
	}
	if got := d.PopulatedFields(); got != 4 {
		t.Fatalf("populated fields = %d, want 4", got)
	}
}

func TestRowsCoercesJSONShape(t *testing.T) {
	// JSON decoding yields []any of map[string]any.
	v := []any{map[string]any{"id": "a"}, "stray", map[string]any{"id": "b"}}
	rows := Rows(v)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
}
