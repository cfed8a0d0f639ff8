package wizard

import (
	"fmt"
	"time"

	"github.com/Malith-nethsiri/valuerpro-project-sub001/internal/draft"
)

// dateLayouts are the accepted wire formats for date fields.
var dateLayouts = []string{"2006-01-02", time.RFC3339, "02/01/2006"}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ValidateStep returns the ordered human-readable errors for the step at
// flow index n. It is a pure function of data (and the supplied now, used
// by date-not-in-future rules): no state is read or written.
func ValidateStep(data draft.Data, flow Flow, n int, now time.Time) []string {
	step := flow.StepAt(n)
	if step == "" {
		return nil
	}
	if step == draft.StepReview {
		return validateReview(data, flow, now)
	}
	return validateNamedStep(data, step, now)
}

// validateReview re-runs every prior step and reports only the first
// failing one. Fail-fast is the intended behavior here, not an oversight:
// the review page points the user at one step to fix at a time.
func validateReview(data draft.Data, flow Flow, now time.Time) []string {
	for i := 0; i < flow.TotalSteps()-1; i++ {
		step := flow.StepAt(i)
		if errs := validateNamedStep(data, step, now); len(errs) > 0 {
			return []string{fmt.Sprintf("step %q is incomplete: %s", step, errs[0])}
		}
	}
	return nil
}

func validateNamedStep(data draft.Data, step string, now time.Time) []string {
	sd := data.Step(step)
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	required := func(field, label string) {
		if draft.IsEmpty(sd[field]) {
			add("%s is required", label)
		}
	}
	positiveIfSet := func(field, label string) {
		if draft.IsEmpty(sd[field]) {
			return
		}
		v, ok := draft.GetFloat(sd, field)
		if !ok {
			add("%s must be a number", label)
		} else if v <= 0 {
			add("%s must be greater than zero", label)
		}
	}
	dateNotFuture := func(field, label string) {
		s := draft.GetString(sd, field)
		if s == "" {
			return
		}
		t, ok := parseDate(s)
		if !ok {
			add("%s is not a valid date", label)
			return
		}
		if t.After(now) {
			add("%s cannot be in the future", label)
		}
	}

	switch step {
	case draft.StepReportInfo:
		required("purpose", "purpose of valuation")
		required("client_name", "client name")
		dateNotFuture("inspection_date", "inspection date")
		dateNotFuture("valuation_date", "valuation date")

	case draft.StepIdentification:
		required("lot_number", "lot number")
		required("plan_number", "plan number")
		if draft.IsEmpty(sd["extent_perches"]) && draft.IsEmpty(sd["extent_local"]) {
			add("land extent is required (perches or local format)")
		}
		positiveIfSet("extent_perches", "extent in perches")
		positiveIfSet("extent_sqm", "extent in square meters")
		dateNotFuture("plan_date", "plan date")
		dateNotFuture("deed_date", "deed date")

	case draft.StepLocation:
		if draft.IsEmpty(sd["address"]) && draft.IsEmpty(sd["village"]) {
			add("address or village is required")
		}
		required("district", "district")
		required("province", "province")
		if lat, ok := draft.GetFloat(sd, "latitude"); ok && (lat < -90 || lat > 90) {
			add("latitude %v is out of range", lat)
		}
		if lng, ok := draft.GetFloat(sd, "longitude"); ok && (lng < -180 || lng > 180) {
			add("longitude %v is out of range", lng)
		}

	case draft.StepSite:
		positiveIfSet("frontage", "frontage")

	case draft.StepBuildings:
		for i, row := range draft.Rows(sd["buildings"]) {
			label := fmt.Sprintf("building %d", i+1)
			if draft.GetString(row, "type") == "" {
				add("%s: type is required", label)
			}
			if area, ok := draft.GetFloat(row, "floor_area"); !ok {
				if !draft.IsEmpty(row["floor_area"]) {
					add("%s: floor area must be a number", label)
				}
			} else if area <= 0 {
				add("%s: floor area must be greater than zero", label)
			}
			if y, ok := draft.GetFloat(row, "construction_year"); ok {
				if y < 1800 || int(y) > now.Year() {
					add("%s: construction year %v is implausible", label, y)
				}
			}
		}

	case draft.StepMarket:
		for i, row := range draft.Rows(sd["comparables"]) {
			label := fmt.Sprintf("comparable %d", i+1)
			if price, ok := draft.GetFloat(row, "price"); ok && price <= 0 {
				add("%s: price must be greater than zero", label)
			}
			if s := draft.GetString(row, "date"); s != "" {
				if t, ok := parseDate(s); !ok {
					add("%s: sale date is not a valid date", label)
				} else if t.After(now) {
					add("%s: sale date cannot be in the future", label)
				}
			}
		}

	case draft.StepValuation:
		mv, hasMV := draft.GetFloat(sd, "market_value")
		if !hasMV || mv <= 0 {
			add("market value is required and must be greater than zero")
		}
		if fsv, ok := draft.GetFloat(sd, "forced_sale_value"); ok && hasMV && fsv > mv {
			add("forced sale value cannot exceed market value")
		}
		for i, row := range draft.Rows(sd["lines"]) {
			label := fmt.Sprintf("valuation line %d", i+1)
			if draft.GetString(row, "description") == "" {
				add("%s: description is required", label)
			}
			if v, ok := draft.GetFloat(row, "value"); ok && v < 0 {
				add("%s: value cannot be negative", label)
			}
		}

	case draft.StepUtilities, draft.StepPlanning, draft.StepTransport,
		draft.StepEnvironmental, draft.StepLocality, draft.StepLegal,
		draft.StepAppendices:
		// Narrative/optional sections: no blocking rules.
	}
	return errs
}
