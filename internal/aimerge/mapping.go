package aimerge

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/Malith-nethsiri/valuerpro-project-sub001/internal/draft"
)

// mapComprehensive walks every category of the comprehensive schema.
// Absent categories and absent fields leave the draft untouched.
func mapComprehensive(c *mergeCtx, comp gjson.Result) {
	mapReportInfo(c, comp.Get("report_information"))
	mapIdentification(c, comp.Get("property_identification"))
	mapLocation(c, comp.Get("location_details"))
	mapSite(c, comp.Get("site_characteristics"))
	mapBuildings(c, comp.Get("buildings_improvements"))
	mapUtilities(c, comp)
	mapLocality(c, comp)
	mapPlanning(c, comp)
	mapTransport(c, comp)
	mapEnvironmental(c, comp)
	mapLegal(c, comp.Get("legal_information"))
	mapMarket(c, comp.Get("market_analysis"))
}

// num parses the first candidate path as a number, tolerating grouped
// string values ("1,250,000").
func num(obj gjson.Result, paths ...string) (float64, bool) {
	for _, p := range paths {
		r := obj.Get(p)
		if !r.Exists() {
			continue
		}
		switch r.Type {
		case gjson.Number:
			return r.Float(), true
		case gjson.String:
			s := strings.ReplaceAll(strings.TrimSpace(r.String()), ",", "")
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func mapReportInfo(c *mergeCtx, obj gjson.Result) {
	if !obj.Exists() {
		return
	}
	c.set(draft.StepReportInfo, "purpose", text(obj, "purpose", "report_purpose"))
	c.set(draft.StepReportInfo, "client_name", text(obj, "client_name", "client"))
	c.set(draft.StepReportInfo, "inspection_date", text(obj, "inspection_date"))
	c.set(draft.StepReportInfo, "valuation_date", text(obj, "valuation_date", "report_date"))
	c.set(draft.StepReportInfo, "basis_of_value", text(obj, "basis_of_value"))
	c.set(draft.StepReportInfo, "property_type", text(obj, "property_type"))
}

func mapIdentification(c *mergeCtx, obj gjson.Result) {
	if !obj.Exists() {
		return
	}
	step := draft.StepIdentification
	c.set(step, "lot_number", text(obj, "lot_number", "lot_no"))
	c.set(step, "plan_number", text(obj, "plan_number", "plan_no"))
	c.set(step, "plan_date", text(obj, "plan_date", "survey_date"))
	c.set(step, "surveyor_name", text(obj, "surveyor_name", "surveyor", "licensed_surveyor"))
	c.set(step, "land_name", text(obj, "land_name", "property_name"))

	if perches, ok := num(obj, "extent_perches", "extent.perches"); ok {
		c.set(step, "extent_perches", perches, validNumber, positiveNumber)
		if _, sqmGiven := num(obj, "extent_sqm", "extent.sqm"); !sqmGiven {
			c.set(step, "extent_sqm", draft.PerchesToSqm(perches), validNumber, positiveNumber)
		}
	}
	if sqm, ok := num(obj, "extent_sqm", "extent.sqm"); ok {
		c.set(step, "extent_sqm", sqm, validNumber, positiveNumber)
	}
	c.set(step, "extent_local", text(obj, "extent_local", "extent_text", "extent.local"))

	if b := obj.Get("boundaries"); b.IsObject() {
		for _, dir := range []string{"north", "south", "east", "west"} {
			c.setNested(step, "boundaries", dir, text(b, dir))
		}
	}
	c.set(step, "title_owner", text(obj, "title_owner", "owner_name", "current_owner"))
	c.set(step, "deed_number", text(obj, "deed_number", "deed_no"))
	c.set(step, "deed_date", text(obj, "deed_date"))
	c.set(step, "notary_name", text(obj, "notary_name", "notary", "notary_public"))
	c.set(step, "interest", text(obj, "interest", "interest_valued"))
}

func mapLocation(c *mergeCtx, obj gjson.Result) {
	if !obj.Exists() {
		return
	}
	step := draft.StepLocation
	c.set(step, "address", text(obj, "address", "full_address", "property_address"))
	c.set(step, "village", text(obj, "village", "town"))
	c.set(step, "city", text(obj, "city", "nearest_city"))
	c.set(step, "district", text(obj, "district"))
	c.set(step, "province", text(obj, "province"))
	c.set(step, "gn_division", text(obj, "gn_division", "grama_niladhari_division"))
	c.set(step, "ds_division", text(obj, "ds_division", "divisional_secretariat"))
	c.set(step, "pradeshiya_sabha", text(obj, "pradeshiya_sabha", "local_authority"))
	c.set(step, "postal_code", text(obj, "postal_code", "zip"))

	if lat, ok := num(obj, "latitude", "coordinates.latitude", "coordinates.lat"); ok {
		c.set(step, "latitude", lat, validLatitude)
	}
	if lng, ok := num(obj, "longitude", "coordinates.longitude", "coordinates.lng"); ok {
		c.set(step, "longitude", lng, validLongitude)
	}

	c.set(step, "road_access", text(obj, "road_access", "access_road"))
	if width, ok := num(obj, "road_width", "road_width_ft"); ok {
		c.set(step, "road_width", width, validNumber, positiveNumber)
	}
	c.set(step, "nearest_landmark", text(obj, "nearest_landmark", "landmark"))
	c.set(step, "directions", text(obj, "directions", "route_description"))
	if d, ok := num(obj, "distance_to_town", "distance_to_town_km"); ok {
		c.set(step, "distance_to_town", d, validNumber, positiveNumber)
	}
}

func mapSite(c *mergeCtx, obj gjson.Result) {
	if !obj.Exists() {
		return
	}
	step := draft.StepSite
	c.set(step, "shape", text(obj, "shape", "land_shape"))
	c.set(step, "topography", text(obj, "topography", "terrain"))
	c.set(step, "soil_type", text(obj, "soil_type", "soil"))
	c.set(step, "drainage", text(obj, "drainage"))
	if f, ok := num(obj, "frontage", "frontage_ft"); ok {
		c.set(step, "frontage", f, validNumber, positiveNumber)
	}
	c.set(step, "level_with_road", text(obj, "level_with_road", "level"))
	c.set(step, "water_table", text(obj, "water_table", "water_table_depth"))
	c.set(step, "flood_risk", text(obj, "flood_risk", "flood_status"))
	c.set(step, "site_features", text(obj, "site_features", "features"))
}

// mapBuildings reconstructs the buildings array. An AI-detected building
// must carry at minimum a type or a floor area to be considered real.
func mapBuildings(c *mergeCtx, obj gjson.Result) {
	if !obj.Exists() {
		return
	}
	list := obj.Get("buildings")
	if !list.IsArray() && obj.IsArray() {
		list = obj
	}
	if !list.IsArray() {
		return
	}
	var rows []map[string]any
	list.ForEach(func(_, b gjson.Result) bool {
		typ := text(b, "type", "building_type")
		area, hasArea := num(b, "floor_area", "floor_area_sqft")
		if typ == "" && !hasArea {
			return true // not a real building
		}
		row := map[string]any{"id": draft.NewRowID()}
		if typ != "" {
			row["type"] = typ
		}
		if hasArea && area > 0 {
			row["floor_area"] = area
		}
		if use := text(b, "use", "usage"); use != "" {
			row["use"] = use
		}
		if y, ok := num(b, "construction_year", "year_built"); ok && y >= 1800 && y <= 2100 {
			row["construction_year"] = y
		}
		for _, f := range []string{"walls", "roof", "floors", "doors_windows", "condition", "description"} {
			if v := text(b, f); v != "" {
				row[f] = v
			}
		}
		if stories, ok := num(b, "stories", "floors_count", "no_of_floors"); ok && stories > 0 {
			row["stories"] = stories
		}
		rows = append(rows, row)
		return true
	})
	c.setRows(draft.StepBuildings, "buildings", rows)
}

func mapUtilities(c *mergeCtx, comp gjson.Result) {
	obj := comp.Get("utilities")
	if !obj.Exists() {
		obj = comp.Get("site_characteristics.utilities")
	}
	if !obj.Exists() {
		return
	}
	step := draft.StepUtilities
	for _, svc := range []string{"electricity", "water", "telephone", "sewerage", "gas", "internet"} {
		r := obj.Get(svc)
		if !r.Exists() {
			continue
		}
		if r.Type == gjson.True || r.Type == gjson.False {
			c.set(step, svc, r.Bool())
		} else if s := strings.TrimSpace(r.String()); s != "" {
			c.set(step, svc, s)
		}
	}
	c.set(step, "water_source", text(obj, "water_source"))
	c.set(step, "electricity_phase", text(obj, "electricity_phase"))
}

func mapLocality(c *mergeCtx, comp gjson.Result) {
	obj := comp.Get("locality")
	if !obj.Exists() {
		obj = comp.Get("location_details.locality")
	}
	if !obj.Exists() {
		return
	}
	step := draft.StepLocality
	c.set(step, "neighborhood", text(obj, "neighborhood", "neighbourhood"))
	c.set(step, "locality_type", text(obj, "locality_type", "area_type"))
	c.set(step, "development_level", text(obj, "development_level"))
	c.set(step, "nearby_amenities", text(obj, "nearby_amenities", "amenities"))
	if d, ok := num(obj, "distance_to_school", "distance_to_school_km"); ok {
		c.set(step, "distance_to_school", d, validNumber, positiveNumber)
	}
	if d, ok := num(obj, "distance_to_hospital", "distance_to_hospital_km"); ok {
		c.set(step, "distance_to_hospital", d, validNumber, positiveNumber)
	}
}

func mapPlanning(c *mergeCtx, comp gjson.Result) {
	obj := comp.Get("planning")
	if !obj.Exists() {
		obj = comp.Get("location_details.planning")
	}
	if !obj.Exists() {
		return
	}
	step := draft.StepPlanning
	c.set(step, "zoning", text(obj, "zoning", "zone"))
	c.set(step, "street_line", text(obj, "street_line"))
	c.set(step, "building_limits", text(obj, "building_limits"))
	c.set(step, "reservations", text(obj, "reservations", "road_reservations"))
	c.set(step, "approvals", text(obj, "approvals", "planning_approvals"))
}

func mapTransport(c *mergeCtx, comp gjson.Result) {
	obj := comp.Get("transport")
	if !obj.Exists() {
		obj = comp.Get("location_details.transport")
	}
	if !obj.Exists() {
		return
	}
	step := draft.StepTransport
	c.set(step, "bus_route", text(obj, "bus_route", "nearest_bus_route"))
	c.set(step, "railway_station", text(obj, "railway_station", "nearest_railway_station"))
	c.set(step, "public_transport", text(obj, "public_transport"))
	if d, ok := num(obj, "distance_to_bus_stop", "distance_to_bus_stop_km"); ok {
		c.set(step, "distance_to_bus_stop", d, validNumber, positiveNumber)
	}
}

func mapEnvironmental(c *mergeCtx, comp gjson.Result) {
	obj := comp.Get("environmental")
	if !obj.Exists() {
		obj = comp.Get("site_characteristics.environmental")
	}
	if !obj.Exists() {
		return
	}
	step := draft.StepEnvironmental
	c.set(step, "hazards", text(obj, "hazards", "environmental_hazards"))
	c.set(step, "noise_level", text(obj, "noise_level"))
	c.set(step, "air_quality", text(obj, "air_quality"))
	c.set(step, "flood_history", text(obj, "flood_history"))
}

func mapLegal(c *mergeCtx, obj gjson.Result) {
	if !obj.Exists() {
		return
	}
	step := draft.StepLegal
	c.set(step, "ownership_type", text(obj, "ownership_type", "tenure"))
	c.set(step, "current_owner", text(obj, "current_owner", "owner"))
	c.set(step, "encumbrances", text(obj, "encumbrances"))
	c.set(step, "mortgages", text(obj, "mortgages"))
	c.set(step, "leases", text(obj, "leases"))
	c.set(step, "deed_restrictions", text(obj, "deed_restrictions", "restrictions"))
	c.set(step, "statutory_approvals", text(obj, "statutory_approvals"))
	c.set(step, "litigation", text(obj, "litigation", "pending_litigation"))
}

func mapMarket(c *mergeCtx, obj gjson.Result) {
	if !obj.Exists() {
		return
	}
	step := draft.StepMarket
	c.set(step, "market_overview", text(obj, "market_overview", "overview"))
	c.set(step, "demand_level", text(obj, "demand_level", "demand"))
	c.set(step, "price_trend", text(obj, "price_trend", "trend"))
	c.set(step, "rental_levels", text(obj, "rental_levels"))

	list := obj.Get("comparables")
	if !list.IsArray() {
		list = obj.Get("comparable_sales")
	}
	if !list.IsArray() {
		return
	}
	var rows []map[string]any
	list.ForEach(func(_, cmp gjson.Result) bool {
		desc := text(cmp, "description", "address", "property")
		price, hasPrice := num(cmp, "price", "sale_price", "consideration")
		if desc == "" && !hasPrice {
			return true
		}
		row := map[string]any{"id": draft.NewRowID()}
		if desc != "" {
			row["description"] = desc
		}
		if hasPrice && price > 0 {
			row["price"] = price
		}
		if extent, ok := num(cmp, "land_extent", "extent_perches"); ok && extent > 0 {
			row["land_extent"] = extent
		}
		if date := text(cmp, "date", "sale_date"); date != "" {
			row["date"] = date
		}
		if src := text(cmp, "source"); src != "" {
			row["source"] = src
		}
		if remarks := text(cmp, "remarks", "notes"); remarks != "" {
			row["remarks"] = remarks
		}
		rows = append(rows, row)
		return true
	})
	c.setRows(step, "comparables", rows)
}
