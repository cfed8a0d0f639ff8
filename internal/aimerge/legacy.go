package aimerge

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/Malith-nethsiri/valuerpro-project-sub001/internal/draft"
)

// Legacy document types with distinct field semantics.
const (
	docSurveyPlan = "survey_plan"
	docDeed       = "deed"
)

// mapLegacy handles the older per-document-type extraction schema:
// document_analysis.extracted_data (or general_data), with field meaning
// depending on whether the source was classified survey_plan or deed.
// Everything funnels through the same step mapping as the comprehensive
// path, with narrower coverage.
func mapLegacy(c *mergeCtx, doc gjson.Result) {
	data := doc.Get("extracted_data")
	if !data.Exists() || !data.IsObject() {
		data = doc.Get("general_data")
	}
	if !data.Exists() || !data.IsObject() {
		return
	}
	docType := strings.ToLower(text(doc, "document_type", "detected_document_type"))

	switch docType {
	case docSurveyPlan:
		mapSurveyPlan(c, data)
	case docDeed:
		mapDeed(c, data)
	default:
		// Unknown type: both extractors run; absent fields no-op anyway.
		mapSurveyPlan(c, data)
		mapDeed(c, data)
	}
	mapLegacyGeneral(c, data)
}

// mapSurveyPlan covers the survey-plan vocabulary: lot/plan identity,
// extents, and boundaries.
func mapSurveyPlan(c *mergeCtx, obj gjson.Result) {
	step := draft.StepIdentification
	c.set(step, "lot_number", text(obj, "lot_number", "lot_no", "lot"))
	c.set(step, "plan_number", text(obj, "plan_number", "plan_no", "survey_plan_number"))
	c.set(step, "plan_date", text(obj, "plan_date", "date_of_survey"))
	c.set(step, "surveyor_name", text(obj, "surveyor", "surveyor_name", "licensed_surveyor"))
	c.set(step, "land_name", text(obj, "land_name", "name_of_land"))

	if perches, ok := num(obj, "extent_perches", "extent_in_perches"); ok {
		c.set(step, "extent_perches", perches, validNumber, positiveNumber)
		c.set(step, "extent_sqm", draft.PerchesToSqm(perches), validNumber, positiveNumber)
	}
	c.set(step, "extent_local", text(obj, "extent", "extent_text"))

	if b := obj.Get("boundaries"); b.IsObject() {
		for _, dir := range []string{"north", "south", "east", "west"} {
			c.setNested(step, "boundaries", dir, text(b, dir))
		}
	}
}

// mapDeed covers the deed vocabulary: title chain and parties.
func mapDeed(c *mergeCtx, obj gjson.Result) {
	id := draft.StepIdentification
	c.set(id, "deed_number", text(obj, "deed_number", "deed_no"))
	c.set(id, "deed_date", text(obj, "deed_date", "date_of_deed"))
	c.set(id, "notary_name", text(obj, "notary", "notary_name", "notary_public"))
	c.set(id, "title_owner", text(obj, "current_owner", "owner", "transferee"))
	c.set(id, "interest", text(obj, "interest", "interest_conveyed"))

	legal := draft.StepLegal
	c.set(legal, "current_owner", text(obj, "current_owner", "owner", "transferee"))
	c.set(legal, "encumbrances", text(obj, "encumbrances"))
	c.set(legal, "deed_restrictions", text(obj, "restrictions", "conditions"))
}

// mapLegacyGeneral covers fields both document types may carry.
func mapLegacyGeneral(c *mergeCtx, obj gjson.Result) {
	step := draft.StepLocation
	c.set(step, "address", text(obj, "address", "property_address", "location"))
	c.set(step, "village", text(obj, "village"))
	c.set(step, "district", text(obj, "district"))
	c.set(step, "province", text(obj, "province"))
	c.set(step, "gn_division", text(obj, "gn_division"))
	c.set(step, "ds_division", text(obj, "ds_division"))
}
