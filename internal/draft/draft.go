// Package draft defines the in-memory report draft edited by the wizard:
// a record keyed by step name, where each step holds a loosely structured
// record of scalar fields, nested objects, and row arrays.
package draft

// Step names, in full-flow order. The set is fixed and exhaustive; a draft
// always materializes every step as an empty record rather than nil.
const (
	StepReportInfo     = "reportInfo"
	StepIdentification = "identification"
	StepLocation       = "location"
	StepSite           = "site"
	StepBuildings      = "buildings"
	StepUtilities      = "utilities"
	StepPlanning       = "planning"
	StepTransport      = "transport"
	StepEnvironmental  = "environmental"
	StepMarket         = "market"
	StepLocality       = "locality"
	StepValuation      = "valuation"
	StepLegal          = "legal"
	StepAppendices     = "appendices"
	StepReview         = "review"
)

// StepOrder lists every step in canonical order.
var StepOrder = []string{
	StepReportInfo,
	StepIdentification,
	StepLocation,
	StepSite,
	StepBuildings,
	StepUtilities,
	StepPlanning,
	StepTransport,
	StepEnvironmental,
	StepMarket,
	StepLocality,
	StepValuation,
	StepLegal,
	StepAppendices,
	StepReview,
}

var stepSet = func() map[string]bool {
	m := make(map[string]bool, len(StepOrder))
	for _, s := range StepOrder {
		m[s] = true
	}
	return m
}()

// KnownStep reports whether name is one of the fixed step keys.
func KnownStep(name string) bool { return stepSet[name] }

// StepData is one step's record of fields.
type StepData map[string]any

// Data is the full draft, keyed by step name.
type Data map[string]StepData

// arrayFields maps steps to the row-array fields they carry. New drafts
// initialize these to empty slices so consumers never nil-check.
var arrayFields = map[string][]string{
	StepBuildings:  {"buildings"},
	StepMarket:     {"comparables"},
	StepValuation:  {"lines"},
	StepAppendices: {"files"},
}

// New returns a draft with every step present and array fields initialized.
func New() Data {
	d := make(Data, len(StepOrder))
	for _, step := range StepOrder {
		sd := StepData{}
		for _, field := range arrayFields[step] {
			sd[field] = []map[string]any{}
		}
		d[step] = sd
	}
	return d
}

// Step returns the record for the named step, materializing it (with its
// array fields) if absent. Unknown names return a detached empty record.
func (d Data) Step(name string) StepData {
	if !KnownStep(name) {
		return StepData{}
	}
	sd, ok := d[name]
	if !ok || sd == nil {
		sd = StepData{}
		for _, field := range arrayFields[name] {
			sd[field] = []map[string]any{}
		}
		d[name] = sd
	}
	return sd
}

// MergeStep shallow-merges partial into the named step. Keys present in
// partial replace the step's values wholesale; absent keys are untouched.
func (d Data) MergeStep(name string, partial StepData) {
	if !KnownStep(name) {
		return
	}
	sd := d.Step(name)
	for k, v := range partial {
		sd[k] = v
	}
}

// Clone returns a deep copy of the draft. Maps and slices are copied;
// scalars are shared (they are immutable values in practice).
func (d Data) Clone() Data {
	out := make(Data, len(d))
	for step, sd := range d {
		out[step] = cloneStep(sd)
	}
	// Steps missing from the source still materialize in the copy.
	for _, step := range StepOrder {
		if _, ok := out[step]; !ok {
			out.Step(step)
		}
	}
	return out
}

func cloneStep(sd StepData) StepData {
	out := make(StepData, len(sd))
	for k, v := range sd {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case StepData:
		return map[string]any(cloneStep(t))
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e).(map[string]any)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
