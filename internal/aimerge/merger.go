package aimerge

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Malith-nethsiri/valuerpro-project-sub001/internal/draft"
)

// Merger applies AI-extracted document data to a report draft under a
// fixed Options policy. A Merger is stateless and safe for reuse.
type Merger struct {
	opts Options
}

func New(opts Options) *Merger {
	return &Merger{opts: opts}
}

// Merge reconciles raw analysis JSON into a copy of data. The input draft
// is never mutated. Payload problems never surface as errors: the
// comprehensive path falls back to the legacy path, and a payload with
// nothing usable yields a no-op result.
func (m *Merger) Merge(data draft.Data, raw []byte) Result {
	res := Result{MergedData: data.Clone(), Source: Classify(raw)}

	switch res.Source {
	case PayloadEmpty, PayloadError:
		return res
	case PayloadComprehensive:
		if m.applyComprehensive(&res, raw) {
			return res
		}
		// Partial comprehensive writes are discarded wholesale; the
		// legacy path starts over from the caller's draft.
		warnings := []string{"comprehensive extraction failed, using per-document fields"}
		res = Result{MergedData: data.Clone(), Source: PayloadLegacy, ValidationErrors: warnings}
		m.applyLegacy(&res, raw)
		return res
	case PayloadLegacy:
		m.applyLegacy(&res, raw)
		return res
	}
	return res
}

var mapComprehensiveFn = mapComprehensive

// applyComprehensive maps the comprehensive schema onto the draft. Any
// panic inside the category mappers is swallowed and reported as failure
// so Merge can retry via the legacy path.
func (m *Merger) applyComprehensive(res *Result, raw []byte) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	comp := documentAnalysis(raw).Get("comprehensive_data")
	c := &mergeCtx{data: res.MergedData, opts: m.opts, res: res}
	mapComprehensiveFn(c, comp)
	return true
}

func (m *Merger) applyLegacy(res *Result, raw []byte) {
	defer func() {
		// A broken legacy payload degrades to a no-op, never an error.
		_ = recover()
	}()
	doc := documentAnalysis(raw)
	c := &mergeCtx{data: res.MergedData, opts: m.opts, res: res}
	mapLegacy(c, doc)
}

// mergeCtx carries the draft being written plus the policy and audit
// sinks. All category mappers funnel through set/setNumber/setRows so the
// resolution rules live in one place.
type mergeCtx struct {
	data draft.Data
	opts Options
	res  *Result
}

// fieldValidator checks an AI-supplied value before it is applied.
// A non-nil error diverts the value into ValidationErrors.
type fieldValidator func(v any) error

func (c *mergeCtx) set(step, field string, v any, validators ...fieldValidator) {
	if draft.IsEmpty(v) {
		return
	}
	if c.opts.ValidateData {
		for _, fn := range validators {
			if err := fn(v); err != nil {
				c.res.ValidationErrors = append(c.res.ValidationErrors,
					fmt.Sprintf("%s.%s: %v", step, field, err))
				return
			}
		}
	}
	cur := c.data.Step(step)[field]
	if !draft.IsEmpty(cur) {
		if c.opts.PreserveUserData {
			return // user value wins, silently
		}
	} else if !c.opts.OverwriteEmptyFields {
		return
	}
	if equalValues(cur, v) {
		return
	}
	c.data.Step(step)[field] = v
	c.res.FieldsUpdated++
	if c.opts.LogChanges {
		c.res.ChangesApplied = append(c.res.ChangesApplied, Change{
			Step: step, Field: field, OldValue: cur, NewValue: v,
		})
	}
}

// setNested writes one key of a nested record field (e.g. boundaries.north)
// with the same resolution rules as set.
func (c *mergeCtx) setNested(step, field, key string, v any) {
	if draft.IsEmpty(v) {
		return
	}
	nested := draft.GetMap(c.data.Step(step), field)
	if nested == nil {
		nested = map[string]any{}
		c.data.Step(step)[field] = nested
	}
	cur := nested[key]
	if !draft.IsEmpty(cur) {
		if c.opts.PreserveUserData {
			return
		}
	} else if !c.opts.OverwriteEmptyFields {
		return
	}
	if equalValues(cur, v) {
		return
	}
	nested[key] = v
	c.res.FieldsUpdated++
	if c.opts.LogChanges {
		c.res.ChangesApplied = append(c.res.ChangesApplied, Change{
			Step: step, Field: field + "." + key, OldValue: cur, NewValue: v,
		})
	}
}

// setRows replaces a row-array field with AI-reconstructed rows. An array
// the user already populated is protected wholesale under
// PreserveUserData; rows are never merged element-wise.
func (c *mergeCtx) setRows(step, field string, rows []map[string]any) {
	if len(rows) == 0 {
		return
	}
	cur := draft.Rows(c.data.Step(step)[field])
	if len(cur) > 0 && c.opts.PreserveUserData {
		return
	}
	if !c.opts.OverwriteEmptyFields && len(cur) == 0 {
		return
	}
	c.data.Step(step)[field] = rows
	for _, row := range rows {
		c.res.FieldsUpdated += populatedRowFields(row)
	}
	if c.opts.LogChanges {
		c.res.ChangesApplied = append(c.res.ChangesApplied, Change{
			Step: step, Field: field,
			OldValue: cur, NewValue: rows,
		})
	}
}

func populatedRowFields(row map[string]any) int {
	n := 0
	for k, v := range row {
		if k == "id" {
			continue // generated, not extracted
		}
		if !draft.IsEmpty(v) {
			n++
		}
	}
	return n
}

func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch at := a.(type) {
	case string:
		if bt, ok := b.(string); ok {
			return strings.TrimSpace(at) == strings.TrimSpace(bt)
		}
	case float64:
		if bt, ok := b.(float64); ok {
			return at == bt
		}
	case bool:
		if bt, ok := b.(bool); ok {
			return at == bt
		}
	}
	return false
}

// --- validators ---

func validNumber(v any) error {
	switch t := v.(type) {
	case float64, int, int64:
		return nil
	case string:
		if _, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(t), ",", ""), 64); err != nil {
			return fmt.Errorf("not a number: %q", t)
		}
		return nil
	default:
		return fmt.Errorf("not a number: %v", v)
	}
}

func numberRange(min, max float64, unit string) fieldValidator {
	return func(v any) error {
		f, ok := v.(float64)
		if !ok {
			return fmt.Errorf("not a number: %v", v)
		}
		if f < min || f > max {
			return fmt.Errorf("%v out of range [%v, %v] %s", f, min, max, unit)
		}
		return nil
	}
}

func validLatitude(v any) error  { return numberRange(-90, 90, "deg")(v) }
func validLongitude(v any) error { return numberRange(-180, 180, "deg")(v) }

func positiveNumber(v any) error {
	f, ok := v.(float64)
	if !ok {
		return fmt.Errorf("not a number: %v", v)
	}
	if f <= 0 {
		return fmt.Errorf("%v must be positive", f)
	}
	return nil
}
