package aimerge

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Classify inspects a raw analysis payload and returns its shape. The
// check is an explicit priority list: error-flagged, comprehensive,
// legacy, then empty. Invalid JSON classifies as empty.
func Classify(raw []byte) PayloadKind {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return PayloadEmpty
	}
	root := gjson.ParseBytes(raw)
	doc := root.Get("document_analysis")
	if !doc.Exists() {
		doc = root
	}
	if errField := doc.Get("error"); errField.Exists() && errField.String() != "" {
		return PayloadError
	}
	if comp := doc.Get("comprehensive_data"); comp.Exists() && comp.IsObject() {
		if e := comp.Get("error"); e.Exists() && e.String() != "" {
			return PayloadError
		}
		if len(comp.Map()) == 0 {
			return PayloadEmpty
		}
		return PayloadComprehensive
	}
	if ext := doc.Get("extracted_data"); ext.Exists() && ext.IsObject() && len(ext.Map()) > 0 {
		return PayloadLegacy
	}
	if gen := doc.Get("general_data"); gen.Exists() && gen.IsObject() && len(gen.Map()) > 0 {
		return PayloadLegacy
	}
	return PayloadEmpty
}

// documentAnalysis returns the analysis object, tolerating payloads that
// omit the document_analysis envelope.
func documentAnalysis(raw []byte) gjson.Result {
	root := gjson.ParseBytes(raw)
	if doc := root.Get("document_analysis"); doc.Exists() {
		return doc
	}
	return root
}

// first returns the first existing, non-empty value among candidate paths.
func first(obj gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if r := obj.Get(p); r.Exists() && strings.TrimSpace(r.String()) != "" {
			return r
		}
	}
	return gjson.Result{}
}

// text returns the first candidate path as a trimmed string.
func text(obj gjson.Result, paths ...string) string {
	return strings.TrimSpace(first(obj, paths...).String())
}
