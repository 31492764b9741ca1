package model

import "strings"

// Canonical column keys produced by the spreadsheet parser. Russian and
// English source headers are both mapped onto these keys.
const (
	ColCategoryName   = "category_name"
	ColInternalCode   = "internal_code"
	ColOriginalName   = "original_name"
	ColOriginalUnit   = "original_unit"
	ColNormalizedUnit = "normalized_unit"
	ColOKPD2Code      = "okpd2_code"
	ColComment        = "comment"
)

// RawRecord is a single input row exactly as read from the source sheet:
// an ordered column -> value mapping plus the original row position.
// It is never mutated after parsing.
type RawRecord struct {
	Index   int               `json:"index"`
	Columns []string          `json:"columns"`
	Values  map[string]string `json:"values"`
}

// Get returns the trimmed cell value for a canonical column key.
func (r RawRecord) Get(col string) string {
	return strings.TrimSpace(r.Values[col])
}

// Description returns the free-text product description for this row.
func (r RawRecord) Description() string {
	return r.Get(ColOriginalName)
}

// Unit returns the source unit of measurement for this row.
func (r RawRecord) Unit() string {
	return r.Get(ColOriginalUnit)
}

// HasMandatoryColumns reports whether the row carries the columns the
// pipeline cannot proceed without.
func (r RawRecord) HasMandatoryColumns() bool {
	return r.Description() != ""
}

// Provenance values for FieldValue.Source.
const (
	SourceName = "name"
	SourceWeb  = "web"
)

// FieldValue is a resolved schema field with its confidence and provenance.
type FieldValue struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source,omitempty"`
}

// EnrichedRecord is a RawRecord plus everything the pipeline has resolved
// for it: the detected category, the schema field values from research,
// and the normalized unit. One EnrichedRecord is owned by exactly one
// worker for the lifetime of its row.
type EnrichedRecord struct {
	Raw                RawRecord             `json:"raw"`
	Category           *Category             `json:"category"`
	CategoryConfidence float64               `json:"category_confidence"`
	Fields             map[string]FieldValue `json:"fields"`
	NormalizedUnit     string                `json:"normalized_unit"`
}

// NewEnrichedRecord creates an EnrichedRecord for a raw row and its
// detected category.
func NewEnrichedRecord(raw RawRecord, cat *Category, confidence float64) *EnrichedRecord {
	return &EnrichedRecord{
		Raw:                raw,
		Category:           cat,
		CategoryConfidence: confidence,
		Fields:             make(map[string]FieldValue),
	}
}

// Clone returns an independent copy of the record. Cached records are
// shared across rows with the same fingerprint, so a row must clone
// before reattaching its own Raw.
func (e *EnrichedRecord) Clone() *EnrichedRecord {
	cp := *e
	cp.Fields = make(map[string]FieldValue, len(e.Fields))
	for k, v := range e.Fields {
		cp.Fields[k] = v
	}
	return &cp
}

// Resolved returns the field value for a schema field, if present.
func (e *EnrichedRecord) Resolved(field string) (FieldValue, bool) {
	fv, ok := e.Fields[field]
	return fv, ok
}

// SetField stores a resolved field value, keeping the higher-confidence
// value when the field was already resolved.
func (e *EnrichedRecord) SetField(field string, fv FieldValue) {
	if prev, ok := e.Fields[field]; ok && prev.Confidence >= fv.Confidence {
		return
	}
	e.Fields[field] = fv
}

// MissingFields returns the category schema fields that are absent or
// below the given confidence, in schema order.
func (e *EnrichedRecord) MissingFields(minConfidence float64) []string {
	if e.Category == nil {
		return nil
	}
	var missing []string
	for _, f := range e.Category.Schema {
		fv, ok := e.Fields[f]
		if !ok || fv.Value == "" || fv.Confidence < minConfidence {
			missing = append(missing, f)
		}
	}
	return missing
}
