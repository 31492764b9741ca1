package model

import (
	"regexp"
	"strings"
	"time"
)

// RowStatus tracks a row through the pipeline state machine.
type RowStatus string

const (
	StatusPending     RowStatus = "pending"
	StatusDetected    RowStatus = "detected"
	StatusCached      RowStatus = "cached"
	StatusResearching RowStatus = "researching"
	StatusClassified  RowStatus = "classified"
	StatusAccepted    RowStatus = "accepted"
	StatusRejected    RowStatus = "rejected"
	StatusFailed      RowStatus = "failed"
)

// okpd2CodePattern matches well-formed OKPD2 codes: XX.X, XX.XX,
// XX.XX.XX or XX.XX.XX.XXX, dot-segmented.
var okpd2CodePattern = regexp.MustCompile(`^\d{2}(\.\d{1,3})*$`)

// ClassificationResult is the OKPD2 code assigned to an enriched record.
// MinimumSpecificity is set when the code equals the category prefix
// because no deeper consistent candidate was found; FinerExists reports
// whether the registry offered any deeper code under the prefix at all.
// The pair is a validator input, not itself a failure.
type ClassificationResult struct {
	Code               string  `json:"code"`
	Name               string  `json:"name,omitempty"`
	Level              int     `json:"level"`
	Confidence         float64 `json:"confidence"`
	MinimumSpecificity bool    `json:"minimum_specificity"`
	FinerExists        bool    `json:"finer_exists"`
}

// CodeLevel returns the specificity of a dot-segmented OKPD2 code: the
// number of dot-separated segments. Returns 0 for malformed codes.
func CodeLevel(code string) int {
	if !okpd2CodePattern.MatchString(code) {
		return 0
	}
	return strings.Count(code, ".") + 1
}

// IsValidOKPD2 reports whether code has a well-formed OKPD2 shape.
func IsValidOKPD2(code string) bool {
	return okpd2CodePattern.MatchString(code)
}

// ValidationOutcome is the terminal business outcome for a row: either
// accepted with the normalized record, or rejected with a non-empty
// compliance reason in Russian.
type ValidationOutcome struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// Accept returns an accepting outcome.
func Accept() ValidationOutcome {
	return ValidationOutcome{Accepted: true}
}

// Reject returns a rejecting outcome with the given reason.
func Reject(reason string) ValidationOutcome {
	return ValidationOutcome{Accepted: false, Reason: reason}
}

// RowOutcome is the per-row result handed to the output writer, tagged
// with the original row index so batch output preserves input order.
// Raw is always set so failed and abandoned rows still carry their
// source cells to the output sheet.
type RowOutcome struct {
	Index          int                   `json:"index"`
	Raw            RawRecord             `json:"raw"`
	Status         RowStatus             `json:"status"`
	Record         *EnrichedRecord       `json:"record,omitempty"`
	Classification *ClassificationResult `json:"classification,omitempty"`
	Outcome        *ValidationOutcome    `json:"outcome,omitempty"`
	CacheHit       bool                  `json:"cache_hit"`
	Error          string                `json:"error,omitempty"`
	Elapsed        time.Duration         `json:"elapsed"`
}
