package ipo

import "sort"

// Reason classifies why a record was dropped or left out of a set.
type Reason string

const (
	ReasonMissingCode       Reason = "missing_code"
	ReasonMissingName       Reason = "missing_name"
	ReasonMissingDate       Reason = "missing_date"
	ReasonDuplicateCode     Reason = "duplicate_code"
	ReasonNoWindow          Reason = "no_window"
	ReasonUnparseableWindow Reason = "unparseable_window"
	ReasonEnrichmentFailed  Reason = "enrichment_failed"
)

// Stage names the step that produced a diagnostic.
type Stage string

const (
	StageValidate Stage = "validate"
	StageClassify Stage = "classify"
	StageEnrich   Stage = "enrich"
)

// Diagnostic is one non-fatal per-record event.
type Diagnostic struct {
	Stage   Stage  `json:"stage"`
	Reason  Reason `json:"reason"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Diagnostics collects per-record events of a run so callers can inspect
// drop reasons without parsing log output.
type Diagnostics struct {
	Fetched int          `json:"fetched"`
	Kept    int          `json:"kept"`
	Dropped int          `json:"dropped"`
	Entries []Diagnostic `json:"entries,omitempty"`
}

// Add appends an entry.
func (d *Diagnostics) Add(stage Stage, reason Reason, code, message string) {
	d.Entries = append(d.Entries, Diagnostic{Stage: stage, Reason: reason, Code: code, Message: message})
}

// Merge appends the entries and counters of other.
func (d *Diagnostics) Merge(other Diagnostics) {
	d.Fetched += other.Fetched
	d.Kept += other.Kept
	d.Dropped += other.Dropped
	d.Entries = append(d.Entries, other.Entries...)
}

// Count returns how many entries carry reason.
func (d Diagnostics) Count(reason Reason) int {
	n := 0
	for _, e := range d.Entries {
		if e.Reason == reason {
			n++
		}
	}
	return n
}

// ByReason tallies entries per reason.
func (d Diagnostics) ByReason() map[Reason]int {
	out := make(map[Reason]int)
	for _, e := range d.Entries {
		out[e.Reason]++
	}
	return out
}

// Codes lists the record codes that carry reason, sorted.
func (d Diagnostics) Codes(reason Reason) []string {
	var codes []string
	for _, e := range d.Entries {
		if e.Reason == reason {
			codes = append(codes, e.Code)
		}
	}
	sort.Strings(codes)
	return codes
}
