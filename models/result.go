package models

import "encoding/json"

// ResultEntry is either a normalized Record or a Failure with a reason
type ResultEntry struct {
	record  *Record
	failure string
}

// RecordEntry wraps a record
func RecordEntry(r Record) ResultEntry {
	return ResultEntry{record: &r}
}

// FailureEntry wraps a failure reason
func FailureEntry(reason string) ResultEntry {
	return ResultEntry{failure: reason}
}

// IsFailure reports whether the entry is a Failure
func (e ResultEntry) IsFailure() bool {
	return e.record == nil
}

// Record returns the wrapped record; ok is false for failures
func (e ResultEntry) Record() (Record, bool) {
	if e.record == nil {
		return Record{}, false
	}
	return *e.record, true
}

// Reason returns the failure reason, empty for records
func (e ResultEntry) Reason() string {
	return e.failure
}

// MarshalJSON writes a record as its object and a failure as {"error": reason}
func (e ResultEntry) MarshalJSON() ([]byte, error) {
	if e.record != nil {
		return e.record.MarshalJSON()
	}
	return json.Marshal(map[string]string{"error": e.failure})
}

// OutcomeKind tags an Outcome
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeConnectionFailure
	OutcomeFatalFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeConnectionFailure:
		return "connection_failure"
	case OutcomeFatalFailure:
		return "fatal_failure"
	}
	return "unknown"
}

// Outcome is the result of one search session
type Outcome struct {
	Kind    OutcomeKind
	Entries []ResultEntry
	Message string
}

// Success builds a successful outcome, possibly with no entries
func Success(entries []ResultEntry) Outcome {
	return Outcome{Kind: OutcomeSuccess, Entries: entries}
}

// ConnectionFailure builds a retry-eligible outcome
func ConnectionFailure(msg string) Outcome {
	return Outcome{Kind: OutcomeConnectionFailure, Message: msg, Entries: []ResultEntry{FailureEntry(msg)}}
}

// FatalFailure builds a non-retryable outcome
func FatalFailure(msg string) Outcome {
	return Outcome{Kind: OutcomeFatalFailure, Message: msg, Entries: []ResultEntry{FailureEntry(msg)}}
}

// Records returns only the record entries
func (o Outcome) Records() []Record {
	var out []Record
	for _, e := range o.Entries {
		if r, ok := e.Record(); ok {
			out = append(out, r)
		}
	}
	return out
}

// FirstFailure returns the reason of the first entry when it is a failure
func (o Outcome) FirstFailure() (string, bool) {
	if len(o.Entries) == 0 || !o.Entries[0].IsFailure() {
		return "", false
	}
	return o.Entries[0].Reason(), true
}

// NoData returns a reason when the outcome carries no records. A success that holds
// at least one record is data even when other items failed.
func (o Outcome) NoData() (string, bool) {
	if o.Kind != OutcomeSuccess {
		return o.Message, true
	}
	if len(o.Records()) > 0 {
		return "", false
	}
	return o.FirstFailure()
}

// QueryResult is the entry sequence produced for one raw query of a batch
type QueryResult struct {
	Query   string
	Entries []ResultEntry
}

// HasData reports whether any entry is a record
func (q QueryResult) HasData() bool {
	return q.RecordCount() > 0
}

// RecordCount returns the number of record entries
func (q QueryResult) RecordCount() int {
	n := 0
	for _, e := range q.Entries {
		if !e.IsFailure() {
			n++
		}
	}
	return n
}
