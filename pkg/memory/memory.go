// Package memory defines the core record types for the engram system.
//
// A Memory is a distilled, durable fact about a user, extracted from
// conversation and stored with a semantic embedding. Memories begin life as
// a Candidate (extracted, not yet persisted), become stored on insert, and
// end in exactly one terminal outcome: merged into an existing memory,
// pruned by the capacity policy, or deleted on explicit user request.
package memory

import (
	"time"
)

// Intent classifies what an extracted unit of text asks the system to do.
type Intent string

const (
	// IntentStore marks a unit worth persisting as a memory.
	IntentStore Intent = "store"

	// IntentDelete marks a request to forget a previously stored memory.
	// The candidate's Reference carries the phrase used to locate the target.
	IntentDelete Intent = "delete"

	// IntentIgnore marks conversational text with nothing worth keeping.
	// This is the common case, not an error.
	IntentIgnore Intent = "ignore"
)

// Outcome describes how a mutating operation resolved a memory.
type Outcome string

const (
	// OutcomeInserted means the candidate was persisted as a new record.
	OutcomeInserted Outcome = "inserted"

	// OutcomeMerged means the candidate was absorbed into an existing
	// semantically-equivalent record and discarded.
	OutcomeMerged Outcome = "merged"

	// OutcomePruned means the record was evicted by the capacity policy.
	OutcomePruned Outcome = "pruned"

	// OutcomeDeleted means the record was removed on explicit user request.
	OutcomeDeleted Outcome = "deleted"
)

// Memory is the unit of recall.
type Memory struct {
	// ID is an opaque unique identifier, assigned at creation, immutable.
	ID string `json:"id"`

	// UserID is the owning identity. All operations are scoped to one user.
	UserID string `json:"user_id"`

	// Text is the normalized natural-language statement.
	Text string `json:"text"`

	// Embedding is the semantic vector for Text. Fixed dimension across all
	// memories in a deployment; computed once at creation.
	Embedding []float32 `json:"embedding,omitempty"`

	// Importance reflects extraction confidence and salience, in [0, 1].
	Importance float64 `json:"importance"`

	// Category is an optional free-form tag ("preference", "fact", "identity").
	Category string `json:"category,omitempty"`

	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`

	// AccessCount increments each time the memory is returned by a
	// retrieval. It only ever moves forward.
	AccessCount int `json:"access_count"`
}

// Candidate is an extracted, not-yet-persisted memory.
type Candidate struct {
	UserID     string
	Text       string
	Importance float64
	Intent     Intent

	// Category is the analyzer's coarse classification of the unit.
	Category string

	// Reference holds the target phrase for delete intents
	// (e.g. the "X" in "forget that X").
	Reference string

	// Embedding is populated by the caller before insert; extraction
	// itself never touches the network.
	Embedding []float32
}

// ClampImportance bounds an importance score to [0, 1].
func ClampImportance(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// AgeDays returns the age of a timestamp in fractional days relative to now.
func AgeDays(t, now time.Time) float64 {
	if !now.After(t) {
		return 0
	}
	return now.Sub(t).Hours() / 24
}
