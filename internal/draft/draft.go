// Package draft holds upload review sessions between the extraction call
// and the final confirmation.
package draft

import (
	"time"

	"github.com/barcontrol/barcontrol/internal/extraction"
	"github.com/barcontrol/barcontrol/internal/invoice"
	"github.com/barcontrol/barcontrol/internal/matching"
)

// State is the review lifecycle position of a draft.
type State string

const (
	// StateUploaded: the file is stored and extraction ran, nobody has
	// seen the result yet.
	StateUploaded State = "uploaded"
	// StatePreviewed: the review screen was rendered at least once and
	// may carry user corrections.
	StatePreviewed State = "previewed"
	// StateConfirmed: the invoice was persisted from this draft.
	StateConfirmed State = "confirmed"
	// StateRejected: the user discarded the draft.
	StateRejected State = "rejected"
)

// Assignment links one mapped line to a catalog product, either from the
// automatic matcher or picked by hand on the review screen.
type Assignment struct {
	ProductID   int64                `json:"product_id"`
	ProductName string               `json:"product_name"`
	Method      matching.MatchMethod `json:"method"`
	Score       float64              `json:"score,omitempty"`
	Manual      bool                 `json:"manual,omitempty"`
}

// Draft is one in-flight upload session. Everything the confirm step
// needs lives here, so the flow survives restarts until the draft
// expires.
type Draft struct {
	Token       string                    `json:"token"`
	State       State                     `json:"state"`
	FileRef     string                    `json:"file_ref"`
	FileName    string                    `json:"file_name"`
	ContentType string                    `json:"content_type"`
	Mapped      *extraction.MappedInvoice `json:"mapped"`
	// Assignments is keyed by the index into Mapped.Items.
	Assignments map[int]Assignment  `json:"assignments,omitempty"`
	Resolution  *invoice.Resolution `json:"resolution,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	ExpiresAt   time.Time           `json:"expires_at"`
}

// Terminal reports whether the draft reached a final state.
func (s State) Terminal() bool {
	return s == StateConfirmed || s == StateRejected
}

// allowed transitions; same-state saves are always permitted for edits.
var transitions = map[State][]State{
	StateUploaded:  {StatePreviewed, StateRejected},
	StatePreviewed: {StateConfirmed, StateRejected},
}

// CanTransition reports whether a draft in state from may move to state to.
func CanTransition(from, to State) bool {
	if from == to {
		return !from.Terminal()
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
