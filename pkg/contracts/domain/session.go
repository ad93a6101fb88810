package domain

import "time"

// ProcessorState is the state of the per-directory processing state machine
type ProcessorState string

const (
	StateNoReference  ProcessorState = "no_reference"
	StateReferenceSet ProcessorState = "reference_set"
)

// OutcomeKind is what happened to one dropped file
type OutcomeKind string

const (
	OutcomeReference OutcomeKind = "reference" // File became the reference curve
	OutcomeProcessed OutcomeKind = "processed" // Result row appended
	OutcomeSkipped   OutcomeKind = "skipped"   // Ignored (reference, output file, already processed)
	OutcomeFailed    OutcomeKind = "failed"    // Parse or metric failure, nothing written
)

// FileOutcome reports the handling of a single dropped file
type FileOutcome struct {
	Path    string      `json:"path"`
	Kind    OutcomeKind `json:"kind"`
	Message string      `json:"message,omitempty"`
	Row     *ResultRow  `json:"row,omitempty"`
}

// SessionInfo summarizes the state of one working directory
type SessionInfo struct {
	Directory string           `json:"directory"`
	State     ProcessorState   `json:"state"`
	Reference *ReferenceRecord `json:"reference,omitempty"`
	RowCount  int              `json:"row_count"`
}

// DropReport is returned for each drop request
type DropReport struct {
	ID         string        `json:"id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Outcomes   []FileOutcome `json:"outcomes"`
	Sessions   []SessionInfo `json:"sessions"`
}

// Count returns how many outcomes have the given kind
func (r *DropReport) Count(kind OutcomeKind) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Kind == kind {
			n++
		}
	}
	return n
}
