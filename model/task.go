package model

import "time"

// Stage is the kanban column a task currently occupies.
type Stage string

const (
	StageInbox      Stage = "inbox"
	StageTodo       Stage = "todo"
	StageInProgress Stage = "in_progress"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
	// StageRejected is terminal: the task failed more often than the retry
	// policy allows.
	StageRejected Stage = "rejected"
)

// transitions lists forward moves. failed→todo is the explicit requeue and
// the only backward edge.
var transitions = map[Stage][]Stage{
	StageInbox:      {StageTodo},
	StageTodo:       {StageInProgress, StageFailed},
	StageInProgress: {StageDone, StageFailed},
	StageFailed:     {StageTodo, StageRejected},
}

// CanTransition reports whether the move from s to next is legal.
func (s Stage) CanTransition(next Stage) bool {
	for _, candidate := range transitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s Stage) IsTerminal() bool {
	return s == StageDone || s == StageRejected
}

// FailureKind classifies why a task left in_progress unsuccessfully.
type FailureKind string

const (
	FailureInsufficientSources FailureKind = "insufficient_sources"
	FailureSynthesis           FailureKind = "synthesis_failure"
	FailureAborted             FailureKind = "aborted"
	FailureStaleLock           FailureKind = "stale_lock_recovered"
	FailureInternal            FailureKind = "internal"
)

// Phase is the crash-recovery checkpoint of a running task. It is never
// surfaced to requesters.
type Phase string

const (
	PhaseInvestigating Phase = "investigating"
	PhaseAggregating   Phase = "aggregating"
	PhaseSynthesizing  Phase = "synthesizing"
	PhaseSaving        Phase = "saving"
)

// Task is one unit of orchestrated investigation tracked through kanban stages.
type Task struct {
	ID         string      `json:"id"`
	Brief      Brief       `json:"brief"`
	Stage      Stage       `json:"stage"`
	Seq        int64       `json:"seq"`
	RetryCount int         `json:"retryCount"`
	Phase      Phase       `json:"phase,omitempty"`
	Failure    FailureKind `json:"failure,omitempty"`
	Error      string      `json:"error,omitempty"`
	DocumentID string      `json:"documentId,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
	StartedAt  *time.Time  `json:"startedAt,omitempty"`
	FinishedAt *time.Time  `json:"finishedAt,omitempty"`
}

// Clone returns a deep copy so callers never share mutable state with a store.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	ret := *t
	ret.Brief = t.Brief.Clone()
	if t.StartedAt != nil {
		started := *t.StartedAt
		ret.StartedAt = &started
	}
	if t.FinishedAt != nil {
		finished := *t.FinishedAt
		ret.FinishedAt = &finished
	}
	return &ret
}

// Before orders tasks FIFO: creation time first, insertion sequence as the
// tie-break.
func (t *Task) Before(other *Task) bool {
	if !t.CreatedAt.Equal(other.CreatedAt) {
		return t.CreatedAt.Before(other.CreatedAt)
	}
	return t.Seq < other.Seq
}
