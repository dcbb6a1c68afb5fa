package models

import "fmt"

// Status is the generation lifecycle state of a WorkItem.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRetrying   Status = "retrying"
)

// allowedTransitions is the closed transition table. Completed and
// Failed are terminal; Pending and Retrying are the only submittable
// states and may fail directly when the retry ceiling is already hit.
var allowedTransitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusFailed},
	StatusRetrying:   {StatusInProgress, StatusFailed},
	StatusInProgress: {StatusCompleted, StatusFailed, StatusRetrying},
	StatusCompleted:  {},
	StatusFailed:     {},
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// Terminal reports whether no further transitions are possible from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether moving from s to target is legal.
func (s Status) CanTransition(target Status) bool {
	for _, next := range allowedTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Submittable reports whether an item in this state is eligible for a
// submission attempt.
func (s Status) Submittable() bool {
	return s == StatusPending || s == StatusRetrying
}

// TransitionTo moves the item to target, rejecting transitions not in
// the table so illegal states surface as errors instead of silent
// status writes.
func (i *WorkItem) TransitionTo(target Status) error {
	if !target.Valid() {
		return fmt.Errorf("unknown status %q", target)
	}
	if !i.Status.CanTransition(target) {
		return fmt.Errorf("illegal transition %s -> %s for work item %d", i.Status, target, i.ID)
	}
	i.Status = target
	return nil
}
