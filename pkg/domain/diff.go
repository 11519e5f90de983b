package domain

import (
	"reflect"
)

// SnapshotDiff represents the changes between two snapshots of a session.
// It is serialized to JSON for partial updates on the client.
type SnapshotDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	CurrentStepID *string `json:"current_step_id,omitempty"`
	Outcome       *string `json:"outcome,omitempty"`
	Progress      *int    `json:"progress,omitempty"`

	// Answers contains only changed, added or deleted keys.
	// For deletions, the key is present with a nil value.
	Answers map[string]any `json:"answers,omitempty"`

	History *HistoryDelta `json:"history,omitempty"`
}

// HistoryDelta represents changes to the history stack.
// Clients first truncate to TruncatedTo (when set) and then append Appended.
type HistoryDelta struct {
	TruncatedTo *int     `json:"truncated_to,omitempty"`
	Appended    []string `json:"appended,omitempty"`
}

// Diff calculates the difference between oldSnap and newSnap.
// If oldSnap is nil, it returns a diff representing the entire newSnap (initial load).
// It returns nil when nothing changed.
func Diff(oldSnap, newSnap *Snapshot) *SnapshotDiff {
	if newSnap == nil {
		return nil
	}

	diff := &SnapshotDiff{
		SessionID: newSnap.SessionID,
	}

	if oldSnap == nil || oldSnap.CurrentStepID != newSnap.CurrentStepID {
		diff.CurrentStepID = &newSnap.CurrentStepID
	}
	if (oldSnap == nil && newSnap.Outcome != "") || (oldSnap != nil && oldSnap.Outcome != newSnap.Outcome) {
		diff.Outcome = &newSnap.Outcome
	}
	if oldSnap == nil || oldSnap.Progress != newSnap.Progress {
		diff.Progress = &newSnap.Progress
	}

	diff.Answers = diffAnswers(oldSnap, newSnap)
	diff.History = diffHistory(oldSnap, newSnap)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffAnswers(old, new *Snapshot) map[string]any {
	delta := make(map[string]any)

	if old == nil {
		for k, v := range new.Answers {
			delta[k] = v
		}
		if len(delta) == 0 {
			return nil
		}
		return delta
	}

	for k, newVal := range new.Answers {
		oldVal, exists := old.Answers[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}

	for k := range old.Answers {
		if _, exists := new.Answers[k]; !exists {
			delta[k] = nil
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// diffHistory finds the longest common prefix and reports the rest as
// a truncation followed by appended entries.
func diffHistory(old, new *Snapshot) *HistoryDelta {
	if old == nil {
		if len(new.History) == 0 {
			return nil
		}
		return &HistoryDelta{Appended: new.History}
	}

	common := 0
	for common < len(old.History) && common < len(new.History) && old.History[common] == new.History[common] {
		common++
	}
	if common == len(old.History) && common == len(new.History) {
		return nil
	}

	delta := &HistoryDelta{}
	if common < len(old.History) {
		delta.TruncatedTo = &common
	}
	if common < len(new.History) {
		delta.Appended = new.History[common:]
	}
	return delta
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SnapshotDiff) IsEmpty() bool {
	return d.CurrentStepID == nil &&
		d.Outcome == nil &&
		d.Progress == nil &&
		len(d.Answers) == 0 &&
		d.History == nil
}
