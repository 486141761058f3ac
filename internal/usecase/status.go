package usecase

import (
	"sort"
	"sync"
	"time"
)

// SourceStatus is the last known fetch state of a source.
type SourceStatus struct {
	ID            string     `json:"id"`
	Kind          string     `json:"kind"`
	LastSuccessAt *time.Time `json:"lastSuccessAt,omitempty"`
	LastError     string     `json:"lastError,omitempty"`
	LastCount     int        `json:"lastCount"`
}

// StatusBoard is the process-wide snapshot of source health, updated from run results.
type StatusBoard struct {
	mu      sync.RWMutex
	sources map[string]SourceStatus
	lastRun *RunResult
}

// NewStatusBoard creates an empty board.
func NewStatusBoard() *StatusBoard {
	return &StatusBoard{sources: map[string]SourceStatus{}}
}

// Apply merges a run's per-source outcomes. A failure keeps the previous success data.
func (b *StatusBoard) Apply(result RunResult) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, src := range result.Sources {
		st := b.sources[src.ID]
		st.ID = src.ID
		st.Kind = src.Kind
		if src.Err != nil {
			st.LastError = src.Err.Error()
		} else {
			at := src.At
			st.LastSuccessAt = &at
			st.LastError = ""
			st.LastCount = src.Count
		}
		b.sources[src.ID] = st
	}
	res := result
	b.lastRun = &res
}

// Snapshot returns a copy of all statuses ordered by source ID.
func (b *StatusBoard) Snapshot() []SourceStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]SourceStatus, 0, len(b.sources))
	for _, st := range b.sources {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LastRun returns the most recent run result, if any.
func (b *StatusBoard) LastRun() (RunResult, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.lastRun == nil {
		return RunResult{}, false
	}
	return *b.lastRun, true
}
