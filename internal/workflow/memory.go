// Package workflow runs the four-phase pipeline, threading results
// between phases through an append-only PhaseMemory.
package workflow

// #region imports
import (
	"fmt"
	"sort"
	"sync"
)

// #endregion

// #region phase-memory

// Result keys written by the orchestrator. A key is absent when its
// phase was skipped or never reached.
const (
	KeyQueryEntity     = "query_entity"
	KeyBaselineRanking = "baseline_ranking"
	KeyEnhancedRanking = "enhanced_ranking"
	KeyEligibility     = "eligibility"
)

// entry is one appended value for a key.
type entry struct {
	generation int
	value      any
}

// PhaseMemory is an append-only record of phase outputs. Writes never
// replace earlier values: a re-run of a phase appends a new generation,
// and Get returns the latest. The full history stays inspectable.
type PhaseMemory struct {
	mu      sync.RWMutex
	entries map[string][]entry
}

// NewPhaseMemory returns an empty memory.
func NewPhaseMemory() *PhaseMemory {
	return &PhaseMemory{entries: make(map[string][]entry)}
}

// Append records a new generation for key. It never overwrites.
func (m *PhaseMemory) Append(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gen := len(m.entries[key])
	m.entries[key] = append(m.entries[key], entry{generation: gen, value: value})
}

// Get returns the latest generation for key.
func (m *PhaseMemory) Get(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	es := m.entries[key]
	if len(es) == 0 {
		return nil, false
	}
	return es[len(es)-1].value, true
}

// Has reports whether any generation exists for key.
func (m *PhaseMemory) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Generations returns how many values were appended for key.
func (m *PhaseMemory) Generations(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries[key])
}

// History returns every generation for key, oldest first.
func (m *PhaseMemory) History(key string) []any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	es := m.entries[key]
	out := make([]any, len(es))
	for i, e := range es {
		out[i] = e.value
	}
	return out
}

// Keys returns the present keys, sorted.
func (m *PhaseMemory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String summarizes the memory for logs.
func (m *PhaseMemory) String() string {
	return fmt.Sprintf("PhaseMemory%v", m.Keys())
}

// #endregion phase-memory
