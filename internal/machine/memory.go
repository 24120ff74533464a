package machine

// #region imports
import (
	"fmt"
	"sort"
)

// #endregion

// #region memory

// Memory is the shared context threaded through a machine run. Keys are
// write-once: a state may add keys but never shrink or replace what a
// prior state wrote. Keys explicitly marked overwritable (retry
// counters and the like) are the single exception.
type Memory struct {
	values       map[string]any
	overwritable map[string]bool
}

// NewMemory returns an empty memory.
func NewMemory() Memory {
	return Memory{
		values:       make(map[string]any),
		overwritable: make(map[string]bool),
	}
}

// #endregion memory

// #region accessors

// Get returns the value for key and whether it is present.
func (m Memory) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key has been written.
func (m Memory) Has(key string) bool {
	_, ok := m.values[key]
	return ok
}

// Keys returns all written keys, sorted.
func (m Memory) Keys() []string {
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// #endregion accessors

// #region mutation

// Set writes key. Writing an existing key fails unless the key was
// marked overwritable.
func (m Memory) Set(key string, value any) error {
	if _, exists := m.values[key]; exists && !m.overwritable[key] {
		return fmt.Errorf("memory key %q is write-once", key)
	}
	m.values[key] = value
	return nil
}

// AllowOverwrite marks key as updatable. Must be called before the
// second write of the key.
func (m Memory) AllowOverwrite(key string) {
	m.overwritable[key] = true
}

// #endregion mutation
