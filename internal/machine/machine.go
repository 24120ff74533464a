package machine

// #region imports
import (
	"context"
	"errors"
	"fmt"
	"log"
)

// #endregion

// #region transition

// Transition names the state to run next. A state returns Terminal to
// finish the machine, or any declared state name — including its own,
// for retry-to-self, or a later one, to skip ahead.
type Transition string

// Terminal ends the machine run.
const Terminal Transition = ""

// #endregion transition

// #region state

// StateFunc executes one state against the shared memory and decides
// where to go next.
type StateFunc func(ctx context.Context, mem Memory) (Transition, error)

// State is a named step in a machine.
type State struct {
	Name string
	Run  StateFunc
}

// #endregion state

// #region errors

// ErrCycleDetected is returned when a run exceeds its step bound,
// which means the declared transitions loop.
var ErrCycleDetected = errors.New("max step bound exceeded")

// recoverableError marks a failure eligible for state-level retry.
type recoverableError struct {
	err error
}

func (e *recoverableError) Error() string { return e.err.Error() }
func (e *recoverableError) Unwrap() error { return e.err }

// Recoverable wraps a transient failure (timeout, flaky transport) so
// the machine retries the state instead of halting.
func Recoverable(err error) error {
	if err == nil {
		return nil
	}
	return &recoverableError{err: err}
}

// IsRecoverable reports whether err was wrapped by Recoverable.
func IsRecoverable(err error) bool {
	var re *recoverableError
	return errors.As(err, &re)
}

// FatalError halts a machine. It carries the failing state and the last
// underlying error, so a caller holding the partial memory can still
// tell what was produced before the halt.
type FatalError struct {
	Machine  string
	State    string
	Attempts int
	Err      error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("machine %s: state %s failed after %d attempt(s): %v",
		e.Machine, e.State, e.Attempts, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// #endregion errors

// #region machine

// Machine executes a declared set of states, starting at the first one,
// following each state's transition until Terminal.
type Machine struct {
	name       string
	states     map[string]State
	entry      string
	maxSteps   int
	maxRetries int
}

// Option tunes machine bounds.
type Option func(*Machine)

// WithMaxSteps caps the total state executions in one run.
func WithMaxSteps(n int) Option {
	return func(m *Machine) { m.maxSteps = n }
}

// WithMaxRetries caps recoverable retries per state before the failure
// escalates to fatal.
func WithMaxRetries(n int) Option {
	return func(m *Machine) { m.maxRetries = n }
}

// New builds a machine from an ordered state list. The first state is
// the entry point.
func New(name string, states []State, opts ...Option) (*Machine, error) {
	if len(states) == 0 {
		return nil, fmt.Errorf("machine %s: no states declared", name)
	}
	m := &Machine{
		name:       name,
		states:     make(map[string]State, len(states)),
		entry:      states[0].Name,
		maxSteps:   4 * len(states),
		maxRetries: 2,
	}
	for _, s := range states {
		if s.Name == "" || s.Run == nil {
			return nil, fmt.Errorf("machine %s: state with empty name or nil func", name)
		}
		if _, dup := m.states[s.Name]; dup {
			return nil, fmt.Errorf("machine %s: duplicate state %s", name, s.Name)
		}
		m.states[s.Name] = s
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Name returns the machine name.
func (m *Machine) Name() string { return m.name }

// #endregion machine

// #region run

// Run executes states from the entry point until Terminal. The returned
// memory is always valid: on failure it holds everything accumulated up
// to the halt point, and the error is a *FatalError (or ctx.Err() when
// cancelled between states).
func (m *Machine) Run(ctx context.Context, mem Memory) (Memory, error) {
	current := m.entry
	steps := 0

	for {
		if err := ctx.Err(); err != nil {
			return mem, err
		}
		if steps >= m.maxSteps {
			return mem, &FatalError{
				Machine:  m.name,
				State:    current,
				Attempts: 1,
				Err:      ErrCycleDetected,
			}
		}

		state := m.states[current]
		next, err := m.runWithRetry(ctx, state, mem)
		if err != nil {
			return mem, err
		}
		steps++

		if next == Terminal {
			return mem, nil
		}
		if _, known := m.states[string(next)]; !known {
			return mem, &FatalError{
				Machine:  m.name,
				State:    current,
				Attempts: 1,
				Err:      fmt.Errorf("transition to undeclared state %q", next),
			}
		}
		current = string(next)
	}
}

// runWithRetry executes one state, retrying recoverable failures up to
// the configured bound, then escalating with the last error attached.
func (m *Machine) runWithRetry(ctx context.Context, state State, mem Memory) (Transition, error) {
	retryKey := "retries:" + state.Name
	mem.AllowOverwrite(retryKey)

	var lastErr error
	for attempt := 1; attempt <= m.maxRetries+1; attempt++ {
		mem.Set(retryKey, attempt-1)

		next, err := state.Run(ctx, mem)
		if err == nil {
			return next, nil
		}
		if !IsRecoverable(err) {
			return Terminal, &FatalError{
				Machine:  m.name,
				State:    state.Name,
				Attempts: attempt,
				Err:      err,
			}
		}
		lastErr = err
		log.Printf("[MACHINE] %s: state %s attempt %d failed (recoverable): %v",
			m.name, state.Name, attempt, err)
	}

	return Terminal, &FatalError{
		Machine:  m.name,
		State:    state.Name,
		Attempts: m.maxRetries + 1,
		Err:      lastErr,
	}
}

// #endregion run
