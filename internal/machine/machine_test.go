package machine

import (
	"context"
	"errors"
	"testing"
)

func TestMemory_WriteOnce(t *testing.T) {
	mem := NewMemory()
	if err := mem.Set("profile", "v1"); err != nil {
		t.Fatalf("first Set: %v", err)
	}
	if err := mem.Set("profile", "v2"); err == nil {
		t.Fatal("second Set of frozen key must fail")
	}
	v, _ := mem.Get("profile")
	if v != "v1" {
		t.Errorf("frozen key changed: %v", v)
	}
}

func TestMemory_OverwritableKey(t *testing.T) {
	mem := NewMemory()
	mem.AllowOverwrite("counter")
	mem.Set("counter", 1)
	if err := mem.Set("counter", 2); err != nil {
		t.Fatalf("overwritable key Set: %v", err)
	}
	v, _ := mem.Get("counter")
	if v != 2 {
		t.Errorf("counter = %v, want 2", v)
	}
}

func TestMachine_RunsToTerminal(t *testing.T) {
	var order []string
	step := func(name string, next Transition) State {
		return State{Name: name, Run: func(ctx context.Context, mem Memory) (Transition, error) {
			order = append(order, name)
			mem.Set(name, true)
			return next, nil
		}}
	}

	m, err := New("test", []State{
		step("a", "b"),
		step("b", "c"),
		step("c", Terminal),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	mem, err := m.Run(context.Background(), NewMemory())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(order) != 3 || order[0] != "a" || order[2] != "c" {
		t.Errorf("execution order = %v", order)
	}
	for _, k := range []string{"a", "b", "c"} {
		if !mem.Has(k) {
			t.Errorf("memory missing key %s", k)
		}
	}
}

func TestMachine_BranchSkipsAhead(t *testing.T) {
	ran := map[string]bool{}
	mk := func(name string, next Transition) State {
		return State{Name: name, Run: func(ctx context.Context, mem Memory) (Transition, error) {
			ran[name] = true
			return next, nil
		}}
	}

	// a branches straight to c, skipping b.
	m, _ := New("branch", []State{mk("a", "c"), mk("b", Terminal), mk("c", Terminal)})
	if _, err := m.Run(context.Background(), NewMemory()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ran["b"] {
		t.Error("skipped state b was executed")
	}
	if !ran["c"] {
		t.Error("branch target c did not run")
	}
}

func TestMachine_RecoverableRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	flaky := State{Name: "flaky", Run: func(ctx context.Context, mem Memory) (Transition, error) {
		attempts++
		if attempts < 3 {
			return Terminal, Recoverable(errors.New("transient"))
		}
		return Terminal, nil
	}}

	m, _ := New("retry", []State{flaky}, WithMaxRetries(2))
	if _, err := m.Run(context.Background(), NewMemory()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestMachine_RetryBoundSurfacesLastError(t *testing.T) {
	underlying := errors.New("upstream timeout")
	bad := State{Name: "bad", Run: func(ctx context.Context, mem Memory) (Transition, error) {
		return Terminal, Recoverable(underlying)
	}}

	m, _ := New("retry-bound", []State{bad}, WithMaxRetries(2))
	_, err := m.Run(context.Background(), NewMemory())

	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalError, got %v", err)
	}
	if fatal.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", fatal.Attempts)
	}
	if !errors.Is(err, underlying) {
		t.Error("fatal error must carry the last underlying error")
	}
}

func TestMachine_FatalHaltsImmediately(t *testing.T) {
	calls := 0
	bad := State{Name: "bad", Run: func(ctx context.Context, mem Memory) (Transition, error) {
		calls++
		mem.Set("partial", "kept")
		return Terminal, errors.New("malformed input")
	}}

	m, _ := New("fatal", []State{bad}, WithMaxRetries(5))
	mem, err := m.Run(context.Background(), NewMemory())

	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalError, got %v", err)
	}
	if calls != 1 {
		t.Errorf("fatal failure retried: calls=%d", calls)
	}
	if !mem.Has("partial") {
		t.Error("partial memory lost on fatal failure")
	}
}

func TestMachine_CycleDetected(t *testing.T) {
	loop := State{Name: "loop", Run: func(ctx context.Context, mem Memory) (Transition, error) {
		return "loop", nil
	}}

	m, _ := New("cycle", []State{loop}, WithMaxSteps(5))
	_, err := m.Run(context.Background(), NewMemory())
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
}

func TestMachine_UndeclaredTransitionIsFatal(t *testing.T) {
	s := State{Name: "a", Run: func(ctx context.Context, mem Memory) (Transition, error) {
		return "ghost", nil
	}}

	m, _ := New("undeclared", []State{s})
	_, err := m.Run(context.Background(), NewMemory())
	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalError, got %v", err)
	}
}

func TestMachine_WriteOnceViolationIsFatal(t *testing.T) {
	states := []State{
		{Name: "produce", Run: func(ctx context.Context, mem Memory) (Transition, error) {
			if err := mem.Set("ranking", "first"); err != nil {
				return Terminal, err
			}
			return "revisit", nil
		}},
		{Name: "revisit", Run: func(ctx context.Context, mem Memory) (Transition, error) {
			if err := mem.Set("ranking", "second"); err != nil {
				return Terminal, err
			}
			return Terminal, nil
		}},
	}

	m, _ := New("writeonce", states)
	mem, err := m.Run(context.Background(), NewMemory())
	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalError, got %v", err)
	}
	if fatal.State != "revisit" {
		t.Errorf("failing state = %s, want revisit", fatal.State)
	}
	if v, _ := mem.Get("ranking"); v != "first" {
		t.Errorf("frozen key changed to %v", v)
	}
}

func TestMachine_CancelledBetweenStates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := State{Name: "first", Run: func(ctx context.Context, mem Memory) (Transition, error) {
		mem.Set("first", true)
		cancel()
		return "second", nil
	}}
	second := State{Name: "second", Run: func(ctx context.Context, mem Memory) (Transition, error) {
		t.Fatal("second state must not run after cancel")
		return Terminal, nil
	}}

	m, _ := New("cancel", []State{first, second})
	mem, err := m.Run(ctx, NewMemory())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !mem.Has("first") {
		t.Error("completed state output lost on cancellation")
	}
}
