package workflow

// #region imports
import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"trialmatch/internal/machine"
	"trialmatch/internal/model"
	"trialmatch/internal/phase"
	"trialmatch/internal/ragconf"
)

// #endregion

// #region mode

// Mode selects which phases run.
type Mode string

const (
	// ModeControl stops after Discovery: profiling + baseline ranking
	// only. This is the ablation control arm.
	ModeControl Mode = "control"
	// ModeRank runs through Knowledge-Enhancement.
	ModeRank Mode = "rank"
	// ModeFull adds the Eligibility pass on the enhanced ranking.
	ModeFull Mode = "full"
)

// ParseMode validates a mode string from flags or config.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeControl, ModeRank, ModeFull:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q (want control, rank or full)", s)
}

// #endregion mode

// #region result

// RunResult is what one pipeline run produced. When a phase fails
// fatally, Failure is set and Memory still holds every phase output
// completed before the halt.
type RunResult struct {
	RunID   uuid.UUID
	Mode    Mode
	Memory  *PhaseMemory
	Failure *machine.FatalError
	Elapsed time.Duration
}

// BaselineRanking returns the Discovery output, or nil if Discovery
// never completed.
func (r *RunResult) BaselineRanking() *model.RankedList {
	if v, ok := r.Memory.Get(KeyBaselineRanking); ok {
		return v.(*model.RankedList)
	}
	return nil
}

// FinalRanking returns the enhanced ranking when present, falling back
// to the baseline.
func (r *RunResult) FinalRanking() *model.RankedList {
	if v, ok := r.Memory.Get(KeyEnhancedRanking); ok {
		return v.(*model.RankedList)
	}
	return r.BaselineRanking()
}

// Eligibility returns the eligibility report, or nil when the phase
// was skipped or never reached.
func (r *RunResult) Eligibility() *phase.EligibilityReport {
	if v, ok := r.Memory.Get(KeyEligibility); ok {
		return v.(*phase.EligibilityReport)
	}
	return nil
}

// #endregion result

// #region orchestrator

// Orchestrator sequences the phases for one patient document under one
// retrieval configuration. Phases communicate only through PhaseMemory;
// cancellation is honored at every phase boundary.
type Orchestrator struct {
	deps phase.Deps
	cfg  ragconf.Config
}

// New builds an orchestrator.
func New(deps phase.Deps, cfg ragconf.Config) *Orchestrator {
	return &Orchestrator{deps: deps, cfg: cfg}
}

// Run executes the pipeline in the given mode. The returned error is
// non-nil only for context cancellation or setup problems; a phase's
// fatal failure is reported in RunResult.Failure with the partial
// memory intact, so callers can still inspect what completed.
func (o *Orchestrator) Run(ctx context.Context, mode Mode, raw []byte) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{
		RunID:  uuid.New(),
		Mode:   mode,
		Memory: NewPhaseMemory(),
	}
	log.Printf("[ORCH] run %s starting (mode=%s, config=%s)", result.RunID, mode, o.cfg.ID)

	err := o.runPhases(ctx, mode, raw, result)
	result.Elapsed = time.Since(start)

	if err != nil {
		var fatal *machine.FatalError
		if errors.As(err, &fatal) {
			result.Failure = fatal
			log.Printf("[ORCH] run %s halted in %s/%s after %s: %v",
				result.RunID, fatal.Machine, fatal.State, result.Elapsed, fatal.Err)
			return result, nil
		}
		// Cancellation or a setup error: surface it.
		return result, err
	}

	log.Printf("[ORCH] run %s done in %s (keys=%v)", result.RunID, result.Elapsed, result.Memory.Keys())
	return result, nil
}

func (o *Orchestrator) runPhases(ctx context.Context, mode Mode, raw []byte, result *RunResult) error {
	entity, err := phase.RunProfiling(ctx, o.deps, raw)
	if err != nil {
		return err
	}
	result.Memory.Append(KeyQueryEntity, entity)

	if err := ctx.Err(); err != nil {
		return err
	}
	baseline, err := phase.RunDiscovery(ctx, o.deps, entity)
	if err != nil {
		return err
	}
	result.Memory.Append(KeyBaselineRanking, baseline)

	if mode == ModeControl || !o.cfg.Enabled() {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	// Enhancement gets its own copy: the baseline recorded above must
	// survive the run untouched for control comparisons.
	enhanced, err := phase.RunEnhancement(ctx, o.deps, o.cfg, entity, baseline.Clone())
	if err != nil {
		return err
	}
	result.Memory.Append(KeyEnhancedRanking, enhanced)

	if mode != ModeFull {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	report, err := phase.RunEligibility(ctx, o.deps, entity, enhanced)
	if err != nil {
		return err
	}
	result.Memory.Append(KeyEligibility, report)
	return nil
}

// #endregion orchestrator
