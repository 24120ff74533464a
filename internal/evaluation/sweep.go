package evaluation

// #region imports
import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"trialmatch/internal/model"
	"trialmatch/internal/ragconf"
)

// #endregion

// #region cell-runner

// CellRunner produces the ranked list for one (config, case) cell. The
// sweep stays agnostic to how ranking happens; cmd/ablation plugs the
// full pipeline in here.
type CellRunner func(ctx context.Context, cfg ragconf.Config, c Case) (*model.RankedList, error)

// #endregion cell-runner

// #region sweep

// Sweep runs every (config × case) cell on a bounded worker pool and
// aggregates per-config results.
type Sweep struct {
	Runner      CellRunner
	Workers     int           // pool size; defaults to 4
	CellTimeout time.Duration // per-cell bound; defaults to 2m
}

type cell struct {
	cfg ragconf.Config
	c   Case
}

// Run evaluates configs over cases. Workers never touch shared state:
// each cell's result goes back over a channel and only the coordinator
// appends. Cancellation is honored between cells; cells already running
// finish or time out.
func (s *Sweep) Run(ctx context.Context, configs []ragconf.Config, cases []Case) ([]*ExperimentResult, error) {
	workers := s.Workers
	if workers <= 0 {
		workers = 4
	}
	timeout := s.CellTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	cells := make(chan cell)
	results := make(chan CaseResult)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cl := range cells {
				results <- s.runCell(ctx, cl, timeout)
			}
		}()
	}

	go func() {
		defer close(cells)
		for _, cfg := range configs {
			for _, c := range cases {
				select {
				case cells <- cell{cfg: cfg, c: c}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	byConfig := make(map[string]*ExperimentResult, len(configs))
	order := make([]string, 0, len(configs))
	for _, cfg := range configs {
		byConfig[cfg.ID] = &ExperimentResult{ConfigID: cfg.ID}
		order = append(order, cfg.ID)
	}

	done := 0
	for r := range results {
		done++
		byConfig[r.ConfigID].Cases = append(byConfig[r.ConfigID].Cases, r)
		if r.Err != nil {
			log.Printf("[SWEEP] cell %s/%s failed: %v", r.ConfigID, r.CaseID, r.Err)
		} else {
			log.Printf("[SWEEP] cell %s/%s done (%d/%d)", r.ConfigID, r.CaseID, done, len(configs)*len(cases))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]*ExperimentResult, 0, len(order))
	for _, id := range order {
		out = append(out, byConfig[id])
	}
	return out, nil
}

func (s *Sweep) runCell(ctx context.Context, cl cell, timeout time.Duration) CaseResult {
	cellCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ranking, err := s.Runner(cellCtx, cl.cfg, cl.c)
	if err != nil {
		return CaseResult{
			ConfigID: cl.cfg.ID,
			CaseID:   cl.c.ID,
			Metrics:  MetricSet{},
			Err:      fmt.Errorf("cell %s/%s: %w", cl.cfg.ID, cl.c.ID, err),
		}
	}
	return EvaluateCase(cl.cfg.ID, cl.c.ID, ranking, cl.c.GroundTruth)
}

// #endregion sweep

// #region summary

// SummaryRow is one line of the ranked sweep summary.
type SummaryRow struct {
	ConfigID  string
	Primary   float64
	Secondary float64
	Failures  int
}

// Summarize ranks results by the experiment's primary metric,
// descending, breaking ties on the secondary metric.
func Summarize(results []*ExperimentResult, primary, secondary string) []SummaryRow {
	rows := make([]SummaryRow, 0, len(results))
	for _, r := range results {
		row := SummaryRow{
			ConfigID:  r.ConfigID,
			Primary:   r.Mean(primary),
			Secondary: r.Mean(secondary),
		}
		for _, c := range r.Cases {
			if c.Err != nil {
				row.Failures++
			}
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Primary != rows[j].Primary {
			return rows[i].Primary > rows[j].Primary
		}
		return rows[i].Secondary > rows[j].Secondary
	})
	return rows
}

// #endregion summary
