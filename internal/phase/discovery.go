package phase

// #region imports
import (
	"context"
	"fmt"
	"log"
	"strings"

	"trialmatch/internal/machine"
	"trialmatch/internal/model"
)

// #endregion

// #region status-filter

// enrollableStatuses are the registry statuses a patient could act on.
var enrollableStatuses = map[string]bool{
	"RECRUITING":            true,
	"NOT_YET_RECRUITING":    true,
	"ACTIVE_NOT_RECRUITING": true,
	"":                      true, // fixtures without status pass through
}

// #endregion status-filter

// #region run-discovery

// RunDiscovery searches the registry with the profiled entity's terms
// and produces the baseline RankedList. Search transport failures are
// recoverable; an empty registry result is not an error, it yields an
// empty baseline.
func RunDiscovery(ctx context.Context, deps Deps, entity *model.QueryEntity) (*model.RankedList, error) {
	states := []machine.State{
		{Name: "generate_queries", Run: func(ctx context.Context, mem machine.Memory) (machine.Transition, error) {
			queries := buildQueries(entity)
			if len(queries) == 0 {
				return machine.Terminal, fmt.Errorf("entity has no search terms")
			}
			if err := mem.Set("queries", queries); err != nil {
				return machine.Terminal, err
			}
			return "execute_search", nil
		}},
		{Name: "execute_search", Run: func(ctx context.Context, mem machine.Memory) (machine.Transition, error) {
			v, _ := mem.Get("queries")
			queries := v.([][]string)

			var all []model.CandidateItem
			for _, q := range queries {
				callCtx, cancel := context.WithTimeout(ctx, deps.timeout())
				found, err := deps.Searcher.Search(callCtx, q)
				cancel()
				if err != nil {
					return machine.Terminal, machine.Recoverable(fmt.Errorf("search %v: %w", q, err))
				}
				all = append(all, found...)
			}
			log.Printf("[DISCOVERY] %d queries returned %d raw candidates", len(queries), len(all))
			if err := mem.Set("raw_candidates", all); err != nil {
				return machine.Terminal, err
			}
			return "deduplicate_filter", nil
		}},
		{Name: "deduplicate_filter", Run: func(ctx context.Context, mem machine.Memory) (machine.Transition, error) {
			v, _ := mem.Get("raw_candidates")
			raw := v.([]model.CandidateItem)

			seen := make(map[string]bool)
			var unique []model.CandidateItem
			for _, c := range raw {
				if c.ID == "" || seen[c.ID] {
					continue
				}
				if !enrollableStatuses[c.Status] {
					continue
				}
				seen[c.ID] = true
				unique = append(unique, c)
			}
			log.Printf("[DISCOVERY] %d unique enrollable candidates", len(unique))
			if err := mem.Set("filtered_candidates", unique); err != nil {
				return machine.Terminal, err
			}
			return "rank_candidates", nil
		}},
		{Name: "rank_candidates", Run: func(ctx context.Context, mem machine.Memory) (machine.Transition, error) {
			v, _ := mem.Get("filtered_candidates")
			candidates := v.([]model.CandidateItem)

			scored := make([]model.CandidateItem, 0, len(candidates))
			for _, c := range candidates {
				callCtx, cancel := context.WithTimeout(ctx, deps.timeout())
				score, err := deps.Scorer.Score(callCtx, entity, c, nil)
				cancel()
				if err != nil {
					return machine.Terminal, machine.Recoverable(fmt.Errorf("score %s: %w", c.ID, err))
				}
				c.Score = score
				scored = append(scored, c)
			}
			if err := mem.Set("scored_candidates", scored); err != nil {
				return machine.Terminal, err
			}
			return "prepare_summaries", nil
		}},
		{Name: "prepare_summaries", Run: func(ctx context.Context, mem machine.Memory) (machine.Transition, error) {
			v, _ := mem.Get("scored_candidates")
			scored := v.([]model.CandidateItem)

			baseline := model.NewRankedList()
			for _, c := range scored {
				c.RankExplanation = fmt.Sprintf("keyword match against profile (%s)", summarizeMatch(entity, c))
				if err := baseline.Add(c); err != nil {
					return machine.Terminal, err
				}
			}
			return machine.Terminal, mem.Set("baseline", baseline)
		}},
	}

	m, err := machine.New("discovery", states)
	if err != nil {
		return nil, err
	}
	mem, err := m.Run(ctx, machine.NewMemory())
	if err != nil {
		return nil, err
	}

	v, _ := mem.Get("baseline")
	return v.(*model.RankedList), nil
}

// #endregion run-discovery

// #region helpers

// buildQueries splits the entity's search terms into per-query term
// lists. Registries respond better to several narrow queries than one
// giant OR.
func buildQueries(entity *model.QueryEntity) [][]string {
	var queries [][]string
	for _, t := range entity.SearchTerms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		queries = append(queries, []string{t})
		if len(queries) == 5 {
			break
		}
	}
	return queries
}

// summarizeMatch names which patient terms the trial matched, for the
// rank explanation.
func summarizeMatch(entity *model.QueryEntity, c model.CandidateItem) string {
	text := strings.ToLower(c.Title + " " + c.Description)
	var hits []string
	for _, b := range entity.Biomarkers {
		gene := strings.ToLower(strings.Fields(b)[0])
		if strings.Contains(text, gene) {
			hits = append(hits, strings.Fields(b)[0])
		}
	}
	if len(hits) == 0 {
		return "condition terms"
	}
	return strings.Join(hits, ", ")
}

// #endregion helpers
