package phase

// #region imports
import (
	"context"
	"fmt"
	"log"

	"trialmatch/internal/machine"
	"trialmatch/internal/model"
	"trialmatch/internal/ragconf"
)

// #endregion

// #region run-enhancement

// RunEnhancement re-scores the top slice of the baseline against
// retrieved knowledge passages and fuses the evidence score with the
// baseline score under the config's fusion rule. The baseline list is
// never mutated; items past the rerank cutoff keep their baseline
// scores in the returned list.
func RunEnhancement(ctx context.Context, deps Deps, cfg ragconf.Config, entity *model.QueryEntity, baseline *model.RankedList) (*model.RankedList, error) {
	states := []machine.State{
		{Name: "select_rerank_slice", Run: func(ctx context.Context, mem machine.Memory) (machine.Transition, error) {
			top := baseline.TopN(cfg.TopNRerank)
			if err := mem.Set("rerank_slice", top); err != nil {
				return machine.Terminal, err
			}
			if len(top) == 0 {
				return "assemble_list", nil
			}
			return "retrieve_evidence", nil
		}},
		{Name: "retrieve_evidence", Run: func(ctx context.Context, mem machine.Memory) (machine.Transition, error) {
			tv, _ := mem.Get("rerank_slice")
			query := cfg.ExpandQuery(entity)
			evidence := make(map[string][]model.Passage)
			for _, item := range tv.([]model.CandidateItem) {
				callCtx, cancel := context.WithTimeout(ctx, deps.timeout())
				passages, err := deps.Retriever.Retrieve(callCtx, query+" "+item.Title, cfg.RetrievalK)
				cancel()
				if err != nil {
					return machine.Terminal, machine.Recoverable(fmt.Errorf("retrieve for %s: %w", item.ID, err))
				}
				evidence[item.ID] = passages
			}
			if err := mem.Set("evidence", evidence); err != nil {
				return machine.Terminal, err
			}
			return "score_evidence", nil
		}},
		{Name: "score_evidence", Run: func(ctx context.Context, mem machine.Memory) (machine.Transition, error) {
			v, _ := mem.Get("evidence")
			evidence := v.(map[string][]model.Passage)
			tv, _ := mem.Get("rerank_slice")
			top := tv.([]model.CandidateItem)

			fused := make(map[string]float64)
			for _, item := range top {
				passages := evidence[item.ID]
				if len(passages) == 0 {
					// No evidence retrieved: the baseline score stands.
					continue
				}
				callCtx, cancel := context.WithTimeout(ctx, deps.timeout())
				evScore, err := deps.Scorer.Score(callCtx, entity, item, passages)
				cancel()
				if err != nil {
					return machine.Terminal, machine.Recoverable(fmt.Errorf("evidence score %s: %w", item.ID, err))
				}
				fused[item.ID] = fuseScores(cfg, item.Score, evScore)
			}
			log.Printf("[ENHANCE] fused %d/%d reranked scores (%s)", len(fused), len(top), cfg.Fusion)
			if err := mem.Set("fused_scores", fused); err != nil {
				return machine.Terminal, err
			}
			return "assemble_list", nil
		}},
		{Name: "assemble_list", Run: func(ctx context.Context, mem machine.Memory) (machine.Transition, error) {
			fused := map[string]float64{}
			if v, ok := mem.Get("fused_scores"); ok {
				fused = v.(map[string]float64)
			}
			enhanced := model.NewRankedList()
			for _, item := range baseline.Items() {
				if score, ok := fused[item.ID]; ok {
					item.Score = score
					item.RankExplanation = fmt.Sprintf("%s; adjusted by %s evidence fusion", item.RankExplanation, cfg.Fusion)
				}
				if err := enhanced.Add(item); err != nil {
					return machine.Terminal, err
				}
			}
			return machine.Terminal, mem.Set("enhanced", enhanced)
		}},
	}

	m, err := machine.New("enhancement", states)
	if err != nil {
		return nil, err
	}
	mem, err := m.Run(ctx, machine.NewMemory())
	if err != nil {
		return nil, err
	}

	v, _ := mem.Get("enhanced")
	return v.(*model.RankedList), nil
}

// #endregion run-enhancement

// #region fusion

// fuseScores combines the baseline and evidence scores under the
// configured rule. Both scores live on the same 0-100 scale.
func fuseScores(cfg ragconf.Config, baseline, evidence float64) float64 {
	switch cfg.Fusion {
	case ragconf.FusionLLMOverride:
		return evidence
	default: // weighted_sum
		return cfg.FusionAlpha*baseline + (1-cfg.FusionAlpha)*evidence
	}
}

// #endregion fusion
