package ragconf

// #region imports
import (
	"fmt"
	"sort"
)

// #endregion

// #region defaults

const defaultTemplate = "{diagnoses} {biomarkers} treatment guidelines"

// base returns the shared retrieval defaults a variant then adjusts.
func base(id, name, description string) Config {
	return Config{
		ID:            id,
		Name:          name,
		Description:   description,
		RetrievalK:    3,
		ChunkSize:     1000,
		ChunkOverlap:  200,
		TopNRerank:    10,
		QueryTemplate: defaultTemplate,
		Fusion:        FusionWeightedSum,
		FusionAlpha:   0.6,
	}
}

// #endregion defaults

// #region variant-table

// Variants is the full set of built-in configurations.
var Variants = map[string]Config{
	"control": func() Config {
		c := base("control", "No RAG (Control)", "Baseline keyword ranking, no knowledge enhancement")
		return c
	}(),
	"guidelines_only": func() Config {
		c := base("guidelines_only", "Guidelines Only", "Clinical practice guidelines only")
		c.IncludeGuidelines = true
		return c
	}(),
	"guidelines_fda": func() Config {
		c := base("guidelines_fda", "Guidelines + Drug Labels", "Guidelines plus regulator drug labels")
		c.IncludeGuidelines = true
		c.IncludeDrugLabels = true
		c.RetrievalK = 5
		return c
	}(),
	"current_system": func() Config {
		c := base("current_system", "All Sources", "Guidelines, drug labels, biomarker guides and trial corpus")
		c.IncludeGuidelines = true
		c.IncludeDrugLabels = true
		c.IncludeBiomarkerGuides = true
		c.IncludeTrialCorpus = true
		return c
	}(),
	"no_trial_corpus": func() Config {
		c := base("no_trial_corpus", "Without Trial Corpus", "All sources except the trial corpus")
		c.IncludeGuidelines = true
		c.IncludeDrugLabels = true
		c.IncludeBiomarkerGuides = true
		c.RetrievalK = 5
		return c
	}(),
	"trial_corpus_only": func() Config {
		c := base("trial_corpus_only", "Trial Corpus Only", "Only the trial corpus, to test whether it helps at all")
		c.IncludeTrialCorpus = true
		c.RetrievalK = 5
		return c
	}(),
	"small_chunks": func() Config {
		c := base("small_chunks", "Small Chunks", "500-char chunks for granular retrieval")
		c.IncludeGuidelines = true
		c.IncludeDrugLabels = true
		c.IncludeBiomarkerGuides = true
		c.ChunkSize = 500
		c.ChunkOverlap = 100
		c.RetrievalK = 5
		return c
	}(),
	"large_chunks": func() Config {
		c := base("large_chunks", "Large Chunks", "2000-char chunks for more context per passage")
		c.IncludeGuidelines = true
		c.IncludeDrugLabels = true
		c.IncludeBiomarkerGuides = true
		c.ChunkSize = 2000
		c.ChunkOverlap = 400
		return c
	}(),
	"high_k": func() Config {
		c := base("high_k", "High K Retrieval", "Retrieve ten passages for broader context")
		c.IncludeGuidelines = true
		c.IncludeDrugLabels = true
		c.IncludeBiomarkerGuides = true
		c.RetrievalK = 10
		return c
	}(),
	"detailed_query": func() Config {
		c := base("detailed_query", "Detailed Query", "Query includes stage and treatment history")
		c.IncludeGuidelines = true
		c.IncludeDrugLabels = true
		c.IncludeBiomarkerGuides = true
		c.QueryTemplate = "{diagnoses} {stage} {biomarkers} {treatment_history} treatment guidelines outcomes"
		c.RetrievalK = 5
		return c
	}(),
	"simple_query": func() Config {
		c := base("simple_query", "Simple Query", "Minimal query: cancer type and primary biomarker")
		c.IncludeGuidelines = true
		c.IncludeDrugLabels = true
		c.IncludeBiomarkerGuides = true
		c.QueryTemplate = "{cancer_type} {primary_biomarker} treatment"
		c.RetrievalK = 5
		return c
	}(),
	"llm_rerank": func() Config {
		c := base("llm_rerank", "LLM Re-scoring", "Scorer output replaces the baseline score entirely")
		c.IncludeGuidelines = true
		c.IncludeDrugLabels = true
		c.IncludeBiomarkerGuides = true
		c.Fusion = FusionLLMOverride
		c.RetrievalK = 5
		return c
	}(),
}

// ByID looks up a built-in variant.
func ByID(id string) (Config, error) {
	c, ok := Variants[id]
	if !ok {
		return Config{}, fmt.Errorf("unknown configuration %q", id)
	}
	return c, nil
}

// IDs returns all built-in variant IDs, sorted.
func IDs() []string {
	ids := make([]string, 0, len(Variants))
	for id := range Variants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// #endregion variant-table

// #region experiments

// Experiment groups variants for a named ablation study.
type Experiment struct {
	Name            string
	Description     string
	Hypothesis      string
	ConfigIDs       []string
	PrimaryMetric   string
	SecondaryMetric string
}

var experiments = map[string]Experiment{
	"knowledge_ablation": {
		Name:            "Knowledge Source Ablation",
		Description:     "Which knowledge sources contribute to ranking accuracy",
		Hypothesis:      "Guidelines plus drug labels suffice; the trial corpus adds noise",
		ConfigIDs:       []string{"control", "guidelines_only", "guidelines_fda", "no_trial_corpus", "current_system", "trial_corpus_only"},
		PrimaryMetric:   "precision@3",
		SecondaryMetric: "ndcg@5",
	},
	"retrieval_params": {
		Name:            "Retrieval Parameter Study",
		Description:     "Chunk size and retrieval depth trade-offs",
		Hypothesis:      "Larger chunks with k around five work best",
		ConfigIDs:       []string{"guidelines_fda", "small_chunks", "large_chunks", "high_k"},
		PrimaryMetric:   "ndcg@5",
		SecondaryMetric: "mrr",
	},
	"query_construction": {
		Name:            "Query Formulation Study",
		Description:     "How query detail affects retrieval usefulness",
		Hypothesis:      "Detailed queries with stage and line improve precision",
		ConfigIDs:       []string{"guidelines_fda", "detailed_query", "simple_query"},
		PrimaryMetric:   "mrr",
		SecondaryMetric: "precision@3",
	},
	"fusion_rules": {
		Name:            "Score Fusion Study",
		Description:     "Weighted blend versus full LLM re-scoring",
		Hypothesis:      "Blending is more stable than overriding",
		ConfigIDs:       []string{"guidelines_fda", "llm_rerank"},
		PrimaryMetric:   "precision@3",
		SecondaryMetric: "mrr",
	},
}

// ExperimentByName returns a named experiment definition.
func ExperimentByName(name string) (Experiment, error) {
	e, ok := experiments[name]
	if !ok {
		return Experiment{}, fmt.Errorf("unknown experiment %q", name)
	}
	return e, nil
}

// ExperimentNames lists defined experiments, sorted.
func ExperimentNames() []string {
	names := make([]string, 0, len(experiments))
	for n := range experiments {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ExperimentConfigs resolves an experiment's variant IDs to configs.
func ExperimentConfigs(name string) ([]Config, error) {
	e, err := ExperimentByName(name)
	if err != nil {
		return nil, err
	}
	configs := make([]Config, 0, len(e.ConfigIDs))
	for _, id := range e.ConfigIDs {
		c, err := ByID(id)
		if err != nil {
			return nil, err
		}
		configs = append(configs, c)
	}
	return configs, nil
}

// #endregion experiments
