// Package ragconf declares the immutable configuration records that
// drive knowledge-enhanced re-ranking and the ablation experiments
// built from them. Every legal configuration is an enumerable value,
// not a bag of keyword arguments, so runs are reproducible.
package ragconf

// #region imports
import (
	"fmt"
	"strings"

	"trialmatch/internal/model"
)

// #endregion

// #region fusion-rule

// FusionRule names the deterministic function combining the baseline
// score with the evidence-adjusted score.
type FusionRule string

const (
	// FusionWeightedSum blends alpha·baseline + (1−alpha)·evidence.
	FusionWeightedSum FusionRule = "weighted_sum"
	// FusionLLMOverride replaces the baseline with the scorer output.
	FusionLLMOverride FusionRule = "llm_override"
)

// #endregion fusion-rule

// #region knowledge-sources

// Knowledge source categories, matching corpus subdirectory names.
const (
	SourceGuidelines       = "guidelines"
	SourceDrugLabels       = "drug_labels"
	SourceBiomarkerGuides  = "biomarker_guides"
	SourceTrialCorpus      = "trial_corpus"
	SourcePublishedResults = "published_results"
	SourceActionability    = "actionability"
)

// #endregion knowledge-sources

// #region config

// Config is one declarative RAG variant. Passed by value; never mutated
// after construction.
type Config struct {
	ID          string `yaml:"config_id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Knowledge sources toggled for ablation.
	IncludeGuidelines       bool `yaml:"include_guidelines"`
	IncludeDrugLabels       bool `yaml:"include_drug_labels"`
	IncludeBiomarkerGuides  bool `yaml:"include_biomarker_guides"`
	IncludeTrialCorpus      bool `yaml:"include_trial_corpus"`
	IncludePublishedResults bool `yaml:"include_published_results"`
	IncludeActionability    bool `yaml:"include_actionability"`

	// Retrieval parameters.
	RetrievalK   int `yaml:"retrieval_k"`
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`

	// TopNRerank bounds how many baseline candidates are re-scored.
	TopNRerank int `yaml:"top_n_rerank"`

	// Query construction and score fusion.
	QueryTemplate string     `yaml:"query_template"`
	Fusion        FusionRule `yaml:"fusion"`
	FusionAlpha   float64    `yaml:"fusion_alpha"` // baseline weight for weighted_sum
}

// #endregion config

// #region validation

// Validate checks that the record describes a runnable configuration.
func (c Config) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("config: empty id")
	}
	if !c.Enabled() {
		// Control configuration: retrieval parameters are unused.
		return nil
	}
	if c.RetrievalK <= 0 {
		return fmt.Errorf("config %s: retrieval_k must be positive", c.ID)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("config %s: chunk_size must be positive", c.ID)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("config %s: chunk_overlap must be in [0, chunk_size)", c.ID)
	}
	if c.TopNRerank <= 0 {
		return fmt.Errorf("config %s: top_n_rerank must be positive", c.ID)
	}
	switch c.Fusion {
	case FusionWeightedSum:
		if c.FusionAlpha < 0 || c.FusionAlpha > 1 {
			return fmt.Errorf("config %s: fusion_alpha must be in [0,1]", c.ID)
		}
	case FusionLLMOverride:
	default:
		return fmt.Errorf("config %s: unknown fusion rule %q", c.ID, c.Fusion)
	}
	if c.QueryTemplate == "" {
		return fmt.Errorf("config %s: empty query_template", c.ID)
	}
	return nil
}

// Enabled reports whether any knowledge source is active. A fully
// disabled config is the no-RAG control condition.
func (c Config) Enabled() bool {
	return c.IncludeGuidelines || c.IncludeDrugLabels || c.IncludeBiomarkerGuides ||
		c.IncludeTrialCorpus || c.IncludePublishedResults || c.IncludeActionability
}

// Sources lists the active knowledge source categories.
func (c Config) Sources() []string {
	var out []string
	if c.IncludeGuidelines {
		out = append(out, SourceGuidelines)
	}
	if c.IncludeDrugLabels {
		out = append(out, SourceDrugLabels)
	}
	if c.IncludeBiomarkerGuides {
		out = append(out, SourceBiomarkerGuides)
	}
	if c.IncludeTrialCorpus {
		out = append(out, SourceTrialCorpus)
	}
	if c.IncludePublishedResults {
		out = append(out, SourcePublishedResults)
	}
	if c.IncludeActionability {
		out = append(out, SourceActionability)
	}
	return out
}

// #endregion validation

// #region query-template

// ExpandQuery fills the query template placeholders from the patient
// entity. Unknown placeholders expand to nothing.
func (c Config) ExpandQuery(entity *model.QueryEntity) string {
	replacer := strings.NewReplacer(
		"{diagnoses}", entity.Diagnoses,
		"{biomarkers}", strings.Join(entity.Biomarkers, " "),
		"{treatment_history}", strings.Join(entity.TreatmentHistory, " "),
		"{stage}", entity.Demographics["stage"],
		"{cancer_type}", entity.Demographics["cancer_type"],
		"{primary_biomarker}", firstOf(entity.Biomarkers),
	)
	return strings.Join(strings.Fields(replacer.Replace(c.QueryTemplate)), " ")
}

func firstOf(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

// #endregion query-template
