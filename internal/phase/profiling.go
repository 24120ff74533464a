package phase

// #region imports
import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"trialmatch/internal/machine"
	"trialmatch/internal/model"
)

// #endregion

// #region patterns

var (
	agePattern   = regexp.MustCompile(`(?i)(\d{1,3})[\s-]*(?:year[\s-]*old|y/?o\b|years of age)`)
	stagePattern = regexp.MustCompile(`(?i)\bstage\s+([IV]+[AB]?|[1-4][AB]?)\b`)
	// Biomarker mentions: gene symbol optionally followed by a variant
	// (PIK3CA E545K) or a status word (PD-L1 positive).
	markerPattern = regexp.MustCompile(`\b([A-Z][A-Z0-9]{1,7}(?:-[A-Z0-9]{1,4})?)\s*(?:\(([A-Z]\d{1,4}[A-Z*])\)|\s([A-Z]\d{1,4}[A-Z*])\b|[\s:]+(positive|negative|amplified|mutated|high|deletion))?`)

	cancerTypePattern = regexp.MustCompile(`(?i)\b((?:[a-z]+\s+){0,3}(?:carcinoma|adenocarcinoma|cancer|lymphoma|leukemia|melanoma|sarcoma|glioblastoma|mesothelioma))\b`)

	treatmentKeywords = []string{
		"chemotherapy", "chemoradiation", "radiation", "radiotherapy",
		"cisplatin", "carboplatin", "paclitaxel", "pembrolizumab",
		"surgery", "resection", "immunotherapy", "prior therapy",
		"first-line", "second-line", "received", "treated with",
	}

	// Generic tokens that look like gene symbols but are not.
	markerStoplist = map[string]bool{
		"PDF": true, "THE": true, "AND": true, "FOR": true, "NOT": true,
		"CT": true, "MRI": true, "PET": true, "ECOG": true, "TNM": true,
		"DNA": true, "RNA": true, "II": true, "III": true, "IV": true,
		"IIIB": true, "IIB": true, "IIA": true, "IA": true, "IB": true,
	}
)

// #endregion patterns

// #region run-profiling

// RunProfiling turns a raw patient document into the immutable
// QueryEntity every later phase matches against. The extractor runs
// once; each extraction state then works on the shared narrative.
func RunProfiling(ctx context.Context, deps Deps, raw []byte) (*model.QueryEntity, error) {
	states := []machine.State{
		{Name: "extract_narrative", Run: func(ctx context.Context, mem machine.Memory) (machine.Transition, error) {
			callCtx, cancel := context.WithTimeout(ctx, deps.timeout())
			defer cancel()
			text, err := deps.Extractor.Extract(callCtx, raw)
			if err != nil {
				return machine.Terminal, machine.Recoverable(fmt.Errorf("extract narrative: %w", err))
			}
			if strings.TrimSpace(text) == "" {
				return machine.Terminal, fmt.Errorf("narrative is empty")
			}
			if err := mem.Set("narrative", text); err != nil {
				return machine.Terminal, err
			}
			return "extract_demographics", nil
		}},
		{Name: "extract_demographics", Run: func(ctx context.Context, mem machine.Memory) (machine.Transition, error) {
			text := narrative(mem)
			if err := mem.Set("demographics", extractDemographics(text)); err != nil {
				return machine.Terminal, err
			}
			return "extract_diagnoses", nil
		}},
		{Name: "extract_diagnoses", Run: func(ctx context.Context, mem machine.Memory) (machine.Transition, error) {
			text := narrative(mem)
			if err := mem.Set("diagnoses", extractDiagnoses(text)); err != nil {
				return machine.Terminal, err
			}
			return "extract_biomarkers", nil
		}},
		{Name: "extract_biomarkers", Run: func(ctx context.Context, mem machine.Memory) (machine.Transition, error) {
			text := narrative(mem)
			if err := mem.Set("biomarkers", extractBiomarkers(text)); err != nil {
				return machine.Terminal, err
			}
			return "extract_treatment_history", nil
		}},
		{Name: "extract_treatment_history", Run: func(ctx context.Context, mem machine.Memory) (machine.Transition, error) {
			text := narrative(mem)
			if err := mem.Set("treatment_history", extractTreatmentHistory(text)); err != nil {
				return machine.Terminal, err
			}
			return "generate_search_terms", nil
		}},
		{Name: "generate_search_terms", Run: func(ctx context.Context, mem machine.Memory) (machine.Transition, error) {
			demo, _ := mem.Get("demographics")
			markers, _ := mem.Get("biomarkers")
			terms := generateSearchTerms(demo.(map[string]string), markers.([]string))
			if len(terms) == 0 {
				return machine.Terminal, fmt.Errorf("no usable search terms in narrative")
			}
			return machine.Terminal, mem.Set("search_terms", terms)
		}},
	}

	m, err := machine.New("profiling", states)
	if err != nil {
		return nil, err
	}
	mem, err := m.Run(ctx, machine.NewMemory())
	if err != nil {
		return nil, err
	}

	demo, _ := mem.Get("demographics")
	diagnoses, _ := mem.Get("diagnoses")
	markers, _ := mem.Get("biomarkers")
	history, _ := mem.Get("treatment_history")
	terms, _ := mem.Get("search_terms")

	return &model.QueryEntity{
		Demographics:     demo.(map[string]string),
		Diagnoses:        diagnoses.(string),
		Biomarkers:       markers.([]string),
		TreatmentHistory: history.([]string),
		SearchTerms:      terms.([]string),
	}, nil
}

func narrative(mem machine.Memory) string {
	v, _ := mem.Get("narrative")
	return v.(string)
}

// #endregion run-profiling

// #region extraction

func extractDemographics(text string) map[string]string {
	demo := make(map[string]string)
	if m := agePattern.FindStringSubmatch(text); m != nil {
		demo["age"] = m[1]
	}
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "female") || strings.Contains(lower, "woman"):
		demo["sex"] = "female"
	case strings.Contains(lower, " male") || strings.Contains(lower, "man,"):
		demo["sex"] = "male"
	}
	if m := stagePattern.FindStringSubmatch(text); m != nil {
		demo["stage"] = strings.ToUpper(m[1])
	}
	if m := cancerTypePattern.FindStringSubmatch(text); m != nil {
		demo["cancer_type"] = strings.ToLower(strings.TrimSpace(m[1]))
	}
	return demo
}

func extractDiagnoses(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if cancerTypePattern.MatchString(line) || stagePattern.MatchString(line) {
			lines = append(lines, strings.TrimSpace(line))
		}
	}
	if len(lines) == 0 {
		// Fall back to the opening of the narrative.
		if len(text) > 300 {
			return strings.TrimSpace(text[:300])
		}
		return strings.TrimSpace(text)
	}
	return strings.Join(lines, " ")
}

func extractBiomarkers(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range markerPattern.FindAllStringSubmatch(text, -1) {
		symbol := m[1]
		if markerStoplist[symbol] || len(symbol) < 3 {
			continue
		}
		variant := m[2]
		if variant == "" {
			variant = m[3]
		}
		status := m[4]

		// A bare uppercase token is too noisy; require a variant, a
		// status word, or a known hyphenated marker form.
		if variant == "" && status == "" && !strings.Contains(symbol, "-") {
			continue
		}

		marker := symbol
		if variant != "" {
			marker += " " + variant
		} else if status != "" {
			marker += " " + status
		}
		if !seen[marker] {
			seen[marker] = true
			out = append(out, marker)
		}
	}
	return out
}

func extractTreatmentHistory(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(line)
		for _, kw := range treatmentKeywords {
			if strings.Contains(lower, kw) {
				trimmed := strings.TrimSpace(line)
				if !seen[trimmed] {
					seen[trimmed] = true
					out = append(out, trimmed)
				}
				break
			}
		}
	}
	return out
}

// generateSearchTerms produces short, broad registry queries: the
// cancer type plus per-biomarker combinations. Specific variant codes
// are stripped because registries rarely index them.
func generateSearchTerms(demo map[string]string, markers []string) []string {
	var terms []string
	seen := make(map[string]bool)
	add := func(t string) {
		t = strings.TrimSpace(t)
		if t != "" && !seen[t] && len(terms) < 5 {
			seen[t] = true
			terms = append(terms, t)
		}
	}

	cancer := demo["cancer_type"]
	add(cancer)
	for _, m := range markers {
		gene := strings.Fields(m)[0]
		if cancer != "" {
			add(gene + " " + cancer)
		} else {
			add(gene)
		}
	}
	return terms
}

// #endregion extraction
