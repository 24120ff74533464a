package evaluation

// #region imports
import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"trialmatch/internal/model"
)

// #endregion

// #region case

// Case is one evaluation unit: a patient narrative plus the graded
// ground truth a correct ranking should surface.
type Case struct {
	ID          string
	Narrative   string
	GroundTruth model.GroundTruthSet
}

// caseFile is the YAML wire form of a cases file.
type caseFile struct {
	Cases []struct {
		ID          string                   `yaml:"case_id"`
		Narrative   string                   `yaml:"narrative"`
		GroundTruth []model.GroundTruthEntry `yaml:"ground_truth"`
	} `yaml:"cases"`
}

// LoadCases reads and validates a YAML cases file. Every case needs a
// unique ID, a narrative and at least one ground-truth entry.
func LoadCases(path string) ([]Case, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cases file: %w", err)
	}
	return ParseCases(raw)
}

// ParseCases validates raw YAML case data.
func ParseCases(raw []byte) ([]Case, error) {
	var f caseFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse cases file: %w", err)
	}
	if len(f.Cases) == 0 {
		return nil, fmt.Errorf("cases file declares no cases")
	}

	seen := make(map[string]bool, len(f.Cases))
	out := make([]Case, 0, len(f.Cases))
	for i, c := range f.Cases {
		if c.ID == "" {
			return nil, fmt.Errorf("case %d: missing case_id", i)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("case %s: duplicate case_id", c.ID)
		}
		seen[c.ID] = true
		if c.Narrative == "" {
			return nil, fmt.Errorf("case %s: missing narrative", c.ID)
		}
		truth, err := model.NewGroundTruthSet(c.GroundTruth)
		if err != nil {
			return nil, fmt.Errorf("case %s: %w", c.ID, err)
		}
		if truth.Len() == 0 {
			return nil, fmt.Errorf("case %s: empty ground truth", c.ID)
		}
		out = append(out, Case{ID: c.ID, Narrative: c.Narrative, GroundTruth: truth})
	}
	return out, nil
}

// #endregion case
