package phase

// #region imports
import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"trialmatch/internal/machine"
	"trialmatch/internal/model"
)

// #endregion

// #region types

// EligibilityStatus tags how a candidate's criteria read against the
// patient profile. Criteria text is unstructured, so anything short of
// an explicit conflict stays at "possible".
type EligibilityStatus string

const (
	StatusLikelyEligible EligibilityStatus = "likely_eligible"
	StatusPossible       EligibilityStatus = "possible"
	StatusLikelyExcluded EligibilityStatus = "likely_excluded"
)

// Assessment is the per-candidate eligibility read.
type Assessment struct {
	CandidateID string            `json:"nct_id"`
	Status      EligibilityStatus `json:"status"`
	Matched     []string          `json:"matched,omitempty"`
	Conflicts   []string          `json:"conflicts,omitempty"`
}

// EligibilityReport covers the top slice of a ranking.
type EligibilityReport struct {
	Assessments     []Assessment `json:"assessments"`
	Recommendations []string     `json:"recommendations"`
}

// #endregion types

// #region run-eligibility

const eligibilityTopN = 10

// RunEligibility assesses the top candidates of a ranking against the
// patient profile. It only reads criteria text already attached to the
// candidates, so it never touches the network.
func RunEligibility(ctx context.Context, deps Deps, entity *model.QueryEntity, ranking *model.RankedList) (*EligibilityReport, error) {
	states := []machine.State{
		{Name: "extract_criteria", Run: func(ctx context.Context, mem machine.Memory) (machine.Transition, error) {
			top := ranking.TopN(eligibilityTopN)
			criteria := make(map[string]string, len(top))
			for _, c := range top {
				criteria[c.ID] = strings.ToLower(c.Criteria)
			}
			if err := mem.Set("criteria", criteria); err != nil {
				return machine.Terminal, err
			}
			return "match_demographics", nil
		}},
		{Name: "match_demographics", Run: func(ctx context.Context, mem machine.Memory) (machine.Transition, error) {
			v, _ := mem.Get("criteria")
			criteria := v.(map[string]string)
			conflicts := make(map[string][]string)
			for id, text := range criteria {
				if c := demographicConflict(entity, text); c != "" {
					conflicts[id] = append(conflicts[id], c)
				}
			}
			if err := mem.Set("demographic_conflicts", conflicts); err != nil {
				return machine.Terminal, err
			}
			return "match_clinical_features", nil
		}},
		{Name: "match_clinical_features", Run: func(ctx context.Context, mem machine.Memory) (machine.Transition, error) {
			v, _ := mem.Get("criteria")
			criteria := v.(map[string]string)
			matched := make(map[string][]string)
			for id, text := range criteria {
				matched[id] = clinicalMatches(entity, text)
			}
			if err := mem.Set("clinical_matches", matched); err != nil {
				return machine.Terminal, err
			}
			return "assess_eligibility", nil
		}},
		{Name: "assess_eligibility", Run: func(ctx context.Context, mem machine.Memory) (machine.Transition, error) {
			cv, _ := mem.Get("demographic_conflicts")
			mv, _ := mem.Get("clinical_matches")
			conflicts := cv.(map[string][]string)
			matches := mv.(map[string][]string)

			var assessments []Assessment
			for _, c := range ranking.TopN(eligibilityTopN) {
				a := Assessment{
					CandidateID: c.ID,
					Matched:     matches[c.ID],
					Conflicts:   conflicts[c.ID],
				}
				switch {
				case len(a.Conflicts) > 0:
					a.Status = StatusLikelyExcluded
				case len(a.Matched) >= 2:
					a.Status = StatusLikelyEligible
				default:
					a.Status = StatusPossible
				}
				assessments = append(assessments, a)
			}
			if err := mem.Set("assessments", assessments); err != nil {
				return machine.Terminal, err
			}
			return "generate_recommendations", nil
		}},
		{Name: "generate_recommendations", Run: func(ctx context.Context, mem machine.Memory) (machine.Transition, error) {
			v, _ := mem.Get("assessments")
			assessments := v.([]Assessment)

			var recs []string
			for _, a := range assessments {
				switch a.Status {
				case StatusLikelyEligible:
					recs = append(recs, fmt.Sprintf("%s: discuss with care team (%s)", a.CandidateID, strings.Join(a.Matched, ", ")))
				case StatusLikelyExcluded:
					recs = append(recs, fmt.Sprintf("%s: likely excluded (%s)", a.CandidateID, strings.Join(a.Conflicts, ", ")))
				}
			}
			return machine.Terminal, mem.Set("report", &EligibilityReport{Assessments: assessments, Recommendations: recs})
		}},
	}

	m, err := machine.New("eligibility", states)
	if err != nil {
		return nil, err
	}
	mem, err := m.Run(ctx, machine.NewMemory())
	if err != nil {
		return nil, err
	}
	v, _ := mem.Get("report")
	return v.(*EligibilityReport), nil
}

// #endregion run-eligibility

// #region matching

var ageBoundPattern = regexp.MustCompile(`(?:age[sd]?\s*(?:of\s*)?)?(\d{1,3})\s*(?:years?)?\s*(?:or older|and above|\+|or younger|and under)`)

// demographicConflict reports an age conflict between the profile and
// the criteria text, or "" when none can be established.
func demographicConflict(entity *model.QueryEntity, criteria string) string {
	ageStr, ok := entity.Demographics["age"]
	if !ok {
		return ""
	}
	age, err := strconv.Atoi(ageStr)
	if err != nil {
		return ""
	}
	m := ageBoundPattern.FindStringSubmatch(criteria)
	if m == nil {
		return ""
	}
	bound, _ := strconv.Atoi(m[1])
	if strings.Contains(m[0], "older") || strings.Contains(m[0], "above") || strings.Contains(m[0], "+") {
		if age < bound {
			return fmt.Sprintf("age %d below minimum %d", age, bound)
		}
	} else if age > bound {
		return fmt.Sprintf("age %d above maximum %d", age, bound)
	}
	return ""
}

// clinicalMatches lists the profile biomarkers and diagnoses the
// criteria text explicitly mentions.
func clinicalMatches(entity *model.QueryEntity, criteria string) []string {
	var matched []string
	for _, b := range entity.Biomarkers {
		gene := strings.ToLower(strings.Fields(b)[0])
		if strings.Contains(criteria, gene) {
			matched = append(matched, b)
		}
	}
	for _, d := range strings.Fields(strings.ToLower(entity.Diagnoses)) {
		if len(d) > 4 && strings.Contains(criteria, d) {
			matched = append(matched, d)
			break
		}
	}
	return matched
}

// #endregion matching
