package clients

// #region imports
import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"trialmatch/internal/model"
)

// #endregion

// #region scorer

// GeminiScorer implements RelevanceScorer over the Gemini API at
// temperature 0, so identical inputs score identically across runs.
type GeminiScorer struct {
	model *genai.GenerativeModel
}

// NewGeminiScorer wraps an existing genai client. modelName defaults to
// gemini-1.5-flash.
func NewGeminiScorer(client *genai.Client, modelName string) *GeminiScorer {
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	m := client.GenerativeModel(modelName)
	m.SetTemperature(0)
	return &GeminiScorer{model: m}
}

// #endregion scorer

// #region score

// Score asks the model to grade trial/patient alignment 0–100, citing
// the supplied evidence passages.
func (s *GeminiScorer) Score(ctx context.Context, entity *model.QueryEntity, candidate model.CandidateItem, evidence []model.Passage) (float64, error) {
	prompt := buildScorePrompt(entity, candidate, evidence)

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return 0, fmt.Errorf("gemini score: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return 0, fmt.Errorf("gemini score: empty response")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	score, err := parseScore(text.String())
	if err != nil {
		return 0, fmt.Errorf("gemini score: %w", err)
	}
	return score, nil
}

// #endregion score

// #region prompt

func buildScorePrompt(entity *model.QueryEntity, candidate model.CandidateItem, evidence []model.Passage) string {
	var b strings.Builder
	b.WriteString("Score how well this clinical trial matches the patient, 0-100.\n\n")
	b.WriteString("PATIENT:\nDiagnoses: " + entity.Diagnoses + "\n")
	b.WriteString("Biomarkers: " + strings.Join(entity.Biomarkers, ", ") + "\n\n")
	b.WriteString("TRIAL " + candidate.ID + ": " + candidate.Title + "\n")
	b.WriteString(truncate(candidate.Description, 600) + "\n")

	if len(evidence) > 0 {
		b.WriteString("\nGUIDELINE EVIDENCE:\n")
		for i, p := range evidence {
			b.WriteString(fmt.Sprintf("[%d] (%s) %s\n", i+1, p.SourceID, truncate(p.Text, 400)))
		}
	}

	b.WriteString("\nAnswer with only the number.")
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// #endregion prompt

// #region parse

var scorePattern = regexp.MustCompile(`\d+(\.\d+)?`)

// parseScore pulls the first number out of the model reply and clamps
// it to [0,100].
func parseScore(text string) (float64, error) {
	match := scorePattern.FindString(text)
	if match == "" {
		return 0, fmt.Errorf("no numeric score in %q", truncate(text, 80))
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return v, nil
}

// #endregion parse
