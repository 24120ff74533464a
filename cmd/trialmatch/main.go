package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/generative-ai-go/genai"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"

	"trialmatch/internal/artifact"
	"trialmatch/internal/clients"
	"trialmatch/internal/config"
	"trialmatch/internal/evaluation"
	"trialmatch/internal/knowledge"
	"trialmatch/internal/model"
	"trialmatch/internal/phase"
	"trialmatch/internal/ragconf"
	"trialmatch/internal/workflow"
)

// #region main
func main() {
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", "config.yaml", "application config file")
		modeFlag   = flag.String("mode", "full", "pipeline mode: control, rank or full")
		inputPath  = flag.String("input", "", "patient narrative file")
		casesPath  = flag.String("cases", "", "cases file (evaluate against ground truth)")
		caseID     = flag.String("case", "", "case id inside -cases")
		ragID      = flag.String("rag", "current_system", "retrieval configuration id")
	)
	flag.Parse()

	appCfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := appCfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	mode, err := workflow.ParseMode(*modeFlag)
	if err != nil {
		log.Fatalf("%v", err)
	}
	ragCfg, err := ragconf.ByID(*ragID)
	if err != nil {
		log.Fatalf("%v", err)
	}

	narrative, truth, haveTruth, err := loadInput(*inputPath, *casesPath, *caseID)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx := context.Background()
	deps, cleanup, err := buildDeps(ctx, appCfg, ragCfg)
	if err != nil {
		log.Fatalf("build pipeline: %v", err)
	}
	defer cleanup()

	result, err := workflow.New(deps, ragCfg).Run(ctx, mode, narrative)
	if err != nil {
		log.Fatalf("run: %v", err)
	}
	if result.Failure != nil {
		log.Fatalf("pipeline halted: %v", result.Failure)
	}

	printRanking(result)

	if haveTruth {
		ranking := result.FinalRanking()
		metrics := evaluation.Score(ranking, truth)
		fmt.Println("\nMetrics:")
		for _, name := range []string{"precision@3", "precision@5", "mrr", "ndcg@5", "hit_rate@5"} {
			fmt.Printf("  %-12s %.3f\n", name, metrics[name])
		}

		store, err := artifact.Open(appCfg.ArtifactDB)
		if err != nil {
			log.Fatalf("open artifact store: %v", err)
		}
		defer store.Close()
		rec := artifact.Record{
			RunID:    result.RunID.String(),
			ConfigID: ragCfg.ID,
			CaseID:   *caseID,
			Metrics:  metrics,
			Ranking:  artifact.BuildRanking(ranking, truth),
		}
		if err := store.WriteRun(rec); err != nil {
			log.Fatalf("write artifact: %v", err)
		}
		fmt.Printf("\nArtifact written to %s (run %s)\n", appCfg.ArtifactDB, result.RunID)
	}
}

// #endregion main

// #region input

func loadInput(inputPath, casesPath, caseID string) ([]byte, model.GroundTruthSet, bool, error) {
	if casesPath != "" {
		cases, err := evaluation.LoadCases(casesPath)
		if err != nil {
			return nil, model.GroundTruthSet{}, false, err
		}
		for _, c := range cases {
			if c.ID == caseID {
				return []byte(c.Narrative), c.GroundTruth, true, nil
			}
		}
		return nil, model.GroundTruthSet{}, false, fmt.Errorf("case %q not found in %s", caseID, casesPath)
	}
	if inputPath == "" {
		return nil, model.GroundTruthSet{}, false, fmt.Errorf("need -input or -cases with -case")
	}
	raw, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, model.GroundTruthSet{}, false, fmt.Errorf("read narrative: %w", err)
	}
	return raw, model.GroundTruthSet{}, false, nil
}

// #endregion input

// #region wiring

// buildDeps assembles the phase collaborators from the app config.
func buildDeps(ctx context.Context, appCfg *config.AppConfig, ragCfg ragconf.Config) (phase.Deps, func(), error) {
	cleanup := func() {}

	searcher := clients.NewCTGovClient(appCfg.Search.BaseURL, appCfg.Search.PageSize, appCfg.SearchTimeout())

	docs, err := knowledge.LoadDir(appCfg.KnowledgeDir)
	if err != nil {
		return phase.Deps{}, cleanup, fmt.Errorf("load knowledge corpus: %w", err)
	}
	retriever := knowledge.NewRetriever(docs, ragCfg)
	log.Printf("[SETUP] knowledge corpus: %d documents, %d chunks", len(docs), retriever.ChunkCount())

	var scorer clients.RelevanceScorer = clients.NewHeuristicScorer()
	if appCfg.Scorer.Type == "gemini" {
		key := os.Getenv(appCfg.Scorer.APIKeyEnv)
		if key == "" {
			return phase.Deps{}, cleanup, fmt.Errorf("scorer gemini needs %s", appCfg.Scorer.APIKeyEnv)
		}
		client, err := genai.NewClient(ctx, option.WithAPIKey(key))
		if err != nil {
			return phase.Deps{}, cleanup, fmt.Errorf("gemini client: %w", err)
		}
		cleanup = func() { client.Close() }
		scorer = clients.NewGeminiScorer(client, appCfg.Scorer.Model)
	}

	return phase.Deps{
		Searcher:        searcher,
		Retriever:       retriever,
		Scorer:          scorer,
		Extractor:       clients.NewPlainTextExtractor(),
		ExternalTimeout: appCfg.ScorerTimeout(),
	}, cleanup, nil
}

// #endregion wiring

// #region output

func printRanking(result *workflow.RunResult) {
	ranking := result.FinalRanking()
	fmt.Printf("Run %s (mode=%s) ranked %d trials:\n", result.RunID, result.Mode, ranking.Len())
	for i, it := range ranking.TopN(10) {
		fmt.Printf("%2d. %-12s %6.1f  %s\n", i+1, it.ID, it.Score, it.Title)
		if it.RankExplanation != "" {
			fmt.Printf("    %s\n", it.RankExplanation)
		}
	}

	if report := result.Eligibility(); report != nil {
		fmt.Println("\nEligibility:")
		for _, a := range report.Assessments {
			fmt.Printf("  %-12s %s\n", a.CandidateID, a.Status)
		}
		for _, r := range report.Recommendations {
			fmt.Printf("  -> %s\n", r)
		}
	}
}

// #endregion output
