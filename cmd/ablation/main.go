package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
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
		casesPath  = flag.String("cases", "cases.yaml", "evaluation cases file")
		experiment = flag.String("experiment", "", "named experiment (knowledge_ablation, retrieval_params, ...)")
		configsCSV = flag.String("configs", "", "comma-separated config ids (alternative to -experiment)")
	)
	flag.Parse()

	appCfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := appCfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	configs, primary, secondary, err := resolveConfigs(*experiment, *configsCSV)
	if err != nil {
		log.Fatalf("%v", err)
	}

	cases, err := evaluation.LoadCases(*casesPath)
	if err != nil {
		log.Fatalf("load cases: %v", err)
	}
	log.Printf("[ABLATION] %d configs × %d cases, primary=%s", len(configs), len(cases), primary)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	docs, err := knowledge.LoadDir(appCfg.KnowledgeDir)
	if err != nil {
		log.Fatalf("load knowledge corpus: %v", err)
	}
	scorer, cleanup, err := buildScorer(ctx, appCfg)
	if err != nil {
		log.Fatalf("build scorer: %v", err)
	}
	defer cleanup()

	runner := func(ctx context.Context, cfg ragconf.Config, c evaluation.Case) (*model.RankedList, error) {
		deps := phase.Deps{
			Searcher:        clients.NewCTGovClient(appCfg.Search.BaseURL, appCfg.Search.PageSize, appCfg.SearchTimeout()),
			Retriever:       knowledge.NewRetriever(docs, cfg),
			Scorer:          scorer,
			Extractor:       clients.NewPlainTextExtractor(),
			ExternalTimeout: appCfg.ScorerTimeout(),
		}
		result, err := workflow.New(deps, cfg).Run(ctx, workflow.ModeRank, []byte(c.Narrative))
		if err != nil {
			return nil, err
		}
		if result.Failure != nil {
			return nil, result.Failure
		}
		return result.FinalRanking(), nil
	}

	sweep := &evaluation.Sweep{
		Runner:      runner,
		Workers:     appCfg.Sweep.Workers,
		CellTimeout: appCfg.CellTimeout(),
	}
	started := time.Now()
	results, err := sweep.Run(ctx, configs, cases)
	if err != nil {
		log.Fatalf("sweep: %v", err)
	}
	log.Printf("[ABLATION] sweep finished in %s", time.Since(started))

	printSummary(results, primary, secondary)
	printComparisons(results, primary)
	writeArtifacts(appCfg, results, cases)
}

// #endregion main

// #region config-resolution

func resolveConfigs(experiment, configsCSV string) ([]ragconf.Config, string, string, error) {
	if experiment != "" {
		exp, err := ragconf.ExperimentByName(experiment)
		if err != nil {
			return nil, "", "", err
		}
		configs, err := ragconf.ExperimentConfigs(experiment)
		if err != nil {
			return nil, "", "", err
		}
		return configs, exp.PrimaryMetric, exp.SecondaryMetric, nil
	}
	if configsCSV == "" {
		return nil, "", "", fmt.Errorf("need -experiment or -configs (known experiments: %s)",
			strings.Join(ragconf.ExperimentNames(), ", "))
	}
	var configs []ragconf.Config
	for _, id := range strings.Split(configsCSV, ",") {
		cfg, err := ragconf.ByID(strings.TrimSpace(id))
		if err != nil {
			return nil, "", "", err
		}
		configs = append(configs, cfg)
	}
	return configs, "precision@3", "mrr", nil
}

// #endregion config-resolution

// #region scorer

func buildScorer(ctx context.Context, appCfg *config.AppConfig) (clients.RelevanceScorer, func(), error) {
	cleanup := func() {}
	if appCfg.Scorer.Type != "gemini" {
		return clients.NewHeuristicScorer(), cleanup, nil
	}
	key := os.Getenv(appCfg.Scorer.APIKeyEnv)
	if key == "" {
		return nil, cleanup, fmt.Errorf("scorer gemini needs %s", appCfg.Scorer.APIKeyEnv)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return nil, cleanup, fmt.Errorf("gemini client: %w", err)
	}
	return clients.NewGeminiScorer(client, appCfg.Scorer.Model), func() { client.Close() }, nil
}

// #endregion scorer

// #region reporting

func printSummary(results []*evaluation.ExperimentResult, primary, secondary string) {
	rows := evaluation.Summarize(results, primary, secondary)

	fmt.Printf("\n%-20s %12s %12s %9s\n", "config", primary, secondary, "failures")
	fmt.Println(strings.Repeat("-", 56))
	byID := make(map[string]*evaluation.ExperimentResult, len(results))
	for _, r := range results {
		byID[r.ConfigID] = r
	}
	for _, row := range rows {
		r := byID[row.ConfigID]
		fmt.Printf("%-20s %12s %12s %9d\n",
			row.ConfigID, r.Summary(primary), r.Summary(secondary), row.Failures)
	}

	for _, r := range results {
		for _, c := range r.Cases {
			if len(c.Uncovered) > 0 {
				log.Printf("[ABLATION] %s/%s: ground truth never surfaced: %s",
					c.ConfigID, c.CaseID, strings.Join(c.Uncovered, ", "))
			}
		}
	}
}

// printComparisons tests every config against the control arm when the
// sweep includes one.
func printComparisons(results []*evaluation.ExperimentResult, metric string) {
	var control *evaluation.ExperimentResult
	for _, r := range results {
		if r.ConfigID == "control" {
			control = r
		}
	}
	if control == nil {
		return
	}

	fmt.Printf("\nPaired comparisons vs control (%s):\n", metric)
	for _, r := range results {
		if r.ConfigID == "control" {
			continue
		}
		cmp, err := evaluation.Compare(control, r, metric)
		if err != nil {
			log.Printf("[ABLATION] compare %s: %v", r.ConfigID, err)
			continue
		}
		marker := " "
		if cmp.Significant() {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, cmp)
	}
}

// #endregion reporting

// #region artifacts

func writeArtifacts(appCfg *config.AppConfig, results []*evaluation.ExperimentResult, cases []evaluation.Case) {
	store, err := artifact.Open(appCfg.ArtifactDB)
	if err != nil {
		log.Fatalf("open artifact store: %v", err)
	}
	defer store.Close()

	truthByCase := make(map[string]model.GroundTruthSet, len(cases))
	for _, c := range cases {
		truthByCase[c.ID] = c.GroundTruth
	}

	runID := uuid.New().String()
	written := 0
	for _, r := range results {
		for _, c := range r.Cases {
			if c.Err != nil {
				continue
			}
			ranking := make([]artifact.RankedEntry, len(c.RankedIDs))
			truth := truthByCase[c.CaseID]
			for i, id := range c.RankedIDs {
				ranking[i] = artifact.RankedEntry{Rank: i + 1, ID: id, IsGroundTruth: truth.Contains(id)}
			}
			rec := artifact.Record{
				RunID:    runID,
				ConfigID: c.ConfigID,
				CaseID:   c.CaseID,
				Metrics:  c.Metrics,
				Ranking:  ranking,
			}
			if err := store.WriteRun(rec); err != nil {
				log.Fatalf("write artifact %s/%s: %v", c.ConfigID, c.CaseID, err)
			}
			written++
		}
	}
	log.Printf("[ABLATION] %d artifacts written to %s (run %s)", written, appCfg.ArtifactDB, runID)
}

// #endregion artifacts
