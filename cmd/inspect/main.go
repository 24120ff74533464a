package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"trialmatch/internal/artifact"
	_ "modernc.org/sqlite"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to artifacts.db")
	last := flag.Int("last", 20, "show N most recent artifacts")
	runID := flag.String("run", "", "show all artifacts for one run id")
	configID := flag.String("config", "", "show metric history for one config id")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/artifacts.db [--last N] [--run id] [--config id] [--json]")
		os.Exit(2)
	}

	store, err := artifact.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	var mode func() error
	switch {
	case *runID != "":
		mode = func() error { return runDetail(store, *runID, *jsonOut) }
	case *configID != "":
		mode = func() error { return configHistory(store, *configID, *jsonOut) }
	default:
		mode = func() error { return listRecent(store, *last, *jsonOut) }
	}
	if err := mode(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

func listRecent(store *artifact.Store, last int, jsonOut bool) error {
	recs, err := store.ListRuns(last)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(os.Stderr, "no artifacts found")
		return nil
	}
	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(recs)
	}

	fmt.Printf("%-36s %-18s %-16s %-20s %8s %6s\n", "run", "config", "case", "created", "p@3", "mrr")
	fmt.Println(strings.Repeat("-", 108))
	for _, r := range recs {
		fmt.Printf("%-36s %-18s %-16s %-20s %8.3f %6.3f\n",
			r.RunID, r.ConfigID, r.CaseID,
			r.CreatedAt.Format("2006-01-02T15:04:05Z"),
			r.Metrics["precision@3"], r.Metrics["mrr"])
	}
	return nil
}

// #endregion list-mode

// #region run-detail

func runDetail(store *artifact.Store, runID string, jsonOut bool) error {
	recs, err := store.RunRecords(runID)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return fmt.Errorf("no artifacts for run %s", runID)
	}
	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(recs)
	}

	for _, r := range recs {
		fmt.Printf("\n%s / %s  (%s)\n", r.ConfigID, r.CaseID, r.CreatedAt.Format("2006-01-02T15:04:05Z"))

		names := make([]string, 0, len(r.Metrics))
		for n := range r.Metrics {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Printf("  %-16s %.3f\n", n, r.Metrics[n])
		}

		fmt.Println("  ranking:")
		for _, e := range r.Ranking {
			marker := " "
			if e.IsGroundTruth {
				marker = "*"
			}
			fmt.Printf("  %s %2d. %-14s %7.2f\n", marker, e.Rank, e.ID, e.Score)
		}
	}
	return nil
}

// #endregion run-detail

// #region config-history

func configHistory(store *artifact.Store, configID string, jsonOut bool) error {
	recs, err := store.ConfigHistory(configID)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return fmt.Errorf("no artifacts for config %s", configID)
	}
	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(recs)
	}

	fmt.Printf("history for %s (%d artifacts):\n", configID, len(recs))
	fmt.Printf("%-20s %-16s %8s %6s %7s\n", "created", "case", "p@3", "mrr", "ndcg@5")
	fmt.Println(strings.Repeat("-", 62))
	for _, r := range recs {
		fmt.Printf("%-20s %-16s %8.3f %6.3f %7.3f\n",
			r.CreatedAt.Format("2006-01-02T15:04:05Z"), r.CaseID,
			r.Metrics["precision@3"], r.Metrics["mrr"], r.Metrics["ndcg@5"])
	}
	return nil
}

// #endregion config-history
