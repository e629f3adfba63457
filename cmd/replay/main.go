package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/danielpatrickdp/review-tuner/internal/logging"
	"github.com/danielpatrickdp/review-tuner/internal/params"
	"github.com/danielpatrickdp/review-tuner/internal/replay"
	"github.com/danielpatrickdp/review-tuner/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to review_tuner.db (DB mode)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	patterns := flag.Bool("patterns", false, "enable the success-pattern pass in DB mode")
	flag.Parse()

	if (*dbPath == "" && *fixturePath == "") || (*dbPath != "" && *fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/review_tuner.db [--patterns]")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json")
		os.Exit(2)
	}

	logging.Setup("warn", true)

	var exitCode int
	if *fixturePath != "" {
		exitCode = runFixtureMode(*fixturePath)
	} else {
		exitCode = runDBMode(*dbPath, *patterns)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region db-extract

func runDBMode(dbPath string, usePatterns bool) int {
	st, err := store.NewStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer st.Close()

	ctx := context.Background()
	runs, err := logging.ReadRuns(ctx, st.DB(), 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read runs: %v\n", err)
		return 2
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stderr, "no analyzed runs found in optimization_log")
		return 2
	}

	// Each run is replayed from the settings it was originally given, so only
	// rule-table and learning drift can change the outcome.
	attempts := make([]replay.Attempt, len(runs))
	expected := make([]int, len(runs))
	for i, r := range runs {
		before := r.Before
		attempts[i] = replay.Attempt{
			AttemptID: strconv.FormatInt(r.ID, 10),
			EntityID:  r.EntityID,
			Analysis:  *r.Analysis,
			Start:     &before,
		}
		expected[i] = r.ChangeCount
	}

	config := replay.DefaultConfig()
	config.UseSuccessPatterns = usePatterns
	results, err := replay.Replay(ctx, params.DefaultSettings(), attempts, config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}
	return printComparison(results, expected)
}

// #endregion db-extract

// #region output

func runFixtureMode(path string) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}

	attempts := make([]replay.Attempt, len(f.Attempts))
	for i := range f.Attempts {
		attempts[i] = f.Attempts[i].ToAttempt()
	}

	results, err := replay.Replay(context.Background(), f.StartSettings, attempts, f.ToConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}

	expected := make([]int, len(f.ExpectedResults))
	for i, e := range f.ExpectedResults {
		expected[i] = e.ChangeCount
	}

	return printComparison(results, expected)
}

// printComparison outputs a comparison table of change counts and returns
// the exit code.
func printComparison(results []replay.Result, expected []int) int {
	fmt.Printf("%-12s| %-20s| %-9s| %-9s| %s\n", "Attempt", "Entity", "Expected", "Replayed", "Match")
	fmt.Printf("%-12s+%-21s+%-10s+%-10s+%s\n",
		"------------", "---------------------", "----------", "----------", "------")

	matches := 0
	total := len(results)
	if len(expected) < total {
		total = len(expected)
	}

	for i := 0; i < total; i++ {
		r := results[i]
		match := "DIFF"
		if r.ChangeCount == expected[i] {
			match = "OK"
			matches++
		}
		fmt.Printf("%-12s| %-20s| %-9d| %-9d| %s\n", r.AttemptID, truncate(r.EntityID, 20), expected[i], r.ChangeCount, match)
	}

	s := replay.Summarize(results)
	diverge := total - matches
	fmt.Printf("\nSummary: %d total, %d match, %d diverge (%d adjusted, %d no-op)\n",
		total, matches, diverge, s.Adjusted, s.NoOps)

	if diverge > 0 {
		return 1
	}
	return 0
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "~"
}

// #endregion output
