package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/danielpatrickdp/review-tuner/internal/logging"
	"github.com/danielpatrickdp/review-tuner/internal/optimizer"
	"github.com/danielpatrickdp/review-tuner/internal/patterns"
	"github.com/danielpatrickdp/review-tuner/internal/replay"
	"github.com/danielpatrickdp/review-tuner/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to review_tuner.db")
	last := flag.Int("last", 10, "number of most recent analyzed runs to export")
	outPath := flag.String("out", "", "output fixture JSON path")
	flag.Parse()

	if *dbPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/db --out path/to/fixture.json [--last N]")
		os.Exit(2)
	}

	if err := run(*dbPath, *last, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region extract

func run(dbPath string, last int, outPath string) error {
	st, err := store.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	runs, err := logging.ReadRuns(ctx, st.DB(), last)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return fmt.Errorf("no analyzed runs found in last %d optimization_log entries", last)
	}
	fmt.Printf("Found %d analyzed runs\n", len(runs))

	// Active patterns at export time seed the replay, so the pattern pass
	// sees what production saw.
	seeds, err := st.ListPatterns(ctx, patterns.Filter{ActiveOnly: true})
	if err != nil {
		return err
	}

	return writeFixture(buildFixture(runs, seeds), outPath)
}

// #endregion extract

// #region output

func buildFixture(runs []logging.LoggedRun, seeds []patterns.SuccessPattern) replay.Fixture {
	attempts := make([]replay.FixtureAttempt, len(runs))
	expected := make([]replay.FixtureExpectedResult, len(runs))

	usedPatterns := false
	for i, r := range runs {
		id := strconv.FormatInt(r.ID, 10)
		attempts[i] = replay.FixtureAttempt{
			AttemptID: id,
			EntityID:  r.EntityID,
			Analysis:  *r.Analysis,
		}
		expected[i] = replay.FixtureExpectedResult{
			AttemptID:   id,
			ChangeCount: r.ChangeCount,
		}
		for _, c := range r.Changes {
			if c.Pass == optimizer.PassPattern {
				usedPatterns = true
			}
		}
	}

	return replay.Fixture{
		Description:   fmt.Sprintf("Export of %d optimization runs (ids %d-%d)", len(runs), runs[0].ID, runs[len(runs)-1].ID),
		StartSettings: runs[0].Before,
		Config: replay.FixtureConfig{
			ChronicThreshold:   optimizer.DefaultChronicThreshold,
			HighScoreThreshold: patterns.DefaultConfig().HighScoreThreshold,
			UseSuccessPatterns: usedPatterns,
		},
		SeedPatterns:    seeds,
		Attempts:        attempts,
		ExpectedResults: expected,
	}
}

func writeFixture(fixture replay.Fixture, outPath string) error {
	data, err := json.MarshalIndent(fixture, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}

	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}

	fmt.Printf("Wrote fixture to %s (%d bytes, %d attempts)\n", outPath, len(data), len(fixture.Attempts))
	return nil
}

// #endregion output
