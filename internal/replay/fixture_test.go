package replay

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/review-tuner/internal/params"
)

func TestLoadFixture_RoseHotel(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "rose_hotel.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(f.Attempts) != len(f.ExpectedResults) {
		t.Fatalf("attempts %d != expected %d", len(f.Attempts), len(f.ExpectedResults))
	}
	if !f.StartSettings.Equal(params.DefaultSettings()) {
		t.Error("expected fixture start settings to equal the defaults")
	}

	attempts := make([]Attempt, len(f.Attempts))
	for i := range f.Attempts {
		attempts[i] = f.Attempts[i].ToAttempt()
	}
	results, err := Replay(context.Background(), f.StartSettings, attempts, f.ToConfig())
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	for i, exp := range f.ExpectedResults {
		if results[i].AttemptID != exp.AttemptID {
			t.Errorf("result %d: expected %s, got %s", i, exp.AttemptID, results[i].AttemptID)
		}
		if results[i].ChangeCount != exp.ChangeCount {
			t.Errorf("%s: expected %d changes, got %d", exp.AttemptID, exp.ChangeCount, results[i].ChangeCount)
		}
	}
}

func TestLoadFixture_DefaultsWhenEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	if err := os.WriteFile(path, []byte(`{"description": "nothing"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !f.StartSettings.Equal(params.DefaultSettings()) {
		t.Error("expected default start settings")
	}
	c := f.ToConfig()
	def := DefaultConfig()
	if c.ChronicThreshold != def.ChronicThreshold || c.HighScoreThreshold != def.HighScoreThreshold {
		t.Errorf("expected default thresholds, got %d / %v", c.ChronicThreshold, c.HighScoreThreshold)
	}
}

func TestLoadFixture_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFixture(filepath.Join(dir, "missing.json"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"attempts": [`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFixture(bad); err == nil {
		t.Error("expected parse error")
	}

	outOfDomain := filepath.Join(dir, "domain.json")
	if err := os.WriteFile(outOfDomain, []byte(`{"start_settings": {"h": {"tone": "sarcastic"}}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFixture(outOfDomain); err == nil {
		t.Error("expected schema error for unknown tone")
	}
}
