package report_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"oracletom/internal/report"
)

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "results.db")
	store, err := report.OpenStore(ctx, path)
	if err != nil {
		t.Fatalf("OpenStore returned error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	started := time.Date(2025, 5, 5, 12, 0, 0, 0, time.UTC)
	results := sampleResults()
	run := report.Run{ID: "run-1", StartedAt: started, MJDNow: 60800, Model: "oracle-predict", Summary: report.Summarize(results, 0), Objects: results}
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun returned error: %v", err)
	}

	runs, err := store.Runs(ctx)
	if err != nil {
		t.Fatalf("Runs returned error: %v", err)
	}
	wantRuns := []report.StoredRun{{ID: "run-1", StartedAt: started, MJDNow: 60800, Model: "oracle-predict", Objects: 3, Labelled: 2, Correct: 1}}
	if diff := cmp.Diff(wantRuns, runs); diff != "" {
		t.Fatalf("unexpected runs (-want +got):\n%s", diff)
	}

	predictions, err := store.Predictions(ctx, "run-1")
	if err != nil {
		t.Fatalf("Predictions returned error: %v", err)
	}
	if len(predictions) != 3 {
		t.Fatalf("expected 3 predictions, got %d", len(predictions))
	}
	first := predictions[0]
	if first.SNID != 1 || first.PredictedClass != "SNIa" || !first.Gentype.Valid || first.Gentype.Int64 != 10 {
		t.Fatalf("unexpected first prediction: %+v", first)
	}
	if diff := cmp.Diff(map[string]float64{"SNIa": 0.8, "TDE": 0.2}, first.Probabilities); diff != "" {
		t.Fatalf("unexpected probabilities (-want +got):\n%s", diff)
	}
	if predictions[2].Gentype.Valid {
		t.Fatalf("expected NULL gentype for unlabelled object: %+v", predictions[2])
	}

	if err := store.SaveRun(ctx, run); err == nil {
		t.Fatal("expected duplicate run id to fail")
	}
}

func TestStoreRejectsSecondWriter(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "results.db")
	first, err := report.OpenStore(ctx, path)
	if err != nil {
		t.Fatalf("OpenStore returned error: %v", err)
	}
	if _, err := report.OpenStore(ctx, path); !errors.Is(err, report.ErrStoreLocked) {
		t.Fatalf("expected ErrStoreLocked, got %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	second, err := report.OpenStore(ctx, path)
	if err != nil {
		t.Fatalf("reopen after close: %v", err)
	}
	_ = second.Close()
}
