package oracle_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"oracletom/internal/features"
	"oracletom/internal/oracle"
	"oracletom/internal/services"
	"oracletom/internal/taxonomy"
	"oracletom/internal/testsupport"
)

type stubModel struct {
	rows  [][]float64
	err   error
	calls int
	last  *oracle.Batch
}

func (s *stubModel) Predict(_ context.Context, batch *oracle.Batch) ([][]float64, error) {
	s.calls++
	s.last = batch
	return s.rows, s.err
}

func TestPredictorDerivesLeafProbabilities(t *testing.T) {
	tax := smallTaxonomy(t)
	model := &stubModel{rows: [][]float64{{0.6, 0.4, 0.25, 0.75}}}
	predictor, err := oracle.NewPredictor(model, tax, 8, nil)
	if err != nil {
		t.Fatalf("NewPredictor returned error: %v", err)
	}
	predictions, err := predictor.Predict(context.Background(), []features.EventTable{lightCurve(11, "g")})
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	if len(predictions) != 1 {
		t.Fatalf("expected 1 prediction, got %d", len(predictions))
	}
	got := predictions[0]
	if got.SNID != 11 || got.Class != "A2" {
		t.Fatalf("unexpected prediction: %+v", got)
	}
	wantLeaves := []oracle.LeafProbability{{Class: "B", Probability: 0.4}, {Class: "A1", Probability: 0.15}, {Class: "A2", Probability: 0.45}}
	if diff := cmp.Diff(wantLeaves, got.Leaves, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Fatalf("unexpected leaves (-want +got):\n%s", diff)
	}
	wantLevels := []oracle.LevelPrediction{{Depth: 1, Class: "A", Probability: 0.6}, {Depth: 2, Class: "A2", Probability: 0.45}}
	if diff := cmp.Diff(wantLevels, got.Levels, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Fatalf("unexpected levels (-want +got):\n%s", diff)
	}
	if model.last.MaxLength != 8 {
		t.Fatalf("expected max length 8, got %d", model.last.MaxLength)
	}
}

func TestPredictorTiesResolveInTaxonomyOrder(t *testing.T) {
	tax := smallTaxonomy(t)
	// A1 and A2 tie; the leaf listed first wins.
	model := &stubModel{rows: [][]float64{{1, 0, 0.5, 0.5}}}
	predictor, err := oracle.NewPredictor(model, tax, 4, nil)
	if err != nil {
		t.Fatalf("NewPredictor returned error: %v", err)
	}
	classes, err := predictor.PredictClasses(context.Background(), []features.EventTable{lightCurve(1, "r")})
	if err != nil {
		t.Fatalf("PredictClasses returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"A1"}, classes); diff != "" {
		t.Fatalf("unexpected classes (-want +got):\n%s", diff)
	}
}

func TestPredictorRejectsInvalidOutput(t *testing.T) {
	cases := map[string][][]float64{
		"row count":    {{0.6, 0.4, 0.5, 0.5}, {0.6, 0.4, 0.5, 0.5}},
		"column count": {{0.6, 0.4, 0.5}},
		"range":        {{1.2, -0.2, 0.5, 0.5}},
		"sibling sum":  {{0.6, 0.4, 0.5, 0.6}},
	}
	for name, rows := range cases {
		t.Run(name, func(t *testing.T) {
			predictor, err := oracle.NewPredictor(&stubModel{rows: rows}, smallTaxonomy(t), 4, nil)
			if err != nil {
				t.Fatalf("NewPredictor returned error: %v", err)
			}
			_, err = predictor.Predict(context.Background(), []features.EventTable{lightCurve(1, "g")})
			if !errors.Is(err, services.ErrValidation) || errors.Is(err, services.ErrExternalTool) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestPredictorEmptyInputSkipsModel(t *testing.T) {
	model := &stubModel{}
	predictor, err := oracle.NewPredictor(model, smallTaxonomy(t), 4, nil)
	if err != nil {
		t.Fatalf("NewPredictor returned error: %v", err)
	}
	predictions, err := predictor.Predict(context.Background(), nil)
	if err != nil || len(predictions) != 0 {
		t.Fatalf("expected no predictions, got %v, %v", predictions, err)
	}
	if model.calls != 0 {
		t.Fatalf("model should not be called for empty input")
	}
}

func TestPredictorDefaultTaxonomy(t *testing.T) {
	tax := taxonomy.Default()
	row := testsupport.ConditionalRow(t, tax, "TDE", 0.9)
	predictor, err := oracle.NewPredictor(&stubModel{rows: [][]float64{row}}, tax, 16, nil)
	if err != nil {
		t.Fatalf("NewPredictor returned error: %v", err)
	}
	predictions, err := predictor.Predict(context.Background(), []features.EventTable{lightCurve(1, "g", "r", "i")})
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	got := predictions[0]
	if got.Class != "TDE" {
		t.Fatalf("expected TDE, got %s", got.Class)
	}
	if len(got.Levels) != 3 || got.Levels[0].Class != "Transient" || got.Levels[1].Class != "Long" {
		t.Fatalf("unexpected levels: %+v", got.Levels)
	}
	sum := 0.0
	for _, leaf := range got.Leaves {
		sum += leaf.Probability
	}
	if diff := cmp.Diff(1.0, sum, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Fatalf("leaf probabilities should sum to one (-want +got):\n%s", diff)
	}
}

func TestNewPredictorRequiresModel(t *testing.T) {
	if _, err := oracle.NewPredictor(nil, smallTaxonomy(t), 4, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
