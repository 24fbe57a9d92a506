package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"oracletom/internal/features"
	"oracletom/internal/logging"
	"oracletom/internal/services"
	"oracletom/internal/taxonomy"
)

// SiblingTolerance is how far a sibling group's conditional probabilities may
// sum away from one.
const SiblingTolerance = 1e-3

// LeafProbability pairs a leaf class with its marginal probability.
type LeafProbability struct {
	Class       string  `json:"class"`
	Probability float64 `json:"probability"`
}

// LevelPrediction is the most likely class at one depth of the tree.
type LevelPrediction struct {
	Depth       int     `json:"depth"`
	Class       string  `json:"class"`
	Probability float64 `json:"probability"`
}

// Prediction is the interpreted model output for one object.
type Prediction struct {
	SNID        int64              `json:"snid"`
	Class       string             `json:"class"`
	Probability float64            `json:"probability"`
	Leaves      []LeafProbability  `json:"leaves"`
	Levels      []LevelPrediction  `json:"levels"`
	Marginals   map[string]float64 `json:"marginals"`
}

// Predictor wraps a Model with batching and output validation.
type Predictor struct {
	model     Model
	taxonomy  *taxonomy.Taxonomy
	maxLength int
	logger    *slog.Logger
}

// NewPredictor constructs a Predictor. maxLength <= 0 selects
// DefaultMaxSequenceLength.
func NewPredictor(model Model, tax *taxonomy.Taxonomy, maxLength int, logger *slog.Logger) (*Predictor, error) {
	if model == nil {
		return nil, services.Wrap(services.ErrConfiguration, "oracle", "new predictor", "model required", nil)
	}
	if tax == nil {
		return nil, services.Wrap(services.ErrConfiguration, "oracle", "new predictor", "taxonomy required", nil)
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxSequenceLength
	}
	return &Predictor{
		model:     model,
		taxonomy:  tax,
		maxLength: maxLength,
		logger:    logging.NewComponentLogger(logger, "oracle"),
	}, nil
}

// Taxonomy returns the class tree predictions are expressed in.
func (p *Predictor) Taxonomy() *taxonomy.Taxonomy {
	return p.taxonomy
}

// Predict runs the model over tables and returns one Prediction per table,
// in input order.
func (p *Predictor) Predict(ctx context.Context, tables []features.EventTable) ([]Prediction, error) {
	if len(tables) == 0 {
		return nil, nil
	}
	batch, err := BuildBatch(tables, p.taxonomy, p.maxLength)
	if err != nil {
		return nil, err
	}
	p.logger.Info("running model", logging.Int("objects", batch.Len()), logging.Int("max_length", batch.MaxLength))
	rows, err := p.model.Predict(ctx, batch)
	if err != nil {
		return nil, err
	}
	if err := p.validate(rows, batch.Len()); err != nil {
		return nil, err
	}

	predictions := make([]Prediction, len(rows))
	for i, row := range rows {
		prediction, err := p.interpret(batch.SNIDs[i], row)
		if err != nil {
			return nil, err
		}
		predictions[i] = prediction
	}
	return predictions, nil
}

// PredictClasses returns only the predicted leaf class per table.
func (p *Predictor) PredictClasses(ctx context.Context, tables []features.EventTable) ([]string, error) {
	predictions, err := p.Predict(ctx, tables)
	if err != nil {
		return nil, err
	}
	classes := make([]string, len(predictions))
	for i, prediction := range predictions {
		classes[i] = prediction.Class
	}
	return classes, nil
}

func (p *Predictor) validate(rows [][]float64, objects int) error {
	nodes := p.taxonomy.Nodes()
	if len(rows) != objects {
		return invalidOutput(fmt.Sprintf("got %d rows for %d objects", len(rows), objects))
	}
	groups := p.taxonomy.SiblingGroups()
	for i, row := range rows {
		if len(row) != len(nodes) {
			return invalidOutput(fmt.Sprintf("row %d has %d columns, want %d", i, len(row), len(nodes)))
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 1 {
				return invalidOutput(fmt.Sprintf("row %d %s: probability %v outside [0,1]", i, nodes[j], v))
			}
		}
		for _, group := range groups {
			sum := 0.0
			for _, idx := range group {
				sum += row[idx]
			}
			if math.Abs(sum-1) > SiblingTolerance {
				parent, _ := p.taxonomy.Parent(nodes[group[0]])
				return invalidOutput(fmt.Sprintf("row %d: children of %s sum to %.6f", i, parent, sum))
			}
		}
	}
	return nil
}

func invalidOutput(message string) error {
	return services.Wrap(services.ErrValidation, "oracle", "validate output", message, nil)
}

func (p *Predictor) interpret(snid int64, conditional []float64) (Prediction, error) {
	marginals, err := p.taxonomy.Marginals(conditional)
	if err != nil {
		return Prediction{}, err
	}
	nodes := p.taxonomy.Nodes()
	byName := make(map[string]float64, len(nodes))
	for i, name := range nodes {
		byName[name] = marginals[i]
	}

	leafNames := p.taxonomy.Leaves()
	leaves := make([]LeafProbability, len(leafNames))
	leafValues := make([]float64, len(leafNames))
	for i, name := range leafNames {
		leaves[i] = LeafProbability{Class: name, Probability: byName[name]}
		leafValues[i] = byName[name]
	}
	best := taxonomy.Argmax(leafValues)
	if best < 0 {
		return Prediction{}, invalidOutput(fmt.Sprintf("SNID %d: no leaf probabilities", snid))
	}

	return Prediction{
		SNID:        snid,
		Class:       leafNames[best],
		Probability: leafValues[best],
		Leaves:      leaves,
		Levels:      p.levels(conditional),
		Marginals:   byName,
	}, nil
}

// levels walks down the tree choosing the most likely child at each step.
func (p *Predictor) levels(conditional []float64) []LevelPrediction {
	nodes := p.taxonomy.Nodes()
	index := make(map[string]int, len(nodes))
	for i, name := range nodes {
		index[name] = i
	}
	var out []LevelPrediction
	current := p.taxonomy.Root()
	probability := 1.0
	for depth := 1; ; depth++ {
		children := p.taxonomy.Children(current)
		if len(children) == 0 {
			return out
		}
		values := make([]float64, len(children))
		for i, child := range children {
			values[i] = conditional[index[child]]
		}
		best := taxonomy.Argmax(values)
		current = children[best]
		probability *= values[best]
		out = append(out, LevelPrediction{Depth: depth, Class: current, Probability: probability})
	}
}
