package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Model produces one row of conditional class probabilities per batch
// object, columns ordered as batch.Classes.
type Model interface {
	Predict(ctx context.Context, batch *Batch) ([][]float64, error)
}

// predictResponse is the JSON both backends return.
type predictResponse struct {
	Probabilities [][]float64 `json:"probabilities"`
	Error         string      `json:"error,omitempty"`
}

func decodeResponse(data []byte) ([][]float64, error) {
	var resp predictResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}
	if msg := strings.TrimSpace(resp.Error); msg != "" {
		return nil, fmt.Errorf("model reported error: %s", msg)
	}
	if resp.Probabilities == nil {
		return nil, fmt.Errorf("model output has no probabilities")
	}
	return resp.Probabilities, nil
}
