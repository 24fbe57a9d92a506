package testsupport

import (
	"encoding/json"
	"testing"

	"oracletom/internal/taxonomy"
)

// ConditionalRow returns valid conditional probabilities for tax that put
// weight p on every class along the path to leaf and share the remainder
// evenly among siblings.
func ConditionalRow(t testing.TB, tax *taxonomy.Taxonomy, leaf string, p float64) []float64 {
	t.Helper()
	path, err := tax.Path(leaf)
	if err != nil {
		t.Fatalf("path to %s: %v", leaf, err)
	}
	onPath := make(map[string]bool, len(path))
	for _, name := range path {
		onPath[name] = true
	}
	nodes := tax.Nodes()
	row := make([]float64, len(nodes))
	index := make(map[string]int, len(nodes))
	for i, name := range nodes {
		index[name] = i
	}
	parents := append([]string{tax.Root()}, nodes...)
	for _, parent := range parents {
		children := tax.Children(parent)
		if len(children) == 0 {
			continue
		}
		var favoured string
		for _, child := range children {
			if onPath[child] {
				favoured = child
			}
		}
		for _, child := range children {
			switch {
			case len(children) == 1:
				row[index[child]] = 1
			case favoured == "":
				row[index[child]] = 1 / float64(len(children))
			case child == favoured:
				row[index[child]] = p
			default:
				row[index[child]] = (1 - p) / float64(len(children)-1)
			}
		}
	}
	return row
}

// ModelOutput encodes rows the way the classifier prints them.
func ModelOutput(t testing.TB, rows [][]float64) string {
	t.Helper()
	data, err := json.Marshal(map[string]any{"probabilities": rows})
	if err != nil {
		t.Fatalf("marshal model output: %v", err)
	}
	return string(data)
}
