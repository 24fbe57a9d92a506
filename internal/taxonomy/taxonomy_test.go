package taxonomy_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"oracletom/internal/taxonomy"
)

const smallTree = `
root:
  name: All
  children:
    - name: A
      children:
        - name: A1
        - name: A2
    - name: B
static_features: [X, Y]
`

func TestDefaultTaxonomyShape(t *testing.T) {
	tax := taxonomy.Default()
	if tax.Root() != "Alert" {
		t.Fatalf("unexpected root %q", tax.Root())
	}
	nodes := tax.Nodes()
	if len(nodes) != 25 {
		t.Fatalf("expected 25 non-root classes, got %d", len(nodes))
	}
	if diff := cmp.Diff([]string{"Transient", "Variable", "SN", "Fast", "Long", "Periodic", "AGN", "SNIa"}, nodes[:8]); diff != "" {
		t.Fatalf("unexpected breadth-first prefix (-want +got):\n%s", diff)
	}
	if got := len(tax.Leaves()); got != 20 {
		t.Fatalf("expected 20 leaves, got %d", got)
	}
	if tax.Depth() != 3 {
		t.Fatalf("expected depth 3, got %d", tax.Depth())
	}
	if got := tax.StaticFeatures; len(got) != 18 || got[0] != "MWEBV" || got[17] != "HOSTGAL_MAG_Y" {
		t.Fatalf("unexpected static features: %v", got)
	}
	path, err := tax.Path("TDE")
	if err != nil {
		t.Fatalf("Path returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"Transient", "Long", "TDE"}, path); diff != "" {
		t.Fatalf("unexpected path (-want +got):\n%s", diff)
	}
	if !tax.IsLeaf("AGN") || tax.IsLeaf("Periodic") || tax.IsLeaf("Alert") {
		t.Fatal("unexpected leaf classification")
	}
}

func TestLeafProbabilitiesMultiplyAlongPath(t *testing.T) {
	tax, err := taxonomy.Parse([]byte(smallTree))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"A", "B", "A1", "A2"}, tax.Nodes()); diff != "" {
		t.Fatalf("unexpected nodes (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"B", "A1", "A2"}, tax.Leaves()); diff != "" {
		t.Fatalf("unexpected leaves (-want +got):\n%s", diff)
	}

	leaves, err := tax.LeafProbabilities([]float64{0.6, 0.4, 0.25, 0.75})
	if err != nil {
		t.Fatalf("LeafProbabilities returned error: %v", err)
	}
	want := []float64{0.4, 0.15, 0.45}
	if diff := cmp.Diff(want, leaves, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Fatalf("unexpected leaf probabilities (-want +got):\n%s", diff)
	}

	if _, err := tax.LeafProbabilities([]float64{1}); err == nil {
		t.Fatal("expected error for wrong width")
	}
	if diff := cmp.Diff([][]int{{0, 1}, {2, 3}}, tax.SiblingGroups()); diff != "" {
		t.Fatalf("unexpected sibling groups (-want +got):\n%s", diff)
	}
}

func TestParseRejectsInvalidTrees(t *testing.T) {
	cases := map[string]string{
		"duplicate":     "root:\n  name: R\n  children:\n    - name: A\n    - name: A\nstatic_features: [X]\n",
		"empty":         "root:\n  name: R\nstatic_features: [X]\n",
		"no root name":  "root:\n  children:\n    - name: A\nstatic_features: [X]\n",
		"no statics":    "root:\n  name: R\n  children:\n    - name: A\n",
		"dup statics":   "root:\n  name: R\n  children:\n    - name: A\nstatic_features: [X, X]\n",
		"unknown field": "root:\n  name: R\n  children:\n    - name: A\nstatic_features: [X]\nextra: 1\n",
		"root repeated": "root:\n  name: R\n  children:\n    - name: R\nstatic_features: [X]\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := taxonomy.Parse([]byte(doc)); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.yaml")
	if err := os.WriteFile(path, []byte(smallTree), 0o644); err != nil {
		t.Fatalf("write taxonomy: %v", err)
	}
	tax, err := taxonomy.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if tax.Root() != "All" {
		t.Fatalf("unexpected root %q", tax.Root())
	}
	if tax, err := taxonomy.Load(""); err != nil || tax.Root() != "Alert" {
		t.Fatalf("expected default taxonomy, got %v, %v", tax, err)
	}
	_, err = taxonomy.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "read taxonomy") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestArgmaxPrefersFirstOnTies(t *testing.T) {
	if got := taxonomy.Argmax([]float64{0.2, 0.4, 0.4}); got != 1 {
		t.Fatalf("expected index 1, got %d", got)
	}
	if got := taxonomy.Argmax(nil); got != -1 {
		t.Fatalf("expected -1 for empty input, got %d", got)
	}
}
