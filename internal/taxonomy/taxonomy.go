// Package taxonomy holds the hierarchical class tree ORACLE predicts over and
// the static feature order the model expects.
package taxonomy

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed taxonomy.yaml
var defaultDocument []byte

type nodeDoc struct {
	Name     string    `yaml:"name"`
	Children []nodeDoc `yaml:"children"`
}

type document struct {
	Root           nodeDoc  `yaml:"root"`
	StaticFeatures []string `yaml:"static_features"`
}

// Taxonomy is an immutable class tree.
type Taxonomy struct {
	root     string
	nodes    []string
	index    map[string]int
	parent   map[string]string
	children map[string][]string
	leaves   []string
	depth    int

	// StaticFeatures is the static-vector column order.
	StaticFeatures []string
}

// Default returns the embedded ELAsTiCC taxonomy.
func Default() *Taxonomy {
	tax, err := Parse(defaultDocument)
	if err != nil {
		panic(fmt.Sprintf("embedded taxonomy: %v", err))
	}
	return tax
}

// Load reads a taxonomy file, or returns Default when path is empty.
func Load(path string) (*Taxonomy, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy: %w", err)
	}
	tax, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("taxonomy %s: %w", path, err)
	}
	return tax, nil
}

// Parse decodes a YAML taxonomy document.
func Parse(data []byte) (*Taxonomy, error) {
	var doc document
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode taxonomy: %w", err)
	}
	return build(doc)
}

func build(doc document) (*Taxonomy, error) {
	rootName := strings.TrimSpace(doc.Root.Name)
	if rootName == "" {
		return nil, errors.New("root.name is required")
	}
	if len(doc.Root.Children) == 0 {
		return nil, errors.New("taxonomy has no classes")
	}
	t := &Taxonomy{
		root:     rootName,
		index:    make(map[string]int),
		parent:   make(map[string]string),
		children: make(map[string][]string),
	}
	seen := map[string]struct{}{rootName: {}}

	type queued struct {
		doc   nodeDoc
		name  string
		depth int
	}
	queue := []queued{{doc: doc.Root, name: rootName}}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range current.doc.Children {
			name := strings.TrimSpace(child.Name)
			if name == "" {
				return nil, fmt.Errorf("class under %q has an empty name", current.name)
			}
			if _, dup := seen[name]; dup {
				return nil, fmt.Errorf("duplicate class %q", name)
			}
			seen[name] = struct{}{}
			t.index[name] = len(t.nodes)
			t.nodes = append(t.nodes, name)
			t.parent[name] = current.name
			t.children[current.name] = append(t.children[current.name], name)
			if len(child.Children) == 0 {
				t.leaves = append(t.leaves, name)
				if current.depth+1 > t.depth {
					t.depth = current.depth + 1
				}
			}
			queue = append(queue, queued{doc: child, name: name, depth: current.depth + 1})
		}
	}

	if len(doc.StaticFeatures) == 0 {
		return nil, errors.New("static_features must not be empty")
	}
	features := make(map[string]struct{}, len(doc.StaticFeatures))
	for _, name := range doc.StaticFeatures {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, errors.New("static_features contains an empty name")
		}
		if _, dup := features[name]; dup {
			return nil, fmt.Errorf("duplicate static feature %q", name)
		}
		features[name] = struct{}{}
		t.StaticFeatures = append(t.StaticFeatures, name)
	}
	return t, nil
}

// Root returns the root class name.
func (t *Taxonomy) Root() string { return t.root }

// Nodes returns every non-root class in breadth-first order. This is the
// column order of the model's conditional probabilities.
func (t *Taxonomy) Nodes() []string {
	return append([]string(nil), t.nodes...)
}

// Leaves returns the leaf classes in Nodes order.
func (t *Taxonomy) Leaves() []string {
	return append([]string(nil), t.leaves...)
}

// Children returns the direct children of name in declaration order.
func (t *Taxonomy) Children(name string) []string {
	return append([]string(nil), t.children[name]...)
}

// Parent returns the parent of name. ok is false for the root and unknown names.
func (t *Taxonomy) Parent(name string) (string, bool) {
	p, ok := t.parent[name]
	return p, ok
}

// Contains reports whether name is a class in the tree, root included.
func (t *Taxonomy) Contains(name string) bool {
	if name == t.root {
		return true
	}
	_, ok := t.index[name]
	return ok
}

// IsLeaf reports whether name is a leaf class.
func (t *Taxonomy) IsLeaf(name string) bool {
	_, known := t.index[name]
	return known && len(t.children[name]) == 0
}

// Depth returns the number of edges on the longest root-to-leaf path.
func (t *Taxonomy) Depth() int { return t.depth }

// Path returns the classes from the root's child down to name inclusive.
func (t *Taxonomy) Path(name string) ([]string, error) {
	if _, ok := t.index[name]; !ok {
		return nil, fmt.Errorf("unknown class %q", name)
	}
	var path []string
	for current := name; current != t.root; current = t.parent[current] {
		path = append(path, current)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// SiblingGroups returns, for the root and every internal class, the Nodes
// indices of its children.
func (t *Taxonomy) SiblingGroups() [][]int {
	parents := append([]string{t.root}, t.nodes...)
	var groups [][]int
	for _, parent := range parents {
		kids := t.children[parent]
		if len(kids) == 0 {
			continue
		}
		group := make([]int, len(kids))
		for i, kid := range kids {
			group[i] = t.index[kid]
		}
		groups = append(groups, group)
	}
	return groups
}

// Marginals converts conditional probabilities (one per Nodes entry) into
// unconditional probabilities: each class's value times its ancestors'.
func (t *Taxonomy) Marginals(conditional []float64) ([]float64, error) {
	if len(conditional) != len(t.nodes) {
		return nil, fmt.Errorf("expected %d conditional probabilities, got %d", len(t.nodes), len(conditional))
	}
	out := make([]float64, len(t.nodes))
	// Nodes is breadth-first, so a parent is always resolved before its children.
	for i, name := range t.nodes {
		p := conditional[i]
		if parent := t.parent[name]; parent != t.root {
			p *= out[t.index[parent]]
		}
		out[i] = p
	}
	return out, nil
}

// LeafProbabilities returns the marginal probability of every leaf in Leaves order.
func (t *Taxonomy) LeafProbabilities(conditional []float64) ([]float64, error) {
	marginals, err := t.Marginals(conditional)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(t.leaves))
	for i, leaf := range t.leaves {
		out[i] = marginals[t.index[leaf]]
	}
	return out, nil
}

// Argmax returns the index of the largest value. Ties resolve to the lowest
// index; NaN values never win.
func Argmax(values []float64) int {
	best := -1
	bestValue := math.Inf(-1)
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if best == -1 || v > bestValue {
			best, bestValue = i, v
		}
	}
	return best
}
