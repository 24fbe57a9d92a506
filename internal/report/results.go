package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"oracletom/internal/features"
	"oracletom/internal/oracle"
)

// ObjectResult is the outcome for one classified transient.
type ObjectResult struct {
	SNID         int64             `json:"snid"`
	TrueClass    string            `json:"true_class"`
	Gentype      int64             `json:"gentype,omitempty"`
	HasTruth     bool              `json:"has_truth"`
	Observations int               `json:"observations"`
	Saturated    int               `json:"saturated"`
	Prediction   oracle.Prediction `json:"prediction"`
}

// Labelled reports whether the object has a known truth class.
func (r ObjectResult) Labelled() bool {
	return r.HasTruth && r.TrueClass != "" && r.TrueClass != features.UnknownClass
}

// Correct reports whether a labelled object was classified correctly.
func (r ObjectResult) Correct() bool {
	return r.Labelled() && r.TrueClass == r.Prediction.Class
}

// Summary aggregates a run.
type Summary struct {
	Objects  int     `json:"objects"`
	Skipped  int     `json:"skipped"`
	Labelled int     `json:"labelled"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

// Summarize counts labelled and correct results. Accuracy is zero when
// nothing is labelled.
func Summarize(results []ObjectResult, skipped int) Summary {
	summary := Summary{Objects: len(results), Skipped: skipped}
	for _, result := range results {
		if !result.Labelled() {
			continue
		}
		summary.Labelled++
		if result.Correct() {
			summary.Correct++
		}
	}
	if summary.Labelled > 0 {
		summary.Accuracy = float64(summary.Correct) / float64(summary.Labelled)
	}
	return summary
}

// Run is the full record of one classify invocation.
type Run struct {
	ID        string         `json:"run_id"`
	StartedAt time.Time      `json:"started_at"`
	MJDNow    float64        `json:"mjd_now"`
	Model     string         `json:"model"`
	Summary   Summary        `json:"summary"`
	Objects   []ObjectResult `json:"objects"`
}

// WriteJSON encodes run as indented JSON.
func WriteJSON(w io.Writer, run Run) error {
	if run.Objects == nil {
		run.Objects = []ObjectResult{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(run); err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	return nil
}

// RenderPredictions formats one row per object with truth and prediction.
func RenderPredictions(results []ObjectResult, colorize bool) string {
	headers := []string{"SNID", "True Class", "Predicted Class", "Probability", "Match"}
	rows := make([][]string, 0, len(results))
	for _, result := range results {
		rows = append(rows, []string{
			strconv.FormatInt(result.SNID, 10),
			result.TrueClass,
			result.Prediction.Class,
			formatProbability(result.Prediction.Probability),
			matchLabel(result, colorize),
		})
	}
	return RenderTable(headers, rows, []Alignment{AlignRight, AlignLeft, AlignLeft, AlignRight, AlignLeft})
}

func matchLabel(result ObjectResult, colorize bool) string {
	switch {
	case !result.Labelled():
		return paint("n/a", ansiDim, colorize)
	case result.Correct():
		return paint("yes", ansiGreen, colorize)
	default:
		return paint("no", ansiRed, colorize)
	}
}

// RenderLeafProbabilities formats the leaf distribution and per-level path of
// one prediction.
func RenderLeafProbabilities(result ObjectResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "True Class: %s\n", result.TrueClass)
	leafRows := make([][]string, 0, len(result.Prediction.Leaves))
	for _, leaf := range result.Prediction.Leaves {
		leafRows = append(leafRows, []string{leaf.Class, formatProbability(leaf.Probability)})
	}
	b.WriteString(RenderTable([]string{"Class", "Probability"}, leafRows, []Alignment{AlignLeft, AlignRight}))
	b.WriteString("\n")
	levels := make([]string, 0, len(result.Prediction.Levels))
	for _, level := range result.Prediction.Levels {
		levels = append(levels, fmt.Sprintf("%s (%s)", level.Class, formatProbability(level.Probability)))
	}
	if len(levels) > 0 {
		fmt.Fprintf(&b, "Hierarchy: %s\n", strings.Join(levels, " > "))
	}
	fmt.Fprintf(&b, "Predicted Class: %s\n", result.Prediction.Class)
	return b.String()
}

// RenderSummary formats the run totals on one line.
func RenderSummary(summary Summary) string {
	line := fmt.Sprintf("Classified %d objects (%d skipped); %d labelled", summary.Objects, summary.Skipped, summary.Labelled)
	if summary.Labelled > 0 {
		line += fmt.Sprintf(", %d correct, accuracy %.1f%%", summary.Correct, summary.Accuracy*100)
	}
	return line
}

func formatProbability(p float64) string {
	return strconv.FormatFloat(p, 'f', 4, 64)
}
