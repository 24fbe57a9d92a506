package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"oracletom/internal/config"
	"oracletom/internal/features"
	"oracletom/internal/logging"
	"oracletom/internal/oracle"
	"oracletom/internal/report"
	"oracletom/internal/services"
	"oracletom/internal/taxonomy"
	"oracletom/internal/tom"
)

// Options configures Run. Only Config is required; the remaining
// collaborators are built from it when nil.
type Options struct {
	Config   *config.Config
	Querier  tom.Querier
	Model    oracle.Model
	Taxonomy *taxonomy.Taxonomy
	Logger   *slog.Logger

	// Out receives the human-readable report, or the JSON document when
	// JSON is set. Nil discards output.
	Out      io.Writer
	JSON     bool
	Colorize bool

	// Now defaults to time.Now.
	Now func() time.Time
}

// RunResult is everything a run produced.
type RunResult struct {
	Run     report.Run
	Sources []*features.Source
	// Skipped counts objects that failed light-curve assembly.
	Skipped int
	// ResultsDB is the SQLite file written, or "".
	ResultsDB string
}

// Run executes one classification pass.
func Run(ctx context.Context, opts Options) (*RunResult, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "run", "config required", nil)
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}

	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	component := logging.NewComponentLogger(opts.Logger, "pipeline")
	logger := logging.WithContext(ctx, component)

	mjdNow := cfg.Query.MJDNow
	if mjdNow <= 0 {
		mjdNow = features.CurrentMJD(now())
	}
	run := report.Run{
		ID:        runID,
		StartedAt: now().UTC(),
		MJDNow:    mjdNow,
		Model:     modelLabel(cfg),
	}
	logger.Info("starting classification run",
		logging.Float64("mjd_now", mjdNow),
		logging.Int("num_objects", cfg.Query.NumObjects),
		logging.Float64("detected_in_last_days", cfg.Query.DetectedInLastDays),
		logging.Any("cheat_gentypes", cfg.Query.CheatGentypes),
		logging.Bool("show_lightcurves", cfg.Output.ShowLightcurves),
	)

	tax, err := resolveTaxonomy(cfg, opts.Taxonomy)
	if err != nil {
		return nil, err
	}
	model := opts.Model
	if model == nil {
		if model, err = oracle.NewModel(cfg, opts.Logger); err != nil {
			return nil, err
		}
	}
	predictor, err := oracle.NewPredictor(model, tax, cfg.Model.MaxSequenceLength, opts.Logger)
	if err != nil {
		return nil, err
	}

	querier := opts.Querier
	if querier == nil {
		if querier, err = Connect(services.WithStage(ctx, "connect"), cfg, opts.Logger); err != nil {
			return nil, err
		}
	}

	query := tom.HotQuery{
		DetectedInLastDays: cfg.Query.DetectedInLastDays,
		MJDNow:             mjdNow,
		DetectedSinceMJD:   cfg.Query.DetectedSinceMJD,
		CheatGentypes:      cfg.Query.CheatGentypes,
	}
	objects, err := tom.NewLoader(querier, opts.Logger).Load(services.WithStage(ctx, "fetch"), query, cfg.Query.NumObjects)
	if err != nil {
		return nil, fmt.Errorf("load transients: %w", err)
	}

	result := &RunResult{}
	tables := make([]features.EventTable, 0, len(objects))
	for _, obj := range objects {
		objLogger := logging.WithContext(services.WithObjectID(services.WithStage(ctx, "assemble"), obj.ID), component)
		src, err := features.NewSource(obj, features.Options{DetectionSNR: cfg.Features.DetectionSNR})
		if err != nil {
			result.Skipped++
			objLogger.Warn("skipping object", logging.Error(err))
			continue
		}
		if src.Saturated > 0 || src.Invalid > 0 {
			objLogger.Debug("conditioned light curve",
				logging.Int("saturated", src.Saturated),
				logging.Int("invalid", src.Invalid),
			)
		}
		result.Sources = append(result.Sources, src)
		tables = append(tables, src.EventTable())
	}

	predictions, err := predictor.Predict(services.WithStage(ctx, "predict"), tables)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	run.Objects = make([]report.ObjectResult, len(result.Sources))
	for i, src := range result.Sources {
		run.Objects[i] = report.ObjectResult{
			SNID:         src.SNID,
			TrueClass:    src.Class,
			Gentype:      src.Gentype,
			HasTruth:     src.HasTruth,
			Observations: src.Len(),
			Saturated:    src.Saturated,
			Prediction:   predictions[i],
		}
	}
	run.Summary = report.Summarize(run.Objects, result.Skipped)
	result.Run = run

	if err := write(out, opts, cfg, tables, run); err != nil {
		return nil, err
	}

	if cfg.Output.ResultsDB != "" {
		if err := save(ctx, cfg, run); err != nil {
			return nil, err
		}
		result.ResultsDB = cfg.Output.ResultsDB
	}

	logger.Info("classification run finished",
		logging.Int("objects", run.Summary.Objects),
		logging.Int("skipped", run.Summary.Skipped),
		logging.Int("labelled", run.Summary.Labelled),
		logging.Int("correct", run.Summary.Correct),
	)
	return result, nil
}

func resolveTaxonomy(cfg *config.Config, tax *taxonomy.Taxonomy) (*taxonomy.Taxonomy, error) {
	if tax != nil {
		return tax, nil
	}
	loaded, err := taxonomy.Load(cfg.Model.TaxonomyPath)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "load taxonomy", "", err)
	}
	return loaded, nil
}

// Connect logs in to the TOM configured in cfg.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*tom.Client, error) {
	if err := cfg.ValidateCredentials(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "credentials", "", err)
	}
	password, err := cfg.Password()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "credentials", "", err)
	}
	client, err := tom.New(cfg.TOM.URL, cfg.TOM.Username, password,
		tom.WithTimeout(time.Duration(cfg.TOM.RequestTimeout)*time.Second),
		tom.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

func write(out io.Writer, opts Options, cfg *config.Config, tables []features.EventTable, run report.Run) error {
	if opts.JSON {
		return report.WriteJSON(out, run)
	}
	for i, result := range run.Objects {
		if cfg.Output.ShowLightcurves {
			if _, err := fmt.Fprintf(out, "\n%s", report.RenderEventTable(tables[i])); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
		}
		if _, err := fmt.Fprintf(out, "\nSNID %d\n%s", result.SNID, report.RenderLeafProbabilities(result)); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	if len(run.Objects) > 0 {
		if _, err := fmt.Fprintf(out, "\n%s\n", report.RenderPredictions(run.Objects, opts.Colorize)); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	if _, err := fmt.Fprintln(out, report.RenderSummary(run.Summary)); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func save(ctx context.Context, cfg *config.Config, run report.Run) error {
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	store, err := report.OpenStore(ctx, cfg.Output.ResultsDB)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

func modelLabel(cfg *config.Config) string {
	if cfg.Model.Backend == config.BackendHTTP {
		return cfg.Model.URL
	}
	return cfg.Model.Binary
}
