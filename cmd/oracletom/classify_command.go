package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"oracletom/internal/config"
	"oracletom/internal/pipeline"
	"oracletom/internal/preflight"
	"oracletom/internal/report"
	"oracletom/internal/services"
)

type classifyFlags struct {
	numObjects         int
	username           string
	passwordFile       string
	detectedInLastDays float64
	mjdNow             float64
	modelPath          string
	detectedSinceMJD   float64
	cheatGentypes      []int
	resultsDB          string
	jsonOutput         bool
	showLightcurves    bool
	skipPreflight      bool
}

func newClassifyCommand(ctx *commandContext) *cobra.Command {
	var flags classifyFlags

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Fetch the latest hot transients and classify them with ORACLE",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, cfg); err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			if !flags.skipPreflight {
				if err := preflight.Err(preflight.RunAll(cmd.Context(), cfg)); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			_, err = pipeline.Run(cmd.Context(), pipeline.Options{
				Config:   cfg,
				Logger:   logger,
				Out:      out,
				JSON:     flags.jsonOutput,
				Colorize: report.ShouldColorize(out),
				Now:      nowFunc,
			})
			return err
		},
	}

	flags.register(cmd)
	return cmd
}

func (f *classifyFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.IntVarP(&f.numObjects, "num-objects", "n", 0, "Number of transients to classify (default query.num_objects)")
	fs.StringVarP(&f.username, "username", "u", "", "TOM username")
	fs.StringVarP(&f.passwordFile, "password-file", "p", "", "File whose first line is the TOM password")
	fs.Float64VarP(&f.detectedInLastDays, "detected-in-last-days", "d", 0, "How many nights to look back for transients")
	fs.Float64VarP(&f.mjdNow, "mjd-now", "m", 0, "Reference MJD (default query.mjd_now, else today)")
	fs.StringVar(&f.modelPath, "model-path", "", "Path to the ORACLE model weights")
	fs.Float64Var(&f.detectedSinceMJD, "detected-since-mjd", 0, "Only transients detected since this MJD")
	fs.IntSliceVar(&f.cheatGentypes, "cheat-gentypes", nil, "Restrict to simulated gentypes (comma separated)")
	fs.StringVar(&f.resultsDB, "results-db", "", "Append predictions to this SQLite file")
	fs.BoolVar(&f.jsonOutput, "json", false, "Write the run as JSON")
	fs.BoolVar(&f.showLightcurves, "show-lightcurves", false, "Print each object's conditioned light curve")
	fs.BoolVar(&f.skipPreflight, "skip-preflight", false, "Skip local readiness checks")
}

// apply copies explicitly set flags over cfg and revalidates it.
func (f *classifyFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed
	if changed("num-objects") {
		cfg.Query.NumObjects = f.numObjects
	}
	if changed("username") {
		cfg.TOM.Username = strings.TrimSpace(f.username)
	}
	if changed("password-file") {
		path, err := config.ExpandPath(strings.TrimSpace(f.passwordFile))
		if err != nil {
			return fmt.Errorf("resolve password file: %w", err)
		}
		cfg.TOM.PasswordFile = path
		cfg.TOM.Password = ""
	}
	if changed("detected-in-last-days") {
		cfg.Query.DetectedInLastDays = f.detectedInLastDays
	}
	if changed("mjd-now") {
		cfg.Query.MJDNow = f.mjdNow
	}
	if changed("model-path") {
		path, err := config.ExpandPath(strings.TrimSpace(f.modelPath))
		if err != nil {
			return fmt.Errorf("resolve model path: %w", err)
		}
		cfg.Model.WeightsPath = path
	}
	if changed("detected-since-mjd") {
		cfg.Query.DetectedSinceMJD = f.detectedSinceMJD
	}
	if changed("cheat-gentypes") {
		cfg.Query.CheatGentypes = f.cheatGentypes
	}
	if changed("results-db") {
		path, err := config.ExpandPath(strings.TrimSpace(f.resultsDB))
		if err != nil {
			return fmt.Errorf("resolve results db: %w", err)
		}
		cfg.Output.ResultsDB = path
	}
	if changed("show-lightcurves") {
		cfg.Output.ShowLightcurves = f.showLightcurves
	}
	if err := cfg.Validate(); err != nil {
		return services.Wrap(services.ErrConfiguration, "classify", "flags", "", err)
	}
	return nil
}
