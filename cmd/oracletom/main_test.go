package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"oracletom/internal/report"
	"oracletom/internal/services"
	"oracletom/internal/taxonomy"
	"oracletom/internal/testsupport"
)

func TestClassifyCommandRecordsRun(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"classify", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	var run report.Run
	if err := json.Unmarshal([]byte(out), &run); err != nil {
		t.Fatalf("decode run: %v\n%s", err, out)
	}
	want := report.Summary{Objects: 3, Labelled: 2, Correct: 2, Accuracy: 1}
	if diff := cmp.Diff(want, run.Summary); diff != "" {
		t.Fatalf("unexpected summary (-want +got):\n%s", diff)
	}
	if run.MJDNow != 60800 {
		t.Fatalf("expected mjd_now 60800 from config, got %v", run.MJDNow)
	}

	args, err := os.ReadFile(testsupport.ArgsFile(filepath.Join(env.baseDir, "bin"), "oracle-predict"))
	if err != nil {
		t.Fatalf("read stub args: %v", err)
	}
	requireContains(t, string(args), "--weights "+env.cfg.Model.WeightsPath)

	out, _, err = runCLI(t, []string{"runs", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("runs list: %v", err)
	}
	requireContains(t, out, run.ID)
	requireContains(t, out, "100.0%")

	out, _, err = runCLI(t, []string{"runs", "show", run.ID}, env.configPath)
	if err != nil {
		t.Fatalf("runs show: %v", err)
	}
	requireContains(t, out, "TDE")
	requireContains(t, out, "3 objects; 2 labelled, 2 correct")
}

func TestClassifyCommandTextOutput(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"classify", "--show-lightcurves"}, env.configPath)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	requireContains(t, out, "Classified 3 objects (0 skipped); 2 labelled, 2 correct, accuracy 100.0%")
	requireContains(t, out, "SNIa")
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("expected no color codes when writing to a buffer:\n%s", out)
	}
}

func TestClassifyCommandPreflightFailure(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.Remove(env.cfg.Model.WeightsPath); err != nil {
		t.Fatalf("remove weights: %v", err)
	}

	_, _, err := runCLI(t, []string{"classify"}, env.configPath)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if exitCode(err) != 2 {
		t.Fatalf("expected exit code 2, got %d", exitCode(err))
	}
	if env.fake.Logins() != 0 {
		t.Fatalf("expected preflight to stop before login, got %d logins", env.fake.Logins())
	}
}

func TestClassifyCommandBadPasswordFile(t *testing.T) {
	env := setupCLITestEnv(t)
	passwordFile := filepath.Join(env.baseDir, "wrong_password")
	if err := os.WriteFile(passwordFile, []byte("nope\n"), 0o600); err != nil {
		t.Fatalf("write password file: %v", err)
	}

	_, _, err := runCLI(t, []string{"classify", "-p", passwordFile}, env.configPath)
	if !errors.Is(err, services.ErrAuthentication) {
		t.Fatalf("expected authentication error, got %v", err)
	}
	if exitCode(err) != 2 {
		t.Fatalf("expected exit code 2, got %d", exitCode(err))
	}
}

func TestClassifyCommandRejectsMalformedModelOutput(t *testing.T) {
	env := setupCLITestEnv(t)
	tax := taxonomy.Default()
	rows := [][]float64{
		testsupport.ConditionalRow(t, tax, "SNIa", 0.9),
		testsupport.ConditionalRow(t, tax, "TDE", 0.8),
		testsupport.ConditionalRow(t, tax, "AGN", 0.7),
	}
	rows[0][0] = 1.7
	testsupport.WriteStubBinary(t, env.baseDir, "oracle-predict", testsupport.ModelOutput(t, rows))

	_, _, err := runCLI(t, []string{"classify"}, env.configPath)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if exitCode(err) != 3 {
		t.Fatalf("expected exit code 3, got %d", exitCode(err))
	}
}

func TestClassifyFlagsApply(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	var flags classifyFlags
	cmd := &cobra.Command{Use: "classify"}
	flags.register(cmd)
	if err := cmd.ParseFlags([]string{
		"-n", "2",
		"-u", " alice ",
		"-d", "3.5",
		"-m", "60810",
		"--cheat-gentypes", "10,42",
		"--show-lightcurves",
	}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if err := flags.apply(cmd, cfg); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if cfg.Query.NumObjects != 2 || cfg.TOM.Username != "alice" {
		t.Fatalf("unexpected overrides: num_objects=%d username=%q", cfg.Query.NumObjects, cfg.TOM.Username)
	}
	if cfg.Query.DetectedInLastDays != 3.5 || cfg.Query.MJDNow != 60810 {
		t.Fatalf("unexpected window: days=%v mjd=%v", cfg.Query.DetectedInLastDays, cfg.Query.MJDNow)
	}
	if diff := cmp.Diff([]int{10, 42}, cfg.Query.CheatGentypes); diff != "" {
		t.Fatalf("unexpected gentypes (-want +got):\n%s", diff)
	}
	if !cfg.Output.ShowLightcurves {
		t.Fatal("expected show_lightcurves to be enabled")
	}
	// Unset flags leave the config alone.
	if cfg.TOM.Password != "secret" || cfg.Query.DetectedSinceMJD != 0 {
		t.Fatalf("untouched fields changed: %+v", cfg.TOM)
	}
}

func TestClassifyFlagsRejectInvalidValues(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	var flags classifyFlags
	cmd := &cobra.Command{Use: "classify"}
	flags.register(cmd)
	if err := cmd.ParseFlags([]string{"-n", "0"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	err := flags.apply(cmd, cfg)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestHotCommandJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"hot", "--json", "-d", "3"}, env.configPath)
	if err != nil {
		t.Fatalf("hot: %v", err)
	}
	var entries []map[string]any
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode hot: %v\n%s", err, out)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 hot transients, got %d", len(entries))
	}
	if entries[0]["objectid"] != float64(1001) {
		t.Fatalf("unexpected first entry: %v", entries[0])
	}

	requests := env.fake.HotRequests()
	if len(requests) != 1 {
		t.Fatalf("expected one hot request, got %d", len(requests))
	}
	if requests[0]["detected_in_last_days"] != float64(3) || requests[0]["mjd_now"] != float64(60800) {
		t.Fatalf("unexpected hot request: %v", requests[0])
	}
}

func TestHotCommandTable(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"hot"}, env.configPath)
	if err != nil {
		t.Fatalf("hot: %v", err)
	}
	requireContains(t, out, "objectid")
	requireContains(t, out, "1004")
	requireContains(t, out, "150.1")
}

func TestSQLCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	query := "SELECT diaobject_id, gentype FROM elasticc2_diaobjecttruth WHERE diaobject_id = ANY(%(ids)s)"
	out, _, err := runCLI(t, []string{"sql", query, "--ids", "1002"}, env.configPath)
	if err != nil {
		t.Fatalf("sql: %v", err)
	}
	requireContains(t, out, "gentype")
	requireContains(t, out, "42")
	requireContains(t, out, "1 row(s)")
	if strings.Contains(out, "1001") {
		t.Fatalf("expected only the requested id:\n%s", out)
	}

	_, _, err = runCLI(t, []string{"sql", "SELECT FAIL"}, env.configPath)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSQLCommandReadsQueryFromStdin(t *testing.T) {
	env := setupCLITestEnv(t)

	cmd := newRootCommand()
	var stdout strings.Builder
	cmd.SetOut(&stdout)
	cmd.SetIn(strings.NewReader("SELECT * FROM elasticc2_diaobjecttruth"))
	cmd.SetArgs([]string{"--config", env.configPath, "sql", "--file", "-", "--json"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("sql: %v", err)
	}
	var rows []map[string]any
	if err := json.Unmarshal([]byte(stdout.String()), &rows); err != nil {
		t.Fatalf("decode rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 truth rows, got %d", len(rows))
	}
}

func TestTaxonomyCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"taxonomy"}, env.configPath)
	if err != nil {
		t.Fatalf("taxonomy: %v", err)
	}
	requireContains(t, out, "Alert")
	requireContains(t, out, "SNIa")
	requireContains(t, out, "25 nodes, 20 leaves, depth 3")
	requireContains(t, out, "HOSTGAL_PHOTOZ")
}

func TestRunsShowUnknownRun(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"classify"}, env.configPath); err != nil {
		t.Fatalf("classify: %v", err)
	}

	_, _, err := runCLI(t, []string{"runs", "show", "missing"}, env.configPath)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRunsWithoutDatabase(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"runs", "list", "--results-db", filepath.Join(env.baseDir, "absent.db")}, env.configPath)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse to overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigShowRedactsPassword(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "<redacted>")
	requireContains(t, out, env.fake.URL())
	if strings.Contains(out, "secret") {
		t.Fatalf("password leaked:\n%s", out)
	}
}

func TestInvalidConfigExitCode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[query]\nnum_objects = -1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, err := runCLI(t, []string{"taxonomy"}, path)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if exitCode(err) != 2 {
		t.Fatalf("expected exit code 2, got %d", exitCode(err))
	}
}
