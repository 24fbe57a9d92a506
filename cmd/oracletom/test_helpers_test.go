package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"oracletom/internal/config"
	"oracletom/internal/taxonomy"
	"oracletom/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	fake       *testsupport.FakeTOM
	configPath string
	baseDir    string
}

// setupCLITestEnv writes a config pointing at a seeded fake TOM and a stub
// predictor that labels 1001 SNIa, 1002 TDE and 1003 AGN.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	for _, key := range []string{"TOM_USERNAME", "TOM_PASSWORD", "TOM_PASSWORD_FILE", "ORACLE_MODEL_PATH"} {
		t.Setenv(key, "")
	}

	fake := testsupport.NewFakeTOM(t, "tester", "secret")
	testsupport.SeedTransients(fake)

	tax := taxonomy.Default()
	output := testsupport.ModelOutput(t, [][]float64{
		testsupport.ConditionalRow(t, tax, "SNIa", 0.9),
		testsupport.ConditionalRow(t, tax, "TDE", 0.8),
		testsupport.ConditionalRow(t, tax, "AGN", 0.7),
	})
	cfg := testsupport.NewConfig(t,
		testsupport.WithTOM(fake),
		testsupport.WithStubPredictor("oracle-predict", output),
		testsupport.WithResultsDB(),
	)
	cfg.Query.NumObjects = 10

	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))
	if err := os.WriteFile(cfg.Model.WeightsPath, []byte("weights"), 0o644); err != nil {
		t.Fatalf("write weights: %v", err)
	}

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		fake:       fake,
		configPath: configPath,
		baseDir:    base,
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
