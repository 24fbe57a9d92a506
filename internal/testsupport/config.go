package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"oracletom/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with a unique temp output directory per
// test. It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.TOM.Username = "tester"
	cfgVal.TOM.Password = "secret"
	cfgVal.Output.Dir = filepath.Join(base, "output")
	cfgVal.Query.MJDNow = 60800

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithTOM points the config at a fake TOM and copies its credentials.
func WithTOM(fake *FakeTOM) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.TOM.URL = fake.URL()
		b.cfg.TOM.Username = fake.Username
		b.cfg.TOM.Password = fake.Password
	}
}

// WithPasswordFile moves the password into a file and clears the inline value.
func WithPasswordFile(contents string) ConfigOption {
	return func(b *configBuilder) {
		path := filepath.Join(b.baseDir, "tom_password")
		if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
			b.t.Fatalf("write password file: %v", err)
		}
		b.cfg.TOM.Password = ""
		b.cfg.TOM.PasswordFile = path
	}
}

// WithResultsDB enables the SQLite results store under the temp directory.
func WithResultsDB() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Output.ResultsDB = filepath.Join(b.baseDir, "results", "oracletom.db")
	}
}

// WithStubPredictor installs an executable named name on PATH that discards
// its stdin and prints output. The command backend is selected and the
// invocation arguments are written to ArgsFile.
func WithStubPredictor(name, output string) ConfigOption {
	return func(b *configBuilder) {
		binDir := WriteStubBinary(b.t, b.baseDir, name, output)
		prependPath(b.t, binDir)
		b.cfg.Model.Backend = config.BackendCommand
		b.cfg.Model.Binary = name
		b.cfg.Model.WeightsPath = filepath.Join(b.baseDir, "weights.pt")
	}
}

// WriteStubBinary writes a shell script under dir/bin that records its
// arguments to dir/bin/<name>.args, drains stdin, and prints output. It
// returns the bin directory.
func WriteStubBinary(t testing.TB, dir, name, output string) string {
	t.Helper()
	binDir := filepath.Join(dir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	argsFile := ArgsFile(binDir, name)
	var script strings.Builder
	script.WriteString("#!/bin/sh\n")
	script.WriteString("echo \"$@\" > '" + argsFile + "'\n")
	script.WriteString("cat > /dev/null\n")
	script.WriteString("cat <<'STUB_EOF'\n")
	script.WriteString(output)
	script.WriteString("\nSTUB_EOF\n")
	target := filepath.Join(binDir, name)
	if err := os.WriteFile(target, []byte(script.String()), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return binDir
}

// ArgsFile returns where a stub written by WriteStubBinary records its arguments.
func ArgsFile(binDir, name string) string {
	return filepath.Join(binDir, name+".args")
}

func prependPath(t testing.TB, dir string) {
	oldPath := os.Getenv("PATH")
	if err := os.Setenv("PATH", dir+string(os.PathListSeparator)+oldPath); err != nil {
		t.Fatalf("set PATH: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Setenv("PATH", oldPath)
	})
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Output.Dir)
}
