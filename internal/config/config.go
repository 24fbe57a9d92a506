package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// TOM contains the remote portal location and credentials.
type TOM struct {
	URL            string `toml:"url"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	PasswordFile   string `toml:"password_file"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Query contains the hot-transient selection parameters.
type Query struct {
	NumObjects         int     `toml:"num_objects"`
	DetectedInLastDays float64 `toml:"detected_in_last_days"`
	// MJDNow is the reference epoch sent to the TOM. Zero means "use the
	// current time".
	MJDNow float64 `toml:"mjd_now"`
	// DetectedSinceMJD is only sent when positive.
	DetectedSinceMJD float64 `toml:"detected_since_mjd"`
	CheatGentypes    []int   `toml:"cheat_gentypes"`
}

// Model contains the classifier backend settings.
type Model struct {
	Backend           string `toml:"backend"`
	Binary            string `toml:"binary"`
	WeightsPath       string `toml:"weights_path"`
	URL               string `toml:"url"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	TaxonomyPath      string `toml:"taxonomy_path"`
	MaxSequenceLength int    `toml:"max_sequence_length"`
}

// Features contains light-curve conditioning knobs.
type Features struct {
	DetectionSNR float64 `toml:"detection_snr"`
}

// Output contains run output settings.
type Output struct {
	Dir             string `toml:"dir"`
	ResultsDB       string `toml:"results_db"`
	ShowLightcurves bool   `toml:"show_lightcurves"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	// File enables an additional log file under output.dir.
	File bool `toml:"file"`
}

// Config encapsulates all configuration values for oracletom.
//
// Configuration sections by subsystem:
//   - TOM: portal URL and login credentials
//   - Query: which hot transients to fetch
//   - Model: classifier backend, weights, taxonomy, sequence length
//   - Features: light-curve conditioning thresholds
//   - Output: output directory and optional SQLite results file
//   - Logging: log format and level
type Config struct {
	TOM      TOM      `toml:"tom"`
	Query    Query    `toml:"query"`
	Model    Model    `toml:"model"`
	Features Features `toml:"features"`
	Output   Output   `toml:"output"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("oracletom.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the output directory and the results database parent.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Output.Dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Output.Dir, err)
	}
	if strings.TrimSpace(c.Output.ResultsDB) != "" {
		dir := filepath.Dir(c.Output.ResultsDB)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create results directory %q: %w", dir, err)
		}
	}
	return nil
}

// LogPath returns the log file path when file logging is enabled.
func (c *Config) LogPath() string {
	if !c.Logging.File || strings.TrimSpace(c.Output.Dir) == "" {
		return ""
	}
	return filepath.Join(c.Output.Dir, "oracletom.log")
}

// Password returns the TOM password, reading password_file when no inline
// password is configured.
func (c *Config) Password() (string, error) {
	if c.TOM.Password != "" {
		return c.TOM.Password, nil
	}
	if strings.TrimSpace(c.TOM.PasswordFile) == "" {
		return "", errors.New("tom: must give either password or password_file")
	}
	data, err := os.ReadFile(c.TOM.PasswordFile)
	if err != nil {
		return "", fmt.Errorf("read tom.password_file: %w", err)
	}
	line, _, _ := strings.Cut(string(data), "\n")
	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("tom.password_file %s: first line is empty", c.TOM.PasswordFile)
	}
	return line, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration text.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
