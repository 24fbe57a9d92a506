package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeTOM(); err != nil {
		return err
	}
	c.normalizeQuery()
	if err := c.normalizeModel(); err != nil {
		return err
	}
	if err := c.normalizeOutput(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeTOM() error {
	c.TOM.URL = strings.TrimRight(strings.TrimSpace(c.TOM.URL), "/")
	if c.TOM.URL == "" {
		c.TOM.URL = defaultTOMURL
	}
	if value, ok := os.LookupEnv("TOM_USERNAME"); ok && strings.TrimSpace(value) != "" {
		c.TOM.Username = value
	}
	c.TOM.Username = strings.TrimSpace(c.TOM.Username)
	if value, ok := os.LookupEnv("TOM_PASSWORD"); ok && value != "" {
		c.TOM.Password = value
	}
	if value, ok := os.LookupEnv("TOM_PASSWORD_FILE"); ok && strings.TrimSpace(value) != "" {
		c.TOM.PasswordFile = value
	}
	var err error
	if c.TOM.PasswordFile, err = expandPath(strings.TrimSpace(c.TOM.PasswordFile)); err != nil {
		return fmt.Errorf("tom.password_file: %w", err)
	}
	if c.TOM.RequestTimeout <= 0 {
		c.TOM.RequestTimeout = defaultRequestTimeout
	}
	return nil
}

func (c *Config) normalizeQuery() {
	if len(c.Query.CheatGentypes) == 0 {
		c.Query.CheatGentypes = nil
		return
	}
	seen := make(map[int]struct{}, len(c.Query.CheatGentypes))
	codes := make([]int, 0, len(c.Query.CheatGentypes))
	for _, code := range c.Query.CheatGentypes {
		if _, exists := seen[code]; exists {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	sort.Ints(codes)
	c.Query.CheatGentypes = codes
}

func (c *Config) normalizeModel() error {
	c.Model.Backend = strings.ToLower(strings.TrimSpace(c.Model.Backend))
	if c.Model.Backend == "" {
		c.Model.Backend = defaultModelBackend
	}
	c.Model.Binary = strings.TrimSpace(c.Model.Binary)
	if c.Model.Binary == "" {
		c.Model.Binary = defaultModelBinary
	}
	if value, ok := os.LookupEnv("ORACLE_MODEL_PATH"); ok && strings.TrimSpace(value) != "" {
		c.Model.WeightsPath = value
	}
	var err error
	if c.Model.WeightsPath, err = expandPath(strings.TrimSpace(c.Model.WeightsPath)); err != nil {
		return fmt.Errorf("model.weights_path: %w", err)
	}
	if c.Model.TaxonomyPath, err = expandPath(strings.TrimSpace(c.Model.TaxonomyPath)); err != nil {
		return fmt.Errorf("model.taxonomy_path: %w", err)
	}
	c.Model.URL = strings.TrimRight(strings.TrimSpace(c.Model.URL), "/")
	if c.Model.TimeoutSeconds <= 0 {
		c.Model.TimeoutSeconds = defaultModelTimeout
	}
	if c.Model.MaxSequenceLength == 0 {
		c.Model.MaxSequenceLength = defaultMaxSequenceLength
	}
	return nil
}

func (c *Config) normalizeOutput() error {
	var err error
	if strings.TrimSpace(c.Output.Dir) == "" {
		c.Output.Dir = defaultOutputDir
	}
	if c.Output.Dir, err = expandPath(strings.TrimSpace(c.Output.Dir)); err != nil {
		return fmt.Errorf("output.dir: %w", err)
	}
	if c.Output.ResultsDB, err = expandPath(strings.TrimSpace(c.Output.ResultsDB)); err != nil {
		return fmt.Errorf("output.results_db: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
