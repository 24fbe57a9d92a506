package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Validate ensures the configuration is usable. Credentials are not checked
// here because commands like `taxonomy` and `config init` never log in; see
// ValidateCredentials.
func (c *Config) Validate() error {
	if err := c.validateQuery(); err != nil {
		return err
	}
	if err := c.validateModel(); err != nil {
		return err
	}
	if err := c.validateFeatures(); err != nil {
		return err
	}
	return nil
}

// ValidateCredentials reports whether enough TOM credentials are configured to log in.
func (c *Config) ValidateCredentials() error {
	if c.TOM.Username == "" {
		return errors.New("tom.username is required. Set TOM_USERNAME, pass --username, or edit the config file")
	}
	if c.TOM.Password == "" && c.TOM.PasswordFile == "" {
		return errors.New("tom.password or tom.password_file is required (or set TOM_PASSWORD / TOM_PASSWORD_FILE)")
	}
	return nil
}

func (c *Config) validateQuery() error {
	if c.Query.NumObjects <= 0 {
		return errors.New("query.num_objects must be positive")
	}
	if c.Query.DetectedInLastDays <= 0 || math.IsNaN(c.Query.DetectedInLastDays) {
		return errors.New("query.detected_in_last_days must be positive")
	}
	if c.Query.MJDNow < 0 {
		return errors.New("query.mjd_now must be >= 0 (0 means now)")
	}
	if c.Query.DetectedSinceMJD < 0 {
		return errors.New("query.detected_since_mjd must be >= 0 (0 means unset)")
	}
	for _, code := range c.Query.CheatGentypes {
		if code <= 0 {
			return fmt.Errorf("query.cheat_gentypes: invalid gentype %d", code)
		}
	}
	return nil
}

func (c *Config) validateModel() error {
	switch c.Model.Backend {
	case BackendCommand:
		if strings.TrimSpace(c.Model.Binary) == "" {
			return errors.New("model.binary must be set when model.backend is \"command\"")
		}
	case BackendHTTP:
		if c.Model.URL == "" {
			return errors.New("model.url must be set when model.backend is \"http\"")
		}
	default:
		return fmt.Errorf("model.backend: unsupported value %q (want %q or %q)", c.Model.Backend, BackendCommand, BackendHTTP)
	}
	if c.Model.MaxSequenceLength <= 0 {
		return errors.New("model.max_sequence_length must be positive")
	}
	return nil
}

func (c *Config) validateFeatures() error {
	if c.Features.DetectionSNR <= 0 || math.IsNaN(c.Features.DetectionSNR) || math.IsInf(c.Features.DetectionSNR, 0) {
		return errors.New("features.detection_snr must be a positive number")
	}
	return nil
}
