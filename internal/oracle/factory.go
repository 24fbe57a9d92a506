package oracle

import (
	"fmt"
	"log/slog"

	"oracletom/internal/config"
	"oracletom/internal/services"
)

// NewModel returns the backend selected by cfg.Model.Backend.
func NewModel(cfg *config.Config, logger *slog.Logger) (Model, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "oracle", "new model", "config required", nil)
	}
	switch cfg.Model.Backend {
	case config.BackendCommand:
		return NewCommandModel(cfg.Model.Binary, cfg.Model.WeightsPath, cfg.Model.TimeoutSeconds, WithCommandLogger(logger))
	case config.BackendHTTP:
		return NewHTTPModel(cfg.Model.URL, cfg.Model.TimeoutSeconds, WithHTTPLogger(logger))
	default:
		return nil, services.Wrap(services.ErrConfiguration, "oracle", "new model", fmt.Sprintf("unsupported backend %q", cfg.Model.Backend), nil)
	}
}
