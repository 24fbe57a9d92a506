package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"oracletom/internal/logging"
	"oracletom/internal/services"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, stdin []byte) ([]byte, error)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return nil, fmt.Errorf("%w: %s", err, detail)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

// CommandOption configures a CommandModel.
type CommandOption func(*CommandModel)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) CommandOption {
	return func(m *CommandModel) {
		if exec != nil {
			m.exec = exec
		}
	}
}

// WithCommandLogger attaches a logger.
func WithCommandLogger(logger *slog.Logger) CommandOption {
	return func(m *CommandModel) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// CommandModel runs `<binary> --weights <path>` once per batch.
type CommandModel struct {
	binary  string
	weights string
	timeout time.Duration
	exec    Executor
	logger  *slog.Logger
}

// NewCommandModel constructs a CommandModel.
func NewCommandModel(binary, weightsPath string, timeoutSeconds int, opts ...CommandOption) (*CommandModel, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, services.Wrap(services.ErrConfiguration, "oracle", "command model", "binary required", nil)
	}
	m := &CommandModel{
		binary:  binary,
		weights: strings.TrimSpace(weightsPath),
		timeout: time.Duration(timeoutSeconds) * time.Second,
		exec:    commandExecutor{},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.NewComponentLogger(m.logger, "oracle-command")
	return m, nil
}

// Args returns the command-line arguments passed to the binary.
func (m *CommandModel) Args() []string {
	if m.weights == "" {
		return nil
	}
	return []string{"--weights", m.weights}
}

// Predict implements Model.
func (m *CommandModel) Predict(ctx context.Context, batch *Batch) ([][]float64, error) {
	payload, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("marshal batch: %w", err)
	}
	runCtx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	started := time.Now()
	stdout, err := m.exec.Run(runCtx, m.binary, m.Args(), payload)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTimeout, "oracle", "run model", m.binary, err)
		}
		return nil, services.Wrap(services.ErrExternalTool, "oracle", "run model", m.binary, err)
	}
	m.logger.Debug("model command finished",
		logging.String("binary", m.binary),
		logging.Int("objects", batch.Len()),
		logging.Duration("elapsed", time.Since(started)),
	)
	probs, err := decodeResponse(stdout)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "oracle", "decode output", m.binary, err)
	}
	return probs, nil
}
