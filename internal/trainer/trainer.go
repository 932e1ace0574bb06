// Package trainer invokes the model-training subprocess for one
// (domain, market) pair and decodes its stdout into a result. Model
// persistence and activation are the subprocess's own responsibility
// once it reports success (spec §4.8); this package only owns the
// subprocess boundary, grounded on internal/ingestion's
// exec.CommandContext collection pattern.
package trainer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
)

// CommandBuilder builds the argv for training one (domain, market) pair.
type CommandBuilder func(domain, market string) []string

// Result mirrors the training subprocess's JSON contract (spec §4.8:
// "success=true ∧ has_data=false is not an error").
type Result struct {
	Success      bool    `json:"success"`
	HasData      bool    `json:"has_data"`
	NoDataReason string  `json:"no_data_reason"`
	ModelPath    string  `json:"model_path"`
	Samples      int     `json:"training_samples"`
	CVScore      float64 `json:"cv_score"`
	Metrics      json.RawMessage `json:"performance_metrics"`
}

// Runner trains models by shelling out to a configurable command.
type Runner struct {
	command CommandBuilder
	timeout time.Duration
	log     zerolog.Logger
}

// New constructs a Runner. A zero timeout means no deadline beyond ctx.
func New(command CommandBuilder, timeout time.Duration, log zerolog.Logger) *Runner {
	return &Runner{command: command, timeout: timeout, log: log.With().Str("component", "trainer").Logger()}
}

// Train runs the training subprocess for (domain, market) and decodes
// its result.
func (r *Runner) Train(ctx context.Context, domain, market string) (Result, error) {
	command := r.command(domain, market)
	if len(command) == 0 {
		return Result{}, fmt.Errorf("trainer: no command configured for %s/%s", domain, market)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stdout

	if err := cmd.Run(); err != nil {
		return Result{}, fmt.Errorf("trainer: train %s/%s: %w", domain, market, err)
	}

	var result Result
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &result); err != nil {
		return Result{}, fmt.Errorf("trainer: decode result for %s/%s: %w", domain, market, err)
	}
	return result, nil
}

// MetricsJSON returns the raw performance-metrics blob as a string,
// ready to pass through store.JSONSafe before persisting.
func (r Result) MetricsJSON() string {
	if len(r.Metrics) == 0 {
		return ""
	}
	return string(r.Metrics)
}
