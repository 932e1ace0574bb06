package scheduler

import (
	"context"

	"github.com/antonkoetzler/arbihawk/internal/trainer"
)

// trainerAdapter adapts a *trainer.Runner to the scheduler's Trainer
// interface, so this package depends on trainer's concrete Result
// shape in exactly one place.
type trainerAdapter struct {
	runner *trainer.Runner
}

// NewTrainerSource wraps a subprocess-backed training runner for the
// training task (spec §4.8).
func NewTrainerSource(runner *trainer.Runner) Trainer {
	return trainerAdapter{runner: runner}
}

func (a trainerAdapter) Train(ctx context.Context, domain, market string) (TrainingResult, error) {
	result, err := a.runner.Train(ctx, domain, market)
	if err != nil {
		return TrainingResult{}, err
	}
	return TrainingResult{
		Success:      result.Success,
		HasData:      result.HasData,
		NoDataReason: result.NoDataReason,
		ModelPath:    result.ModelPath,
		Samples:      result.Samples,
		CVScore:      result.CVScore,
		Metrics:      result.MetricsJSON(),
	}, nil
}
