package ml

import (
	"context"
	"time"

	"github.com/franckalain/traypositions/internal/models"
	"go.uber.org/zap"
)

// Analyzer turns an image reference into food positions: one model call
// (retried per policy) followed by strict normalization of the reply.
type Analyzer struct {
	model  Model
	retry  RetryPolicy
	logger *zap.Logger
}

// NewAnalyzer creates an analyzer over a loaded model
func NewAnalyzer(model Model, retry RetryPolicy, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{model: model, retry: retry, logger: logger}
}

// Analyze asks the model where each food sits on the tray
func (a *Analyzer) Analyze(ctx context.Context, imageURL string) (*models.AnalysisResponse, error) {
	start := time.Now()

	var reply string
	err := a.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		reply, err = a.model.Complete(ctx, imageURL)
		return err
	})
	if err != nil {
		a.logger.Error("model call failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, err
	}

	positions, err := ParsePositions(reply)
	if err != nil {
		a.logger.Warn("could not normalize model reply", zap.Error(err), zap.String("reply", reply))
		return nil, err
	}

	a.logger.Info("analyzed tray",
		zap.Int("foods", len(positions)),
		zap.Duration("elapsed", time.Since(start)))
	return &models.AnalysisResponse{FoodPositions: positions}, nil
}
