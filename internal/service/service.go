package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"matpulse/internal/alerting"
	"matpulse/internal/index"
	"matpulse/internal/metrics"
)

// Service owns the two scheduled batch entry points: the hourly alert
// evaluation pass and the daily composite index computation.
type Service struct {
	evaluator  *alerting.Evaluator
	calculator *index.Calculator
	logger     zerolog.Logger
}

// New constructs the batch service.
func New(evaluator *alerting.Evaluator, calculator *index.Calculator, logger zerolog.Logger) *Service {
	return &Service{
		evaluator:  evaluator,
		calculator: calculator,
		logger:     logger.With().Str("component", "service").Logger(),
	}
}

// RunAlertPass executes one alert evaluation batch.
func (s *Service) RunAlertPass(ctx context.Context) error {
	if s.evaluator == nil {
		return fmt.Errorf("alert evaluator not configured")
	}

	start := time.Now()
	result, err := s.evaluator.Run(ctx)
	metrics.PassDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AlertPassesTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("alert pass: %w", err)
	}

	metrics.AlertPassesTotal.WithLabelValues("ok").Inc()
	metrics.RulesCheckedTotal.Add(float64(result.Checked))
	metrics.RulesTriggeredTotal.Add(float64(result.Triggered))
	metrics.PassErrorsTotal.Add(float64(len(result.Errors)))

	for _, msg := range result.Errors {
		s.logger.Warn().Str("error", msg).Msg("alert pass error")
	}
	return nil
}

// RunIndexPass computes and persists the composite index for the current
// date.
func (s *Service) RunIndexPass(ctx context.Context) error {
	if s.calculator == nil {
		return fmt.Errorf("index calculator not configured")
	}

	row, err := s.calculator.Compute(ctx, time.Now().UTC())
	if err != nil {
		metrics.IndexComputationsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("index pass: %w", err)
	}

	metrics.IndexComputationsTotal.WithLabelValues("ok").Inc()
	s.logger.Info().Str("value", row.Value.String()).Time("date", row.Date).Msg("index pass complete")
	return nil
}
