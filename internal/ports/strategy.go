package ports

import (
	"context"

	"multiStratBot/internal/domain"
)

// Strategy is the single capability a signal collaborator must provide.
// Evaluate must be deterministic for identical input data and parameters and
// must not perform I/O; it returns the raw decision before tagging.
type Strategy interface {
	// Evaluate inspects one series and produces a directive. The returned
	// directive carries only Kind, Direction, StopLoss and TakeProfit; the
	// runner stamps identity fields.
	Evaluate(ctx context.Context, data domain.Series, params map[string]float64) (domain.Directive, error)
}
