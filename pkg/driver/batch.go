package driver

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchLimit is the number of goals run at once when no limit is given.
const DefaultBatchLimit = 2

// RunGoals runs every goal with at most limit in flight, each on its own page.
// Outcomes are returned in the order of goals. Unparseable goals are reported
// in their outcome and do not stop the batch.
func RunGoals(ctx context.Context, runner *GoalRunner, goals []string, limit int) []GoalOutcome {
	if limit <= 0 {
		limit = DefaultBatchLimit
	}
	outcomes := make([]GoalOutcome, len(goals))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, text := range goals {
		g.Go(func() error {
			out, _ := runner.Run(ctx, text)
			outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}
