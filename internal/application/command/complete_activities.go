package command

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ══════════════════════════════════════════════════════════════════════════════
// BATCH COMPLETION
// Processes many activity completions. Different users run in parallel;
// completions for the same user run in submission order.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteActivitiesCommand is a batch of completions.
type CompleteActivitiesCommand struct {
	Items []CompleteActivityCommand
}

// BatchItemResult is the outcome of one batch item.
type BatchItemResult struct {
	// Index is the item's position in the command.
	Index int

	// Result is set on success (including duplicates).
	Result *CompleteActivityResult

	// Err is set when the item failed.
	Err error
}

// CompleteActivitiesResult aggregates a batch run.
type CompleteActivitiesResult struct {
	// Items are in the same order as the command.
	Items []BatchItemResult

	Succeeded  int
	Duplicates int
	Failed     int
	Duration   time.Duration
}

// CompleteActivitiesHandler fans a batch out over a bounded worker count.
type CompleteActivitiesHandler struct {
	single      *CompleteActivityHandler
	concurrency int
	logger      *zap.Logger
}

// NewCompleteActivitiesHandler creates a batch handler over single.
func NewCompleteActivitiesHandler(single *CompleteActivityHandler, concurrency int) *CompleteActivitiesHandler {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &CompleteActivitiesHandler{
		single:      single,
		concurrency: concurrency,
		logger:      single.pipeline.logger.Named("batch"),
	}
}

// Handle runs the batch. Item failures are reported per item; only context
// cancellation fails the whole call.
func (h *CompleteActivitiesHandler) Handle(ctx context.Context, cmd CompleteActivitiesCommand) (*CompleteActivitiesResult, error) {
	start := time.Now()
	result := &CompleteActivitiesResult{Items: make([]BatchItemResult, len(cmd.Items))}

	// Group by user, keeping submission order inside each group.
	order := make([]string, 0)
	byUser := make(map[string][]int)
	for i, item := range cmd.Items {
		result.Items[i].Index = i
		if _, seen := byUser[item.UserID]; !seen {
			order = append(order, item.UserID)
		}
		byUser[item.UserID] = append(byUser[item.UserID], i)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)

	for _, userID := range order {
		indexes := byUser[userID]
		g.Go(func() error {
			for _, i := range indexes {
				if err := gctx.Err(); err != nil {
					return err
				}
				res, err := h.single.Handle(gctx, cmd.Items[i])
				result.Items[i].Result = res
				result.Items[i].Err = err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, item := range result.Items {
		switch {
		case item.Err != nil:
			result.Failed++
		case item.Result != nil && item.Result.Duplicate:
			result.Duplicates++
		default:
			result.Succeeded++
		}
	}
	result.Duration = time.Since(start)

	h.logger.Info("batch completed",
		zap.Int("items", len(cmd.Items)),
		zap.Int("users", len(order)),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("failed", result.Failed),
		elapsed(start),
	)

	return result, nil
}
