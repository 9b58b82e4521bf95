package jobs

import (
	"context"
	"log/slog"

	"nexify/internal/observability"
	"nexify/internal/repository"
)

const reconcileJobName = "reconcile_counters"

// CounterReconciler recomputes the denormalized post counters from their
// child rows.
type CounterReconciler struct {
	posts repository.PostRepository
}

func NewCounterReconciler(posts repository.PostRepository) *CounterReconciler {
	return &CounterReconciler{posts: posts}
}

// Run returns the number of posts corrected per counter.
func (r *CounterReconciler) Run(ctx context.Context) (map[string]int64, error) {
	span, ctx := observability.StartJobSpan(ctx, reconcileJobName)
	defer span.End()

	fixed, err := r.posts.ReconcileCounters(ctx)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	for counter, n := range fixed {
		if n > 0 {
			observability.CounterCorrections.WithLabelValues(counter).Add(float64(n))
		}
	}
	return fixed, nil
}

func (r *CounterReconciler) Execute(ctx context.Context) {
	done := observability.TrackJob(reconcileJobName)
	observability.LogJobStart(ctx, reconcileJobName)
	fixed, err := r.Run(ctx)
	done(err)
	if err != nil {
		observability.LogJobError(ctx, reconcileJobName, err)
		return
	}
	attrs := make([]slog.Attr, 0, len(fixed))
	for counter, n := range fixed {
		attrs = append(attrs, slog.Int64(counter, n))
	}
	observability.LogJobEnd(ctx, reconcileJobName, attrs...)
}
