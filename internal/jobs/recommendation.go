// Package jobs holds the background work run on a schedule or on demand.
package jobs

import (
	"context"
	"log/slog"
	"math/rand/v2"

	"nexify/internal/observability"
	"nexify/internal/repository"

	"github.com/google/uuid"
)

// DefaultRecommendPostSize is used when RECOMMEND_POST_SIZE is not positive.
const DefaultRecommendPostSize = 10

const recommendationJobName = "recommendations"

// ShufflePlanner returns a planner that shuffles the active posts, drops the
// ones the user already likes and keeps the first size. shuffle may be nil
// to use math/rand/v2.
func ShufflePlanner(size int, shuffle func(n int, swap func(i, j int))) repository.RecommendationPlanner {
	if size <= 0 {
		size = DefaultRecommendPostSize
	}
	if shuffle == nil {
		shuffle = rand.Shuffle
	}
	return func(_ uuid.UUID, postIDs []uuid.UUID, liked map[uuid.UUID]bool) []uuid.UUID {
		candidates := make([]uuid.UUID, len(postIDs))
		copy(candidates, postIDs)
		shuffle(len(candidates), func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})

		out := make([]uuid.UUID, 0, size)
		for _, id := range candidates {
			if liked[id] {
				continue
			}
			out = append(out, id)
			if len(out) == size {
				break
			}
		}
		return out
	}
}

// RecommendationJob replaces every eligible user's recommendation set.
type RecommendationJob struct {
	recs repository.RecommendationRepository
	plan repository.RecommendationPlanner
}

// NewRecommendationJob builds the job with a shuffle planner of the given size.
func NewRecommendationJob(recs repository.RecommendationRepository, size int) *RecommendationJob {
	return &RecommendationJob{recs: recs, plan: ShufflePlanner(size, nil)}
}

// WithPlanner swaps the planner, mainly for deterministic tests.
func (j *RecommendationJob) WithPlanner(plan repository.RecommendationPlanner) *RecommendationJob {
	j.plan = plan
	return j
}

// Run rebuilds all recommendation sets in one transaction.
func (j *RecommendationJob) Run(ctx context.Context) (repository.RebuildResult, error) {
	span, ctx := observability.StartJobSpan(ctx, recommendationJobName)
	defer span.End()

	result, err := j.recs.Rebuild(ctx, j.plan)
	if err != nil {
		span.SetError(err)
		return repository.RebuildResult{}, err
	}
	observability.RecommendationsWritten.Add(float64(result.Users))
	return result, nil
}

// Execute runs the job and only logs failures. It is what the scheduler calls.
func (j *RecommendationJob) Execute(ctx context.Context) {
	done := observability.TrackJob(recommendationJobName)
	observability.LogJobStart(ctx, recommendationJobName)

	result, err := j.Run(ctx)
	done(err)
	if err != nil {
		observability.LogJobError(ctx, recommendationJobName, err)
		return
	}
	observability.LogJobEnd(ctx, recommendationJobName,
		slog.Int("users", result.Users),
		slog.Int("items", result.Items),
	)
}
