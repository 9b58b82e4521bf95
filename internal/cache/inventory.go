package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	UserKeyPrefix            = "user:%s"
	PostKeyPrefix            = "post:%s"
	RecommendationsKeyPrefix = "recommendations:%s"
)

const (
	UserTTL            = 5 * time.Minute
	PostTTL            = 30 * time.Minute
	RecommendationsTTL = 6 * time.Hour
)

func UserKey(userID uuid.UUID) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func PostKey(postID uuid.UUID) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

func RecommendationsKey(userID uuid.UUID) string {
	return fmt.Sprintf(RecommendationsKeyPrefix, userID)
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

func InvalidateUser(ctx context.Context, userID uuid.UUID) {
	Invalidate(ctx, UserKey(userID), RecommendationsKey(userID))
}

func InvalidatePost(ctx context.Context, postID uuid.UUID) {
	Invalidate(ctx, PostKey(postID))
}

// InvalidateRecommendations drops the cached recommendation lists of users.
func InvalidateRecommendations(ctx context.Context, userIDs ...uuid.UUID) {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, RecommendationsKey(id))
	}
	Invalidate(ctx, keys...)
}
