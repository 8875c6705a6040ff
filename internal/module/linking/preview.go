package linking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// CachedPreviewProvider wraps a PreviewProvider with a Redis cache and a
// circuit breaker. The preview is best-effort: when the source is down the
// breaker opens and callers degrade to no preview instead of waiting.
type CachedPreviewProvider struct {
	source  PreviewProvider
	cache   redis.UniversalClient
	ttl     time.Duration
	breaker *gobreaker.CircuitBreaker[*HistoryPreview]
	logger  *zap.Logger
}

// NewCachedPreviewProvider creates a caching, breaker-protected provider.
// cache may be nil; only the breaker applies then.
func NewCachedPreviewProvider(source PreviewProvider, cache redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *CachedPreviewProvider {
	settings := gobreaker.Settings{
		Name:        "linking-preview",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &CachedPreviewProvider{
		source:  source,
		cache:   cache,
		ttl:     ttl,
		breaker: gobreaker.NewCircuitBreaker[*HistoryPreview](settings),
		logger:  logger,
	}
}

// Preview returns the shared-history summary for a member.
func (p *CachedPreviewProvider) Preview(ctx context.Context, memberID uuid.UUID) (*HistoryPreview, error) {
	key := "linking:preview:" + memberID.String()

	if p.cache != nil {
		if data, err := p.cache.Get(ctx, key).Bytes(); err == nil {
			var preview HistoryPreview
			if err := json.Unmarshal(data, &preview); err == nil {
				return &preview, nil
			}
		}
	}

	preview, err := p.breaker.Execute(func() (*HistoryPreview, error) {
		return p.source.Preview(ctx, memberID)
	})
	if err != nil {
		return nil, err
	}

	if p.cache != nil && preview != nil {
		if data, err := json.Marshal(preview); err == nil {
			if err := p.cache.Set(ctx, key, data, p.ttl).Err(); err != nil {
				p.logger.Debug("preview cache write failed", zap.Error(err))
			}
		}
	}

	return preview, nil
}

// Invalidate drops the cached preview for a member. Called after a link
// mutation so the next validation sees fresh history.
func (p *CachedPreviewProvider) Invalidate(ctx context.Context, memberID uuid.UUID) error {
	if p.cache == nil {
		return nil
	}
	return p.cache.Del(ctx, "linking:preview:"+memberID.String()).Err()
}
