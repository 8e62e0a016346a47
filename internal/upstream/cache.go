package upstream

import (
	"context"
	"encoding/json"
	"time"

	"catalog-bff/internal/common/logger"
	"catalog-bff/internal/models"

	"github.com/redis/go-redis/v9"
)

// PlansSource is anything that can produce the plan list.
type PlansSource interface {
	FetchPlans(ctx context.Context) ([]models.SubscriptionPlan, error)
}

// CachedPlans is a read-through Redis cache in front of a PlansSource. Only
// present plan lists are cached; Redis failures fall through to the source.
type CachedPlans struct {
	next   PlansSource
	redis  redis.Cmdable
	key    string
	ttl    time.Duration
	logger logger.Logger
	encode func(v interface{}) ([]byte, error)
}

func NewCachedPlans(next PlansSource, client redis.Cmdable, key string, ttl time.Duration, log logger.Logger) *CachedPlans {
	return &CachedPlans{
		next:   next,
		redis:  client,
		key:    key,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "plans-cache"}),
		encode: json.Marshal,
	}
}

func (c *CachedPlans) FetchPlans(ctx context.Context) ([]models.SubscriptionPlan, error) {
	val, err := c.redis.Get(ctx, c.key).Result()
	switch {
	case err == nil:
		var plans []models.SubscriptionPlan
		if jsonErr := json.Unmarshal([]byte(val), &plans); jsonErr == nil {
			return plans, nil
		}
		c.logger.Warn("Discarding unreadable cached plans", map[string]interface{}{"key": c.key})
	case err != redis.Nil:
		c.logger.Warn("Plan cache read failed", map[string]interface{}{
			"key":   c.key,
			"error": err.Error(),
		})
	}

	plans, err := c.next.FetchPlans(ctx)
	if err != nil || plans == nil {
		return plans, err
	}

	data, err := c.encode(plans)
	if err != nil {
		c.logger.Warn("Plan cache encode failed", map[string]interface{}{
			"key":   c.key,
			"error": err.Error(),
		})
		return plans, nil
	}
	if err := c.redis.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Plan cache write failed", map[string]interface{}{
			"key":   c.key,
			"error": err.Error(),
		})
	}
	return plans, nil
}
