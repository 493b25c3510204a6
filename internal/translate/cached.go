package translate

import (
	"context"
	"time"

	"region40-bot/internal/utils"

	"golang.org/x/sync/singleflight"
)

// Cached memoizes a Translator. Concurrent identical requests share one call.
type Cached struct {
	next         Translator
	translations *utils.TTLMap[Result]
	detections   *utils.TTLMap[string]
	group        singleflight.Group
}

func NewCached(next Translator, ttl time.Duration, clock utils.Clock) *Cached {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Cached{
		next:         next,
		translations: utils.NewTTLMap[Result](ttl, clock),
		detections:   utils.NewTTLMap[string](ttl, clock),
	}
}

func (c *Cached) Translate(ctx context.Context, text, target string) (Result, error) {
	key := "trans:" + target + ":" + text
	if result, ok := c.translations.Get(key); ok {
		return result, nil
	}
	shared := context.WithoutCancel(ctx)
	value, err := c.do(ctx, key, func() (any, error) {
		result, err := c.next.Translate(shared, text, target)
		if err != nil {
			return Result{}, err
		}
		c.translations.Set(key, result)
		return result, nil
	})
	if err != nil {
		return Result{}, err
	}
	return value.(Result), nil
}

func (c *Cached) Detect(ctx context.Context, text string) (string, error) {
	key := "detect:" + text
	if code, ok := c.detections.Get(key); ok {
		return code, nil
	}
	shared := context.WithoutCancel(ctx)
	value, err := c.do(ctx, key, func() (any, error) {
		code, err := c.next.Detect(shared, text)
		if err != nil {
			return "", err
		}
		c.detections.Set(key, code)
		return code, nil
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

// do runs fn once per key for all concurrent callers. fn must not depend on
// the caller's cancellation, since other callers share its result; each
// caller still stops waiting when its own ctx ends.
func (c *Cached) do(ctx context.Context, key string, fn func() (any, error)) (any, error) {
	ch := c.group.DoChan(key, fn)
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
