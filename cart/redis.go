package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	models "pos-backend/model"
)

// Redis stores each session as two hashes: item metadata (first write wins)
// and quantities (HINCRBY). Both are written in one MULTI so accumulation is
// atomic across processes. Every session key slides its TTL on write.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	cb     *gobreaker.CircuitBreaker[models.Cart]
}

type redisItem struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{
		client: client,
		ttl:    ttl,
		cb: gobreaker.NewCircuitBreaker[models.Cart](gobreaker.Settings{
			Name:        "cart-redis",
			MaxRequests: 1,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

func (r *Redis) Add(ctx context.Context, session string, line models.CartLine) (models.Cart, error) {
	if line.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	item, err := json.Marshal(redisItem{Name: line.Name, Price: line.Price})
	if err != nil {
		return nil, fmt.Errorf("marshal cart item failed: %w", err)
	}

	return r.execute(func() (models.Cart, error) {
		itemKey, qtyKey := cacheKeys(session)
		pipe := r.client.TxPipeline()
		pipe.HSetNX(ctx, itemKey, line.Code, item)
		pipe.HIncrBy(ctx, qtyKey, line.Code, int64(line.Quantity))
		pipe.Expire(ctx, itemKey, r.ttl)
		pipe.Expire(ctx, qtyKey, r.ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("redis add failed: %w", err)
		}
		return r.load(ctx, session)
	})
}

func (r *Redis) Get(ctx context.Context, session string) (models.Cart, error) {
	return r.execute(func() (models.Cart, error) {
		return r.load(ctx, session)
	})
}

func (r *Redis) Clear(ctx context.Context, session string) error {
	_, err := r.execute(func() (models.Cart, error) {
		itemKey, qtyKey := cacheKeys(session)
		if err := r.client.Del(ctx, itemKey, qtyKey).Err(); err != nil {
			return nil, fmt.Errorf("redis delete failed: %w", err)
		}
		return nil, nil
	})
	return err
}

func (r *Redis) execute(fn func() (models.Cart, error)) (models.Cart, error) {
	c, err := r.cb.Execute(fn)
	if err != nil {
		return nil, fmt.Errorf("cart store: %w", err)
	}
	return c, nil
}

func (r *Redis) load(ctx context.Context, session string) (models.Cart, error) {
	itemKey, qtyKey := cacheKeys(session)

	pipe := r.client.Pipeline()
	itemsCmd := pipe.HGetAll(ctx, itemKey)
	qtyCmd := pipe.HGetAll(ctx, qtyKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	items := itemsCmd.Val()
	out := make(models.Cart, len(items))
	for code, raw := range items {
		var it redisItem
		if err := json.Unmarshal([]byte(raw), &it); err != nil {
			return nil, fmt.Errorf("unmarshal cart item %s failed: %w", code, err)
		}
		qty, err := strconv.Atoi(qtyCmd.Val()[code])
		if err != nil {
			return nil, fmt.Errorf("cart quantity for %s: %w", code, err)
		}
		out[code] = models.CartLine{Code: code, Name: it.Name, Price: it.Price, Quantity: qty}
	}
	return out, nil
}

func cacheKeys(session string) (item, qty string) {
	return fmt.Sprintf("cart:%s:item", session), fmt.Sprintf("cart:%s:qty", session)
}
