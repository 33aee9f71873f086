package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

// 楽観ロック（WATCH）の再試行回数
const maxCartRetries = 100

// 再試行しても競合が続いた
var ErrCartContention = errors.New("cart update contention")

// CartRedisRepositoryはカートをRedisに保存する（キー: cart:<userID>）。
type CartRedisRepository struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewCartRedisRepository(client *redis.Client, ttl time.Duration) *CartRedisRepository {
	return &CartRedisRepository{
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (r *CartRedisRepository) Load(ctx context.Context, userID int64) (*model.Cart, error) {
	return r.load(ctx, r.client, userID)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *CartRedisRepository) load(ctx context.Context, g getter, userID int64) (*model.Cart, error) {
	data, err := g.Get(ctx, cartKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.NewCart(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart model.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	cart.UserID = userID
	if cart.Lines == nil {
		cart.Lines = []model.CartLine{}
	}
	return &cart, nil
}

// 空のカートはキーごと消す。保存のたびにTTLを延長する
func (r *CartRedisRepository) Save(ctx context.Context, cart *model.Cart) error {
	if len(cart.Lines) == 0 {
		return r.Delete(ctx, cart.UserID)
	}

	data, err := r.encode(cart)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, cartKey(cart.UserID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Update はWATCHでキーを監視し、他の書き込みがあれば読み直してやり直す。
func (r *CartRedisRepository) Update(ctx context.Context, userID int64, fn func(cart *model.Cart) error) (*model.Cart, error) {
	key := cartKey(userID)
	var out *model.Cart

	txf := func(tx *redis.Tx) error {
		cart, err := r.load(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := fn(cart); err != nil {
			return err
		}

		var data []byte
		if len(cart.Lines) > 0 {
			if data, err = r.encode(cart); err != nil {
				return err
			}
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			//空のカートはキーごと消す
			if data == nil {
				p.Del(ctx, key)
				return nil
			}
			p.Set(ctx, key, data, r.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		out = cart
		return nil
	}

	for i := 0; i < maxCartRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: user %d", ErrCartContention, userID)
}

func (r *CartRedisRepository) encode(cart *model.Cart) ([]byte, error) {
	cart.UpdatedAt = r.now()
	data, err := json.Marshal(cart)
	if err != nil {
		return nil, fmt.Errorf("marshal cart failed: %w", err)
	}
	return data, nil
}

func (r *CartRedisRepository) Delete(ctx context.Context, userID int64) error {
	if err := r.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cartKey(userID int64) string {
	return fmt.Sprintf("cart:%d", userID)
}
