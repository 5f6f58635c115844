package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheMiss = errors.New("キャッシュが見つかりません")
)

// FlightSeatCache はフライトごとの空席数キャッシュを管理する
type FlightSeatCache struct {
	client *redis.Client
}

// NewFlightSeatCache は新しいFlightSeatCacheインスタンスを作成する
func NewFlightSeatCache(client *redis.Client) *FlightSeatCache {
	return &FlightSeatCache{client: client}
}

// GetAvailableCount はフライトの空席数をキャッシュから取得する
func (c *FlightSeatCache) GetAvailableCount(ctx context.Context, flightID int64) (int, error) {
	val, err := c.client.Get(ctx, availableCountKey(flightID)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrCacheMiss
		}
		return 0, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	return val, nil
}

// SetAvailableCount はフライトの空席数をキャッシュに保存する
func (c *FlightSeatCache) SetAvailableCount(ctx context.Context, flightID int64, count int, ttl time.Duration) error {
	if err := c.client.Set(ctx, availableCountKey(flightID), count, ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate は指定フライトのキャッシュをまとめて無効化する
func (c *FlightSeatCache) Invalidate(ctx context.Context, flightIDs ...int64) error {
	if len(flightIDs) == 0 {
		return nil
	}
	keys := make([]string, len(flightIDs))
	for i, id := range flightIDs {
		keys[i] = availableCountKey(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func availableCountKey(flightID int64) string {
	return fmt.Sprintf("flights:%d:available_seats", flightID)
}
