package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-flight-reservation/internal/domain/flight"
	redisinfra "github.com/sanosuguru/go-flight-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-flight-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-flight-reservation/internal/pkg/metrics"
)

const defaultSeatCacheTTL = 30 * time.Second

type FlightService struct {
	flightRepo flight.Repository
	inventory  flight.SeatInventory
	cache      SeatCache
	cacheTTL   time.Duration
	metrics    *metrics.Metrics
}

func NewFlightService(fr flight.Repository, inv flight.SeatInventory, cache SeatCache) *FlightService {
	return &FlightService{flightRepo: fr, inventory: inv, cache: cache, cacheTTL: defaultSeatCacheTTL}
}

// WithCacheTTL は空席数キャッシュの有効期間を設定する
func (s *FlightService) WithCacheTTL(ttl time.Duration) *FlightService {
	if ttl > 0 {
		s.cacheTTL = ttl
	}
	return s
}

func (s *FlightService) WithMetrics(m *metrics.Metrics) *FlightService {
	s.metrics = m
	return s
}

// SearchResult は往路・復路それぞれの検索結果
type SearchResult struct {
	Outbound []*flight.Flight
	Return   []*flight.Flight
}

func (s *FlightService) GetFlight(ctx context.Context, id int64) (*flight.Flight, error) {
	return s.flightRepo.GetByID(ctx, id)
}

// SearchFlights は条件に合うフライトを検索する。復路日付があれば出発・到着空港を入れ替えて復路も検索する
func (s *FlightService) SearchFlights(ctx context.Context, criteria flight.SearchCriteria) (*SearchResult, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}
	outbound, err := s.flightRepo.Search(ctx, criteria.Outbound())
	if err != nil {
		return nil, err
	}
	result := &SearchResult{Outbound: outbound}
	if leg, ok := criteria.Return(); ok {
		back, err := s.flightRepo.Search(ctx, leg)
		if err != nil {
			return nil, err
		}
		result.Return = back
	}
	return result, nil
}

func (s *FlightService) CountAvailableSeats(ctx context.Context, flightID int64) (int, error) {
	// キャッシュから取得を試みる
	if s.cache != nil {
		count, err := s.cache.GetAvailableCount(ctx, flightID)
		if err == nil {
			s.observeCache("hit")
			logger.Debug("キャッシュヒット", logger.FlightID(flightID), zap.Int("count", count))
			return count, nil
		}
		if errors.Is(err, redisinfra.ErrCacheMiss) {
			s.observeCache("miss")
		} else {
			s.observeCache("error")
			logger.Warn("キャッシュ取得エラー", zap.Error(err))
		}
	}

	// DBから取得
	count, err := s.inventory.CountAvailable(ctx, flightID)
	if err != nil {
		return 0, err
	}

	// キャッシュに保存
	if s.cache != nil {
		if cacheErr := s.cache.SetAvailableCount(ctx, flightID, count, s.cacheTTL); cacheErr != nil {
			logger.Warn("キャッシュ保存エラー", zap.Error(cacheErr))
		}
	}

	return count, nil
}

// InvalidateCache はフライトの空席数キャッシュを無効化する
func (s *FlightService) InvalidateCache(ctx context.Context, flightIDs ...int64) {
	invalidateSeatCache(ctx, s.cache, flightIDs)
}

func (s *FlightService) observeCache(result string) {
	if s.metrics != nil {
		s.metrics.SeatCacheRequestsTotal.WithLabelValues(result).Inc()
	}
}

func invalidateSeatCache(ctx context.Context, cache SeatCache, flightIDs []int64) {
	if cache == nil || len(flightIDs) == 0 {
		return
	}
	if err := cache.Invalidate(ctx, flightIDs...); err != nil {
		logger.Warn("キャッシュ無効化エラー", zap.Error(err), zap.Int64s("flight_ids", flightIDs))
	}
}
