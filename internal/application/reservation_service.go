package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-flight-reservation/internal/domain/flight"
	"github.com/sanosuguru/go-flight-reservation/internal/domain/loyalty"
	"github.com/sanosuguru/go-flight-reservation/internal/domain/refund"
	"github.com/sanosuguru/go-flight-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-flight-reservation/internal/domain/transaction"
	redisinfra "github.com/sanosuguru/go-flight-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-flight-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-flight-reservation/internal/pkg/metrics"
)

const (
	reservationLockTTL     = 10 * time.Second
	reservationLockRetries = 5
	reservationLockDelay   = 50 * time.Millisecond
	sweepLockKey           = "reservations:expiry-sweep"
	sweepLockTTL           = time.Minute
	sweepExtendEvery       = 50
	publishTimeout         = 5 * time.Second
)

type ReservationService struct {
	txManager       transaction.Manager
	reservationRepo reservation.Repository
	flightRepo      flight.Repository
	inventory       flight.SeatInventory
	loyaltyRepo     loyalty.Repository
	lockManager     redisinfra.LockManagerInterface
	seatCache       SeatCache
	publisher       EventPublisher
	metrics         *metrics.Metrics
	now             func() time.Time
	newToken        func() string
	extendEvery     int // 期限切れ処理でロックを延長する間隔（件数）
}

func NewReservationService(
	txManager transaction.Manager,
	rr reservation.Repository,
	fr flight.Repository,
	inv flight.SeatInventory,
	lr loyalty.Repository,
	lm redisinfra.LockManagerInterface,
	cache SeatCache,
) *ReservationService {
	return &ReservationService{
		txManager:       txManager,
		reservationRepo: rr,
		flightRepo:      fr,
		inventory:       inv,
		loyaltyRepo:     lr,
		lockManager:     lm,
		seatCache:       cache,
		now:             time.Now,
		newToken:        uuid.NewString,
		extendEvery:     sweepExtendEvery,
	}
}

// WithPublisher はコミット後のイベント送信先を設定する
func (s *ReservationService) WithPublisher(p EventPublisher) *ReservationService {
	s.publisher = p
	return s
}

func (s *ReservationService) WithMetrics(m *metrics.Metrics) *ReservationService {
	s.metrics = m
	return s
}

type BlockInput struct {
	UserID         int64
	FlightID       int64
	PassengerCount int
}

// Block はフライトの座席を仮押さえする
// 出発まで14日以上あるフライトのみ対象で、仮押さえは14日後に失効する
func (s *ReservationService) Block(ctx context.Context, input BlockInput) (res *reservation.Reservation, err error) {
	defer func() { s.record("block", err) }()

	if input.UserID <= 0 {
		return nil, reservation.ErrUserIDRequired
	}
	if input.PassengerCount < 1 {
		return nil, reservation.ErrInvalidPassengerCount
	}

	now := s.now()
	err = transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		f, err := s.flightRepo.GetByIDTx(ctx, tx, input.FlightID)
		if err != nil {
			return err
		}
		if err := checkLeadTime(f, now); err != nil {
			return err
		}
		if err := s.inventory.TryDecrement(ctx, tx, f.ID, input.PassengerCount); err != nil {
			return err
		}

		res = reservation.NewBlocked(input.UserID, f.ID, input.PassengerCount, f.Price, s.newToken(), now)
		res.AwardedMiles = loyalty.Award([]float64{f.EffectiveDistance()}, input.PassengerCount)
		if err := s.reservationRepo.Create(ctx, tx, res); err != nil {
			return err
		}
		return s.loyaltyRepo.Credit(ctx, tx, input.UserID, res.AwardedMiles)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("仮押さえを作成", logger.ReservationID(res.ID), logger.UserID(res.UserID),
		logger.FlightID(input.FlightID), zap.Int("seats", input.PassengerCount))
	s.afterCommit(ctx, reservation.EventBlocked, res, decimal.Zero, res.FlightIDs())
	return res, nil
}

type PassengerInput struct {
	Title          string
	FirstName      string
	LastName       string
	DateOfBirth    time.Time
	PassportNumber string
	PassportExpiry time.Time
}

type CreateDirectInput struct {
	UserID           int64
	OutboundFlightID int64
	ReturnFlightID   *int64
	Passengers       []PassengerInput
	TotalFare        decimal.Decimal
}

// CreateDirect は搭乗者情報付きの確定予約を作成する
// 往復の場合は両区間の座席確保を1トランザクションで行い、どちらかが失敗すれば何も変更しない
func (s *ReservationService) CreateDirect(ctx context.Context, input CreateDirectInput) (res *reservation.Reservation, err error) {
	defer func() { s.record("create", err) }()

	if input.UserID <= 0 {
		return nil, reservation.ErrUserIDRequired
	}
	if len(input.Passengers) == 0 {
		return nil, reservation.ErrPassengersRequired
	}
	if input.TotalFare.IsNegative() {
		return nil, reservation.ErrNegativeFare
	}

	now := s.now()
	passengers := make([]reservation.Passenger, len(input.Passengers))
	for i, p := range input.Passengers {
		passengers[i] = reservation.Passenger{
			Title: p.Title, FirstName: p.FirstName, LastName: p.LastName,
			DateOfBirth: p.DateOfBirth, PassportNumber: p.PassportNumber, PassportExpiry: p.PassportExpiry,
		}
		if err := passengers[i].Validate(now); err != nil {
			return nil, fmt.Errorf("搭乗者%d: %w", i+1, err)
		}
	}

	flightIDs := []int64{input.OutboundFlightID}
	if input.ReturnFlightID != nil {
		flightIDs = append(flightIDs, *input.ReturnFlightID)
	}
	seats := len(passengers)

	err = transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		distances := make([]float64, 0, len(flightIDs))
		for _, id := range flightIDs {
			f, err := s.flightRepo.GetByIDTx(ctx, tx, id)
			if err != nil {
				return err
			}
			if !f.HasSeats(seats) {
				return flight.ErrInsufficientSeats
			}
			if err := s.inventory.TryDecrement(ctx, tx, f.ID, seats); err != nil {
				return err
			}
			distances = append(distances, f.EffectiveDistance())
		}

		res = reservation.NewConfirmed(input.UserID, flightIDs, passengers, input.TotalFare, s.newToken(), now)
		res.AwardedMiles = loyalty.Award(distances, seats)
		if err := s.reservationRepo.Create(ctx, tx, res); err != nil {
			return err
		}
		return s.loyaltyRepo.Credit(ctx, tx, input.UserID, res.AwardedMiles)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("予約を作成", logger.ReservationID(res.ID), logger.UserID(res.UserID),
		zap.Int64s("flight_ids", flightIDs), zap.Int("seats", seats))
	s.afterCommit(ctx, reservation.EventCreated, res, decimal.Zero, flightIDs)
	return res, nil
}

// Confirm は仮押さえを確定し、確認番号を再発行する
func (s *ReservationService) Confirm(ctx context.Context, reservationID, userID int64) (res *reservation.Reservation, err error) {
	defer func() { s.record("confirm", err) }()

	unlock, err := s.lockReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.now()
	err = transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		r, err := s.loadOwned(ctx, tx, reservationID, userID)
		if err != nil {
			return err
		}
		if r.Status != reservation.StatusBlocked {
			return reservation.ErrReservationNotBlocked
		}
		if r.IsBlockExpired(now) {
			return reservation.ErrBlockExpired
		}
		flights, err := s.legFlights(ctx, tx, r)
		if err != nil {
			return err
		}
		for _, f := range flights {
			if err := checkLeadTime(f, now); err != nil {
				return err
			}
		}
		if err := r.Confirm(s.newToken(), now); err != nil {
			return err
		}
		if err := s.reservationRepo.Update(ctx, tx, r); err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("予約を確定", logger.ReservationID(res.ID), logger.UserID(userID))
	s.afterCommit(ctx, reservation.EventConfirmed, res, decimal.Zero, nil)
	return res, nil
}

type RescheduleInput struct {
	ReservationID int64
	UserID        int64
	NewFlightID   int64
}

// Reschedule は片道予約を別フライトへ振り替える
// 旧フライトへの座席返却と新フライトの座席確保は同じトランザクションで行う
func (s *ReservationService) Reschedule(ctx context.Context, input RescheduleInput) (res *reservation.Reservation, err error) {
	defer func() { s.record("reschedule", err) }()

	unlock, err := s.lockReservation(ctx, input.ReservationID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.now()
	var oldFlightID int64
	err = transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		r, err := s.loadOwned(ctx, tx, input.ReservationID, input.UserID)
		if err != nil {
			return err
		}
		if r.Status == reservation.StatusCancelled {
			return reservation.ErrReservationAlreadyCancelled
		}
		if len(r.Tickets) != 1 {
			return reservation.ErrNotSingleLeg
		}
		ticket := r.Tickets[0]
		oldFlightID = ticket.FlightScheduleID

		oldFlight, err := s.flightRepo.GetByIDTx(ctx, tx, oldFlightID)
		if err != nil {
			return err
		}
		newFlight, err := s.flightRepo.GetByIDTx(ctx, tx, input.NewFlightID)
		if err != nil {
			return err
		}
		if !newFlight.HasDeparture() {
			return flight.ErrDepartureNotScheduled
		}
		seats := r.SeatsPerLeg()
		if oldFlight.ID != newFlight.ID && !newFlight.HasSeats(seats) {
			return flight.ErrInsufficientSeats
		}
		if err := s.moveSeats(ctx, tx, oldFlight.ID, newFlight.ID, seats); err != nil {
			return err
		}
		if err := s.reservationRepo.UpdateTicketFlight(ctx, tx, ticket.ID, newFlight.ID); err != nil {
			return err
		}

		oldFare := r.TotalFare
		if err := r.Reschedule(newFlight.ID, newFlight.Price, s.newToken(), now); err != nil {
			return err
		}
		if err := s.reservationRepo.Update(ctx, tx, r); err != nil {
			return err
		}
		if err := s.reservationRepo.AppendHistory(ctx, tx, &reservation.History{
			ReservationID: r.ID,
			ActionType:    reservation.ActionReschedule,
			OldDate:       oldFlight.DepartureTime,
			NewDate:       newFlight.DepartureTime,
			RefundAmount:  oldFare.Sub(newFlight.Price),
			ActionDate:    now,
		}); err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("予約を振替", logger.ReservationID(res.ID), logger.UserID(input.UserID),
		zap.Int64("old_flight_id", oldFlightID), zap.Int64("new_flight_id", input.NewFlightID))
	s.afterCommit(ctx, reservation.EventRescheduled, res, decimal.Zero, []int64{oldFlightID, input.NewFlightID})
	return res, nil
}

// moveSeats は旧フライトへ座席を返却し新フライトの座席を確保する
// 複数の振替が並行しても行ロックの取得順が揃うよう、フライトID順に更新する
func (s *ReservationService) moveSeats(ctx context.Context, tx transaction.Tx, fromID, toID int64, seats int) error {
	if fromID == toID {
		return nil
	}
	if fromID < toID {
		if err := s.inventory.Increment(ctx, tx, fromID, seats); err != nil {
			return err
		}
		return s.inventory.TryDecrement(ctx, tx, toID, seats)
	}
	if err := s.inventory.TryDecrement(ctx, tx, toID, seats); err != nil {
		return err
	}
	return s.inventory.Increment(ctx, tx, fromID, seats)
}

type CancelResult struct {
	Reservation        *reservation.Reservation
	RefundAmount       decimal.Decimal
	CancellationNumber string
}

// Cancel は予約をキャンセルし、座席を返却する
// 確定済み予約のみ出発までの日数に応じた払い戻しとマイル減算を行う
func (s *ReservationService) Cancel(ctx context.Context, reservationID, userID int64) (result *CancelResult, err error) {
	defer func() { s.record("cancel", err) }()

	unlock, err := s.lockReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.now()
	err = transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		r, err := s.loadOwned(ctx, tx, reservationID, userID)
		if err != nil {
			return err
		}
		if r.Status == reservation.StatusCancelled {
			return reservation.ErrReservationAlreadyCancelled
		}
		flights, err := s.legFlights(ctx, tx, r)
		if err != nil {
			return err
		}

		wasConfirmed := r.Status == reservation.StatusConfirmed
		quote := quoteRefund(r, flights, now)
		seats := r.SeatsPerLeg()
		if err := s.releaseSeats(ctx, tx, r, seats); err != nil {
			return err
		}
		debit := loyalty.CancellationDebit(wasConfirmed, r.AwardedMiles)
		if err := s.loyaltyRepo.Debit(ctx, tx, r.UserID, debit); err != nil {
			return err
		}

		if err := r.Cancel(now); err != nil {
			return err
		}
		if err := s.reservationRepo.Update(ctx, tx, r); err != nil {
			return err
		}
		cancellationNumber := s.newToken()
		if err := s.reservationRepo.AppendHistory(ctx, tx, &reservation.History{
			ReservationID:      r.ID,
			ActionType:         reservation.ActionCancel,
			OldDate:            flight.EarliestDeparture(flights),
			RefundAmount:       quote.Amount,
			CancellationNumber: &cancellationNumber,
			ActionDate:         now,
		}); err != nil {
			return err
		}
		result = &CancelResult{Reservation: r, RefundAmount: quote.Amount, CancellationNumber: cancellationNumber}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("予約をキャンセル", logger.ReservationID(reservationID), logger.UserID(userID),
		zap.String("refund_amount", result.RefundAmount.StringFixed(2)))
	s.afterCommit(ctx, reservation.EventCancelled, result.Reservation, result.RefundAmount, result.Reservation.FlightIDs())
	return result, nil
}

type CancelPreview struct {
	ReservationID      int64
	DaysUntilDeparture int
	RefundPercentage   decimal.Decimal
	RefundAmount       decimal.Decimal
	Rules              string
}

// PreviewCancelRules はキャンセルした場合の払い戻し額を計算する。予約は変更しない
func (s *ReservationService) PreviewCancelRules(ctx context.Context, reservationID, userID int64) (*CancelPreview, error) {
	r, err := s.getOwned(ctx, reservationID, userID)
	if err != nil {
		return nil, err
	}
	if r.Status == reservation.StatusCancelled {
		return nil, reservation.ErrReservationAlreadyCancelled
	}
	flights, err := s.flightsOf(ctx, r)
	if err != nil {
		return nil, err
	}
	quote := quoteRefund(r, flights, s.now())
	return &CancelPreview{
		ReservationID:      r.ID,
		DaysUntilDeparture: quote.DaysUntilDeparture,
		RefundPercentage:   quote.Percentage,
		RefundAmount:       quote.Amount,
		Rules:              r.CancellationRules,
	}, nil
}

// ExpireStaleBlocks は失効した仮押さえ、または出発まで14日未満となった仮押さえをキャンセルし座席を返却する
// 繰り返し実行しても結果は変わらない
func (s *ReservationService) ExpireStaleBlocks(ctx context.Context, now time.Time) (int, error) {
	var sweepLock redisinfra.Lock
	if s.lockManager != nil {
		lock, err := s.lockManager.AcquireLock(ctx, sweepLockKey, sweepLockTTL)
		switch {
		case errors.Is(err, redisinfra.ErrLockNotAcquired):
			logger.Debug("他のインスタンスが期限切れ処理を実行中")
			return 0, nil
		case err != nil:
			logger.Warn("期限切れ処理のロック取得エラー", zap.Error(err))
		default:
			sweepLock = lock
			defer s.release(ctx, lock)
		}
	}

	var expired []*reservation.Reservation
	var touched []int64
	err := transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		candidates, err := s.reservationRepo.ListStaleBlocked(ctx, tx, now, reservation.MinLeadTime)
		if err != nil {
			return err
		}
		for i, r := range candidates {
			if sweepLock != nil && i > 0 && s.extendEvery > 0 && i%s.extendEvery == 0 {
				s.extend(ctx, sweepLock, sweepLockTTL)
			}
			flights, err := s.legFlights(ctx, tx, r)
			if err != nil {
				return err
			}
			if !isStaleBlock(r, flights, now) {
				continue
			}
			if err := s.releaseSeats(ctx, tx, r, r.SeatsPerLeg()); err != nil {
				return err
			}
			blockExpiry := r.BlockExpiryDate
			if err := r.Cancel(now); err != nil {
				return err
			}
			if err := s.reservationRepo.Update(ctx, tx, r); err != nil {
				return err
			}
			if err := s.reservationRepo.AppendHistory(ctx, tx, &reservation.History{
				ReservationID: r.ID,
				ActionType:    reservation.ActionExpire,
				OldDate:       blockExpiry,
				RefundAmount:  decimal.Zero,
				ActionDate:    now,
			}); err != nil {
				return err
			}
			expired = append(expired, r)
			touched = append(touched, r.FlightIDs()...)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("期限切れ仮押さえの解放に失敗: %w", err)
	}

	if s.metrics != nil && len(expired) > 0 {
		s.metrics.ExpiredBlocksTotal.Add(float64(len(expired)))
	}
	invalidateSeatCache(ctx, s.seatCache, touched)
	for _, r := range expired {
		s.publish(ctx, reservation.NewEvent(reservation.EventExpired, r, decimal.Zero, now))
	}
	return len(expired), nil
}

// GetByID はIDから予約を取得する
func (s *ReservationService) GetByID(ctx context.Context, id int64) (*reservation.Reservation, error) {
	return s.reservationRepo.GetByID(ctx, id)
}

// GetForUser は利用者本人の予約を取得する。他人の予約は見つからない扱い
func (s *ReservationService) GetForUser(ctx context.Context, id, userID int64) (*reservation.Reservation, error) {
	return s.getOwned(ctx, id, userID)
}

// ListByUser は利用者の予約一覧を取得する。statuses が空なら全状態
func (s *ReservationService) ListByUser(ctx context.Context, userID int64, statuses []reservation.Status) ([]*reservation.Reservation, error) {
	if userID <= 0 {
		return nil, reservation.ErrUserIDRequired
	}
	return s.reservationRepo.ListByUser(ctx, userID, statuses)
}

// ReservationDetail は予約と搭乗区間のフライト
type ReservationDetail struct {
	Reservation *reservation.Reservation
	Flights     []*flight.Flight
}

// GetDetail は予約をフライト情報付きで取得する
func (s *ReservationService) GetDetail(ctx context.Context, id, userID int64) (*ReservationDetail, error) {
	r, err := s.getOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	flights, err := s.flightsOf(ctx, r)
	if err != nil {
		return nil, err
	}
	return &ReservationDetail{Reservation: r, Flights: flights}, nil
}

// ListHistory は予約の変更履歴を取得する
func (s *ReservationService) ListHistory(ctx context.Context, id, userID int64) ([]*reservation.History, error) {
	if _, err := s.getOwned(ctx, id, userID); err != nil {
		return nil, err
	}
	return s.reservationRepo.ListHistory(ctx, id)
}

// GetLoyaltyBalance は利用者のマイル残高を取得する
func (s *ReservationService) GetLoyaltyBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	if userID <= 0 {
		return decimal.Zero, reservation.ErrUserIDRequired
	}
	return s.loyaltyRepo.GetBalance(ctx, userID)
}

func (s *ReservationService) getOwned(ctx context.Context, id, userID int64) (*reservation.Reservation, error) {
	r, err := s.reservationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.IsOwnedBy(userID) {
		return nil, reservation.ErrReservationNotFound
	}
	return r, nil
}

func (s *ReservationService) loadOwned(ctx context.Context, tx transaction.Tx, id, userID int64) (*reservation.Reservation, error) {
	r, err := s.reservationRepo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !r.IsOwnedBy(userID) {
		return nil, reservation.ErrReservationNotFound
	}
	return r, nil
}

func (s *ReservationService) legFlights(ctx context.Context, tx transaction.Tx, r *reservation.Reservation) ([]*flight.Flight, error) {
	flights := make([]*flight.Flight, 0, len(r.Tickets))
	for _, t := range r.Tickets {
		f, err := s.flightRepo.GetByIDTx(ctx, tx, t.FlightScheduleID)
		if err != nil {
			return nil, err
		}
		flights = append(flights, f)
	}
	return flights, nil
}

func (s *ReservationService) flightsOf(ctx context.Context, r *reservation.Reservation) ([]*flight.Flight, error) {
	flights := make([]*flight.Flight, 0, len(r.Tickets))
	for _, t := range r.Tickets {
		f, err := s.flightRepo.GetByID(ctx, t.FlightScheduleID)
		if err != nil {
			return nil, err
		}
		flights = append(flights, f)
	}
	return flights, nil
}

// releaseSeats は全区間へ座席を返却する。行ロックの取得順を揃えるためフライトID順に更新する
func (s *ReservationService) releaseSeats(ctx context.Context, tx transaction.Tx, r *reservation.Reservation, seats int) error {
	ids := r.FlightIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if err := s.inventory.Increment(ctx, tx, id, seats); err != nil {
			return err
		}
	}
	return nil
}

func (s *ReservationService) lockReservation(ctx context.Context, id int64) (func(), error) {
	if s.lockManager == nil {
		return func() {}, nil
	}
	start := time.Now()
	lock, err := s.lockManager.AcquireLockWithRetry(ctx, fmt.Sprintf("reservation:%d", id),
		reservationLockTTL, reservationLockRetries, reservationLockDelay)
	s.observeLock("acquire", start, err)
	if err != nil {
		if errors.Is(err, redisinfra.ErrLockNotAcquired) {
			return nil, fmt.Errorf("%w: 予約は他の操作で処理中です", reservation.ErrConcurrencyConflict)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// Redis障害時もDBの行ロックで整合性は保たれる
		logger.Warn("ロック取得エラー", logger.ReservationID(id), zap.Error(err))
		return func() {}, nil
	}
	return func() { s.release(ctx, lock) }, nil
}

func (s *ReservationService) release(ctx context.Context, lock redisinfra.Lock) {
	start := time.Now()
	err := lock.Release(context.WithoutCancel(ctx))
	s.observeLock("release", start, err)
	if err != nil {
		logger.Warn("ロック解放エラー", zap.Error(err))
	}
}

// extend は長時間の処理中にロックが失効しないよう有効期限を延ばす
// 延長に失敗しても対象行は行ロックで保護されているため処理は続ける
func (s *ReservationService) extend(ctx context.Context, lock redisinfra.Lock, ttl time.Duration) {
	start := time.Now()
	err := lock.Extend(ctx, ttl)
	s.observeLock("extend", start, err)
	if err != nil {
		logger.Warn("ロック延長エラー", zap.Error(err))
	}
}

func (s *ReservationService) observeLock(op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failed"
	}
	s.metrics.DistributedLockDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
}

// afterCommit はコミット後の後処理。ここでの失敗は操作の結果に影響しない
func (s *ReservationService) afterCommit(ctx context.Context, typ reservation.EventType, r *reservation.Reservation, refundAmount decimal.Decimal, flightIDs []int64) {
	invalidateSeatCache(ctx, s.seatCache, flightIDs)
	s.publish(ctx, reservation.NewEvent(typ, r, refundAmount, s.now()))
}

func (s *ReservationService) publish(ctx context.Context, ev reservation.Event) {
	if s.publisher == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	status := metrics.StatusSuccess
	if err := s.publisher.Publish(pctx, ev); err != nil {
		status = metrics.StatusError
		logger.Warn("予約イベント送信エラー", logger.ReservationID(ev.ReservationID),
			zap.String("event", string(ev.Type)), zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.EventsPublishedTotal.WithLabelValues(status).Inc()
	}
}

func (s *ReservationService) record(op string, err error) {
	if s.metrics == nil {
		return
	}
	status := metrics.StatusSuccess
	switch {
	case err == nil:
	case isRejection(err):
		status = metrics.StatusRejected
	default:
		status = metrics.StatusError
	}
	s.metrics.ReservationOperationsTotal.WithLabelValues(op, status).Inc()
}

// isRejection は業務ルールによる拒否かを返す
func isRejection(err error) bool {
	for _, kind := range []error{
		reservation.ErrValidation,
		reservation.ErrReservationNotFound,
		reservation.ErrInvalidState,
		reservation.ErrTooCloseToDeparture,
		reservation.ErrConcurrencyConflict,
		flight.ErrFlightUnavailable,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

func checkLeadTime(f *flight.Flight, now time.Time) error {
	lead, err := f.LeadTime(now)
	if err != nil {
		return err
	}
	if lead < reservation.MinLeadTime {
		return reservation.ErrTooCloseToDeparture
	}
	return nil
}

// quoteRefund は確定済み予約のみ最も早い出発日時から払い戻し額を計算する
func quoteRefund(r *reservation.Reservation, flights []*flight.Flight, now time.Time) refund.Quote {
	if r.Status != reservation.StatusConfirmed {
		return refund.None()
	}
	return refund.Calculate(r.TotalFare, flight.EarliestDeparture(flights), now)
}

func isStaleBlock(r *reservation.Reservation, flights []*flight.Flight, now time.Time) bool {
	if r.Status != reservation.StatusBlocked {
		return false
	}
	if r.IsBlockExpired(now) {
		return true
	}
	for _, f := range flights {
		if f.DepartsWithin(reservation.MinLeadTime, now) {
			return true
		}
	}
	return false
}
