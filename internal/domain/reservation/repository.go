package reservation

import (
	"context"
	"time"

	"github.com/sanosuguru/go-flight-reservation/internal/domain/transaction"
)

// Repository は予約リポジトリのインターフェース
type Repository interface {
	// Create は予約と搭乗区間・搭乗者を作成する（トランザクション必須）
	Create(ctx context.Context, tx transaction.Tx, reservation *Reservation) error

	// GetByID はIDから予約を取得する
	GetByID(ctx context.Context, id int64) (*Reservation, error)

	// GetByIDForUpdate は行ロックを取得して予約を取得する（トランザクション必須）
	GetByIDForUpdate(ctx context.Context, tx transaction.Tx, id int64) (*Reservation, error)

	// ListByUser はユーザーの予約一覧を取得する。statuses が空なら全状態
	ListByUser(ctx context.Context, userID int64, statuses []Status) ([]*Reservation, error)

	// Update は予約の状態・運賃・確認番号・期限を更新する（トランザクション必須）
	Update(ctx context.Context, tx transaction.Tx, reservation *Reservation) error

	// UpdateTicketFlight は搭乗区間のフライトを差し替える（トランザクション必須）
	UpdateTicketFlight(ctx context.Context, tx transaction.Tx, ticketID, flightID int64) error

	// ListStaleBlocked は期限切れ、または出発まで leadTime 未満となった仮押さえを行ロック付きで取得する
	ListStaleBlocked(ctx context.Context, tx transaction.Tx, now time.Time, leadTime time.Duration) ([]*Reservation, error)

	// AppendHistory は履歴を追記する（トランザクション必須）
	AppendHistory(ctx context.Context, tx transaction.Tx, h *History) error

	// ListHistory は予約の履歴を古い順に取得する
	ListHistory(ctx context.Context, reservationID int64) ([]*History, error)
}
