package flight

import (
	"context"

	"github.com/sanosuguru/go-flight-reservation/internal/domain/transaction"
)

// Repository はフライトスケジュールの参照リポジトリ
type Repository interface {
	// GetByID はIDからフライトを取得する
	GetByID(ctx context.Context, id int64) (*Flight, error)

	// GetByIDTx はトランザクション内でフライトを取得する
	GetByIDTx(ctx context.Context, tx transaction.Tx, id int64) (*Flight, error)

	// Search は片道条件に合致するフライトを出発日時順に返す
	Search(ctx context.Context, leg Leg) ([]*Flight, error)
}

// SeatInventory はフライトごとの空席数を増減する
type SeatInventory interface {
	// TryDecrement は空席が n 以上ある場合のみ n 減らす（トランザクション必須）
	// 不足時は ErrInsufficientSeats を返し、空席数は変化しない
	TryDecrement(ctx context.Context, tx transaction.Tx, flightID int64, n int) error

	// Increment は空席数を n 増やす（トランザクション必須）
	Increment(ctx context.Context, tx transaction.Tx, flightID int64, n int) error

	// CountAvailable は現在の空席数を返す
	CountAvailable(ctx context.Context, flightID int64) (int, error)
}
