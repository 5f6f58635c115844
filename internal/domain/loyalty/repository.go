package loyalty

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sanosuguru/go-flight-reservation/internal/domain/transaction"
)

// Repository はユーザーごとのマイル残高を管理する
type Repository interface {
	// Credit は残高にマイルを加算する（トランザクション必須）
	Credit(ctx context.Context, tx transaction.Tx, userID int64, miles decimal.Decimal) error

	// Debit は残高からマイルを減算する。0未満にはならない（トランザクション必須）
	Debit(ctx context.Context, tx transaction.Tx, userID int64, miles decimal.Decimal) error

	// GetBalance は残高を返す。口座がなければ0
	GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error)
}
