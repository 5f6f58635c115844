package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/sanosuguru/go-flight-reservation/internal/domain/loyalty"
	"github.com/sanosuguru/go-flight-reservation/internal/domain/transaction"
)

type LoyaltyRepository struct{ db *sqlx.DB }

func NewLoyaltyRepository(db *sqlx.DB) *LoyaltyRepository { return &LoyaltyRepository{db: db} }

func (r *LoyaltyRepository) Credit(ctx context.Context, tx transaction.Tx, userID int64, miles decimal.Decimal) error {
	if !miles.IsPositive() {
		return nil
	}
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return err
	}
	query := `INSERT INTO loyalty_accounts (user_id, sky_miles, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET sky_miles = loyalty_accounts.sky_miles + EXCLUDED.sky_miles, updated_at = NOW()`
	if _, err := sqlTx.ExecContext(ctx, query, userID, miles); err != nil {
		return wrapDBError("マイル加算", err)
	}
	return nil
}

func (r *LoyaltyRepository) Debit(ctx context.Context, tx transaction.Tx, userID int64, miles decimal.Decimal) error {
	if !miles.IsPositive() {
		return nil
	}
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return err
	}
	// 口座がない場合は減算対象がないので何もしない
	query := `UPDATE loyalty_accounts SET sky_miles = GREATEST(sky_miles - $1, 0), updated_at = NOW() WHERE user_id = $2`
	if _, err := sqlTx.ExecContext(ctx, query, miles, userID); err != nil {
		return wrapDBError("マイル減算", err)
	}
	return nil
}

func (r *LoyaltyRepository) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	if err := r.db.GetContext(ctx, &balance, `SELECT sky_miles FROM loyalty_accounts WHERE user_id = $1`, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, wrapDBError("マイル残高取得", err)
	}
	return balance, nil
}

var _ loyalty.Repository = (*LoyaltyRepository)(nil)
