package refund

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	fullTierRate = decimal.RequireFromString("0.90")
	halfTierRate = decimal.RequireFromString("0.50")
)

// Quote は払い戻し見積もり
type Quote struct {
	DaysUntilDeparture int
	Percentage         decimal.Decimal
	Amount             decimal.Decimal
}

// DaysUntilDeparture は出発までの日数を返す（端数切り捨て、出発後は負）
func DaysUntilDeparture(departure, now time.Time) int {
	return int(departure.Sub(now).Hours() / 24)
}

// Percentage は出発までの日数に応じた払い戻し率を返す
//
//	7日超:   90%
//	1〜7日:  50%
//	0日以下:  0%
func Percentage(days int) decimal.Decimal {
	switch {
	case days > 7:
		return fullTierRate
	case days > 0:
		return halfTierRate
	default:
		return decimal.Zero
	}
}

// Amount は運賃に払い戻し率を掛けた金額を返す（小数第2位で丸め）
func Amount(fare decimal.Decimal, days int) decimal.Decimal {
	return fare.Mul(Percentage(days)).Round(2)
}

// Calculate は出発日時から払い戻し見積もりを作る
// 出発日時が未定の場合は払い戻しなし
func Calculate(fare decimal.Decimal, departure *time.Time, now time.Time) Quote {
	if departure == nil {
		return Quote{Percentage: decimal.Zero, Amount: decimal.Zero}
	}
	days := DaysUntilDeparture(*departure, now)
	return Quote{
		DaysUntilDeparture: days,
		Percentage:         Percentage(days),
		Amount:             Amount(fare, days),
	}
}

// None は払い戻しなしの見積もりを返す
func None() Quote {
	return Quote{Percentage: decimal.Zero, Amount: decimal.Zero}
}
