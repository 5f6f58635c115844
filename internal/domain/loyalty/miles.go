package loyalty

import "github.com/shopspring/decimal"

var milesRate = decimal.RequireFromString("0.1")

// Award は搭乗区間の距離と搭乗者数から付与マイルを計算する
// 1区間あたり 距離 × 0.1 × 搭乗者数
func Award(distances []float64, passengers int) decimal.Decimal {
	total := decimal.Zero
	for _, d := range distances {
		total = total.Add(decimal.NewFromFloat(d).Mul(milesRate))
	}
	return total.Mul(decimal.NewFromInt(int64(passengers))).Round(2)
}

// CancellationDebit はキャンセル時に差し引くマイルを返す
// 確定済み予約のキャンセルのみ、予約作成時に付与した分をそのまま差し引く
func CancellationDebit(wasConfirmed bool, awarded decimal.Decimal) decimal.Decimal {
	if !wasConfirmed || awarded.IsNegative() {
		return decimal.Zero
	}
	return awarded
}
