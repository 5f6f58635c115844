package reservation

import (
	"errors"
	"fmt"
)

// エラー種別
// 個別のエラーはいずれかを %w でラップする
var (
	ErrValidation          = errors.New("入力値が不正です")
	ErrReservationNotFound = errors.New("予約が見つかりません")
	ErrInvalidState        = errors.New("現在の予約状態では実行できません")
	ErrTooCloseToDeparture = errors.New("出発日時まで14日未満です")
	ErrConcurrencyConflict = errors.New("同時更新が競合しました")
)

// Reservation ドメインのエラー定義
var (
	ErrUserIDRequired         = fmt.Errorf("%w: ユーザーIDは必須です", ErrValidation)
	ErrFlightRequired         = fmt.Errorf("%w: フライトは必須です", ErrValidation)
	ErrInvalidPassengerCount  = fmt.Errorf("%w: 搭乗者数は1以上である必要があります", ErrValidation)
	ErrPassengersRequired     = fmt.Errorf("%w: 搭乗者情報は必須です", ErrValidation)
	ErrPassengerFieldRequired = fmt.Errorf("%w: 搭乗者の必須項目が未入力です", ErrValidation)
	ErrDateOfBirthInFuture    = fmt.Errorf("%w: 生年月日が未来日です", ErrValidation)
	ErrPassportExpired        = fmt.Errorf("%w: パスポートの有効期限が切れています", ErrValidation)
	ErrNegativeFare           = fmt.Errorf("%w: 運賃が負の値です", ErrValidation)

	ErrReservationNotBlocked       = fmt.Errorf("%w: 予約は仮押さえ状態ではありません", ErrInvalidState)
	ErrReservationAlreadyCancelled = fmt.Errorf("%w: 予約は既にキャンセルされています", ErrInvalidState)
	ErrBlockExpired                = fmt.Errorf("%w: 仮押さえの有効期限が切れています", ErrInvalidState)
	ErrNotSingleLeg                = fmt.Errorf("%w: 振替は片道1区間の予約のみ可能です", ErrInvalidState)
)
