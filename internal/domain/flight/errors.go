package flight

import (
	"errors"
	"fmt"
)

// ErrFlightUnavailable は予約対象のフライトが利用できないことを表す
var ErrFlightUnavailable = errors.New("フライトを利用できません")

// Flight ドメインのエラー定義
var (
	ErrFlightNotFound        = fmt.Errorf("%w: フライトが見つかりません", ErrFlightUnavailable)
	ErrInsufficientSeats     = fmt.Errorf("%w: 空席が不足しています", ErrFlightUnavailable)
	ErrDepartureNotScheduled = fmt.Errorf("%w: 出発日時が未定です", ErrFlightUnavailable)
	ErrInvalidSeatCount      = errors.New("座席数は1以上である必要があります")
	ErrInvalidSearchCriteria = errors.New("検索条件が不正です")
)
