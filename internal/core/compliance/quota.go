package compliance

import (
	"strings"

	"github.com/shopspring/decimal"
)

// RoundingMode は法定雇用障害者数を整数化する方向です。
type RoundingMode string

const (
	// RoundCeil は切り上げです。月次報告の算定に用いる標準の規則です。
	RoundCeil RoundingMode = "ceil"
	// RoundFloor は切り捨てです。旧来の年度申告計算との突き合わせ用に残しています。
	RoundFloor RoundingMode = "floor"
)

var hundred = decimal.NewFromInt(100)

// ParseRoundingMode は設定値を RoundingMode に変換します。空文字は RoundCeil です。
func ParseRoundingMode(s string) (RoundingMode, error) {
	switch RoundingMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", RoundCeil:
		return RoundCeil, nil
	case RoundFloor:
		return RoundFloor, nil
	default:
		return "", ErrInvalidRoundingMode
	}
}

// RequiredHeadcount は headcount × rate / 100 を mode の方向へ丸めた法定雇用障害者数を返します。
// rate は百分率（2.3 など）です。
func RequiredHeadcount(headcount int64, rate decimal.Decimal, mode RoundingMode) int64 {
	if headcount <= 0 || !rate.IsPositive() {
		return 0
	}
	raw := decimal.NewFromInt(headcount).Mul(rate).Div(hundred)
	if mode == RoundFloor {
		return raw.Floor().IntPart()
	}
	return raw.Ceil().IntPart()
}
