package settings

import (
	"time"

	"github.com/shopspring/decimal"
)

// 丸め方向です。法定雇用障害者数の算出に使います。
const (
	RoundingCeil  = "ceil"
	RoundingFloor = "floor"
)

// Settings は事業主単位で 1 件だけ存在する算定設定です。
type Settings struct {
	LegalRate          decimal.Decimal
	Rounding           string
	LevyUnit           int64
	AdjustmentUnit     int64
	HomeWorkingUnit    int64
	ShortTimeUnit      int64
	HomeWorkingDivisor int64
	UpdatedAt          time.Time
}

// FallbackLegalRate は法定雇用率が未設定の場合に用いる率（%）です。
var FallbackLegalRate = decimal.RequireFromString("2.3")
