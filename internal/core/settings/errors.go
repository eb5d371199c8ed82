package settings

import "errors"

var (
	// ErrSettingsNotFound は設定行が存在しない場合に返却されます。
	ErrSettingsNotFound = errors.New("settings: not found")
	// ErrInvalidLegalRate は法定雇用率が範囲外の場合に返却されます。
	ErrInvalidLegalRate = errors.New("settings: invalid legal rate")
	// ErrInvalidRounding は丸め方向が不正な場合に返却されます。
	ErrInvalidRounding = errors.New("settings: invalid rounding")
	// ErrInvalidUnitPrice は単価が負の場合に返却されます。
	ErrInvalidUnitPrice = errors.New("settings: invalid unit price")
	// ErrInvalidDivisor は在宅就業の除数が 0 以下の場合に返却されます。
	ErrInvalidDivisor = errors.New("settings: invalid home working divisor")
)
