package compliance

import "strings"

// Status は月次集計・年度申告の確定状態です。
type Status string

const (
	StatusUnconfirmed Status = "unconfirmed"
	StatusConfirmed   Status = "confirmed"
	StatusSubmitted   Status = "submitted"
)

// statusDraft は申告画面で使われる未確定の別名です。
const statusDraft = "draft"

// ParseStatus は文字列を Status に変換します。"draft" は unconfirmed として扱います。
func ParseStatus(s string) (Status, error) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case string(StatusUnconfirmed), statusDraft:
		return StatusUnconfirmed, nil
	case string(StatusConfirmed):
		return StatusConfirmed, nil
	case string(StatusSubmitted):
		return StatusSubmitted, nil
	default:
		return "", ErrInvalidStatus
	}
}

// Locked は再計算による上書きが禁止された状態かどうかを返します。
func (s Status) Locked() bool {
	return s == StatusConfirmed || s == StatusSubmitted
}

func (s Status) next() (Status, bool) {
	switch s {
	case StatusUnconfirmed:
		return StatusConfirmed, true
	case StatusConfirmed:
		return StatusSubmitted, true
	default:
		return "", false
	}
}

// CanTransition は from から to への遷移が許されるかを返します。前進 1 段のみ許可します。
func CanTransition(from, to Status) bool {
	next, ok := from.next()
	return ok && next == to
}

// Transition は現在の状態 current を from → to へ進めてよいか検証します。
func Transition(current, from, to Status) error {
	if current != from {
		return ErrStatusMismatch
	}
	if !CanTransition(from, to) {
		return ErrInvalidStatusTransition
	}
	return nil
}

// EnsureRecalculable は保存済み行の状態が再計算で上書き可能かを判定します。
// 行が無い場合は空文字を渡します。
func EnsureRecalculable(current Status) error {
	if current.Locked() {
		return ErrPeriodLocked
	}
	return nil
}
