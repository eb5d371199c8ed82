package employee

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status は社員の在籍状態を表します。
type Status string

const (
	StatusActive   Status = "active"
	StatusResigned Status = "resigned"
)

// Disability は障害者手帳等による確認区分です。複数の区分が同時に立つこともあります。
type Disability struct {
	Physical     bool
	Intellectual bool
	Mental       bool
}

// Any はいずれかの区分が確認済みかどうかを返します。
func (d Disability) Any() bool {
	return d.Physical || d.Intellectual || d.Mental
}

// 算定カウント（重度・短時間の換算係数）として許容される値です。
var (
	WeightNone   = decimal.Zero
	WeightHalf   = decimal.RequireFromString("0.5")
	WeightSingle = decimal.NewFromInt(1)
	WeightDouble = decimal.NewFromInt(2)
)

// Employee は社員エンティティです。
type Employee struct {
	ID           string
	EmployeeCode string
	Name         string
	Status       Status
	HiredAt      *time.Time
	ResignedAt   *time.Time
	Disability   Disability
	CountWeight  decimal.Decimal
	// ShortTime は特例給付金の対象となる短時間労働者であることを示します。
	ShortTime bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsValidWeight は算定カウントが許容値のいずれかであるかを判定します。
func IsValidWeight(w decimal.Decimal) bool {
	for _, allowed := range []decimal.Decimal{WeightNone, WeightHalf, WeightSingle, WeightDouble} {
		if w.Equal(allowed) {
			return true
		}
	}
	return false
}
