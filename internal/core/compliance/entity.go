package compliance

import (
	"time"

	"github.com/shopspring/decimal"
)

// MonthlyLine は月次集計に添付する社員別の勤怠情報です。集計値には影響しません。
type MonthlyLine struct {
	EmployeeID     string          `json:"employee_id"`
	EmployeeCode   string          `json:"employee_code"`
	Name           string          `json:"name"`
	Disabled       bool            `json:"disabled"`
	CountWeight    decimal.Decimal `json:"count_weight"`
	ShortTime      bool            `json:"short_time"`
	ScheduledHours int             `json:"scheduled_hours"`
	ActualHours    int             `json:"actual_hours"`
	ExceptionNote  string          `json:"exception_note,omitempty"`
}

// MonthlyTotal は年度月ごとの雇用状況集計です。
type MonthlyTotal struct {
	ID                 string
	FiscalYear         int
	Month              int
	TotalEmployees     int64
	DisabledEmployees  decimal.Decimal
	ShortTimeEmployees int64
	ActualRate         decimal.Decimal
	LegalRate          decimal.Decimal
	LegalCount         int64
	Shortage           decimal.Decimal
	Status             Status
	Lines              []MonthlyLine
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Period は集計対象の年度月を返します。
func (m *MonthlyTotal) Period() Period {
	return Period{FiscalYear: m.FiscalYear, Month: m.Month}
}

// MonthlyBase は年度申告に記載する月別の算定基礎数です。
type MonthlyBase struct {
	Month      int             `json:"month"`
	WorkerBase int64           `json:"worker_base"`
	Disabled   decimal.Decimal `json:"disabled"`
	ShortTime  int64           `json:"short_time"`
}

// UnitPrices は納付金・調整金等の単価（円）です。
type UnitPrices struct {
	Levy        int64
	Adjustment  int64
	HomeWorking int64
	ShortTime   int64
}

// BankAccount は調整金の振込先です。
type BankAccount struct {
	BankName      string `json:"bank_name,omitempty"`
	BranchName    string `json:"branch_name,omitempty"`
	AccountType   string `json:"account_type,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	AccountHolder string `json:"account_holder,omitempty"`
}

// LevyFiling は年度ごとの納付金・調整金申告です。金額は計算結果からのみ設定されます。
type LevyFiling struct {
	ID                      string
	FiscalYear              int
	Months                  []MonthlyBase
	LegalRate               decimal.Decimal
	Rounding                RoundingMode
	Units                   UnitPrices
	HomeWorkingPaymentTotal int64
	HomeWorkingDivisor      int64
	Bank                    BankAccount
	Result                  LevyResult
	Status                  Status
	CreatedAt               time.Time
	UpdatedAt               time.Time
}
