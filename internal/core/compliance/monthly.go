package compliance

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ogurasousui/levy-engine/internal/core/attendance"
	"github.com/ogurasousui/levy-engine/internal/core/employee"
)

// DefaultLegalRate は法定雇用率が未設定の場合に用いる率（%）です。
var DefaultLegalRate = decimal.RequireFromString("2.3")

// Rules は集計に用いる設定値です。呼び出し側が明示的に渡します。
type Rules struct {
	LegalRate  decimal.Decimal
	Rounding   RoundingMode
	Attendance attendance.Defaults
}

// Normalize は未設定の項目を既定値で補った Rules を返します。
func (r Rules) Normalize() Rules {
	if !r.LegalRate.IsPositive() {
		r.LegalRate = DefaultLegalRate
	}
	if r.Rounding == "" {
		r.Rounding = RoundCeil
	}
	if r.Attendance.ScheduledHours == 0 && r.Attendance.ActualHours == 0 {
		r.Attendance = attendance.StandardDefaults()
	}
	return r
}

// AggregateMonth は対象月の雇用状況を集計します。結果は永続化されていません。
//
// 常用労働者数は在籍判定を通過した社員の人数、障害者数はそのうち障害区分を持つ社員の
// 算定カウントの合計です。実雇用率は最後に小数第 2 位へ丸めます。
func AggregateMonth(p Period, employees []*employee.Employee, records []*attendance.Record, rules Rules) (*MonthlyTotal, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	rules = rules.Normalize()
	idx := attendance.Index(records)

	var (
		total     int64
		shortTime int64
		disabled  = decimal.Zero
		lines     = make([]MonthlyLine, 0, len(employees))
	)
	for _, e := range employees {
		if !CountsInPeriod(e, p) {
			continue
		}
		total++

		isDisabled := e.Disability.Any()
		if isDisabled {
			disabled = disabled.Add(e.CountWeight)
			if e.ShortTime {
				shortTime++
			}
		}

		rec, ok := idx[attendance.Key{EmployeeID: e.ID, FiscalYear: p.FiscalYear, Month: p.Month}]
		if !ok {
			def := rules.Attendance.Default(e.ID, p.FiscalYear, p.Month)
			rec = &def
		}
		lines = append(lines, MonthlyLine{
			EmployeeID:     e.ID,
			EmployeeCode:   e.EmployeeCode,
			Name:           e.Name,
			Disabled:       isDisabled,
			CountWeight:    e.CountWeight,
			ShortTime:      e.ShortTime,
			ScheduledHours: rec.ScheduledHours,
			ActualHours:    rec.ActualHours,
			ExceptionNote:  rec.ExceptionNote,
		})
	}
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].EmployeeCode != lines[j].EmployeeCode {
			return lines[i].EmployeeCode < lines[j].EmployeeCode
		}
		return lines[i].EmployeeID < lines[j].EmployeeID
	})

	legalCount := RequiredHeadcount(total, rules.LegalRate, rules.Rounding)

	return &MonthlyTotal{
		FiscalYear:         p.FiscalYear,
		Month:              p.Month,
		TotalEmployees:     total,
		DisabledEmployees:  disabled,
		ShortTimeEmployees: shortTime,
		ActualRate:         ActualRate(disabled, total),
		LegalRate:          rules.LegalRate,
		LegalCount:         legalCount,
		Shortage:           disabled.Sub(decimal.NewFromInt(legalCount)),
		Status:             StatusUnconfirmed,
		Lines:              lines,
	}, nil
}

// ActualRate は disabled / total × 100 を小数第 2 位で返します。total が 0 以下なら 0 です。
func ActualRate(disabled decimal.Decimal, total int64) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}
	return disabled.Mul(hundred).DivRound(decimal.NewFromInt(total), 2)
}
