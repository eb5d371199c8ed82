package compliance

import (
	"fmt"
	"time"
)

// FiscalMonths は年度内の月を 4 月から 3 月の順に並べたものです。
var FiscalMonths = [12]int{4, 5, 6, 7, 8, 9, 10, 11, 12, 1, 2, 3}

// Period は算定対象の年度月です。1〜3 月は翌暦年に属します。
type Period struct {
	FiscalYear int
	Month      int
}

// NewPeriod は検証済みの Period を返します。
func NewPeriod(fiscalYear, month int) (Period, error) {
	p := Period{FiscalYear: fiscalYear, Month: month}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// Validate は年度と月の値域を検証します。
func (p Period) Validate() error {
	if p.FiscalYear < 1 || p.FiscalYear > 9999 {
		return ErrInvalidFiscalYear
	}
	if p.Month < 1 || p.Month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// CalendarYear は対象月が属する暦年を返します。
func (p Period) CalendarYear() int {
	if p.Month < 4 {
		return p.FiscalYear + 1
	}
	return p.FiscalYear
}

// After は p が q より後の月であれば true を返します。
func (p Period) After(q Period) bool {
	return p.ordinal() > q.ordinal()
}

// Key はロックやログに使う "2024-04" 形式の識別子です。
func (p Period) Key() string {
	return fmt.Sprintf("%04d-%02d", p.FiscalYear, p.Month)
}

func (p Period) String() string {
	return p.Key()
}

func (p Period) ordinal() int {
	return monthOrdinal(p.CalendarYear(), p.Month)
}

// PeriodOf は時刻 t を含む年度月を返します。
func PeriodOf(t time.Time) Period {
	month := int(t.Month())
	fiscalYear := t.Year()
	if month < 4 {
		fiscalYear--
	}
	return Period{FiscalYear: fiscalYear, Month: month}
}

func monthOrdinal(year, month int) int {
	return year*12 + month - 1
}
