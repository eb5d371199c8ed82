package compliance

import (
	"fmt"
	"time"
)

// MonthlyComputeFunc は保存済みの集計が無い月を計算します。
type MonthlyComputeFunc func(p Period) (*MonthlyTotal, error)

// RollupYear は年度の月次集計を 4 月から 3 月の順に組み立てます。
//
// now の年月より後の月は保存済みの行があっても含めません。保存済みの行はそのまま使い、
// 再計算しません。保存済みの行が無い月は compute で計算します。
func RollupYear(fiscalYear int, persisted map[int]*MonthlyTotal, now time.Time, compute MonthlyComputeFunc) ([]*MonthlyTotal, error) {
	if err := (Period{FiscalYear: fiscalYear, Month: FiscalMonths[0]}).Validate(); err != nil {
		return nil, err
	}
	current := PeriodOf(now)

	out := make([]*MonthlyTotal, 0, len(FiscalMonths))
	for _, month := range FiscalMonths {
		p := Period{FiscalYear: fiscalYear, Month: month}
		if p.After(current) {
			continue
		}
		if row, ok := persisted[month]; ok && row != nil {
			out = append(out, row)
			continue
		}
		if compute == nil {
			continue
		}
		row, err := compute(p)
		if err != nil {
			return nil, fmt.Errorf("compute %s: %w", p, err)
		}
		out = append(out, row)
	}
	return out, nil
}
