package attendance

import "time"

// 勤怠レコードが存在しない月の既定時間です。
const (
	DefaultScheduledHours = 160
	DefaultActualHours    = 160
)

// Record は社員ごと・年度月ごとの勤務実績です。
type Record struct {
	ID             string
	EmployeeID     string
	FiscalYear     int
	Month          int
	ScheduledHours int
	ActualHours    int
	ExceptionNote  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Key は (社員, 年度, 月) の組を表します。
type Key struct {
	EmployeeID string
	FiscalYear int
	Month      int
}

// Key はレコードのキーを返します。
func (r *Record) Key() Key {
	return Key{EmployeeID: r.EmployeeID, FiscalYear: r.FiscalYear, Month: r.Month}
}

// Defaults は勤怠未登録時に補う所定・実労働時間です。
type Defaults struct {
	ScheduledHours int
	ActualHours    int
}

// StandardDefaults は 160/160 の既定値を返します。
func StandardDefaults() Defaults {
	return Defaults{ScheduledHours: DefaultScheduledHours, ActualHours: DefaultActualHours}
}

// Default は勤怠未登録の社員月に対する既定レコードを返します。欠勤扱いにはしません。
func (d Defaults) Default(employeeID string, fiscalYear, month int) Record {
	return Record{
		EmployeeID:     employeeID,
		FiscalYear:     fiscalYear,
		Month:          month,
		ScheduledHours: d.ScheduledHours,
		ActualHours:    d.ActualHours,
	}
}

// Index は勤怠レコードをキーで引ける形に変換します。
func Index(records []*Record) map[Key]*Record {
	idx := make(map[Key]*Record, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		idx[r.Key()] = r
	}
	return idx
}
