package compliance

import (
	"context"
	"time"

	"github.com/ogurasousui/levy-engine/internal/core/attendance"
	"github.com/ogurasousui/levy-engine/internal/core/employee"
	"github.com/ogurasousui/levy-engine/internal/core/settings"
)

// MonthlyTotalRepository は月次集計の永続化の抽象です。
type MonthlyTotalRepository interface {
	FindByPeriod(ctx context.Context, p Period) (*MonthlyTotal, error)
	// FindByPeriodForUpdate は書き込みトランザクション内で行をロックして取得します。
	FindByPeriodForUpdate(ctx context.Context, p Period) (*MonthlyTotal, error)
	ListByFiscalYear(ctx context.Context, fiscalYear int) ([]*MonthlyTotal, error)
	Create(ctx context.Context, total *MonthlyTotal) (*MonthlyTotal, error)
	// ReplaceUnconfirmed は未確定の行だけを上書きします。該当行が無ければ ErrPeriodLocked を返します。
	ReplaceUnconfirmed(ctx context.Context, total *MonthlyTotal) (*MonthlyTotal, error)
	// UpdateStatus は状態が from の行を to へ更新します。該当行が無ければ ErrStatusMismatch を返します。
	UpdateStatus(ctx context.Context, p Period, from, to Status, at time.Time) error
}

// FilingRepository は年度申告の永続化の抽象です。
type FilingRepository interface {
	FindByFiscalYear(ctx context.Context, fiscalYear int) (*LevyFiling, error)
	FindByFiscalYearForUpdate(ctx context.Context, fiscalYear int) (*LevyFiling, error)
	Create(ctx context.Context, filing *LevyFiling) (*LevyFiling, error)
	ReplaceUnconfirmed(ctx context.Context, filing *LevyFiling) (*LevyFiling, error)
	UpdateStatus(ctx context.Context, fiscalYear int, from, to Status, at time.Time) error
}

// EmployeeSource は集計対象の社員一覧を提供します。
type EmployeeSource interface {
	ListAll(ctx context.Context) ([]*employee.Employee, error)
}

// AttendanceSource は年度の勤怠レコードを提供します。
type AttendanceSource interface {
	ListByFiscalYear(ctx context.Context, fiscalYear int) ([]*attendance.Record, error)
}

// SettingsSource は算定設定を提供します。
type SettingsSource interface {
	GetSettings(ctx context.Context) (*settings.Settings, error)
}

// PeriodLocker は同じ期間に対する書き込みを直列化します。
type PeriodLocker interface {
	WithPeriodLock(ctx context.Context, key string, fn func(context.Context) error) error
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

// Recorder は再計算と状態遷移の結果を記録します。
type Recorder interface {
	ObserveRecalculation(kind, result string)
	ObserveStatusTransition(target, to string)
}
