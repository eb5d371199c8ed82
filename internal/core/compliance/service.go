package compliance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ogurasousui/levy-engine/internal/core/attendance"
	"github.com/ogurasousui/levy-engine/internal/core/employee"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

type noopLocker struct{}

func (noopLocker) WithPeriodLock(ctx context.Context, _ string, fn func(context.Context) error) error {
	return fn(ctx)
}

type noopRecorder struct{}

func (noopRecorder) ObserveRecalculation(string, string)    {}
func (noopRecorder) ObserveStatusTransition(string, string) {}

// Target は状態遷移の対象です。
type Target string

const (
	TargetMonthly Target = "monthly"
	TargetAnnual  Target = "annual"
)

// 再計算結果のラベルです。
const (
	ResultOK     = "ok"
	ResultLocked = "locked"
	ResultError  = "error"
)

const (
	kindMonthly = "monthly"
	kindAnnual  = "annual"
)

// Dependencies は Service の依存をまとめます。nil の項目は既定実装で補います。
type Dependencies struct {
	Employees  EmployeeSource
	Attendance AttendanceSource
	Settings   SettingsSource
	Totals     MonthlyTotalRepository
	Filings    FilingRepository
	Tx         TransactionManager
	Locker     PeriodLocker
	Clock      Clock
	Metrics    Recorder
	Logger     *zap.Logger
	// AttendanceDefaults は勤怠未登録月に補う時間です。ゼロ値は 160/160 です。
	AttendanceDefaults attendance.Defaults
}

// Service は雇用率算定と納付金申告のユースケースをまとめます。
type Service struct {
	employees  EmployeeSource
	attendance AttendanceSource
	settings   SettingsSource
	totals     MonthlyTotalRepository
	filings    FilingRepository
	tx         TransactionManager
	locker     PeriodLocker
	clock      Clock
	metrics    Recorder
	log        *zap.Logger
	defaults   attendance.Defaults
}

// UseCase は算定ユースケースの公開インターフェースです。
type UseCase interface {
	ComputeMonthlyTotal(ctx context.Context, in ComputeMonthlyTotalInput) (*MonthlyTotal, error)
	PreviewMonthlyTotal(ctx context.Context, in ComputeMonthlyTotalInput) (*MonthlyTotal, error)
	RollupYear(ctx context.Context, in RollupYearInput) ([]*MonthlyTotal, error)
	ComputeAnnualLevy(ctx context.Context, in ComputeAnnualLevyInput) (*LevyFiling, error)
	GetLevyFiling(ctx context.Context, fiscalYear int) (*LevyFiling, error)
	AdvanceStatus(ctx context.Context, in AdvanceStatusInput) error
}

// NewService は Service を生成します。
func NewService(deps Dependencies) *Service {
	s := &Service{
		employees:  deps.Employees,
		attendance: deps.Attendance,
		settings:   deps.Settings,
		totals:     deps.Totals,
		filings:    deps.Filings,
		tx:         deps.Tx,
		locker:     deps.Locker,
		clock:      deps.Clock,
		metrics:    deps.Metrics,
		log:        deps.Logger,
		defaults:   deps.AttendanceDefaults,
	}
	if s.tx == nil {
		s.tx = noopTransactionManager{}
	}
	if s.locker == nil {
		s.locker = noopLocker{}
	}
	if s.clock == nil {
		s.clock = realClock{}
	}
	if s.metrics == nil {
		s.metrics = noopRecorder{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// ComputeMonthlyTotalInput は月次集計の入力です。
type ComputeMonthlyTotalInput struct {
	FiscalYear int
	Month      int
}

// RollupYearInput は年度集計の入力です。
type RollupYearInput struct {
	FiscalYear int
}

// ComputeAnnualLevyInput は年度申告計算の入力です。
// Months が空の場合は年度集計から算定基礎数を作ります。
type ComputeAnnualLevyInput struct {
	FiscalYear              int
	Months                  []MonthlyBase
	HomeWorkingPaymentTotal int64
	Bank                    BankAccount
}

// AdvanceStatusInput は状態遷移の入力です。Month は TargetMonthly の場合のみ使います。
type AdvanceStatusInput struct {
	Target     Target
	FiscalYear int
	Month      int
	From       Status
	To         Status
}

// ComputeMonthlyTotal は月次集計を計算し、未確定であれば保存します。
// 確定済み・提出済みの月は ErrPeriodLocked で拒否します。
func (s *Service) ComputeMonthlyTotal(ctx context.Context, in ComputeMonthlyTotalInput) (*MonthlyTotal, error) {
	p, err := NewPeriod(in.FiscalYear, in.Month)
	if err != nil {
		return nil, err
	}
	rules, err := s.rules(ctx)
	if err != nil {
		return nil, err
	}

	var saved *MonthlyTotal
	err = s.locker.WithPeriodLock(ctx, monthlyLockKey(p), func(lockCtx context.Context) error {
		return s.tx.WithinReadWrite(lockCtx, func(txCtx context.Context) error {
			existing, err := s.totals.FindByPeriodForUpdate(txCtx, p)
			if err != nil && !errors.Is(err, ErrMonthlyTotalNotFound) {
				return err
			}
			if existing != nil {
				if err := EnsureRecalculable(existing.Status); err != nil {
					return err
				}
			}

			computed, err := s.aggregate(txCtx, p, rules)
			if err != nil {
				return err
			}

			now := s.clock.Now()
			computed.UpdatedAt = now
			if existing == nil {
				computed.CreatedAt = now
				saved, err = s.totals.Create(txCtx, computed)
				return err
			}
			computed.ID = existing.ID
			computed.CreatedAt = existing.CreatedAt
			saved, err = s.totals.ReplaceUnconfirmed(txCtx, computed)
			return err
		})
	})
	s.metrics.ObserveRecalculation(kindMonthly, resultLabel(err))
	if err != nil {
		s.log.Warn("monthly total not saved", zap.Int("fiscal_year", p.FiscalYear), zap.Int("month", p.Month), zap.Error(err))
		return nil, err
	}

	s.log.Info("monthly total saved",
		zap.Int("fiscal_year", p.FiscalYear),
		zap.Int("month", p.Month),
		zap.Int64("total_employees", saved.TotalEmployees),
		zap.String("disabled_employees", saved.DisabledEmployees.String()),
	)
	return saved, nil
}

// PreviewMonthlyTotal は月次集計を計算だけして返します。保存はしません。
func (s *Service) PreviewMonthlyTotal(ctx context.Context, in ComputeMonthlyTotalInput) (*MonthlyTotal, error) {
	p, err := NewPeriod(in.FiscalYear, in.Month)
	if err != nil {
		return nil, err
	}
	rules, err := s.rules(ctx)
	if err != nil {
		return nil, err
	}

	var out *MonthlyTotal
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		computed, err := s.aggregate(txCtx, p, rules)
		if err != nil {
			return err
		}
		out = computed
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// RollupYear は年度の月次集計を 4 月から順に返します。保存済みの月はそのまま使い、
// 未保存の月は計算結果（未保存）で補い、現在より後の月は含めません。
func (s *Service) RollupYear(ctx context.Context, in RollupYearInput) ([]*MonthlyTotal, error) {
	if err := (Period{FiscalYear: in.FiscalYear, Month: FiscalMonths[0]}).Validate(); err != nil {
		return nil, err
	}
	rules, err := s.rules(ctx)
	if err != nil {
		return nil, err
	}

	var out []*MonthlyTotal
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		stored, err := s.totals.ListByFiscalYear(txCtx, in.FiscalYear)
		if err != nil {
			return err
		}
		persisted := make(map[int]*MonthlyTotal, len(stored))
		for _, row := range stored {
			persisted[row.Month] = row
		}

		var (
			loaded    bool
			employees []*employee.Employee
			records   []*attendance.Record
		)
		compute := func(p Period) (*MonthlyTotal, error) {
			if !loaded {
				employees, records, err = s.load(txCtx, in.FiscalYear)
				if err != nil {
					return nil, err
				}
				loaded = true
			}
			return AggregateMonth(p, employees, records, rules)
		}

		rows, err := RollupYear(in.FiscalYear, persisted, s.clock.Now(), compute)
		if err != nil {
			return err
		}
		out = rows
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// ComputeAnnualLevy は年度の納付金・調整金を計算し、未確定であれば申告として保存します。
func (s *Service) ComputeAnnualLevy(ctx context.Context, in ComputeAnnualLevyInput) (*LevyFiling, error) {
	if err := (Period{FiscalYear: in.FiscalYear, Month: FiscalMonths[0]}).Validate(); err != nil {
		return nil, err
	}
	if err := validateBases(in.Months); err != nil {
		return nil, err
	}
	if in.HomeWorkingPaymentTotal < 0 {
		return nil, ErrInvalidLevyInput
	}

	st, err := s.settings.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	rounding, err := ParseRoundingMode(st.Rounding)
	if err != nil {
		return nil, err
	}

	bases := in.Months
	if len(bases) == 0 {
		totals, err := s.RollupYear(ctx, RollupYearInput{FiscalYear: in.FiscalYear})
		if err != nil {
			return nil, err
		}
		bases = BaseFiguresFromTotals(totals)
		if len(bases) == 0 {
			return nil, fmt.Errorf("%w: no months to file for fiscal year %d", ErrInvalidLevyInput, in.FiscalYear)
		}
	}

	workers, disabled, shortTime := SumBases(bases)
	units := UnitPrices{
		Levy:        st.LevyUnit,
		Adjustment:  st.AdjustmentUnit,
		HomeWorking: st.HomeWorkingUnit,
		ShortTime:   st.ShortTimeUnit,
	}
	legalRate := st.LegalRate
	if !legalRate.IsPositive() {
		s.log.Warn("legal rate missing, falling back", zap.String("legal_rate", DefaultLegalRate.String()))
		legalRate = DefaultLegalRate
	}
	result, err := CalculateLevy(LevyInput{
		WorkerBaseTotal:         workers,
		DisabledTotal:           disabled,
		ShortTimeTotal:          shortTime,
		LegalRate:               legalRate,
		Rounding:                rounding,
		Units:                   units,
		HomeWorkingPaymentTotal: in.HomeWorkingPaymentTotal,
		HomeWorkingDivisor:      st.HomeWorkingDivisor,
	})
	if err != nil {
		return nil, err
	}

	filing := &LevyFiling{
		FiscalYear:              in.FiscalYear,
		Months:                  bases,
		LegalRate:               legalRate,
		Rounding:                rounding,
		Units:                   units,
		HomeWorkingPaymentTotal: in.HomeWorkingPaymentTotal,
		HomeWorkingDivisor:      st.HomeWorkingDivisor,
		Bank:                    in.Bank,
		Result:                  result,
		Status:                  StatusUnconfirmed,
	}

	var saved *LevyFiling
	err = s.locker.WithPeriodLock(ctx, annualLockKey(in.FiscalYear), func(lockCtx context.Context) error {
		return s.tx.WithinReadWrite(lockCtx, func(txCtx context.Context) error {
			existing, err := s.filings.FindByFiscalYearForUpdate(txCtx, in.FiscalYear)
			if err != nil && !errors.Is(err, ErrFilingNotFound) {
				return err
			}
			now := s.clock.Now()
			filing.UpdatedAt = now
			if existing == nil {
				filing.CreatedAt = now
				saved, err = s.filings.Create(txCtx, filing)
				return err
			}
			if err := EnsureRecalculable(existing.Status); err != nil {
				return err
			}
			filing.ID = existing.ID
			filing.CreatedAt = existing.CreatedAt
			saved, err = s.filings.ReplaceUnconfirmed(txCtx, filing)
			return err
		})
	})
	s.metrics.ObserveRecalculation(kindAnnual, resultLabel(err))
	if err != nil {
		s.log.Warn("levy filing not saved", zap.Int("fiscal_year", in.FiscalYear), zap.Error(err))
		return nil, err
	}

	s.log.Info("levy filing saved",
		zap.Int("fiscal_year", in.FiscalYear),
		zap.String("case", string(result.Case)),
		zap.Int64("net_payment", result.NetPayment),
		zap.Int64("adjustment_total", result.AdjustmentTotal),
	)
	return saved, nil
}

// GetLevyFiling は保存済みの年度申告を返します。
func (s *Service) GetLevyFiling(ctx context.Context, fiscalYear int) (*LevyFiling, error) {
	if err := (Period{FiscalYear: fiscalYear, Month: FiscalMonths[0]}).Validate(); err != nil {
		return nil, err
	}
	var out *LevyFiling
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.filings.FindByFiscalYear(txCtx, fiscalYear)
		if err != nil {
			return err
		}
		out = found
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// AdvanceStatus は月次集計または年度申告の状態を from から to へ 1 段進めます。
// 保存済みの状態が from と異なる場合は ErrStatusMismatch を返します。
func (s *Service) AdvanceStatus(ctx context.Context, in AdvanceStatusInput) error {
	if !CanTransition(in.From, in.To) {
		return ErrInvalidStatusTransition
	}

	var (
		key string
		run func(txCtx context.Context, now time.Time) error
	)
	switch in.Target {
	case TargetMonthly:
		p, err := NewPeriod(in.FiscalYear, in.Month)
		if err != nil {
			return err
		}
		key = monthlyLockKey(p)
		run = func(txCtx context.Context, now time.Time) error {
			existing, err := s.totals.FindByPeriodForUpdate(txCtx, p)
			if err != nil {
				return err
			}
			if err := Transition(existing.Status, in.From, in.To); err != nil {
				return err
			}
			return s.totals.UpdateStatus(txCtx, p, in.From, in.To, now)
		}
	case TargetAnnual:
		if err := (Period{FiscalYear: in.FiscalYear, Month: FiscalMonths[0]}).Validate(); err != nil {
			return err
		}
		key = annualLockKey(in.FiscalYear)
		run = func(txCtx context.Context, now time.Time) error {
			existing, err := s.filings.FindByFiscalYearForUpdate(txCtx, in.FiscalYear)
			if err != nil {
				return err
			}
			if err := Transition(existing.Status, in.From, in.To); err != nil {
				return err
			}
			return s.filings.UpdateStatus(txCtx, in.FiscalYear, in.From, in.To, now)
		}
	default:
		return ErrInvalidTarget
	}

	if err := s.locker.WithPeriodLock(ctx, key, func(lockCtx context.Context) error {
		return s.tx.WithinReadWrite(lockCtx, func(txCtx context.Context) error {
			return run(txCtx, s.clock.Now())
		})
	}); err != nil {
		return err
	}

	s.metrics.ObserveStatusTransition(string(in.Target), string(in.To))
	s.log.Info("status advanced",
		zap.String("target", string(in.Target)),
		zap.String("lock_key", key),
		zap.String("status", string(in.To)),
	)
	return nil
}

func (s *Service) rules(ctx context.Context) (Rules, error) {
	st, err := s.settings.GetSettings(ctx)
	if err != nil {
		return Rules{}, fmt.Errorf("load settings: %w", err)
	}
	rounding, err := ParseRoundingMode(st.Rounding)
	if err != nil {
		return Rules{}, err
	}
	if !st.LegalRate.IsPositive() {
		s.log.Warn("legal rate missing, falling back", zap.String("legal_rate", DefaultLegalRate.String()))
	}
	return Rules{LegalRate: st.LegalRate, Rounding: rounding, Attendance: s.defaults}.Normalize(), nil
}

func (s *Service) load(ctx context.Context, fiscalYear int) ([]*employee.Employee, []*attendance.Record, error) {
	employees, err := s.employees.ListAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load employees: %w", err)
	}
	records, err := s.attendance.ListByFiscalYear(ctx, fiscalYear)
	if err != nil {
		return nil, nil, fmt.Errorf("load attendance: %w", err)
	}
	return employees, records, nil
}

func (s *Service) aggregate(ctx context.Context, p Period, rules Rules) (*MonthlyTotal, error) {
	employees, records, err := s.load(ctx, p.FiscalYear)
	if err != nil {
		return nil, err
	}
	return AggregateMonth(p, employees, records, rules)
}

func validateBases(bases []MonthlyBase) error {
	seen := make(map[int]struct{}, len(bases))
	for _, b := range bases {
		if b.Month < 1 || b.Month > 12 {
			return ErrInvalidMonth
		}
		if _, dup := seen[b.Month]; dup {
			return ErrInvalidLevyInput
		}
		seen[b.Month] = struct{}{}
		if b.WorkerBase < 0 || b.Disabled.IsNegative() || b.ShortTime < 0 {
			return ErrInvalidLevyInput
		}
	}
	return nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, ErrPeriodLocked):
		return ResultLocked
	default:
		return ResultError
	}
}

func monthlyLockKey(p Period) string {
	return "monthly_total:" + p.Key()
}

func annualLockKey(fiscalYear int) string {
	return "levy_filing:" + strconv.Itoa(fiscalYear)
}
