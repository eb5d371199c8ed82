package attendance

import (
	"context"
	"strings"
	"time"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
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

// fiscalMonths は年度内の月を 4 月から 3 月の順に並べたものです。
var fiscalMonths = [12]int{4, 5, 6, 7, 8, 9, 10, 11, 12, 1, 2, 3}

// Service は勤怠に関するユースケースをまとめます。
type Service struct {
	repo     Repository
	clock    Clock
	tx       TransactionManager
	defaults Defaults
}

// UseCase は勤怠ユースケースの公開インターフェースです。
type UseCase interface {
	RecordAttendance(ctx context.Context, in RecordAttendanceInput) (*Record, error)
	OnboardFiscalYear(ctx context.Context, in OnboardFiscalYearInput) (int, error)
	ListEmployeeYear(ctx context.Context, in ListEmployeeYearInput) ([]Record, error)
}

// NewService は Service を生成します。defaults がゼロ値の場合は 160/160 を使います。
func NewService(repo Repository, clock Clock, tx TransactionManager, defaults Defaults) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	if defaults.ScheduledHours == 0 && defaults.ActualHours == 0 {
		defaults = StandardDefaults()
	}
	return &Service{repo: repo, clock: clock, tx: tx, defaults: defaults}
}

// RecordAttendanceInput は勤怠登録時の入力です。
type RecordAttendanceInput struct {
	EmployeeID     string
	FiscalYear     int
	Month          int
	ScheduledHours int
	ActualHours    int
	ExceptionNote  string
}

// OnboardFiscalYearInput は年度開始時の勤怠初期化の入力です。
type OnboardFiscalYearInput struct {
	EmployeeID string
	FiscalYear int
}

// ListEmployeeYearInput は社員の年度勤怠取得の入力です。
type ListEmployeeYearInput struct {
	EmployeeID string
	FiscalYear int
}

// RecordAttendance は月次の勤怠を登録または更新します。
func (s *Service) RecordAttendance(ctx context.Context, in RecordAttendanceInput) (*Record, error) {
	employeeID, err := validateKey(in.EmployeeID, in.FiscalYear, in.Month)
	if err != nil {
		return nil, err
	}
	if in.ScheduledHours < 0 || in.ActualHours < 0 {
		return nil, ErrInvalidHours
	}

	var saved *Record
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		now := s.clock.Now()
		result, err := s.repo.Save(txCtx, &Record{
			EmployeeID:     employeeID,
			FiscalYear:     in.FiscalYear,
			Month:          in.Month,
			ScheduledHours: in.ScheduledHours,
			ActualHours:    in.ActualHours,
			ExceptionNote:  strings.TrimSpace(in.ExceptionNote),
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		if err != nil {
			return err
		}
		saved = result
		return nil
	}); err != nil {
		return nil, err
	}

	return saved, nil
}

// OnboardFiscalYear は年度の 12 か月分の既定勤怠を未登録月に限って作成します。
func (s *Service) OnboardFiscalYear(ctx context.Context, in OnboardFiscalYearInput) (int, error) {
	employeeID, err := validateKey(in.EmployeeID, in.FiscalYear, fiscalMonths[0])
	if err != nil {
		return 0, err
	}

	now := s.clock.Now()
	records := make([]*Record, 0, len(fiscalMonths))
	for _, month := range fiscalMonths {
		r := s.defaults.Default(employeeID, in.FiscalYear, month)
		r.CreatedAt = now
		r.UpdatedAt = now
		records = append(records, &r)
	}

	var created int
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		n, err := s.repo.CreateMissing(txCtx, records)
		if err != nil {
			return err
		}
		created = n
		return nil
	}); err != nil {
		return 0, err
	}

	return created, nil
}

// ListEmployeeYear は社員の年度勤怠を 4 月から順に 12 件返します。未登録月は既定値で補います。
func (s *Service) ListEmployeeYear(ctx context.Context, in ListEmployeeYearInput) ([]Record, error) {
	employeeID, err := validateKey(in.EmployeeID, in.FiscalYear, fiscalMonths[0])
	if err != nil {
		return nil, err
	}

	var stored []*Record
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.ListByEmployee(txCtx, employeeID, in.FiscalYear)
		if err != nil {
			return err
		}
		stored = found
		return nil
	}); err != nil {
		return nil, err
	}

	idx := Index(stored)
	out := make([]Record, 0, len(fiscalMonths))
	for _, month := range fiscalMonths {
		if r, ok := idx[Key{EmployeeID: employeeID, FiscalYear: in.FiscalYear, Month: month}]; ok {
			out = append(out, *r)
			continue
		}
		out = append(out, s.defaults.Default(employeeID, in.FiscalYear, month))
	}
	return out, nil
}

func validateKey(employeeID string, fiscalYear, month int) (string, error) {
	trimmed := strings.TrimSpace(employeeID)
	if trimmed == "" {
		return "", ErrInvalidEmployeeID
	}
	if fiscalYear <= 0 {
		return "", ErrInvalidFiscalYear
	}
	if month < 1 || month > 12 {
		return "", ErrInvalidMonth
	}
	return trimmed, nil
}
