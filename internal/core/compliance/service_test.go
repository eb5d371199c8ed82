package compliance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ogurasousui/levy-engine/internal/core/attendance"
	"github.com/ogurasousui/levy-engine/internal/core/employee"
	"github.com/ogurasousui/levy-engine/internal/core/settings"
)

type stubClock struct {
	now time.Time
}

func (s stubClock) Now() time.Time {
	return s.now
}

type fakeEmployees struct {
	list []*employee.Employee
}

func (f *fakeEmployees) ListAll(context.Context) ([]*employee.Employee, error) {
	return f.list, nil
}

type fakeAttendance struct {
	records []*attendance.Record
}

func (f *fakeAttendance) ListByFiscalYear(_ context.Context, fiscalYear int) ([]*attendance.Record, error) {
	var out []*attendance.Record
	for _, r := range f.records {
		if r.FiscalYear == fiscalYear {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeSettings struct {
	st settings.Settings
}

func (f *fakeSettings) GetSettings(context.Context) (*settings.Settings, error) {
	st := f.st
	return &st, nil
}

type fakeTotals struct {
	rows     map[Period]*MonthlyTotal
	creates  int
	replaces int
}

func newFakeTotals() *fakeTotals {
	return &fakeTotals{rows: make(map[Period]*MonthlyTotal)}
}

func (f *fakeTotals) FindByPeriod(_ context.Context, p Period) (*MonthlyTotal, error) {
	row, ok := f.rows[p]
	if !ok {
		return nil, ErrMonthlyTotalNotFound
	}
	copy := *row
	return &copy, nil
}

func (f *fakeTotals) FindByPeriodForUpdate(ctx context.Context, p Period) (*MonthlyTotal, error) {
	return f.FindByPeriod(ctx, p)
}

func (f *fakeTotals) ListByFiscalYear(_ context.Context, fiscalYear int) ([]*MonthlyTotal, error) {
	var out []*MonthlyTotal
	for p, row := range f.rows {
		if p.FiscalYear == fiscalYear {
			copy := *row
			out = append(out, &copy)
		}
	}
	return out, nil
}

func (f *fakeTotals) Create(_ context.Context, total *MonthlyTotal) (*MonthlyTotal, error) {
	f.creates++
	copy := *total
	copy.ID = "mt-" + total.Period().Key()
	f.rows[total.Period()] = &copy
	out := copy
	return &out, nil
}

func (f *fakeTotals) ReplaceUnconfirmed(_ context.Context, total *MonthlyTotal) (*MonthlyTotal, error) {
	existing, ok := f.rows[total.Period()]
	if !ok || existing.Status != StatusUnconfirmed {
		return nil, ErrPeriodLocked
	}
	f.replaces++
	copy := *total
	f.rows[total.Period()] = &copy
	out := copy
	return &out, nil
}

func (f *fakeTotals) UpdateStatus(_ context.Context, p Period, from, to Status, at time.Time) error {
	existing, ok := f.rows[p]
	if !ok || existing.Status != from {
		return ErrStatusMismatch
	}
	existing.Status = to
	existing.UpdatedAt = at
	return nil
}

type fakeFilings struct {
	rows map[int]*LevyFiling
}

func newFakeFilings() *fakeFilings {
	return &fakeFilings{rows: make(map[int]*LevyFiling)}
}

func (f *fakeFilings) FindByFiscalYear(_ context.Context, fiscalYear int) (*LevyFiling, error) {
	row, ok := f.rows[fiscalYear]
	if !ok {
		return nil, ErrFilingNotFound
	}
	copy := *row
	return &copy, nil
}

func (f *fakeFilings) FindByFiscalYearForUpdate(ctx context.Context, fiscalYear int) (*LevyFiling, error) {
	return f.FindByFiscalYear(ctx, fiscalYear)
}

func (f *fakeFilings) Create(_ context.Context, filing *LevyFiling) (*LevyFiling, error) {
	copy := *filing
	copy.ID = "filing"
	f.rows[filing.FiscalYear] = &copy
	out := copy
	return &out, nil
}

func (f *fakeFilings) ReplaceUnconfirmed(_ context.Context, filing *LevyFiling) (*LevyFiling, error) {
	existing, ok := f.rows[filing.FiscalYear]
	if !ok || existing.Status != StatusUnconfirmed {
		return nil, ErrPeriodLocked
	}
	copy := *filing
	f.rows[filing.FiscalYear] = &copy
	out := copy
	return &out, nil
}

func (f *fakeFilings) UpdateStatus(_ context.Context, fiscalYear int, from, to Status, at time.Time) error {
	existing, ok := f.rows[fiscalYear]
	if !ok || existing.Status != from {
		return ErrStatusMismatch
	}
	existing.Status = to
	existing.UpdatedAt = at
	return nil
}

type recordingLocker struct {
	keys []string
}

func (l *recordingLocker) WithPeriodLock(ctx context.Context, key string, fn func(context.Context) error) error {
	l.keys = append(l.keys, key)
	return fn(ctx)
}

type fakeRecorder struct {
	recalculations []string
	transitions    []string
}

func (r *fakeRecorder) ObserveRecalculation(kind, result string) {
	r.recalculations = append(r.recalculations, kind+":"+result)
}

func (r *fakeRecorder) ObserveStatusTransition(target, to string) {
	r.transitions = append(r.transitions, target+":"+to)
}

type fixture struct {
	svc      *Service
	totals   *fakeTotals
	filings  *fakeFilings
	locker   *recordingLocker
	recorder *fakeRecorder
	settings *fakeSettings
}

func standardSettings() settings.Settings {
	return settings.Settings{
		LegalRate:          decimal.RequireFromString("2.3"),
		Rounding:           settings.RoundingCeil,
		LevyUnit:           50000,
		AdjustmentUnit:     29000,
		HomeWorkingUnit:    21000,
		ShortTimeUnit:      7000,
		HomeWorkingDivisor: 35000,
	}
}

// 常用労働者 120 名のうち 3 名が障害者（算定カウント 1.0）の事業所です。
func newFixture(t *testing.T, now time.Time, log *zap.Logger) *fixture {
	t.Helper()

	employees := append(staff(117, "s"), disabledStaff(3, "d", employee.WeightSingle)...)
	f := &fixture{
		totals:   newFakeTotals(),
		filings:  newFakeFilings(),
		locker:   &recordingLocker{},
		recorder: &fakeRecorder{},
		settings: &fakeSettings{st: standardSettings()},
	}
	f.svc = NewService(Dependencies{
		Employees:  &fakeEmployees{list: employees},
		Attendance: &fakeAttendance{},
		Settings:   f.settings,
		Totals:     f.totals,
		Filings:    f.filings,
		Locker:     f.locker,
		Clock:      stubClock{now: now},
		Metrics:    f.recorder,
		Logger:     log,
	})
	return f
}

var midYear = time.Date(2024, 9, 10, 9, 0, 0, 0, time.UTC)

func TestService_ComputeMonthlyTotal_CreatesUnconfirmed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, midYear, nil)

	got, err := f.svc.ComputeMonthlyTotal(context.Background(), ComputeMonthlyTotalInput{FiscalYear: 2024, Month: 4})
	require.NoError(t, err)

	assert.Equal(t, "mt-2024-04", got.ID)
	assert.Equal(t, StatusUnconfirmed, got.Status)
	assert.Equal(t, int64(120), got.TotalEmployees)
	assert.Equal(t, int64(3), got.LegalCount)
	assert.Equal(t, "0", got.Shortage.String())
	assert.Equal(t, "2.5", got.ActualRate.String())
	assert.True(t, got.CreatedAt.Equal(midYear))
	assert.Equal(t, []string{"monthly_total:2024-04"}, f.locker.keys)
	assert.Equal(t, []string{"monthly:ok"}, f.recorder.recalculations)
}

func TestService_ComputeMonthlyTotal_IdempotentWhileUnconfirmed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, midYear, nil)
	in := ComputeMonthlyTotalInput{FiscalYear: 2024, Month: 6}

	first, err := f.svc.ComputeMonthlyTotal(context.Background(), in)
	require.NoError(t, err)
	second, err := f.svc.ComputeMonthlyTotal(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.totals.creates)
	assert.Equal(t, 1, f.totals.replaces)
}

func TestService_ComputeMonthlyTotal_RejectsLockedPeriod(t *testing.T) {
	t.Parallel()

	for _, status := range []Status{StatusConfirmed, StatusSubmitted} {
		status := status
		t.Run(string(status), func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, midYear, nil)
			p := Period{FiscalYear: 2024, Month: 5}
			f.totals.rows[p] = &MonthlyTotal{ID: "locked", FiscalYear: 2024, Month: 5, TotalEmployees: 7, Status: status}

			_, err := f.svc.ComputeMonthlyTotal(context.Background(), ComputeMonthlyTotalInput{FiscalYear: 2024, Month: 5})
			require.ErrorIs(t, err, ErrPeriodLocked)

			assert.Equal(t, int64(7), f.totals.rows[p].TotalEmployees, "stored row must be untouched")
			assert.Equal(t, []string{"monthly:locked"}, f.recorder.recalculations)
		})
	}
}

func TestService_ComputeMonthlyTotal_InvalidPeriod(t *testing.T) {
	t.Parallel()

	f := newFixture(t, midYear, nil)

	_, err := f.svc.ComputeMonthlyTotal(context.Background(), ComputeMonthlyTotalInput{FiscalYear: 2024, Month: 13})
	require.ErrorIs(t, err, ErrInvalidMonth)
	assert.Empty(t, f.locker.keys)
	assert.Empty(t, f.recorder.recalculations)
}

func TestService_ComputeMonthlyTotal_LogsRateFallback(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	f := newFixture(t, midYear, zap.New(core))
	f.settings.st.LegalRate = decimal.Zero

	got, err := f.svc.ComputeMonthlyTotal(context.Background(), ComputeMonthlyTotalInput{FiscalYear: 2024, Month: 4})
	require.NoError(t, err)

	assert.True(t, got.LegalRate.Equal(DefaultLegalRate))
	assert.Equal(t, 1, logs.FilterMessage("legal rate missing, falling back").Len())
}

func TestService_PreviewMonthlyTotal_DoesNotPersist(t *testing.T) {
	t.Parallel()

	f := newFixture(t, midYear, nil)

	got, err := f.svc.PreviewMonthlyTotal(context.Background(), ComputeMonthlyTotalInput{FiscalYear: 2024, Month: 4})
	require.NoError(t, err)

	assert.Equal(t, int64(120), got.TotalEmployees)
	assert.Empty(t, f.totals.rows)
	assert.Empty(t, f.locker.keys)
}

func TestService_RollupYear(t *testing.T) {
	t.Parallel()

	f := newFixture(t, midYear, nil)
	f.totals.rows[Period{FiscalYear: 2024, Month: 4}] = &MonthlyTotal{ID: "april", FiscalYear: 2024, Month: 4, TotalEmployees: 1, Status: StatusConfirmed}

	got, err := f.svc.RollupYear(context.Background(), RollupYearInput{FiscalYear: 2024})
	require.NoError(t, err)

	require.Len(t, got, 6)
	assert.Equal(t, "april", got[0].ID)
	assert.Equal(t, int64(1), got[0].TotalEmployees)
	for _, row := range got[1:] {
		assert.Empty(t, row.ID, "computed months are not persisted")
		assert.Equal(t, int64(120), row.TotalEmployees)
	}
	assert.Equal(t, 9, got[len(got)-1].Month)
	assert.Len(t, f.totals.rows, 1)
}

func TestService_RollupYear_InvalidYear(t *testing.T) {
	t.Parallel()

	f := newFixture(t, midYear, nil)

	_, err := f.svc.RollupYear(context.Background(), RollupYearInput{FiscalYear: -1})
	assert.ErrorIs(t, err, ErrInvalidFiscalYear)
}

func TestService_ComputeAnnualLevy_FromRollup(t *testing.T) {
	t.Parallel()

	// 2025 年 5 月時点で 2024 年度の 12 か月はすべて過去月です。
	f := newFixture(t, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), nil)

	filing, err := f.svc.ComputeAnnualLevy(context.Background(), ComputeAnnualLevyInput{
		FiscalYear:              2024,
		HomeWorkingPaymentTotal: 350000,
		Bank:                    BankAccount{BankName: "Example Bank", AccountNumber: "1234567"},
	})
	require.NoError(t, err)

	require.Len(t, filing.Months, 12)
	assert.Equal(t, "filing", filing.ID)
	assert.Equal(t, StatusUnconfirmed, filing.Status)
	assert.Equal(t, "Example Bank", filing.Bank.BankName)

	res := filing.Result
	assert.Equal(t, CaseAdjustment, res.Case)
	assert.Equal(t, int64(34), res.RequiredAnnual)
	assert.Equal(t, "2", res.Surplus.String())
	assert.Equal(t, int64(58000), res.AdjustmentAmount)
	assert.Equal(t, int64(210000), res.HomeWorkingOffset)
	assert.Equal(t, int64(268000), res.AdjustmentTotal)
	assert.Equal(t, []string{"levy_filing:2024"}, f.locker.keys)
	assert.Equal(t, []string{"annual:ok"}, f.recorder.recalculations)
}

func TestService_ComputeAnnualLevy_ExplicitMonths(t *testing.T) {
	t.Parallel()

	f := newFixture(t, midYear, nil)
	months := make([]MonthlyBase, 0, 12)
	for _, month := range FiscalMonths {
		months = append(months, MonthlyBase{Month: month, WorkerBase: 120, Disabled: decimal.NewFromInt(3)})
	}

	filing, err := f.svc.ComputeAnnualLevy(context.Background(), ComputeAnnualLevyInput{FiscalYear: 2023, Months: months})
	require.NoError(t, err)

	assert.Equal(t, CaseAdjustment, filing.Result.Case)
	assert.Equal(t, int64(58000), filing.Result.AdjustmentTotal)
}

func TestService_ComputeAnnualLevy_Validation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, midYear, nil)

	_, err := f.svc.ComputeAnnualLevy(context.Background(), ComputeAnnualLevyInput{FiscalYear: 2024, Months: []MonthlyBase{{Month: 0}}})
	assert.ErrorIs(t, err, ErrInvalidMonth)

	_, err = f.svc.ComputeAnnualLevy(context.Background(), ComputeAnnualLevyInput{FiscalYear: 2024, Months: []MonthlyBase{{Month: 4}, {Month: 4}}})
	assert.ErrorIs(t, err, ErrInvalidLevyInput)

	_, err = f.svc.ComputeAnnualLevy(context.Background(), ComputeAnnualLevyInput{FiscalYear: 2024, HomeWorkingPaymentTotal: -1})
	assert.ErrorIs(t, err, ErrInvalidLevyInput)
}

func TestService_ComputeAnnualLevy_FutureYearHasNoMonths(t *testing.T) {
	t.Parallel()

	f := newFixture(t, midYear, nil)

	_, err := f.svc.ComputeAnnualLevy(context.Background(), ComputeAnnualLevyInput{FiscalYear: midYear.Year() + 2})
	require.ErrorIs(t, err, ErrInvalidLevyInput)
	assert.Empty(t, f.filings.rows)
	assert.Empty(t, f.locker.keys)
}

func TestService_ComputeAnnualLevy_RejectsSubmittedFiling(t *testing.T) {
	t.Parallel()

	f := newFixture(t, midYear, nil)
	f.filings.rows[2023] = &LevyFiling{ID: "old", FiscalYear: 2023, Status: StatusSubmitted}

	_, err := f.svc.ComputeAnnualLevy(context.Background(), ComputeAnnualLevyInput{
		FiscalYear: 2023,
		Months:     []MonthlyBase{{Month: 4, WorkerBase: 10}},
	})
	require.ErrorIs(t, err, ErrPeriodLocked)
	assert.Equal(t, "old", f.filings.rows[2023].ID)
	assert.Equal(t, []string{"annual:locked"}, f.recorder.recalculations)
}

func TestService_AdvanceStatus_Monthly(t *testing.T) {
	t.Parallel()

	f := newFixture(t, midYear, nil)
	ctx := context.Background()

	_, err := f.svc.ComputeMonthlyTotal(ctx, ComputeMonthlyTotalInput{FiscalYear: 2024, Month: 4})
	require.NoError(t, err)

	in := AdvanceStatusInput{Target: TargetMonthly, FiscalYear: 2024, Month: 4, From: StatusUnconfirmed, To: StatusConfirmed}
	require.NoError(t, f.svc.AdvanceStatus(ctx, in))
	assert.Equal(t, StatusConfirmed, f.totals.rows[Period{FiscalYear: 2024, Month: 4}].Status)
	assert.Equal(t, []string{"monthly:confirmed"}, f.recorder.transitions)

	assert.ErrorIs(t, f.svc.AdvanceStatus(ctx, in), ErrStatusMismatch, "stale from state is rejected")

	_, err = f.svc.ComputeMonthlyTotal(ctx, ComputeMonthlyTotalInput{FiscalYear: 2024, Month: 4})
	assert.ErrorIs(t, err, ErrPeriodLocked)
}

func TestService_AdvanceStatus_Rejections(t *testing.T) {
	t.Parallel()

	f := newFixture(t, midYear, nil)
	ctx := context.Background()
	f.totals.rows[Period{FiscalYear: 2024, Month: 4}] = &MonthlyTotal{FiscalYear: 2024, Month: 4, Status: StatusUnconfirmed}

	cases := []struct {
		name string
		in   AdvanceStatusInput
		want error
	}{
		{"skip", AdvanceStatusInput{Target: TargetMonthly, FiscalYear: 2024, Month: 4, From: StatusUnconfirmed, To: StatusSubmitted}, ErrInvalidStatusTransition},
		{"reverse", AdvanceStatusInput{Target: TargetMonthly, FiscalYear: 2024, Month: 4, From: StatusConfirmed, To: StatusUnconfirmed}, ErrInvalidStatusTransition},
		{"missing row", AdvanceStatusInput{Target: TargetMonthly, FiscalYear: 2024, Month: 5, From: StatusUnconfirmed, To: StatusConfirmed}, ErrMonthlyTotalNotFound},
		{"bad month", AdvanceStatusInput{Target: TargetMonthly, FiscalYear: 2024, Month: 0, From: StatusUnconfirmed, To: StatusConfirmed}, ErrInvalidMonth},
		{"missing filing", AdvanceStatusInput{Target: TargetAnnual, FiscalYear: 2024, From: StatusUnconfirmed, To: StatusConfirmed}, ErrFilingNotFound},
		{"target", AdvanceStatusInput{Target: "weekly", FiscalYear: 2024, From: StatusUnconfirmed, To: StatusConfirmed}, ErrInvalidTarget},
	}

	for _, tc := range cases {
		err := f.svc.AdvanceStatus(ctx, tc.in)
		assert.ErrorIs(t, err, tc.want, tc.name)
	}
	assert.Empty(t, f.recorder.transitions)
}

func TestService_AdvanceStatus_Annual(t *testing.T) {
	t.Parallel()

	f := newFixture(t, midYear, nil)
	ctx := context.Background()
	f.filings.rows[2023] = &LevyFiling{ID: "f", FiscalYear: 2023, Status: StatusConfirmed}

	err := f.svc.AdvanceStatus(ctx, AdvanceStatusInput{Target: TargetAnnual, FiscalYear: 2023, From: StatusConfirmed, To: StatusSubmitted})
	require.NoError(t, err)

	assert.Equal(t, StatusSubmitted, f.filings.rows[2023].Status)
	assert.True(t, f.filings.rows[2023].UpdatedAt.Equal(midYear))
	assert.Equal(t, []string{"levy_filing:2023"}, f.locker.keys)
}

func TestResultLabel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ResultOK, resultLabel(nil))
	assert.Equal(t, ResultLocked, resultLabel(ErrPeriodLocked))
	assert.Equal(t, ResultError, resultLabel(errors.New("boom")))
}
