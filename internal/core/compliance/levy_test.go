package compliance

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func standardUnits() UnitPrices {
	return UnitPrices{Levy: 50000, Adjustment: 29000, HomeWorking: 21000, ShortTime: 7000}
}

func levyInput(disabled string) LevyInput {
	return LevyInput{
		WorkerBaseTotal:    1440,
		DisabledTotal:      decimal.RequireFromString(disabled),
		LegalRate:          decimal.RequireFromString("2.3"),
		Rounding:           RoundCeil,
		Units:              standardUnits(),
		HomeWorkingDivisor: 35000,
	}
}

func TestCalculateLevy_AdjustmentCase(t *testing.T) {
	t.Parallel()

	in := levyInput("36")
	in.ShortTimeTotal = 6

	got, err := CalculateLevy(in)
	require.NoError(t, err)

	assert.Equal(t, CaseAdjustment, got.Case)
	assert.Equal(t, int64(34), got.RequiredAnnual)
	assert.Equal(t, "2", got.Surplus.String())
	assert.Equal(t, int64(58000), got.AdjustmentAmount)
	assert.Equal(t, int64(0), got.HomeWorkingOffset)
	assert.Equal(t, int64(58000), got.AdjustmentTotal)
	assert.Equal(t, int64(0), got.LevyDue)
	assert.Equal(t, int64(0), got.NetPayment)
	assert.Equal(t, int64(42000), got.SpecialPayment)
}

func TestCalculateLevy_AdjustmentCaseAddsHomeWorkingOffset(t *testing.T) {
	t.Parallel()

	in := levyInput("36")
	in.HomeWorkingPaymentTotal = 350000

	got, err := CalculateLevy(in)
	require.NoError(t, err)

	assert.Equal(t, CaseAdjustment, got.Case)
	assert.Equal(t, int64(10), got.HomeWorkingCount)
	assert.Equal(t, int64(210000), got.HomeWorkingOffset)
	assert.Equal(t, int64(58000+210000), got.AdjustmentTotal)
}

func TestCalculateLevy_LevyCase(t *testing.T) {
	t.Parallel()

	in := levyInput("30")
	in.HomeWorkingPaymentTotal = 350000

	got, err := CalculateLevy(in)
	require.NoError(t, err)

	assert.Equal(t, CaseLevy, got.Case)
	assert.Equal(t, "4", got.Shortfall.String())
	assert.Equal(t, int64(200000), got.LevyDue)
	assert.Equal(t, int64(210000), got.HomeWorkingOffset)
	assert.Equal(t, int64(0), got.NetPayment, "offset larger than levy clamps to zero")
	assert.Equal(t, int64(0), got.AdjustmentAmount)
	assert.Equal(t, int64(0), got.AdjustmentTotal)
}

func TestCalculateLevy_LevyCaseWithoutOffset(t *testing.T) {
	t.Parallel()

	got, err := CalculateLevy(levyInput("30"))
	require.NoError(t, err)

	assert.Equal(t, CaseLevy, got.Case)
	assert.Equal(t, int64(200000), got.NetPayment)
}

func TestCalculateLevy_EqualIsAdjustmentCase(t *testing.T) {
	t.Parallel()

	got, err := CalculateLevy(levyInput("34"))
	require.NoError(t, err)

	assert.Equal(t, CaseAdjustment, got.Case)
	assert.True(t, got.Surplus.IsZero())
	assert.Equal(t, int64(0), got.AdjustmentTotal)
}

func TestCalculateLevy_HomeWorkingOffsetCap(t *testing.T) {
	t.Parallel()

	in := levyInput("5")
	in.HomeWorkingPaymentTotal = 350000

	got, err := CalculateLevy(in)
	require.NoError(t, err)

	assert.Equal(t, int64(10), got.HomeWorkingCount)
	assert.Equal(t, int64(105000), got.HomeWorkingOffset, "capped at disabled total x unit")
	assert.Equal(t, CaseLevy, got.Case)
	assert.Equal(t, int64(29*50000), got.LevyDue)
	assert.Equal(t, int64(29*50000-105000), got.NetPayment)
}

func TestCalculateLevy_HomeWorkingCountFloors(t *testing.T) {
	t.Parallel()

	in := levyInput("36")
	in.HomeWorkingPaymentTotal = 104999

	got, err := CalculateLevy(in)
	require.NoError(t, err)

	assert.Equal(t, int64(2), got.HomeWorkingCount)
	assert.Equal(t, int64(42000), got.HomeWorkingOffset)
}

func TestCalculateLevy_HalfHeadsFloorMoney(t *testing.T) {
	t.Parallel()

	in := levyInput("33.5")
	in.Units.Levy = 50001

	got, err := CalculateLevy(in)
	require.NoError(t, err)

	assert.Equal(t, "0.5", got.Shortfall.String())
	assert.Equal(t, int64(25000), got.LevyDue)
}

func TestCalculateLevy_SpecialPaymentCappedByDisabled(t *testing.T) {
	t.Parallel()

	in := levyInput("3")
	in.ShortTimeTotal = 12

	got, err := CalculateLevy(in)
	require.NoError(t, err)

	assert.Equal(t, int64(21000), got.SpecialPayment)
}

func TestCalculateLevy_FloorRounding(t *testing.T) {
	t.Parallel()

	in := levyInput("33")
	in.Rounding = RoundFloor

	got, err := CalculateLevy(in)
	require.NoError(t, err)

	assert.Equal(t, int64(33), got.RequiredAnnual)
	assert.Equal(t, CaseAdjustment, got.Case)
}

func TestCalculateLevy_InvalidInput(t *testing.T) {
	t.Parallel()

	cases := map[string]func(*LevyInput){
		"negative workers":  func(in *LevyInput) { in.WorkerBaseTotal = -1 },
		"negative disabled": func(in *LevyInput) { in.DisabledTotal = decimal.NewFromInt(-1) },
		"zero rate":         func(in *LevyInput) { in.LegalRate = decimal.Zero },
		"zero divisor":      func(in *LevyInput) { in.HomeWorkingDivisor = 0 },
		"negative payment":  func(in *LevyInput) { in.HomeWorkingPaymentTotal = -1 },
		"negative unit":     func(in *LevyInput) { in.Units.Levy = -1 },
	}

	for name, mutate := range cases {
		mutate := mutate
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			in := levyInput("30")
			mutate(&in)
			_, err := CalculateLevy(in)
			assert.ErrorIs(t, err, ErrInvalidLevyInput)
		})
	}
}

func TestBaseFiguresFromTotals(t *testing.T) {
	t.Parallel()

	totals := make([]*MonthlyTotal, 0, 12)
	for _, month := range FiscalMonths {
		totals = append(totals, &MonthlyTotal{
			Month:              month,
			TotalEmployees:     120,
			DisabledEmployees:  decimal.NewFromInt(3),
			ShortTimeEmployees: 1,
		})
	}

	bases := BaseFiguresFromTotals(totals)
	require.Len(t, bases, 12)

	workers, disabled, shortTime := SumBases(bases)
	assert.Equal(t, int64(1440), workers)
	assert.Equal(t, "36", disabled.String())
	assert.Equal(t, int64(12), shortTime)
}
