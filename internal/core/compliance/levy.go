package compliance

import "github.com/shopspring/decimal"

// LevyCase は年度申告が納付金と調整金のどちらになるかを表します。
type LevyCase string

const (
	CaseLevy       LevyCase = "levy"
	CaseAdjustment LevyCase = "adjustment"
)

// LevyInput は年度合計の算定基礎数と単価です。
type LevyInput struct {
	// WorkerBaseTotal は 12 か月分の常用労働者数の合計です。
	WorkerBaseTotal int64
	// DisabledTotal は 12 か月分の障害者数（算定カウント加重）の合計です。
	DisabledTotal decimal.Decimal
	// ShortTimeTotal は 12 か月分の短時間障害者数の合計です。
	ShortTimeTotal          int64
	LegalRate               decimal.Decimal
	Rounding                RoundingMode
	Units                   UnitPrices
	HomeWorkingPaymentTotal int64
	HomeWorkingDivisor      int64
}

// LevyResult は納付金・調整金・在宅就業特例・特例給付金の計算結果です。金額は円単位の非負整数です。
type LevyResult struct {
	Case              LevyCase
	RequiredAnnual    int64
	Shortfall         decimal.Decimal
	Surplus           decimal.Decimal
	HomeWorkingCount  int64
	LevyDue           int64
	HomeWorkingOffset int64
	NetPayment        int64
	AdjustmentAmount  int64
	AdjustmentTotal   int64
	SpecialPayment    int64
}

// Validate は入力値の値域を検証します。
func (in LevyInput) Validate() error {
	switch {
	case in.WorkerBaseTotal < 0,
		in.DisabledTotal.IsNegative(),
		in.ShortTimeTotal < 0,
		!in.LegalRate.IsPositive(),
		in.HomeWorkingPaymentTotal < 0,
		in.HomeWorkingDivisor <= 0,
		in.Units.Levy < 0, in.Units.Adjustment < 0, in.Units.HomeWorking < 0, in.Units.ShortTime < 0:
		return ErrInvalidLevyInput
	}
	if in.Rounding != "" && in.Rounding != RoundCeil && in.Rounding != RoundFloor {
		return ErrInvalidRoundingMode
	}
	return nil
}

// CalculateLevy は年度合計から納付金または調整金を計算します。
//
// 在宅就業障害者特例額は支払総額を除数で割った件数（切り捨て）に単価を掛け、障害者数×単価を
// 上限とします。法定雇用障害者数が障害者数を上回れば納付金ケースで特例額を差し引き、そうで
// なければ調整金ケースで特例額を加算します。特例給付金はケースに関係なく計算します。
func CalculateLevy(in LevyInput) (LevyResult, error) {
	if err := in.Validate(); err != nil {
		return LevyResult{}, err
	}

	required := RequiredHeadcount(in.WorkerBaseTotal, in.LegalRate, in.Rounding)
	requiredDec := decimal.NewFromInt(required)

	hwCount := in.HomeWorkingPaymentTotal / in.HomeWorkingDivisor
	offset := min(hwCount*in.Units.HomeWorking, money(in.DisabledTotal, in.Units.HomeWorking))

	res := LevyResult{
		RequiredAnnual:    required,
		Shortfall:         decimal.Zero,
		Surplus:           decimal.Zero,
		HomeWorkingCount:  hwCount,
		HomeWorkingOffset: offset,
	}

	if requiredDec.GreaterThan(in.DisabledTotal) {
		res.Case = CaseLevy
		res.Shortfall = requiredDec.Sub(in.DisabledTotal)
		res.LevyDue = money(res.Shortfall, in.Units.Levy)
		res.NetPayment = max(0, res.LevyDue-offset)
	} else {
		res.Case = CaseAdjustment
		res.Surplus = in.DisabledTotal.Sub(requiredDec)
		res.AdjustmentAmount = money(res.Surplus, in.Units.Adjustment)
		res.AdjustmentTotal = res.AdjustmentAmount + offset
	}

	shortTime := decimal.Min(decimal.NewFromInt(in.ShortTimeTotal), in.DisabledTotal)
	res.SpecialPayment = money(shortTime, in.Units.ShortTime)

	return res, nil
}

// BaseFiguresFromTotals は月次集計から年度申告用の月別算定基礎数を作ります。
func BaseFiguresFromTotals(totals []*MonthlyTotal) []MonthlyBase {
	out := make([]MonthlyBase, 0, len(totals))
	for _, t := range totals {
		if t == nil {
			continue
		}
		out = append(out, MonthlyBase{
			Month:      t.Month,
			WorkerBase: t.TotalEmployees,
			Disabled:   t.DisabledEmployees,
			ShortTime:  t.ShortTimeEmployees,
		})
	}
	return out
}

// SumBases は月別算定基礎数を年度合計にします。
func SumBases(bases []MonthlyBase) (workers int64, disabled decimal.Decimal, shortTime int64) {
	disabled = decimal.Zero
	for _, b := range bases {
		workers += b.WorkerBase
		disabled = disabled.Add(b.Disabled)
		shortTime += b.ShortTime
	}
	return workers, disabled, shortTime
}

// money は人数 × 単価の円未満を切り捨てます。
func money(heads decimal.Decimal, unit int64) int64 {
	return heads.Mul(decimal.NewFromInt(unit)).Floor().IntPart()
}
