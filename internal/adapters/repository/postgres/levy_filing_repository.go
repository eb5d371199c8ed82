package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"github.com/ogurasousui/levy-engine/internal/core/compliance"
	pgdb "github.com/ogurasousui/levy-engine/internal/platform/db/postgres"
)

const levyFilingColumns = `id, fiscal_year, months, legal_rate::text, rounding,
               levy_unit, adjustment_unit, home_working_unit, short_time_unit,
               home_working_payment_total, home_working_divisor, bank,
               levy_case, required_annual, shortfall::text, surplus::text, home_working_count,
               levy_due, home_working_offset, net_payment, adjustment_amount, adjustment_total, special_payment,
               status, created_at, updated_at`

// LevyFilingRepository は levy_filings テーブルを扱います。
type LevyFilingRepository struct {
	pool pgdb.Queryer
}

// NewLevyFilingRepository は LevyFilingRepository を生成します。
func NewLevyFilingRepository(pool pgdb.Queryer) *LevyFilingRepository {
	return &LevyFilingRepository{pool: pool}
}

// FindByFiscalYear は年度の申告を返します。
func (r *LevyFilingRepository) FindByFiscalYear(ctx context.Context, fiscalYear int) (*compliance.LevyFiling, error) {
	return r.find(ctx, fiscalYear, "")
}

// FindByFiscalYearForUpdate は年度の申告を行ロック付きで返します。
func (r *LevyFilingRepository) FindByFiscalYearForUpdate(ctx context.Context, fiscalYear int) (*compliance.LevyFiling, error) {
	return r.find(ctx, fiscalYear, " FOR UPDATE")
}

func (r *LevyFilingRepository) find(ctx context.Context, fiscalYear int, lockClause string) (*compliance.LevyFiling, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+levyFilingColumns+`
          FROM levy_filings
         WHERE fiscal_year = $1`+lockClause, fiscalYear)

	found, err := scanLevyFiling(row)
	if err != nil {
		return nil, translateLevyFilingPgError(err)
	}
	return found, nil
}

// Create は申告を新規に保存します。
func (r *LevyFilingRepository) Create(ctx context.Context, f *compliance.LevyFiling) (*compliance.LevyFiling, error) {
	months, bank, err := encodeFilingDetails(f)
	if err != nil {
		return nil, err
	}

	res := f.Result
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO levy_filings (fiscal_year, months, legal_rate, rounding,
                                  levy_unit, adjustment_unit, home_working_unit, short_time_unit,
                                  home_working_payment_total, home_working_divisor, bank,
                                  levy_case, required_annual, shortfall, surplus, home_working_count,
                                  levy_due, home_working_offset, net_payment, adjustment_amount, adjustment_total, special_payment,
                                  status, created_at, updated_at)
        VALUES ($1, $2::jsonb, $3::numeric, $4, $5, $6, $7, $8, $9, $10, $11::jsonb,
                $12, $13, $14::numeric, $15::numeric, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
        RETURNING `+levyFilingColumns,
		f.FiscalYear,
		months,
		f.LegalRate.String(),
		string(f.Rounding),
		f.Units.Levy,
		f.Units.Adjustment,
		f.Units.HomeWorking,
		f.Units.ShortTime,
		f.HomeWorkingPaymentTotal,
		f.HomeWorkingDivisor,
		bank,
		string(res.Case),
		res.RequiredAnnual,
		res.Shortfall.String(),
		res.Surplus.String(),
		res.HomeWorkingCount,
		res.LevyDue,
		res.HomeWorkingOffset,
		res.NetPayment,
		res.AdjustmentAmount,
		res.AdjustmentTotal,
		res.SpecialPayment,
		string(f.Status),
		f.CreatedAt,
		f.UpdatedAt,
	)

	created, err := scanLevyFiling(row)
	if err != nil {
		return nil, translateLevyFilingPgError(err)
	}
	return created, nil
}

// ReplaceUnconfirmed は未確定の申告だけを上書きします。
func (r *LevyFilingRepository) ReplaceUnconfirmed(ctx context.Context, f *compliance.LevyFiling) (*compliance.LevyFiling, error) {
	months, bank, err := encodeFilingDetails(f)
	if err != nil {
		return nil, err
	}

	res := f.Result
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE levy_filings
           SET months = $1::jsonb,
               legal_rate = $2::numeric,
               rounding = $3,
               levy_unit = $4,
               adjustment_unit = $5,
               home_working_unit = $6,
               short_time_unit = $7,
               home_working_payment_total = $8,
               home_working_divisor = $9,
               bank = $10::jsonb,
               levy_case = $11,
               required_annual = $12,
               shortfall = $13::numeric,
               surplus = $14::numeric,
               home_working_count = $15,
               levy_due = $16,
               home_working_offset = $17,
               net_payment = $18,
               adjustment_amount = $19,
               adjustment_total = $20,
               special_payment = $21,
               updated_at = $22
         WHERE fiscal_year = $23 AND status = 'unconfirmed'
        RETURNING `+levyFilingColumns,
		months,
		f.LegalRate.String(),
		string(f.Rounding),
		f.Units.Levy,
		f.Units.Adjustment,
		f.Units.HomeWorking,
		f.Units.ShortTime,
		f.HomeWorkingPaymentTotal,
		f.HomeWorkingDivisor,
		bank,
		string(res.Case),
		res.RequiredAnnual,
		res.Shortfall.String(),
		res.Surplus.String(),
		res.HomeWorkingCount,
		res.LevyDue,
		res.HomeWorkingOffset,
		res.NetPayment,
		res.AdjustmentAmount,
		res.AdjustmentTotal,
		res.SpecialPayment,
		f.UpdatedAt,
		f.FiscalYear,
	)

	updated, err := scanLevyFiling(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, compliance.ErrPeriodLocked
		}
		return nil, translateLevyFilingPgError(err)
	}
	return updated, nil
}

// UpdateStatus は状態が from の申告を to へ更新します。
func (r *LevyFilingRepository) UpdateStatus(ctx context.Context, fiscalYear int, from, to compliance.Status, at time.Time) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `
        UPDATE levy_filings
           SET status = $1, updated_at = $2
         WHERE fiscal_year = $3 AND status = $4
    `, string(to), at, fiscalYear, string(from))
	if err != nil {
		return translateLevyFilingPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return compliance.ErrStatusMismatch
	}
	return nil
}

func encodeFilingDetails(f *compliance.LevyFiling) (months, bank []byte, err error) {
	bases := f.Months
	if bases == nil {
		bases = []compliance.MonthlyBase{}
	}
	if months, err = json.Marshal(bases); err != nil {
		return nil, nil, fmt.Errorf("postgres: encode filing months: %w", err)
	}
	if bank, err = json.Marshal(f.Bank); err != nil {
		return nil, nil, fmt.Errorf("postgres: encode filing bank: %w", err)
	}
	return months, bank, nil
}

func scanLevyFiling(row pgx.Row) (*compliance.LevyFiling, error) {
	var (
		f                             compliance.LevyFiling
		months, bank                  []byte
		legalRate, shortfall, surplus string
		rounding, levyCase, status    string
	)
	if err := row.Scan(
		&f.ID,
		&f.FiscalYear,
		&months,
		&legalRate,
		&rounding,
		&f.Units.Levy,
		&f.Units.Adjustment,
		&f.Units.HomeWorking,
		&f.Units.ShortTime,
		&f.HomeWorkingPaymentTotal,
		&f.HomeWorkingDivisor,
		&bank,
		&levyCase,
		&f.Result.RequiredAnnual,
		&shortfall,
		&surplus,
		&f.Result.HomeWorkingCount,
		&f.Result.LevyDue,
		&f.Result.HomeWorkingOffset,
		&f.Result.NetPayment,
		&f.Result.AdjustmentAmount,
		&f.Result.AdjustmentTotal,
		&f.Result.SpecialPayment,
		&status,
		&f.CreatedAt,
		&f.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if f.LegalRate, err = parseDecimal("legal_rate", legalRate); err != nil {
		return nil, err
	}
	if f.Result.Shortfall, err = parseDecimal("shortfall", shortfall); err != nil {
		return nil, err
	}
	if f.Result.Surplus, err = parseDecimal("surplus", surplus); err != nil {
		return nil, err
	}
	if len(months) > 0 {
		if err := json.Unmarshal(months, &f.Months); err != nil {
			return nil, fmt.Errorf("postgres: decode filing months: %w", err)
		}
	}
	if len(bank) > 0 {
		if err := json.Unmarshal(bank, &f.Bank); err != nil {
			return nil, fmt.Errorf("postgres: decode filing bank: %w", err)
		}
	}
	f.Rounding = compliance.RoundingMode(rounding)
	f.Result.Case = compliance.LevyCase(levyCase)
	f.Status = compliance.Status(status)
	return &f, nil
}

func translateLevyFilingPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return compliance.ErrFilingNotFound
	}
	return translateComplianceConflict(err)
}
