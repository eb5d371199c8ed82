package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ogurasousui/levy-engine/internal/core/compliance"
	pgdb "github.com/ogurasousui/levy-engine/internal/platform/db/postgres"
)

const monthlyTotalColumns = `id, fiscal_year, month, total_employees, disabled_employees::text, short_time_employees,
               actual_rate::text, legal_rate::text, legal_count, shortage::text, status, lines, created_at, updated_at`

// 年度内の月を 4 月始まりで並べる式です。
const fiscalMonthOrder = `CASE WHEN month >= 4 THEN month - 4 ELSE month + 8 END`

// MonthlyTotalRepository は monthly_totals テーブルを扱います。
type MonthlyTotalRepository struct {
	pool pgdb.Queryer
}

// NewMonthlyTotalRepository は MonthlyTotalRepository を生成します。
func NewMonthlyTotalRepository(pool pgdb.Queryer) *MonthlyTotalRepository {
	return &MonthlyTotalRepository{pool: pool}
}

// FindByPeriod は年度月の集計を返します。
func (r *MonthlyTotalRepository) FindByPeriod(ctx context.Context, p compliance.Period) (*compliance.MonthlyTotal, error) {
	return r.findByPeriod(ctx, p, "")
}

// FindByPeriodForUpdate は年度月の集計を行ロック付きで返します。
func (r *MonthlyTotalRepository) FindByPeriodForUpdate(ctx context.Context, p compliance.Period) (*compliance.MonthlyTotal, error) {
	return r.findByPeriod(ctx, p, " FOR UPDATE")
}

func (r *MonthlyTotalRepository) findByPeriod(ctx context.Context, p compliance.Period, lockClause string) (*compliance.MonthlyTotal, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+monthlyTotalColumns+`
          FROM monthly_totals
         WHERE fiscal_year = $1 AND month = $2`+lockClause, p.FiscalYear, p.Month)

	found, err := scanMonthlyTotal(row)
	if err != nil {
		return nil, translateMonthlyTotalPgError(err)
	}
	return found, nil
}

// ListByFiscalYear は年度の保存済み集計を 4 月から順に返します。
func (r *MonthlyTotalRepository) ListByFiscalYear(ctx context.Context, fiscalYear int) ([]*compliance.MonthlyTotal, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT `+monthlyTotalColumns+`
          FROM monthly_totals
         WHERE fiscal_year = $1
         ORDER BY `+fiscalMonthOrder, fiscalYear)
	if err != nil {
		return nil, translateMonthlyTotalPgError(err)
	}
	defer rows.Close()

	var out []*compliance.MonthlyTotal
	for rows.Next() {
		total, err := scanMonthlyTotal(rows)
		if err != nil {
			return nil, translateMonthlyTotalPgError(err)
		}
		out = append(out, total)
	}
	if err := rows.Err(); err != nil {
		return nil, translateMonthlyTotalPgError(err)
	}
	return out, nil
}

// Create は集計を新規に保存します。同じ年度月の行が既にあれば compliance.ErrConcurrentUpdate を返します。
func (r *MonthlyTotalRepository) Create(ctx context.Context, t *compliance.MonthlyTotal) (*compliance.MonthlyTotal, error) {
	lines, err := json.Marshal(nonNilLines(t.Lines))
	if err != nil {
		return nil, fmt.Errorf("postgres: encode monthly lines: %w", err)
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO monthly_totals (fiscal_year, month, total_employees, disabled_employees, short_time_employees,
                                    actual_rate, legal_rate, legal_count, shortage, status, lines, created_at, updated_at)
        VALUES ($1, $2, $3, $4::numeric, $5, $6::numeric, $7::numeric, $8, $9::numeric, $10, $11::jsonb, $12, $13)
        RETURNING `+monthlyTotalColumns,
		t.FiscalYear,
		t.Month,
		t.TotalEmployees,
		t.DisabledEmployees.String(),
		t.ShortTimeEmployees,
		t.ActualRate.String(),
		t.LegalRate.String(),
		t.LegalCount,
		t.Shortage.String(),
		string(t.Status),
		lines,
		t.CreatedAt,
		t.UpdatedAt,
	)

	created, err := scanMonthlyTotal(row)
	if err != nil {
		return nil, translateMonthlyTotalPgError(err)
	}
	return created, nil
}

// ReplaceUnconfirmed は未確定の行だけを上書きします。確定済みの行は更新されず compliance.ErrPeriodLocked を返します。
func (r *MonthlyTotalRepository) ReplaceUnconfirmed(ctx context.Context, t *compliance.MonthlyTotal) (*compliance.MonthlyTotal, error) {
	lines, err := json.Marshal(nonNilLines(t.Lines))
	if err != nil {
		return nil, fmt.Errorf("postgres: encode monthly lines: %w", err)
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE monthly_totals
           SET total_employees = $1,
               disabled_employees = $2::numeric,
               short_time_employees = $3,
               actual_rate = $4::numeric,
               legal_rate = $5::numeric,
               legal_count = $6,
               shortage = $7::numeric,
               lines = $8::jsonb,
               updated_at = $9
         WHERE fiscal_year = $10 AND month = $11 AND status = 'unconfirmed'
        RETURNING `+monthlyTotalColumns,
		t.TotalEmployees,
		t.DisabledEmployees.String(),
		t.ShortTimeEmployees,
		t.ActualRate.String(),
		t.LegalRate.String(),
		t.LegalCount,
		t.Shortage.String(),
		lines,
		t.UpdatedAt,
		t.FiscalYear,
		t.Month,
	)

	updated, err := scanMonthlyTotal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, compliance.ErrPeriodLocked
		}
		return nil, translateMonthlyTotalPgError(err)
	}
	return updated, nil
}

// UpdateStatus は状態が from の行を to へ更新します。
func (r *MonthlyTotalRepository) UpdateStatus(ctx context.Context, p compliance.Period, from, to compliance.Status, at time.Time) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `
        UPDATE monthly_totals
           SET status = $1, updated_at = $2
         WHERE fiscal_year = $3 AND month = $4 AND status = $5
    `, string(to), at, p.FiscalYear, p.Month, string(from))
	if err != nil {
		return translateMonthlyTotalPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return compliance.ErrStatusMismatch
	}
	return nil
}

func scanMonthlyTotal(row pgx.Row) (*compliance.MonthlyTotal, error) {
	var (
		t                                      compliance.MonthlyTotal
		disabled, actualRate, legalRate, short string
		status                                 string
		lines                                  []byte
	)
	if err := row.Scan(
		&t.ID,
		&t.FiscalYear,
		&t.Month,
		&t.TotalEmployees,
		&disabled,
		&t.ShortTimeEmployees,
		&actualRate,
		&legalRate,
		&t.LegalCount,
		&short,
		&status,
		&lines,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if t.DisabledEmployees, err = parseDecimal("disabled_employees", disabled); err != nil {
		return nil, err
	}
	if t.ActualRate, err = parseDecimal("actual_rate", actualRate); err != nil {
		return nil, err
	}
	if t.LegalRate, err = parseDecimal("legal_rate", legalRate); err != nil {
		return nil, err
	}
	if t.Shortage, err = parseDecimal("shortage", short); err != nil {
		return nil, err
	}
	if len(lines) > 0 {
		if err := json.Unmarshal(lines, &t.Lines); err != nil {
			return nil, fmt.Errorf("postgres: decode monthly lines: %w", err)
		}
	}
	t.Status = compliance.Status(status)
	return &t, nil
}

func translateMonthlyTotalPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return compliance.ErrMonthlyTotalNotFound
	}
	return translateComplianceConflict(err)
}

// translateComplianceConflict は同時更新に由来するエラーを compliance.ErrConcurrentUpdate に変換します。
func translateComplianceConflict(err error) error {
	if pgdb.IsConcurrencyConflict(err) {
		return fmt.Errorf("%w: %v", compliance.ErrConcurrentUpdate, err)
	}
	if code, _, ok := pgdb.ErrorCode(err); ok {
		switch code {
		case pgdb.CodeUniqueViolation:
			return fmt.Errorf("%w: %v", compliance.ErrConcurrentUpdate, err)
		case pgdb.CodeCheckViolation:
			return fmt.Errorf("%w: %v", compliance.ErrInvalidStatus, err)
		}
	}
	return err
}

func parseDecimal(field, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("postgres: parse %s %q: %w", field, value, err)
	}
	return d, nil
}

func nonNilLines(lines []compliance.MonthlyLine) []compliance.MonthlyLine {
	if lines == nil {
		return []compliance.MonthlyLine{}
	}
	return lines
}
