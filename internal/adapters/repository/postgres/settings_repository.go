package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ogurasousui/levy-engine/internal/core/settings"
	pgdb "github.com/ogurasousui/levy-engine/internal/platform/db/postgres"
)

const settingsColumns = `legal_rate::text, rounding, levy_unit, adjustment_unit, home_working_unit, short_time_unit, home_working_divisor, updated_at`

// SettingsRepository は company_settings の単一行を読み書きします。
type SettingsRepository struct {
	pool pgdb.Queryer
}

// NewSettingsRepository は SettingsRepository を生成します。
func NewSettingsRepository(pool pgdb.Queryer) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

// Get は算定設定を返します。行が無ければ settings.ErrSettingsNotFound を返します。
func (r *SettingsRepository) Get(ctx context.Context) (*settings.Settings, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `SELECT `+settingsColumns+` FROM company_settings WHERE id = 1`)

	st, err := scanSettings(row)
	if err != nil {
		return nil, translateSettingsPgError(err)
	}
	return st, nil
}

// Save は算定設定を保存します。
func (r *SettingsRepository) Save(ctx context.Context, st *settings.Settings) (*settings.Settings, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO company_settings (id, legal_rate, rounding, levy_unit, adjustment_unit, home_working_unit, short_time_unit, home_working_divisor, updated_at)
        VALUES (1, $1::numeric, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (id) DO UPDATE
           SET legal_rate = EXCLUDED.legal_rate,
               rounding = EXCLUDED.rounding,
               levy_unit = EXCLUDED.levy_unit,
               adjustment_unit = EXCLUDED.adjustment_unit,
               home_working_unit = EXCLUDED.home_working_unit,
               short_time_unit = EXCLUDED.short_time_unit,
               home_working_divisor = EXCLUDED.home_working_divisor,
               updated_at = EXCLUDED.updated_at
        RETURNING `+settingsColumns,
		st.LegalRate.String(),
		st.Rounding,
		st.LevyUnit,
		st.AdjustmentUnit,
		st.HomeWorkingUnit,
		st.ShortTimeUnit,
		st.HomeWorkingDivisor,
		st.UpdatedAt,
	)

	saved, err := scanSettings(row)
	if err != nil {
		return nil, translateSettingsPgError(err)
	}
	return saved, nil
}

func scanSettings(row pgx.Row) (*settings.Settings, error) {
	var (
		st   settings.Settings
		rate string
	)
	if err := row.Scan(
		&rate,
		&st.Rounding,
		&st.LevyUnit,
		&st.AdjustmentUnit,
		&st.HomeWorkingUnit,
		&st.ShortTimeUnit,
		&st.HomeWorkingDivisor,
		&st.UpdatedAt,
	); err != nil {
		return nil, err
	}
	parsed, err := decimal.NewFromString(rate)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse legal_rate %q: %w", rate, err)
	}
	st.LegalRate = parsed
	return &st, nil
}

func translateSettingsPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return settings.ErrSettingsNotFound
	}
	if code, constraint, ok := pgdb.ErrorCode(err); ok && code == pgdb.CodeCheckViolation {
		switch {
		case strings.Contains(constraint, "legal_rate"):
			return settings.ErrInvalidLegalRate
		case strings.Contains(constraint, "rounding"):
			return settings.ErrInvalidRounding
		case strings.Contains(constraint, "divisor"):
			return settings.ErrInvalidDivisor
		default:
			return settings.ErrInvalidUnitPrice
		}
	}
	return err
}
