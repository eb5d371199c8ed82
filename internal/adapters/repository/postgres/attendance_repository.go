package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/ogurasousui/levy-engine/internal/core/attendance"
	pgdb "github.com/ogurasousui/levy-engine/internal/platform/db/postgres"
)

const attendanceColumns = `id, employee_id, fiscal_year, month, scheduled_hours, actual_hours, exception_note, created_at, updated_at`

// AttendanceRepository は PostgreSQL を利用した勤怠永続化の実装です。
type AttendanceRepository struct {
	pool pgdb.Queryer
}

// NewAttendanceRepository は AttendanceRepository を生成します。
func NewAttendanceRepository(pool pgdb.Queryer) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// Save は (社員, 年度, 月) をキーに勤怠を登録または更新します。
func (r *AttendanceRepository) Save(ctx context.Context, rec *attendance.Record) (*attendance.Record, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO attendance_records (employee_id, fiscal_year, month, scheduled_hours, actual_hours, exception_note, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (employee_id, fiscal_year, month) DO UPDATE
           SET scheduled_hours = EXCLUDED.scheduled_hours,
               actual_hours = EXCLUDED.actual_hours,
               exception_note = EXCLUDED.exception_note,
               updated_at = EXCLUDED.updated_at
        RETURNING `+attendanceColumns,
		rec.EmployeeID,
		rec.FiscalYear,
		rec.Month,
		rec.ScheduledHours,
		rec.ActualHours,
		rec.ExceptionNote,
		rec.CreatedAt,
		rec.UpdatedAt,
	)

	saved, err := scanAttendance(row)
	if err != nil {
		return nil, translateAttendancePgError(err)
	}
	return saved, nil
}

// CreateMissing は未登録の月だけを作成し、作成件数を返します。
func (r *AttendanceRepository) CreateMissing(ctx context.Context, records []*attendance.Record) (int, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	created := 0
	for _, rec := range records {
		tag, err := exec.Exec(ctx, `
            INSERT INTO attendance_records (employee_id, fiscal_year, month, scheduled_hours, actual_hours, exception_note, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
            ON CONFLICT (employee_id, fiscal_year, month) DO NOTHING
        `,
			rec.EmployeeID,
			rec.FiscalYear,
			rec.Month,
			rec.ScheduledHours,
			rec.ActualHours,
			rec.ExceptionNote,
			rec.CreatedAt,
			rec.UpdatedAt,
		)
		if err != nil {
			return created, translateAttendancePgError(err)
		}
		created += int(tag.RowsAffected())
	}
	return created, nil
}

// ListByFiscalYear は年度内の全社員の勤怠を返します。
func (r *AttendanceRepository) ListByFiscalYear(ctx context.Context, fiscalYear int) ([]*attendance.Record, error) {
	return r.list(ctx, `
        SELECT `+attendanceColumns+`
          FROM attendance_records
         WHERE fiscal_year = $1
         ORDER BY employee_id, month
    `, fiscalYear)
}

// ListByEmployee は社員の年度内の勤怠を返します。
func (r *AttendanceRepository) ListByEmployee(ctx context.Context, employeeID string, fiscalYear int) ([]*attendance.Record, error) {
	return r.list(ctx, `
        SELECT `+attendanceColumns+`
          FROM attendance_records
         WHERE employee_id = $1 AND fiscal_year = $2
         ORDER BY month
    `, employeeID, fiscalYear)
}

func (r *AttendanceRepository) list(ctx context.Context, query string, args ...any) ([]*attendance.Record, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, translateAttendancePgError(err)
	}
	defer rows.Close()

	var out []*attendance.Record
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, translateAttendancePgError(err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, translateAttendancePgError(err)
	}
	return out, nil
}

func scanAttendance(row pgx.Row) (*attendance.Record, error) {
	var rec attendance.Record
	if err := row.Scan(
		&rec.ID,
		&rec.EmployeeID,
		&rec.FiscalYear,
		&rec.Month,
		&rec.ScheduledHours,
		&rec.ActualHours,
		&rec.ExceptionNote,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &rec, nil
}

func translateAttendancePgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return attendance.ErrEmployeeNotFound
	}
	if code, _, ok := pgdb.ErrorCode(err); ok {
		switch code {
		case pgdb.CodeForeignKeyViolation:
			return attendance.ErrEmployeeNotFound
		case pgdb.CodeCheckViolation:
			return attendance.ErrInvalidHours
		}
	}
	return err
}
