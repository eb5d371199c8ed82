package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ogurasousui/levy-engine/internal/core/employee"
	pgdb "github.com/ogurasousui/levy-engine/internal/platform/db/postgres"
)

const employeeColumns = `id, employee_code, name, status, hired_at, resigned_at,
               disability_physical, disability_intellectual, disability_mental,
               count_weight::text, short_time, created_at, updated_at`

// EmployeeRepository は PostgreSQL を利用した社員永続化の実装です。
type EmployeeRepository struct {
	pool pgdb.Queryer
}

// NewEmployeeRepository は EmployeeRepository を生成します。
func NewEmployeeRepository(pool pgdb.Queryer) *EmployeeRepository {
	return &EmployeeRepository{pool: pool}
}

// Create は社員を新規作成します。
func (r *EmployeeRepository) Create(ctx context.Context, e *employee.Employee) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO employees (employee_code, name, status, hired_at, resigned_at,
                               disability_physical, disability_intellectual, disability_mental,
                               count_weight, short_time, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10, $11, $12)
        RETURNING `+employeeColumns,
		e.EmployeeCode,
		e.Name,
		string(e.Status),
		nullableDate(e.HiredAt),
		nullableDate(e.ResignedAt),
		e.Disability.Physical,
		e.Disability.Intellectual,
		e.Disability.Mental,
		e.CountWeight.String(),
		e.ShortTime,
		e.CreatedAt,
		e.UpdatedAt,
	)

	created, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return created, nil
}

// Update は社員情報を更新します。
func (r *EmployeeRepository) Update(ctx context.Context, e *employee.Employee) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE employees
           SET employee_code = $1,
               name = $2,
               status = $3,
               hired_at = $4,
               resigned_at = $5,
               disability_physical = $6,
               disability_intellectual = $7,
               disability_mental = $8,
               count_weight = $9::numeric,
               short_time = $10,
               updated_at = $11
         WHERE id = $12
        RETURNING `+employeeColumns,
		e.EmployeeCode,
		e.Name,
		string(e.Status),
		nullableDate(e.HiredAt),
		nullableDate(e.ResignedAt),
		e.Disability.Physical,
		e.Disability.Intellectual,
		e.Disability.Mental,
		e.CountWeight.String(),
		e.ShortTime,
		e.UpdatedAt,
		e.ID,
	)

	updated, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return updated, nil
}

// FindByID は ID で社員を取得します。
func (r *EmployeeRepository) FindByID(ctx context.Context, id string) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+employeeColumns+`
          FROM employees
         WHERE id = $1
         LIMIT 1
    `, id)

	found, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return found, nil
}

// FindByCode は社員コードで検索します。
func (r *EmployeeRepository) FindByCode(ctx context.Context, employeeCode string) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+employeeColumns+`
          FROM employees
         WHERE employee_code = $1
         LIMIT 1
    `, employeeCode)

	found, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return found, nil
}

// List は社員の一覧を取得します。
func (r *EmployeeRepository) List(ctx context.Context, filter employee.ListEmployeesFilter) ([]*employee.Employee, string, error) {
	if filter.Limit <= 0 {
		return nil, "", employee.ErrInvalidPageSize
	}
	if filter.Offset < 0 {
		return nil, "", employee.ErrInvalidPageToken
	}

	limitWithBuffer := filter.Limit + 1

	args := make([]any, 0, 3)
	whereClause := ""
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		whereClause = " WHERE status = $" + strconv.Itoa(len(args))
	}

	args = append(args, limitWithBuffer)
	limitPlaceholder := "$" + strconv.Itoa(len(args))
	args = append(args, filter.Offset)
	offsetPlaceholder := "$" + strconv.Itoa(len(args))

	query := `
        SELECT ` + employeeColumns + `
          FROM employees` + whereClause + `
         ORDER BY employee_code ASC, id ASC
         LIMIT ` + limitPlaceholder + `
        OFFSET ` + offsetPlaceholder + `
    `

	employees, err := r.query(ctx, query, filter.Limit, args...)
	if err != nil {
		return nil, "", err
	}

	var nextToken string
	if len(employees) == limitWithBuffer {
		employees = employees[:filter.Limit]
		nextToken = strconv.Itoa(filter.Offset + filter.Limit)
	}

	return employees, nextToken, nil
}

// ListAll は集計用に退職者を含む全社員を返します。
func (r *EmployeeRepository) ListAll(ctx context.Context) ([]*employee.Employee, error) {
	return r.query(ctx, `
        SELECT `+employeeColumns+`
          FROM employees
         ORDER BY employee_code ASC, id ASC
    `, 0)
}

func (r *EmployeeRepository) query(ctx context.Context, query string, capHint int, args ...any) ([]*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	defer rows.Close()

	employees := make([]*employee.Employee, 0, capHint)
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, translateEmployeePgError(err)
		}
		employees = append(employees, emp)
	}
	if err := rows.Err(); err != nil {
		return nil, translateEmployeePgError(err)
	}
	return employees, nil
}

func scanEmployee(row pgx.Row) (*employee.Employee, error) {
	var (
		e          employee.Employee
		status     string
		hiredAt    sql.NullTime
		resignedAt sql.NullTime
		weight     string
	)

	if err := row.Scan(
		&e.ID,
		&e.EmployeeCode,
		&e.Name,
		&status,
		&hiredAt,
		&resignedAt,
		&e.Disability.Physical,
		&e.Disability.Intellectual,
		&e.Disability.Mental,
		&weight,
		&e.ShortTime,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, employee.ErrEmployeeNotFound
		}
		return nil, err
	}

	w, err := decimal.NewFromString(weight)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse count_weight %q: %w", weight, err)
	}

	e.Status = employee.Status(status)
	e.CountWeight = w
	e.HiredAt = dateFromNull(hiredAt)
	e.ResignedAt = dateFromNull(resignedAt)
	return &e, nil
}

func translateEmployeePgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return employee.ErrEmployeeNotFound
	}

	if code, constraint, ok := pgdb.ErrorCode(err); ok {
		switch code {
		case pgdb.CodeUniqueViolation:
			return employee.ErrEmployeeCodeAlreadyExists
		case pgdb.CodeCheckViolation:
			if strings.Contains(constraint, "count_weight") {
				return employee.ErrInvalidCountWeight
			}
			return employee.ErrInvalidDateRange
		}
	}

	return err
}

func nullableDate(value *time.Time) any {
	if value == nil {
		return nil
	}
	return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, time.UTC)
}

func dateFromNull(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time.UTC()
	date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &date
}
