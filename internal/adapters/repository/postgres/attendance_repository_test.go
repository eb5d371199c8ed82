package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/ogurasousui/levy-engine/internal/core/attendance"
	pgdb "github.com/ogurasousui/levy-engine/internal/platform/db/postgres"
)

var attendanceRowColumns = []string{"id", "employee_id", "fiscal_year", "month", "scheduled_hours", "actual_hours", "exception_note", "created_at", "updated_at"}

func TestAttendanceRepository_Save(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewAttendanceRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`ON CONFLICT (employee_id, fiscal_year, month) DO UPDATE`)).
		WithArgs("emp-1", 2024, 4, 160, 120, "sick leave", now, now).
		WillReturnRows(pgxmock.NewRows(attendanceRowColumns).
			AddRow("att-1", "emp-1", 2024, 4, 160, 120, "sick leave", now, now))

	saved, err := repo.Save(context.Background(), &attendance.Record{
		EmployeeID: "emp-1", FiscalYear: 2024, Month: 4, ScheduledHours: 160, ActualHours: 120,
		ExceptionNote: "sick leave", CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if saved.ID != "att-1" || saved.ActualHours != 120 {
		t.Fatalf("unexpected record: %+v", saved)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAttendanceRepository_Save_UnknownEmployee(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewAttendanceRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO attendance_records`)).
		WithArgs("missing", 2024, 4, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgdb.CodeForeignKeyViolation})

	_, err = repo.Save(context.Background(), &attendance.Record{EmployeeID: "missing", FiscalYear: 2024, Month: 4})
	if !errors.Is(err, attendance.ErrEmployeeNotFound) {
		t.Fatalf("expected ErrEmployeeNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAttendanceRepository_CreateMissing(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewAttendanceRepository(mock)
	now := time.Now().UTC()
	query := regexp.QuoteMeta(`ON CONFLICT (employee_id, fiscal_year, month) DO NOTHING`)

	mock.ExpectExec(query).
		WithArgs("emp-1", 2024, 4, 160, 160, "", now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(query).
		WithArgs("emp-1", 2024, 5, 160, 160, "", now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	created, err := repo.CreateMissing(context.Background(), []*attendance.Record{
		{EmployeeID: "emp-1", FiscalYear: 2024, Month: 4, ScheduledHours: 160, ActualHours: 160, CreatedAt: now, UpdatedAt: now},
		{EmployeeID: "emp-1", FiscalYear: 2024, Month: 5, ScheduledHours: 160, ActualHours: 160, CreatedAt: now, UpdatedAt: now},
	})
	if err != nil {
		t.Fatalf("CreateMissing returned error: %v", err)
	}
	if created != 1 {
		t.Fatalf("expected 1 created, got %d", created)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAttendanceRepository_ListByFiscalYear(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewAttendanceRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE fiscal_year = $1`)).
		WithArgs(2024).
		WillReturnRows(pgxmock.NewRows(attendanceRowColumns).
			AddRow("att-1", "emp-1", 2024, 4, 160, 160, "", now, now).
			AddRow("att-2", "emp-2", 2024, 4, 100, 80, "late", now, now))

	records, err := repo.ListByFiscalYear(context.Background(), 2024)
	if err != nil {
		t.Fatalf("ListByFiscalYear returned error: %v", err)
	}
	if len(records) != 2 || records[1].ExceptionNote != "late" {
		t.Fatalf("unexpected records: %+v", records)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
