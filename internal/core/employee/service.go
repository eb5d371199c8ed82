package employee

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
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

const (
	defaultListPageSize = 50
	maxListPageSize     = 200
)

var employeeCodePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Service は社員台帳に関するユースケースをまとめます。
type Service struct {
	repo  Repository
	clock Clock
	tx    TransactionManager
}

// UseCase は社員ユースケースの公開インターフェースです。
type UseCase interface {
	CreateEmployee(ctx context.Context, in CreateEmployeeInput) (*Employee, error)
	GetEmployee(ctx context.Context, in GetEmployeeInput) (*Employee, error)
	ListEmployees(ctx context.Context, in ListEmployeesInput) (*ListEmployeesResult, error)
	UpdateEmployee(ctx context.Context, in UpdateEmployeeInput) (*Employee, error)
	ResignEmployee(ctx context.Context, in ResignEmployeeInput) (*Employee, error)
}

// NewService は Service を生成します。
func NewService(repo Repository, clock Clock, tx TransactionManager) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Service{repo: repo, clock: clock, tx: tx}
}

// CreateEmployeeInput は社員登録時の入力です。
type CreateEmployeeInput struct {
	EmployeeCode string
	Name         string
	HiredAt      *time.Time
	Disability   Disability
	// CountWeight が nil の場合、障害区分があれば 1.0、なければ 0 とします。
	CountWeight *decimal.Decimal
	ShortTime   bool
}

// UpdateEmployeeInput は社員更新時の入力です。
type UpdateEmployeeInput struct {
	ID           string
	EmployeeCode *string
	Name         *string
	Disability   *Disability
	CountWeight  *decimal.Decimal
	ShortTime    *bool
	HiredAt      *time.Time
	HiredAtSet   bool
}

// ResignEmployeeInput は退職登録時の入力です。
type ResignEmployeeInput struct {
	ID         string
	ResignedAt time.Time
}

// GetEmployeeInput は社員取得時の入力です。
type GetEmployeeInput struct {
	ID string
}

// ListEmployeesInput は一覧取得時の入力です。
type ListEmployeesInput struct {
	PageSize  int
	PageToken string
	Status    *Status
}

// ListEmployeesResult は一覧取得結果を表します。
type ListEmployeesResult struct {
	Employees     []*Employee
	NextPageToken string
}

// CreateEmployee は新しい社員を登録します。
func (s *Service) CreateEmployee(ctx context.Context, in CreateEmployeeInput) (*Employee, error) {
	code, err := normalizeEmployeeCode(in.EmployeeCode)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrInvalidName
	}

	weight := defaultWeight(in.Disability)
	if in.CountWeight != nil {
		weight = *in.CountWeight
	}
	if !IsValidWeight(weight) {
		return nil, ErrInvalidCountWeight
	}

	var created *Employee
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if err := s.ensureEmployeeCodeNotExists(txCtx, code); err != nil {
			return err
		}

		now := s.clock.Now()
		emp := &Employee{
			EmployeeCode: code,
			Name:         name,
			Status:       StatusActive,
			HiredAt:      cloneTime(normalizeDate(in.HiredAt)),
			Disability:   in.Disability,
			CountWeight:  weight,
			ShortTime:    in.ShortTime,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		result, err := s.repo.Create(txCtx, emp)
		if err != nil {
			return err
		}

		created = result
		return nil
	}); err != nil {
		return nil, err
	}

	return created, nil
}

// UpdateEmployee は社員情報を更新します。
func (s *Service) UpdateEmployee(ctx context.Context, in UpdateEmployeeInput) (*Employee, error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}

	var updated *Employee
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindByID(txCtx, in.ID)
		if err != nil {
			return err
		}

		if in.EmployeeCode != nil {
			code, err := normalizeEmployeeCode(*in.EmployeeCode)
			if err != nil {
				return err
			}
			if code != existing.EmployeeCode {
				if err := s.ensureEmployeeCodeNotExists(txCtx, code); err != nil {
					return err
				}
				existing.EmployeeCode = code
			}
		}

		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return ErrInvalidName
			}
			existing.Name = name
		}

		if in.Disability != nil {
			existing.Disability = *in.Disability
		}

		if in.CountWeight != nil {
			if !IsValidWeight(*in.CountWeight) {
				return ErrInvalidCountWeight
			}
			existing.CountWeight = *in.CountWeight
		}

		if in.ShortTime != nil {
			existing.ShortTime = *in.ShortTime
		}

		if in.HiredAtSet {
			existing.HiredAt = cloneTime(normalizeDate(in.HiredAt))
		}

		if err := validateEmploymentPeriod(existing.HiredAt, existing.ResignedAt); err != nil {
			return err
		}

		existing.UpdatedAt = s.clock.Now()

		result, err := s.repo.Update(txCtx, existing)
		if err != nil {
			return err
		}

		updated = result
		return nil
	}); err != nil {
		return nil, err
	}

	return updated, nil
}

// ResignEmployee は社員を退職扱いにします。過去の月次集計から参照されるため物理削除はしません。
func (s *Service) ResignEmployee(ctx context.Context, in ResignEmployeeInput) (*Employee, error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}
	if in.ResignedAt.IsZero() {
		return nil, ErrInvalidDateRange
	}

	var updated *Employee
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindByID(txCtx, in.ID)
		if err != nil {
			return err
		}
		if existing.Status == StatusResigned {
			return ErrAlreadyResigned
		}

		resignedAt := normalizeDate(&in.ResignedAt)
		if err := validateEmploymentPeriod(existing.HiredAt, resignedAt); err != nil {
			return err
		}

		existing.Status = StatusResigned
		existing.ResignedAt = resignedAt
		existing.UpdatedAt = s.clock.Now()

		result, err := s.repo.Update(txCtx, existing)
		if err != nil {
			return err
		}
		updated = result
		return nil
	}); err != nil {
		return nil, err
	}

	return updated, nil
}

// GetEmployee は社員を取得します。
func (s *Service) GetEmployee(ctx context.Context, in GetEmployeeInput) (*Employee, error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}

	var result *Employee
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindByID(txCtx, in.ID)
		if err != nil {
			return err
		}
		result = found
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// ListEmployees は社員の一覧を取得します。
func (s *Service) ListEmployees(ctx context.Context, in ListEmployeesInput) (*ListEmployeesResult, error) {
	limit, err := normalizePageSize(in.PageSize)
	if err != nil {
		return nil, err
	}

	offset, err := parsePageToken(in.PageToken)
	if err != nil {
		return nil, err
	}

	var statusPtr *Status
	if in.Status != nil {
		if !isValidStatus(*in.Status) {
			return nil, ErrInvalidStatus
		}
		status := *in.Status
		statusPtr = &status
	}

	var (
		employees []*Employee
		nextToken string
	)

	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		resultEmployees, token, err := s.repo.List(txCtx, ListEmployeesFilter{
			Status: statusPtr,
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			return err
		}
		employees = resultEmployees
		nextToken = token
		return nil
	}); err != nil {
		return nil, err
	}

	return &ListEmployeesResult{Employees: employees, NextPageToken: nextToken}, nil
}

func (s *Service) ensureEmployeeCodeNotExists(ctx context.Context, code string) error {
	emp, err := s.repo.FindByCode(ctx, code)
	if err != nil && !errors.Is(err, ErrEmployeeNotFound) {
		return err
	}
	if emp != nil {
		return ErrEmployeeCodeAlreadyExists
	}
	return nil
}

func defaultWeight(d Disability) decimal.Decimal {
	if d.Any() {
		return WeightSingle
	}
	return WeightNone
}

func normalizeEmployeeCode(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidEmployeeCode
	}

	lower := strings.ToLower(trimmed)
	if !employeeCodePattern.MatchString(lower) {
		return "", ErrInvalidEmployeeCode
	}
	return lower, nil
}

func normalizeDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	normalized := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &normalized
}

func validateEmploymentPeriod(hiredAt, resignedAt *time.Time) error {
	if hiredAt == nil || resignedAt == nil {
		return nil
	}
	if resignedAt.Before(*hiredAt) {
		return ErrInvalidDateRange
	}
	return nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	clone := *t
	return &clone
}

func isValidStatus(status Status) bool {
	switch status {
	case StatusActive, StatusResigned:
		return true
	default:
		return false
	}
}

func normalizePageSize(pageSize int) (int, error) {
	if pageSize <= 0 {
		return defaultListPageSize, nil
	}
	if pageSize > maxListPageSize {
		return 0, ErrInvalidPageSize
	}
	return pageSize, nil
}

func parsePageToken(token string) (int, error) {
	if strings.TrimSpace(token) == "" {
		return 0, nil
	}

	offset, err := strconv.Atoi(token)
	if err != nil || offset < 0 {
		return 0, ErrInvalidPageToken
	}

	return offset, nil
}
