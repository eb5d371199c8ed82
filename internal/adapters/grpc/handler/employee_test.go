package handler

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ogurasousui/levy-engine/internal/core/employee"
)

type stubEmployeeUseCase struct {
	createInput employee.CreateEmployeeInput
	createOut   *employee.Employee
	createErr   error

	updateInput employee.UpdateEmployeeInput
	updateOut   *employee.Employee
	updateErr   error

	resignInput employee.ResignEmployeeInput
	resignOut   *employee.Employee
	resignErr   error

	getInput employee.GetEmployeeInput
	getOut   *employee.Employee
	getErr   error

	listInput employee.ListEmployeesInput
	listOut   *employee.ListEmployeesResult
	listErr   error
}

func (s *stubEmployeeUseCase) CreateEmployee(ctx context.Context, in employee.CreateEmployeeInput) (*employee.Employee, error) {
	s.createInput = in
	return s.createOut, s.createErr
}

func (s *stubEmployeeUseCase) GetEmployee(ctx context.Context, in employee.GetEmployeeInput) (*employee.Employee, error) {
	s.getInput = in
	return s.getOut, s.getErr
}

func (s *stubEmployeeUseCase) ListEmployees(ctx context.Context, in employee.ListEmployeesInput) (*employee.ListEmployeesResult, error) {
	s.listInput = in
	return s.listOut, s.listErr
}

func (s *stubEmployeeUseCase) UpdateEmployee(ctx context.Context, in employee.UpdateEmployeeInput) (*employee.Employee, error) {
	s.updateInput = in
	return s.updateOut, s.updateErr
}

func (s *stubEmployeeUseCase) ResignEmployee(ctx context.Context, in employee.ResignEmployeeInput) (*employee.Employee, error) {
	s.resignInput = in
	return s.resignOut, s.resignErr
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	return s
}

func sampleEmployee(now time.Time) *employee.Employee {
	hired := time.Date(2020, 4, 1, 0, 0, 0, 0, time.UTC)
	return &employee.Employee{
		ID:           "emp-1",
		EmployeeCode: "E001",
		Name:         "Taro Yamada",
		Status:       employee.StatusActive,
		HiredAt:      &hired,
		Disability:   employee.Disability{Physical: true},
		CountWeight:  employee.WeightDouble,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestEmployeeGrpcHandler_CreateEmployee_Success(t *testing.T) {
	t.Parallel()

	stub := &stubEmployeeUseCase{createOut: sampleEmployee(time.Now().UTC())}
	handler := NewEmployeeGrpcHandler(stub)

	resp, err := handler.CreateEmployee(context.Background(), mustStruct(t, map[string]any{
		"employee_code": "E001",
		"name":          "Taro Yamada",
		"hired_at":      "2020-04-01",
		"disability":    map[string]any{"physical": true},
		"count_weight":  "2",
	}))
	if err != nil {
		t.Fatalf("CreateEmployee returned error: %v", err)
	}

	if stub.createInput.EmployeeCode != "E001" || !stub.createInput.Disability.Physical {
		t.Errorf("unexpected input: %+v", stub.createInput)
	}
	if stub.createInput.CountWeight == nil || !stub.createInput.CountWeight.Equal(decimal.NewFromInt(2)) {
		t.Errorf("expected count weight 2, got %v", stub.createInput.CountWeight)
	}
	if stub.createInput.HiredAt == nil || stub.createInput.HiredAt.Format(dateLayout) != "2020-04-01" {
		t.Errorf("expected hired date parsed, got %+v", stub.createInput.HiredAt)
	}

	got := resp.GetFields()["employee"].GetStructValue().GetFields()
	if got["id"].GetStringValue() != "emp-1" {
		t.Fatalf("expected response id 'emp-1', got %v", got["id"])
	}
	if got["count_weight"].GetStringValue() != "2" {
		t.Fatalf("expected count weight as string, got %v", got["count_weight"])
	}
	if got["hired_at"].GetStringValue() != "2020-04-01" {
		t.Fatalf("expected hired_at date, got %v", got["hired_at"])
	}
}

func TestEmployeeGrpcHandler_CreateEmployee_InvalidDateFormat(t *testing.T) {
	t.Parallel()

	handler := NewEmployeeGrpcHandler(&stubEmployeeUseCase{})

	_, err := handler.CreateEmployee(context.Background(), mustStruct(t, map[string]any{
		"employee_code": "E001",
		"name":          "Taro Yamada",
		"hired_at":      "2020/04/01",
	}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument for date parse, got %v", status.Code(err))
	}
}

func TestEmployeeGrpcHandler_UpdateEmployee_SetsPointers(t *testing.T) {
	t.Parallel()

	stub := &stubEmployeeUseCase{updateOut: sampleEmployee(time.Now().UTC())}
	handler := NewEmployeeGrpcHandler(stub)

	_, err := handler.UpdateEmployee(context.Background(), mustStruct(t, map[string]any{
		"id":            "emp-1",
		"employee_code": "E002",
		"hired_at":      "",
		"disability":    map[string]any{"mental": true},
		"short_time":    true,
	}))
	if err != nil {
		t.Fatalf("UpdateEmployee returned error: %v", err)
	}

	in := stub.updateInput
	if in.EmployeeCode == nil || *in.EmployeeCode != "E002" {
		t.Fatalf("expected employee code pointer to be set")
	}
	if in.Name != nil {
		t.Fatalf("expected name to stay unset")
	}
	if !in.HiredAtSet || in.HiredAt != nil {
		t.Fatalf("expected hired_at to be explicitly cleared")
	}
	if in.Disability == nil || !in.Disability.Mental || in.Disability.Physical {
		t.Fatalf("expected disability to be replaced, got %+v", in.Disability)
	}
	if in.ShortTime == nil || !*in.ShortTime {
		t.Fatalf("expected short time pointer to be set")
	}
	if in.CountWeight != nil {
		t.Fatalf("expected count weight to stay unset")
	}
}

func TestEmployeeGrpcHandler_ResignEmployee(t *testing.T) {
	t.Parallel()

	resigned := sampleEmployee(time.Now().UTC())
	resigned.Status = employee.StatusResigned
	stub := &stubEmployeeUseCase{resignOut: resigned}
	handler := NewEmployeeGrpcHandler(stub)

	resp, err := handler.ResignEmployee(context.Background(), mustStruct(t, map[string]any{
		"id":          "emp-1",
		"resigned_at": "2024-09-30",
	}))
	if err != nil {
		t.Fatalf("ResignEmployee returned error: %v", err)
	}
	if stub.resignInput.ResignedAt.Format(dateLayout) != "2024-09-30" {
		t.Fatalf("expected resigned date parsed, got %v", stub.resignInput.ResignedAt)
	}
	if resp.GetFields()["employee"].GetStructValue().GetFields()["status"].GetStringValue() != "resigned" {
		t.Fatalf("expected resigned status in response")
	}
}

func TestEmployeeGrpcHandler_ResignEmployee_RequiresDate(t *testing.T) {
	t.Parallel()

	handler := NewEmployeeGrpcHandler(&stubEmployeeUseCase{})

	_, err := handler.ResignEmployee(context.Background(), mustStruct(t, map[string]any{"id": "emp-1"}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument, got %v", status.Code(err))
	}
}

func TestEmployeeGrpcHandler_ResignEmployee_AlreadyResigned(t *testing.T) {
	t.Parallel()

	handler := NewEmployeeGrpcHandler(&stubEmployeeUseCase{resignErr: employee.ErrAlreadyResigned})

	_, err := handler.ResignEmployee(context.Background(), mustStruct(t, map[string]any{
		"id":          "emp-1",
		"resigned_at": "2024-09-30",
	}))
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition, got %v", status.Code(err))
	}
}

func TestEmployeeGrpcHandler_GetEmployee_NotFound(t *testing.T) {
	t.Parallel()

	stub := &stubEmployeeUseCase{getErr: employee.ErrEmployeeNotFound}
	handler := NewEmployeeGrpcHandler(stub)

	_, err := handler.GetEmployee(context.Background(), mustStruct(t, map[string]any{"id": "missing"}))
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", status.Code(err))
	}
	if stub.getInput.ID != "missing" {
		t.Fatalf("expected id to be passed, got %q", stub.getInput.ID)
	}
}

func TestEmployeeGrpcHandler_ValidatesNilRequest(t *testing.T) {
	t.Parallel()

	handler := NewEmployeeGrpcHandler(&stubEmployeeUseCase{})

	if _, err := handler.GetEmployee(context.Background(), nil); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument for nil request, got %v", status.Code(err))
	}
}

func TestEmployeeGrpcHandler_ListEmployees_Success(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	stub := &stubEmployeeUseCase{listOut: &employee.ListEmployeesResult{
		Employees:     []*employee.Employee{sampleEmployee(now)},
		NextPageToken: "10",
	}}
	handler := NewEmployeeGrpcHandler(stub)

	resp, err := handler.ListEmployees(context.Background(), mustStruct(t, map[string]any{
		"page_size": 10,
		"status":    " Active ",
	}))
	if err != nil {
		t.Fatalf("ListEmployees returned error: %v", err)
	}
	if stub.listInput.PageSize != 10 {
		t.Fatalf("expected page size 10, got %d", stub.listInput.PageSize)
	}
	if stub.listInput.Status == nil || *stub.listInput.Status != employee.StatusActive {
		t.Fatalf("expected status filter active")
	}
	if len(resp.GetFields()["employees"].GetListValue().GetValues()) != 1 {
		t.Fatalf("expected one employee in response")
	}
	if resp.GetFields()["next_page_token"].GetStringValue() != "10" {
		t.Fatalf("expected next page token")
	}
}

func TestEmployeeGrpcHandler_ListEmployees_ErrorMapping(t *testing.T) {
	t.Parallel()

	stub := &stubEmployeeUseCase{listErr: employee.ErrInvalidPageToken}
	handler := NewEmployeeGrpcHandler(stub)

	_, err := handler.ListEmployees(context.Background(), mustStruct(t, map[string]any{"page_token": "abc"}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument, got %v", status.Code(err))
	}
	if stub.listInput.PageToken != "abc" {
		t.Fatalf("expected page token to be passed even on error")
	}
}
