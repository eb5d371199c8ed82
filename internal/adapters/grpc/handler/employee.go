package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ogurasousui/levy-engine/internal/core/employee"
)

// EmployeeServiceName は社員台帳サービスの完全修飾名です。
const EmployeeServiceName = "levy.v1.EmployeeService"

// EmployeeServer は EmployeeService の RPC を表します。
type EmployeeServer interface {
	CreateEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	UpdateEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ResignEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListEmployees(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// EmployeeServiceDesc は EmployeeService のサービス定義です。
var EmployeeServiceDesc = grpc.ServiceDesc{
	ServiceName: EmployeeServiceName,
	HandlerType: (*EmployeeServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(EmployeeServiceName, "CreateEmployee", EmployeeServer.CreateEmployee),
		unaryMethod(EmployeeServiceName, "UpdateEmployee", EmployeeServer.UpdateEmployee),
		unaryMethod(EmployeeServiceName, "ResignEmployee", EmployeeServer.ResignEmployee),
		unaryMethod(EmployeeServiceName, "GetEmployee", EmployeeServer.GetEmployee),
		unaryMethod(EmployeeServiceName, "ListEmployees", EmployeeServer.ListEmployees),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "levy/v1/employee.proto",
}

// RegisterEmployeeServer は EmployeeService を登録します。
func RegisterEmployeeServer(s grpc.ServiceRegistrar, srv EmployeeServer) {
	s.RegisterService(&EmployeeServiceDesc, srv)
}

// EmployeeGrpcHandler は EmployeeService の gRPC 実装です。
type EmployeeGrpcHandler struct {
	svc employee.UseCase
}

// NewEmployeeGrpcHandler は EmployeeGrpcHandler を生成します。
func NewEmployeeGrpcHandler(svc employee.UseCase) *EmployeeGrpcHandler {
	return &EmployeeGrpcHandler{svc: svc}
}

type disabilityMessage struct {
	Physical     bool `json:"physical"`
	Intellectual bool `json:"intellectual"`
	Mental       bool `json:"mental"`
}

type employeeMessage struct {
	ID           string            `json:"id"`
	EmployeeCode string            `json:"employee_code"`
	Name         string            `json:"name"`
	Status       string            `json:"status"`
	HiredAt      *string           `json:"hired_at,omitempty"`
	ResignedAt   *string           `json:"resigned_at,omitempty"`
	Disability   disabilityMessage `json:"disability"`
	CountWeight  decimal.Decimal   `json:"count_weight"`
	ShortTime    bool              `json:"short_time"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

type createEmployeeRequest struct {
	EmployeeCode string            `json:"employee_code"`
	Name         string            `json:"name"`
	HiredAt      *string           `json:"hired_at"`
	Disability   disabilityMessage `json:"disability"`
	CountWeight  *decimal.Decimal  `json:"count_weight"`
	ShortTime    bool              `json:"short_time"`
}

type updateEmployeeRequest struct {
	ID           string             `json:"id"`
	EmployeeCode *string            `json:"employee_code"`
	Name         *string            `json:"name"`
	HiredAt      *string            `json:"hired_at"`
	Disability   *disabilityMessage `json:"disability"`
	CountWeight  *decimal.Decimal   `json:"count_weight"`
	ShortTime    *bool              `json:"short_time"`
}

type resignEmployeeRequest struct {
	ID         string `json:"id"`
	ResignedAt string `json:"resigned_at"`
}

type listEmployeesRequest struct {
	PageSize  int    `json:"page_size"`
	PageToken string `json:"page_token"`
	Status    string `json:"status"`
}

// CreateEmployee は社員を登録します。
func (h *EmployeeGrpcHandler) CreateEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in createEmployeeRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}

	hiredAt, err := parseDateValue(in.HiredAt)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, fmt.Sprintf("hired_at: %v", err))
	}

	created, err := h.svc.CreateEmployee(ctx, employee.CreateEmployeeInput{
		EmployeeCode: in.EmployeeCode,
		Name:         in.Name,
		HiredAt:      hiredAt,
		Disability:   toDomainDisability(in.Disability),
		CountWeight:  in.CountWeight,
		ShortTime:    in.ShortTime,
	})
	if err != nil {
		return nil, toStatusError(err)
	}
	return encodeResponse(map[string]any{"employee": toEmployeeMessage(created)})
}

// UpdateEmployee は社員情報を更新します。hired_at に空文字を渡すと入社日を消去します。
func (h *EmployeeGrpcHandler) UpdateEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in updateEmployeeRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}

	update := employee.UpdateEmployeeInput{
		ID:           in.ID,
		EmployeeCode: in.EmployeeCode,
		Name:         in.Name,
		CountWeight:  in.CountWeight,
		ShortTime:    in.ShortTime,
	}
	if in.HiredAt != nil {
		hiredAt, err := parseDateValue(in.HiredAt)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, fmt.Sprintf("hired_at: %v", err))
		}
		update.HiredAt = hiredAt
		update.HiredAtSet = true
	}
	if in.Disability != nil {
		d := toDomainDisability(*in.Disability)
		update.Disability = &d
	}

	updated, err := h.svc.UpdateEmployee(ctx, update)
	if err != nil {
		return nil, toStatusError(err)
	}
	return encodeResponse(map[string]any{"employee": toEmployeeMessage(updated)})
}

// ResignEmployee は退職日を登録します。社員レコードは削除しません。
func (h *EmployeeGrpcHandler) ResignEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in resignEmployeeRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}

	resignedAt, err := parseDateValue(&in.ResignedAt)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, fmt.Sprintf("resigned_at: %v", err))
	}
	if resignedAt == nil {
		return nil, status.Error(codes.InvalidArgument, "resigned_at is required")
	}

	resigned, err := h.svc.ResignEmployee(ctx, employee.ResignEmployeeInput{ID: in.ID, ResignedAt: *resignedAt})
	if err != nil {
		return nil, toStatusError(err)
	}
	return encodeResponse(map[string]any{"employee": toEmployeeMessage(resigned)})
}

// GetEmployee は社員を取得します。
func (h *EmployeeGrpcHandler) GetEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in struct {
		ID string `json:"id"`
	}
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}

	found, err := h.svc.GetEmployee(ctx, employee.GetEmployeeInput{ID: in.ID})
	if err != nil {
		return nil, toStatusError(err)
	}
	return encodeResponse(map[string]any{"employee": toEmployeeMessage(found)})
}

// ListEmployees は社員一覧を返します。
func (h *EmployeeGrpcHandler) ListEmployees(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in listEmployeesRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}

	list := employee.ListEmployeesInput{PageSize: in.PageSize, PageToken: in.PageToken}
	if s := strings.TrimSpace(in.Status); s != "" {
		st := employee.Status(strings.ToLower(s))
		list.Status = &st
	}

	result, err := h.svc.ListEmployees(ctx, list)
	if err != nil {
		return nil, toStatusError(err)
	}

	employees := make([]employeeMessage, 0, len(result.Employees))
	for _, e := range result.Employees {
		employees = append(employees, toEmployeeMessage(e))
	}
	return encodeResponse(map[string]any{
		"employees":       employees,
		"next_page_token": result.NextPageToken,
	})
}

func toDomainDisability(d disabilityMessage) employee.Disability {
	return employee.Disability{Physical: d.Physical, Intellectual: d.Intellectual, Mental: d.Mental}
}

func toEmployeeMessage(e *employee.Employee) employeeMessage {
	if e == nil {
		return employeeMessage{}
	}
	return employeeMessage{
		ID:           e.ID,
		EmployeeCode: e.EmployeeCode,
		Name:         e.Name,
		Status:       string(e.Status),
		HiredAt:      formatDate(e.HiredAt),
		ResignedAt:   formatDate(e.ResignedAt),
		Disability: disabilityMessage{
			Physical:     e.Disability.Physical,
			Intellectual: e.Disability.Intellectual,
			Mental:       e.Disability.Mental,
		},
		CountWeight: e.CountWeight,
		ShortTime:   e.ShortTime,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}
