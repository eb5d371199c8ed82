package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ogurasousui/levy-engine/internal/core/attendance"
)

// AttendanceServiceName は勤怠サービスの完全修飾名です。
const AttendanceServiceName = "levy.v1.AttendanceService"

// AttendanceServer は AttendanceService の RPC を表します。
type AttendanceServer interface {
	RecordAttendance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	OnboardFiscalYear(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListEmployeeYear(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// AttendanceServiceDesc は AttendanceService のサービス定義です。
var AttendanceServiceDesc = grpc.ServiceDesc{
	ServiceName: AttendanceServiceName,
	HandlerType: (*AttendanceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(AttendanceServiceName, "RecordAttendance", AttendanceServer.RecordAttendance),
		unaryMethod(AttendanceServiceName, "OnboardFiscalYear", AttendanceServer.OnboardFiscalYear),
		unaryMethod(AttendanceServiceName, "ListEmployeeYear", AttendanceServer.ListEmployeeYear),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "levy/v1/attendance.proto",
}

// RegisterAttendanceServer は AttendanceService を登録します。
func RegisterAttendanceServer(s grpc.ServiceRegistrar, srv AttendanceServer) {
	s.RegisterService(&AttendanceServiceDesc, srv)
}

// AttendanceGrpcHandler は AttendanceService の gRPC 実装です。
type AttendanceGrpcHandler struct {
	svc attendance.UseCase
}

// NewAttendanceGrpcHandler は AttendanceGrpcHandler を生成します。
func NewAttendanceGrpcHandler(svc attendance.UseCase) *AttendanceGrpcHandler {
	return &AttendanceGrpcHandler{svc: svc}
}

type attendanceMessage struct {
	EmployeeID     string `json:"employee_id"`
	FiscalYear     int    `json:"fiscal_year"`
	Month          int    `json:"month"`
	ScheduledHours int    `json:"scheduled_hours"`
	ActualHours    int    `json:"actual_hours"`
	ExceptionNote  string `json:"exception_note"`
}

type employeeYearRequest struct {
	EmployeeID string `json:"employee_id"`
	FiscalYear int    `json:"fiscal_year"`
}

// RecordAttendance は月次の勤怠を登録または更新します。
func (h *AttendanceGrpcHandler) RecordAttendance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in attendanceMessage
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}

	saved, err := h.svc.RecordAttendance(ctx, attendance.RecordAttendanceInput{
		EmployeeID:     in.EmployeeID,
		FiscalYear:     in.FiscalYear,
		Month:          in.Month,
		ScheduledHours: in.ScheduledHours,
		ActualHours:    in.ActualHours,
		ExceptionNote:  in.ExceptionNote,
	})
	if err != nil {
		return nil, toStatusError(err)
	}
	return encodeResponse(map[string]any{"attendance": toAttendanceMessage(*saved)})
}

// OnboardFiscalYear は年度 12 か月分の既定勤怠を作成します。
func (h *AttendanceGrpcHandler) OnboardFiscalYear(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in employeeYearRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}

	created, err := h.svc.OnboardFiscalYear(ctx, attendance.OnboardFiscalYearInput{EmployeeID: in.EmployeeID, FiscalYear: in.FiscalYear})
	if err != nil {
		return nil, toStatusError(err)
	}
	return encodeResponse(map[string]any{"created": created})
}

// ListEmployeeYear は社員の年度勤怠を 4 月から順に返します。
func (h *AttendanceGrpcHandler) ListEmployeeYear(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in employeeYearRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}

	records, err := h.svc.ListEmployeeYear(ctx, attendance.ListEmployeeYearInput{EmployeeID: in.EmployeeID, FiscalYear: in.FiscalYear})
	if err != nil {
		return nil, toStatusError(err)
	}
	out := make([]attendanceMessage, 0, len(records))
	for _, r := range records {
		out = append(out, toAttendanceMessage(r))
	}
	return encodeResponse(map[string]any{"attendance": out})
}

func toAttendanceMessage(r attendance.Record) attendanceMessage {
	return attendanceMessage{
		EmployeeID:     r.EmployeeID,
		FiscalYear:     r.FiscalYear,
		Month:          r.Month,
		ScheduledHours: r.ScheduledHours,
		ActualHours:    r.ActualHours,
		ExceptionNote:  r.ExceptionNote,
	}
}
