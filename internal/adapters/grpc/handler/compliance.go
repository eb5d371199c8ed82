package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ogurasousui/levy-engine/internal/core/compliance"
)

// ComplianceServiceName は雇用率算定サービスの完全修飾名です。
const ComplianceServiceName = "levy.v1.ComplianceService"

// ComplianceServer は ComplianceService の RPC を表します。
type ComplianceServer interface {
	ComputeMonthlyTotal(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	PreviewMonthlyTotal(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	RollupYear(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ComputeAnnualLevy(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetLevyFiling(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	AdvanceStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// ComplianceServiceDesc は ComplianceService のサービス定義です。
var ComplianceServiceDesc = grpc.ServiceDesc{
	ServiceName: ComplianceServiceName,
	HandlerType: (*ComplianceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(ComplianceServiceName, "ComputeMonthlyTotal", ComplianceServer.ComputeMonthlyTotal),
		unaryMethod(ComplianceServiceName, "PreviewMonthlyTotal", ComplianceServer.PreviewMonthlyTotal),
		unaryMethod(ComplianceServiceName, "RollupYear", ComplianceServer.RollupYear),
		unaryMethod(ComplianceServiceName, "ComputeAnnualLevy", ComplianceServer.ComputeAnnualLevy),
		unaryMethod(ComplianceServiceName, "GetLevyFiling", ComplianceServer.GetLevyFiling),
		unaryMethod(ComplianceServiceName, "AdvanceStatus", ComplianceServer.AdvanceStatus),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "levy/v1/compliance.proto",
}

// RegisterComplianceServer は ComplianceService を登録します。
func RegisterComplianceServer(s grpc.ServiceRegistrar, srv ComplianceServer) {
	s.RegisterService(&ComplianceServiceDesc, srv)
}

// ComplianceGrpcHandler は ComplianceService の gRPC 実装です。
type ComplianceGrpcHandler struct {
	svc compliance.UseCase
}

// NewComplianceGrpcHandler は ComplianceGrpcHandler を生成します。
func NewComplianceGrpcHandler(svc compliance.UseCase) *ComplianceGrpcHandler {
	return &ComplianceGrpcHandler{svc: svc}
}

type periodRequest struct {
	FiscalYear int `json:"fiscal_year"`
	Month      int `json:"month"`
}

type fiscalYearRequest struct {
	FiscalYear int `json:"fiscal_year"`
}

type annualLevyRequest struct {
	FiscalYear              int                      `json:"fiscal_year"`
	Months                  []compliance.MonthlyBase `json:"months"`
	HomeWorkingPaymentTotal int64                    `json:"home_working_payment_total"`
	Bank                    compliance.BankAccount   `json:"bank"`
}

type advanceStatusRequest struct {
	Target     string `json:"target"`
	FiscalYear int    `json:"fiscal_year"`
	Month      int    `json:"month"`
	From       string `json:"from"`
	To         string `json:"to"`
}

type monthlyTotalMessage struct {
	ID                 string                   `json:"id,omitempty"`
	FiscalYear         int                      `json:"fiscal_year"`
	Month              int                      `json:"month"`
	TotalEmployees     int64                    `json:"total_employees"`
	DisabledEmployees  decimal.Decimal          `json:"disabled_employees"`
	ShortTimeEmployees int64                    `json:"short_time_employees"`
	ActualRate         string                   `json:"actual_rate"`
	LegalRate          decimal.Decimal          `json:"legal_rate"`
	LegalCount         int64                    `json:"legal_count"`
	Shortage           decimal.Decimal          `json:"shortage"`
	Status             string                   `json:"status"`
	Lines              []compliance.MonthlyLine `json:"lines"`
	CreatedAt          *time.Time               `json:"created_at,omitempty"`
	UpdatedAt          *time.Time               `json:"updated_at,omitempty"`
}

type unitPricesMessage struct {
	Levy        int64 `json:"levy"`
	Adjustment  int64 `json:"adjustment"`
	HomeWorking int64 `json:"home_working"`
	ShortTime   int64 `json:"short_time"`
}

type levyResultMessage struct {
	Case              string          `json:"case"`
	RequiredAnnual    int64           `json:"required_annual"`
	Shortfall         decimal.Decimal `json:"shortfall"`
	Surplus           decimal.Decimal `json:"surplus"`
	HomeWorkingCount  int64           `json:"home_working_count"`
	LevyDue           int64           `json:"levy_due"`
	HomeWorkingOffset int64           `json:"home_working_offset"`
	NetPayment        int64           `json:"net_payment"`
	AdjustmentAmount  int64           `json:"adjustment_amount"`
	AdjustmentTotal   int64           `json:"adjustment_total"`
	SpecialPayment    int64           `json:"special_payment"`
}

type levyFilingMessage struct {
	ID                      string                   `json:"id,omitempty"`
	FiscalYear              int                      `json:"fiscal_year"`
	Months                  []compliance.MonthlyBase `json:"months"`
	LegalRate               decimal.Decimal          `json:"legal_rate"`
	Rounding                string                   `json:"rounding"`
	Units                   unitPricesMessage        `json:"units"`
	HomeWorkingPaymentTotal int64                    `json:"home_working_payment_total"`
	HomeWorkingDivisor      int64                    `json:"home_working_divisor"`
	Bank                    compliance.BankAccount   `json:"bank"`
	Result                  levyResultMessage        `json:"result"`
	Status                  string                   `json:"status"`
	CreatedAt               *time.Time               `json:"created_at,omitempty"`
	UpdatedAt               *time.Time               `json:"updated_at,omitempty"`
}

// ComputeMonthlyTotal は月次集計を計算して保存します。
func (h *ComplianceGrpcHandler) ComputeMonthlyTotal(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in periodRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}
	total, err := h.svc.ComputeMonthlyTotal(ctx, compliance.ComputeMonthlyTotalInput{FiscalYear: in.FiscalYear, Month: in.Month})
	if err != nil {
		return nil, toStatusError(err)
	}
	return encodeResponse(map[string]any{"monthly_total": toMonthlyTotalMessage(total)})
}

// PreviewMonthlyTotal は月次集計を保存せずに計算します。
func (h *ComplianceGrpcHandler) PreviewMonthlyTotal(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in periodRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}
	total, err := h.svc.PreviewMonthlyTotal(ctx, compliance.ComputeMonthlyTotalInput{FiscalYear: in.FiscalYear, Month: in.Month})
	if err != nil {
		return nil, toStatusError(err)
	}
	return encodeResponse(map[string]any{"monthly_total": toMonthlyTotalMessage(total)})
}

// RollupYear は年度の月次集計を 4 月から順に返します。
func (h *ComplianceGrpcHandler) RollupYear(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in fiscalYearRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}
	totals, err := h.svc.RollupYear(ctx, compliance.RollupYearInput{FiscalYear: in.FiscalYear})
	if err != nil {
		return nil, toStatusError(err)
	}
	out := make([]monthlyTotalMessage, 0, len(totals))
	for _, t := range totals {
		out = append(out, toMonthlyTotalMessage(t))
	}
	return encodeResponse(map[string]any{"fiscal_year": in.FiscalYear, "monthly_totals": out})
}

// ComputeAnnualLevy は年度の納付金・調整金を計算して保存します。
func (h *ComplianceGrpcHandler) ComputeAnnualLevy(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in annualLevyRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}
	filing, err := h.svc.ComputeAnnualLevy(ctx, compliance.ComputeAnnualLevyInput{
		FiscalYear:              in.FiscalYear,
		Months:                  in.Months,
		HomeWorkingPaymentTotal: in.HomeWorkingPaymentTotal,
		Bank:                    in.Bank,
	})
	if err != nil {
		return nil, toStatusError(err)
	}
	return encodeResponse(map[string]any{"filing": toLevyFilingMessage(filing)})
}

// GetLevyFiling は保存済みの年度申告を返します。
func (h *ComplianceGrpcHandler) GetLevyFiling(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in fiscalYearRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}
	filing, err := h.svc.GetLevyFiling(ctx, in.FiscalYear)
	if err != nil {
		return nil, toStatusError(err)
	}
	return encodeResponse(map[string]any{"filing": toLevyFilingMessage(filing)})
}

// AdvanceStatus は月次集計または年度申告の状態を進めます。
func (h *ComplianceGrpcHandler) AdvanceStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in advanceStatusRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}
	from, err := compliance.ParseStatus(in.From)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, fmt.Sprintf("from: %v", err))
	}
	to, err := compliance.ParseStatus(in.To)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, fmt.Sprintf("to: %v", err))
	}

	if err := h.svc.AdvanceStatus(ctx, compliance.AdvanceStatusInput{
		Target:     compliance.Target(in.Target),
		FiscalYear: in.FiscalYear,
		Month:      in.Month,
		From:       from,
		To:         to,
	}); err != nil {
		return nil, toStatusError(err)
	}
	return encodeResponse(map[string]any{"status": string(to)})
}

func toMonthlyTotalMessage(t *compliance.MonthlyTotal) monthlyTotalMessage {
	if t == nil {
		return monthlyTotalMessage{}
	}
	lines := t.Lines
	if lines == nil {
		lines = []compliance.MonthlyLine{}
	}
	return monthlyTotalMessage{
		ID:                 t.ID,
		FiscalYear:         t.FiscalYear,
		Month:              t.Month,
		TotalEmployees:     t.TotalEmployees,
		DisabledEmployees:  t.DisabledEmployees,
		ShortTimeEmployees: t.ShortTimeEmployees,
		ActualRate:         t.ActualRate.StringFixed(2),
		LegalRate:          t.LegalRate,
		LegalCount:         t.LegalCount,
		Shortage:           t.Shortage,
		Status:             string(t.Status),
		Lines:              lines,
		CreatedAt:          nonZeroTime(t.CreatedAt),
		UpdatedAt:          nonZeroTime(t.UpdatedAt),
	}
}

func toLevyFilingMessage(f *compliance.LevyFiling) levyFilingMessage {
	if f == nil {
		return levyFilingMessage{}
	}
	months := f.Months
	if months == nil {
		months = []compliance.MonthlyBase{}
	}
	r := f.Result
	return levyFilingMessage{
		ID:         f.ID,
		FiscalYear: f.FiscalYear,
		Months:     months,
		LegalRate:  f.LegalRate,
		Rounding:   string(f.Rounding),
		Units: unitPricesMessage{
			Levy:        f.Units.Levy,
			Adjustment:  f.Units.Adjustment,
			HomeWorking: f.Units.HomeWorking,
			ShortTime:   f.Units.ShortTime,
		},
		HomeWorkingPaymentTotal: f.HomeWorkingPaymentTotal,
		HomeWorkingDivisor:      f.HomeWorkingDivisor,
		Bank:                    f.Bank,
		Result: levyResultMessage{
			Case:              string(r.Case),
			RequiredAnnual:    r.RequiredAnnual,
			Shortfall:         r.Shortfall,
			Surplus:           r.Surplus,
			HomeWorkingCount:  r.HomeWorkingCount,
			LevyDue:           r.LevyDue,
			HomeWorkingOffset: r.HomeWorkingOffset,
			NetPayment:        r.NetPayment,
			AdjustmentAmount:  r.AdjustmentAmount,
			AdjustmentTotal:   r.AdjustmentTotal,
			SpecialPayment:    r.SpecialPayment,
		},
		Status:    string(f.Status),
		CreatedAt: nonZeroTime(f.CreatedAt),
		UpdatedAt: nonZeroTime(f.UpdatedAt),
	}
}

func nonZeroTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
