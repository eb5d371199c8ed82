package handler

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ogurasousui/levy-engine/internal/core/settings"
)

// SettingsServiceName は算定設定サービスの完全修飾名です。
const SettingsServiceName = "levy.v1.SettingsService"

// SettingsServer は SettingsService の RPC を表します。
type SettingsServer interface {
	GetSettings(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	UpdateSettings(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// SettingsServiceDesc は SettingsService のサービス定義です。
var SettingsServiceDesc = grpc.ServiceDesc{
	ServiceName: SettingsServiceName,
	HandlerType: (*SettingsServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(SettingsServiceName, "GetSettings", SettingsServer.GetSettings),
		unaryMethod(SettingsServiceName, "UpdateSettings", SettingsServer.UpdateSettings),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "levy/v1/settings.proto",
}

// RegisterSettingsServer は SettingsService を登録します。
func RegisterSettingsServer(s grpc.ServiceRegistrar, srv SettingsServer) {
	s.RegisterService(&SettingsServiceDesc, srv)
}

// SettingsGrpcHandler は SettingsService の gRPC 実装です。
type SettingsGrpcHandler struct {
	svc settings.UseCase
}

// NewSettingsGrpcHandler は SettingsGrpcHandler を生成します。
func NewSettingsGrpcHandler(svc settings.UseCase) *SettingsGrpcHandler {
	return &SettingsGrpcHandler{svc: svc}
}

type settingsMessage struct {
	LegalRate          decimal.Decimal `json:"legal_rate"`
	Rounding           string          `json:"rounding"`
	LevyUnit           int64           `json:"levy_unit"`
	AdjustmentUnit     int64           `json:"adjustment_unit"`
	HomeWorkingUnit    int64           `json:"home_working_unit"`
	ShortTimeUnit      int64           `json:"short_time_unit"`
	HomeWorkingDivisor int64           `json:"home_working_divisor"`
	UpdatedAt          *time.Time      `json:"updated_at,omitempty"`
}

type updateSettingsRequest struct {
	LegalRate          *decimal.Decimal `json:"legal_rate"`
	Rounding           *string          `json:"rounding"`
	LevyUnit           *int64           `json:"levy_unit"`
	AdjustmentUnit     *int64           `json:"adjustment_unit"`
	HomeWorkingUnit    *int64           `json:"home_working_unit"`
	ShortTimeUnit      *int64           `json:"short_time_unit"`
	HomeWorkingDivisor *int64           `json:"home_working_divisor"`
}

// GetSettings は現在の算定設定を返します。
func (h *SettingsGrpcHandler) GetSettings(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	st, err := h.svc.GetSettings(ctx)
	if err != nil {
		return nil, toStatusError(err)
	}
	return encodeResponse(map[string]any{"settings": toSettingsMessage(st)})
}

// UpdateSettings は指定された項目だけを更新します。
func (h *SettingsGrpcHandler) UpdateSettings(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in updateSettingsRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}

	updated, err := h.svc.UpdateSettings(ctx, settings.UpdateSettingsInput{
		LegalRate:          in.LegalRate,
		Rounding:           in.Rounding,
		LevyUnit:           in.LevyUnit,
		AdjustmentUnit:     in.AdjustmentUnit,
		HomeWorkingUnit:    in.HomeWorkingUnit,
		ShortTimeUnit:      in.ShortTimeUnit,
		HomeWorkingDivisor: in.HomeWorkingDivisor,
	})
	if err != nil {
		return nil, toStatusError(err)
	}
	return encodeResponse(map[string]any{"settings": toSettingsMessage(updated)})
}

func toSettingsMessage(st *settings.Settings) settingsMessage {
	return settingsMessage{
		LegalRate:          st.LegalRate,
		Rounding:           st.Rounding,
		LevyUnit:           st.LevyUnit,
		AdjustmentUnit:     st.AdjustmentUnit,
		HomeWorkingUnit:    st.HomeWorkingUnit,
		ShortTimeUnit:      st.ShortTimeUnit,
		HomeWorkingDivisor: st.HomeWorkingDivisor,
		UpdatedAt:          nonZeroTime(st.UpdatedAt),
	}
}
