package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const dateLayout = "2006-01-02"

// structMethod は google.protobuf.Struct を受け取り返す RPC の実装です。
type structMethod[S any] func(srv S, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

// unaryMethod は生成コードの代わりに Struct メッセージ用の MethodDesc を組み立てます。
func unaryMethod[S any](serviceName, methodName string, call structMethod[S]) grpc.MethodDesc {
	fullMethod := "/" + serviceName + "/" + methodName
	return grpc.MethodDesc{
		MethodName: methodName,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(S), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// decodeRequest は Struct を JSON 経由で dst に読み込みます。
func decodeRequest(req *structpb.Struct, dst any) error {
	if req == nil {
		return status.Error(codes.InvalidArgument, "request is required")
	}
	b, err := protojson.Marshal(req)
	if err != nil {
		return status.Error(codes.InvalidArgument, fmt.Sprintf("decode request: %v", err))
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return status.Error(codes.InvalidArgument, fmt.Sprintf("decode request: %v", err))
	}
	return nil
}

// encodeResponse は v を JSON 経由で Struct に変換します。
func encodeResponse(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return out, nil
}

func parseDateValue(value *string) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, trimmed, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid format, expected YYYY-MM-DD")
	}
	return &t, nil
}

func formatDate(value *time.Time) *string {
	if value == nil {
		return nil
	}
	s := value.Format(dateLayout)
	return &s
}
