package settings

import "context"

// Repository は算定設定の永続化を行うインターフェースです。
type Repository interface {
	Get(ctx context.Context) (*Settings, error)
	Save(ctx context.Context, s *Settings) (*Settings, error)
}
