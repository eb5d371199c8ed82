package settings

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

var maxLegalRate = decimal.NewFromInt(100)

// legalRatePlaces は保存できる法定雇用率の小数桁数です。
const legalRatePlaces = 2

// Service は算定設定に関するユースケースをまとめます。
type Service struct {
	repo     Repository
	clock    Clock
	defaults Settings
	log      *zap.Logger
}

// UseCase は算定設定ユースケースの公開インターフェースです。
type UseCase interface {
	GetSettings(ctx context.Context) (*Settings, error)
	UpdateSettings(ctx context.Context, in UpdateSettingsInput) (*Settings, error)
}

// NewService は Service を生成します。defaults は設定行が無い場合の値として使われます。
func NewService(repo Repository, clock Clock, defaults Settings, log *zap.Logger) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, clock: clock, defaults: defaults, log: log}
}

// UpdateSettingsInput は設定更新時の入力です。nil の項目は変更しません。
type UpdateSettingsInput struct {
	LegalRate          *decimal.Decimal
	Rounding           *string
	LevyUnit           *int64
	AdjustmentUnit     *int64
	HomeWorkingUnit    *int64
	ShortTimeUnit      *int64
	HomeWorkingDivisor *int64
}

// GetSettings は現在の算定設定を返します。
// 設定行が無い場合や法定雇用率が未設定の場合は既定値で補い、警告ログを出します。
func (s *Service) GetSettings(ctx context.Context) (*Settings, error) {
	stored, err := s.repo.Get(ctx)
	if err != nil {
		if !errors.Is(err, ErrSettingsNotFound) {
			return nil, err
		}
		s.log.Warn("settings row not found, using configured defaults")
		out := s.defaults
		return s.withFallbacks(&out), nil
	}
	return s.withFallbacks(stored), nil
}

// UpdateSettings は算定設定を検証して保存します。
func (s *Service) UpdateSettings(ctx context.Context, in UpdateSettingsInput) (*Settings, error) {
	current, err := s.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	next := *current

	if in.LegalRate != nil {
		next.LegalRate = *in.LegalRate
	}
	if in.Rounding != nil {
		next.Rounding = strings.ToLower(strings.TrimSpace(*in.Rounding))
	}
	for _, u := range []struct {
		in  *int64
		out *int64
	}{
		{in.LevyUnit, &next.LevyUnit},
		{in.AdjustmentUnit, &next.AdjustmentUnit},
		{in.HomeWorkingUnit, &next.HomeWorkingUnit},
		{in.ShortTimeUnit, &next.ShortTimeUnit},
		{in.HomeWorkingDivisor, &next.HomeWorkingDivisor},
	} {
		if u.in != nil {
			*u.out = *u.in
		}
	}

	if err := Validate(next); err != nil {
		return nil, err
	}

	next.UpdatedAt = s.clock.Now()
	return s.repo.Save(ctx, &next)
}

// Validate は算定設定の値域を検証します。
func Validate(st Settings) error {
	if !st.LegalRate.IsPositive() || st.LegalRate.GreaterThan(maxLegalRate) {
		return ErrInvalidLegalRate
	}
	if !st.LegalRate.Equal(st.LegalRate.Truncate(legalRatePlaces)) {
		return ErrInvalidLegalRate
	}
	switch st.Rounding {
	case RoundingCeil, RoundingFloor:
	default:
		return ErrInvalidRounding
	}
	if st.LevyUnit < 0 || st.AdjustmentUnit < 0 || st.HomeWorkingUnit < 0 || st.ShortTimeUnit < 0 {
		return ErrInvalidUnitPrice
	}
	if st.HomeWorkingDivisor <= 0 {
		return ErrInvalidDivisor
	}
	return nil
}

func (s *Service) withFallbacks(st *Settings) *Settings {
	out := *st
	if !out.LegalRate.IsPositive() {
		s.log.Warn("legal rate missing, falling back", zap.String("legal_rate", FallbackLegalRate.String()))
		out.LegalRate = FallbackLegalRate
	}
	if out.Rounding == "" {
		out.Rounding = RoundingCeil
	}
	if out.HomeWorkingDivisor <= 0 {
		out.HomeWorkingDivisor = s.defaults.HomeWorkingDivisor
	}
	return &out
}
