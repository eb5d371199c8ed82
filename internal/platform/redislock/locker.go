package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const (
	keyPrefix           = "levy:lock:"
	defaultPollInterval = 50 * time.Millisecond
)

var (
	// ErrLockNotAcquired は待機時間内に期間ロックを取得できなかったことを示します。
	ErrLockNotAcquired = errors.New("redislock: lock not acquired")
	// ErrNotConfigured はクライアントが未設定であることを示します。
	ErrNotConfigured = errors.New("redislock: client not configured")
)

// Store は Locker が利用する Redis コマンドです。*redis.Client が満たします。
type Store interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// Options は Locker の動作設定です。
type Options struct {
	// TTL はロックの有効期限です。処理がこれより長引くとロックは失効します。
	TTL time.Duration
	// Wait はロックが取得済みの場合に再試行する最大時間です。0 の場合は再試行しません。
	Wait time.Duration
	// BusyError は待機しても取得できなかった場合に返すエラーです。nil の場合は ErrLockNotAcquired です。
	BusyError error
	// OnContention はロックが取得済みだった場合に呼ばれます。
	OnContention func()
	Logger       *zap.Logger
}

// Locker は Redis の SET NX を用いた期間ロックです。compliance.PeriodLocker を満たします。
type Locker struct {
	store  Store
	script *redis.Script
	opts   Options
}

// New は Locker を生成します。
func New(store Store, opts Options) *Locker {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.BusyError == nil {
		opts.BusyError = ErrLockNotAcquired
	}
	return &Locker{
		store:  store,
		script: redis.NewScript(releaseScript),
		opts:   opts,
	}
}

// WithPeriodLock はロックを保持したまま fn を実行し、終了後に自分のトークンの場合のみ解放します。
func (l *Locker) WithPeriodLock(ctx context.Context, key string, fn func(context.Context) error) error {
	token, err := l.acquire(ctx, key)
	if err != nil {
		return err
	}
	defer func() {
		// 呼び出し元のキャンセル後も解放できるよう独立したコンテキストを使います。
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := l.release(releaseCtx, key, token); err != nil {
			l.opts.Logger.Warn("release period lock failed", zap.String("key", key), zap.Error(err))
		}
	}()
	return fn(ctx)
}

func (l *Locker) acquire(ctx context.Context, key string) (string, error) {
	if l == nil || l.store == nil {
		return "", ErrNotConfigured
	}
	if key == "" {
		return "", errors.New("redislock: key is empty")
	}
	if l.opts.TTL <= 0 {
		return "", errors.New("redislock: ttl must be positive")
	}

	deadline := time.Now().Add(l.opts.Wait)
	token := uuid.NewString()
	contended := false
	for {
		ok, err := l.store.SetNX(ctx, keyPrefix+key, token, l.opts.TTL).Result()
		if err != nil {
			return "", fmt.Errorf("redislock: acquire %s: %w", key, err)
		}
		if ok {
			return token, nil
		}
		if !contended {
			contended = true
			if l.opts.OnContention != nil {
				l.opts.OnContention()
			}
		}
		if !time.Now().Before(deadline) {
			return "", fmt.Errorf("%w: lock %s held", l.opts.BusyError, key)
		}

		timer := time.NewTimer(defaultPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *Locker) release(ctx context.Context, key, token string) error {
	return l.script.Run(ctx, l.store, []string{keyPrefix + key}, token).Err()
}
