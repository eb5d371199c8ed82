package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// 法定雇用率などの既定値です。設定ファイルで省略された項目にのみ適用されます。
const (
	DefaultLegalRate          = "2.3"
	DefaultRounding           = "ceil"
	DefaultLevyUnit           = 50000
	DefaultAdjustmentUnit     = 29000
	DefaultHomeWorkingUnit    = 21000
	DefaultShortTimeUnit      = 7000
	DefaultHomeWorkingDivisor = 350000
	DefaultScheduledHours     = 160
	DefaultActualHours        = 160
	DefaultLogLevel           = "info"
	DefaultRedisLockTTL       = 30 * time.Second
	defaultDatabaseSSLMode    = "disable"
	maxLegalRatePercent       = 100
)

// Config はアプリケーション全体の設定を表現します。
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Logger     LoggerConfig     `yaml:"logger"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Redis      RedisConfig      `yaml:"redis"`
	Compliance ComplianceConfig `yaml:"compliance"`
}

// ServerConfig は gRPC サーバーに関する設定です。
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// LoggerConfig はログ出力に関する設定です。
type LoggerConfig struct {
	Level string `yaml:"level"`
}

// MetricsConfig は Prometheus エンドポイントの設定です。空の場合は公開しません。
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// RedisConfig は期間ロック用 Redis の設定です。Addr が空の場合は PostgreSQL の advisory lock を使います。
type RedisConfig struct {
	Addr       string        `yaml:"addr"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	LockTTL    time.Duration `yaml:"-"`
	LockTTLRaw string        `yaml:"lock_ttl"`
}

// Enabled は Redis ロックが有効かどうかを返します。
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Addr) != ""
}

// ComplianceConfig は納付金計算に用いる全オプションを列挙します。
type ComplianceConfig struct {
	LegalRateRaw          string          `yaml:"legal_rate"`
	LegalRate             decimal.Decimal `yaml:"-"`
	LegalRateDefaulted    bool            `yaml:"-"`
	Rounding              string          `yaml:"rounding"`
	LevyUnit              int64           `yaml:"levy_unit"`
	AdjustmentUnit        int64           `yaml:"adjustment_unit"`
	HomeWorkingUnit       int64           `yaml:"home_working_unit"`
	ShortTimeUnit         int64           `yaml:"short_time_unit"`
	HomeWorkingDivisor    int64           `yaml:"home_working_divisor"`
	DefaultScheduledHours int             `yaml:"default_scheduled_hours"`
	DefaultActualHours    int             `yaml:"default_actual_hours"`
}

// DatabaseConfig は PostgreSQL 接続に関する設定です。
type DatabaseConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	SSLMode            string        `yaml:"ssl_mode"`
	MaxOpenConns       int           `yaml:"max_open_conns"`
	MaxIdleConns       int           `yaml:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `yaml:"-"`
	ConnMaxIdleTime    time.Duration `yaml:"-"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime"`
	ConnMaxIdleTimeRaw string        `yaml:"conn_max_idle_time"`
}

// Load は指定されたパスから設定ファイルを読み込みます。
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validateAndNormalize() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("config: server.listen_addr must be set")
	}

	if err := c.Database.validateAndNormalize(); err != nil {
		return err
	}

	if strings.TrimSpace(c.Logger.Level) == "" {
		c.Logger.Level = DefaultLogLevel
	}

	ttl, err := parseDurationAllowEmpty(c.Redis.LockTTLRaw)
	if err != nil {
		return fmt.Errorf("config: redis.lock_ttl: %w", err)
	}
	if ttl == 0 {
		ttl = DefaultRedisLockTTL
	}
	c.Redis.LockTTL = ttl

	return c.Compliance.validateAndNormalize()
}

func (d *DatabaseConfig) validateAndNormalize() error {
	if d.Host == "" {
		return fmt.Errorf("config: database.host must be set")
	}
	if d.Port == 0 {
		return fmt.Errorf("config: database.port must be set")
	}
	if d.User == "" {
		return fmt.Errorf("config: database.user must be set")
	}
	if d.Password == "" {
		return fmt.Errorf("config: database.password must be set")
	}
	if d.Name == "" {
		return fmt.Errorf("config: database.name must be set")
	}
	if d.SSLMode == "" {
		d.SSLMode = defaultDatabaseSSLMode
	}

	lifetime, err := parseDurationAllowEmpty(d.ConnMaxLifetimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_lifetime: %w", err)
	}
	d.ConnMaxLifetime = lifetime

	idleTime, err := parseDurationAllowEmpty(d.ConnMaxIdleTimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_idle_time: %w", err)
	}
	d.ConnMaxIdleTime = idleTime

	return nil
}

func (c *ComplianceConfig) validateAndNormalize() error {
	raw := strings.TrimSpace(c.LegalRateRaw)
	if raw == "" {
		raw = DefaultLegalRate
		c.LegalRateDefaulted = true
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("config: compliance.legal_rate: %w", err)
	}
	if !rate.IsPositive() || rate.GreaterThan(decimal.NewFromInt(maxLegalRatePercent)) {
		return fmt.Errorf("config: compliance.legal_rate must be within (0, 100]")
	}
	if !rate.Equal(rate.Truncate(2)) {
		return fmt.Errorf("config: compliance.legal_rate must have at most 2 decimal places")
	}
	c.LegalRate = rate
	c.LegalRateRaw = raw

	switch strings.ToLower(strings.TrimSpace(c.Rounding)) {
	case "":
		c.Rounding = DefaultRounding
	case "ceil", "floor":
		c.Rounding = strings.ToLower(strings.TrimSpace(c.Rounding))
	default:
		return fmt.Errorf("config: compliance.rounding must be ceil or floor")
	}

	units := []struct {
		name  string
		value *int64
		def   int64
	}{
		{"levy_unit", &c.LevyUnit, DefaultLevyUnit},
		{"adjustment_unit", &c.AdjustmentUnit, DefaultAdjustmentUnit},
		{"home_working_unit", &c.HomeWorkingUnit, DefaultHomeWorkingUnit},
		{"short_time_unit", &c.ShortTimeUnit, DefaultShortTimeUnit},
		{"home_working_divisor", &c.HomeWorkingDivisor, DefaultHomeWorkingDivisor},
	}
	for _, u := range units {
		if *u.value < 0 {
			return fmt.Errorf("config: compliance.%s must not be negative", u.name)
		}
		if *u.value == 0 {
			*u.value = u.def
		}
	}

	if c.DefaultScheduledHours < 0 || c.DefaultActualHours < 0 {
		return fmt.Errorf("config: compliance default hours must not be negative")
	}
	if c.DefaultScheduledHours == 0 {
		c.DefaultScheduledHours = DefaultScheduledHours
	}
	if c.DefaultActualHours == 0 {
		c.DefaultActualHours = DefaultActualHours
	}

	return nil
}

func parseDurationAllowEmpty(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	return d, nil
}

// DSN は pgx 用の接続文字列を返します。
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}
