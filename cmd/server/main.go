package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ogurasousui/levy-engine/internal/adapters/grpc/handler"
	"github.com/ogurasousui/levy-engine/internal/adapters/repository/postgres"
	"github.com/ogurasousui/levy-engine/internal/core/attendance"
	"github.com/ogurasousui/levy-engine/internal/core/compliance"
	"github.com/ogurasousui/levy-engine/internal/core/employee"
	"github.com/ogurasousui/levy-engine/internal/core/settings"
	"github.com/ogurasousui/levy-engine/internal/platform/config"
	pg "github.com/ogurasousui/levy-engine/internal/platform/db/postgres"
	"github.com/ogurasousui/levy-engine/internal/platform/logger"
	"github.com/ogurasousui/levy-engine/internal/platform/metrics"
	"github.com/ogurasousui/levy-engine/internal/platform/redislock"
	"github.com/ogurasousui/levy-engine/internal/platform/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// .env は任意です。無い場合は環境変数だけを使います。
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "assets/local.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Logger.Level)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, zl *zap.Logger) error {
	if cfg.Compliance.LegalRateDefaulted {
		zl.Warn("compliance.legal_rate not configured, falling back", zap.String("legal_rate", cfg.Compliance.LegalRate.String()))
	}

	dbPool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	txManager := pg.NewTransactionManager(dbPool)
	m := metrics.New()

	var locker compliance.PeriodLocker = pg.NewAdvisoryLocker(txManager, dbPool)
	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		locker = redislock.New(rdb, redislock.Options{
			TTL:          cfg.Redis.LockTTL,
			Wait:         cfg.Redis.LockTTL,
			BusyError:    compliance.ErrConcurrentUpdate,
			OnContention: m.ObserveLockContention,
			Logger:       zl.Named("redislock"),
		})
		zl.Info("using redis period locks", zap.String("addr", cfg.Redis.Addr))
	}

	employeeRepo := postgres.NewEmployeeRepository(dbPool)
	attendanceRepo := postgres.NewAttendanceRepository(dbPool)
	settingsRepo := postgres.NewSettingsRepository(dbPool)

	attendanceDefaults := attendance.Defaults{
		ScheduledHours: cfg.Compliance.DefaultScheduledHours,
		ActualHours:    cfg.Compliance.DefaultActualHours,
	}

	employeeSvc := employee.NewService(employeeRepo, nil, txManager)
	attendanceSvc := attendance.NewService(attendanceRepo, nil, txManager, attendanceDefaults)
	settingsSvc := settings.NewService(settingsRepo, nil, settings.Settings{
		LegalRate:          cfg.Compliance.LegalRate,
		Rounding:           cfg.Compliance.Rounding,
		LevyUnit:           cfg.Compliance.LevyUnit,
		AdjustmentUnit:     cfg.Compliance.AdjustmentUnit,
		HomeWorkingUnit:    cfg.Compliance.HomeWorkingUnit,
		ShortTimeUnit:      cfg.Compliance.ShortTimeUnit,
		HomeWorkingDivisor: cfg.Compliance.HomeWorkingDivisor,
	}, zl.Named("settings"))

	complianceSvc := compliance.NewService(compliance.Dependencies{
		Employees:          employeeRepo,
		Attendance:         attendanceRepo,
		Settings:           settingsSvc,
		Totals:             postgres.NewMonthlyTotalRepository(dbPool),
		Filings:            postgres.NewLevyFilingRepository(dbPool),
		Tx:                 txManager,
		Locker:             locker,
		Metrics:            m,
		Logger:             zl.Named("compliance"),
		AttendanceDefaults: attendanceDefaults,
	})

	if cfg.Metrics.ListenAddr != "" {
		metricsSrv := &http.Server{
			Addr:              cfg.Metrics.ListenAddr,
			Handler:           metricsMux(m),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			zl.Info("metrics server listening", zap.String("addr", cfg.Metrics.ListenAddr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zl.Error("metrics server stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	grpcServer := server.New(cfg.Server.ListenAddr, server.Services{
		Compliance: handler.NewComplianceGrpcHandler(complianceSvc),
		Employees:  handler.NewEmployeeGrpcHandler(employeeSvc),
		Attendance: handler.NewAttendanceGrpcHandler(attendanceSvc),
		Settings:   handler.NewSettingsGrpcHandler(settingsSvc),
	}, zl.Named("grpc"))

	return grpcServer.Run(ctx)
}

func metricsMux(m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return mux
}
