// Package app 提供风险评估服务的应用入口
//
// ========================================
// meridian-risk 服务对接总览
// ========================================
//
// ## 服务信息
// - 服务名: meridian-risk
// - gRPC 端口: 50055 (健康检查)
// - HTTP 端口: 8080 (/metrics, /healthz)
// - 数据库: meridian_risk (PostgreSQL)
//
// ## 依赖服务
// - PostgreSQL: 规则、评分、画像、事件持久化
// - Redis: 缓存 (活跃规则、黑白名单标记)
// - Kafka: 消息队列 (订单事件消费、风险告警生产)
//
// ## Kafka 主题
// - 消费: order-events
// - 生产: risk-alerts
//
// ## 上游对接 (订单服务)
// 1. 下单/支付后发送订单事件 -> order-events
//   - event_type: CREATED / PAID 触发风险评估
//   - CANCELLED 等其他事件被忽略
//
// 2. 同步评估: 进程内调用 AssessmentService.AssessRisk
//   - should_block=true 时拒绝订单
//   - should_hold=true 时暂扣结算
//
// ## 下游对接 (监控告警)
// 1. 消费 risk-alerts 主题
//   - severity: low/medium/high/critical
//   - 接入告警系统 (钉钉/Slack/PagerDuty)
//
// ========================================
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/meridian-commerce/meridian-risk/internal/cache"
	"github.com/meridian-commerce/meridian-risk/internal/config"
	"github.com/meridian-commerce/meridian-risk/internal/engine"
	"github.com/meridian-commerce/meridian-risk/internal/kafka"
	"github.com/meridian-commerce/meridian-risk/internal/repository"
	"github.com/meridian-commerce/meridian-risk/internal/service"
	"github.com/meridian-commerce/meridian-risk/internal/signal"
	"github.com/meridian-commerce/meridian-risk/pkg/logger"
)

// App 风险评估服务应用
type App struct {
	cfg *config.Config

	// 基础设施
	db          *gorm.DB
	redisClient redis.UniversalClient
	grpcServer  *grpc.Server
	httpServer  *http.Server // HTTP 服务 (metrics + health)

	// Kafka
	kafkaProducer *kafka.Producer
	kafkaConsumer *kafka.Consumer

	// 仓储层
	ruleRepo *repository.RiskRuleRepository

	// 服务层
	assessmentSvc *service.AssessmentService
	ruleSvc       *service.RuleService
	reviewSvc     *service.ReviewService
	listSvc       *service.ListService
	statsSvc      *service.StatsService
	healthSvc     *service.HealthService

	// 上下文
	ctx    context.Context
	cancel context.CancelFunc
}

// New 创建应用实例
func New(cfg *config.Config) *App {
	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Run 启动应用
func (a *App) Run() error {
	// 1. 初始化数据库
	if err := a.initDB(); err != nil {
		return fmt.Errorf("failed to init database: %w", err)
	}

	// 2. 初始化 Redis
	if err := a.initRedis(); err != nil {
		return fmt.Errorf("failed to init redis: %w", err)
	}

	// 3. 初始化 Kafka 生产者
	if err := a.initKafka(); err != nil {
		logger.Warn("failed to init kafka, running without kafka", zap.Error(err))
	}

	// 4. 初始化服务层
	a.initServices()

	// 5. 预热规则缓存
	a.warmupCache()

	// 6. 启动 Kafka 消费者
	a.startConsumer()

	// 7. 启动 gRPC 服务
	if err := a.startGRPC(); err != nil {
		return fmt.Errorf("failed to start gRPC: %w", err)
	}

	// 8. 启动 HTTP 服务 (metrics + health)
	a.startHTTPServer()

	return nil
}

// Shutdown 优雅关闭
func (a *App) Shutdown(ctx context.Context) error {
	logger.Info("shutting down risk service...")

	// 关闭顺序：服务端 -> 消息队列 -> 数据库 -> 缓存
	if a.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", zap.Error(err))
		}
		cancel()
	}

	if a.grpcServer != nil {
		a.grpcServer.GracefulStop()
	}

	a.cancel()

	if a.kafkaConsumer != nil {
		if err := a.kafkaConsumer.Stop(); err != nil {
			logger.Warn("kafka consumer stop error", zap.Error(err))
		}
	}

	if a.kafkaProducer != nil {
		if err := a.kafkaProducer.Close(); err != nil {
			logger.Warn("kafka producer close error", zap.Error(err))
		}
	}

	if a.db != nil {
		sqlDB, _ := a.db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	}

	if a.redisClient != nil {
		a.redisClient.Close()
	}

	logger.Info("risk service stopped")
	return nil
}

// initDB 初始化数据库
func (a *App) initDB() error {
	pg := a.cfg.Postgres
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		pg.Host, pg.Port, pg.User, pg.Password, pg.Database)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(pg.MaxConnections)
	sqlDB.SetMaxIdleConns(pg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(pg.ConnMaxLifetimeMinutes) * time.Minute)

	a.db = db

	// 自动迁移
	if err := AutoMigrate(a.db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	logger.Info("database migrated")

	return nil
}

// initRedis 初始化 Redis
func (a *App) initRedis() error {
	a.redisClient = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", a.cfg.Redis.Host, a.cfg.Redis.Port),
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
		PoolSize: a.cfg.Redis.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return a.redisClient.Ping(ctx).Err()
}

// initKafka 初始化 Kafka 生产者
func (a *App) initKafka() error {
	if !a.cfg.Kafka.Enabled || len(a.cfg.Kafka.Brokers) == 0 {
		logger.Info("kafka disabled")
		return nil
	}

	producer, err := kafka.NewProducer(a.cfg.Kafka.Brokers, a.cfg.Kafka.ClientID)
	if err != nil {
		return err
	}
	a.kafkaProducer = producer

	logger.Info("kafka producer initialized",
		zap.Strings("brokers", a.cfg.Kafka.Brokers))

	return nil
}

// initServices 初始化服务层
func (a *App) initServices() {
	// 仓储层
	ruleRepo := repository.NewRiskRuleRepository(a.db)
	a.ruleRepo = ruleRepo
	scoreRepo := repository.NewRiskScoreRepository(a.db)
	profileRepo := repository.NewRiskProfileRepository(a.db)
	eventRepo := repository.NewRiskEventRepository(a.db)
	assessmentWriter := repository.NewAssessmentWriter(a.db)

	// 缓存层
	ruleCache := cache.NewRuleCache(a.redisClient, time.Duration(a.cfg.Risk.RuleCacheTTLSec)*time.Second)
	listCache := cache.NewListCache(a.redisClient, time.Duration(a.cfg.Risk.ListCacheTTLSec)*time.Second)

	// 服务层
	a.ruleSvc = service.NewRuleService(ruleRepo, ruleCache, a.cfg.Risk.Limits.MaxRulesPerTenant)

	thresholds := engine.Thresholds{
		Low:      a.cfg.Risk.Thresholds.Low,
		Medium:   a.cfg.Risk.Thresholds.Medium,
		High:     a.cfg.Risk.Thresholds.High,
		Critical: a.cfg.Risk.Thresholds.Critical,
	}
	a.assessmentSvc = service.NewAssessmentService(a.ruleSvc, assessmentWriter, thresholds)

	a.reviewSvc = service.NewReviewService(scoreRepo)
	a.listSvc = service.NewListService(profileRepo, eventRepo, listCache)
	a.statsSvc = service.NewStatsService(scoreRepo, eventRepo)
	a.healthSvc = service.NewHealthService(gormPinger{db: a.db}, ruleRepo, a.cfg.Risk.Limits.MaxRulesPerTenant)

	// Kafka 告警回调
	if a.kafkaProducer != nil {
		a.assessmentSvc.SetOnRiskAlert(a.kafkaProducer.RiskAlertCallback())
	}

	logger.Info("services initialized")
}

// warmupCache 预热规则缓存 (从数据库加载各租户活跃规则)
func (a *App) warmupCache() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tenants, err := a.ruleRepo.ActiveTenants(ctx)
	if err != nil {
		logger.Error("failed to list tenants for cache warmup", zap.Error(err))
		return
	}

	for _, tenant := range tenants {
		if _, err := a.ruleSvc.ActiveRules(ctx, tenant); err != nil {
			logger.Warn("failed to warm rule cache",
				zap.String("tenant_id", tenant),
				zap.Error(err))
		}
	}

	logger.Info("cache warmup completed", zap.Int("tenants", len(tenants)))
}

// startConsumer 启动 Kafka 消费者
func (a *App) startConsumer() {
	if !a.cfg.Kafka.Enabled || len(a.cfg.Kafka.Brokers) == 0 {
		return
	}

	collector := signal.NewCollector(signal.WithOrderLimits(
		a.cfg.Risk.Limits.GetHighValueOrderThreshold(),
		a.cfg.Risk.Limits.GetVeryHighValueOrderThreshold(),
		a.cfg.Risk.Limits.MaxOrderItems,
	))

	consumer, err := kafka.NewConsumer(
		&kafka.ConsumerConfig{
			Brokers: a.cfg.Kafka.Brokers,
			GroupID: a.cfg.Kafka.GroupID,
		},
		a.assessmentSvc,
		collector,
	)
	if err != nil {
		logger.Error("failed to create kafka consumer", zap.Error(err))
		return
	}

	a.kafkaConsumer = consumer
	go func() {
		if err := consumer.Start(a.ctx); err != nil {
			logger.Error("kafka consumer error", zap.Error(err))
		}
	}()
}

// startGRPC 启动 gRPC 服务 (健康检查)
func (a *App) startGRPC() error {
	addr := fmt.Sprintf(":%d", a.cfg.Service.GRPCPort)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	a.grpcServer = grpc.NewServer()

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(a.grpcServer, healthServer)
	healthServer.SetServingStatus(a.cfg.Service.Name, grpc_health_v1.HealthCheckResponse_SERVING)

	logger.Info("starting gRPC server",
		zap.String("addr", addr),
		zap.String("service", a.cfg.Service.Name))

	go func() {
		if err := a.grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	return nil
}

// startHTTPServer 启动 HTTP 服务器 (metrics + health check)
func (a *App) startHTTPServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("/capabilities", a.handleCapabilities)

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Service.HTTPPort),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", zap.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", zap.Error(err))
		}
	}()
}

// handleHealthz 健康检查接口
func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := a.healthSvc.HealthCheck(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(status)
}

// handleCapabilities 引擎能力描述接口
func (a *App) handleCapabilities(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(a.healthSvc.GetCapabilities())
}

// gormPinger 以 gorm 连接实现数据库连通性探测
type gormPinger struct {
	db *gorm.DB
}

func (p gormPinger) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// AssessmentService 评估服务
func (a *App) AssessmentService() *service.AssessmentService { return a.assessmentSvc }

// RuleService 规则管理服务
func (a *App) RuleService() *service.RuleService { return a.ruleSvc }

// ReviewService 人工复核服务
func (a *App) ReviewService() *service.ReviewService { return a.reviewSvc }

// ListService 黑白名单服务
func (a *App) ListService() *service.ListService { return a.listSvc }

// StatsService 统计服务
func (a *App) StatsService() *service.StatsService { return a.statsSvc }

// HealthService 健康探测服务
func (a *App) HealthService() *service.HealthService { return a.healthSvc }

// GetConfig 获取配置
func (a *App) GetConfig() *config.Config {
	return a.cfg
}
