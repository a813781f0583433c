package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"shifts-connector/config"
	"shifts-connector/internal/client"
	"shifts-connector/internal/repository"
	"shifts-connector/internal/service"
	"shifts-connector/pkg/database"
	applogger "shifts-connector/pkg/logger"
	"shifts-connector/pkg/redis"
)

// App 进程级依赖集合，HTTP 服务与运维 CLI 共用
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	DB      *gorm.DB
	Redis   *redis.Client // 可能为 nil（降级运行）
	Repo    *repository.Repository
	Service *service.Service
}

// New 按配置完成依赖注入: 配置 → 日志 → DB → Redis → Repository → Client → Service
// runCtx 为后台清空编排循环的生命周期，取消后编排在当前迭代结束前退出
func New(runCtx context.Context, cfgPath string) (*App, error) {
	// 1. 加载配置
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	// 3. 连接数据库并执行迁移
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}

	// 4. 连接 Redis（可选：连接失败时降级运行，不中断启动）
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，周快照缓存与限流将不可用", zap.Error(err))
		rdb = nil
	}

	// 5. 外部排班系统客户端
	source, err := client.NewSourceHTTPClient(&cfg.Source)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("初始化源系统客户端失败: %w", err)
	}
	dest, err := client.NewDestinationHTTPClient(&cfg.Destination)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("初始化目标系统客户端失败: %w", err)
	}

	// 6. 依赖注入: Repository → Service
	repo := repository.NewRepository(db, rdb, cfg.Sync.SnapshotCacheTTL, logger)
	svc := service.NewService(runCtx, cfg, repo, source, dest, logger)

	return &App{
		Config:  cfg,
		Logger:  logger,
		DB:      db,
		Redis:   rdb,
		Repo:    repo,
		Service: svc,
	}, nil
}

// Supervisor 周期性恢复未终结清空编排的后台任务
func (a *App) Supervisor() *service.ClearSupervisor {
	return service.NewClearSupervisor(a.Service.Clear, a.Repo.ClearState, a.Config.Sync.SupervisorInterval, a.Logger)
}

// Close 等待编排循环退出后关闭连接
func (a *App) Close() {
	a.Service.Clear.Wait()

	if sqlDB, _ := a.DB.DB(); sqlDB != nil {
		sqlDB.Close()
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
}
