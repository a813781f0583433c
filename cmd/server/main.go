package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"shifts-connector/internal/api/handler"
	"shifts-connector/internal/api/router"
	"shifts-connector/internal/app"
	"shifts-connector/pkg/jwt"
)

func main() {
	// 收到 SIGINT / SIGTERM 时取消，清空编排在当前迭代后停止并保留检查点
	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(runCtx, os.Getenv("SHIFTS_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	logger := a.Logger
	defer logger.Sync()
	cfg := a.Config

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.Int("max_attempts", cfg.Sync.MaxAttempts),
	)

	// 1. 清空编排恢复任务（宿主重启后接续未终结的实例）
	supervisorDone := make(chan struct{})
	go func() {
		defer close(supervisorDone)
		a.Supervisor().Run(runCtx)
	}()

	// 2. 初始化 JWT 管理器与路由
	jwtMgr := jwt.NewManager(&cfg.Auth)
	h := handler.NewHandler(a.Service)
	engine := router.Setup(cfg, h, jwtMgr, a.Redis, logger)

	// 3. 启动 HTTP 服务器（优雅关闭）
	// 多周同步会串行调用外部系统，写超时放宽
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 4. 等待系统信号，优雅关闭
	<-runCtx.Done()
	logger.Info("收到关闭信号，开始优雅关闭...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}
	<-supervisorDone

	// 等待编排循环写入检查点并释放租约后再断开连接
	a.Close()
	logger.Info("服务器已关闭")
}
