package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"shifts-connector/internal/repository"
)

// ClearSupervisor 周期性扫描 running 状态的清空编排并尝试恢复
// 宿主重启或持有者崩溃（租约过期）后，编排从最后一次检查点继续
type ClearSupervisor struct {
	clear    ClearService
	state    repository.ClearStateRepository
	interval time.Duration
	logger   *zap.Logger
}

func NewClearSupervisor(clear ClearService, state repository.ClearStateRepository, interval time.Duration, logger *zap.Logger) *ClearSupervisor {
	return &ClearSupervisor{clear: clear, state: state, interval: interval, logger: logger}
}

// Run 启动时立即扫描一次，之后每 interval 扫描一次，直到 ctx 取消
func (s *ClearSupervisor) Run(ctx context.Context) {
	s.ResumeAll(ctx)
	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ResumeAll(ctx)
		}
	}
}

// ResumeAll 返回本轮成功恢复的实例数
func (s *ClearSupervisor) ResumeAll(ctx context.Context) int {
	states, err := s.state.ListRunning(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("扫描待恢复清空编排失败", zap.Error(err))
		}
		return 0
	}

	resumed := 0
	for _, st := range states {
		err := s.clear.Resume(ctx, st.InstanceKey)
		switch {
		case err == nil:
			resumed++
		case errors.Is(err, ErrClearInProgress), errors.Is(err, ErrClearNotFound):
			// 仍由其他持有者运行，或已被清理
		default:
			s.logger.Warn("恢复清空编排失败", zap.String("instance_key", st.InstanceKey), zap.Error(err))
		}
	}
	return resumed
}
