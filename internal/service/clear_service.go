package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"shifts-connector/config"
	"shifts-connector/internal/dto"
	"shifts-connector/internal/model"
	"shifts-connector/internal/repository"
	pkgerrors "shifts-connector/pkg/errors"
	"shifts-connector/pkg/logger"
)

// ── 批量清空模块业务错误 ──

var (
	ErrClearInProgress = errors.New("该团队已有清空任务在运行")
	ErrClearNotFound   = errors.New("清空任务不存在")
)

// 终态写入与租约释放不受运行上下文取消影响
const finalizeTimeout = 10 * time.Second

// ClearService 批量清空编排接口
type ClearService interface {
	// Start 校验请求、获取团队租约、写入初始状态并异步启动编排
	Start(ctx context.Context, req *dto.ClearScheduleRequest) (*dto.ClearAcceptedResponse, error)
	// Resume 从最后一次检查点继续一个未到达终态的实例
	Resume(ctx context.Context, instanceKey string) error
	// Status 查询团队最近一次编排的状态
	Status(ctx context.Context, teamID string) (*dto.ClearStatusResponse, error)
	// Wait 等待本进程内所有编排循环退出
	Wait()
}

type clearService struct {
	// runCtx 编排循环的生命周期，取消后循环在当前迭代处停止
	runCtx   context.Context
	cfg      config.SyncConfig
	repo     *repository.Repository
	activity ClearActivity
	logger   *zap.Logger

	owner string
	now   func() time.Time
	wg    sync.WaitGroup
}

// NewClearService 创建 ClearService 实例
// runCtx 取消后运行中的编排停止，状态保持 running 以便下次启动恢复
func NewClearService(
	runCtx context.Context,
	cfg *config.SyncConfig,
	repo *repository.Repository,
	activity ClearActivity,
	logger *zap.Logger,
) ClearService {
	return &clearService{
		runCtx:   runCtx,
		cfg:      *cfg,
		repo:     repo,
		activity: activity,
		logger:   logger,
		owner:    uuid.NewString(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ════════════════════════════════════════════════════════════
// Start
// ════════════════════════════════════════════════════════════

func (s *clearService) Start(ctx context.Context, req *dto.ClearScheduleRequest) (*dto.ClearAcceptedResponse, error) {
	clearReq, err := s.buildRequest(req)
	if err != nil {
		return nil, err
	}
	key := model.ClearInstanceKey(clearReq.TeamID)

	// 1. 已有未终结的实例（可能正在其他进程运行，或等待恢复）
	existing, err := s.repo.ClearState.GetByInstanceKey(ctx, key)
	switch {
	case err == nil && !existing.IsTerminal():
		return nil, ErrClearInProgress
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		s.logger.Error("查询清空编排状态失败", zap.String("instance_key", key), zap.Error(err))
		return nil, fmt.Errorf("查询清空编排状态失败: %w", err)
	}

	// 2. 单实例租约
	acquired, err := s.repo.Lease.Acquire(ctx, key, s.owner, s.cfg.LeaseTTL)
	if err != nil {
		s.logger.Error("获取清空租约失败", zap.String("instance_key", key), zap.Error(err))
		return nil, fmt.Errorf("获取清空租约失败: %w", err)
	}
	if !acquired {
		return nil, ErrClearInProgress
	}

	// 3. 初始检查点
	state := &model.ClearOrchestration{
		InstanceKey: key,
		TeamID:      clearReq.TeamID,
		Request:     datatypes.NewJSONType(*clearReq),
		Status:      model.ClearStatusRunning,
		MaxAttempts: s.cfg.MaxAttempts,
		Result:      datatypes.NewJSONType(model.AccumulatedResult{}),
	}
	state.CreatedAt = s.now()
	if err := s.repo.ClearState.Save(ctx, state); err != nil {
		s.release(key)
		s.logger.Error("写入清空编排初始状态失败", zap.String("instance_key", key), zap.Error(err))
		return nil, fmt.Errorf("写入清空编排初始状态失败: %w", err)
	}

	s.logger.Info("清空编排已启动",
		zap.String("instance_key", key),
		zap.Time("start_date", clearReq.StartDate),
		zap.Time("end_date", clearReq.EndDate),
		zap.Int("batch_size", clearReq.BatchSize),
		zap.Int("max_attempts", state.MaxAttempts),
		zap.String("requested_by", clearReq.RequestedBy),
	)
	s.launch(state)

	resp := &dto.ClearAcceptedResponse{
		InstanceKey: key,
		TeamID:      clearReq.TeamID,
		StartDate:   clearReq.StartDate.Format(dateLayout),
		EndDate:     clearReq.EndDate.Format(dateLayout),
		BatchSize:   clearReq.BatchSize,
		MaxAttempts: state.MaxAttempts,
	}
	if clearReq.QueryEndDate != nil {
		q := clearReq.QueryEndDate.Format(dateLayout)
		resp.QueryEndDate = &q
	}
	return resp, nil
}

// buildRequest 校验并补全默认值
func (s *clearService) buildRequest(req *dto.ClearScheduleRequest) (*model.ClearRequest, error) {
	teamID, err := validateTeamID(req.TeamID)
	if err != nil {
		return nil, err
	}

	batchSize := req.BatchSize
	switch {
	case batchSize == 0:
		batchSize = s.cfg.BatchSize
	case batchSize < 0 || batchSize > s.cfg.MaxBatchSize:
		return nil, &ValidationError{Field: "batch_size", Reason: fmt.Sprintf("必须在 1-%d 之间", s.cfg.MaxBatchSize)}
	}

	past, future := s.cfg.PastWeeks, s.cfg.FutureWeeks
	if req.PastWeeks != nil {
		past = *req.PastWeeks
	}
	if req.FutureWeeks != nil {
		future = *req.FutureWeeks
	}
	if past < 0 || future < 0 {
		return nil, &ValidationError{Field: "past_weeks", Reason: "不能为负数"}
	}
	start, end := weekWindow(s.now(), past, future)

	if req.StartDate != "" {
		if start, err = parseDate("start_date", req.StartDate); err != nil {
			return nil, err
		}
	}
	if req.EndDate != "" {
		if end, err = parseDate("end_date", req.EndDate); err != nil {
			return nil, err
		}
	}
	if !start.Before(end) {
		return nil, &ValidationError{Field: "end_date", Reason: "必须晚于 start_date"}
	}

	out := &model.ClearRequest{
		TeamID:      teamID,
		StartDate:   start,
		EndDate:     end,
		BatchSize:   batchSize,
		RequestedBy: req.RequestedBy,
	}
	if req.QueryEndDate != nil {
		q, err := parseDate("query_end_date", *req.QueryEndDate)
		if err != nil {
			return nil, err
		}
		if q.Before(end) {
			return nil, &ValidationError{Field: "query_end_date", Reason: "不能早于 end_date"}
		}
		out.QueryEndDate = &q
	}
	return out, nil
}

// ════════════════════════════════════════════════════════════
// Resume
// ════════════════════════════════════════════════════════════

func (s *clearService) Resume(ctx context.Context, instanceKey string) error {
	state, err := s.loadState(ctx, instanceKey)
	if err != nil {
		return err
	}
	if state.IsTerminal() {
		return nil
	}

	acquired, err := s.repo.Lease.Acquire(ctx, instanceKey, s.owner, s.cfg.LeaseTTL)
	if err != nil {
		return fmt.Errorf("获取清空租约失败: %w", err)
	}
	if !acquired {
		return ErrClearInProgress
	}

	// 获取租约后重新读取，避开与上一持有者终结状态之间的竞争
	state, err = s.loadState(ctx, instanceKey)
	if err != nil {
		s.release(instanceKey)
		return err
	}
	if state.IsTerminal() {
		s.release(instanceKey)
		return nil
	}

	s.logger.Info("恢复清空编排",
		zap.String("instance_key", instanceKey),
		zap.Int("iteration_count", state.IterationCount),
		zap.Int("max_attempts", state.MaxAttempts),
	)
	s.launch(state)
	return nil
}

func (s *clearService) loadState(ctx context.Context, instanceKey string) (*model.ClearOrchestration, error) {
	state, err := s.repo.ClearState.GetByInstanceKey(ctx, instanceKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClearNotFound
		}
		return nil, fmt.Errorf("查询清空编排状态失败: %w", err)
	}
	return state, nil
}

// ════════════════════════════════════════════════════════════
// 编排循环
// ════════════════════════════════════════════════════════════

func (s *clearService) launch(state *model.ClearOrchestration) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(state)
	}()
}

func (s *clearService) run(state *model.ClearOrchestration) {
	log := logger.ForTeam(s.logger, state.TeamID, state.InstanceKey)
	req := state.Request.Data()
	total := state.Result.Data()

	ctx, cancel := context.WithCancel(s.runCtx)
	defer cancel()

	hbDone := make(chan struct{})
	go func() {
		defer close(hbDone)
		s.heartbeat(ctx, cancel, state.InstanceKey, log)
	}()
	defer func() {
		cancel()
		<-hbDone
		s.release(state.InstanceKey)
	}()

	input := ClearActivityInput{
		TeamID:    req.TeamID,
		StartDate: req.StartDate,
		QueryEnd:  req.EffectiveEndDate(),
		EndDate:   req.EndDate,
		BatchSize: req.BatchSize,
	}

	for !total.Finished && state.IterationCount < state.MaxAttempts {
		it, err := s.activity.Run(ctx, input)
		if ctx.Err() != nil {
			// 被中断的迭代不计入，状态保持 running
			log.Info("清空编排中断，等待恢复", zap.Int("iteration_count", state.IterationCount))
			return
		}

		state.LastError = nil
		if err != nil {
			log.Warn("清空迭代拉取失败，计为零进展迭代",
				zap.Int("iteration", state.IterationCount+1),
				zap.Error(err),
			)
			msg := err.Error()
			state.LastError = &msg
			it = model.IterationResult{}
		}

		AddResult(&total, FromIteration(it))
		state.IterationCount++
		state.Result = datatypes.NewJSONType(total)

		if err := s.repo.ClearState.Save(ctx, state); err != nil {
			log.Error("写入清空检查点失败", zap.Int("iteration", state.IterationCount), zap.Error(err))
		}

		log.Info("清空迭代完成",
			zap.Int("iteration", state.IterationCount),
			zap.Int("deleted", it.DeletedCount),
			zap.Int("failed", it.FailedCount),
			zap.Bool("finished", it.Finished),
		)
	}

	s.finish(state, total, log)
}

// finish 写入终态：finished → succeeded，否则 attempts_exhausted
func (s *clearService) finish(state *model.ClearOrchestration, total model.AccumulatedResult, log *zap.Logger) {
	completedAt := s.now()
	state.CompletedAt = &completedAt
	if total.Finished {
		state.Status = model.ClearStatusSucceeded
	} else {
		state.Status = model.ClearStatusAttemptsExhausted
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.runCtx), finalizeTimeout)
	defer cancel()
	if err := s.repo.ClearState.Save(ctx, state); err != nil {
		log.Error("写入清空终态失败", zap.String("status", state.Status), zap.Error(err))
	}

	fields := []zap.Field{
		zap.String("status", state.Status),
		zap.Int("iteration_count", total.IterationCount),
		zap.Int("deleted", total.DeletedCount),
		zap.Int("failed", total.FailedCount),
	}
	if SeverityOf(total) == SeverityWarning {
		log.Warn("清空编排结束", fields...)
		return
	}
	log.Info("清空编排结束", fields...)
}

// heartbeat 每 ttl/3 续约一次；租约丢失时取消编排
func (s *clearService) heartbeat(ctx context.Context, cancel context.CancelFunc, key string, log *zap.Logger) {
	interval := s.cfg.LeaseTTL / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := s.repo.Lease.Renew(ctx, key, s.owner, s.cfg.LeaseTTL)
			switch {
			case err == nil:
			case errors.Is(err, pkgerrors.ErrLeaseNotHeld):
				log.Warn("清空租约已丢失，停止编排")
				cancel()
				return
			case ctx.Err() == nil:
				log.Warn("续约清空租约失败", zap.Error(err))
			}
		}
	}
}

func (s *clearService) release(key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.runCtx), finalizeTimeout)
	defer cancel()
	if err := s.repo.Lease.Release(ctx, key, s.owner); err != nil {
		s.logger.Warn("释放清空租约失败", zap.String("instance_key", key), zap.Error(err))
	}
}

// ════════════════════════════════════════════════════════════
// Status / Wait
// ════════════════════════════════════════════════════════════

func (s *clearService) Status(ctx context.Context, teamID string) (*dto.ClearStatusResponse, error) {
	teamID, err := validateTeamID(teamID)
	if err != nil {
		return nil, err
	}
	state, err := s.loadState(ctx, model.ClearInstanceKey(teamID))
	if err != nil {
		return nil, err
	}
	return toClearStatusResponse(state), nil
}

func (s *clearService) Wait() {
	s.wg.Wait()
}

func toClearStatusResponse(state *model.ClearOrchestration) *dto.ClearStatusResponse {
	req := state.Request.Data()
	result := state.Result.Data()
	resp := &dto.ClearStatusResponse{
		InstanceKey:    state.InstanceKey,
		TeamID:         state.TeamID,
		Status:         state.Status,
		IterationCount: state.IterationCount,
		MaxAttempts:    state.MaxAttempts,
		Result:         result,
		Severity:       string(SeverityOf(result)),
		LastError:      state.LastError,
		StartDate:      req.StartDate.Format(dateLayout),
		EndDate:        req.EndDate.Format(dateLayout),
		RequestedBy:    req.RequestedBy,
		UpdatedAt:      state.UpdatedAt.Format(time.RFC3339),
	}
	if state.CompletedAt != nil {
		c := state.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &c
	}
	return resp
}
