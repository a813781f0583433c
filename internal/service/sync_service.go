package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shifts-connector/config"
	"shifts-connector/internal/client"
	"shifts-connector/internal/dto"
	"shifts-connector/internal/model"
	"shifts-connector/internal/repository"
	"shifts-connector/pkg/logger"
)

// ── 同步模块业务错误 ──

var (
	ErrSyncInProgress = errors.New("该团队已有同步任务在运行")
	ErrLoadSnapshot   = errors.New("读取周快照失败")
	ErrFetchSource    = errors.New("拉取源系统班次失败")
	ErrSaveSnapshot   = errors.New("保存周快照失败")
)

// SyncLeaseSuffix 同步租约键后缀
const SyncLeaseSuffix = "-Sync"

// SyncService 源系统 → 目标系统的周级对账
type SyncService interface {
	// SyncWeek 执行单个对账周期
	SyncWeek(ctx context.Context, req *dto.WeekSyncRequest) (*dto.SyncResult, error)
	// SyncTeam 依次对账窗口内各周，并跟随续传周期
	SyncTeam(ctx context.Context, req *dto.TeamSyncRequest) (*dto.TeamSyncResponse, error)
	// DisconnectTeam 团队断开连接，删除其全部周快照
	DisconnectTeam(ctx context.Context, teamID string) error
	// Snapshot 读取已跟踪的周快照
	Snapshot(ctx context.Context, teamID string, weekStart time.Time) (*model.Snapshot, error)
}

type syncService struct {
	cfg    config.SyncConfig
	repo   *repository.Repository
	source client.SourceClient
	dest   client.DestinationClient
	logger *zap.Logger

	owner string
	now   func() time.Time
}

// NewSyncService 创建 SyncService 实例
func NewSyncService(
	cfg *config.SyncConfig,
	repo *repository.Repository,
	source client.SourceClient,
	dest client.DestinationClient,
	logger *zap.Logger,
) SyncService {
	c := *cfg
	if c.WriteConcurrency < 1 {
		c.WriteConcurrency = 1
	}
	return &syncService{
		cfg:    c,
		repo:   repo,
		source: source,
		dest:   dest,
		logger: logger,
		owner:  uuid.NewString(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ════════════════════════════════════════════════════════════
// SyncWeek
// ════════════════════════════════════════════════════════════

func (s *syncService) SyncWeek(ctx context.Context, req *dto.WeekSyncRequest) (*dto.SyncResult, error) {
	teamID, err := validateTeamID(req.TeamID)
	if err != nil {
		return nil, err
	}
	release, err := s.acquire(ctx, teamID)
	if err != nil {
		return nil, err
	}
	defer release()

	weekStart := model.WeekStartOf(req.WeekStart)
	delta, err := s.cycle(ctx, teamID, weekStart, req.Continuation)
	if err != nil {
		return nil, err
	}
	return toSyncResult(teamID, weekStart, delta.AsResult(), delta.HasContinuation), nil
}

// ════════════════════════════════════════════════════════════
// SyncTeam
// ════════════════════════════════════════════════════════════

func (s *syncService) SyncTeam(ctx context.Context, req *dto.TeamSyncRequest) (*dto.TeamSyncResponse, error) {
	teamID, err := validateTeamID(req.TeamID)
	if err != nil {
		return nil, err
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

	release, err := s.acquire(ctx, teamID)
	if err != nil {
		return nil, err
	}
	defer release()

	log := logger.ForTeam(s.logger, teamID, teamID+SyncLeaseSuffix)
	start, end := weekWindow(s.now(), past, future)

	resp := &dto.TeamSyncResponse{TeamID: teamID, Weeks: []dto.SyncResult{}}
	allFinished := true
	for week := start; week.Before(end); week = week.AddDate(0, 0, 7) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		weekResult, hasContinuation, err := s.syncWeekChain(ctx, teamID, week)
		item := toSyncResult(teamID, week, weekResult, hasContinuation)
		if err != nil {
			log.Warn("周同步失败", zap.String("week_start", item.WeekStart), zap.Error(err))
			item.Error = err.Error()
			item.Severity = string(SeverityWarning)
			allFinished = false
		} else if !weekResult.Finished {
			allFinished = false
		}
		resp.Weeks = append(resp.Weeks, *item)
		AddResult(&resp.Total, weekResult)

		// 长时间的多周同步期间续约
		if err := s.repo.Lease.Renew(ctx, teamID+SyncLeaseSuffix, s.owner, s.cfg.LeaseTTL); err != nil {
			log.Warn("同步租约续约失败，停止后续周", zap.Error(err))
			return nil, fmt.Errorf("同步租约续约失败: %w", err)
		}
	}
	resp.Total.Finished = allFinished
	resp.Severity = string(SeverityOf(resp.Total))

	log.Info("团队同步完成",
		zap.Int("weeks", len(resp.Weeks)),
		zap.Int("created", resp.Total.CreatedCount),
		zap.Int("updated", resp.Total.UpdatedCount),
		zap.Int("deleted", resp.Total.DeletedCount),
		zap.Int("failed", resp.Total.FailedCount),
		zap.Int("skipped", resp.Total.SkippedCount),
		zap.Bool("finished", resp.Total.Finished),
	)
	return resp, nil
}

// syncWeekChain 执行一个周期，并在截断时最多跟随 MaxContinuations 个续传周期
func (s *syncService) syncWeekChain(ctx context.Context, teamID string, week time.Time) (model.AccumulatedResult, bool, error) {
	var total model.AccumulatedResult
	continuation := false
	for i := 0; ; i++ {
		delta, err := s.cycle(ctx, teamID, week, continuation)
		if err != nil {
			total.Finished = false
			return total, continuation, err
		}
		AddResult(&total, delta.AsResult())
		if !delta.HasContinuation || i >= s.cfg.MaxContinuations {
			return total, delta.HasContinuation, nil
		}
		continuation = true
	}
}

// ════════════════════════════════════════════════════════════
// 对账周期
// ════════════════════════════════════════════════════════════
//
// 读取快照 → 拉取源班次 → 计算差异 → 批量限制 → 写入目标系统
//   → 应用到快照 → 更新延后列表 → 保存

func (s *syncService) cycle(ctx context.Context, teamID string, weekStart time.Time, continuation bool) (*DeltaResult, error) {
	log := logger.ForTeam(s.logger, teamID, "")

	snapshot, err := s.repo.WeeklyCache.Load(ctx, teamID, weekStart)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadSnapshot, err)
	}

	shifts, err := s.source.ListShifts(ctx, teamID, weekStart, weekStart.AddDate(0, 0, 7))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchSource, err)
	}

	delta := ComputeDelta(snapshot.Tracked, shifts)
	// 续传周期负责处理上一周期延后的变更，普通周期保持延后
	if !continuation {
		delta.RemoveSkipped(snapshot.SkippedIDs)
	}
	delta.ApplyMaximum(s.cfg.MaxDeltaCount)

	s.applyToDestination(ctx, teamID, delta, log)

	snapshot.Tracked = delta.ApplyChanges(snapshot.Tracked)
	delta.ApplySkipped(snapshot)
	if err := s.repo.WeeklyCache.Save(ctx, teamID, weekStart, snapshot); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSaveSnapshot, err)
	}

	log.Info("同步周期完成",
		zap.String("week_start", weekStart.Format(dateLayout)),
		zap.Bool("continuation", continuation),
		zap.Int("created", len(delta.created)),
		zap.Int("updated", len(delta.updated)),
		zap.Int("deleted", len(delta.deleted)),
		zap.Int("failed", len(delta.failed)),
		zap.Int("skipped", len(delta.skipped)),
		zap.Bool("has_continuation", delta.HasContinuation),
	)
	return delta, nil
}

type writeOutcome struct {
	destinationID string
	err           error
}

// applyToDestination 并发写入 All() 中的每项变更；失败项移入 Failed
func (s *syncService) applyToDestination(ctx context.Context, teamID string, delta *DeltaResult, log *zap.Logger) {
	changes := delta.All()
	if len(changes) == 0 {
		return
	}

	outcomes := make([]writeOutcome, len(changes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.WriteConcurrency)
	for i, c := range changes {
		g.Go(func() error {
			outcomes[i] = s.write(gctx, teamID, c)
			return nil
		})
	}
	_ = g.Wait()

	for i, c := range changes {
		out := outcomes[i]
		id := c.Shift.SourceID
		if out.err != nil {
			log.Warn("写入目标班次失败",
				zap.String("kind", string(c.Kind)),
				zap.String("source_id", id),
				zap.Error(out.err),
			)
			delta.MarkFailed(id)
			continue
		}
		if c.Kind == ChangeCreated {
			delta.setDestinationID(id, out.destinationID)
		}
	}
}

func (s *syncService) write(ctx context.Context, teamID string, c Change) writeOutcome {
	switch c.Kind {
	case ChangeCreated:
		id, err := s.dest.CreateShift(ctx, teamID, c.Shift)
		return writeOutcome{destinationID: id, err: err}
	case ChangeUpdated:
		if c.Shift.DestinationID == "" {
			return writeOutcome{err: fmt.Errorf("班次 %s 缺少目标系统 ID", c.Shift.SourceID)}
		}
		return writeOutcome{err: s.dest.UpdateShift(ctx, teamID, c.Shift)}
	default:
		if c.Shift.DestinationID == "" {
			return writeOutcome{}
		}
		err := s.dest.DeleteShift(ctx, teamID, c.Shift)
		var se *client.StatusError
		if errors.As(err, &se) && se.IsNotFound() {
			err = nil
		}
		return writeOutcome{err: err}
	}
}

// ════════════════════════════════════════════════════════════
// DisconnectTeam / Snapshot
// ════════════════════════════════════════════════════════════

func (s *syncService) DisconnectTeam(ctx context.Context, teamID string) error {
	teamID, err := validateTeamID(teamID)
	if err != nil {
		return err
	}
	release, err := s.acquire(ctx, teamID)
	if err != nil {
		return err
	}
	defer release()

	if err := s.repo.WeeklyCache.DeleteTeam(ctx, teamID); err != nil {
		s.logger.Error("删除团队周快照失败", zap.String("team_id", teamID), zap.Error(err))
		return fmt.Errorf("删除团队周快照失败: %w", err)
	}
	s.logger.Info("团队已断开连接", zap.String("team_id", teamID))
	return nil
}

func (s *syncService) Snapshot(ctx context.Context, teamID string, weekStart time.Time) (*model.Snapshot, error) {
	teamID, err := validateTeamID(teamID)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.repo.WeeklyCache.Load(ctx, teamID, model.WeekStartOf(weekStart))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadSnapshot, err)
	}
	return snapshot, nil
}

// ── 辅助函数 ──

// acquire 获取团队同步租约，返回释放函数
func (s *syncService) acquire(ctx context.Context, teamID string) (func(), error) {
	key := teamID + SyncLeaseSuffix
	acquired, err := s.repo.Lease.Acquire(ctx, key, s.owner, s.cfg.LeaseTTL)
	if err != nil {
		return nil, fmt.Errorf("获取同步租约失败: %w", err)
	}
	if !acquired {
		return nil, ErrSyncInProgress
	}
	return func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
		defer cancel()
		if err := s.repo.Lease.Release(rctx, key, s.owner); err != nil {
			s.logger.Warn("释放同步租约失败", zap.String("lease_key", key), zap.Error(err))
		}
	}, nil
}

func toSyncResult(teamID string, weekStart time.Time, result model.AccumulatedResult, hasContinuation bool) *dto.SyncResult {
	return &dto.SyncResult{
		TeamID:          teamID,
		WeekStart:       weekStart.Format(dateLayout),
		Result:          result,
		HasContinuation: hasContinuation,
		Severity:        string(SeverityOf(result)),
	}
}
