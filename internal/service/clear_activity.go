package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shifts-connector/internal/client"
	"shifts-connector/internal/model"
)

// ErrListShifts 拉取目标系统班次失败（迭代级错误，消耗一次尝试）
var ErrListShifts = errors.New("拉取目标班次失败")

// ClearActivityInput 单次清空迭代的输入
type ClearActivityInput struct {
	TeamID    string
	StartDate time.Time
	// QueryEnd 拉取窗口结束时间，可能比 EndDate 更宽
	QueryEnd time.Time
	// EndDate 删除过滤边界：仅删除开始时间严格早于该时间的班次
	EndDate   time.Time
	BatchSize int
}

// ClearActivity 单次「拉取 + 并发删除」
type ClearActivity interface {
	Run(ctx context.Context, in ClearActivityInput) (model.IterationResult, error)
}

type clearActivity struct {
	dest        client.DestinationClient
	concurrency int
	logger      *zap.Logger
}

// NewClearActivity concurrency 为同时进行的删除请求上限
func NewClearActivity(dest client.DestinationClient, concurrency int, logger *zap.Logger) ClearActivity {
	if concurrency < 1 {
		concurrency = 1
	}
	return &clearActivity{dest: dest, concurrency: concurrency, logger: logger}
}

func (a *clearActivity) Run(ctx context.Context, in ClearActivityInput) (model.IterationResult, error) {
	// 1. 拉取
	listed, err := a.dest.ListShifts(ctx, in.TeamID, in.StartDate, in.QueryEnd, in.BatchSize)
	if err != nil {
		return model.IterationResult{}, fmt.Errorf("%w: %w", ErrListShifts, err)
	}

	// 2. 按真实窗口过滤
	targets := make([]model.ShiftRecord, 0, len(listed))
	for _, s := range listed {
		if s.StartUTC.Before(in.EndDate) {
			targets = append(targets, s)
		}
	}
	if len(targets) == 0 {
		return model.IterationResult{Finished: true}, nil
	}

	// 3. 并发删除，单个失败不影响其他
	var deleted, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for _, s := range targets {
		g.Go(func() error {
			err := a.dest.DeleteShift(gctx, in.TeamID, s)
			var se *client.StatusError
			switch {
			case err == nil:
				deleted.Add(1)
			case errors.As(err, &se) && se.IsNotFound():
				// 已不存在，按删除成功计
				deleted.Add(1)
			default:
				failed.Add(1)
				a.logger.Warn("删除班次失败",
					zap.String("team_id", in.TeamID),
					zap.String("source_id", s.SourceID),
					zap.String("destination_id", s.DestinationID),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	// 4. 短页且全部删除成功说明窗口内已无剩余
	res := model.IterationResult{
		DeletedCount: int(deleted.Load()),
		FailedCount:  int(failed.Load()),
	}
	res.Finished = len(listed) < in.BatchSize && res.FailedCount == 0
	return res, nil
}
