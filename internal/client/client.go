// Package client 外部排班系统协作方客户端
//
// 核心逻辑只依赖 SourceClient / DestinationClient 两个接口；
// 这里的 HTTP 实现采用简单的 JSON 约定，不自带重试，失败原样返回给调用方。
package client

import (
	"context"
	"fmt"
	"time"

	"shifts-connector/internal/model"
)

// SourceClient WFM 源系统（排班事实来源）
type SourceClient interface {
	// ListShifts 列出团队在 [start, end) 内的全部班次
	ListShifts(ctx context.Context, teamID string, start, end time.Time) ([]model.ShiftRecord, error)
}

// DestinationClient 目标排班服务
type DestinationClient interface {
	// ListShifts 列出与 [start, end] 重叠的班次，最多 maxCount 条
	ListShifts(ctx context.Context, teamID string, start, end time.Time, maxCount int) ([]model.ShiftRecord, error)
	// CreateShift 返回目标系统分配的 DestinationID
	CreateShift(ctx context.Context, teamID string, shift model.ShiftRecord) (string, error)
	UpdateShift(ctx context.Context, teamID string, shift model.ShiftRecord) error
	DeleteShift(ctx context.Context, teamID string, shift model.ShiftRecord) error
}

// StatusError 外部系统返回非 2xx 状态
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: 状态码 %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// IsNotFound 目标对象不存在（删除时视为已删除由调用方决定）
func (e *StatusError) IsNotFound() bool {
	return e.StatusCode == 404
}
