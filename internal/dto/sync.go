package dto

import (
	"time"

	"shifts-connector/internal/model"
)

// ── 排班同步模块 DTO ──

// WeekSyncRequest 单周同步周期
type WeekSyncRequest struct {
	TeamID    string
	WeekStart time.Time
	// Continuation 由上一周期截断触发的续传周期
	Continuation bool
}

// WeekSyncPathRequest 单周同步路径参数
type WeekSyncPathRequest struct {
	TeamID    string `uri:"team_id"    binding:"required"`
	WeekStart string `uri:"week_start" binding:"required,datetime=2006-01-02"`
}

// TeamSyncRequest 团队多周同步请求
type TeamSyncRequest struct {
	TeamID      string `json:"-"`
	PastWeeks   *int   `json:"past_weeks"   binding:"omitempty,min=0,max=52"`
	FutureWeeks *int   `json:"future_weeks" binding:"omitempty,min=0,max=52"`
}

// ── 响应 ──

// SyncResult 单周同步结果（含跟随的续传周期）
type SyncResult struct {
	TeamID          string                  `json:"team_id"`
	WeekStart       string                  `json:"week_start"`
	Result          model.AccumulatedResult `json:"result"`
	HasContinuation bool                    `json:"has_continuation"`
	Severity        string                  `json:"severity"`
	Error           string                  `json:"error,omitempty"`
}

// TeamSyncResponse 团队多周同步汇总
type TeamSyncResponse struct {
	TeamID   string                  `json:"team_id"`
	Weeks    []SyncResult            `json:"weeks"`
	Total    model.AccumulatedResult `json:"total"`
	Severity string                  `json:"severity"`
}
