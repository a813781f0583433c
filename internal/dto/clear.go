package dto

import "shifts-connector/internal/model"

// ── 批量清空模块 DTO ──

// ClearScheduleRequest 清空排班请求
// 未给出 start_date / end_date 时按 past_weeks / future_weeks 相对当前周推算
type ClearScheduleRequest struct {
	TeamID       string  `json:"-"` // 来自路径参数
	RequestedBy  string  `json:"-"` // 来自 JWT subject
	StartDate    string  `json:"start_date"     binding:"omitempty,datetime=2006-01-02"`
	EndDate      string  `json:"end_date"       binding:"omitempty,datetime=2006-01-02"`
	QueryEndDate *string `json:"query_end_date" binding:"omitempty,datetime=2006-01-02"`
	PastWeeks    *int    `json:"past_weeks"     binding:"omitempty,min=0,max=52"`
	FutureWeeks  *int    `json:"future_weeks"   binding:"omitempty,min=0,max=52"`
	BatchSize    int     `json:"batch_size"     binding:"omitempty,min=1"`
}

// ── 响应 ──

// ClearAcceptedResponse 清空编排已受理
type ClearAcceptedResponse struct {
	InstanceKey  string  `json:"instance_key"`
	TeamID       string  `json:"team_id"`
	StartDate    string  `json:"start_date"`
	EndDate      string  `json:"end_date"`
	QueryEndDate *string `json:"query_end_date,omitempty"`
	BatchSize    int     `json:"batch_size"`
	MaxAttempts  int     `json:"max_attempts"`
}

// ClearStatusResponse 清空编排状态
type ClearStatusResponse struct {
	InstanceKey    string                  `json:"instance_key"`
	TeamID         string                  `json:"team_id"`
	Status         string                  `json:"status"` // running | succeeded | attempts_exhausted
	IterationCount int                     `json:"iteration_count"`
	MaxAttempts    int                     `json:"max_attempts"`
	Result         model.AccumulatedResult `json:"result"`
	Severity       string                  `json:"severity"` // Information | Warning
	LastError      *string                 `json:"last_error,omitempty"`
	StartDate      string                  `json:"start_date"`
	EndDate        string                  `json:"end_date"`
	RequestedBy    string                  `json:"requested_by,omitempty"`
	UpdatedAt      string                  `json:"updated_at"`
	CompletedAt    *string                 `json:"completed_at,omitempty"`
}
