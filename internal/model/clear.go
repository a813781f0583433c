package model

import (
	"time"

	"gorm.io/datatypes"
)

// ClearInstanceSuffix 清空排班编排实例键后缀
const ClearInstanceSuffix = "-ClearSchedule"

// ClearInstanceKey 返回团队的清空编排实例键，同时用作单实例租约键与状态主键
func ClearInstanceKey(teamID string) string {
	return teamID + ClearInstanceSuffix
}

// 编排状态
const (
	ClearStatusRunning           = "running"
	ClearStatusSucceeded         = "succeeded"
	ClearStatusAttemptsExhausted = "attempts_exhausted"
)

// ClearRequest 一个团队的批量删除任务
//
// QueryEndDate 非空时仅用于放宽拉取窗口，实际删除过滤仍以 EndDate 为界。
type ClearRequest struct {
	TeamID       string     `json:"team_id"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      time.Time  `json:"end_date"`
	QueryEndDate *time.Time `json:"query_end_date,omitempty"`
	BatchSize    int        `json:"batch_size"`
	RequestedBy  string     `json:"requested_by,omitempty"`
}

// EffectiveEndDate 拉取窗口的结束时间
func (r ClearRequest) EffectiveEndDate() time.Time {
	if r.QueryEndDate != nil {
		return *r.QueryEndDate
	}
	return r.EndDate
}

// IterationResult 单次拉取+删除的结果
type IterationResult struct {
	DeletedCount int  `json:"deleted_count"`
	FailedCount  int  `json:"failed_count"`
	Finished     bool `json:"finished"`
}

// AccumulatedResult 编排实例跨迭代的累计结果
type AccumulatedResult struct {
	CreatedCount   int  `json:"created_count"`
	UpdatedCount   int  `json:"updated_count"`
	DeletedCount   int  `json:"deleted_count"`
	FailedCount    int  `json:"failed_count"`
	SkippedCount   int  `json:"skipped_count"`
	IterationCount int  `json:"iteration_count"`
	Finished       bool `json:"finished"`
}

// ClearOrchestration 清空排班编排状态表 — 对应 clear_orchestrations
// 每次迭代完成后作为检查点写入，宿主重启后从最后一次完成的迭代继续
type ClearOrchestration struct {
	InstanceKey    string                                `gorm:"type:varchar(160);primaryKey"               json:"instance_key"`
	TeamID         string                                `gorm:"type:varchar(128);not null"                 json:"team_id"`
	Request        datatypes.JSONType[ClearRequest]      `gorm:"type:jsonb;not null"                        json:"request"`
	Status         string                                `gorm:"type:varchar(32);not null;default:'running'" json:"status"` // running | succeeded | attempts_exhausted
	IterationCount int                                   `gorm:"not null;default:0"                         json:"iteration_count"`
	MaxAttempts    int                                   `gorm:"not null"                                   json:"max_attempts"`
	Result         datatypes.JSONType[AccumulatedResult] `gorm:"type:jsonb;not null"                        json:"result"`
	LastError      *string                               `gorm:"type:text"                                  json:"last_error,omitempty"`
	CompletedAt    *time.Time                            `json:"completed_at,omitempty"`
	BaseModel
}

func (ClearOrchestration) TableName() string { return "clear_orchestrations" }

// IsTerminal 是否已到达终态
func (c *ClearOrchestration) IsTerminal() bool {
	return c.Status == ClearStatusSucceeded || c.Status == ClearStatusAttemptsExhausted
}
