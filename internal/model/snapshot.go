package model

import (
	"time"

	"gorm.io/datatypes"
)

// Snapshot 某团队某一周已跟踪的班次集合
// SkippedIDs 记录上一个被截断的同步周期延后处理的班次身份
type Snapshot struct {
	Tracked    []ShiftRecord `json:"tracked"`
	SkippedIDs []string      `json:"skipped_ids"`
}

// IsEmpty 快照中既无跟踪班次也无延后记录
func (s *Snapshot) IsEmpty() bool {
	return s == nil || (len(s.Tracked) == 0 && len(s.SkippedIDs) == 0)
}

// WeeklySnapshot 周快照表 — 对应 weekly_snapshots
type WeeklySnapshot struct {
	TeamID     string                            `gorm:"type:varchar(128);primaryKey"           json:"team_id"`
	WeekStart  time.Time                         `gorm:"type:date;primaryKey"                   json:"week_start"`
	Tracked    datatypes.JSONType[[]ShiftRecord] `gorm:"type:jsonb;not null"                    json:"tracked"`
	SkippedIDs datatypes.JSONType[[]string]      `gorm:"type:jsonb;not null;column:skipped_ids" json:"skipped_ids"`
	BaseModel
}

func (WeeklySnapshot) TableName() string { return "weekly_snapshots" }

// NewWeeklySnapshot 由内存快照构造持久化行
func NewWeeklySnapshot(teamID string, weekStart time.Time, s *Snapshot) *WeeklySnapshot {
	tracked := s.Tracked
	if tracked == nil {
		tracked = []ShiftRecord{}
	}
	skipped := s.SkippedIDs
	if skipped == nil {
		skipped = []string{}
	}
	return &WeeklySnapshot{
		TeamID:     teamID,
		WeekStart:  WeekStartOf(weekStart),
		Tracked:    datatypes.NewJSONType(tracked),
		SkippedIDs: datatypes.NewJSONType(skipped),
	}
}

// ToSnapshot 转换为内存快照
func (w *WeeklySnapshot) ToSnapshot() *Snapshot {
	return &Snapshot{
		Tracked:    w.Tracked.Data(),
		SkippedIDs: w.SkippedIDs.Data(),
	}
}
