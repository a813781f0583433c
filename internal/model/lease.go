package model

import "time"

// ScheduleLease 单实例租约表 — 对应 schedule_leases
type ScheduleLease struct {
	LeaseKey   string    `gorm:"type:varchar(160);primaryKey" json:"lease_key"`
	Owner      string    `gorm:"type:varchar(64);not null"    json:"owner"`
	AcquiredAt time.Time `gorm:"not null"                     json:"acquired_at"`
	ExpiresAt  time.Time `gorm:"not null"                     json:"expires_at"`
}

func (ScheduleLease) TableName() string { return "schedule_leases" }
