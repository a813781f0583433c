package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shifts-connector/internal/model"
	pkgerrors "shifts-connector/pkg/errors"
)

// LeaseRepository 单实例租约数据访问接口
//
// Acquire 为条件插入：键不存在或已有租约过期时成功，否则返回 false。
// Renew / Release 仅对持有者生效。
type LeaseRepository interface {
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	// Renew 租约已不属于 owner 时返回 pkgerrors.ErrLeaseNotHeld
	Renew(ctx context.Context, key, owner string, ttl time.Duration) error
	Release(ctx context.Context, key, owner string) error
}

type leaseRepo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewLeaseRepo(db *gorm.DB) LeaseRepository {
	return &leaseRepo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *leaseRepo) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	now := r.now()
	lease := &model.ScheduleLease{
		LeaseKey:   key,
		Owner:      owner,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}

	// INSERT ... ON CONFLICT (lease_key) DO UPDATE ... WHERE schedule_leases.expires_at < now
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "lease_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"owner", "acquired_at", "expires_at"}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Lt{Column: clause.Column{Table: model.ScheduleLease{}.TableName(), Name: "expires_at"}, Value: now},
			}},
		}).
		Create(lease)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *leaseRepo) Renew(ctx context.Context, key, owner string, ttl time.Duration) error {
	result := r.db.WithContext(ctx).
		Model(&model.ScheduleLease{}).
		Where("lease_key = ? AND owner = ?", key, owner).
		Update("expires_at", r.now().Add(ttl))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrLeaseNotHeld
	}
	return nil
}

func (r *leaseRepo) Release(ctx context.Context, key, owner string) error {
	return r.db.WithContext(ctx).
		Where("lease_key = ? AND owner = ?", key, owner).
		Delete(&model.ScheduleLease{}).Error
}
