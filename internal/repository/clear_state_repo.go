package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shifts-connector/internal/model"
)

// ClearStateRepository 清空编排状态（检查点）数据访问接口
type ClearStateRepository interface {
	// Save 写入检查点（不存在则创建）
	Save(ctx context.Context, state *model.ClearOrchestration) error
	// GetByInstanceKey 不存在时返回 gorm.ErrRecordNotFound
	GetByInstanceKey(ctx context.Context, instanceKey string) (*model.ClearOrchestration, error)
	// ListRunning 列出所有未到达终态的实例
	ListRunning(ctx context.Context) ([]model.ClearOrchestration, error)
}

type clearStateRepo struct {
	db *gorm.DB
}

func NewClearStateRepo(db *gorm.DB) ClearStateRepository {
	return &clearStateRepo{db: db}
}

func (r *clearStateRepo) Save(ctx context.Context, state *model.ClearOrchestration) error {
	state.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "instance_key"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"team_id", "request", "status", "iteration_count", "max_attempts",
				"result", "last_error", "completed_at", "created_at", "updated_at",
			}),
		}).
		Create(state).Error
}

func (r *clearStateRepo) GetByInstanceKey(ctx context.Context, instanceKey string) (*model.ClearOrchestration, error) {
	var state model.ClearOrchestration
	err := r.db.WithContext(ctx).
		Where("instance_key = ?", instanceKey).
		First(&state).Error
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *clearStateRepo) ListRunning(ctx context.Context) ([]model.ClearOrchestration, error) {
	var states []model.ClearOrchestration
	err := r.db.WithContext(ctx).
		Where("status = ?", model.ClearStatusRunning).
		Order("updated_at ASC").
		Find(&states).Error
	return states, err
}
