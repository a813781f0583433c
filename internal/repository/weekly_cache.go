package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shifts-connector/internal/model"
	"shifts-connector/pkg/redis"
)

// WeeklyCache 周快照存储接口（每个团队每周一份）
//
// 约定：
//   - Load 在快照不存在时返回空快照，不返回 not found 错误
//   - 各调用相互独立，不保证跨调用事务；同一团队同一周仅单线程使用
type WeeklyCache interface {
	Load(ctx context.Context, teamID string, weekStart time.Time) (*model.Snapshot, error)
	Save(ctx context.Context, teamID string, weekStart time.Time, snapshot *model.Snapshot) error
	Delete(ctx context.Context, teamID string, weekStart time.Time) error
	// DeleteTeam 团队断开连接时删除其全部周快照
	DeleteTeam(ctx context.Context, teamID string) error
}

// ── 数据库实现 ──

type weeklyCacheRepo struct {
	db *gorm.DB
}

func NewWeeklyCacheRepo(db *gorm.DB) WeeklyCache {
	return &weeklyCacheRepo{db: db}
}

func (r *weeklyCacheRepo) Load(ctx context.Context, teamID string, weekStart time.Time) (*model.Snapshot, error) {
	var row model.WeeklySnapshot
	err := r.db.WithContext(ctx).
		Where("team_id = ? AND week_start = ?", teamID, model.WeekStartOf(weekStart)).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.Snapshot{}, nil
	}
	if err != nil {
		return nil, err
	}
	return row.ToSnapshot(), nil
}

func (r *weeklyCacheRepo) Save(ctx context.Context, teamID string, weekStart time.Time, snapshot *model.Snapshot) error {
	row := model.NewWeeklySnapshot(teamID, weekStart, snapshot)
	row.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "team_id"}, {Name: "week_start"}},
			DoUpdates: clause.AssignmentColumns([]string{"tracked", "skipped_ids", "updated_at"}),
		}).
		Create(row).Error
}

func (r *weeklyCacheRepo) Delete(ctx context.Context, teamID string, weekStart time.Time) error {
	return r.db.WithContext(ctx).
		Where("team_id = ? AND week_start = ?", teamID, model.WeekStartOf(weekStart)).
		Delete(&model.WeeklySnapshot{}).Error
}

func (r *weeklyCacheRepo) DeleteTeam(ctx context.Context, teamID string) error {
	return r.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Delete(&model.WeeklySnapshot{}).Error
}

// ── Redis 读缓存 ──

const snapshotKeyPrefix = "weekly_snapshot:"

func snapshotKey(teamID string, weekStart time.Time) string {
	return snapshotKeyPrefix + teamID + ":" + model.WeekStartOf(weekStart).Format("2006-01-02")
}

// cachedWeeklyCache 在数据库实现前加一层 Redis 读缓存
// 写入与删除先落库再失效缓存；Redis 出错时降级直连数据库
type cachedWeeklyCache struct {
	inner  WeeklyCache
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedWeeklyCache rdb 为 nil 时直接返回 inner
func NewCachedWeeklyCache(inner WeeklyCache, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) WeeklyCache {
	if rdb == nil {
		return inner
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &cachedWeeklyCache{inner: inner, rdb: rdb, ttl: ttl, logger: logger}
}

func (c *cachedWeeklyCache) Load(ctx context.Context, teamID string, weekStart time.Time) (*model.Snapshot, error) {
	key := snapshotKey(teamID, weekStart)

	raw, found, err := c.rdb.GetBytes(ctx, key)
	if err != nil {
		c.logger.Warn("读取快照缓存失败，降级查询数据库", zap.String("key", key), zap.Error(err))
	} else if found {
		var snap model.Snapshot
		if err := json.Unmarshal(raw, &snap); err == nil {
			return &snap, nil
		}
		c.logger.Warn("快照缓存内容损坏，已忽略", zap.String("key", key))
	}

	snap, err := c.inner.Load(ctx, teamID, weekStart)
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(snap); err == nil {
		if err := c.rdb.SetBytes(ctx, key, b, c.ttl); err != nil {
			c.logger.Warn("写入快照缓存失败", zap.String("key", key), zap.Error(err))
		}
	}
	return snap, nil
}

func (c *cachedWeeklyCache) Save(ctx context.Context, teamID string, weekStart time.Time, snapshot *model.Snapshot) error {
	if err := c.inner.Save(ctx, teamID, weekStart, snapshot); err != nil {
		return err
	}
	c.invalidate(ctx, snapshotKey(teamID, weekStart))
	return nil
}

func (c *cachedWeeklyCache) Delete(ctx context.Context, teamID string, weekStart time.Time) error {
	if err := c.inner.Delete(ctx, teamID, weekStart); err != nil {
		return err
	}
	c.invalidate(ctx, snapshotKey(teamID, weekStart))
	return nil
}

func (c *cachedWeeklyCache) DeleteTeam(ctx context.Context, teamID string) error {
	if err := c.inner.DeleteTeam(ctx, teamID); err != nil {
		return err
	}
	if _, err := c.rdb.DeleteByPrefix(ctx, snapshotKeyPrefix+teamID+":"); err != nil {
		c.logger.Warn("清理团队快照缓存失败", zap.String("team_id", teamID), zap.Error(err))
	}
	return nil
}

func (c *cachedWeeklyCache) invalidate(ctx context.Context, key string) {
	if err := c.rdb.Delete(ctx, key); err != nil {
		c.logger.Warn("失效快照缓存失败", zap.String("key", key), zap.Error(err))
	}
}
