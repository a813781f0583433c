//go:build integration

package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"shifts-connector/config"
	"shifts-connector/internal/model"
	"shifts-connector/internal/repository"
	pkgerrors "shifts-connector/pkg/errors"
	"shifts-connector/pkg/redis"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=postgres password=postgres dbname=shifts_connector_test sslmode=disable TimeZone=UTC"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	// 自动迁移测试表结构
	err = testDB.AutoMigrate(
		&model.WeeklySnapshot{},
		&model.ClearOrchestration{},
		&model.ScheduleLease{},
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "AutoMigrate 失败: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	os.Exit(code)
}

// uniqueTeam 每个用例独立的团队 ID，并在结束时清理其数据
func uniqueTeam(t *testing.T) string {
	t.Helper()
	team := fmt.Sprintf("it-team-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		testDB.Where("team_id = ?", team).Delete(&model.WeeklySnapshot{})
		testDB.Where("team_id = ?", team).Delete(&model.ClearOrchestration{})
		testDB.Where("lease_key LIKE ?", team+"-%").Delete(&model.ScheduleLease{})
	})
	return team
}

var itMonday = time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)

// ═══════════════════════════════════════════════════════════
// Test: WeeklyCache
// ═══════════════════════════════════════════════════════════

func TestWeeklyCache_SaveLoadDelete(t *testing.T) {
	team := uniqueTeam(t)
	ctx := context.Background()
	repo := repository.NewRepository(testDB, nil, 0, zap.NewNop())

	// 不存在时返回空快照
	empty, err := repo.WeeklyCache.Load(ctx, team, itMonday)
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	if !empty.IsEmpty() {
		t.Fatalf("期望空快照，实际 %+v", empty)
	}

	snap := &model.Snapshot{
		Tracked: []model.ShiftRecord{{
			SourceID:      "src-1",
			DestinationID: "dst-1",
			StartUTC:      itMonday.Add(9 * time.Hour),
			EndUTC:        itMonday.Add(17 * time.Hour),
			EmployeeName:  "张三",
		}},
		SkippedIDs: []string{"src-2"},
	}
	// 周中任意时间都归入同一周
	if err := repo.WeeklyCache.Save(ctx, team, itMonday.Add(50*time.Hour), snap); err != nil {
		t.Fatalf("Save 失败: %v", err)
	}

	got, err := repo.WeeklyCache.Load(ctx, team, itMonday)
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	if len(got.Tracked) != 1 || got.Tracked[0].DestinationID != "dst-1" {
		t.Errorf("快照内容不符: %+v", got.Tracked)
	}
	if len(got.SkippedIDs) != 1 || got.SkippedIDs[0] != "src-2" {
		t.Errorf("延后 ID 不符: %+v", got.SkippedIDs)
	}

	// 覆盖写入
	snap.SkippedIDs = nil
	if err := repo.WeeklyCache.Save(ctx, team, itMonday, snap); err != nil {
		t.Fatalf("二次 Save 失败: %v", err)
	}
	got, _ = repo.WeeklyCache.Load(ctx, team, itMonday)
	if len(got.SkippedIDs) != 0 {
		t.Errorf("期望延后 ID 被清空，实际 %+v", got.SkippedIDs)
	}

	if err := repo.WeeklyCache.Delete(ctx, team, itMonday); err != nil {
		t.Fatalf("Delete 失败: %v", err)
	}
	got, _ = repo.WeeklyCache.Load(ctx, team, itMonday)
	if !got.IsEmpty() {
		t.Errorf("删除后期望空快照")
	}
}

func TestWeeklyCache_DeleteTeam(t *testing.T) {
	team := uniqueTeam(t)
	other := uniqueTeam(t)
	ctx := context.Background()
	repo := repository.NewRepository(testDB, nil, 0, zap.NewNop())

	snap := &model.Snapshot{Tracked: []model.ShiftRecord{{SourceID: "src-1", StartUTC: itMonday, EndUTC: itMonday.Add(time.Hour)}}}
	for i := 0; i < 3; i++ {
		if err := repo.WeeklyCache.Save(ctx, team, itMonday.AddDate(0, 0, 7*i), snap); err != nil {
			t.Fatalf("Save 失败: %v", err)
		}
	}
	repo.WeeklyCache.Save(ctx, other, itMonday, snap)

	if err := repo.WeeklyCache.DeleteTeam(ctx, team); err != nil {
		t.Fatalf("DeleteTeam 失败: %v", err)
	}

	var count int64
	testDB.Model(&model.WeeklySnapshot{}).Where("team_id = ?", team).Count(&count)
	if count != 0 {
		t.Errorf("期望团队快照全部删除，剩余 %d", count)
	}
	got, _ := repo.WeeklyCache.Load(ctx, other, itMonday)
	if len(got.Tracked) != 1 {
		t.Error("其他团队的快照不应受影响")
	}
}

// ═══════════════════════════════════════════════════════════
// Test: ClearStateRepository
// ═══════════════════════════════════════════════════════════

func TestClearState_SaveGetListRunning(t *testing.T) {
	team := uniqueTeam(t)
	ctx := context.Background()
	repo := repository.NewClearStateRepo(testDB)
	key := model.ClearInstanceKey(team)

	if _, err := repo.GetByInstanceKey(ctx, key); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("期望 ErrRecordNotFound，实际 %v", err)
	}

	state := &model.ClearOrchestration{
		InstanceKey: key,
		TeamID:      team,
		Request: datatypes.NewJSONType(model.ClearRequest{
			TeamID:    team,
			StartDate: itMonday,
			EndDate:   itMonday.AddDate(0, 0, 14),
			BatchSize: 50,
		}),
		Status:      model.ClearStatusRunning,
		MaxAttempts: 20,
		Result:      datatypes.NewJSONType(model.AccumulatedResult{}),
	}
	if err := repo.Save(ctx, state); err != nil {
		t.Fatalf("Save 失败: %v", err)
	}

	running, err := repo.ListRunning(ctx)
	if err != nil {
		t.Fatalf("ListRunning 失败: %v", err)
	}
	if !containsKey(running, key) {
		t.Error("running 实例应出现在 ListRunning 中")
	}

	// 检查点覆盖写入
	state.IterationCount = 2
	state.Result = datatypes.NewJSONType(model.AccumulatedResult{DeletedCount: 7, IterationCount: 2, Finished: true})
	state.Status = model.ClearStatusSucceeded
	now := time.Now().UTC()
	state.CompletedAt = &now
	if err := repo.Save(ctx, state); err != nil {
		t.Fatalf("二次 Save 失败: %v", err)
	}

	got, err := repo.GetByInstanceKey(ctx, key)
	if err != nil {
		t.Fatalf("GetByInstanceKey 失败: %v", err)
	}
	if got.Status != model.ClearStatusSucceeded || got.IterationCount != 2 {
		t.Errorf("状态未更新: %+v", got)
	}
	if got.Result.Data().DeletedCount != 7 || got.Request.Data().BatchSize != 50 {
		t.Errorf("JSON 列内容不符: result=%+v request=%+v", got.Result.Data(), got.Request.Data())
	}

	running, _ = repo.ListRunning(ctx)
	if containsKey(running, key) {
		t.Error("终态实例不应出现在 ListRunning 中")
	}
}

func TestClearState_RestartOverwritesCreatedAt(t *testing.T) {
	team := uniqueTeam(t)
	ctx := context.Background()
	repo := repository.NewClearStateRepo(testDB)
	key := model.ClearInstanceKey(team)

	first := time.Now().UTC().Add(-2 * time.Hour).Truncate(time.Second)
	finished := first.Add(time.Minute)
	old := &model.ClearOrchestration{
		InstanceKey: key,
		TeamID:      team,
		Request:     datatypes.NewJSONType(model.ClearRequest{TeamID: team, StartDate: itMonday, EndDate: itMonday.AddDate(0, 0, 7), BatchSize: 50}),
		Status:      model.ClearStatusSucceeded,
		MaxAttempts: 20,
		Result:      datatypes.NewJSONType(model.AccumulatedResult{Finished: true}),
		CompletedAt: &finished,
	}
	old.CreatedAt = first
	if err := repo.Save(ctx, old); err != nil {
		t.Fatalf("Save 失败: %v", err)
	}

	// 终态后重新发起，覆盖同一行
	second := time.Now().UTC().Truncate(time.Second)
	fresh := &model.ClearOrchestration{
		InstanceKey: key,
		TeamID:      team,
		Request:     datatypes.NewJSONType(model.ClearRequest{TeamID: team, StartDate: itMonday, EndDate: itMonday.AddDate(0, 0, 14), BatchSize: 50}),
		Status:      model.ClearStatusRunning,
		MaxAttempts: 20,
		Result:      datatypes.NewJSONType(model.AccumulatedResult{}),
	}
	fresh.CreatedAt = second
	if err := repo.Save(ctx, fresh); err != nil {
		t.Fatalf("二次 Save 失败: %v", err)
	}

	got, err := repo.GetByInstanceKey(ctx, key)
	if err != nil {
		t.Fatalf("GetByInstanceKey 失败: %v", err)
	}
	if !got.CreatedAt.Equal(second) {
		t.Errorf("重新发起后 created_at 应为 %v，实际 %v", second, got.CreatedAt)
	}
	if got.Status != model.ClearStatusRunning || got.CompletedAt != nil {
		t.Errorf("新实例应为 running 且无完成时间: %+v", got)
	}
}

func containsKey(states []model.ClearOrchestration, key string) bool {
	for _, s := range states {
		if s.InstanceKey == key {
			return true
		}
	}
	return false
}

// ═══════════════════════════════════════════════════════════
// Test: LeaseRepository
// ═══════════════════════════════════════════════════════════

func TestLease_AcquireRenewRelease(t *testing.T) {
	team := uniqueTeam(t)
	ctx := context.Background()
	repo := repository.NewLeaseRepo(testDB)
	key := model.ClearInstanceKey(team)

	ok, err := repo.Acquire(ctx, key, "host-a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("首次 Acquire 应成功: ok=%v err=%v", ok, err)
	}

	ok, err = repo.Acquire(ctx, key, "host-b", time.Minute)
	if err != nil {
		t.Fatalf("Acquire 失败: %v", err)
	}
	if ok {
		t.Fatal("租约未过期时其他持有者不应获取成功")
	}

	if err := repo.Renew(ctx, key, "host-a", time.Minute); err != nil {
		t.Errorf("持有者续约应成功: %v", err)
	}
	if err := repo.Renew(ctx, key, "host-b", time.Minute); !errors.Is(err, pkgerrors.ErrLeaseNotHeld) {
		t.Errorf("非持有者续约期望 ErrLeaseNotHeld，实际 %v", err)
	}

	// 非持有者释放无效
	repo.Release(ctx, key, "host-b")
	if ok, _ := repo.Acquire(ctx, key, "host-b", time.Minute); ok {
		t.Fatal("非持有者释放不应生效")
	}

	if err := repo.Release(ctx, key, "host-a"); err != nil {
		t.Fatalf("Release 失败: %v", err)
	}
	if ok, _ := repo.Acquire(ctx, key, "host-b", time.Minute); !ok {
		t.Error("释放后应可被其他持有者获取")
	}
}

func TestLease_ExpiredLeaseIsReclaimed(t *testing.T) {
	team := uniqueTeam(t)
	ctx := context.Background()
	repo := repository.NewLeaseRepo(testDB)
	key := team + "-Sync"

	if ok, err := repo.Acquire(ctx, key, "host-a", 10*time.Millisecond); err != nil || !ok {
		t.Fatalf("Acquire 应成功: ok=%v err=%v", ok, err)
	}
	time.Sleep(50 * time.Millisecond)

	ok, err := repo.Acquire(ctx, key, "host-b", time.Minute)
	if err != nil || !ok {
		t.Fatalf("过期租约应可被接管: ok=%v err=%v", ok, err)
	}
	if err := repo.Renew(ctx, key, "host-a", time.Minute); !errors.Is(err, pkgerrors.ErrLeaseNotHeld) {
		t.Errorf("原持有者续约期望 ErrLeaseNotHeld，实际 %v", err)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Redis 读缓存（需设置 TEST_REDIS_ADDR）
// ═══════════════════════════════════════════════════════════

func TestCachedWeeklyCache_InvalidatesOnSave(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("未设置 TEST_REDIS_ADDR")
	}
	rdb, err := redis.NewClient(&config.RedisConfig{Addr: addr}, zap.NewNop())
	if err != nil {
		t.Fatalf("连接 Redis 失败: %v", err)
	}
	defer rdb.Close()

	team := uniqueTeam(t)
	ctx := context.Background()
	repo := repository.NewRepository(testDB, rdb, time.Minute, zap.NewNop())
	defer repo.WeeklyCache.DeleteTeam(ctx, team)

	first := &model.Snapshot{Tracked: []model.ShiftRecord{{SourceID: "src-1", StartUTC: itMonday, EndUTC: itMonday.Add(time.Hour)}}}
	if err := repo.WeeklyCache.Save(ctx, team, itMonday, first); err != nil {
		t.Fatalf("Save 失败: %v", err)
	}
	// 第一次 Load 填充缓存
	if got, _ := repo.WeeklyCache.Load(ctx, team, itMonday); len(got.Tracked) != 1 {
		t.Fatalf("期望 1 个班次，实际 %d", len(got.Tracked))
	}

	second := &model.Snapshot{Tracked: append(first.Tracked, model.ShiftRecord{SourceID: "src-2", StartUTC: itMonday, EndUTC: itMonday.Add(time.Hour)})}
	if err := repo.WeeklyCache.Save(ctx, team, itMonday, second); err != nil {
		t.Fatalf("Save 失败: %v", err)
	}
	if got, _ := repo.WeeklyCache.Load(ctx, team, itMonday); len(got.Tracked) != 2 {
		t.Errorf("Save 后缓存应失效，期望 2 个班次，实际 %d", len(got.Tracked))
	}

	if err := repo.WeeklyCache.DeleteTeam(ctx, team); err != nil {
		t.Fatalf("DeleteTeam 失败: %v", err)
	}
	if got, _ := repo.WeeklyCache.Load(ctx, team, itMonday); !got.IsEmpty() {
		t.Error("DeleteTeam 后缓存与数据库均应为空")
	}
}
