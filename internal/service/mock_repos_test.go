package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"shifts-connector/internal/client"
	"shifts-connector/internal/model"
	"shifts-connector/internal/repository"
	pkgerrors "shifts-connector/pkg/errors"
)

// ── Mock WeeklyCache ──

type mockWeeklyCache struct {
	mu        sync.Mutex
	snapshots map[string]*model.Snapshot
	saves     int
}

func newMockWeeklyCache() *mockWeeklyCache {
	return &mockWeeklyCache{snapshots: make(map[string]*model.Snapshot)}
}

func weekKey(teamID string, weekStart time.Time) string {
	return teamID + "|" + model.WeekStartOf(weekStart).Format("2006-01-02")
}

func cloneSnapshot(s *model.Snapshot) *model.Snapshot {
	return &model.Snapshot{
		Tracked:    append([]model.ShiftRecord(nil), s.Tracked...),
		SkippedIDs: append([]string(nil), s.SkippedIDs...),
	}
}

func (m *mockWeeklyCache) Load(_ context.Context, teamID string, weekStart time.Time) (*model.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.snapshots[weekKey(teamID, weekStart)]; ok {
		return cloneSnapshot(s), nil
	}
	return &model.Snapshot{}, nil
}

func (m *mockWeeklyCache) Save(_ context.Context, teamID string, weekStart time.Time, snapshot *model.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[weekKey(teamID, weekStart)] = cloneSnapshot(snapshot)
	m.saves++
	return nil
}

func (m *mockWeeklyCache) Delete(_ context.Context, teamID string, weekStart time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, weekKey(teamID, weekStart))
	return nil
}

func (m *mockWeeklyCache) DeleteTeam(_ context.Context, teamID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.snapshots {
		if len(k) > len(teamID) && k[:len(teamID)+1] == teamID+"|" {
			delete(m.snapshots, k)
		}
	}
	return nil
}

func (m *mockWeeklyCache) get(teamID string, weekStart time.Time) *model.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.snapshots[weekKey(teamID, weekStart)]; ok {
		return cloneSnapshot(s)
	}
	return nil
}

// ── Mock ClearStateRepository ──

type mockClearStateRepo struct {
	mu      sync.Mutex
	states  map[string]model.ClearOrchestration
	history []model.ClearOrchestration
}

func newMockClearStateRepo() *mockClearStateRepo {
	return &mockClearStateRepo{states: make(map[string]model.ClearOrchestration)}
}

func (m *mockClearStateRepo) Save(_ context.Context, state *model.ClearOrchestration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state.UpdatedAt = time.Now().UTC()
	m.states[state.InstanceKey] = *state
	m.history = append(m.history, *state)
	return nil
}

func (m *mockClearStateRepo) GetByInstanceKey(_ context.Context, instanceKey string) (*model.ClearOrchestration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.states[instanceKey]; ok {
		return &s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockClearStateRepo) ListRunning(_ context.Context) ([]model.ClearOrchestration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ClearOrchestration
	for _, s := range m.states {
		if s.Status == model.ClearStatusRunning {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstanceKey < out[j].InstanceKey })
	return out, nil
}

func (m *mockClearStateRepo) get(instanceKey string) (model.ClearOrchestration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[instanceKey]
	return s, ok
}

func (m *mockClearStateRepo) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history)
}

// ── Mock LeaseRepository ──

type mockLease struct {
	owner     string
	expiresAt time.Time
}

type mockLeaseRepo struct {
	mu     sync.Mutex
	leases map[string]mockLease
	now    func() time.Time
}

func newMockLeaseRepo() *mockLeaseRepo {
	return &mockLeaseRepo{leases: make(map[string]mockLease), now: time.Now}
}

func (m *mockLeaseRepo) Acquire(_ context.Context, key, owner string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if l, ok := m.leases[key]; ok && !l.expiresAt.Before(now) {
		return false, nil
	}
	m.leases[key] = mockLease{owner: owner, expiresAt: now.Add(ttl)}
	return true, nil
}

func (m *mockLeaseRepo) Renew(_ context.Context, key, owner string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leases[key]
	if !ok || l.owner != owner {
		return pkgerrors.ErrLeaseNotHeld
	}
	l.expiresAt = m.now().Add(ttl)
	m.leases[key] = l
	return nil
}

func (m *mockLeaseRepo) Release(_ context.Context, key, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.leases[key]; ok && l.owner == owner {
		delete(m.leases, key)
	}
	return nil
}

// hold 模拟其他进程持有租约
func (m *mockLeaseRepo) hold(key string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leases[key] = mockLease{owner: "other-host", expiresAt: m.now().Add(ttl)}
}

func (m *mockLeaseRepo) held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.leases[key]
	return ok
}

// ── 测试用 Repository 聚合 ──

type testRepos struct {
	cache *mockWeeklyCache
	state *mockClearStateRepo
	lease *mockLeaseRepo
}

func newTestRepos() *testRepos {
	return &testRepos{
		cache: newMockWeeklyCache(),
		state: newMockClearStateRepo(),
		lease: newMockLeaseRepo(),
	}
}

func (r *testRepos) toRepository() *repository.Repository {
	return &repository.Repository{
		WeeklyCache: r.cache,
		ClearState:  r.state,
		Lease:       r.lease,
	}
}

// ── Fake DestinationClient ──

type fakeDestination struct {
	mu     sync.Mutex
	shifts map[string]model.ShiftRecord // DestinationID → 班次
	nextID int

	// listErrs 接下来若干次 ListShifts 返回错误
	listErrs  int
	listCalls int
	// reappear 删除成功但班次仍然存在
	reappear bool
	// failDelete / failCreate / failUpdate 以 SourceID 指定失败项
	failDelete map[string]bool
	failCreate map[string]bool
	failUpdate map[string]bool
	// missing 删除时返回 404 的 DestinationID
	missing map[string]bool
	// deleteDelay 每次删除在持锁前阻塞的时长，用于观测并发度
	deleteDelay time.Duration
	inFlight    atomic.Int64
	maxInFlight atomic.Int64

	created []string
	updated []string
	deleted []string
}

func newFakeDestination() *fakeDestination {
	return &fakeDestination{
		shifts:     make(map[string]model.ShiftRecord),
		failDelete: make(map[string]bool),
		failCreate: make(map[string]bool),
		failUpdate: make(map[string]bool),
		missing:    make(map[string]bool),
	}
}

// seed 写入 n 个开始于 start 之后、每个间隔 1 小时的班次
func (f *fakeDestination) seed(n int, start time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < n; i++ {
		f.nextID++
		s := model.ShiftRecord{
			SourceID:      fmt.Sprintf("src-%03d", f.nextID),
			DestinationID: fmt.Sprintf("dst-%03d", f.nextID),
			StartUTC:      start.Add(time.Duration(i) * time.Hour),
			EndUTC:        start.Add(time.Duration(i)*time.Hour + 30*time.Minute),
		}
		f.shifts[s.DestinationID] = s
	}
}

func (f *fakeDestination) put(s model.ShiftRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shifts[s.DestinationID] = s
}

func (f *fakeDestination) ListShifts(_ context.Context, _ string, start, end time.Time, maxCount int) ([]model.ShiftRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErrs > 0 {
		f.listErrs--
		return nil, errors.New("destination unavailable")
	}

	var out []model.ShiftRecord
	for _, s := range f.shifts {
		if s.StartUTC.Before(end) && s.EndUTC.After(start) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartUTC.Equal(out[j].StartUTC) {
			return out[i].StartUTC.Before(out[j].StartUTC)
		}
		return out[i].DestinationID < out[j].DestinationID
	})
	if len(out) > maxCount {
		out = out[:maxCount]
	}
	return out, nil
}

func (f *fakeDestination) CreateShift(_ context.Context, _ string, shift model.ShiftRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate[shift.SourceID] {
		return "", errors.New("create rejected")
	}
	f.nextID++
	shift.DestinationID = fmt.Sprintf("dst-%03d", f.nextID)
	f.shifts[shift.DestinationID] = shift
	f.created = append(f.created, shift.SourceID)
	return shift.DestinationID, nil
}

func (f *fakeDestination) UpdateShift(_ context.Context, _ string, shift model.ShiftRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate[shift.SourceID] {
		return errors.New("update rejected")
	}
	f.shifts[shift.DestinationID] = shift
	f.updated = append(f.updated, shift.SourceID)
	return nil
}

func (f *fakeDestination) DeleteShift(_ context.Context, _ string, shift model.ShiftRecord) error {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxInFlight.Load()
		if n <= seen || f.maxInFlight.CompareAndSwap(seen, n) {
			break
		}
	}
	if f.deleteDelay > 0 {
		time.Sleep(f.deleteDelay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete[shift.SourceID] {
		return errors.New("delete rejected")
	}
	if f.missing[shift.DestinationID] {
		return &client.StatusError{Method: "DELETE", URL: "/shifts/" + shift.DestinationID, StatusCode: 404}
	}
	if !f.reappear {
		delete(f.shifts, shift.DestinationID)
	}
	f.deleted = append(f.deleted, shift.SourceID)
	return nil
}

func (f *fakeDestination) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.shifts)
}

func (f *fakeDestination) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

// ── Fake SourceClient ──

type fakeSource struct {
	mu     sync.Mutex
	shifts []model.ShiftRecord
	err    error
}

func (f *fakeSource) set(shifts ...model.ShiftRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shifts = append([]model.ShiftRecord(nil), shifts...)
}

func (f *fakeSource) ListShifts(_ context.Context, _ string, start, end time.Time) ([]model.ShiftRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []model.ShiftRecord
	for _, s := range f.shifts {
		if !s.StartUTC.Before(start) && s.StartUTC.Before(end) {
			out = append(out, s)
		}
	}
	return out, nil
}
