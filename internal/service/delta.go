package service

import (
	"maps"
	"slices"

	"shifts-connector/internal/model"
)

// ChangeKind 变更类型
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// Change All() 中的一项
type Change struct {
	Kind  ChangeKind
	Shift model.ShiftRecord
}

// shiftSet 以班次身份为键的集合
type shiftSet map[string]model.ShiftRecord

func (s shiftSet) sortedIDs() []string {
	return slices.Sorted(maps.Keys(s))
}

func (s shiftSet) sorted() []model.ShiftRecord {
	out := make([]model.ShiftRecord, 0, len(s))
	for _, id := range s.sortedIDs() {
		out = append(out, s[id])
	}
	return out
}

// DeltaResult 两份快照之间的差异
//
// Created / Updated / Deleted / Skipped / Failed 五个集合互斥：
// 同一身份任一时刻只属于其中一个集合，移入 Skipped 或 Failed 前先从前三者移除。
type DeltaResult struct {
	created shiftSet
	updated shiftSet
	deleted shiftSet
	skipped shiftSet
	failed  shiftSet

	// HasContinuation 由 ApplyMaximum 设置：本周期因批量上限被截断
	HasContinuation bool
}

func newDeltaResult() *DeltaResult {
	return &DeltaResult{
		created: shiftSet{},
		updated: shiftSet{},
		deleted: shiftSet{},
		skipped: shiftSet{},
		failed:  shiftSet{},
	}
}

// ═══════════════════════════════════════════════════════════
// ComputeDelta 差异分类
// ═══════════════════════════════════════════════════════════

// ComputeDelta 比较已知快照 from 与最新拉取的 to。
//   - 仅在 to 中 → Created
//   - 两者都有但字段不同 → Updated（沿用 from 的 DestinationID）
//   - 仅在 from 中 → Deleted
//   - 两者相同 → 忽略
func ComputeDelta(from, to []model.ShiftRecord) *DeltaResult {
	d := newDeltaResult()

	fromIdx := indexShifts(from)
	toIdx := indexShifts(to)

	for id, next := range toIdx {
		prev, ok := fromIdx[id]
		if !ok {
			d.created[id] = next
			continue
		}
		if prev.Equivalent(next) {
			continue
		}
		if next.DestinationID == "" {
			next.DestinationID = prev.DestinationID
		}
		d.updated[id] = next
	}

	for id, prev := range fromIdx {
		if _, ok := toIdx[id]; !ok {
			d.deleted[id] = prev
		}
	}

	return d
}

func indexShifts(shifts []model.ShiftRecord) shiftSet {
	idx := make(shiftSet, len(shifts))
	for _, s := range shifts {
		idx[s.SourceID] = s
	}
	return idx
}

// ── 访问器 ──

// Created 按身份升序
func (d *DeltaResult) Created() []model.ShiftRecord { return d.created.sorted() }

// Updated 按身份升序
func (d *DeltaResult) Updated() []model.ShiftRecord { return d.updated.sorted() }

// Deleted 按身份升序
func (d *DeltaResult) Deleted() []model.ShiftRecord { return d.deleted.sorted() }

// Skipped 按身份升序
func (d *DeltaResult) Skipped() []model.ShiftRecord { return d.skipped.sorted() }

// Failed 按身份升序
func (d *DeltaResult) Failed() []model.ShiftRecord { return d.failed.sorted() }

// All 返回待应用的变更，顺序固定：Created、Updated、Deleted，各自按身份升序
func (d *DeltaResult) All() []Change {
	all := make([]Change, 0, len(d.created)+len(d.updated)+len(d.deleted))
	for _, s := range d.created.sorted() {
		all = append(all, Change{Kind: ChangeCreated, Shift: s})
	}
	for _, s := range d.updated.sorted() {
		all = append(all, Change{Kind: ChangeUpdated, Shift: s})
	}
	for _, s := range d.deleted.sorted() {
		all = append(all, Change{Kind: ChangeDeleted, Shift: s})
	}
	return all
}

// HasChanges 是否存在待应用的变更
func (d *DeltaResult) HasChanges() bool {
	return len(d.created)+len(d.updated)+len(d.deleted) > 0
}

// MarkSkipped 将身份移入 Skipped；身份不在 Created/Updated/Deleted 中时返回 false
func (d *DeltaResult) MarkSkipped(id string) bool {
	s, ok := d.take(id)
	if !ok {
		return false
	}
	d.skipped[id] = s
	return true
}

// MarkFailed 将身份移入 Failed；身份不在 Created/Updated/Deleted 中时返回 false
func (d *DeltaResult) MarkFailed(id string) bool {
	s, ok := d.take(id)
	if !ok {
		return false
	}
	d.failed[id] = s
	return true
}

// setDestinationID 记录目标系统为新建班次分配的 ID
func (d *DeltaResult) setDestinationID(id, destinationID string) {
	if s, ok := d.created[id]; ok {
		s.DestinationID = destinationID
		d.created[id] = s
	}
}

// take 从 Created/Updated/Deleted 中移除并返回记录
func (d *DeltaResult) take(id string) (model.ShiftRecord, bool) {
	for _, set := range []shiftSet{d.created, d.updated, d.deleted} {
		if s, ok := set[id]; ok {
			delete(set, id)
			return s, true
		}
	}
	return model.ShiftRecord{}, false
}

// ═══════════════════════════════════════════════════════════
// 批量限制与续传
// ═══════════════════════════════════════════════════════════

// ApplyMaximum 保留 All() 的前 maxCount 项，其余移入 Skipped。
// 调用后 len(All()) <= maxCount，HasContinuation 等于调用前 len(All()) > maxCount。
func (d *DeltaResult) ApplyMaximum(maxCount int) {
	if maxCount < 0 {
		maxCount = 0
	}
	all := d.All()
	d.HasContinuation = len(all) > maxCount
	if !d.HasContinuation {
		return
	}
	for _, c := range all[maxCount:] {
		d.MarkSkipped(c.Shift.SourceID)
	}
}

// ApplySkipped 更新快照中持久化的延后列表：
// 有续传时覆盖为当前 Skipped 身份，否则清空。
func (d *DeltaResult) ApplySkipped(snapshot *model.Snapshot) {
	if d.HasContinuation {
		snapshot.SkippedIDs = d.skipped.sortedIDs()
		return
	}
	snapshot.SkippedIDs = nil
}

// RemoveSkipped 将上一周期刻意延后、仍出现在 Created/Updated/Deleted 中的身份强制移回 Skipped
func (d *DeltaResult) RemoveSkipped(persistedSkipIDs []string) {
	for _, id := range persistedSkipIDs {
		d.MarkSkipped(id)
	}
}

// ApplyChanges 将差异应用到跟踪列表：
// 先移除与 Created/Updated/Deleted 同身份的旧副本，再追加 Created 与 Updated。
// 对自身结果重复应用不会产生变化。
func (d *DeltaResult) ApplyChanges(tracked []model.ShiftRecord) []model.ShiftRecord {
	out := make([]model.ShiftRecord, 0, len(tracked)+len(d.created)+len(d.updated))
	for _, s := range tracked {
		if _, ok := d.created[s.SourceID]; ok {
			continue
		}
		if _, ok := d.updated[s.SourceID]; ok {
			continue
		}
		if _, ok := d.deleted[s.SourceID]; ok {
			continue
		}
		out = append(out, s)
	}
	out = append(out, d.created.sorted()...)
	out = append(out, d.updated.sorted()...)
	return out
}

// AsResult 汇总为单次结果，Finished = !HasContinuation
func (d *DeltaResult) AsResult() model.AccumulatedResult {
	return model.AccumulatedResult{
		CreatedCount:   len(d.created),
		UpdatedCount:   len(d.updated),
		DeletedCount:   len(d.deleted),
		FailedCount:    len(d.failed),
		SkippedCount:   len(d.skipped),
		IterationCount: 1,
		Finished:       !d.HasContinuation,
	}
}
