package model

import (
	"slices"
	"time"
)

// ShiftActivity 班次内的活动片段（如午休、培训）
type ShiftActivity struct {
	Code     string    `json:"code"`
	Name     string    `json:"name"`
	StartUTC time.Time `json:"start_utc"`
	EndUTC   time.Time `json:"end_utc"`
	Paid     bool      `json:"paid"`
	Theme    string    `json:"theme,omitempty"`
}

// ShiftRecord 一个已排班的工作时段
//
// SourceID 为 WFM 源系统的班次 ID，是同步过程中的唯一身份；
// DestinationID 在班次首次写入目标排班系统后回填。
type ShiftRecord struct {
	SourceID          string          `json:"source_id"`
	DestinationID     string          `json:"destination_id,omitempty"`
	StartUTC          time.Time       `json:"start_utc"`
	EndUTC            time.Time       `json:"end_utc"`
	StartLocal        time.Time       `json:"start_local"`
	EndLocal          time.Time       `json:"end_local"`
	EmployeeID        string          `json:"employee_id"`
	EmployeeName      string          `json:"employee_name"`
	JobID             string          `json:"job_id,omitempty"`
	JobName           string          `json:"job_name,omitempty"`
	Department        string          `json:"department,omitempty"`
	SchedulingGroupID string          `json:"scheduling_group_id,omitempty"`
	Theme             string          `json:"theme,omitempty"`
	Activities        []ShiftActivity `json:"activities,omitempty"`
	// Revision 为源系统的修订标记（ETag / 修改时间），不参与差异比较
	Revision string `json:"revision,omitempty"`
}

// Equivalent 判断两条记录在差异计算意义上是否相同。
// 比较除 DestinationID 与 Revision 以外的全部字段。
func (s ShiftRecord) Equivalent(o ShiftRecord) bool {
	if s.SourceID != o.SourceID ||
		s.EmployeeID != o.EmployeeID ||
		s.EmployeeName != o.EmployeeName ||
		s.JobID != o.JobID ||
		s.JobName != o.JobName ||
		s.Department != o.Department ||
		s.SchedulingGroupID != o.SchedulingGroupID ||
		s.Theme != o.Theme {
		return false
	}
	if !s.StartUTC.Equal(o.StartUTC) || !s.EndUTC.Equal(o.EndUTC) ||
		!s.StartLocal.Equal(o.StartLocal) || !s.EndLocal.Equal(o.EndLocal) {
		return false
	}
	return slices.EqualFunc(s.Activities, o.Activities, func(a, b ShiftActivity) bool {
		return a.Code == b.Code &&
			a.Name == b.Name &&
			a.Paid == b.Paid &&
			a.Theme == b.Theme &&
			a.StartUTC.Equal(b.StartUTC) &&
			a.EndUTC.Equal(b.EndUTC)
	})
}
