package service

import "shifts-connector/internal/model"

// Severity 编排结果的严重级别
type Severity string

const (
	SeverityInformation Severity = "Information"
	SeverityWarning     Severity = "Warning"
)

// AddResult 将 partial 累加到 total
// Finished 以最后一次为准（覆盖而非 OR）
func AddResult(total *model.AccumulatedResult, partial model.AccumulatedResult) {
	total.CreatedCount += partial.CreatedCount
	total.UpdatedCount += partial.UpdatedCount
	total.DeletedCount += partial.DeletedCount
	total.FailedCount += partial.FailedCount
	total.SkippedCount += partial.SkippedCount
	total.IterationCount += partial.IterationCount
	total.Finished = partial.Finished
}

// SeverityOf 未完成或存在失败时为 Warning
func SeverityOf(total model.AccumulatedResult) Severity {
	if !total.Finished || total.FailedCount > 0 {
		return SeverityWarning
	}
	return SeverityInformation
}

// FromIteration 单次迭代结果转为可累加的结果
func FromIteration(it model.IterationResult) model.AccumulatedResult {
	return model.AccumulatedResult{
		DeletedCount:   it.DeletedCount,
		FailedCount:    it.FailedCount,
		IterationCount: 1,
		Finished:       it.Finished,
	}
}
