package dto

// ExportRequest 周快照导出参数
type ExportRequest struct {
	TeamID    string `uri:"team_id"    binding:"required"`
	WeekStart string `uri:"week_start" binding:"required,datetime=2006-01-02"`
	Format    string `form:"format"    binding:"omitempty,oneof=xlsx ics"`
}

// GetFormat 默认 xlsx
func (r *ExportRequest) GetFormat() string {
	if r.Format == "" {
		return "xlsx"
	}
	return r.Format
}
