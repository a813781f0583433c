package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"shifts-connector/internal/model"
)

// ── 导出模块业务错误 ──

var (
	ErrExportEmptySnapshot = errors.New("该周暂无已同步的班次")
	ErrExportGenerateFail  = errors.New("生成导出文件失败")
)

// ExportService 周快照导出接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置响应头后写入 Response。
type ExportService interface {
	// ExportSnapshotXLSX 导出为 Excel，每行一个班次
	ExportSnapshotXLSX(ctx context.Context, teamID string, weekStart time.Time) (*bytes.Buffer, string, error)
	// ExportSnapshotICS 导出为 iCalendar，每个班次一个 VEVENT
	ExportSnapshotICS(ctx context.Context, teamID string, weekStart time.Time) (*bytes.Buffer, string, error)
}

type exportService struct {
	sync   SyncService
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(sync SyncService, logger *zap.Logger) ExportService {
	return &exportService{sync: sync, logger: logger}
}

// trackedShifts 按开始时间排序的已跟踪班次
func (s *exportService) trackedShifts(ctx context.Context, teamID string, weekStart time.Time) ([]model.ShiftRecord, error) {
	snapshot, err := s.sync.Snapshot(ctx, teamID, weekStart)
	if err != nil {
		return nil, err
	}
	if len(snapshot.Tracked) == 0 {
		return nil, ErrExportEmptySnapshot
	}
	shifts := append([]model.ShiftRecord(nil), snapshot.Tracked...)
	sort.SliceStable(shifts, func(i, j int) bool {
		if !shifts[i].StartUTC.Equal(shifts[j].StartUTC) {
			return shifts[i].StartUTC.Before(shifts[j].StartUTC)
		}
		return shifts[i].SourceID < shifts[j].SourceID
	})
	return shifts, nil
}

// ═══════════════════════════════════════════════════════════
// ExportSnapshotXLSX
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - Sheet "班次"，第 1 行标题（团队 + 周起始日）
//   - 第 2 行表头：日期 / 开始 / 结束 / 员工 / 岗位 / 部门 / 活动 / 源 ID / 目标 ID
//   - 时间列使用班次的本地时间

var xlsxHeaders = []string{"日期", "开始", "结束", "员工", "岗位", "部门", "活动", "源 ID", "目标 ID"}

func (s *exportService) ExportSnapshotXLSX(ctx context.Context, teamID string, weekStart time.Time) (*bytes.Buffer, string, error) {
	shifts, err := s.trackedShifts(ctx, teamID, weekStart)
	if err != nil {
		return nil, "", err
	}
	week := model.WeekStartOf(weekStart).Format(dateLayout)

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "班次"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	// 删除默认 Sheet1
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "C", 12)
	f.SetColWidth(sheetName, "D", "F", 18)
	f.SetColWidth(sheetName, "G", "G", 30)
	f.SetColWidth(sheetName, "H", "I", 24)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s %s 周班次", teamID, week))
	f.MergeCell(sheetName, "A1", cell(colName(len(xlsxHeaders)-1), 1))
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// 表头
	for i, h := range xlsxHeaders {
		f.SetCellValue(sheetName, cell(colName(i), 2), h)
	}
	f.SetCellStyle(sheetName, "A2", cell(colName(len(xlsxHeaders)-1), 2), headerStyle)

	// 数据行
	row := 3
	for _, sh := range shifts {
		start, end := localTimes(sh)
		values := []interface{}{
			start.Format(dateLayout),
			start.Format("15:04"),
			end.Format("15:04"),
			sh.EmployeeName,
			sh.JobName,
			sh.Department,
			activitySummary(sh.Activities),
			sh.SourceID,
			sh.DestinationID,
		}
		for i, v := range values {
			f.SetCellValue(sheetName, cell(colName(i), row), v)
		}
		row++
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.String("team_id", teamID), zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	return buf, fmt.Sprintf("shifts_%s_%s.xlsx", teamID, week), nil
}

// ═══════════════════════════════════════════════════════════
// ExportSnapshotICS
// ═══════════════════════════════════════════════════════════

func (s *exportService) ExportSnapshotICS(ctx context.Context, teamID string, weekStart time.Time) (*bytes.Buffer, string, error) {
	shifts, err := s.trackedShifts(ctx, teamID, weekStart)
	if err != nil {
		return nil, "", err
	}
	week := model.WeekStartOf(weekStart).Format(dateLayout)

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//shifts-connector//weekly snapshot//ZH")
	cal.SetXWRCalName(fmt.Sprintf("%s %s", teamID, week))

	stamp := time.Now().UTC()
	for _, sh := range shifts {
		event := cal.AddEvent(sh.SourceID + "@shifts-connector")
		event.SetDtStampTime(stamp)
		event.SetStartAt(sh.StartUTC)
		event.SetEndAt(sh.EndUTC)
		event.SetSummary(shiftSummary(sh))
		if desc := activitySummary(sh.Activities); desc != "" {
			event.SetDescription(desc)
		}
		if sh.Department != "" {
			event.SetLocation(sh.Department)
		}
	}

	buf := bytes.NewBufferString(cal.Serialize())
	return buf, fmt.Sprintf("shifts_%s_%s.ics", teamID, week), nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

// localTimes 缺少本地时间时退回 UTC
func localTimes(sh model.ShiftRecord) (time.Time, time.Time) {
	start, end := sh.StartLocal, sh.EndLocal
	if start.IsZero() {
		start = sh.StartUTC
	}
	if end.IsZero() {
		end = sh.EndUTC
	}
	return start, end
}

func shiftSummary(sh model.ShiftRecord) string {
	parts := make([]string, 0, 2)
	if sh.EmployeeName != "" {
		parts = append(parts, sh.EmployeeName)
	}
	if sh.JobName != "" {
		parts = append(parts, sh.JobName)
	}
	if len(parts) == 0 {
		return "班次 " + sh.SourceID
	}
	return strings.Join(parts, " · ")
}

func activitySummary(activities []model.ShiftActivity) string {
	parts := make([]string, 0, len(activities))
	for _, a := range activities {
		parts = append(parts, fmt.Sprintf("%s %s-%s", a.Name, a.StartUTC.Format("15:04"), a.EndUTC.Format("15:04")))
	}
	return strings.Join(parts, "; ")
}
