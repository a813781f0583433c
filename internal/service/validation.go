package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"shifts-connector/internal/model"
)

// ErrInvalidRequest 请求参数校验失败（不可重试，编排不会启动）
var ErrInvalidRequest = errors.New("请求参数无效")

// ValidationError 字段级校验错误，errors.Is(err, ErrInvalidRequest) 为 true
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidRequest }

// 团队 ID 会拼入租约键与缓存键，不允许冒号和空白
var teamIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._@-]{0,127}$`)

func validateTeamID(teamID string) (string, error) {
	teamID = strings.TrimSpace(teamID)
	if teamID == "" {
		return "", &ValidationError{Field: "team_id", Reason: "不能为空"}
	}
	if !teamIDPattern.MatchString(teamID) {
		return "", &ValidationError{Field: "team_id", Reason: "格式不合法"}
	}
	return teamID, nil
}

const dateLayout = "2006-01-02"

func parseDate(field, value string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, &ValidationError{Field: field, Reason: "日期格式应为 YYYY-MM-DD"}
	}
	return t, nil
}

// weekWindow 以当前周为基准，向前 past 周、向后 future 周（含当前周）
func weekWindow(now time.Time, past, future int) (start, end time.Time) {
	current := model.WeekStartOf(now)
	return current.AddDate(0, 0, -7*past), current.AddDate(0, 0, 7*(future+1))
}
