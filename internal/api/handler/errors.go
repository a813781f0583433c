package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"shifts-connector/internal/service"
	"shifts-connector/pkg/response"
)

// writeValidationError 输出字段级校验详情
// 返回 false 表示 err 不是校验错误
func writeValidationError(c *gin.Context, code int, err error) bool {
	if !errors.Is(err, service.ErrInvalidRequest) {
		return false
	}
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		response.ErrorWithDetails(c, http.StatusBadRequest, code, "参数校验失败", ve.Error())
		return true
	}
	response.BadRequest(c, code, "参数校验失败")
	return true
}
