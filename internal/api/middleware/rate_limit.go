package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"shifts-connector/pkg/redis"
	"shifts-connector/pkg/response"
)

// RateLimit 基于 Redis 滑动窗口的速率限制中间件
// 以调用方标识为维度（未认证时退回客户端 IP），同一条路由单独计数
// rdb 为 nil 或 Redis 出错时降级放行
func RateLimit(rdb *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || limit <= 0 {
			c.Next()
			return
		}

		caller := c.ClientIP()
		if v, ok := c.Get(ContextKeySubject); ok {
			if s, _ := v.(string); s != "" {
				caller = s
			}
		}

		key := fmt.Sprintf("rate_limit:%s:%s:%s", caller, c.Param("team_id"), c.FullPath())
		allowed, err := rdb.CheckRateLimit(c.Request.Context(), key, limit, window)
		if err != nil {
			c.Next()
			return
		}

		if !allowed {
			response.Error(c, http.StatusTooManyRequests, 10004, "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}

		c.Next()
	}
}
