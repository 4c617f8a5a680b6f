package middleware

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/cloudwego/hertz/pkg/app"
	"go.uber.org/zap"

	"Heritage/config"
	"Heritage/pkg/errors"
	"Heritage/pkg/logger"
	"Heritage/pkg/response"
)

// RecoverMiddleware 捕获 handler panic，返回统一错误响应
// 生产环境不回传 panic 细节
func RecoverMiddleware() app.HandlerFunc {
	isProduction := config.Cfg.IsProduction()

	return func(ctx context.Context, c *app.RequestContext) {
		defer func() {
			if err := recover(); err != nil {
				stack := debug.Stack()

				logger.Logger.Error("Handler panic recovered",
					zap.String("panic", fmt.Sprintf("%v", err)),
					zap.String("path", string(c.Path())),
					zap.String("method", string(c.Method())),
					zap.String("client_ip", c.ClientIP()),
					zap.ByteString("stack", stack),
				)

				errDef := errors.Definition{
					Code:    "INTERNAL_SERVER_ERROR",
					Message: "Internal server error",
				}
				if !isProduction {
					errDef.Message = fmt.Sprintf("Internal error: %v", err)
					response.ErrorWithDetails(ctx, c, errDef, map[string]interface{}{
						"panic": fmt.Sprintf("%v", err),
						"stack": string(stack),
					})
					return
				}
				response.Error(ctx, c, errDef)
			}
		}()

		c.Next(ctx)
	}
}
