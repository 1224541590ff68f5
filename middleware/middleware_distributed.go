package middleware

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"simbroker/biz/service"
	"simbroker/biz/util"
)

// DistributedRouteMiddleware 分布式账户自动路由中间件
func DistributedRouteMiddleware() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		// 只拦截 /api/order 下单接口
		if string(c.Path()) == "/api/order" && string(c.Request.Method()) == consts.MethodPost {
			var req map[string]interface{}
			if err := c.BindAndValidate(&req); err != nil {
				c.String(400, "invalid request")
				c.Abort()
				return
			}
			accountKey, _ := req["account_key"].(string)
			if accountKey == "" {
				accountKey = util.DefaultAccountKey()
			}
			if !util.IsLocalAccount(accountKey) {
				if err := service.ForwardToBroker(accountKey, "/api/order", c.Request.Body()); err != nil {
					hlog.Errorf("order forward failed: %v", err)
					c.String(502, "order forward failed: %v", err)
					c.Abort()
					return
				}
				c.String(200, "order forwarded")
				c.Abort()
				return
			}
		}
		c.Next(ctx)
	}
}
