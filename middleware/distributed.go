package middleware

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"simbroker/biz/service"
	"simbroker/biz/util"
)

// PartitionRouteMiddleware 按分区表路由的中间件
// 根据 PartitionManager 的分区表动态判断账户是否由本节点处理
func PartitionRouteMiddleware(pm *service.PartitionManager, localAddr string) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if string(c.Path()) == "/api/order" && string(c.Request.Method()) == consts.MethodPost {
			var req map[string]interface{}
			if err := c.BindAndValidate(&req); err != nil {
				hlog.Errorf("[PartitionRouteMiddleware] invalid request: %v", err)
				c.String(400, "invalid request")
				c.Abort()
				return
			}
			accountKey, _ := req["account_key"].(string)
			if accountKey == "" {
				accountKey = util.DefaultAccountKey()
			}

			if !pm.OwnsAccount(accountKey, localAddr) {
				hlog.Infof("[PartitionRouteMiddleware] forward order for account=%s", accountKey)
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
