package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"simbroker/biz/model"
	"simbroker/biz/service"
	"simbroker/biz/sim"
)

// InsertOrder RESTful 下单接口。业务性拒绝（非交易时段、可卖不足等）
// 仍返回200，结果体现在订单事件的 last_msg 上；只有未收到行情才报错。
func InsertOrder(ctx context.Context, c *app.RequestContext) {
	var req model.InsertOrderMsg
	if err := c.BindAndValidate(&req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]interface{}{"error": err.Error()})
		return
	}
	if req.InstrumentID == "" || req.Direction == "" || req.PriceType == "" || req.Volume <= 0 {
		c.JSON(consts.StatusBadRequest, map[string]interface{}{"error": "missing required fields"})
		return
	}
	req.AccountKey = accountKeyOrDefault(req.AccountKey)
	orderID, res, err := Broker.InsertOrder(req)
	if err != nil {
		status := consts.StatusInternalServerError
		if errors.Is(err, sim.ErrNoQuote) || errors.Is(err, sim.ErrDuplicateOrder) {
			status = consts.StatusBadRequest
		}
		c.JSON(status, map[string]interface{}{"error": err.Error()})
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{
		"account_key": req.AccountKey,
		"order_id":    orderID,
		"patches":     res.Patches,
		"events":      res.Events,
	})
}

// CancelOrder 撤单接口。订单不存在或已终态时为无操作，返回空增量。
func CancelOrder(ctx context.Context, c *app.RequestContext) {
	var req model.CancelOrderMsg
	if err := c.BindAndValidate(&req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]interface{}{"error": "invalid request"})
		return
	}
	if req.OrderID == "" || req.InstrumentID == "" {
		c.JSON(consts.StatusBadRequest, map[string]interface{}{"error": "missing order_id or instrument_id"})
		return
	}
	req.AccountKey = accountKeyOrDefault(req.AccountKey)
	res, err := Broker.CancelOrder(req)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{
		"account_key": req.AccountKey,
		"order_id":    req.OrderID,
		"patches":     res.Patches,
		"events":      res.Events,
	})
}

// GetOrder 查询单个订单
func GetOrder(ctx context.Context, c *app.RequestContext) {
	orderID := c.Param("id")
	order, err := service.GetOrderByID(orderID)
	if err != nil {
		c.JSON(consts.StatusNotFound, map[string]interface{}{"error": "order not found"})
		return
	}
	c.JSON(consts.StatusOK, order)
}

// ListOrders 查询订单列表
func ListOrders(ctx context.Context, c *app.RequestContext) {
	accountKey := accountKeyOrDefault(string(c.Query("account_key")))
	status := string(c.Query("status"))
	orders, err := service.ListOrders(accountKey, status)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}
	c.JSON(consts.StatusOK, orders)
}

// ListTrades 查询成交记录
func ListTrades(ctx context.Context, c *app.RequestContext) {
	accountKey := accountKeyOrDefault(string(c.Query("account_key")))
	limit := 50
	if l := c.Query("limit"); len(l) > 0 {
		fmt.Sscanf(string(l), "%d", &limit)
	}
	trades, err := service.ListTrades(accountKey, limit)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}
	c.JSON(consts.StatusOK, trades)
}
