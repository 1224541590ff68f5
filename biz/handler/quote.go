package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"simbroker/biz/sim"
)

type updateQuoteRequest struct {
	AccountKey string    `json:"account_key"`
	Quote      sim.Quote `json:"quote"`
}

// UpdateQuote 行情推送接口。行情同时驱动账户的逻辑时钟与挂单重估，
// 返回本次行情引发的增量与订单事件。
func UpdateQuote(ctx context.Context, c *app.RequestContext) {
	var req updateQuoteRequest
	if err := c.BindAndValidate(&req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]interface{}{"error": err.Error()})
		return
	}
	if req.Quote.InstrumentID == "" || req.Quote.DateTime == "" {
		c.JSON(consts.StatusBadRequest, map[string]interface{}{"error": "missing instrument_id or datetime"})
		return
	}
	accountKey := accountKeyOrDefault(req.AccountKey)
	res, err := Broker.UpdateQuote(accountKey, req.Quote)
	if err != nil {
		c.JSON(consts.StatusBadRequest, map[string]interface{}{"error": err.Error()})
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{
		"account_key": accountKey,
		"patches":     res.Patches,
		"events":      res.Events,
	})
}

// Settle 日终结算接口
func Settle(ctx context.Context, c *app.RequestContext) {
	type settleRequest struct {
		AccountKey string `json:"account_key"`
	}
	var req settleRequest
	if err := c.BindAndValidate(&req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]interface{}{"error": err.Error()})
		return
	}
	accountKey := accountKeyOrDefault(req.AccountKey)
	res, entry, err := Broker.Settle(accountKey)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{
		"account_key": accountKey,
		"settlement":  entry,
		"patches":     res.Patches,
		"events":      res.Events,
	})
}

// GetSnapshot 当前完整状态树
func GetSnapshot(ctx context.Context, c *app.RequestContext) {
	accountKey := accountKeyOrDefault(string(c.Query("account_key")))
	tree, err := Broker.Snapshot(accountKey)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}
	c.JSON(consts.StatusOK, tree)
}

// GetInitSnapshot 初始状态树，调用方以此为合并增量的底座
func GetInitSnapshot(ctx context.Context, c *app.RequestContext) {
	accountKey := accountKeyOrDefault(string(c.Query("account_key")))
	tree, err := Broker.InitSnapshot(accountKey)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}
	c.JSON(consts.StatusOK, tree)
}

// GetSettleLog 历史结算流水
func GetSettleLog(ctx context.Context, c *app.RequestContext) {
	accountKey := accountKeyOrDefault(string(c.Query("account_key")))
	log, err := Broker.SettleLog(accountKey)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{
		"account_key": accountKey,
		"settlements": log,
	})
}
