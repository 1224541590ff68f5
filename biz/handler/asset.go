package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"simbroker/biz/service"
)

// GetBalance 查询资金账户，从账户状态树取 accounts 段
func GetBalance(ctx context.Context, c *app.RequestContext) {
	accountKey := accountKeyOrDefault(string(c.Query("account_key")))
	tree, err := Broker.Snapshot(accountKey)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}
	node, _ := tree[accountKey].(map[string]interface{})
	c.JSON(consts.StatusOK, map[string]interface{}{
		"account_key": accountKey,
		"accounts":    node["accounts"],
	})
}

// GetPositions 查询持仓，从账户状态树取 positions 段
func GetPositions(ctx context.Context, c *app.RequestContext) {
	accountKey := accountKeyOrDefault(string(c.Query("account_key")))
	tree, err := Broker.Snapshot(accountKey)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}
	node, _ := tree[accountKey].(map[string]interface{})
	c.JSON(consts.StatusOK, map[string]interface{}{
		"account_key": accountKey,
		"positions":   node["positions"],
	})
}

// GetSettlements 查询落库的结算历史
func GetSettlements(ctx context.Context, c *app.RequestContext) {
	accountKey := accountKeyOrDefault(string(c.Query("account_key")))
	settlements, err := service.GetSettlements(accountKey)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}
	c.JSON(consts.StatusOK, settlements)
}
