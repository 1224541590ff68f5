package handler

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"simbroker/biz/dal/pg"
	"simbroker/biz/dal/redis"
	"simbroker/biz/model"
)

func parseLimit(limitStr string, defaultLimit int) int {
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			return l
		}
	}
	return defaultLimit
}

// GetMarketTrades 查询某品种最新成交，优先走 Redis 缓存
func GetMarketTrades(ctx context.Context, c *app.RequestContext) {
	instrumentID := string(c.Query("instrument_id"))
	if instrumentID == "" {
		c.JSON(consts.StatusBadRequest, map[string]interface{}{"error": "instrument_id参数不能为空"})
		return
	}
	limit := parseLimit(string(c.Query("limit")), 50)

	key := "trades:" + instrumentID
	cached, err := redis.Client.LRange(ctx, key, 0, int64(limit-1)).Result()
	if err == nil && len(cached) > 0 {
		trades := make([]model.Trade, 0, len(cached))
		for _, v := range cached {
			var t model.Trade
			if e := json.Unmarshal([]byte(v), &t); e == nil {
				trades = append(trades, t)
			}
		}
		c.JSON(consts.StatusOK, map[string]interface{}{
			"instrument_id": instrumentID,
			"trades":        trades,
		})
		return
	}

	var trades []model.Trade
	pg.GormDB.Where("instrument_id = ?", instrumentID).
		Order("trade_date_time desc").Limit(limit).Find(&trades)
	c.JSON(consts.StatusOK, map[string]interface{}{
		"instrument_id": instrumentID,
		"trades":        trades,
	})
}

// GetTicker 查询最新成交价
func GetTicker(ctx context.Context, c *app.RequestContext) {
	instrumentID := string(c.Query("instrument_id"))
	if instrumentID == "" {
		c.JSON(consts.StatusBadRequest, map[string]interface{}{"error": "instrument_id参数不能为空"})
		return
	}
	var lastPrice float64
	cached, err := redis.Client.LRange(ctx, "trades:"+instrumentID, 0, 0).Result()
	if err == nil && len(cached) > 0 {
		var t model.Trade
		if e := json.Unmarshal([]byte(cached[0]), &t); e == nil {
			lastPrice = t.Price
		}
	}
	c.JSON(consts.StatusOK, map[string]interface{}{
		"instrument_id": instrumentID,
		"last_price":    lastPrice,
	})
}

// GetKline 查询K线，优先 Redis，回落到数据库聚合表
func GetKline(ctx context.Context, c *app.RequestContext) {
	instrumentID := string(c.Query("instrument_id"))
	period := string(c.Query("period"))
	if instrumentID == "" || period == "" {
		c.JSON(consts.StatusBadRequest, map[string]interface{}{"error": "instrument_id和period参数不能为空"})
		return
	}
	limit := parseLimit(string(c.Query("limit")), 100)

	redisKey := "kline:" + instrumentID + ":" + period
	klineData, err := redis.Client.LRange(ctx, redisKey, int64(-limit), -1).Result()
	if err == nil && len(klineData) > 0 {
		klines := make([]model.Kline, 0, len(klineData))
		for _, v := range klineData {
			var k model.Kline
			if e := json.Unmarshal([]byte(v), &k); e == nil {
				klines = append(klines, k)
			}
		}
		c.JSON(consts.StatusOK, map[string]interface{}{
			"instrument_id": instrumentID,
			"period":        period,
			"kline":         klines,
		})
		return
	}

	klines, err := pg.ListKlines(instrumentID, period, 0, 0, limit)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{
		"instrument_id": instrumentID,
		"period":        period,
		"kline":         klines,
	})
}
