package service

import (
	"encoding/json"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"

	"simbroker/biz/dal/pebble"
	"simbroker/biz/dal/pg"
	"simbroker/biz/model"
)

// saveTradeCompensate 成交落库失败时写入本地补偿存储，由后台任务重试
func saveTradeCompensate(trade model.Trade) {
	if err := pebble.SaveTradeCompensate(trade.TradeID, trade); err != nil {
		hlog.Errorf("写入补偿存储失败, trade_id=%s, err=%v", trade.TradeID, err)
	}
}

// StartTradeCompensateTask 后台重试落库失败的成交
func StartTradeCompensateTask(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			retryTradeCompensates()
		}
	}()
}

func retryTradeCompensates() {
	comps, err := pebble.GetAllTradeCompensates()
	if err != nil {
		hlog.Errorf("读取补偿存储失败: %v", err)
		return
	}
	for tradeID, comp := range comps {
		if comp.RetryCount >= pebble.MaxRetryCount {
			hlog.Warnf("补偿成交超过最大重试次数，放弃, trade_id=%s", tradeID)
			_ = pebble.DeleteTradeCompensate(tradeID)
			continue
		}
		var trade model.Trade
		if err := json.Unmarshal(comp.TradeJSON, &trade); err != nil {
			_ = pebble.DeleteTradeCompensate(tradeID)
			continue
		}
		if err := pg.InsertTrade(&trade); err != nil {
			_ = pebble.UpdateTradeCompensateRetry(tradeID, comp)
			continue
		}
		_ = pebble.DeleteTradeCompensate(tradeID)
		hlog.Infof("补偿成交重试入库成功, trade_id=%s", tradeID)
	}
}
