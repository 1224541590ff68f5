package service

import (
	"sort"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/hashicorp/consul/api"
	"go.uber.org/zap"

	"simbroker/biz/dal/pg"
	"simbroker/biz/model"
)

// StartKlineCompensateTask 定时补偿/修正 K 线任务
func StartKlineCompensateTask(consulClient *api.Client) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			<-ticker.C
			lock, err := acquireConsulLock(consulClient, "kline_compensate_lock")
			if err != nil {
				hlog.Warnf("K线补偿任务获取Consul锁失败: %v", err)
				continue
			}
			if lock == nil {
				continue
			}
			// 执行补偿逻辑
			if err := CompensateKline(); err != nil {
				hlog.Errorf("K线补偿任务执行失败: %v", err)
			}
			_ = lock.Unlock()
		}
	}()
}

// acquireConsulLock 获取分布式锁
func acquireConsulLock(client *api.Client, key string) (*api.Lock, error) {
	lock, err := client.LockOpts(&api.LockOptions{
		Key:          key,
		LockTryOnce:  true,
		LockWaitTime: 5 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	stopCh := make(chan struct{})
	leaderCh, err := lock.Lock(stopCh)
	if err != nil || leaderCh == nil {
		return nil, nil // 未获取到锁
	}
	return lock, nil
}

// CompensateKline 补偿/修正K线逻辑（补全最近1分钟K线）
func CompensateKline() error {
	end := time.Now().Truncate(time.Minute)
	start := end.Add(-time.Minute)

	if pg.GormDB == nil {
		return nil
	}
	tradeService := NewTradeService()

	// 查询该时间段内所有有成交的品种
	instruments, err := tradeService.GetActiveInstruments(start, end)
	if err != nil {
		hlog.Warnf("获取活跃品种失败: %v", err)
		return err
	}
	for _, instrumentID := range instruments {
		trades, err := tradeService.GetTradesByInstrumentAndTime(instrumentID, start, end)
		if err != nil || len(trades) == 0 {
			continue
		}
		// 按时间排序
		sort.Slice(trades, func(i, j int) bool { return trades[i].TradeDateTime < trades[j].TradeDateTime })
		open := trades[0].Price
		closePrice := trades[len(trades)-1].Price
		high := trades[0].Price
		low := trades[0].Price
		var volume int64
		for _, t := range trades {
			if t.Price > high {
				high = t.Price
			}
			if t.Price < low {
				low = t.Price
			}
			volume += t.Volume
		}
		kline := model.Kline{
			InstrumentID: instrumentID,
			Period:       "1m",
			Timestamp:    start.Unix(),
			Open:         open,
			Close:        closePrice,
			High:         high,
			Low:          low,
			Volume:       volume,
		}
		err = pg.UpsertKline(&kline)
		if err != nil {
			hlog.Errorf("K线 upsert 失败: %v, instrument=%s, ts=%d", err, instrumentID, start.Unix())
		}
	}
	hlog.Info("K线补偿任务执行: ", zap.Time("start", start), zap.Time("end", end))
	return nil
}
