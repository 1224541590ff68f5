package service

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"simbroker/biz/dal/pg"
	"simbroker/biz/dal/redis"
	"simbroker/biz/model"
)

var klinePeriods = []string{"1m", "5m", "15m", "30m", "1h", "4h", "1d", "1w", "1M"}
var klinePeriodSeconds = map[string]int64{
	"1m":  60,
	"5m":  300,
	"15m": 900,
	"30m": 1800,
	"1h":  3600,
	"4h":  14400,
	"1d":  86400,
	"1w":  604800,
	"1M":  2592000, // 30天
}

// createNewKline creates a new Kline object and saves it to the database.
func createNewKline(instrumentID, period string, bucket int64, price float64, qty int64) *model.Kline {
	k := &model.Kline{
		InstrumentID: instrumentID,
		Period:       period,
		Timestamp:    bucket,
		Open:         price,
		Close:        price,
		High:         price,
		Low:          price,
		Volume:       qty,
	}
	_ = pg.UpsertKline(k)
	return k
}

// updateExistingKline updates an existing Kline object and saves it to the database.
func updateExistingKline(k *model.Kline, price float64, qty int64) {
	if price > k.High {
		k.High = price
	}
	if price < k.Low {
		k.Low = price
	}
	k.Close = price
	// 累加成交量
	k.Volume += qty
	_ = pg.UpsertKline(k)
}

// UpdateKlines 聚合并写入多周期K线
func UpdateKlines(instrumentID string, price float64, qty, ts int64) {
	for _, period := range klinePeriods {
		bucket := ts / klinePeriodSeconds[period] * klinePeriodSeconds[period]
		k, err := pg.GetKline(instrumentID, period, bucket)
		if err == gorm.ErrRecordNotFound {
			k = createNewKline(instrumentID, period, bucket, price, qty)
		} else if err == nil {
			updateExistingKline(k, price, qty)
		} else {
			continue
		}
		// 写入Redis
		b, _ := json.Marshal(k)
		redisKey := "kline:" + instrumentID + ":" + period
		redis.Client.RPush(context.Background(), redisKey, b)
		redis.Client.LTrim(context.Background(), redisKey, -1000, -1) // 只保留最新1000条
	}
}
