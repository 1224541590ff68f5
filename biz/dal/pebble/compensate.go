package pebble

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cockroachdb/pebble"
)

// CompensateTrade 补偿成交结构体
// TradeJSON: 原始成交JSON
// RetryCount: 重试次数
// LastRetryTime: 上次重试时间戳（秒）
type CompensateTrade struct {
	TradeJSON     json.RawMessage `json:"trade_json"`
	RetryCount    int             `json:"retry_count"`
	LastRetryTime int64           `json:"last_retry_time"`
}

const MaxRetryCount = 10 // 最大重试次数

var (
	compensateDB     *pebble.DB
	compensateDBOnce sync.Once
	compensateDBPath = "data/compensate_pebble"
)

// Init 初始化Pebble实例
func Init(path string) error {
	var err error
	compensateDBOnce.Do(func() {
		if path != "" {
			compensateDBPath = path
		} else if envPath := os.Getenv("COMPENSATE_PEBBLE_PATH"); envPath != "" {
			compensateDBPath = envPath
		}
		compensateDB, err = pebble.Open(compensateDBPath, &pebble.Options{})
	})
	if err != nil {
		hlog.Errorf("[Pebble] 初始化失败: %v", err)
		return err
	}
	hlog.Infof("[Pebble] 补偿DB初始化成功, path=%s", compensateDBPath)
	return nil
}

// SaveTradeCompensate 写入补偿成交（带重试信息）
func SaveTradeCompensate(tradeID string, trade interface{}) error {
	tradeJSON, err := json.Marshal(trade)
	if err != nil {
		return err
	}
	comp := CompensateTrade{
		TradeJSON:     tradeJSON,
		RetryCount:    0,
		LastRetryTime: time.Now().Unix(),
	}
	val, err := json.Marshal(comp)
	if err != nil {
		return err
	}
	return compensateDB.Set([]byte(tradeID), val, pebble.Sync)
}

// UpdateTradeCompensateRetry 更新补偿成交的重试次数和时间
func UpdateTradeCompensateRetry(tradeID string, comp *CompensateTrade) error {
	comp.RetryCount++
	comp.LastRetryTime = time.Now().Unix()
	val, err := json.Marshal(comp)
	if err != nil {
		return err
	}
	return compensateDB.Set([]byte(tradeID), val, pebble.Sync)
}

// GetAllTradeCompensates 遍历所有补偿成交，返回CompensateTrade结构
func GetAllTradeCompensates() (map[string]*CompensateTrade, error) {
	it, err := compensateDB.NewIter(nil)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	result := make(map[string]*CompensateTrade)
	for it.First(); it.Valid(); it.Next() {
		key := string(it.Key())
		val := make([]byte, len(it.Value()))
		copy(val, it.Value())
		var comp CompensateTrade
		if err := json.Unmarshal(val, &comp); err == nil {
			result[key] = &comp
		}
	}
	return result, it.Error()
}

// DeleteTradeCompensate 删除补偿成交
func DeleteTradeCompensate(tradeID string) error {
	return compensateDB.Delete([]byte(tradeID), pebble.Sync)
}

// CloseCompensateDB 关闭DB
func CloseCompensateDB() {
	if compensateDB != nil {
		_ = compensateDB.Close()
	}
}
