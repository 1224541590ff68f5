package service

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"simbroker/biz/sim"
)

// 结算流水滚动日志，独立于应用日志，按文件大小轮转
var settleJournal *zap.Logger

// InitSettleJournal 初始化结算流水日志
func InitSettleJournal(filename string, maxSizeMB, maxBackups, maxAgeDays int) {
	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filename,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
	})
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), w, zapcore.InfoLevel)
	settleJournal = zap.New(core)
}

// journalSettlement 追加一条结算流水
func journalSettlement(accountKey string, entry sim.SettlementEntry) {
	if settleJournal == nil {
		return
	}
	settleJournal.Info("settle",
		zap.String("account_key", accountKey),
		zap.String("date", entry.Date),
		zap.Int("trade_count", len(entry.Trades)),
		zap.Int("cancelled_orders", entry.CancelledOrders),
		zap.Float64("real_profit", entry.RealProfit),
		zap.Float64("dividend", entry.Dividend),
	)
}
