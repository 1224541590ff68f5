package service

import (
	"time"

	"simbroker/biz/dal/pg"
	"simbroker/biz/model"
)

// TradeService 封装，调用包级别函数
type TradeService struct{}

func NewTradeService() *TradeService {
	return &TradeService{}
}

// GetTradesByInstrumentAndTime 查询某品种在指定时间段的成交数据
func (s *TradeService) GetTradesByInstrumentAndTime(instrumentID string, start, end time.Time) ([]model.Trade, error) {
	return pg.QueryTradesByInstrumentAndTime(instrumentID, start, end)
}

// GetActiveInstruments 查询指定时间段内有成交的所有品种
func (s *TradeService) GetActiveInstruments(start, end time.Time) ([]string, error) {
	return pg.GetActiveTradeInstruments(start, end)
}
