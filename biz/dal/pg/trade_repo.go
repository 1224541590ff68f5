package pg

import (
	"time"

	"gorm.io/gorm/clause"

	"simbroker/biz/model"
)

// InsertTrade 写入成交，trade_id 冲突时忽略（成交只追加、可重放）
func InsertTrade(trade *model.Trade) error {
	return GormDB.Clauses(clause.OnConflict{DoNothing: true}).Create(trade).Error
}

// QueryTradesByInstrumentAndTime 查询某品种在指定时间段的成交数据
func QueryTradesByInstrumentAndTime(instrumentID string, start, end time.Time) ([]model.Trade, error) {
	var trades []model.Trade
	err := GormDB.Table("trades").
		Where("instrument_id = ? AND trade_date_time >= ? AND trade_date_time < ?",
			instrumentID, start.UnixNano(), end.UnixNano()).
		Find(&trades).Error
	return trades, err
}

// GetActiveTradeInstruments 查询指定时间段内有成交的所有品种
func GetActiveTradeInstruments(start, end time.Time) ([]string, error) {
	var instruments []string
	err := GormDB.Model(&model.Trade{}).Distinct().
		Where("trade_date_time >= ? AND trade_date_time < ?", start.UnixNano(), end.UnixNano()).
		Pluck("instrument_id", &instruments).Error
	return instruments, err
}

// InsertSettlement 写入结算流水与资金快照
func InsertSettlement(s *model.Settlement, b *model.BalanceSnapshot) error {
	if err := GormDB.Create(s).Error; err != nil {
		return err
	}
	return GormDB.Create(b).Error
}

// ListSettlements 查询账户的结算历史
func ListSettlements(accountKey string) ([]model.Settlement, error) {
	var out []model.Settlement
	err := GormDB.Where("account_key = ?", accountKey).Order("date asc").Find(&out).Error
	return out, err
}
