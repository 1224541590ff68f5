package model

import (
	"gorm.io/gorm"
)

// Trade 成交模型（GORM）
type Trade struct {
	TradeID       string         `gorm:"primaryKey;column:trade_id" json:"trade_id"`
	OrderID       string         `gorm:"index;column:order_id" json:"order_id"`
	AccountKey    string         `gorm:"index;column:account_key" json:"account_key"`
	InstrumentID  string         `gorm:"index;column:instrument_id" json:"instrument_id"`
	Direction     string         `gorm:"column:direction" json:"direction"`
	Price         float64        `gorm:"column:price" json:"price"`
	Volume        int64          `gorm:"column:volume" json:"volume"`
	Fee           float64        `gorm:"column:fee" json:"fee"`
	TradeDateTime int64          `gorm:"column:trade_date_time" json:"trade_date_time"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Trade) TableName() string {
	return "trades"
}
