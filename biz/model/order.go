package model

import (
	"gorm.io/gorm"
)

// InsertOrderMsg 下单消息（与 handler 保持一致）
type InsertOrderMsg struct {
	AccountKey   string  `json:"account_key"`
	OrderID      string  `json:"order_id"`
	InstrumentID string  `json:"instrument_id"`
	Direction    string  `json:"direction"`
	PriceType    string  `json:"price_type"`
	LimitPrice   float64 `json:"limit_price"`
	Volume       int64   `json:"volume"`
}

// CancelOrderMsg 撤单消息
type CancelOrderMsg struct {
	AccountKey   string `json:"account_key"`
	InstrumentID string `json:"instrument_id"`
	OrderID      string `json:"order_id"`
}

// Order 订单模型（GORM）
type Order struct {
	OrderID        string         `gorm:"primaryKey;column:order_id" json:"order_id"`
	AccountKey     string         `gorm:"index;column:account_key" json:"account_key"`
	InstrumentID   string         `gorm:"index;column:instrument_id" json:"instrument_id"`
	Direction      string         `gorm:"column:direction" json:"direction"`
	PriceType      string         `gorm:"column:price_type" json:"price_type"`
	LimitPrice     float64        `gorm:"column:limit_price" json:"limit_price"`
	VolumeOrign    int64          `gorm:"column:volume_orign" json:"volume_orign"`
	VolumeLeft     int64          `gorm:"column:volume_left" json:"volume_left"`
	FrozenBalance  float64        `gorm:"column:frozen_balance" json:"frozen_balance"`
	FrozenFee      float64        `gorm:"column:frozen_fee" json:"frozen_fee"`
	Status         string         `gorm:"column:status" json:"status"`
	LastMsg        string         `gorm:"column:last_msg" json:"last_msg"`
	InsertDateTime int64          `gorm:"column:insert_date_time" json:"insert_date_time"`
	UpdatedAt      int64          `gorm:"column:updated_at" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Order) TableName() string {
	return "orders"
}
