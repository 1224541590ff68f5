package pg

import (
	"gorm.io/gorm/clause"

	"simbroker/biz/model"
)

// UpsertOrder 写入订单，状态推进时覆盖同一条记录
func UpsertOrder(order *model.Order) error {
	return GormDB.Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"volume_left", "frozen_balance", "frozen_fee",
				"status", "last_msg", "updated_at",
			}),
		},
	).Create(order).Error
}

// GetOrderByID 查询单个订单
func GetOrderByID(orderID string) (*model.Order, error) {
	var order model.Order
	err := GormDB.Where("order_id = ?", orderID).First(&order).Error
	return &order, err
}

// ListOrders 查询订单列表
func ListOrders(accountKey, status string) ([]model.Order, error) {
	var orders []model.Order
	db := GormDB.Model(&model.Order{})
	if accountKey != "" {
		db = db.Where("account_key = ?", accountKey)
	}
	if status != "" {
		db = db.Where("status = ?", status)
	}
	err := db.Order("insert_date_time asc").Find(&orders).Error
	return orders, err
}

// UpdateOrderStatus 更新订单状态
func UpdateOrderStatus(orderID, status, lastMsg string) error {
	return GormDB.Model(&model.Order{}).Where("order_id = ?", orderID).
		Updates(map[string]any{"status": status, "last_msg": lastMsg}).Error
}

// ListTrades 查询成交记录
func ListTrades(accountKey string, limit int) ([]model.Trade, error) {
	var trades []model.Trade
	db := GormDB.Model(&model.Trade{})
	if accountKey != "" {
		db = db.Where("account_key = ?", accountKey)
	}
	err := db.Order("trade_date_time desc").Limit(limit).Find(&trades).Error
	return trades, err
}
