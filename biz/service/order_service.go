package service

import (
	"simbroker/biz/dal/pg"
	"simbroker/biz/model"
)

// 业务层只做聚合和编排，所有数据操作通过pg.order_repo.go

func ListOrders(accountKey, status string) ([]model.Order, error) {
	return pg.ListOrders(accountKey, status)
}

func GetOrderByID(orderID string) (*model.Order, error) {
	return pg.GetOrderByID(orderID)
}

func UpsertOrder(order *model.Order) error {
	return pg.UpsertOrder(order)
}

func UpdateOrderStatus(orderID, status, lastMsg string) error {
	return pg.UpdateOrderStatus(orderID, status, lastMsg)
}

func ListTrades(accountKey string, limit int) ([]model.Trade, error) {
	return pg.ListTrades(accountKey, limit)
}
