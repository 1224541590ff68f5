package service

import (
	"simbroker/biz/dal/pg"
	"simbroker/biz/model"
)

// GetSettlements 查询账户的结算历史
func GetSettlements(accountKey string) ([]model.Settlement, error) {
	return pg.ListSettlements(accountKey)
}

// GetBalanceSnapshots 查询账户的每日资金快照
func GetBalanceSnapshots(accountKey string) ([]model.BalanceSnapshot, error) {
	var out []model.BalanceSnapshot
	err := pg.GormDB.Where("account_key = ?", accountKey).Order("date asc").Find(&out).Error
	return out, err
}
