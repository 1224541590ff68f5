package model

// 结算流水，每个账户每个交易日一条

type Settlement struct {
	ID              uint    `gorm:"primaryKey"`
	AccountKey      string  `gorm:"index:idx_account_date;not null"`
	Date            string  `gorm:"index:idx_account_date;not null"` // YYYYMMDD
	TradeCount      int     `gorm:"not null"`
	CancelledOrders int     `gorm:"not null"`
	RealProfit      float64 `gorm:"not null"`
	Dividend        float64 `gorm:"not null"`
}

func (Settlement) TableName() string {
	return "settlements"
}

// 结算时点的资金快照，供对账与重启恢复

type BalanceSnapshot struct {
	ID          uint    `gorm:"primaryKey"`
	AccountKey  string  `gorm:"index:idx_balance_account_date;not null"`
	Currency    string  `gorm:"not null"`
	Date        string  `gorm:"index:idx_balance_account_date;not null"`
	AssetHis    float64 `gorm:"not null"`
	Available   float64 `gorm:"not null"`
	MarketValue float64 `gorm:"not null"`
	Asset       float64 `gorm:"not null"`
}

func (BalanceSnapshot) TableName() string {
	return "balance_snapshots"
}
