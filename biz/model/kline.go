package model

type Kline struct {
	ID           uint    `gorm:"primaryKey"`
	InstrumentID string  `gorm:"index:idx_instrument_period_time"`
	Period       string  `gorm:"index:idx_instrument_period_time"`
	Timestamp    int64   `gorm:"index:idx_instrument_period_time"`
	Open         float64
	Close        float64
	High         float64
	Low          float64
	Volume       int64
}

func (Kline) TableName() string {
	return "kline"
}
