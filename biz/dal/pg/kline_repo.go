package pg

import (
	"gorm.io/gorm/clause"

	"simbroker/biz/model"
)

// UpsertKline upsert一条K线数据
func UpsertKline(kline *model.Kline) error {
	return GormDB.Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "instrument_id"}, {Name: "period"}, {Name: "timestamp"}},
			DoUpdates: clause.AssignmentColumns([]string{"open", "close", "high", "low", "volume"}),
		},
	).Create(kline).Error
}

// GetKline 查询一条K线
func GetKline(instrumentID, period string, timestamp int64) (*model.Kline, error) {
	var k model.Kline
	err := GormDB.Where("instrument_id = ? AND period = ? AND timestamp = ?",
		instrumentID, period, timestamp).First(&k).Error
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// ListKlines 查询时间升序的K线序列
func ListKlines(instrumentID, period string, from, to int64, limit int) ([]model.Kline, error) {
	var ks []model.Kline
	db := GormDB.Where("instrument_id = ? AND period = ?", instrumentID, period)
	if from > 0 {
		db = db.Where("timestamp >= ?", from)
	}
	if to > 0 {
		db = db.Where("timestamp < ?", to)
	}
	if limit > 0 {
		db = db.Limit(limit)
	}
	err := db.Order("timestamp asc").Find(&ks).Error
	return ks, err
}
