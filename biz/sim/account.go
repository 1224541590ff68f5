package sim

// Account 资金账户，一个结算币种一条。
// *_his 字段在上一次结算时冻结，*_today 字段为当日累计，其余为派生字段。
type Account struct {
	Currency string

	AssetHis       float64 // 期初可用资金
	CostHis        float64
	MarketValueHis float64
	AvailableHis   float64

	BuyBalanceToday      float64
	BuyFeeToday          float64
	SellBalanceToday     float64
	SellFeeToday         float64
	DividendBalanceToday float64
	BuyFrozenBalance     float64
	BuyFrozenFee         float64

	MarketValue      float64
	Asset            float64
	Available        float64
	Drawable         float64
	Cost             float64
	HoldProfit       float64
	FloatProfitToday float64
	RealProfitToday  float64
	ProfitToday      float64
	ProfitRateToday  float64
}

// Position 持仓，当日有过持仓或交易的品种各一条
type Position struct {
	InstrumentID string

	VolumeHis      int64
	CostHis        float64
	MarketValueHis float64
	RealProfitHis  float64

	BuyVolumeToday       int64
	BuyBalanceToday      float64
	BuyFeeToday          float64
	SellVolumeToday      int64
	SellBalanceToday     float64
	SellFeeToday         float64
	SharedVolumeToday    int64   // 送股
	DevidendBalanceToday float64 // 现金分红

	Volume           int64
	Cost             float64
	MarketValue      float64
	LastPrice        float64
	FloatProfitToday float64
	RealProfitToday  float64
	ProfitToday      float64
	ProfitTotal      float64
	ProfitRateTotal  float64
	BuyAvgPrice      float64

	// 内部簿记，不进快照
	sellVolumeFromHis int64 // 当日已按历史成本卖出的数量
	frozenSellVolume  int64 // 挂单冻结的可卖数量
	dividendTotal     float64
	buyCostTotal      float64 // 开仓以来累计买入投入，分母用
}

// sellable 当前可卖数量：持仓量扣除已被卖单冻结的部分
func (p *Position) sellable() int64 {
	return p.Volume - p.frozenSellVolume
}

// recompute 按最新价重算持仓派生字段
func (p *Position) recompute() {
	p.Volume = p.VolumeHis + p.BuyVolumeToday - p.SellVolumeToday + p.SharedVolumeToday
	p.MarketValue = float64(p.Volume) * p.LastPrice
	if p.BuyVolumeToday > 0 {
		p.BuyAvgPrice = (p.BuyBalanceToday + p.BuyFeeToday) / float64(p.BuyVolumeToday)
	} else {
		p.BuyAvgPrice = 0
	}
	p.ProfitToday = p.MarketValue - p.MarketValueHis -
		p.BuyBalanceToday - p.BuyFeeToday +
		p.SellBalanceToday - p.SellFeeToday +
		p.DevidendBalanceToday
	p.FloatProfitToday = p.ProfitToday - p.RealProfitToday - p.DevidendBalanceToday
	p.ProfitTotal = p.MarketValue - p.Cost + p.RealProfitHis + p.RealProfitToday + p.dividendTotal
	if p.buyCostTotal != 0 {
		p.ProfitRateTotal = p.ProfitTotal / p.buyCostTotal
	} else {
		p.ProfitRateTotal = 0
	}
}

// costBasisOfSale 卖出 volume 股对应扣减的成本。优先按历史仓位的每股成本
// 扣减，超出部分按当日买入均价扣减。
func (p *Position) costBasisOfSale(volume int64) float64 {
	removed := 0.0
	left := volume
	hisLeft := p.VolumeHis - p.sellVolumeFromHis
	if hisLeft > 0 && p.VolumeHis > 0 {
		fromHis := left
		if fromHis > hisLeft {
			fromHis = hisLeft
		}
		removed += float64(fromHis) * (p.CostHis / float64(p.VolumeHis))
		left -= fromHis
	}
	if left > 0 {
		removed += float64(left) * p.BuyAvgPrice
	}
	return removed
}

// recompute 对全部持仓做一次汇总，重算账户派生字段
func (a *Account) recompute(positions map[string]*Position) {
	a.MarketValue = 0
	a.Cost = 0
	a.FloatProfitToday = 0
	a.RealProfitToday = 0
	a.ProfitToday = 0
	for _, p := range positions {
		a.MarketValue += p.MarketValue
		a.Cost += p.Cost
		a.FloatProfitToday += p.FloatProfitToday
		a.RealProfitToday += p.RealProfitToday
	}
	a.Available = a.AssetHis - a.BuyFrozenBalance - a.BuyFrozenFee +
		a.SellBalanceToday - a.SellFeeToday -
		a.BuyBalanceToday - a.BuyFeeToday +
		a.DividendBalanceToday
	a.Asset = a.Available + a.BuyFrozenBalance + a.BuyFrozenFee + a.MarketValue
	a.HoldProfit = a.MarketValue - a.Cost
	a.ProfitToday = a.FloatProfitToday + a.RealProfitToday + a.DividendBalanceToday
	if a.AssetHis != 0 {
		a.ProfitRateToday = a.ProfitToday / a.AssetHis
	} else {
		a.ProfitRateToday = 0
	}
	// T+1：当日卖出回款与分红不可取
	a.Drawable = a.Available - a.SellBalanceToday + a.SellFeeToday - a.DividendBalanceToday
	if a.Drawable < 0 {
		a.Drawable = 0
	}
	if a.Drawable > a.Available {
		a.Drawable = a.Available
	}
}

// toMap 快照叶子，键名即 diff 路径最后一段
func (a *Account) toMap() map[string]any {
	return map[string]any{
		"currency":               a.Currency,
		"asset_his":              a.AssetHis,
		"cost_his":               a.CostHis,
		"market_value_his":       a.MarketValueHis,
		"available_his":          a.AvailableHis,
		"buy_balance_today":      a.BuyBalanceToday,
		"buy_fee_today":          a.BuyFeeToday,
		"sell_balance_today":     a.SellBalanceToday,
		"sell_fee_today":         a.SellFeeToday,
		"dividend_balance_today": a.DividendBalanceToday,
		"buy_frozen_balance":     a.BuyFrozenBalance,
		"buy_frozen_fee":         a.BuyFrozenFee,
		"market_value":           a.MarketValue,
		"asset":                  a.Asset,
		"available":              a.Available,
		"drawable":               a.Drawable,
		"cost":                   a.Cost,
		"hold_profit":            a.HoldProfit,
		"float_profit_today":     a.FloatProfitToday,
		"real_profit_today":      a.RealProfitToday,
		"profit_today":           a.ProfitToday,
		"profit_rate_today":      a.ProfitRateToday,
	}
}

func (p *Position) toMap() map[string]any {
	return map[string]any{
		"instrument_id":          p.InstrumentID,
		"volume_his":             p.VolumeHis,
		"cost_his":               p.CostHis,
		"market_value_his":       p.MarketValueHis,
		"real_profit_his":        p.RealProfitHis,
		"buy_volume_today":       p.BuyVolumeToday,
		"buy_balance_today":      p.BuyBalanceToday,
		"buy_fee_today":          p.BuyFeeToday,
		"sell_volume_today":      p.SellVolumeToday,
		"sell_balance_today":     p.SellBalanceToday,
		"sell_fee_today":         p.SellFeeToday,
		"shared_volume_today":    p.SharedVolumeToday,
		"devidend_balance_today": p.DevidendBalanceToday,
		"volume":                 p.Volume,
		"cost":                   p.Cost,
		"market_value":           p.MarketValue,
		"last_price":             p.LastPrice,
		"float_profit_today":     p.FloatProfitToday,
		"real_profit_today":      p.RealProfitToday,
		"profit_today":           p.ProfitToday,
		"profit_total":           p.ProfitTotal,
		"profit_rate_total":      p.ProfitRateTotal,
		"buy_avg_price":          p.BuyAvgPrice,
	}
}

func (o *Order) toMap() map[string]any {
	return map[string]any{
		"order_id":         o.OrderID,
		"instrument_id":    o.InstrumentID,
		"direction":        string(o.Direction),
		"price_type":       string(o.PriceType),
		"limit_price":      o.LimitPrice,
		"volume_orign":     o.VolumeOrign,
		"volume_left":      o.VolumeLeft,
		"frozen_balance":   o.FrozenBalance,
		"frozen_fee":       o.FrozenFee,
		"status":           string(o.Status),
		"last_msg":         o.LastMsg,
		"insert_date_time": o.InsertDateTime,
	}
}

func (t *Trade) toMap() map[string]any {
	return map[string]any{
		"trade_id":        t.TradeID,
		"order_id":        t.OrderID,
		"instrument_id":   t.InstrumentID,
		"direction":       string(t.Direction),
		"price":           t.Price,
		"volume":          t.Volume,
		"fee":             t.Fee,
		"trade_date_time": t.TradeDateTime,
	}
}
