package sim

import "sort"

// Settle 日终结算：挂单全部失效（只支持当日有效单）、当日数据滚入历史
// 并清零，再按结算日生效除权除息，红利/送股记入新交易日的 *_today 字段。
// 结算时点由调用方决定，引擎不看日历。
func (e *Engine) Settle() (Result, SettlementEntry) {
	c := newCollector()
	var events []OrderEvent
	settleDate := e.clock.Date()

	// 未成交挂单全部作废，冻结随之释放
	cancelled := 0
	orderIDs := make([]string, 0, len(e.orders))
	for id := range e.orders {
		orderIDs = append(orderIDs, id)
	}
	sort.Strings(orderIDs)
	for _, id := range orderIDs {
		o := e.orders[id]
		if o.Status != StatusAlive {
			continue
		}
		e.release(o, c)
		e.book(o.InstrumentID).remove(o)
		o.Status = StatusFinished
		o.LastMsg = MsgDayOrderExpired
		c.markOrder(o.OrderID)
		events = append(events, orderEvent(o))
		cancelled++
	}
	e.account.recompute(e.positions)

	entry := SettlementEntry{
		Date:            settleDate,
		Trades:          append([]Trade(nil), e.todayTrades...),
		CancelledOrders: cancelled,
		RealProfit:      e.account.RealProfitToday,
	}

	// 当日数据滚入历史
	posIDs := make([]string, 0, len(e.positions))
	for id := range e.positions {
		posIDs = append(posIDs, id)
	}
	sort.Strings(posIDs)
	for _, id := range posIDs {
		p := e.positions[id]
		p.VolumeHis = p.Volume
		p.CostHis = p.Cost
		p.MarketValueHis = p.MarketValue
		p.RealProfitHis += p.RealProfitToday
		p.BuyVolumeToday = 0
		p.BuyBalanceToday = 0
		p.BuyFeeToday = 0
		p.SellVolumeToday = 0
		p.SellBalanceToday = 0
		p.SellFeeToday = 0
		p.SharedVolumeToday = 0
		p.DevidendBalanceToday = 0
		p.sellVolumeFromHis = 0
		p.recompute()
		c.markPosition(id)
	}

	a := e.account
	a.AssetHis = a.Available // 冻结已全部释放，期初资金即当前可用
	a.AvailableHis = a.Available
	a.BuyBalanceToday = 0
	a.BuyFeeToday = 0
	a.SellBalanceToday = 0
	a.SellFeeToday = 0
	a.DividendBalanceToday = 0
	a.BuyFrozenBalance = 0
	a.BuyFrozenFee = 0

	// 除权除息：生效日 <= 结算日，按滚动后的 volume_his 计算，
	// 计入新交易日的 *_today 字段
	for id, actions := range e.actions {
		p, held := e.positions[id]
		for _, act := range actions {
			if act.applied || settleDate == "" || act.date > settleDate {
				continue
			}
			act.applied = true
			if !held || p.VolumeHis <= 0 {
				continue
			}
			if act.isStock {
				p.SharedVolumeToday += int64(float64(p.VolumeHis) * act.ratio)
			} else {
				amount := float64(p.VolumeHis) * act.ratio
				p.DevidendBalanceToday += amount
				p.dividendTotal += amount
				a.DividendBalanceToday += amount
				entry.Dividend += amount
			}
			p.recompute()
			c.markPosition(id)
		}
	}

	a.recompute(e.positions)
	a.CostHis = a.Cost
	a.MarketValueHis = a.MarketValue
	c.markAccount()

	e.todayTrades = nil
	e.settleLog = append(e.settleLog, entry)

	return Result{Patches: e.flush(c), Events: events}, entry
}
