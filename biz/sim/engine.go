package sim

import (
	"errors"
	"fmt"

	"github.com/huandu/skiplist"
)

// ErrNoQuote 在从未收到过行情的品种上操作属于调用方错误，直接报错
var ErrNoQuote = errors.New("no quotation received for this instrument")

// ErrDuplicateOrder 重复的订单号属于调用方错误，避免覆盖已有订单
var ErrDuplicateOrder = errors.New("duplicate order id")

// Engine 单账户模拟交易引擎。引擎自身不加锁也不做任何 IO，
// 状态只由调用序列决定，同一序列重放得到完全相同的结果。
// 多方共享一个实例时由调用方串行化（见 service 层的按账户互斥锁）。
type Engine struct {
	accountKey string
	fees       FeePolicy
	clock      LogicalClock

	account   *Account
	positions map[string]*Position
	orders    map[string]*Order
	trades    map[string]*Trade
	quotes    map[string]*Quote
	books     map[string]*restingBook
	actions   map[string][]*corporateAction

	// 调用方视角的影子树，diff 以它为基准
	shadow map[string]any

	todayTrades []Trade
	settleLog   []SettlementEntry
}

// NewEngine 创建引擎，账户表、持仓表都归引擎所有，不经过任何全局状态
func NewEngine(accountKey, currency string, initBalance float64, fees FeePolicy) *Engine {
	acct := &Account{
		Currency:     currency,
		AssetHis:     initBalance,
		AvailableHis: initBalance,
	}
	e := &Engine{
		accountKey: accountKey,
		fees:       fees,
		account:    acct,
		positions:  make(map[string]*Position),
		orders:     make(map[string]*Order),
		trades:     make(map[string]*Trade),
		quotes:     make(map[string]*Quote),
		books:      make(map[string]*restingBook),
		actions:    make(map[string][]*corporateAction),
	}
	acct.recompute(e.positions)
	e.shadow = map[string]any{
		accountKey: map[string]any{
			"accounts":  map[string]any{currency: acct.toMap()},
			"positions": map[string]any{},
			"orders":    map[string]any{},
			"trades":    map[string]any{},
		},
	}
	return e
}

// AccountKey 引擎归属的账户
func (e *Engine) AccountKey() string { return e.accountKey }

// InitSnapshot 返回调用方的初始状态树：开户资金、无持仓无订单无成交
func (e *Engine) InitSnapshot() map[string]any {
	return deepCopyTree(e.shadow)
}

// Snapshot 当前完整状态树的拷贝
func (e *Engine) Snapshot() map[string]any {
	return deepCopyTree(e.shadow)
}

// SettleLog 历史结算流水，只追加
func (e *Engine) SettleLog() []SettlementEntry {
	out := make([]SettlementEntry, len(e.settleLog))
	copy(out, e.settleLog)
	return out
}

// position 取持仓，不存在则建一条空记录
func (e *Engine) position(instrumentID string) *Position {
	p, ok := e.positions[instrumentID]
	if !ok {
		p = &Position{InstrumentID: instrumentID}
		if q, ok := e.quotes[instrumentID]; ok {
			p.LastPrice = q.LastPrice
		}
		p.recompute()
		e.positions[instrumentID] = p
	}
	return p
}

// UpdateQuote 接收行情：推进时钟、更新持仓市值、重新评估该品种的挂单
func (e *Engine) UpdateQuote(q Quote) (Result, error) {
	t, err := parseQuoteTime(q.DateTime)
	if err != nil {
		return Result{}, err
	}
	e.clock.Advance(t)
	stored := q
	e.quotes[q.InstrumentID] = &stored
	e.mergeCorporateActions(q)

	c := newCollector()
	if p, ok := e.positions[q.InstrumentID]; ok && p.LastPrice != q.LastPrice {
		p.LastPrice = q.LastPrice
		p.recompute()
		e.account.recompute(e.positions)
		c.markPosition(q.InstrumentID)
		c.markAccount()
	}
	events := e.matchResting(q.InstrumentID, c)
	return Result{Patches: e.flush(c), Events: events}, nil
}

// mergeCorporateActions 收录行情携带的除权除息，按(日期,类型,比例)去重
func (e *Engine) mergeCorporateActions(q Quote) {
	add := func(entries []string, isStock bool) {
		for _, entry := range entries {
			var date string
			var ratio float64
			if _, err := fmt.Sscanf(entry, "%8s,%f", &date, &ratio); err != nil {
				continue
			}
			dup := false
			for _, a := range e.actions[q.InstrumentID] {
				if a.date == date && a.isStock == isStock && a.ratio == ratio {
					dup = true
					break
				}
			}
			if !dup {
				e.actions[q.InstrumentID] = append(e.actions[q.InstrumentID],
					&corporateAction{date: date, ratio: ratio, isStock: isStock})
			}
		}
	}
	add(q.StockDividendRatio, true)
	add(q.CashDividendRatio, false)
}

// InsertOrder 下单。没有行情的品种直接报错；其余失败都落到订单的
// last_msg 上，调用方拿到的永远是正常的 diff/事件对。
func (e *Engine) InsertOrder(req InsertOrderReq) (Result, error) {
	q, ok := e.quotes[req.InstrumentID]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrNoQuote, req.InstrumentID)
	}
	if _, exists := e.orders[req.OrderID]; exists {
		return Result{}, fmt.Errorf("%w: %s", ErrDuplicateOrder, req.OrderID)
	}

	c := newCollector()
	o := &Order{
		OrderID:        req.OrderID,
		InstrumentID:   req.InstrumentID,
		Direction:      req.Direction,
		PriceType:      req.PriceType,
		LimitPrice:     req.LimitPrice,
		VolumeOrign:    req.Volume,
		VolumeLeft:     req.Volume,
		Status:         StatusAlive,
		InsertDateTime: e.clock.UnixNano(),
	}
	e.orders[o.OrderID] = o
	c.markOrder(o.OrderID)

	var events []OrderEvent
	reject := func(msg string) (Result, error) {
		o.Status = StatusFinished
		o.LastMsg = msg
		events = append(events, orderEvent(o))
		return Result{Patches: e.flush(c), Events: events}, nil
	}

	if req.Volume <= 0 {
		return reject("order rejected: invalid volume")
	}
	if !inSession(q.TradingTime, e.clock.Now()) {
		return reject(MsgOutsideSession)
	}

	oppositePrice := q.AskPrice1
	if req.Direction == DirectionSell {
		oppositePrice = q.BidPrice1
	}
	if req.PriceType == PriceTypeAny && oppositePrice <= 0 {
		return reject("order rejected: no counterparty price")
	}

	if req.Direction == DirectionSell {
		p := e.position(req.InstrumentID)
		if p.sellable() < req.Volume {
			return reject(MsgInsufficientVolume)
		}
	} else {
		reservePrice := req.LimitPrice
		if req.PriceType == PriceTypeAny {
			reservePrice = q.AskPrice1
		}
		notional := reservePrice * float64(req.Volume)
		if notional+e.fees.Fee(notional, DirectionBuy) > e.account.Available {
			return reject(MsgInsufficientFunds)
		}
	}

	// 订单进入 ALIVE
	events = append(events, orderEvent(o))

	immediate := req.PriceType == PriceTypeAny ||
		(req.Direction == DirectionBuy && q.AskPrice1 > 0 && q.AskPrice1 <= req.LimitPrice) ||
		(req.Direction == DirectionSell && q.BidPrice1 > 0 && q.BidPrice1 >= req.LimitPrice)

	if immediate {
		// 市价单按对手价成交，限价单按自身限价成交
		price := o.LimitPrice
		if req.PriceType == PriceTypeAny {
			price = oppositePrice
		}
		e.fill(o, price, c)
		events = append(events, orderEvent(o))
		return Result{Patches: e.flush(c), Events: events}, nil
	}

	// 挂单：买方冻结资金，卖方冻结持仓
	if req.Direction == DirectionBuy {
		notional := req.LimitPrice * float64(req.Volume)
		o.FrozenBalance = notional
		o.FrozenFee = e.fees.Fee(notional, DirectionBuy)
		e.account.BuyFrozenBalance += o.FrozenBalance
		e.account.BuyFrozenFee += o.FrozenFee
		e.account.recompute(e.positions)
		c.markAccount()
	} else {
		p := e.position(req.InstrumentID)
		p.frozenSellVolume += req.Volume
		o.frozenVolume = req.Volume
	}
	e.book(req.InstrumentID).add(o)
	return Result{Patches: e.flush(c), Events: events}, nil
}

// CancelOrder 撤单。订单不存在或已终态时静默返回空结果。
func (e *Engine) CancelOrder(instrumentID, orderID string) Result {
	o, ok := e.orders[orderID]
	if !ok || o.Status == StatusFinished || o.InstrumentID != instrumentID {
		return Result{}
	}
	c := newCollector()
	e.release(o, c)
	e.book(o.InstrumentID).remove(o)
	o.Status = StatusFinished
	o.LastMsg = MsgCancelledByUser
	c.markOrder(o.OrderID)
	return Result{
		Patches: e.flush(c),
		Events:  []OrderEvent{orderEvent(o)},
	}
}

// release 解除一张 ALIVE 订单的资金/持仓冻结
func (e *Engine) release(o *Order, c *collector) {
	if o.Direction == DirectionBuy {
		if o.FrozenBalance != 0 || o.FrozenFee != 0 {
			e.account.BuyFrozenBalance -= o.FrozenBalance
			e.account.BuyFrozenFee -= o.FrozenFee
			o.FrozenBalance = 0
			o.FrozenFee = 0
			e.account.recompute(e.positions)
			c.markAccount()
		}
	} else if o.frozenVolume > 0 {
		p := e.position(o.InstrumentID)
		p.frozenSellVolume -= o.frozenVolume
		o.frozenVolume = 0
	}
}

// fill 全量成交一张订单并记账
func (e *Engine) fill(o *Order, price float64, c *collector) {
	vol := o.VolumeLeft
	notional := price * float64(vol)
	fee := e.fees.Fee(notional, o.Direction)
	e.release(o, c)

	p := e.position(o.InstrumentID)
	if o.Direction == DirectionBuy {
		p.BuyVolumeToday += vol
		p.BuyBalanceToday += notional
		p.BuyFeeToday += fee
		p.Cost += notional + fee
		p.buyCostTotal += notional + fee
		e.account.BuyBalanceToday += notional
		e.account.BuyFeeToday += fee
	} else {
		removed := p.costBasisOfSale(vol)
		hisLeft := p.VolumeHis - p.sellVolumeFromHis
		fromHis := vol
		if fromHis > hisLeft {
			fromHis = hisLeft
		}
		if fromHis > 0 {
			p.sellVolumeFromHis += fromHis
		}
		p.Cost -= removed
		p.SellVolumeToday += vol
		p.SellBalanceToday += notional
		p.SellFeeToday += fee
		p.RealProfitToday += notional - fee - removed
		e.account.SellBalanceToday += notional
		e.account.SellFeeToday += fee
	}

	o.VolumeLeft = 0
	o.Status = StatusFinished
	o.LastMsg = MsgFullyFilled

	// trade_id 由订单号和累计成交量确定，保证重复回放不双计
	tradeID := fmt.Sprintf("%s|%d", o.OrderID, o.VolumeOrign)
	if _, dup := e.trades[tradeID]; !dup {
		t := &Trade{
			TradeID:       tradeID,
			OrderID:       o.OrderID,
			InstrumentID:  o.InstrumentID,
			Direction:     o.Direction,
			Price:         price,
			Volume:        vol,
			Fee:           fee,
			TradeDateTime: e.clock.UnixNano(),
		}
		e.trades[tradeID] = t
		e.todayTrades = append(e.todayTrades, *t)
		c.markTrade(tradeID)
	}

	p.recompute()
	e.account.recompute(e.positions)
	c.markPosition(o.InstrumentID)
	c.markAccount()
	c.markOrder(o.OrderID)
}

func orderEvent(o *Order) OrderEvent {
	return OrderEvent{
		OrderID:      o.OrderID,
		InstrumentID: o.InstrumentID,
		Status:       o.Status,
		LastMsg:      o.LastMsg,
	}
}

// ──────────────────────────────
// 挂单簿：每个品种买卖各一张跳表，买方限价降序、卖方限价升序，
// 同价位按到达顺序排队。
// ──────────────────────────────

type restingBook struct {
	buys  *skiplist.SkipList
	sells *skiplist.SkipList
}

func (e *Engine) book(instrumentID string) *restingBook {
	b, ok := e.books[instrumentID]
	if !ok {
		b = &restingBook{
			buys:  skiplist.New(limitDescComparator{}),
			sells: skiplist.New(limitAscComparator{}),
		}
		e.books[instrumentID] = b
	}
	return b
}

func (b *restingBook) side(d Direction) *skiplist.SkipList {
	if d == DirectionBuy {
		return b.buys
	}
	return b.sells
}

func (b *restingBook) add(o *Order) {
	list := b.side(o.Direction)
	if elem := list.Get(o.LimitPrice); elem != nil {
		queue := elem.Value.([]*Order)
		elem.Value = append(queue, o)
		return
	}
	list.Set(o.LimitPrice, []*Order{o})
}

func (b *restingBook) remove(o *Order) {
	list := b.side(o.Direction)
	elem := list.Get(o.LimitPrice)
	if elem == nil {
		return
	}
	queue := elem.Value.([]*Order)
	for i, q := range queue {
		if q.OrderID == o.OrderID {
			queue = append(queue[:i], queue[i+1:]...)
			break
		}
	}
	if len(queue) == 0 {
		list.Remove(o.LimitPrice)
	} else {
		elem.Value = queue
	}
}

// matchResting 行情更新后重扫挂单：买单限价 >= 卖一价、卖单限价 <= 买一价
// 即成交，成交价都是订单自己的限价。
func (e *Engine) matchResting(instrumentID string, c *collector) []OrderEvent {
	b, ok := e.books[instrumentID]
	if !ok {
		return nil
	}
	q := e.quotes[instrumentID]
	var events []OrderEvent

	for q.AskPrice1 > 0 && b.buys.Len() > 0 {
		front := b.buys.Front()
		if front.Key().(float64) < q.AskPrice1 {
			break
		}
		for _, o := range front.Value.([]*Order) {
			e.fill(o, o.LimitPrice, c)
			events = append(events, orderEvent(o))
		}
		b.buys.RemoveFront()
	}
	for q.BidPrice1 > 0 && b.sells.Len() > 0 {
		front := b.sells.Front()
		if front.Key().(float64) > q.BidPrice1 {
			break
		}
		for _, o := range front.Value.([]*Order) {
			e.fill(o, o.LimitPrice, c)
			events = append(events, orderEvent(o))
		}
		b.sells.RemoveFront()
	}
	return events
}

// 跳表价格比较器，买方价格高优先
type limitDescComparator struct{}

func (limitDescComparator) Compare(l, r interface{}) int {
	lf, rf := l.(float64), r.(float64)
	if lf > rf {
		return -1
	} else if lf < rf {
		return 1
	}
	return 0
}
func (limitDescComparator) CalcScore(key interface{}) float64 {
	return -key.(float64)
}

// 卖方价格低优先
type limitAscComparator struct{}

func (limitAscComparator) Compare(l, r interface{}) int {
	lf, rf := l.(float64), r.(float64)
	if lf < rf {
		return -1
	} else if lf > rf {
		return 1
	}
	return 0
}
func (limitAscComparator) CalcScore(key interface{}) float64 {
	return key.(float64)
}
