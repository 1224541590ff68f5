package sim

// 订单方向
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// 价格类型：限价 / 市价
type PriceType string

const (
	PriceTypeLimit PriceType = "LIMIT"
	PriceTypeAny   PriceType = "ANY"
)

// 订单状态，FINISHED 后不可再变更
type OrderStatus string

const (
	StatusAlive    OrderStatus = "ALIVE"
	StatusFinished OrderStatus = "FINISHED"
)

// 终态 last_msg 文案
const (
	MsgFullyFilled        = "fully filled"
	MsgOutsideSession     = "order rejected: outside tradable session"
	MsgInsufficientVolume = "insufficient closeable volume"
	MsgInsufficientFunds  = "insufficient available balance"
	MsgCancelledByUser    = "cancelled by user"
	MsgDayOrderExpired    = "cancelled at end of day: day-only order expired"
)

// TradingTime 交易时段，白盘/夜盘各为 [开始,结束] 的 "HH:MM:SS" 区间列表
type TradingTime struct {
	Day   [][]string `json:"day"`
	Night [][]string `json:"night"`
}

// Quote 行情快照，datetime 同时驱动引擎的逻辑时钟
type Quote struct {
	InstrumentID string      `json:"instrument_id"`
	DateTime     string      `json:"datetime"` // "2006-01-02 15:04:05" 可带小数秒
	AskPrice1    float64     `json:"ask_price1"`
	BidPrice1    float64     `json:"bid_price1"`
	LastPrice    float64     `json:"last_price"`
	TradingTime  TradingTime `json:"trading_time"`

	// 除权除息，每项 "YYYYMMDD,ratio"，结算日生效
	StockDividendRatio []string `json:"stock_dividend_ratio,omitempty"`
	CashDividendRatio  []string `json:"cash_dividend_ratio,omitempty"`
}

// InsertOrderReq 下单请求
type InsertOrderReq struct {
	InstrumentID string    `json:"instrument_id"`
	OrderID      string    `json:"order_id"`
	Direction    Direction `json:"direction"`
	PriceType    PriceType `json:"price_type"`
	LimitPrice   float64   `json:"limit_price,omitempty"`
	Volume       int64     `json:"volume"`
}

// Order 订单，由下单创建，成交/撤单/结算推进状态
type Order struct {
	OrderID        string      `json:"order_id"`
	InstrumentID   string      `json:"instrument_id"`
	Direction      Direction   `json:"direction"`
	PriceType      PriceType   `json:"price_type"`
	LimitPrice     float64     `json:"limit_price"`
	VolumeOrign    int64       `json:"volume_orign"`
	VolumeLeft     int64       `json:"volume_left"`
	FrozenBalance  float64     `json:"frozen_balance"`
	FrozenFee      float64     `json:"frozen_fee"`
	Status         OrderStatus `json:"status"`
	LastMsg        string      `json:"last_msg"`
	InsertDateTime int64       `json:"insert_date_time"` // epoch 纳秒

	// 内部簿记：挂单时实际冻结的可卖数量，立即成交的卖单不冻结
	frozenVolume int64
}

// Trade 成交记录，只追加。trade_id 由 order_id 和累计成交量确定，
// 同一笔成交重复写入不会二次记账。
type Trade struct {
	TradeID       string    `json:"trade_id"`
	OrderID       string    `json:"order_id"`
	InstrumentID  string    `json:"instrument_id"`
	Direction     Direction `json:"direction"`
	Price         float64   `json:"price"`
	Volume        int64     `json:"volume"`
	Fee           float64   `json:"fee"`
	TradeDateTime int64     `json:"trade_date_time"`
}

// OrderEvent 订单生命周期事件，按发生顺序返回
type OrderEvent struct {
	OrderID      string      `json:"order_id"`
	InstrumentID string      `json:"instrument_id"`
	Status       OrderStatus `json:"status"`
	LastMsg      string      `json:"last_msg"`
}

// Result 每次变更操作的返回：增量 diff + 订单事件
type Result struct {
	Patches []Patch      `json:"patches"`
	Events  []OrderEvent `json:"events"`
}

// SettlementEntry 结算流水，只追加
type SettlementEntry struct {
	Date            string  `json:"date"` // YYYYMMDD
	Trades          []Trade `json:"trades"`
	CancelledOrders int     `json:"cancelled_orders"`
	RealProfit      float64 `json:"real_profit"`
	Dividend        float64 `json:"dividend"`
}

// corporateAction 单条除权除息，结算时按日期生效一次
type corporateAction struct {
	date    string // YYYYMMDD
	ratio   float64
	isStock bool
	applied bool
}
