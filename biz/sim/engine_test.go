package sim

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

const (
	testKey  = "sim_user|CNY"
	testInst = "SSE.603666"
)

var testSession = TradingTime{Day: [][]string{{"09:30:00", "11:30:00"}, {"13:00:00", "15:00:00"}}}

func newTestEngine(balance float64) *Engine {
	return NewEngine(testKey, "CNY", balance, DefaultFeePolicy())
}

func quoteAt(dt string, ask, bid, last float64) Quote {
	return Quote{
		InstrumentID: testInst,
		DateTime:     dt,
		AskPrice1:    ask,
		BidPrice1:    bid,
		LastPrice:    last,
		TradingTime:  testSession,
	}
}

func mustQuote(t *testing.T, e *Engine, q Quote) Result {
	t.Helper()
	res, err := e.UpdateQuote(q)
	if err != nil {
		t.Fatalf("UpdateQuote failed: %v", err)
	}
	return res
}

func acctNode(tree map[string]any) map[string]any {
	return tree[testKey].(map[string]any)["accounts"].(map[string]any)["CNY"].(map[string]any)
}

func posNode(tree map[string]any, inst string) map[string]any {
	return tree[testKey].(map[string]any)["positions"].(map[string]any)[inst].(map[string]any)
}

func orderNode(tree map[string]any, id string) map[string]any {
	return tree[testKey].(map[string]any)["orders"].(map[string]any)[id].(map[string]any)
}

func tradeCount(tree map[string]any) int {
	return len(tree[testKey].(map[string]any)["trades"].(map[string]any))
}

func almost(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestInitSnapshot(t *testing.T) {
	e := newTestEngine(10000.0)
	tree := e.InitSnapshot()
	acct := acctNode(tree)
	if acct["available"] != 10000.0 || acct["asset"] != 10000.0 {
		t.Errorf("available=%v asset=%v, want 10000.0", acct["available"], acct["asset"])
	}
	if acct["market_value"] != 0.0 {
		t.Errorf("market_value = %v, want 0.0", acct["market_value"])
	}
	node := tree[testKey].(map[string]any)
	for _, k := range []string{"positions", "orders", "trades"} {
		if n := len(node[k].(map[string]any)); n != 0 {
			t.Errorf("%s should be empty, has %d entries", k, n)
		}
	}
}

func TestInsertOrderWithoutQuote(t *testing.T) {
	e := newTestEngine(100000.0)
	_, err := e.InsertOrder(InsertOrderReq{
		InstrumentID: testInst,
		OrderID:      "o1",
		Direction:    DirectionSell,
		PriceType:    PriceTypeLimit,
		LimitPrice:   75.8,
		Volume:       100,
	})
	if !errors.Is(err, ErrNoQuote) {
		t.Fatalf("expected ErrNoQuote, got %v", err)
	}
	if len(e.Snapshot()[testKey].(map[string]any)["orders"].(map[string]any)) != 0 {
		t.Error("no order record should be created")
	}
}

func TestMarketBuyFillsAtAsk(t *testing.T) {
	e := newTestEngine(100000.0)
	mustQuote(t, e, quoteAt("2024-05-09 09:45:00", 75.8, 75.7, 75.8))

	res, err := e.InsertOrder(InsertOrderReq{
		InstrumentID: testInst,
		OrderID:      "o1",
		Direction:    DirectionBuy,
		PriceType:    PriceTypeAny,
		Volume:       200,
	})
	if err != nil {
		t.Fatalf("InsertOrder failed: %v", err)
	}
	if len(res.Events) != 2 || res.Events[0].Status != StatusAlive || res.Events[1].Status != StatusFinished {
		t.Fatalf("expected ALIVE then FINISHED events, got %+v", res.Events)
	}
	if res.Events[1].LastMsg != MsgFullyFilled {
		t.Errorf("last_msg = %q", res.Events[1].LastMsg)
	}

	tree := e.Snapshot()
	if n := tradeCount(tree); n != 1 {
		t.Fatalf("trade count = %d, want 1", n)
	}
	trade := tree[testKey].(map[string]any)["trades"].(map[string]any)["o1|200"].(map[string]any)
	if trade["price"] != 75.8 || trade["volume"] != int64(200) || trade["fee"] != 5.0 {
		t.Errorf("trade = %+v, want price=75.8 volume=200 fee=5.0", trade)
	}

	pos := posNode(tree, testInst)
	if pos["buy_avg_price"] != 75.825 {
		t.Errorf("buy_avg_price = %v, want 75.825", pos["buy_avg_price"])
	}
	if pos["volume"] != int64(200) {
		t.Errorf("volume = %v", pos["volume"])
	}

	acct := acctNode(tree)
	if !almost(acct["available"].(float64), 100000.0-15165.0) {
		t.Errorf("available = %v, want %v", acct["available"], 100000.0-15165.0)
	}
	if !almost(acct["asset"].(float64), 99995.0) {
		t.Errorf("asset = %v, want 99995.0", acct["asset"])
	}
	if !almost(acct["float_profit_today"].(float64), -5.0) {
		t.Errorf("float_profit_today = %v, want -5.0", acct["float_profit_today"])
	}
}

func TestLimitBuyAboveAskFillsAtOwnLimit(t *testing.T) {
	e := newTestEngine(100000.0)
	mustQuote(t, e, quoteAt("2024-05-09 09:45:00", 75.8, 75.7, 75.8))

	res, err := e.InsertOrder(InsertOrderReq{
		InstrumentID: testInst,
		OrderID:      "o1",
		Direction:    DirectionBuy,
		PriceType:    PriceTypeLimit,
		LimitPrice:   78.5,
		Volume:       100,
	})
	if err != nil {
		t.Fatalf("InsertOrder failed: %v", err)
	}
	if res.Events[len(res.Events)-1].Status != StatusFinished {
		t.Fatal("order should fill immediately")
	}
	trade := e.Snapshot()[testKey].(map[string]any)["trades"].(map[string]any)["o1|100"].(map[string]any)
	if trade["price"] != 78.5 {
		t.Errorf("filled at %v, want its own limit 78.5", trade["price"])
	}
}

func TestLimitBuyBelowAskRestsThenFills(t *testing.T) {
	e := newTestEngine(100000.0)
	mustQuote(t, e, quoteAt("2024-05-09 09:45:00", 75.8, 75.7, 75.8))

	res, err := e.InsertOrder(InsertOrderReq{
		InstrumentID: testInst,
		OrderID:      "o1",
		Direction:    DirectionBuy,
		PriceType:    PriceTypeLimit,
		LimitPrice:   75.7,
		Volume:       100,
	})
	if err != nil {
		t.Fatalf("InsertOrder failed: %v", err)
	}
	if len(res.Events) != 1 || res.Events[0].Status != StatusAlive {
		t.Fatalf("order should rest ALIVE, events = %+v", res.Events)
	}

	tree := e.Snapshot()
	o := orderNode(tree, "o1")
	if o["status"] != string(StatusAlive) {
		t.Fatal("order not ALIVE in snapshot")
	}
	if !almost(o["frozen_balance"].(float64), 7570.0) || o["frozen_fee"] != 5.0 {
		t.Errorf("frozen_balance=%v frozen_fee=%v", o["frozen_balance"], o["frozen_fee"])
	}
	acct := acctNode(tree)
	if !almost(acct["available"].(float64), 100000.0-7575.0) {
		t.Errorf("available = %v", acct["available"])
	}

	// 价格未触及，不成交
	res2 := mustQuote(t, e, quoteAt("2024-05-09 09:46:00", 75.9, 75.8, 75.9))
	if len(res2.Events) != 0 {
		t.Fatalf("no fill expected, events = %+v", res2.Events)
	}

	// 卖一价降到限价，按订单自身限价成交
	res3 := mustQuote(t, e, quoteAt("2024-05-09 09:47:00", 75.7, 75.6, 75.7))
	if len(res3.Events) != 1 || res3.Events[0].Status != StatusFinished {
		t.Fatalf("expected one FINISHED event, got %+v", res3.Events)
	}
	tree = e.Snapshot()
	trade := tree[testKey].(map[string]any)["trades"].(map[string]any)["o1|100"].(map[string]any)
	if trade["price"] != 75.7 {
		t.Errorf("filled at %v, want the resting limit 75.7", trade["price"])
	}
	acct = acctNode(tree)
	if acct["buy_frozen_balance"] != 0.0 || acct["buy_frozen_fee"] != 0.0 {
		t.Errorf("frozen not released: %v / %v", acct["buy_frozen_balance"], acct["buy_frozen_fee"])
	}
}

func TestOrderOutsideSessionRejected(t *testing.T) {
	e := newTestEngine(100000.0)
	mustQuote(t, e, quoteAt("2024-05-09 12:00:00", 75.8, 75.7, 75.8))

	res, err := e.InsertOrder(InsertOrderReq{
		InstrumentID: testInst,
		OrderID:      "o1",
		Direction:    DirectionBuy,
		PriceType:    PriceTypeAny,
		Volume:       100,
	})
	if err != nil {
		t.Fatalf("rejection must not be an error: %v", err)
	}
	if len(res.Events) != 1 || res.Events[0].Status != StatusFinished ||
		res.Events[0].LastMsg != MsgOutsideSession {
		t.Fatalf("events = %+v", res.Events)
	}
	acct := acctNode(e.Snapshot())
	if acct["available"] != 100000.0 || acct["buy_frozen_balance"] != 0.0 {
		t.Error("no funds should be reserved for a rejected order")
	}
	if n := tradeCount(e.Snapshot()); n != 0 {
		t.Errorf("trade count = %d", n)
	}
}

func TestSellWithoutPositionRejected(t *testing.T) {
	e := newTestEngine(100000.0)
	mustQuote(t, e, quoteAt("2024-05-09 09:45:00", 75.8, 75.7, 75.8))

	res, err := e.InsertOrder(InsertOrderReq{
		InstrumentID: testInst,
		OrderID:      "o1",
		Direction:    DirectionSell,
		PriceType:    PriceTypeAny,
		Volume:       100,
	})
	if err != nil {
		t.Fatalf("rejection must not be an error: %v", err)
	}
	if res.Events[0].LastMsg != MsgInsufficientVolume {
		t.Errorf("last_msg = %q", res.Events[0].LastMsg)
	}
}

func TestBuyExceedingAvailableRejected(t *testing.T) {
	e := newTestEngine(10000.0)
	mustQuote(t, e, quoteAt("2024-05-09 09:45:00", 75.8, 75.7, 75.8))

	res, err := e.InsertOrder(InsertOrderReq{
		InstrumentID: testInst,
		OrderID:      "o1",
		Direction:    DirectionBuy,
		PriceType:    PriceTypeAny,
		Volume:       200, // 15165 > 10000
	})
	if err != nil {
		t.Fatalf("rejection must not be an error: %v", err)
	}
	if res.Events[0].LastMsg != MsgInsufficientFunds {
		t.Errorf("last_msg = %q", res.Events[0].LastMsg)
	}
}

func TestSellRealizedProfitUsesHistoricalCost(t *testing.T) {
	e := newTestEngine(100000.0)
	mustQuote(t, e, quoteAt("2024-05-09 09:45:00", 75.8, 75.7, 75.8))
	if _, err := e.InsertOrder(InsertOrderReq{
		InstrumentID: testInst, OrderID: "b1",
		Direction: DirectionBuy, PriceType: PriceTypeAny, Volume: 200,
	}); err != nil {
		t.Fatal(err)
	}
	e.Settle()

	mustQuote(t, e, quoteAt("2024-05-10 09:45:00", 80.1, 80.0, 80.0))
	res, err := e.InsertOrder(InsertOrderReq{
		InstrumentID: testInst, OrderID: "s1",
		Direction: DirectionSell, PriceType: PriceTypeAny, Volume: 100,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Events[len(res.Events)-1].LastMsg != MsgFullyFilled {
		t.Fatalf("sell not filled: %+v", res.Events)
	}

	tree := e.Snapshot()
	pos := posNode(tree, testInst)
	// 成本按历史每股成本 15165/200 扣减
	costRemoved := 100 * (15165.0 / 200.0)
	fee := math.Max(8000*0.00025, 5.0) + 8000*0.001
	wantRealized := 8000.0 - fee - costRemoved
	if !almost(pos["real_profit_today"].(float64), wantRealized) {
		t.Errorf("real_profit_today = %v, want %v", pos["real_profit_today"], wantRealized)
	}
	// 日内卖出不动 volume_his
	if pos["volume_his"] != int64(200) {
		t.Errorf("volume_his = %v, want 200 until settlement", pos["volume_his"])
	}
	if pos["volume"] != int64(100) {
		t.Errorf("volume = %v, want 100", pos["volume"])
	}
}

func TestSellFrozenVolumeBlocksDoubleUse(t *testing.T) {
	e := newTestEngine(100000.0)
	mustQuote(t, e, quoteAt("2024-05-09 09:45:00", 75.8, 75.7, 75.8))
	if _, err := e.InsertOrder(InsertOrderReq{
		InstrumentID: testInst, OrderID: "b1",
		Direction: DirectionBuy, PriceType: PriceTypeAny, Volume: 200,
	}); err != nil {
		t.Fatal(err)
	}

	// 挂一张不会成交的卖单冻结全部持仓
	if _, err := e.InsertOrder(InsertOrderReq{
		InstrumentID: testInst, OrderID: "s1",
		Direction: DirectionSell, PriceType: PriceTypeLimit, LimitPrice: 99.0, Volume: 200,
	}); err != nil {
		t.Fatal(err)
	}
	res, err := e.InsertOrder(InsertOrderReq{
		InstrumentID: testInst, OrderID: "s2",
		Direction: DirectionSell, PriceType: PriceTypeAny, Volume: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Events[0].LastMsg != MsgInsufficientVolume {
		t.Errorf("second sell should hit frozen volume, got %q", res.Events[0].LastMsg)
	}

	// 撤单后解冻
	e.CancelOrder(testInst, "s1")
	res2, err := e.InsertOrder(InsertOrderReq{
		InstrumentID: testInst, OrderID: "s3",
		Direction: DirectionSell, PriceType: PriceTypeAny, Volume: 200,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res2.Events[len(res2.Events)-1].LastMsg != MsgFullyFilled {
		t.Errorf("sell after cancel should fill, got %+v", res2.Events)
	}
}

func TestImmediateSellDoesNotCorruptSellableVolume(t *testing.T) {
	e := newTestEngine(100000.0)
	mustQuote(t, e, quoteAt("2024-05-09 09:45:00", 75.8, 75.7, 75.8))
	if _, err := e.InsertOrder(InsertOrderReq{
		InstrumentID: testInst, OrderID: "b1",
		Direction: DirectionBuy, PriceType: PriceTypeAny, Volume: 100,
	}); err != nil {
		t.Fatal(err)
	}

	// 市价卖 60 立即成交,该单从未冻结持仓
	res, err := e.InsertOrder(InsertOrderReq{
		InstrumentID: testInst, OrderID: "s1",
		Direction: DirectionSell, PriceType: PriceTypeAny, Volume: 60,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Events[len(res.Events)-1].LastMsg != MsgFullyFilled {
		t.Fatalf("first sell should fill, got %+v", res.Events)
	}
	if fz := e.position(testInst).frozenSellVolume; fz != 0 {
		t.Fatalf("frozenSellVolume = %d after immediate fill, want 0", fz)
	}

	// 只剩 40 股,再卖 60 必须被可卖量拦下
	res2, err := e.InsertOrder(InsertOrderReq{
		InstrumentID: testInst, OrderID: "s2",
		Direction: DirectionSell, PriceType: PriceTypeAny, Volume: 60,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res2.Events[0].LastMsg != MsgInsufficientVolume {
		t.Fatalf("oversell should be rejected, got %+v", res2.Events)
	}
	if v := posNode(e.Snapshot(), testInst)["volume"]; v != int64(40) {
		t.Errorf("volume = %v, want 40", v)
	}

	// 剩余 40 股仍可正常卖出
	res3, err := e.InsertOrder(InsertOrderReq{
		InstrumentID: testInst, OrderID: "s3",
		Direction: DirectionSell, PriceType: PriceTypeAny, Volume: 40,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res3.Events[len(res3.Events)-1].LastMsg != MsgFullyFilled {
		t.Fatalf("remaining volume should still sell, got %+v", res3.Events)
	}
	if v := posNode(e.Snapshot(), testInst)["volume"]; v != int64(0) {
		t.Errorf("volume = %v after selling out, want 0", v)
	}
}

func TestDuplicateOrderIDRejected(t *testing.T) {
	e := newTestEngine(100000.0)
	mustQuote(t, e, quoteAt("2024-05-09 09:45:00", 75.8, 75.7, 75.8))
	if _, err := e.InsertOrder(InsertOrderReq{
		InstrumentID: testInst, OrderID: "o1",
		Direction: DirectionBuy, PriceType: PriceTypeLimit, LimitPrice: 75.0, Volume: 100,
	}); err != nil {
		t.Fatal(err)
	}

	_, err := e.InsertOrder(InsertOrderReq{
		InstrumentID: testInst, OrderID: "o1",
		Direction: DirectionBuy, PriceType: PriceTypeAny, Volume: 200,
	})
	if !errors.Is(err, ErrDuplicateOrder) {
		t.Fatalf("expected ErrDuplicateOrder, got %v", err)
	}

	// 原挂单不受影响
	tree := e.Snapshot()
	o := orderNode(tree, "o1")
	if o["status"] != string(StatusAlive) || o["volume_orign"] != int64(100) {
		t.Errorf("resting order disturbed: %+v", o)
	}
	acct := acctNode(tree)
	if !almost(acct["available"].(float64), 100000.0-7505.0) {
		t.Errorf("available = %v, duplicate must not move funds", acct["available"])
	}

	// 撤掉原单后订单号仍然占用,不允许复用
	e.CancelOrder(testInst, "o1")
	_, err = e.InsertOrder(InsertOrderReq{
		InstrumentID: testInst, OrderID: "o1",
		Direction: DirectionBuy, PriceType: PriceTypeAny, Volume: 100,
	})
	if !errors.Is(err, ErrDuplicateOrder) {
		t.Fatalf("order id must stay reserved after cancel, got %v", err)
	}
}

func TestFillReplayKeepsSingleTradeRecord(t *testing.T) {
	e := newTestEngine(100000.0)
	mustQuote(t, e, quoteAt("2024-05-09 09:45:00", 75.8, 75.7, 75.8))
	if _, err := e.InsertOrder(InsertOrderReq{
		InstrumentID: testInst, OrderID: "o1",
		Direction: DirectionBuy, PriceType: PriceTypeAny, Volume: 100,
	}); err != nil {
		t.Fatal(err)
	}
	if len(e.trades) != 1 || len(e.todayTrades) != 1 {
		t.Fatalf("trades = %d todayTrades = %d, want 1/1", len(e.trades), len(e.todayTrades))
	}

	// 重放同一笔成交:trade_id 由订单号和累计量确定,不得双计
	o := e.orders["o1"]
	o.Status = StatusAlive
	o.VolumeLeft = o.VolumeOrign
	c := newCollector()
	e.fill(o, 75.8, c)
	if len(c.trades) != 0 {
		t.Errorf("replayed fill emitted trade patches: %v", c.trades)
	}
	if len(e.trades) != 1 || len(e.todayTrades) != 1 {
		t.Errorf("trades = %d todayTrades = %d after replay, want 1/1",
			len(e.trades), len(e.todayTrades))
	}
}

func TestCancelOrderTwice(t *testing.T) {
	e := newTestEngine(100000.0)
	mustQuote(t, e, quoteAt("2024-05-09 09:45:00", 75.8, 75.7, 75.8))
	if _, err := e.InsertOrder(InsertOrderReq{
		InstrumentID: testInst, OrderID: "o1",
		Direction: DirectionBuy, PriceType: PriceTypeLimit, LimitPrice: 75.0, Volume: 100,
	}); err != nil {
		t.Fatal(err)
	}

	res := e.CancelOrder(testInst, "o1")
	if len(res.Events) != 1 || res.Events[0].LastMsg != MsgCancelledByUser {
		t.Fatalf("first cancel events = %+v", res.Events)
	}
	acct := acctNode(e.Snapshot())
	if acct["available"] != 100000.0 {
		t.Errorf("available = %v after cancel, want funds back", acct["available"])
	}

	res2 := e.CancelOrder(testInst, "o1")
	if len(res2.Patches) != 0 || len(res2.Events) != 0 {
		t.Errorf("second cancel must be a no-op, got %d patches %d events",
			len(res2.Patches), len(res2.Events))
	}

	res3 := e.CancelOrder(testInst, "missing")
	if len(res3.Patches) != 0 || len(res3.Events) != 0 {
		t.Error("cancelling unknown order must be a no-op")
	}
}

func TestCashConservationBuyOnly(t *testing.T) {
	e := newTestEngine(50000.0)
	mustQuote(t, e, quoteAt("2024-05-09 09:45:00", 75.8, 75.7, 75.8))
	orders := []InsertOrderReq{
		{InstrumentID: testInst, OrderID: "o1", Direction: DirectionBuy, PriceType: PriceTypeAny, Volume: 100},
		{InstrumentID: testInst, OrderID: "o2", Direction: DirectionBuy, PriceType: PriceTypeLimit, LimitPrice: 75.0, Volume: 100},
		{InstrumentID: testInst, OrderID: "o3", Direction: DirectionBuy, PriceType: PriceTypeLimit, LimitPrice: 74.5, Volume: 200},
	}
	for _, req := range orders {
		if _, err := e.InsertOrder(req); err != nil {
			t.Fatal(err)
		}
		acct := acctNode(e.Snapshot())
		total := acct["available"].(float64) + acct["buy_frozen_balance"].(float64) + acct["buy_frozen_fee"].(float64)
		if total > acct["asset_his"].(float64)+1e-9 {
			t.Errorf("cash conservation violated after %s: %v > %v",
				req.OrderID, total, acct["asset_his"])
		}
	}
}

func TestDiffReplayReconstructsState(t *testing.T) {
	e := newTestEngine(100000.0)
	mirror := e.InitSnapshot()

	apply := func(res Result) {
		ApplyPatches(mirror, res.Patches)
	}
	apply(mustQuote(t, e, quoteAt("2024-05-09 09:45:00", 75.8, 75.7, 75.8)))
	r, err := e.InsertOrder(InsertOrderReq{
		InstrumentID: testInst, OrderID: "o1",
		Direction: DirectionBuy, PriceType: PriceTypeAny, Volume: 200,
	})
	if err != nil {
		t.Fatal(err)
	}
	apply(r)
	r, err = e.InsertOrder(InsertOrderReq{
		InstrumentID: testInst, OrderID: "o2",
		Direction: DirectionBuy, PriceType: PriceTypeLimit, LimitPrice: 75.0, Volume: 100,
	})
	if err != nil {
		t.Fatal(err)
	}
	apply(r)
	apply(mustQuote(t, e, quoteAt("2024-05-09 10:00:00", 76.2, 76.1, 76.2)))
	apply(e.CancelOrder(testInst, "o2"))
	settleRes, _ := e.Settle()
	apply(settleRes)

	if !reflect.DeepEqual(mirror, e.Snapshot()) {
		t.Error("applying diffs to the caller copy must reproduce the canonical tree")
	}
}

func TestDeterministicReplay(t *testing.T) {
	run := func() map[string]any {
		e := newTestEngine(100000.0)
		mustQuote(t, e, quoteAt("2024-05-09 09:45:00", 75.8, 75.7, 75.8))
		e.InsertOrder(InsertOrderReq{InstrumentID: testInst, OrderID: "o1",
			Direction: DirectionBuy, PriceType: PriceTypeAny, Volume: 200})
		e.InsertOrder(InsertOrderReq{InstrumentID: testInst, OrderID: "o2",
			Direction: DirectionSell, PriceType: PriceTypeLimit, LimitPrice: 76.5, Volume: 100})
		mustQuote(t, e, quoteAt("2024-05-09 10:00:00", 76.6, 76.5, 76.5))
		e.Settle()
		return e.Snapshot()
	}
	if !reflect.DeepEqual(run(), run()) {
		t.Error("same call sequence must produce identical state")
	}
}

func TestPatchOrderingPositionsBeforeAccountBeforeOrders(t *testing.T) {
	e := newTestEngine(100000.0)
	mustQuote(t, e, quoteAt("2024-05-09 09:45:00", 75.8, 75.7, 75.8))
	res, err := e.InsertOrder(InsertOrderReq{
		InstrumentID: testInst, OrderID: "o1",
		Direction: DirectionBuy, PriceType: PriceTypeAny, Volume: 200,
	})
	if err != nil {
		t.Fatal(err)
	}
	rank := func(section string) int {
		switch section {
		case "positions":
			return 0
		case "accounts":
			return 1
		default:
			return 2
		}
	}
	last := -1
	for _, p := range res.Patches {
		r := rank(p.Path[1])
		if r < last {
			t.Fatalf("patch ordering violated at %v", p.Path)
		}
		last = r
	}
	if last == -1 {
		t.Fatal("fill must emit patches")
	}
}
