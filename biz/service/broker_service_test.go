package service

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"simbroker/biz/sim"
)

func TestTradesFromPatches(t *testing.T) {
	acct := "u1|CNY"
	patches := []sim.Patch{
		{Path: []string{acct, "positions", "SSE.603666", "volume"}, Value: int64(200)},
		{Path: []string{acct, "accounts", "CNY", "available"}, Value: 84835.0},
		{Path: []string{acct, "trades", "o1|200", "trade_id"}, Value: "o1|200"},
		{Path: []string{acct, "trades", "o1|200", "order_id"}, Value: "o1"},
		{Path: []string{acct, "trades", "o1|200", "instrument_id"}, Value: "SSE.603666"},
		{Path: []string{acct, "trades", "o1|200", "direction"}, Value: "BUY"},
		{Path: []string{acct, "trades", "o1|200", "price"}, Value: 75.8},
		{Path: []string{acct, "trades", "o1|200", "volume"}, Value: int64(200)},
		{Path: []string{acct, "trades", "o1|200", "fee"}, Value: 5.0},
		{Path: []string{acct, "trades", "o1|200", "trade_date_time"}, Value: int64(1715218200000000000)},
	}
	trades := tradesFromPatches(acct, patches)
	if len(trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(trades))
	}
	tr := trades[0]
	if tr.TradeID != "o1|200" || tr.OrderID != "o1" || tr.InstrumentID != "SSE.603666" {
		t.Errorf("identity fields wrong: %+v", tr)
	}
	if tr.Price != 75.8 || tr.Volume != 200 || tr.Fee != 5.0 {
		t.Errorf("numeric fields wrong: %+v", tr)
	}
	if tr.AccountKey != acct {
		t.Errorf("account_key = %q", tr.AccountKey)
	}
}

func TestTradesFromPatchesIgnoresOtherSections(t *testing.T) {
	acct := "u1|CNY"
	patches := []sim.Patch{
		{Path: []string{acct, "orders", "o1", "status"}, Value: "FINISHED"},
		{Path: []string{acct, "accounts", "CNY", "asset"}, Value: 99995.0},
	}
	if got := tradesFromPatches(acct, patches); len(got) != 0 {
		t.Errorf("expected no trades, got %+v", got)
	}
}

func TestPostJSONDrainsBody(t *testing.T) {
	var sawContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"msg":"not my partition"}`))
	}))
	defer srv.Close()

	// 连续转发多次,响应体每次都被读完关闭,连接可以复用不泄漏
	for i := 0; i < 20; i++ {
		status, err := postJSON(srv.URL, []byte(`{"account_key":"u1|CNY"}`))
		if err != nil {
			t.Fatalf("postJSON failed on round %d: %v", i, err)
		}
		if status != http.StatusBadGateway {
			t.Fatalf("status = %d, want 502", status)
		}
	}
	if sawContentType != "application/json" {
		t.Errorf("Content-Type = %q", sawContentType)
	}
}
