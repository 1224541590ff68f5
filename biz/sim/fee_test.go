package sim

import (
	"math"
	"testing"
)

func TestDefaultFeeBuy(t *testing.T) {
	p := DefaultFeePolicy()
	if got := p.Fee(15160, DirectionBuy); got != 5.0 {
		t.Errorf("buy fee below minimum should be 5.0, got %v", got)
	}
	// 2万以上佣金超过最低值
	if got := p.Fee(100000, DirectionBuy); got != 25.0 {
		t.Errorf("buy fee = %v, want 25.0", got)
	}
}

func TestFeeSellHasStampDuty(t *testing.T) {
	p := DefaultFeePolicy()
	notionals := []float64{1000, 15160, 20000, 100000, 1234567.89}
	for _, n := range notionals {
		buy := p.Fee(n, DirectionBuy)
		sell := p.Fee(n, DirectionSell)
		want := buy + n*0.001
		if math.Abs(sell-want) > 1e-9 {
			t.Errorf("notional %v: sell fee %v, want buy fee + duty = %v", n, sell, want)
		}
		wantBuy := n * 0.00025
		if wantBuy < 5.0 {
			wantBuy = 5.0
		}
		if buy != wantBuy {
			t.Errorf("notional %v: buy fee %v, want %v", n, buy, wantBuy)
		}
	}
}

func TestCustomFeePolicy(t *testing.T) {
	p := FeePolicy{CommissionRate: 0.001, MinCommission: 1.0, StampDutyRate: 0}
	if got := p.Fee(10000, DirectionSell); got != 10.0 {
		t.Errorf("custom policy fee = %v, want 10.0", got)
	}
}
