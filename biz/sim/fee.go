package sim

// FeePolicy 手续费参数，可按品种注入不同费率
type FeePolicy struct {
	CommissionRate float64 `json:"commission_rate" yaml:"commission_rate"`
	MinCommission  float64 `json:"min_commission" yaml:"min_commission"`
	StampDutyRate  float64 `json:"stamp_duty_rate" yaml:"stamp_duty_rate"` // 仅卖出收取
}

// DefaultFeePolicy A股默认费率
func DefaultFeePolicy() FeePolicy {
	return FeePolicy{
		CommissionRate: 0.00025,
		MinCommission:  5.0,
		StampDutyRate:  0.001,
	}
}

// Fee 计算一笔成交的费用，佣金双向收取且有最低值，印花税只在卖出收取
func (p FeePolicy) Fee(notional float64, direction Direction) float64 {
	commission := notional * p.CommissionRate
	if commission < p.MinCommission {
		commission = p.MinCommission
	}
	if direction == DirectionSell {
		return commission + notional*p.StampDutyRate
	}
	return commission
}
