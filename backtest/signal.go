package backtest

import "tradesim/market"

// intraday信号参数：SMA10与SMA30的交叉关系
const (
	signalFastPeriod = 10
	signalSlowPeriod = 30
)

// signalGenerator 基于intraday序列预计算快慢均线，逐根给出原始信号
// 入场被日线趋势闸门限制：只有日线bullish时才允许ENTER_LONG；
// 平仓不受闸门限制，趋势转坏本身就是离场理由。
// 这里产出的是原始信号，FLAT/LONG不变量由模拟器过滤保证。
type signalGenerator struct {
	fast []float64
	slow []float64
}

func newSignalGenerator(intraday []market.Kline) *signalGenerator {
	return &signalGenerator{
		fast: market.SMASeries(intraday, signalFastPeriod),
		slow: market.SMASeries(intraday, signalSlowPeriod),
	}
}

// At 对第i根intraday K线结合当日趋势给出信号
// 慢线预热期内一律HOLD，预热K线不允许触发任何动作
func (g *signalGenerator) At(i int, trend TrendState) Signal {
	if i < signalSlowPeriod-1 {
		return SignalHold
	}

	bullishBar := g.fast[i] > g.slow[i]
	if trend == TrendBullish && bullishBar {
		return SignalEnterLong
	}
	return SignalExit
}
