package backtest

import (
	"math"
	"time"
)

// daysPerYear CAGR年化所用的日历年长度
const daysPerYear = 365.25

// CalculateMetrics 把交易列表与回测时间跨度归约成绩效指标
// 纯函数：不读取任何外部状态，空交易列表返回全零而不是报错
// （一次没有入场的回测是合法结果）
func CalculateMetrics(trades []Trade, start, end time.Time) Metrics {
	closed := make([]Trade, 0, len(trades))
	for _, t := range trades {
		if t.Closed() {
			closed = append(closed, t)
		}
	}

	totalReturn := compoundReturn(closed)

	// 跨度按首尾K线的日历时间计，不足1天时下限取1天防止除零
	days := end.Sub(start).Hours() / 24
	if days < 1 {
		days = 1
	}
	cagr := math.Pow(1+totalReturn, daysPerYear/days) - 1

	wins := 0
	for _, t := range closed {
		if t.PnlPct > 0 {
			wins++
		}
	}
	winRate := 0.0
	if len(closed) > 0 {
		winRate = float64(wins) / float64(len(closed))
	}

	return Metrics{
		TotalReturn: totalReturn,
		CAGR:        cagr,
		WinRate:     winRate,
		MaxDrawdown: maxDrawdown(closed),
	}
}

// compoundReturn 按入场顺序复利累乘：Π(1+pnl) - 1
func compoundReturn(closed []Trade) float64 {
	equity := 1.0
	for _, t := range closed {
		equity *= 1 + t.PnlPct
	}
	return equity - 1
}

// maxDrawdown 沿复利权益曲线（起点1.0，每笔平仓乘以1+pnl）
// 求最大峰谷回撤：第k步回撤 = 1 - equity_k / max(equity_0..k)
func maxDrawdown(closed []Trade) float64 {
	equity := 1.0
	peak := 1.0
	maxDD := 0.0

	for _, t := range closed {
		equity *= 1 + t.PnlPct
		if equity > peak {
			peak = equity
		}
		if dd := 1 - equity/peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}
