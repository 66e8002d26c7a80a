package backtest

import (
	"time"

	"tradesim/market"
)

// 日线趋势过滤参数：SMA20与SMA50的相对关系
const (
	trendFastPeriod = 20
	trendSlowPeriod = 50
)

// TrendState 由日线序列导出的方向性偏置，按日历日生效
type TrendState int

const (
	TrendNeutral TrendState = iota
	TrendBullish
	TrendBearish
)

func (s TrendState) String() string {
	switch s {
	case TrendBullish:
		return "bullish"
	case TrendBearish:
		return "bearish"
	default:
		return "neutral"
	}
}

// ComputeDailyTrend 对每根日线计算一个TrendState，与输入逐根对齐
// 单次前向遍历，第i天只使用截至第i天的数据（无前视）
// 慢线窗口未满的预热期为neutral，不会触发入场
func ComputeDailyTrend(daily []market.Kline) []TrendState {
	fast := market.SMASeries(daily, trendFastPeriod)
	slow := market.SMASeries(daily, trendSlowPeriod)

	states := make([]TrendState, len(daily))
	for i := range daily {
		if i < trendSlowPeriod-1 {
			states[i] = TrendNeutral
			continue
		}
		switch {
		case fast[i] > slow[i]:
			states[i] = TrendBullish
		case fast[i] < slow[i]:
			states[i] = TrendBearish
		default:
			states[i] = TrendNeutral
		}
	}
	return states
}

// dateOf 把时间戳截断成UTC日历日
func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// trendCursor 把日线节奏与intraday循环解耦的前向指针：
// 对每根intraday K线返回"日历日不晚于它的最近一根日线"的趋势状态，
// 显式按日期对齐而不是用下标推算。第一根日线之前的intraday K线
// 拿到neutral（统一的跳过入场策略，而不是报错）。
type trendCursor struct {
	daily  []market.Kline
	states []TrendState
	idx    int
}

func newTrendCursor(daily []market.Kline, states []TrendState) *trendCursor {
	return &trendCursor{daily: daily, states: states, idx: -1}
}

// advance 推进到ts所在日历日对应的最新日线，返回当前趋势
// 只会前进，整个回测中摊销O(len(daily))
func (c *trendCursor) advance(ts time.Time) TrendState {
	day := dateOf(ts)
	for c.idx+1 < len(c.daily) && !dateOf(c.daily[c.idx+1].OpenTime).After(day) {
		c.idx++
	}
	if c.idx < 0 {
		return TrendNeutral
	}
	return c.states[c.idx]
}
