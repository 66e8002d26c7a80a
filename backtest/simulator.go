package backtest

import (
	"time"

	"tradesim/market"
)

// FillPolicy 成交价策略
type FillPolicy string

// FillPolicyClose 入场与出场统一按信号K线的收盘价成交
// 入出对称，避免单边偏差；整个模拟器只使用这一种策略
const FillPolicyClose FillPolicy = "close"

// position 模拟器的持仓状态，整个回测只有这一份
// 入场时记录时间与价格，平仓时转换成Trade后清空
type position struct {
	open       bool
	entryTime  time.Time
	entryPrice float64
}

// Simulate 对intraday序列做一次线性前向回放，产出按入场时间排序的交易列表
//
// 状态机只有FLAT和LONG两个状态：
//   - FLAT + ENTER_LONG -> LONG，记录入场时间与收盘价，不生成Trade
//   - LONG + EXIT       -> FLAT，按当根收盘价平仓并追加Trade
//   - 序列走完仍LONG    -> 按最后一根收盘价强平，ExitReason=end_of_data
//   - HOLD 不引起任何转移
//
// 日线趋势通过trendCursor按日历日前向对齐，整体O(n+m)。
// 无时钟、无随机依赖：相同输入必然产出逐位相同的交易列表。
func Simulate(intraday, daily []market.Kline) []Trade {
	states := ComputeDailyTrend(daily)
	cursor := newTrendCursor(daily, states)
	gen := newSignalGenerator(intraday)

	trades := make([]Trade, 0)
	var pos position

	for i, bar := range intraday {
		trend := cursor.advance(bar.OpenTime)

		switch gen.At(i, trend) {
		case SignalEnterLong:
			if pos.open {
				continue // 已持仓，重复的入场信号被过滤
			}
			pos = position{
				open:       true,
				entryTime:  bar.OpenTime,
				entryPrice: bar.Close,
			}

		case SignalExit:
			if !pos.open {
				continue // 空仓时的平仓信号被过滤
			}
			trades = append(trades, closeTrade(pos, bar, ExitReasonSignal))
			pos = position{}
		}
	}

	// 数据走完仍持仓：按最后一根K线强平，明确打上end_of_data标记
	// 不能静默丢弃未平仓位，否则会低估持仓暴露
	if pos.open {
		last := intraday[len(intraday)-1]
		trades = append(trades, closeTrade(pos, last, ExitReasonEndOfData))
	}

	return trades
}

func closeTrade(pos position, bar market.Kline, reason ExitReason) Trade {
	exitTime := bar.OpenTime
	return Trade{
		EntryTime:  pos.entryTime,
		ExitTime:   &exitTime,
		Side:       SideLong,
		EntryPrice: pos.entryPrice,
		ExitPrice:  bar.Close,
		PnlPct:     bar.Close/pos.entryPrice - 1,
		ExitReason: reason,
	}
}
