package backtest

import (
	"fmt"
	"time"
)

// StrategySMACrossover 当前唯一支持的策略：日线趋势过滤 + 15m均线交叉
const StrategySMACrossover = "sma-crossover"

// DateLayout 请求参数中日历日的格式
const DateLayout = "2006-01-02"

// Side 交易方向。目前模拟器只会产出long；flat表示未持仓
type Side string

const (
	SideLong Side = "long"
	SideFlat Side = "flat"
)

// Signal 信号生成器对单根intraday K线的判定
type Signal int

const (
	SignalHold Signal = iota
	SignalEnterLong
	SignalExit
)

func (s Signal) String() string {
	switch s {
	case SignalEnterLong:
		return "enter_long"
	case SignalExit:
		return "exit"
	default:
		return "hold"
	}
}

// ExitReason 区分信号驱动的平仓与数据走完时的强制平仓
// 指标消费方可以据此决定是否把强平计入胜率
type ExitReason string

const (
	ExitReasonSignal    ExitReason = "signal"
	ExitReasonEndOfData ExitReason = "end_of_data"
)

// Trade 一次完整（或被强制结束）的持仓回合
// 平仓后不可变；ExitTime仅在序列结束仍持仓的未平回合中缺失
type Trade struct {
	EntryTime  time.Time  `json:"entry_time"`
	ExitTime   *time.Time `json:"exit_time,omitempty"`
	Side       Side       `json:"side"`
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  float64    `json:"exit_price,omitempty"`
	PnlPct     float64    `json:"pnl_pct"`
	ExitReason ExitReason `json:"exit_reason,omitempty"`
}

// Closed 该回合是否已平仓
func (t *Trade) Closed() bool {
	return t.ExitTime != nil
}

// Metrics 绩效汇总，全部为小数（0.1 = 10%），非百分比
// WinRate与MaxDrawdown硬性落在[0,1]；TotalReturn/CAGR可超过1
type Metrics struct {
	TotalReturn float64 `json:"total_return"`
	CAGR        float64 `json:"cagr"`
	WinRate     float64 `json:"win_rate"`
	MaxDrawdown float64 `json:"max_drawdown"`
}

// Params 一次回测的输入参数
// RiskPerTrade目前仅随结果透传，为将来按资金规模计算盈亏预留
type Params struct {
	Symbol       string  `json:"symbol"`
	From         string  `json:"from"` // YYYY-MM-DD
	To           string  `json:"to"`   // YYYY-MM-DD
	RiskPerTrade float64 `json:"risk_per_trade"`
	Strategy     string  `json:"strategy"`
}

// Validate 校验参数，返回第一条可读的错误
func (p Params) Validate() error {
	if p.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	from, err := time.Parse(DateLayout, p.From)
	if err != nil {
		return fmt.Errorf("invalid from date %q: want YYYY-MM-DD", p.From)
	}
	to, err := time.Parse(DateLayout, p.To)
	if err != nil {
		return fmt.Errorf("invalid to date %q: want YYYY-MM-DD", p.To)
	}
	if to.Before(from) {
		return fmt.Errorf("date range inverted: %s is before %s", p.To, p.From)
	}
	if p.RiskPerTrade < 0 || p.RiskPerTrade > 1 {
		return fmt.Errorf("risk_per_trade %.4f out of range [0,1]", p.RiskPerTrade)
	}
	if p.Strategy != StrategySMACrossover {
		return fmt.Errorf("unsupported strategy %q", p.Strategy)
	}
	return nil
}

// FromTime / ToTime 解析日历日，Validate通过后保证不出错
func (p Params) FromTime() time.Time {
	t, _ := time.Parse(DateLayout, p.From)
	return t
}

func (p Params) ToTime() time.Time {
	t, _ := time.Parse(DateLayout, p.To)
	return t
}

// Result 回测输出：输入参数 + 按入场时间排序的交易列表 + 绩效指标
// 纯数据值，可直接序列化
type Result struct {
	Symbol    string    `json:"symbol"`
	Params    Params    `json:"params"`
	Trades    []Trade   `json:"trades"`
	Metrics   Metrics   `json:"metrics"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}
