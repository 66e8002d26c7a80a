package backtest

import (
	"fmt"

	"tradesim/market"
)

// Run 执行一次完整的回测：校验 -> 模拟 -> 指标归约
// 两条序列必须已经按请求的symbol与日期范围备好，这里不做任何I/O
func Run(params Params, intraday, daily []market.Kline) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	if err := market.ValidateSeries(intraday); err != nil {
		return nil, fmt.Errorf("intraday series: %w", err)
	}
	if err := market.ValidateSeries(daily); err != nil {
		return nil, fmt.Errorf("daily series: %w", err)
	}
	if err := market.ValidatePair(intraday, daily); err != nil {
		return nil, err
	}

	trades := Simulate(intraday, daily)

	start := intraday[0].OpenTime
	end := intraday[len(intraday)-1].OpenTime
	metrics := CalculateMetrics(trades, start, end)

	return &Result{
		Symbol:    params.Symbol,
		Params:    params,
		Trades:    trades,
		Metrics:   metrics,
		StartTime: start,
		EndTime:   end,
	}, nil
}
