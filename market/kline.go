package market

import (
	"fmt"
	"time"
)

const (
	// IntradayInterval 信号判断所用的细粒度K线周期
	IntradayInterval = "15m"
	// DailyInterval 趋势过滤所用的日线周期
	DailyInterval = "1d"

	// MinIntradayBars / MinDailyBars 回测可运行的最小数据量
	// 低于该阈值的请求在进入模拟器之前直接拒绝
	MinIntradayBars = 100
	MinDailyBars    = 60
)

// Kline 单根K线（固定周期的一条OHLCV观测值）
type Kline struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// ValidateSeries 校验单条K线序列的完整性：
// 时间戳严格递增、价格为正、high/low 覆盖 open/close、volume 非负。
// 任何一条违反都视为该次回测的致命错误，不做静默修复。
func ValidateSeries(klines []Kline) error {
	for i, k := range klines {
		if k.Open <= 0 || k.High <= 0 || k.Low <= 0 || k.Close <= 0 {
			return fmt.Errorf("bar %d: non-positive price (O=%.8f H=%.8f L=%.8f C=%.8f)",
				i, k.Open, k.High, k.Low, k.Close)
		}
		if k.Volume < 0 {
			return fmt.Errorf("bar %d: negative volume %.8f", i, k.Volume)
		}
		if k.High < k.Open || k.High < k.Close || k.High < k.Low {
			return fmt.Errorf("bar %d: high %.8f below open/close/low", i, k.High)
		}
		if k.Low > k.Open || k.Low > k.Close {
			return fmt.Errorf("bar %d: low %.8f above open/close", i, k.Low)
		}
		if i > 0 && !k.OpenTime.After(klines[i-1].OpenTime) {
			return fmt.Errorf("bar %d: timestamp %s not after previous bar %s",
				i, k.OpenTime.Format(time.RFC3339), klines[i-1].OpenTime.Format(time.RFC3339))
		}
	}
	return nil
}

// ValidatePair 校验一次回测所需的两条序列的联合约束：
// 最小数据量、intraday条数严格多于daily、intraday时间跨度不短于daily。
func ValidatePair(intraday, daily []Kline) error {
	if len(intraday) < MinIntradayBars {
		return fmt.Errorf("not enough intraday data: got %d bars, need at least %d",
			len(intraday), MinIntradayBars)
	}
	if len(daily) < MinDailyBars {
		return fmt.Errorf("not enough daily data: got %d bars, need at least %d",
			len(daily), MinDailyBars)
	}
	if len(intraday) <= len(daily) {
		return fmt.Errorf("intraday series must contain strictly more bars than daily (%d <= %d)",
			len(intraday), len(daily))
	}

	intradaySpan := intraday[len(intraday)-1].OpenTime.Sub(intraday[0].OpenTime)
	dailySpan := daily[len(daily)-1].OpenTime.Sub(daily[0].OpenTime)
	if intradaySpan < dailySpan {
		return fmt.Errorf("intraday series spans %s, shorter than daily series %s",
			intradaySpan, dailySpan)
	}
	return nil
}
