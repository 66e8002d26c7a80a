package market

// =============================================================================
// 技术指标计算函数
// 这些函数是纯计算函数，不依赖任何外部状态
// =============================================================================

// SMA 计算收盘价的简单移动平均（取序列末尾period根）
// 数据不足时返回0，调用方把0视为预热期
func SMA(klines []Kline, period int) float64 {
	if period <= 0 || len(klines) < period {
		return 0
	}

	sum := 0.0
	for i := len(klines) - period; i < len(klines); i++ {
		sum += klines[i].Close
	}
	return sum / float64(period)
}

// SMASeries 计算滚动SMA序列，与输入逐根对齐
// 第i个值为 [i-period+1, i] 区间收盘价的均值；窗口未满时为0（预热期）
// 滑动求和实现，整体O(n)
func SMASeries(klines []Kline, period int) []float64 {
	out := make([]float64, len(klines))
	if period <= 0 || len(klines) < period {
		return out
	}

	sum := 0.0
	for i, k := range klines {
		sum += k.Close
		if i >= period {
			sum -= klines[i-period].Close
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}
