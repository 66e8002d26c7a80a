package backtest

import (
	"testing"
)

func TestSignalGenerator_WarmupHolds(t *testing.T) {
	intraday := intradayFromCloses(oneCrossoverCloses())
	gen := newSignalGenerator(intraday)

	for i := 0; i < signalSlowPeriod-1; i++ {
		if sig := gen.At(i, TrendBullish); sig != SignalHold {
			t.Errorf("bar %d: expected hold during warmup, got %s", i, sig)
		}
	}
}

func TestSignalGenerator_TrendGatesEntries(t *testing.T) {
	// 第98根之后快线在慢线上方（金叉已发生）
	intraday := intradayFromCloses(oneCrossoverCloses())
	gen := newSignalGenerator(intraday)

	tests := []struct {
		name  string
		trend TrendState
		want  Signal
	}{
		{name: "bullish trend allows entry", trend: TrendBullish, want: SignalEnterLong},
		{name: "neutral trend blocks entry", trend: TrendNeutral, want: SignalExit},
		{name: "bearish trend blocks entry", trend: TrendBearish, want: SignalExit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := gen.At(100, tt.trend); got != tt.want {
				t.Errorf("At(100, %s) = %s, want %s", tt.trend, got, tt.want)
			}
		})
	}
}

func TestSignalGenerator_ExitIgnoresTrendGate(t *testing.T) {
	// 第116根快线已跌破慢线：即使日线仍bullish也应给出exit
	intraday := intradayFromCloses(oneCrossoverCloses())
	gen := newSignalGenerator(intraday)

	if got := gen.At(116, TrendBullish); got != SignalExit {
		t.Errorf("expected exit on dead cross regardless of trend, got %s", got)
	}
}
