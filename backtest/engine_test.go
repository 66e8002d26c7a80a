package backtest

import (
	"strings"
	"testing"
)

func validParams() Params {
	return Params{
		Symbol:       "BTCUSDT",
		From:         "2024-01-01",
		To:           "2024-02-29",
		RiskPerTrade: 0.02,
		Strategy:     StrategySMACrossover,
	}
}

func TestRun_EndToEnd(t *testing.T) {
	daily := risingDaily(60)
	intraday := intradayFromCloses(oneCrossoverCloses())

	result, err := Run(validParams(), intraday, daily)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if result.Symbol != "BTCUSDT" {
		t.Errorf("symbol = %s, want BTCUSDT", result.Symbol)
	}
	if len(result.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(result.Trades))
	}
	if !result.StartTime.Equal(intraday[0].OpenTime) {
		t.Errorf("start time = %s, want first intraday bar", result.StartTime)
	}
	if !result.EndTime.Equal(intraday[len(intraday)-1].OpenTime) {
		t.Errorf("end time = %s, want last intraday bar", result.EndTime)
	}

	// 指标必须与交易列表自洽：单笔亏损交易
	trade := result.Trades[0]
	if diff := result.Metrics.TotalReturn - trade.PnlPct; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("total return %.8f != single trade pnl %.8f", result.Metrics.TotalReturn, trade.PnlPct)
	}
	if result.Metrics.WinRate != 0 {
		t.Errorf("win rate = %.4f, want 0 for a single losing trade", result.Metrics.WinRate)
	}
}

func TestRun_RejectsInsufficientData(t *testing.T) {
	t.Run("99 intraday bars rejected before simulation", func(t *testing.T) {
		daily := risingDaily(60)
		closes := make([]float64, 99)
		for i := range closes {
			closes[i] = 100
		}
		intraday := intradayFromCloses(closes)

		_, err := Run(validParams(), intraday, daily)
		if err == nil {
			t.Fatal("expected error for 99-bar intraday series")
		}
		if !strings.Contains(err.Error(), "not enough intraday data") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("too few daily bars rejected", func(t *testing.T) {
		daily := risingDaily(30)
		intraday := intradayFromCloses(oneCrossoverCloses())

		_, err := Run(validParams(), intraday, daily)
		if err == nil {
			t.Fatal("expected error for 30-bar daily series")
		}
		if !strings.Contains(err.Error(), "not enough daily data") {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestRun_RejectsCorruptSeries(t *testing.T) {
	daily := risingDaily(60)
	intraday := intradayFromCloses(oneCrossoverCloses())
	intraday[50].High = intraday[50].Low - 1 // OHLC顺序破坏

	_, err := Run(validParams(), intraday, daily)
	if err == nil {
		t.Fatal("expected error for corrupt intraday bar")
	}
	if !strings.Contains(err.Error(), "intraday series") {
		t.Errorf("error should name the offending series, got: %v", err)
	}
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Params)
		wantErr string
	}{
		{
			name:    "valid params pass",
			mutate:  func(p *Params) {},
			wantErr: "",
		},
		{
			name:    "missing symbol",
			mutate:  func(p *Params) { p.Symbol = "" },
			wantErr: "symbol is required",
		},
		{
			name:    "malformed from date",
			mutate:  func(p *Params) { p.From = "01/02/2024" },
			wantErr: "invalid from date",
		},
		{
			name:    "inverted range",
			mutate:  func(p *Params) { p.From, p.To = p.To, p.From },
			wantErr: "date range inverted",
		},
		{
			name:    "risk above 1",
			mutate:  func(p *Params) { p.RiskPerTrade = 1.5 },
			wantErr: "out of range",
		},
		{
			name:    "negative risk",
			mutate:  func(p *Params) { p.RiskPerTrade = -0.1 },
			wantErr: "out of range",
		},
		{
			name:    "unknown strategy",
			mutate:  func(p *Params) { p.Strategy = "buy-and-hold" },
			wantErr: "unsupported strategy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected valid params, got error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestRun_RecordsRiskPerTrade(t *testing.T) {
	// risk_per_trade目前不参与盈亏计算，但必须原样出现在结果里
	daily := risingDaily(60)
	intraday := intradayFromCloses(oneCrossoverCloses())

	params := validParams()
	params.RiskPerTrade = 0.05

	result, err := Run(params, intraday, daily)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Params.RiskPerTrade != 0.05 {
		t.Errorf("risk_per_trade = %.4f, want 0.05", result.Params.RiskPerTrade)
	}
}

// Kline数据完整性校验属于market包，这里验证engine把它接到了入口上
func TestRun_RejectsNonMonotonicTimestamps(t *testing.T) {
	daily := risingDaily(60)
	intraday := intradayFromCloses(oneCrossoverCloses())
	intraday[40].OpenTime = intraday[39].OpenTime // 时间戳不再严格递增

	_, err := Run(validParams(), intraday, daily)
	if err == nil {
		t.Fatal("expected error for non-monotonic timestamps")
	}
}
