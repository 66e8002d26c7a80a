package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "btcusdt", want: "BTCUSDT"},
		{in: " ETHUSDT ", want: "ETHUSDT"},
		{in: "SolUsdt", want: "SOLUSDT"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRangeBounds(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	startMs, endMs := RangeBounds(from, to)

	if got := time.UnixMilli(startMs).UTC(); !got.Equal(from) {
		t.Errorf("start = %s, want %s", got, from)
	}
	// to为含端日期：结束时刻应为1月31日的最后一毫秒
	wantEnd := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC).UnixMilli() - 1
	if endMs != wantEnd {
		t.Errorf("end = %d, want %d", endMs, wantEnd)
	}
}

func TestRangeBounds_SingleDay(t *testing.T) {
	day := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	startMs, endMs := RangeBounds(day, day)

	if endMs <= startMs {
		t.Errorf("single-day range collapsed: start=%d end=%d", startMs, endMs)
	}
	if span := endMs - startMs; span != 24*60*60*1000-1 {
		t.Errorf("span = %dms, want one day minus 1ms", span)
	}
}

func TestParseKline(t *testing.T) {
	raw := &binance.Kline{
		OpenTime: 1704067200000, // 2024-01-01T00:00:00Z
		Open:     "42000.50",
		High:     "42500.00",
		Low:      "41800.25",
		Close:    "42300.75",
		Volume:   "1234.567",
	}

	k, err := parseKline(raw)
	if err != nil {
		t.Fatalf("parseKline: %v", err)
	}

	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !k.OpenTime.Equal(want) {
		t.Errorf("open time = %s, want %s", k.OpenTime, want)
	}
	if k.Open != 42000.50 || k.High != 42500.00 || k.Low != 41800.25 || k.Close != 42300.75 {
		t.Errorf("unexpected OHLC: %+v", k)
	}
	if k.Volume != 1234.567 {
		t.Errorf("volume = %.3f, want 1234.567", k.Volume)
	}
}

func TestParseKline_MalformedField(t *testing.T) {
	raw := &binance.Kline{
		OpenTime: 1704067200000,
		Open:     "42000.50",
		High:     "not-a-number",
		Low:      "41800.25",
		Close:    "42300.75",
		Volume:   "1",
	}

	if _, err := parseKline(raw); err == nil {
		t.Fatal("expected error for malformed high field")
	}
}

// fakeSource 记录FetchPair请求到的周期
type fakeSource struct {
	intervals chan string
	err       error
}

func (f *fakeSource) Klines(ctx context.Context, symbol, interval string, from, to time.Time) ([]Kline, error) {
	f.intervals <- interval
	if f.err != nil {
		return nil, f.err
	}
	return flatKlines(3, 15*time.Minute), nil
}

func TestFetchPair_RequestsBothTimeframes(t *testing.T) {
	src := &fakeSource{intervals: make(chan string, 2)}

	intraday, daily, err := FetchPair(context.Background(), src, "BTCUSDT",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("FetchPair: %v", err)
	}
	if intraday == nil || daily == nil {
		t.Fatal("expected both series")
	}

	close(src.intervals)
	seen := map[string]bool{}
	for interval := range src.intervals {
		seen[interval] = true
	}
	if !seen[IntradayInterval] || !seen[DailyInterval] {
		t.Errorf("expected both %s and %s to be requested, saw %v",
			IntradayInterval, DailyInterval, seen)
	}
}

func TestFetchPair_PropagatesError(t *testing.T) {
	src := &fakeSource{intervals: make(chan string, 2), err: errors.New("rate limited")}

	_, _, err := FetchPair(context.Background(), src, "BTCUSDT",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	if err == nil {
		t.Fatal("expected fetch error to propagate")
	}
}
