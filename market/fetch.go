package market

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/rs/zerolog/log"
)

const (
	klineFetchLimit    = 1000
	fetchMaxRetries    = 3
	fetchRetryBaseWait = 500 * time.Millisecond
)

// Source 为回测提供某个交易对在指定日期范围内的K线序列
// from/to 为日历日（UTC），范围含两端
type Source interface {
	Klines(ctx context.Context, symbol, interval string, from, to time.Time) ([]Kline, error)
}

// BinanceSource 基于币安现货行情接口的数据源实现
type BinanceSource struct {
	client *binance.Client
}

// NewBinanceSource 构建币安数据源，baseURL为空时使用官方默认地址
func NewBinanceSource(baseURL string) *BinanceSource {
	client := binance.NewClient("", "")
	if baseURL != "" {
		client.BaseURL = baseURL
	}
	return &BinanceSource{client: client}
}

// Normalize 标准化symbol：大写、去空白
func Normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// RangeBounds 把日历日范围 [from, to] 换算成毫秒时间戳区间
// to 为含端日期，结束时刻取当日最后一毫秒
func RangeBounds(from, to time.Time) (startMs, endMs int64) {
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return start.UnixMilli(), end.UnixMilli() - 1
}

// Klines 拉取指定周期的K线并归一化，自动翻页直到覆盖整个范围
func (s *BinanceSource) Klines(ctx context.Context, symbol, interval string, from, to time.Time) ([]Kline, error) {
	symbol = Normalize(symbol)
	startMs, endMs := RangeBounds(from, to)

	var out []Kline
	cursor := startMs
	for cursor <= endMs {
		batch, err := s.fetchWithRetry(ctx, symbol, interval, cursor, endMs)
		if err != nil {
			return nil, fmt.Errorf("fetch %s %s klines: %w", symbol, interval, err)
		}
		if len(batch) == 0 {
			break
		}

		for _, raw := range batch {
			k, err := parseKline(raw)
			if err != nil {
				return nil, fmt.Errorf("parse %s %s kline: %w", symbol, interval, err)
			}
			out = append(out, k)
		}

		if len(batch) < klineFetchLimit {
			break
		}
		cursor = batch[len(batch)-1].CloseTime + 1
	}

	log.Debug().
		Str("symbol", symbol).
		Str("interval", interval).
		Int("bars", len(out)).
		Msg("fetched klines")

	return out, nil
}

// fetchWithRetry 单页拉取，失败时线性退避重试
// 数据拉取是系统中唯一允许重试的环节，模拟器本身永不重试
func (s *BinanceSource) fetchWithRetry(ctx context.Context, symbol, interval string, startMs, endMs int64) ([]*binance.Kline, error) {
	var lastErr error
	for attempt := 0; attempt < fetchMaxRetries; attempt++ {
		batch, err := s.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(startMs).
			EndTime(endMs).
			Limit(klineFetchLimit).
			Do(ctx)
		if err == nil {
			return batch, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		delay := time.Duration(attempt+1) * fetchRetryBaseWait
		log.Warn().Err(err).
			Str("symbol", symbol).
			Str("interval", interval).
			Dur("retry_in", delay).
			Msg("kline fetch failed, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

func parseKline(raw *binance.Kline) (Kline, error) {
	open, err := strconv.ParseFloat(raw.Open, 64)
	if err != nil {
		return Kline{}, fmt.Errorf("open %q: %w", raw.Open, err)
	}
	high, err := strconv.ParseFloat(raw.High, 64)
	if err != nil {
		return Kline{}, fmt.Errorf("high %q: %w", raw.High, err)
	}
	low, err := strconv.ParseFloat(raw.Low, 64)
	if err != nil {
		return Kline{}, fmt.Errorf("low %q: %w", raw.Low, err)
	}
	closePx, err := strconv.ParseFloat(raw.Close, 64)
	if err != nil {
		return Kline{}, fmt.Errorf("close %q: %w", raw.Close, err)
	}
	volume, err := strconv.ParseFloat(raw.Volume, 64)
	if err != nil {
		return Kline{}, fmt.Errorf("volume %q: %w", raw.Volume, err)
	}

	return Kline{
		OpenTime: time.UnixMilli(raw.OpenTime).UTC(),
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closePx,
		Volume:   volume,
	}, nil
}

// FetchPair 并发拉取intraday与daily两条序列
// 两条序列必须在模拟开始前全部就绪，任一失败则整体失败
func FetchPair(ctx context.Context, src Source, symbol string, from, to time.Time) (intraday, daily []Kline, err error) {
	type fetchResult struct {
		interval string
		klines   []Kline
		err      error
	}

	results := make(chan fetchResult, 2)
	for _, interval := range []string{IntradayInterval, DailyInterval} {
		go func(interval string) {
			klines, err := src.Klines(ctx, symbol, interval, from, to)
			results <- fetchResult{interval: interval, klines: klines, err: err}
		}(interval)
	}

	for i := 0; i < 2; i++ {
		res := <-results
		if res.err != nil && err == nil {
			err = res.err
		}
		switch res.interval {
		case IntradayInterval:
			intraday = res.klines
		case DailyInterval:
			daily = res.klines
		}
	}
	if err != nil {
		return nil, nil, err
	}
	return intraday, daily, nil
}
