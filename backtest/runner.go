package backtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"tradesim/market"
)

// RunState 单次回测运行的生命周期状态
type RunState string

const (
	RunStateCreated   RunState = "created"
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
	RunStateFailed    RunState = "failed"
)

// Terminal 是否已到达终态
func (s RunState) Terminal() bool {
	return s == RunStateCompleted || s == RunStateFailed
}

// RunConfig 一次回测运行的配置
type RunConfig struct {
	RunID  string `json:"run_id"`
	Params Params `json:"params"`
}

// StatusPayload 用于API的运行状态响应
type StatusPayload struct {
	RunID      string   `json:"run_id"`
	State      RunState `json:"state"`
	Symbol     string   `json:"symbol"`
	Strategy   string   `json:"strategy"`
	NumTrades  int      `json:"num_trades"`
	LastError  string   `json:"last_error,omitempty"`
	CreatedAt  string   `json:"created_at"`
	FinishedAt string   `json:"finished_at,omitempty"`
}

// Runner 封装单次回测运行的生命周期：拉取数据、执行确定性模拟、
// 持有结果。模拟本身是同步单线程的，Runner只负责把它放到后台执行。
type Runner struct {
	cfg    RunConfig
	source market.Source

	statusMu   sync.RWMutex
	status     RunState
	result     *Result
	err        error
	createdAt  time.Time
	finishedAt time.Time

	doneCh chan struct{}
}

// NewRunner 构建回测运行器
func NewRunner(cfg RunConfig, source market.Source) (*Runner, error) {
	if cfg.RunID == "" {
		return nil, fmt.Errorf("run_id required")
	}
	if source == nil {
		return nil, fmt.Errorf("market source required")
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}

	return &Runner{
		cfg:       cfg,
		source:    source,
		status:    RunStateCreated,
		createdAt: time.Now().UTC(),
		doneCh:    make(chan struct{}),
	}, nil
}

// Start 启动回测，立即返回；结果通过Wait/Result获取
func (r *Runner) Start(ctx context.Context) error {
	r.statusMu.Lock()
	if r.status != RunStateCreated {
		r.statusMu.Unlock()
		return fmt.Errorf("cannot start runner in state %s", r.status)
	}
	r.status = RunStateRunning
	r.statusMu.Unlock()

	go r.run(ctx)
	return nil
}

func (r *Runner) run(ctx context.Context) {
	defer close(r.doneCh)

	params := r.cfg.Params
	intraday, daily, err := market.FetchPair(ctx, r.source, params.Symbol, params.FromTime(), params.ToTime())
	if err != nil {
		r.finish(nil, fmt.Errorf("fetch market data: %w", err))
		return
	}

	result, err := Run(params, intraday, daily)
	r.finish(result, err)
}

func (r *Runner) finish(result *Result, err error) {
	r.statusMu.Lock()
	r.result = result
	r.err = err
	r.finishedAt = time.Now().UTC()
	if err != nil {
		r.status = RunStateFailed
	} else {
		r.status = RunStateCompleted
	}
	r.statusMu.Unlock()

	if err != nil {
		log.Error().Err(err).Str("run_id", r.cfg.RunID).Msg("backtest run failed")
		return
	}
	log.Info().
		Str("run_id", r.cfg.RunID).
		Str("symbol", result.Symbol).
		Int("trades", len(result.Trades)).
		Float64("total_return", result.Metrics.TotalReturn).
		Msg("backtest run completed")
}

// Wait 阻塞直到运行结束，返回失败原因（成功时为nil）
func (r *Runner) Wait() error {
	<-r.doneCh
	r.statusMu.RLock()
	defer r.statusMu.RUnlock()
	return r.err
}

// Status 返回当前运行状态
func (r *Runner) Status() RunState {
	r.statusMu.RLock()
	defer r.statusMu.RUnlock()
	return r.status
}

// Result 运行完成后返回结果；未完成或失败时为nil
func (r *Runner) Result() *Result {
	r.statusMu.RLock()
	defer r.statusMu.RUnlock()
	return r.result
}

// Config 返回运行配置
func (r *Runner) Config() RunConfig {
	return r.cfg
}

// CreatedAt 运行创建时间
func (r *Runner) CreatedAt() time.Time {
	return r.createdAt
}

// FinishedAt 运行结束时间；未结束时为零值
func (r *Runner) FinishedAt() time.Time {
	r.statusMu.RLock()
	defer r.statusMu.RUnlock()
	return r.finishedAt
}

// Err 运行失败原因；成功或未结束时为nil
func (r *Runner) Err() error {
	r.statusMu.RLock()
	defer r.statusMu.RUnlock()
	return r.err
}

// StatusPayload 构建用于API的状态响应
func (r *Runner) StatusPayload() StatusPayload {
	r.statusMu.RLock()
	defer r.statusMu.RUnlock()

	payload := StatusPayload{
		RunID:     r.cfg.RunID,
		State:     r.status,
		Symbol:    r.cfg.Params.Symbol,
		Strategy:  r.cfg.Params.Strategy,
		CreatedAt: r.createdAt.Format(time.RFC3339),
	}
	if r.err != nil {
		payload.LastError = r.err.Error()
	}
	if r.result != nil {
		payload.NumTrades = len(r.result.Trades)
	}
	if !r.finishedAt.IsZero() {
		payload.FinishedAt = r.finishedAt.Format(time.RFC3339)
	}
	return payload
}
