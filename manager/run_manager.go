package manager

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"tradesim/backtest"
	"tradesim/config"
	"tradesim/market"
)

// RunStore 运行记录的持久化接口，由config.Database实现
type RunStore interface {
	SaveRun(rec *config.RunRecord) error
	GetRun(id string) (*config.RunRecord, error)
	ListRuns() ([]*config.RunRecord, error)
}

// ResultArchive 完成结果的归档接口，由logger.RunArchive实现
type ResultArchive interface {
	SaveResult(runID string, result *backtest.Result) error
}

// RunManager 管理内存中的回测运行：提交、查询、列表。
// 已完成的运行落库并归档结果，进程重启后仍可通过store查询。
type RunManager struct {
	mu      sync.RWMutex
	runners map[string]*backtest.Runner

	source  market.Source
	store   RunStore
	archive ResultArchive
}

// NewRunManager 创建运行管理器；store与archive可为nil（不持久化）
func NewRunManager(source market.Source, store RunStore, archive ResultArchive) *RunManager {
	return &RunManager{
		runners: make(map[string]*backtest.Runner),
		source:  source,
		store:   store,
		archive: archive,
	}
}

// Submit 校验参数、分配run_id并启动后台回测，立即返回run_id
func (m *RunManager) Submit(ctx context.Context, params backtest.Params) (string, error) {
	runID := uuid.NewString()

	runner, err := backtest.NewRunner(backtest.RunConfig{RunID: runID, Params: params}, m.source)
	if err != nil {
		return "", err
	}

	if err := runner.Start(ctx); err != nil {
		return "", err
	}

	m.mu.Lock()
	m.runners[runID] = runner
	m.mu.Unlock()

	m.persistStatus(runner)
	go m.persistWhenDone(runner)

	log.Info().
		Str("run_id", runID).
		Str("symbol", params.Symbol).
		Str("strategy", params.Strategy).
		Msg("backtest run submitted")
	return runID, nil
}

// Get 按run_id查询内存中的运行
func (m *RunManager) Get(runID string) (*backtest.Runner, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	runner, ok := m.runners[runID]
	return runner, ok
}

// List 返回所有内存中运行的状态快照，按创建时间倒序
func (m *RunManager) List() []backtest.StatusPayload {
	m.mu.RLock()
	runners := make([]*backtest.Runner, 0, len(m.runners))
	for _, r := range m.runners {
		runners = append(runners, r)
	}
	m.mu.RUnlock()

	sort.Slice(runners, func(i, j int) bool {
		return runners[i].CreatedAt().After(runners[j].CreatedAt())
	})

	payloads := make([]backtest.StatusPayload, len(runners))
	for i, r := range runners {
		payloads[i] = r.StatusPayload()
	}
	return payloads
}

// Remove 从内存中移除运行；仅允许移除终态运行，记录保留在store中
func (m *RunManager) Remove(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	runner, ok := m.runners[runID]
	if !ok {
		return nil
	}
	if !runner.Status().Terminal() {
		return fmt.Errorf("run %s is still %s", runID, runner.Status())
	}
	delete(m.runners, runID)
	return nil
}

// persistWhenDone 等待运行结束后落库并归档结果
func (m *RunManager) persistWhenDone(runner *backtest.Runner) {
	_ = runner.Wait()
	m.persistStatus(runner)

	if m.archive == nil {
		return
	}
	result := runner.Result()
	if result == nil {
		return
	}
	if err := m.archive.SaveResult(runner.Config().RunID, result); err != nil {
		log.Warn().Err(err).Str("run_id", runner.Config().RunID).Msg("failed to archive result")
	}
}

func (m *RunManager) persistStatus(runner *backtest.Runner) {
	if m.store == nil {
		return
	}

	cfg := runner.Config()
	rec := &config.RunRecord{
		ID:         cfg.RunID,
		Symbol:     cfg.Params.Symbol,
		State:      runner.Status(),
		Params:     cfg.Params,
		Result:     runner.Result(),
		CreatedAt:  runner.CreatedAt(),
		FinishedAt: runner.FinishedAt(),
	}
	if err := runner.Err(); err != nil {
		rec.LastError = err.Error()
	}
	if err := m.store.SaveRun(rec); err != nil {
		log.Warn().Err(err).Str("run_id", cfg.RunID).Msg("failed to persist run record")
	}
}
