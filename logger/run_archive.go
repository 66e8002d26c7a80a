package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"tradesim/backtest"
)

// RunArchive 把回测结果以JSON文件形式归档到runs目录
// 每次运行一个子目录：<dir>/<run_id>/result.json
// 与sqlite记录互补：文件便于直接查看和离线分析
type RunArchive struct {
	mu  sync.Mutex
	dir string
}

// NewRunArchive 构建归档器并确保根目录存在
func NewRunArchive(dir string) (*RunArchive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &RunArchive{dir: dir}, nil
}

// SaveResult 写入一次运行的完整结果
func (a *RunArchive) SaveResult(runID string, result *backtest.Result) error {
	if runID == "" {
		return fmt.Errorf("run id required")
	}
	if result == nil {
		return fmt.Errorf("result is nil")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	runDir := filepath.Join(a.dir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	// 先写临时文件再改名，避免读到半截JSON
	tmp := filepath.Join(runDir, ".result.json.tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(runDir, "result.json")); err != nil {
		return fmt.Errorf("rename result: %w", err)
	}
	return nil
}

// LoadResult 读回一次运行的归档结果
func (a *RunArchive) LoadResult(runID string) (*backtest.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(a.dir, runID, "result.json"))
	if err != nil {
		return nil, err
	}

	var result backtest.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal archived result for %s: %w", runID, err)
	}
	return &result, nil
}
