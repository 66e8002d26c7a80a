package config

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"tradesim/backtest"
)

// Database 回测运行记录的sqlite存储
// 完整结果以JSON形式入库，重启后仍可查询历史运行
type Database struct {
	db *sql.DB
}

// RunRecord 一次回测运行的持久化记录
type RunRecord struct {
	ID         string
	Symbol     string
	State      backtest.RunState
	Params     backtest.Params
	Result     *backtest.Result // 仅completed状态存在
	LastError  string
	CreatedAt  time.Time
	FinishedAt time.Time
}

// NewDatabase 打开（必要时创建）数据库并初始化表结构
func NewDatabase(path string) (*Database, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// sqlite单写者，限制连接数避免SQLITE_BUSY
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		symbol      TEXT NOT NULL,
		state       TEXT NOT NULL,
		params_json TEXT NOT NULL,
		result_json TEXT,
		last_error  TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMP NOT NULL,
		finished_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Database{db: db}, nil
}

// Close 关闭底层连接
func (d *Database) Close() error {
	return d.db.Close()
}

// SaveRun 插入或更新一条运行记录
func (d *Database) SaveRun(rec *RunRecord) error {
	paramsJSON, err := json.Marshal(rec.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	var resultJSON sql.NullString
	if rec.Result != nil {
		data, err := json.Marshal(rec.Result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		resultJSON = sql.NullString{String: string(data), Valid: true}
	}

	var finishedAt sql.NullTime
	if !rec.FinishedAt.IsZero() {
		finishedAt = sql.NullTime{Time: rec.FinishedAt.UTC(), Valid: true}
	}

	_, err = d.db.Exec(`
		INSERT INTO runs (id, symbol, state, params_json, result_json, last_error, created_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state       = excluded.state,
			result_json = excluded.result_json,
			last_error  = excluded.last_error,
			finished_at = excluded.finished_at`,
		rec.ID, rec.Symbol, string(rec.State), string(paramsJSON),
		resultJSON, rec.LastError, rec.CreatedAt.UTC(), finishedAt,
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", rec.ID, err)
	}
	return nil
}

// GetRun 按ID读取运行记录，不存在时返回sql.ErrNoRows
func (d *Database) GetRun(id string) (*RunRecord, error) {
	row := d.db.QueryRow(`
		SELECT id, symbol, state, params_json, result_json, last_error, created_at, finished_at
		FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// ListRuns 按创建时间倒序列出所有运行记录
func (d *Database) ListRuns() ([]*RunRecord, error) {
	rows, err := d.db.Query(`
		SELECT id, symbol, state, params_json, result_json, last_error, created_at, finished_at
		FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []*RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteRun 删除一条运行记录
func (d *Database) DeleteRun(id string) error {
	res, err := d.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var (
		rec        RunRecord
		state      string
		paramsJSON string
		resultJSON sql.NullString
		finishedAt sql.NullTime
	)
	if err := row.Scan(&rec.ID, &rec.Symbol, &state, &paramsJSON,
		&resultJSON, &rec.LastError, &rec.CreatedAt, &finishedAt); err != nil {
		return nil, err
	}

	rec.State = backtest.RunState(state)
	if err := json.Unmarshal([]byte(paramsJSON), &rec.Params); err != nil {
		return nil, fmt.Errorf("unmarshal params for %s: %w", rec.ID, err)
	}
	if resultJSON.Valid {
		var result backtest.Result
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return nil, fmt.Errorf("unmarshal result for %s: %w", rec.ID, err)
		}
		rec.Result = &result
	}
	if finishedAt.Valid {
		rec.FinishedAt = finishedAt.Time
	}
	return &rec, nil
}
