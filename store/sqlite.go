package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/teilomillet/relcheck/abtest"
	"github.com/teilomillet/relcheck/monitor"
	"github.com/teilomillet/relcheck/registry"
)

const schema = `
CREATE TABLE IF NOT EXISTS models (
	name TEXT NOT NULL,
	version TEXT NOT NULL,
	payload TEXT NOT NULL,
	PRIMARY KEY (name, version)
);

CREATE TABLE IF NOT EXISTS ab_configs (
	test_name TEXT PRIMARY KEY,
	payload TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ab_results (
	test_name TEXT PRIMARY KEY,
	payload TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS perf_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	model_name TEXT NOT NULL,
	ts INTEGER NOT NULL,
	payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_perf_records_model_ts ON perf_records(model_name, ts);

CREATE TABLE IF NOT EXISTS alert_rules (
	id TEXT PRIMARY KEY,
	model_name TEXT NOT NULL,
	payload TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS alerts (
	id TEXT PRIMARY KEY,
	model_name TEXT NOT NULL,
	triggered_at INTEGER NOT NULL,
	acknowledged INTEGER NOT NULL DEFAULT 0,
	payload TEXT NOT NULL
);
`

// SQLiteStore keeps every record as a JSON payload in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens or creates the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) exec(ctx context.Context, query string, v any, args ...any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, append(args, string(payload))...)
	return err
}

func queryOne[T any](ctx context.Context, db *sql.DB, query string, args ...any) (*T, error) {
	var payload string
	err := db.QueryRowContext(ctx, query, args...).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func queryAll[T any](ctx context.Context, db *sql.DB, query string, args ...any) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal([]byte(payload), &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveModel(ctx context.Context, m registry.ModelMetadata) error {
	return s.exec(ctx, `INSERT INTO models (name, version, payload) VALUES (?, ?, ?)
		ON CONFLICT(name, version) DO UPDATE SET payload = excluded.payload`, m, m.Name, m.Version)
}

func (s *SQLiteStore) GetModel(ctx context.Context, name, version string) (*registry.ModelMetadata, error) {
	return queryOne[registry.ModelMetadata](ctx, s.db, `SELECT payload FROM models WHERE name = ? AND version = ?`, name, version)
}

func (s *SQLiteStore) ListModels(ctx context.Context) ([]registry.ModelMetadata, error) {
	return queryAll[registry.ModelMetadata](ctx, s.db, `SELECT payload FROM models ORDER BY name, version`)
}

func (s *SQLiteStore) ModelVersions(ctx context.Context, name string) ([]registry.ModelMetadata, error) {
	return queryAll[registry.ModelMetadata](ctx, s.db, `SELECT payload FROM models WHERE name = ? ORDER BY version`, name)
}

func (s *SQLiteStore) DeleteModel(ctx context.Context, name, version string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM models WHERE name = ? AND version = ?`, name, version)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *SQLiteStore) SaveTestConfig(ctx context.Context, cfg abtest.Config) error {
	return s.exec(ctx, `INSERT INTO ab_configs (test_name, payload) VALUES (?, ?)
		ON CONFLICT(test_name) DO UPDATE SET payload = excluded.payload`, cfg, cfg.TestName)
}

func (s *SQLiteStore) GetTestConfig(ctx context.Context, name string) (*abtest.Config, error) {
	return queryOne[abtest.Config](ctx, s.db, `SELECT payload FROM ab_configs WHERE test_name = ?`, name)
}

func (s *SQLiteStore) ListTestConfigs(ctx context.Context) ([]abtest.Config, error) {
	return queryAll[abtest.Config](ctx, s.db, `SELECT payload FROM ab_configs ORDER BY test_name`)
}

func (s *SQLiteStore) SaveTestResult(ctx context.Context, r abtest.Result) error {
	return s.exec(ctx, `INSERT INTO ab_results (test_name, payload) VALUES (?, ?)
		ON CONFLICT(test_name) DO UPDATE SET payload = excluded.payload`, r, r.TestName)
}

func (s *SQLiteStore) GetTestResult(ctx context.Context, name string) (*abtest.Result, error) {
	return queryOne[abtest.Result](ctx, s.db, `SELECT payload FROM ab_results WHERE test_name = ?`, name)
}

func (s *SQLiteStore) SaveRecord(ctx context.Context, r monitor.Record) error {
	return s.exec(ctx, `INSERT INTO perf_records (model_name, ts, payload) VALUES (?, ?, ?)`,
		r, r.ModelName, r.Timestamp.UnixNano())
}

func (s *SQLiteStore) Records(ctx context.Context, model string, since time.Time) ([]monitor.Record, error) {
	from := int64(math.MinInt64)
	if !since.IsZero() {
		from = since.UnixNano()
	}
	return queryAll[monitor.Record](ctx, s.db,
		`SELECT payload FROM perf_records WHERE model_name = ? AND ts >= ? ORDER BY ts, id`, model, from)
}

func (s *SQLiteStore) LatestRecord(ctx context.Context, model string) (*monitor.Record, error) {
	return queryOne[monitor.Record](ctx, s.db,
		`SELECT payload FROM perf_records WHERE model_name = ? ORDER BY ts DESC, id DESC LIMIT 1`, model)
}

func (s *SQLiteStore) SaveRule(ctx context.Context, r monitor.Rule) error {
	return s.exec(ctx, `INSERT INTO alert_rules (id, model_name, payload) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET model_name = excluded.model_name, payload = excluded.payload`, r, r.ID, r.ModelName)
}

func (s *SQLiteStore) Rules(ctx context.Context, model string) ([]monitor.Rule, error) {
	return queryAll[monitor.Rule](ctx, s.db, `SELECT payload FROM alert_rules WHERE model_name = ? ORDER BY id`, model)
}

func (s *SQLiteStore) SaveAlert(ctx context.Context, a monitor.Alert) error {
	return s.exec(ctx, `INSERT INTO alerts (id, model_name, triggered_at, acknowledged, payload) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET acknowledged = excluded.acknowledged, payload = excluded.payload`,
		a, a.ID, a.ModelName, a.TriggeredAt.UnixNano(), a.Acknowledged)
}

func (s *SQLiteStore) GetAlert(ctx context.Context, id string) (*monitor.Alert, error) {
	return queryOne[monitor.Alert](ctx, s.db, `SELECT payload FROM alerts WHERE id = ?`, id)
}

func (s *SQLiteStore) ActiveAlerts(ctx context.Context, model string) ([]monitor.Alert, error) {
	return queryAll[monitor.Alert](ctx, s.db,
		`SELECT payload FROM alerts WHERE model_name = ? AND acknowledged = 0 ORDER BY triggered_at, id`, model)
}
