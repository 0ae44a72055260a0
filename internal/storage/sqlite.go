// Package storage SQLite 驱动
//
// 适用于开发、测试和无外部数据库的轻量部署。
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"activity-tracker/internal/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore SQLite 会话快照存储
type SQLiteStore struct {
	db *sql.DB
}

var _ SessionStore = (*SQLiteStore)(nil)

// sqliteSchema activity_sessions 建表语句（等价于 PostgreSQL 版本）
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS activity_sessions (
    adapter VARCHAR(50) NOT NULL,
    scene_type VARCHAR(50) NOT NULL,
    scene_id VARCHAR(100) NOT NULL,
    count INTEGER NOT NULL DEFAULT 0,
    last_session_activity DATETIME,
    last_bot_activity DATETIME,
    created_at DATETIME NOT NULL DEFAULT (datetime('now')),
    updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
    PRIMARY KEY (adapter, scene_type, scene_id)
);
`

// NewSQLiteStore 创建 SQLite 存储
//
// dsn 示例: "file:activity.db?cache=shared&mode=rwc" 或 ":memory:"
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// SQLite 优化设置
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", p, err)
		}
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close 关闭连接
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ListSessions 读取全部会话行
func (s *SQLiteStore) ListSessions(ctx context.Context) ([]*model.ActivityRecord, error) {
	query := `SELECT adapter, scene_type, scene_id, count, last_session_activity, last_bot_activity
			  FROM activity_sessions`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*model.ActivityRecord
	for rows.Next() {
		rec := &model.ActivityRecord{}
		var lastUser, lastBot sql.NullString
		if err := rows.Scan(&rec.Adapter, &rec.SceneType, &rec.SceneID,
			&rec.Count, &lastUser, &lastBot); err != nil {
			return nil, err
		}
		rec.LastUserActivity = parseSQLiteTime(lastUser)
		rec.LastBotActivity = parseSQLiteTime(lastBot)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// UpsertSessions 在单个事务内写入全部会话行
func (s *SQLiteStore) UpsertSessions(ctx context.Context, records []*model.ActivityRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO activity_sessions
			(adapter, scene_type, scene_id, count, last_session_activity, last_bot_activity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, datetime('now'), datetime('now'))
		ON CONFLICT (adapter, scene_type, scene_id) DO UPDATE SET
			count = excluded.count,
			last_session_activity = excluded.last_session_activity,
			last_bot_activity = excluded.last_bot_activity,
			updated_at = datetime('now')
	`

	for _, rec := range records {
		if _, err := tx.ExecContext(ctx, query,
			rec.Adapter, rec.SceneType, rec.SceneID, rec.Count,
			formatSQLiteTime(rec.LastUserActivity), formatSQLiteTime(rec.LastBotActivity)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SQLite 没有原生时间类型，时间统一按 RFC3339 文本存取

func formatSQLiteTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseSQLiteTime(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, v.String); err == nil {
		local := t.Local()
		return &local
	}
	// datetime('now') 写入的行用空格分隔格式
	if t, err := time.Parse("2006-01-02 15:04:05", v.String); err == nil {
		local := t.Local()
		return &local
	}
	return nil
}
