// Package storage 提供数据存储层
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"activity-tracker/internal/model"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore PostgreSQL 会话快照存储
type PostgresStore struct {
	db *sql.DB
}

var _ SessionStore = (*PostgresStore)(nil)

// pgSchema activity_sessions 建表语句（无迁移工具，幂等建表）
const pgSchema = `
CREATE TABLE IF NOT EXISTS activity_sessions (
    adapter VARCHAR(50) NOT NULL,
    scene_type VARCHAR(50) NOT NULL,
    scene_id VARCHAR(100) NOT NULL,
    count INTEGER NOT NULL DEFAULT 0,
    last_session_activity TIMESTAMPTZ,
    last_bot_activity TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (adapter, scene_type, scene_id)
);
`

// NewPostgresStore 创建 PostgreSQL 存储
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(pgSchema); err != nil {
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close 关闭连接
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// ListSessions 读取全部会话行
func (s *PostgresStore) ListSessions(ctx context.Context) ([]*model.ActivityRecord, error) {
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
		var lastUser, lastBot sql.NullTime
		if err := rows.Scan(&rec.Adapter, &rec.SceneType, &rec.SceneID,
			&rec.Count, &lastUser, &lastBot); err != nil {
			return nil, err
		}
		if lastUser.Valid {
			t := lastUser.Time
			rec.LastUserActivity = &t
		}
		if lastBot.Valid {
			t := lastBot.Time
			rec.LastBotActivity = &t
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// UpsertSessions 在单个事务内写入全部会话行
func (s *PostgresStore) UpsertSessions(ctx context.Context, records []*model.ActivityRecord) error {
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
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (adapter, scene_type, scene_id) DO UPDATE SET
			count = EXCLUDED.count,
			last_session_activity = EXCLUDED.last_session_activity,
			last_bot_activity = EXCLUDED.last_bot_activity,
			updated_at = now()
	`

	for _, rec := range records {
		if _, err := tx.ExecContext(ctx, query,
			rec.Adapter, rec.SceneType, rec.SceneID, rec.Count,
			nullableTime(rec.LastUserActivity), nullableTime(rec.LastBotActivity)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
