package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS room_sessions (
		id UUID PRIMARY KEY,
		room_id TEXT NOT NULL,
		candidate_id TEXT NOT NULL DEFAULT '',
		job_id TEXT NOT NULL DEFAULT '',
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_room_sessions_open ON room_sessions (room_id) WHERE end_time IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_room_sessions_room ON room_sessions (room_id, start_time DESC)`,
	`CREATE TABLE IF NOT EXISTS session_participants (
		id BIGSERIAL PRIMARY KEY,
		session_id UUID NOT NULL REFERENCES room_sessions(id) ON DELETE CASCADE,
		conn_id TEXT NOT NULL,
		peer_id TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		join_time TIMESTAMPTZ NOT NULL,
		leave_time TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_session_participants_conn ON session_participants (session_id, conn_id)`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for i, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
