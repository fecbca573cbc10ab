package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Interview/internal/domain"
	"github.com/dkeye/Interview/internal/ledger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const foreignKeyViolation = "23503"

type Store struct {
	pool *pgxpool.Pool
}

var _ ledger.Store = (*Store)(nil)

// Connect opens the pool, pings it and applies migrations. Any failure is fatal for the caller.
func Connect(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := RunMigration(ctx, p); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to run migration: %w", err)
	}
	log.Info().Str("module", "adapters.postgres").Str("host", cfg.ConnConfig.Host).Msg("database ready")
	return &Store{pool: p}, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) OpenSession(ctx context.Context, rec domain.SessionRecord) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		// A record still open here lost its close; end it where the new occupancy starts.
		if _, err := tx.Exec(ctx,
			`UPDATE session_participants p SET leave_time = $2
			 FROM room_sessions s
			 WHERE p.session_id = s.id AND s.room_id = $1 AND s.end_time IS NULL
			   AND s.id <> $3::uuid AND p.leave_time IS NULL`,
			string(rec.RoomID), rec.StartTime, string(rec.ID)); err != nil {
			return err
		}
		ct, err := tx.Exec(ctx,
			`UPDATE room_sessions SET end_time = $2
			 WHERE room_id = $1 AND end_time IS NULL AND id <> $3::uuid`,
			string(rec.RoomID), rec.StartTime, string(rec.ID))
		if err != nil {
			return err
		}
		if ct.RowsAffected() > 0 {
			log.Warn().Str("module", "adapters.postgres").Str("room", string(rec.RoomID)).
				Str("record", string(rec.ID)).Int64("closed", ct.RowsAffected()).Msg("closed stale open record")
		}

		ct, err = tx.Exec(ctx,
			`INSERT INTO room_sessions (id, room_id, candidate_id, job_id, start_time)
			 VALUES ($1::uuid, $2, $3, $4, $5)
			 ON CONFLICT (id) DO NOTHING`,
			string(rec.ID), string(rec.RoomID), rec.CandidateID, rec.JobID, rec.StartTime)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			// Already written by an earlier attempt.
			return nil
		}
		for _, p := range rec.Participants {
			if err := insertParticipant(ctx, tx, rec.ID, p); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) AppendParticipant(ctx context.Context, room domain.RoomID, record domain.RecordID, p domain.ParticipantEntry) error {
	id, err := s.resolve(ctx, s.pool, room, record)
	if err != nil {
		return err
	}
	err = insertParticipant(ctx, s.pool, id, p)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return domain.ErrRecordNotFound
	}
	return err
}

func (s *Store) MarkLeft(ctx context.Context, room domain.RoomID, record domain.RecordID, conn domain.ConnID, at time.Time) error {
	id, err := s.resolve(ctx, s.pool, room, record)
	if err != nil {
		return err
	}
	ct, err := s.pool.Exec(ctx,
		`UPDATE session_participants SET leave_time = $3
		 WHERE session_id = $1::uuid AND conn_id = $2 AND leave_time IS NULL`,
		string(id), string(conn), at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

func (s *Store) CloseSession(ctx context.Context, room domain.RoomID, record domain.RecordID, conn domain.ConnID, at time.Time) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		id, err := s.resolve(ctx, tx, room, record)
		if err != nil {
			return err
		}
		if conn != "" {
			if _, err := tx.Exec(ctx,
				`UPDATE session_participants SET leave_time = $3
				 WHERE session_id = $1::uuid AND conn_id = $2 AND leave_time IS NULL`,
				string(id), string(conn), at); err != nil {
				return err
			}
		}
		ct, err := tx.Exec(ctx,
			`UPDATE room_sessions SET end_time = $2 WHERE id = $1::uuid AND end_time IS NULL`,
			string(id), at)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return domain.ErrRecordNotFound
		}
		return nil
	})
}

func (s *Store) CloseStale(ctx context.Context, at time.Time) (int64, error) {
	var n int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE session_participants p SET leave_time = $1
			 FROM room_sessions s
			 WHERE p.session_id = s.id AND s.end_time IS NULL AND p.leave_time IS NULL`, at); err != nil {
			return err
		}
		ct, err := tx.Exec(ctx, `UPDATE room_sessions SET end_time = $1 WHERE end_time IS NULL`, at)
		if err != nil {
			return err
		}
		n = ct.RowsAffected()
		return nil
	})
	return n, err
}

func (s *Store) ListSessions(ctx context.Context, room domain.RoomID) ([]domain.SessionRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, room_id, candidate_id, job_id, start_time, end_time
		 FROM room_sessions WHERE room_id = $1 ORDER BY start_time DESC`,
		string(room))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []domain.SessionRecord
	index := make(map[domain.RecordID]int)
	for rows.Next() {
		var r domain.SessionRecord
		var endTime *time.Time
		if err := rows.Scan(&r.ID, &r.RoomID, &r.CandidateID, &r.JobID, &r.StartTime, &endTime); err != nil {
			return nil, err
		}
		r.EndTime = endTime
		index[r.ID] = len(list)
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return list, nil
	}

	prows, err := s.pool.Query(ctx,
		`SELECT p.session_id::text, p.conn_id, p.peer_id, p.role, p.join_time, p.leave_time
		 FROM session_participants p JOIN room_sessions s ON s.id = p.session_id
		 WHERE s.room_id = $1 ORDER BY p.join_time ASC, p.id ASC`,
		string(room))
	if err != nil {
		return nil, err
	}
	defer prows.Close()
	for prows.Next() {
		var sid domain.RecordID
		var p domain.ParticipantEntry
		var leaveTime *time.Time
		if err := prows.Scan(&sid, &p.ConnID, &p.PeerTag, &p.Role, &p.JoinTime, &leaveTime); err != nil {
			return nil, err
		}
		p.LeaveTime = leaveTime
		if i, ok := index[sid]; ok {
			list[i].Participants = append(list[i].Participants, p)
		}
	}
	return list, prows.Err()
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// resolve maps an empty record id to the open record of room. Best effort only:
// during a close/reopen of the same room it may pick the wrong occupancy.
func (s *Store) resolve(ctx context.Context, q querier, room domain.RoomID, record domain.RecordID) (domain.RecordID, error) {
	if record != "" {
		return record, nil
	}
	var id domain.RecordID
	err := q.QueryRow(ctx,
		`SELECT id::text FROM room_sessions WHERE room_id = $1 AND end_time IS NULL LIMIT 1`,
		string(room)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrRecordNotFound
	}
	return id, err
}

func insertParticipant(ctx context.Context, q querier, record domain.RecordID, p domain.ParticipantEntry) error {
	_, err := q.Exec(ctx,
		`INSERT INTO session_participants (session_id, conn_id, peer_id, role, join_time, leave_time)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6)`,
		string(record), string(p.ConnID), p.PeerTag, string(p.Role), p.JoinTime, p.LeaveTime)
	return err
}
