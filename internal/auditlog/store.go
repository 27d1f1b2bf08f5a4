// Package auditlog provides a write-only Postgres-backed trail of every
// automaton Transition. It is purely additive: nothing in this codebase
// reads it back to reconstruct an automaton's state, preserving the
// guarantee that an automaton's in-memory position does not survive a
// restart.
package auditlog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skyrelay/vortex/internal/automaton"
)

// Store is a Postgres-backed automaton.AuditSink.
type Store struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// New connects to Postgres, verifies reachability, and ensures the
// transitions table exists.
func New(ctx context.Context, dsn string, log *slog.Logger) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}
	if log == nil {
		log = slog.Default()
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	s := &Store{pool: pool, log: log}

	if err := s.pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS router_transitions (
		id BIGSERIAL PRIMARY KEY,
		router_id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		from_state TEXT NOT NULL,
		action TEXT NOT NULL,
		to_state TEXT NOT NULL,
		appliance_state TEXT NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS router_transitions_router_id_idx
		ON router_transitions (router_id, occurred_at)`)
	if err != nil {
		return fmt.Errorf("ensure index: %w", err)
	}
	return nil
}

// RecordTransition implements automaton.AuditSink. Failures are logged,
// never propagated: the pump's correctness never depends on the audit
// log being reachable.
func (s *Store) RecordTransition(ctx context.Context, routerID, tenantID, fromState, action, toState, applianceState string) {
	_, err := s.pool.Exec(ctx, `INSERT INTO router_transitions
		(router_id, tenant_id, from_state, action, to_state, appliance_state, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		routerID, tenantID, fromState, action, toState, applianceState, time.Now().UTC(),
	)
	if err != nil {
		s.log.Warn("record transition failed", "router_id", routerID, "error", err)
	}
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

var _ automaton.AuditSink = (*Store)(nil)
