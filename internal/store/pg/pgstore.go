// Package pg implements the service store interfaces over PostgreSQL.
package pg

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"cloudops.org/internal/audit"
	"cloudops.org/internal/auth"
	"cloudops.org/internal/cost"
	"cloudops.org/internal/infra"
	"cloudops.org/internal/policy"
)

// Store holds the shared connection pool. One Store serves every aggregate.
type Store struct {
	db *sql.DB
}

var (
	_ infra.Store  = (*Store)(nil)
	_ cost.Store   = (*Store)(nil)
	_ policy.Store = (*Store)(nil)
	_ auth.Store   = (*Store)(nil)
	_ audit.Store  = (*Store)(nil)
)

// Open connects to the database and tunes the pool.
func Open(dsn string, poolSize, maxOverflow int) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if poolSize <= 0 {
		poolSize = 10
	}
	if maxOverflow < 0 {
		maxOverflow = 0
	}
	db.SetMaxOpenConns(poolSize + maxOverflow)
	db.SetMaxIdleConns(poolSize)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing handle, used by tests.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// --- helpers ---

// jsonArg marshals a map or slice for a jsonb column. Nil values become
// SQL NULL.
func jsonArg(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case map[string]any:
		if t == nil {
			return nil, nil
		}
	case map[string]string:
		if t == nil {
			return nil, nil
		}
	case []string:
		if t == nil {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// scanJSON unmarshals a jsonb column into dst, tolerating NULL.
func scanJSON(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func strVal(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}

func floatVal(nf sql.NullFloat64) float64 {
	if !nf.Valid {
		return 0
	}
	return nf.Float64
}
