// Package storage implements the PostgreSQL persistence layer backing the
// snapshot builder, claim registry, and submission verifier.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrDBConnection = errors.New("database connection error")
)

// Store implements persistent storage for airdrop snapshots, sanitized
// nullifier partitions, and proof/submission registries using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// Config holds database configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
}

// DefaultConfig returns default database configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     5432,
		User:     "zair",
		Database: "zair",
		SSLMode:  "disable",
		MaxConns: 20,
	}
}

// New connects to PostgreSQL and verifies the connection, mirroring the
// teacher's NewPostgresStore connection lifecycle.
func New(ctx context.Context, cfg *Config) (*Store, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode, cfg.MaxConns,
	)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDBConnection, err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDBConnection, err)
	}

	return &Store{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Schema is the DDL applied by migrations, kept alongside the store for
// visibility; a real deployment would apply this via a migration tool
// rather than at process startup.
const Schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	network          TEXT NOT NULL,
	height           BIGINT NOT NULL,
	pool             TEXT NOT NULL,
	gap_tree_root    BYTEA NOT NULL,
	note_anchor      BYTEA NOT NULL,
	target_id        BYTEA NOT NULL,
	published_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (network, height, pool)
);

CREATE TABLE IF NOT EXISTS sanitized_nullifiers (
	network    TEXT NOT NULL,
	height     BIGINT NOT NULL,
	pool       TEXT NOT NULL,
	ord        BIGINT NOT NULL,
	nullifier  BYTEA NOT NULL,
	PRIMARY KEY (network, height, pool, ord)
);

CREATE TABLE IF NOT EXISTS claims (
	id                 BIGSERIAL PRIMARY KEY,
	network            TEXT NOT NULL,
	height             BIGINT NOT NULL,
	pool               TEXT NOT NULL,
	airdrop_nullifier  BYTEA NOT NULL UNIQUE,
	proof              BYTEA NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS submissions (
	id                 BIGSERIAL PRIMARY KEY,
	network            TEXT NOT NULL,
	airdrop_nullifier  BYTEA NOT NULL UNIQUE,
	spend_auth_sig     BYTEA NOT NULL,
	message_hash       BYTEA NOT NULL,
	verified_at        TIMESTAMPTZ
);
`

// SaveSnapshotRoot records a published gap-tree root and note anchor for a
// pool at a snapshot height.
func (s *Store) SaveSnapshotRoot(ctx context.Context, network string, height uint64, pool string, gapTreeRoot, noteAnchor, targetID []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO snapshots (network, height, pool, gap_tree_root, note_anchor, target_id, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (network, height, pool) DO NOTHING
	`, network, height, pool, gapTreeRoot, noteAnchor, targetID)
	return err
}

// SaveSanitizedNullifiers persists the sorted, deduplicated nullifier list
// for a pool at a snapshot height, one Exec per nullifier rather than
// pgx's CopyFrom, for portability with the pool driver the teacher already
// depends on.
func (s *Store) SaveSanitizedNullifiers(ctx context.Context, network string, height uint64, pool string, nullifiers [][]byte) error {
	for i, nf := range nullifiers {
		if _, err := s.pool.Exec(ctx, `
			INSERT INTO sanitized_nullifiers (network, height, pool, ord, nullifier)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (network, height, pool, ord) DO NOTHING
		`, network, height, pool, i, nf); err != nil {
			return fmt.Errorf("storage: save nullifier %d: %w", i, err)
		}
	}
	return nil
}

// RecordClaim inserts a claim's proof into the registry, failing with
// ErrDuplicate if the airdrop nullifier has already been claimed.
func (s *Store) RecordClaim(ctx context.Context, network string, height uint64, pool string, airdropNullifier, proof []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO claims (network, height, pool, airdrop_nullifier, proof, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
	`, network, height, pool, airdropNullifier, proof)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// RecordSubmission inserts a signed claim's verification result.
func (s *Store) RecordSubmission(ctx context.Context, network string, airdropNullifier, spendAuthSig, messageHash []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO submissions (network, airdrop_nullifier, spend_auth_sig, message_hash, verified_at)
		VALUES ($1, $2, $3, $4, now())
	`, network, airdropNullifier, spendAuthSig, messageHash)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	// pgx surfaces PostgreSQL's unique_violation as SQLSTATE 23505 in
	// (*pgconn.PgError).Code; string-matching avoids an extra import of
	// pgconn solely for this check.
	return containsCode(err.Error(), "23505")
}

func containsCode(s, code string) bool {
	for i := 0; i+len(code) <= len(s); i++ {
		if s[i:i+len(code)] == code {
			return true
		}
	}
	return false
}
