package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrEmailTaken is returned by CreateAccount when the email is already registered.
var ErrEmailTaken = errors.New("store: email already taken")

const uniqueViolation = "23505"

const (
	createTableSQL = `
		CREATE TABLE IF NOT EXISTS accounts (
			id UUID PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);
	`

	insertAccountSQL = `
		INSERT INTO accounts (id, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`

	accountByIDSQL = `
		SELECT id, email, password_hash, created_at
		FROM accounts
		WHERE id = $1
	`

	accountByEmailSQL = `
		SELECT id, email, password_hash, created_at
		FROM accounts
		WHERE email = $1
	`

	deleteAccountSQL = `DELETE FROM accounts WHERE id = $1`
)

// DBTX is the subset of pgx shared by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Account is a stored account row.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Store persists accounts in PostgreSQL.
type Store struct {
	db DBTX
}

// New returns a Store backed by db.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// NewPool opens and pings a connection pool for connString.
func NewPool(ctx context.Context, connString string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("store: parse database config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}
	return pool, nil
}

// Initialize creates the accounts table if it does not exist.
func (s *Store) Initialize(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("store: initialize: %w", err)
	}
	return nil
}

// CreateAccount inserts a and fills in CreatedAt.
func (s *Store) CreateAccount(ctx context.Context, a *Account) error {
	err := s.db.QueryRow(ctx, insertAccountSQL, a.ID, normalizeEmail(a.Email), a.PasswordHash).Scan(&a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrEmailTaken
		}
		return fmt.Errorf("store: create account: %w", err)
	}
	return nil
}

// AccountByID loads an account. A missing row surfaces as pgx.ErrNoRows.
func (s *Store) AccountByID(ctx context.Context, id string) (*Account, error) {
	a, err := s.scanAccount(ctx, accountByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("store: account by id: %w", err)
	}
	return a, nil
}

// AccountByEmail loads an account by its email, compared case-insensitively.
func (s *Store) AccountByEmail(ctx context.Context, email string) (*Account, error) {
	a, err := s.scanAccount(ctx, accountByEmailSQL, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("store: account by email: %w", err)
	}
	return a, nil
}

// DeleteAccount removes an account. Deleting a missing account returns pgx.ErrNoRows.
func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, deleteAccountSQL, id)
	if err != nil {
		return fmt.Errorf("store: delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: delete account: %w", pgx.ErrNoRows)
	}
	return nil
}

func (s *Store) scanAccount(ctx context.Context, query string, arg string) (*Account, error) {
	var a Account
	if err := s.db.QueryRow(ctx, query, arg).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
