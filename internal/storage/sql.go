package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/tphummel/fit-drive/internal/dbx"
	"github.com/tphummel/fit-drive/internal/log"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Dialect names a supported SQL backend.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

var _ Storage = (*SQLStorage)(nil)

// SQLStorage stores users in Postgres (pgx) or SQLite (modernc).
type SQLStorage struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// OpenPostgres connects to dsn and applies migrations.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStorage, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database URL is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return newSQLStorage(ctx, db, DialectPostgres)
}

// OpenSQLite opens (or creates) the database file at path and applies migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLStorage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	return newSQLStorage(ctx, db, DialectSQLite)
}

func newSQLStorage(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLStorage, error) {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	if err := runMigrations(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	log.LogInfoWithFields("storage", "SQL storage ready", map[string]any{
		"dialect": string(dialect),
	})

	return &SQLStorage{db: db, dialect: dialect, now: time.Now}, nil
}

func runMigrations(ctx context.Context, db *sql.DB, dialect Dialect) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	gooseDialect := "postgres"
	if dialect == DialectSQLite {
		gooseDialect = "sqlite3"
	}
	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, "migrations")
}

func (s *SQLStorage) q(query string) string {
	if s.dialect == DialectPostgres {
		return dbx.Rebind(query)
	}
	return query
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func (s *SQLStorage) FindUser(ctx context.Context, email string) (*User, error) {
	var u *User
	err := dbx.WithTx(ctx, s.db, &sql.TxOptions{ReadOnly: s.dialect == DialectPostgres}, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		u, err = s.findUser(ctx, tx, email)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, unavailable("find user", err)
	}
	return u, nil
}

func (s *SQLStorage) findUser(ctx context.Context, tx dbx.DBTX, email string) (*User, error) {
	var createdAt int64
	err := tx.QueryRowContext(ctx, s.q(`SELECT created_at FROM users WHERE email = ?`), email).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	u := &User{
		Email:          email,
		CreatedAt:      fromMillis(createdAt),
		Authorizations: make(map[string]AuthorizationRecord),
	}

	rows, err := tx.QueryContext(ctx, s.q(`
		SELECT provider, access_token, refresh_token, scope, token_type,
		       external_user_id, expires_at, updated_at
		FROM authorizations WHERE owner_email = ?`), email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec                  AuthorizationRecord
			expiresAt, updatedAt int64
		)
		if err := rows.Scan(&rec.Provider, &rec.AccessToken, &rec.RefreshToken, &rec.Scope,
			&rec.TokenType, &rec.ExternalUserID, &expiresAt, &updatedAt); err != nil {
			return nil, err
		}
		rec.OwnerEmail = email
		rec.ExpiresAt = fromMillis(expiresAt)
		rec.UpdatedAt = fromMillis(updatedAt)
		u.Authorizations[rec.Provider] = rec
	}
	return u, rows.Err()
}

func (s *SQLStorage) CreateUser(ctx context.Context, email string) (*User, error) {
	var u *User
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx,
			s.q(`INSERT INTO users (email, created_at) VALUES (?, ?) ON CONFLICT (email) DO NOTHING`),
			email, toMillis(s.now())); err != nil {
			return err
		}
		var err error
		u, err = s.findUser(ctx, tx, email)
		return err
	})
	if err != nil {
		return nil, unavailable("create user", err)
	}
	return u, nil
}

func (s *SQLStorage) DeleteUser(ctx context.Context, email string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM authorizations WHERE owner_email = ?`), email); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, s.q(`DELETE FROM users WHERE email = ?`), email)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrUserNotFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return unavailable("delete user", err)
	}
	return err
}

func (s *SQLStorage) SaveAuthorization(ctx context.Context, rec AuthorizationRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = s.now()
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var exists int
		err := tx.QueryRowContext(ctx, s.q(`SELECT 1 FROM users WHERE email = ?`), rec.OwnerEmail).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, s.q(`
			INSERT INTO authorizations (owner_email, provider, access_token, refresh_token, scope,
			                            token_type, external_user_id, expires_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (owner_email, provider) DO UPDATE SET
				access_token = excluded.access_token,
				refresh_token = excluded.refresh_token,
				scope = excluded.scope,
				token_type = excluded.token_type,
				external_user_id = excluded.external_user_id,
				expires_at = excluded.expires_at,
				updated_at = excluded.updated_at`),
			rec.OwnerEmail, rec.Provider, rec.AccessToken, rec.RefreshToken, rec.Scope,
			rec.TokenType, rec.ExternalUserID, toMillis(rec.ExpiresAt), toMillis(rec.UpdatedAt))
		return err
	})
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return unavailable("save authorization", err)
	}
	return err
}

func (s *SQLStorage) ConsumeLoginToken(ctx context.Context, id string, expiresAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO used_login_tokens (token_id, expires_at) VALUES (?, ?) ON CONFLICT (token_id) DO NOTHING`),
		id, toMillis(expiresAt))
	if err != nil {
		return false, unavailable("consume login token", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, unavailable("consume login token", err)
	}
	return n == 1, nil
}

func (s *SQLStorage) CleanupExpiredLoginTokens(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM used_login_tokens WHERE expires_at < ?`), toMillis(s.now()))
	if err != nil {
		return 0, unavailable("cleanup login tokens", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable("cleanup login tokens", err)
	}
	return int(n), nil
}

func (s *SQLStorage) Close() error {
	return s.db.Close()
}
