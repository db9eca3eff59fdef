package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"koach/cmd/security/password"
)

// SQLiteStore implements identity persistence over a single SQLite file.
// Timestamps are stored as unix milliseconds.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the database at path and applies the
// embedded migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("identity: sqlite path is required")
	}

	dsn := filepath.Clean(path) +
		"?_pragma=foreign_keys(1)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrateSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	return &SQLiteStore{db: db}, nil
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

func (s *SQLiteStore) CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	const op = "identity.CreateAccount"
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	username, norm, err := checkUsername(op, in.Username)
	if err != nil {
		return Account{}, err
	}
	if err := checkHash(op, in.PasswordHash, true); err != nil {
		return Account{}, err
	}

	// Millisecond precision so the returned value matches what reads return.
	now := fromMillis(toMillis(nowOr(in.Now)))
	id, err := NewAccountID(now)
	if err != nil {
		return Account{}, err
	}
	name := trimPtr(in.Name)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Account{}, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO accounts (id, name, username, username_norm, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, name, username, norm, toMillis(now), toMillis(now),
	)
	if err != nil {
		if sqliteIsUniqueViolation(err) {
			return Account{}, usernameTaken(op)
		}
		return Account{}, err
	}

	if !in.PasswordHash.IsZero() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO account_credentials (account_id, password_hash, created_at, updated_at)
			 VALUES (?, ?, ?, ?)`,
			id, string(in.PasswordHash), toMillis(now), toMillis(now),
		); err != nil {
			return Account{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Account{}, err
	}
	return Account{ID: id, Name: name, Username: username, CreatedAt: now, UpdatedAt: now}, nil
}

func (s *SQLiteStore) GetAccountByID(ctx context.Context, id string) (Account, error) {
	const op = "identity.GetAccountByID"
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	acc, err := sqliteScanAccount(s.db.QueryRowContext(ctx,
		`SELECT id, name, username, created_at, updated_at FROM accounts WHERE id = ?`,
		strings.TrimSpace(id),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, notFound(op)
		}
		return Account{}, err
	}
	return acc, nil
}

func (s *SQLiteStore) GetAccountAuthByUsername(ctx context.Context, username string) (AccountAuth, error) {
	const op = "identity.GetAccountAuthByUsername"
	if err := ctx.Err(); err != nil {
		return AccountAuth{}, err
	}

	var (
		out                  AccountAuth
		name, hash           sql.NullString
		createdAt, updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT a.id, a.name, a.username, a.created_at, a.updated_at, c.password_hash
		   FROM accounts a
		   LEFT JOIN account_credentials c ON c.account_id = a.id
		  WHERE a.username_norm = ?`,
		NormalizeUsername(username),
	).Scan(&out.Account.ID, &name, &out.Account.Username, &createdAt, &updatedAt, &hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AccountAuth{}, notFound(op)
		}
		return AccountAuth{}, err
	}

	out.Account.Name = nullToPtr(name)
	out.Account.CreatedAt = fromMillis(createdAt)
	out.Account.UpdatedAt = fromMillis(updatedAt)
	if hash.Valid {
		out.PasswordHash = password.Encoded(hash.String)
	}
	return out, nil
}

func (s *SQLiteStore) ListAccounts(ctx context.Context) ([]Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, username, created_at, updated_at FROM accounts ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make([]Account, 0)
	for rows.Next() {
		acc, err := sqliteScanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) UpdateAccount(ctx context.Context, id string, in UpdateAccountInput) (Account, error) {
	const op = "identity.UpdateAccount"
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	var username, norm *string
	if in.Username != nil {
		u, n, err := checkUsername(op, *in.Username)
		if err != nil {
			return Account{}, err
		}
		username, norm = &u, &n
	}
	if err := checkHash(op, in.PasswordHash, true); err != nil {
		return Account{}, err
	}
	id = strings.TrimSpace(id)
	ms := toMillis(nowOr(in.Now))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Account{}, err
	}
	defer func() { _ = tx.Rollback() }()

	acc, err := sqliteScanAccount(tx.QueryRowContext(ctx,
		`UPDATE accounts
		    SET name = CASE WHEN ? THEN ? ELSE name END,
		        username = COALESCE(?, username),
		        username_norm = COALESCE(?, username_norm),
		        updated_at = ?
		  WHERE id = ?
		  RETURNING id, name, username, created_at, updated_at`,
		in.Name != nil,
		trimPtr(in.Name),
		username,
		norm,
		ms,
		id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, notFound(op)
		}
		if sqliteIsUniqueViolation(err) {
			return Account{}, usernameTaken(op)
		}
		return Account{}, err
	}

	if !in.PasswordHash.IsZero() {
		if err := sqliteUpsertCredential(ctx, tx, id, in.PasswordHash, ms); err != nil {
			return Account{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Account{}, err
	}
	return acc, nil
}

func (s *SQLiteStore) SetPasswordHash(ctx context.Context, id string, hash password.Encoded, now time.Time) error {
	const op = "identity.SetPasswordHash"
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkHash(op, hash, false); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	ms := toMillis(nowOr(now))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE accounts SET updated_at = ? WHERE id = ?`, ms, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return notFound(op)
	}

	if err := sqliteUpsertCredential(ctx, tx, id, hash, ms); err != nil {
		return err
	}

	return tx.Commit()
}

func sqliteUpsertCredential(ctx context.Context, tx *sql.Tx, id string, hash password.Encoded, ms int64) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO account_credentials (account_id, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (account_id) DO UPDATE
		   SET password_hash = excluded.password_hash,
		       updated_at = excluded.updated_at`,
		id, string(hash), ms, ms,
	)
	return err
}

func (s *SQLiteStore) DeleteAccount(ctx context.Context, id string) error {
	const op = "identity.DeleteAccount"
	if err := ctx.Err(); err != nil {
		return err
	}
	id = strings.TrimSpace(id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM account_credentials WHERE account_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(op)
	}
	return tx.Commit()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("identity: nil sqlite store")
	}
	return s.db.PingContext(ctx)
}

// Close releases the underlying SQLite database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func sqliteScanAccount(row rowScanner) (Account, error) {
	var (
		a                    Account
		name                 sql.NullString
		createdAt, updatedAt int64
	)
	if err := row.Scan(&a.ID, &name, &a.Username, &createdAt, &updatedAt); err != nil {
		return Account{}, err
	}
	a.Name = nullToPtr(name)
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)
	return a, nil
}

func nullToPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func sqliteIsUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	default:
		return false
	}
}
