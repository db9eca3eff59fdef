package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"koach/cmd/security/password"
)

// PostgresStore implements identity persistence over PostgreSQL.
//
// Design notes:
// - The pgx pool is owned by the caller; this store must NOT close it.
// - Schema/table identifiers are safely quoted to avoid SQL injection via identifiers.
// - Username uniqueness is arbitrated by uq_accounts_username_norm.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

var _ Store = (*PostgresStore)(nil)

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

// DefaultSchema is the schema used when WithSchema is not given.
const DefaultSchema = "koach"

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema (default "koach").
// The schema name is validated to be a legal PostgreSQL identifier.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentIsValid(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: DefaultSchema,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

// Schema returns the configured schema name.
func (s *PostgresStore) Schema() string { return s.schema }

func (s *PostgresStore) ready(ctx context.Context, op string) error {
	if s == nil || s.pool == nil {
		return &StoreError{Op: op, Kind: ErrInvalidInput, Detail: "nil store"}
	}
	return ctx.Err()
}

// CreateAccount inserts the account and, when given, its credential in one transaction.
func (s *PostgresStore) CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	const op = "identity.CreateAccount"
	if err := s.ready(ctx, op); err != nil {
		return Account{}, err
	}

	username, norm, err := checkUsername(op, in.Username)
	if err != nil {
		return Account{}, err
	}
	if err := checkHash(op, in.PasswordHash, true); err != nil {
		return Account{}, err
	}

	// timestamptz keeps microseconds.
	now := nowOr(in.Now).Truncate(time.Microsecond)
	id, err := NewAccountID(now)
	if err != nil {
		return Account{}, err
	}
	name := trimPtr(in.Name)

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return Account{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO `+pgIdent(s.schema, "accounts")+` (
		     id, name, username, username_norm, created_at, updated_at
		   ) VALUES ($1, $2, $3, $4, $5, $5)`,
		id, name, username, norm, now,
	)
	if err != nil {
		if pgIsUsernameViolation(err) {
			return Account{}, usernameTaken(op)
		}
		return Account{}, err
	}

	if !in.PasswordHash.IsZero() {
		_, err = tx.Exec(ctx,
			`INSERT INTO `+pgIdent(s.schema, "account_credentials")+` (account_id, password_hash, created_at, updated_at)
			 VALUES ($1, $2, $3, $3)`,
			id, string(in.PasswordHash), now,
		)
		if err != nil {
			return Account{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Account{}, err
	}

	return Account{
		ID:        id,
		Name:      name,
		Username:  username,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) GetAccountByID(ctx context.Context, id string) (Account, error) {
	const op = "identity.GetAccountByID"
	if err := s.ready(ctx, op); err != nil {
		return Account{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Account{}, notFound(op)
	}

	row := s.pool.QueryRow(ctx,
		`SELECT id, name, username, created_at, updated_at
		   FROM `+pgIdent(s.schema, "accounts")+`
		  WHERE id = $1`,
		id,
	)
	acc, err := pgScanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, notFound(op)
		}
		return Account{}, err
	}
	return acc, nil
}

func (s *PostgresStore) GetAccountAuthByUsername(ctx context.Context, username string) (AccountAuth, error) {
	const op = "identity.GetAccountAuthByUsername"
	if err := s.ready(ctx, op); err != nil {
		return AccountAuth{}, err
	}
	norm := NormalizeUsername(username)
	if norm == "" {
		return AccountAuth{}, notFound(op)
	}

	var (
		out  AccountAuth
		hash *string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT a.id, a.name, a.username, a.created_at, a.updated_at, c.password_hash
		   FROM `+pgIdent(s.schema, "accounts")+` a
		   LEFT JOIN `+pgIdent(s.schema, "account_credentials")+` c ON c.account_id = a.id
		  WHERE a.username_norm = $1`,
		norm,
	).Scan(
		&out.Account.ID,
		&out.Account.Name,
		&out.Account.Username,
		&out.Account.CreatedAt,
		&out.Account.UpdatedAt,
		&hash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountAuth{}, notFound(op)
		}
		return AccountAuth{}, err
	}
	if hash != nil {
		out.PasswordHash = password.Encoded(*hash)
	}
	out.Account = utcAccount(out.Account)
	return out, nil
}

func (s *PostgresStore) ListAccounts(ctx context.Context) ([]Account, error) {
	const op = "identity.ListAccounts"
	if err := s.ready(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, name, username, created_at, updated_at
		   FROM `+pgIdent(s.schema, "accounts")+`
		  ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Account, 0)
	for rows.Next() {
		acc, err := pgScanAccount(rows)
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

// UpdateAccount applies the non-nil fields and, when set, the new credential
// in one transaction. The unique constraint re-validates a changed username.
func (s *PostgresStore) UpdateAccount(ctx context.Context, id string, in UpdateAccountInput) (Account, error) {
	const op = "identity.UpdateAccount"
	if err := s.ready(ctx, op); err != nil {
		return Account{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Account{}, notFound(op)
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
	now := nowOr(in.Now)

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return Account{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx,
		`UPDATE `+pgIdent(s.schema, "accounts")+`
		    SET name = CASE WHEN $2 THEN $3 ELSE name END,
		        username = COALESCE($4, username),
		        username_norm = COALESCE($5, username_norm),
		        updated_at = $6
		  WHERE id = $1
		  RETURNING id, name, username, created_at, updated_at`,
		id,
		in.Name != nil,
		trimPtr(in.Name),
		username,
		norm,
		now,
	)
	acc, err := pgScanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, notFound(op)
		}
		if pgIsUsernameViolation(err) {
			return Account{}, usernameTaken(op)
		}
		return Account{}, err
	}

	if !in.PasswordHash.IsZero() {
		if err := s.upsertCredential(ctx, tx, id, in.PasswordHash, now); err != nil {
			return Account{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Account{}, err
	}
	return acc, nil
}

// SetPasswordHash upserts the credential row.
func (s *PostgresStore) SetPasswordHash(ctx context.Context, id string, hash password.Encoded, now time.Time) error {
	const op = "identity.SetPasswordHash"
	if err := s.ready(ctx, op); err != nil {
		return err
	}
	if err := checkHash(op, hash, false); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	now = nowOr(now)

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.upsertCredential(ctx, tx, id, hash, now); err != nil {
		if pgIsForeignKeyViolation(err) {
			return notFound(op)
		}
		return err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE `+pgIdent(s.schema, "accounts")+` SET updated_at = $2 WHERE id = $1`,
		id, now,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) upsertCredential(ctx context.Context, tx pgx.Tx, id string, hash password.Encoded, now time.Time) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO `+pgIdent(s.schema, "account_credentials")+` (account_id, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $3)
		 ON CONFLICT (account_id) DO UPDATE
		   SET password_hash = EXCLUDED.password_hash,
		       updated_at = EXCLUDED.updated_at`,
		id, string(hash), now,
	)
	return err
}

// DeleteAccount removes the account; credentials cascade.
func (s *PostgresStore) DeleteAccount(ctx context.Context, id string) error {
	const op = "identity.DeleteAccount"
	if err := s.ready(ctx, op); err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM `+pgIdent(s.schema, "accounts")+` WHERE id = $1`,
		strings.TrimSpace(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(op)
	}
	return nil
}

// Ping acquires a connection to prove the pool is usable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.ready(ctx, "identity.Ping"); err != nil {
		return err
	}
	return s.pool.Ping(ctx)
}

// Close is a no-op: the pool belongs to the caller.
func (s *PostgresStore) Close() error { return nil }

// ---- helpers ----

func pgScanAccount(row pgx.Row) (Account, error) {
	var a Account
	if err := row.Scan(&a.ID, &a.Name, &a.Username, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Account{}, err
	}
	return utcAccount(a), nil
}

func utcAccount(a Account) Account {
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a
}

// pgIdentIsValid checks if a string is a safe Postgres identifier.
func pgIdentIsValid(s string) bool {
	return pgIdentRe.MatchString(s)
}

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgIdent1(ident string) string {
	return pgx.Identifier{ident}.Sanitize()
}

func pgIsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23503" // foreign_key_violation
}

func pgIsUsernameViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != "23505" { // unique_violation
		return false
	}
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	return c == "uq_accounts_username_norm" || strings.Contains(c, "username")
}
