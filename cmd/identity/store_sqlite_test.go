package identity

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "koach.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return openTestSQLite(t)
	})
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "koach.db")
	ctx := context.Background()

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	acc, err := s.CreateAccount(ctx, CreateAccountInput{Username: "persisted", PasswordHash: testHashA})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Migrations are idempotent on reopen.
	s, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	got, err := s.GetAccountByID(ctx, acc.ID)
	require.NoError(t, err)
	require.Equal(t, "persisted", got.Username)
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), "  ")
	require.Error(t, err)
}

func TestSQLiteIsUniqueViolation_NonSQLiteError(t *testing.T) {
	require.False(t, sqliteIsUniqueViolation(errors.New("UNIQUE constraint failed")))
	require.False(t, sqliteIsUniqueViolation(nil))
}
