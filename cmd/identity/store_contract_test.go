package identity

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"koach/cmd/security/password"
)

// Valid-looking hashes; the store only checks the format.
const (
	testHashA password.Encoded = "$2a$04$abcdefghijklmnopqrstuuA1B2C3D4E5F6G7H8I9J0K1L2M3N4O5P6"
	testHashB password.Encoded = "$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGg"
)

func strp(s string) *string { return &s }

// runStoreContract exercises the behavior every Store backend must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("CreateAndGet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		acc, err := s.CreateAccount(ctx, CreateAccountInput{
			Name:         strp("  Alice  "),
			Username:     " alice ",
			PasswordHash: testHashA,
		})
		require.NoError(t, err)
		require.Len(t, acc.ID, 26)
		require.Equal(t, "alice", acc.Username)
		require.NotNil(t, acc.Name)
		require.Equal(t, "Alice", *acc.Name)
		require.False(t, acc.CreatedAt.IsZero())

		got, err := s.GetAccountByID(ctx, acc.ID)
		require.NoError(t, err)
		require.Equal(t, acc.ID, got.ID)
		require.Equal(t, acc.Username, got.Username)
		require.Equal(t, *acc.Name, *got.Name)
		require.True(t, acc.CreatedAt.Equal(got.CreatedAt))

		auth, err := s.GetAccountAuthByUsername(ctx, "ALICE")
		require.NoError(t, err)
		require.Equal(t, acc.ID, auth.Account.ID)
		require.Equal(t, testHashA, auth.PasswordHash)
	})

	t.Run("CreateWithoutCredential", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		acc, err := s.CreateAccount(ctx, CreateAccountInput{Username: "bob"})
		require.NoError(t, err)
		require.Nil(t, acc.Name)

		auth, err := s.GetAccountAuthByUsername(ctx, "bob")
		require.NoError(t, err)
		require.True(t, auth.PasswordHash.IsZero())
	})

	t.Run("RejectsPlaintextCredential", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.CreateAccount(ctx, CreateAccountInput{Username: "carol", PasswordHash: "hunter2"})
		require.True(t, IsInvalidInput(err), "got %v", err)

		acc, err := s.CreateAccount(ctx, CreateAccountInput{Username: "carol"})
		require.NoError(t, err)
		err = s.SetPasswordHash(ctx, acc.ID, "hunter2", time.Now())
		require.True(t, IsInvalidInput(err), "got %v", err)
		err = s.SetPasswordHash(ctx, acc.ID, "", time.Now())
		require.True(t, IsInvalidInput(err), "got %v", err)
	})

	t.Run("RejectsBlankUsername", func(t *testing.T) {
		s := newStore(t)
		_, err := s.CreateAccount(context.Background(), CreateAccountInput{Username: "   "})
		require.True(t, IsInvalidInput(err), "got %v", err)
	})

	t.Run("UsernameConflictCaseInsensitive", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.CreateAccount(ctx, CreateAccountInput{Username: "Navid", PasswordHash: testHashA})
		require.NoError(t, err)

		_, err = s.CreateAccount(ctx, CreateAccountInput{Username: "nAvId", PasswordHash: testHashB})
		require.Error(t, err)
		require.True(t, IsConflict(err), "got %v", err)

		require.Equal(t, "username", FieldOf(err))

		all, err := s.ListAccounts(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
	})

	t.Run("ConcurrentCreateSameUsername", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		const n = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			ok        int
			conflicts int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.CreateAccount(ctx, CreateAccountInput{Username: "racer", PasswordHash: testHashA})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					ok++
				case IsConflict(err):
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		require.Equal(t, 1, ok)
		require.Equal(t, n-1, conflicts)
	})

	t.Run("ListOrderedByCreation", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		var ids []string
		for i := 0; i < 5; i++ {
			acc, err := s.CreateAccount(ctx, CreateAccountInput{Username: fmt.Sprintf("user%d", i)})
			require.NoError(t, err)
			ids = append(ids, acc.ID)
		}

		all, err := s.ListAccounts(ctx)
		require.NoError(t, err)
		require.Len(t, all, len(ids))
		for i, acc := range all {
			require.Equal(t, ids[i], acc.ID)
		}
	})

	t.Run("ListEmpty", func(t *testing.T) {
		s := newStore(t)
		all, err := s.ListAccounts(context.Background())
		require.NoError(t, err)
		require.NotNil(t, all)
		require.Empty(t, all)
	})

	t.Run("Update", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		acc, err := s.CreateAccount(ctx, CreateAccountInput{Name: strp("Old"), Username: "dave", PasswordHash: testHashA})
		require.NoError(t, err)
		other, err := s.CreateAccount(ctx, CreateAccountInput{Username: "erin"})
		require.NoError(t, err)

		up, err := s.UpdateAccount(ctx, acc.ID, UpdateAccountInput{Name: strp("New")})
		require.NoError(t, err)
		require.Equal(t, "New", *up.Name)
		require.Equal(t, "dave", up.Username)

		up, err = s.UpdateAccount(ctx, acc.ID, UpdateAccountInput{Username: strp("David")})
		require.NoError(t, err)
		require.Equal(t, "David", up.Username)
		require.Equal(t, "New", *up.Name)

		// Old username is free again; new one resolves.
		_, err = s.GetAccountAuthByUsername(ctx, "dave")
		require.True(t, IsNotFound(err), "got %v", err)
		auth, err := s.GetAccountAuthByUsername(ctx, "david")
		require.NoError(t, err)
		require.Equal(t, testHashA, auth.PasswordHash)

		// Same-account case change is not a conflict.
		_, err = s.UpdateAccount(ctx, acc.ID, UpdateAccountInput{Username: strp("DAVID")})
		require.NoError(t, err)

		_, err = s.UpdateAccount(ctx, other.ID, UpdateAccountInput{Username: strp("david")})
		require.True(t, IsConflict(err), "got %v", err)

		up, err = s.UpdateAccount(ctx, acc.ID, UpdateAccountInput{Name: strp("  ")})
		require.NoError(t, err)
		require.Nil(t, up.Name)

		_, err = s.UpdateAccount(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ", UpdateAccountInput{Name: strp("x")})
		require.True(t, IsNotFound(err), "got %v", err)
	})

	t.Run("UpdateWithCredential", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		acc, err := s.CreateAccount(ctx, CreateAccountInput{Username: "gina"})
		require.NoError(t, err)
		_, err = s.CreateAccount(ctx, CreateAccountInput{Username: "hank", PasswordHash: testHashA})
		require.NoError(t, err)

		up, err := s.UpdateAccount(ctx, acc.ID, UpdateAccountInput{Username: strp("Gina2"), PasswordHash: testHashA})
		require.NoError(t, err)
		require.Equal(t, "Gina2", up.Username)
		auth, err := s.GetAccountAuthByUsername(ctx, "gina2")
		require.NoError(t, err)
		require.Equal(t, testHashA, auth.PasswordHash)

		// A rejected username leaves the credential alone.
		_, err = s.UpdateAccount(ctx, acc.ID, UpdateAccountInput{Username: strp("hank"), PasswordHash: testHashB})
		require.True(t, IsConflict(err), "got %v", err)
		auth, err = s.GetAccountAuthByUsername(ctx, "gina2")
		require.NoError(t, err)
		require.Equal(t, testHashA, auth.PasswordHash)

		_, err = s.UpdateAccount(ctx, acc.ID, UpdateAccountInput{PasswordHash: "plaintext"})
		require.True(t, IsInvalidInput(err), "got %v", err)

		_, err = s.UpdateAccount(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ", UpdateAccountInput{PasswordHash: testHashB})
		require.True(t, IsNotFound(err), "got %v", err)
	})

	t.Run("SetPasswordHash", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		acc, err := s.CreateAccount(ctx, CreateAccountInput{Username: "frank"})
		require.NoError(t, err)

		require.NoError(t, s.SetPasswordHash(ctx, acc.ID, testHashA, time.Now()))
		auth, err := s.GetAccountAuthByUsername(ctx, "frank")
		require.NoError(t, err)
		require.Equal(t, testHashA, auth.PasswordHash)

		require.NoError(t, s.SetPasswordHash(ctx, acc.ID, testHashB, time.Now()))
		auth, err = s.GetAccountAuthByUsername(ctx, "frank")
		require.NoError(t, err)
		require.Equal(t, testHashB, auth.PasswordHash)

		err = s.SetPasswordHash(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ", testHashA, time.Now())
		require.True(t, IsNotFound(err), "got %v", err)
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		acc, err := s.CreateAccount(ctx, CreateAccountInput{Username: "gina", PasswordHash: testHashA})
		require.NoError(t, err)

		require.NoError(t, s.DeleteAccount(ctx, acc.ID))

		_, err = s.GetAccountByID(ctx, acc.ID)
		require.True(t, IsNotFound(err), "got %v", err)
		_, err = s.GetAccountAuthByUsername(ctx, "gina")
		require.True(t, IsNotFound(err), "got %v", err)

		err = s.DeleteAccount(ctx, acc.ID)
		require.True(t, IsNotFound(err), "got %v", err)

		// Username is reusable after delete.
		_, err = s.CreateAccount(ctx, CreateAccountInput{Username: "gina", PasswordHash: testHashB})
		require.NoError(t, err)
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetAccountByID(context.Background(), "nope")
		require.True(t, IsNotFound(err), "got %v", err)
		_, err = s.GetAccountAuthByUsername(context.Background(), "nobody")
		require.True(t, IsNotFound(err), "got %v", err)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		s := newStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := s.CreateAccount(ctx, CreateAccountInput{Username: "late"})
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("Ping", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Ping(context.Background()))
	})
}
