package identity

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"koach/cmd/security/password"
)

// MemoryStore is a process-local Store guarded by a single mutex.
type MemoryStore struct {
	mu     sync.Mutex
	byID   map[string]memoryRow
	byNorm map[string]string
}

type memoryRow struct {
	account Account
	hash    password.Encoded
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]memoryRow),
		byNorm: make(map[string]string),
	}
}

func (s *MemoryStore) CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
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

	now := nowOr(in.Now)
	id, err := NewAccountID(now)
	if err != nil {
		return Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byNorm[norm]; taken {
		return Account{}, usernameTaken(op)
	}

	acc := Account{
		ID:        id,
		Name:      trimPtr(in.Name),
		Username:  username,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.byID[id] = memoryRow{account: acc, hash: in.PasswordHash}
	s.byNorm[norm] = id
	return copyAccount(acc), nil
}

func (s *MemoryStore) GetAccountByID(ctx context.Context, id string) (Account, error) {
	const op = "identity.GetAccountByID"
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.byID[strings.TrimSpace(id)]
	if !ok {
		return Account{}, notFound(op)
	}
	return copyAccount(row.account), nil
}

func (s *MemoryStore) GetAccountAuthByUsername(ctx context.Context, username string) (AccountAuth, error) {
	const op = "identity.GetAccountAuthByUsername"
	if err := ctx.Err(); err != nil {
		return AccountAuth{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byNorm[NormalizeUsername(username)]
	if !ok {
		return AccountAuth{}, notFound(op)
	}
	row := s.byID[id]
	return AccountAuth{Account: copyAccount(row.account), PasswordHash: row.hash}, nil
}

func (s *MemoryStore) ListAccounts(ctx context.Context) ([]Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	out := make([]Account, 0, len(s.byID))
	for _, row := range s.byID {
		out = append(out, copyAccount(row.account))
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) UpdateAccount(ctx context.Context, id string, in UpdateAccountInput) (Account, error) {
	const op = "identity.UpdateAccount"
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	var username, norm string
	if in.Username != nil {
		var err error
		if username, norm, err = checkUsername(op, *in.Username); err != nil {
			return Account{}, err
		}
	}
	if err := checkHash(op, in.PasswordHash, true); err != nil {
		return Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id = strings.TrimSpace(id)
	row, ok := s.byID[id]
	if !ok {
		return Account{}, notFound(op)
	}

	if in.Username != nil {
		oldNorm := NormalizeUsername(row.account.Username)
		if owner, taken := s.byNorm[norm]; taken && owner != id {
			return Account{}, usernameTaken(op)
		}
		delete(s.byNorm, oldNorm)
		s.byNorm[norm] = id
		row.account.Username = username
	}
	if in.Name != nil {
		row.account.Name = trimPtr(in.Name)
	}
	if !in.PasswordHash.IsZero() {
		row.hash = in.PasswordHash
	}
	row.account.UpdatedAt = nowOr(in.Now)

	s.byID[id] = row
	return copyAccount(row.account), nil
}

func (s *MemoryStore) SetPasswordHash(ctx context.Context, id string, hash password.Encoded, now time.Time) error {
	const op = "identity.SetPasswordHash"
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkHash(op, hash, false); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id = strings.TrimSpace(id)
	row, ok := s.byID[id]
	if !ok {
		return notFound(op)
	}
	row.hash = hash
	row.account.UpdatedAt = nowOr(now)
	s.byID[id] = row
	return nil
}

func (s *MemoryStore) DeleteAccount(ctx context.Context, id string) error {
	const op = "identity.DeleteAccount"
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id = strings.TrimSpace(id)
	row, ok := s.byID[id]
	if !ok {
		return notFound(op)
	}
	delete(s.byNorm, NormalizeUsername(row.account.Username))
	delete(s.byID, id)
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (s *MemoryStore) Close() error { return nil }

func copyAccount(a Account) Account {
	a.Name = clonePtr(a.Name)
	return a
}
