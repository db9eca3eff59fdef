package identity

import (
	"context"
	"testing"
)

func TestMemoryStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	acc, err := s.CreateAccount(ctx, CreateAccountInput{Name: strp("Alice"), Username: "alice"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	*acc.Name = "Mallory"

	got, err := s.GetAccountByID(ctx, acc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if *got.Name != "Alice" {
		t.Fatalf("store state leaked through returned pointer: %q", *got.Name)
	}
}
