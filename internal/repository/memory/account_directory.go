package memory

import (
	"context"
	"sync"

	"transfer-reconciliation-backend/internal/repository"
)

// AccountDirectory is an in-memory implementation of
// repository.AccountDirectory keyed by on-ledger address.
type AccountDirectory struct {
	mu     sync.RWMutex
	owners map[string][]repository.AccountRef
}

func NewAccountDirectory() *AccountDirectory {
	return &AccountDirectory{owners: make(map[string][]repository.AccountRef)}
}

// AddOwner registers a wallet as claiming the address.
func (d *AccountDirectory) AddOwner(address string, ref repository.AccountRef) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.owners[address] = append(d.owners[address], ref)
}

func (d *AccountDirectory) FindAccountsOwningAddress(_ context.Context, address string) ([]repository.AccountRef, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	refs := d.owners[address]
	out := make([]repository.AccountRef, len(refs))
	copy(out, refs)
	return out, nil
}

var _ repository.AccountDirectory = (*AccountDirectory)(nil)
