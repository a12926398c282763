package registry

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
)

var (
	// ErrUnknownToken is returned when no owner is recorded for a token.
	ErrUnknownToken = errors.New("registry: unknown token")
	// ErrNotOwner is returned by Transfer when from is not the current
	// owner of the token.
	ErrNotOwner = errors.New("registry: from is not the current owner")
)

// Memory is a deterministic in-memory asset registry. It backs tests and dev
// mode, tracking ownership, per-token approvals and blanket operator
// approvals for a single asset class.
type Memory struct {
	mu             sync.RWMutex
	owners         map[string][20]byte
	tokenApprovals map[string][20]byte
	operators      map[[40]byte]bool
}

// NewMemory creates an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{
		owners:         make(map[string][20]byte),
		tokenApprovals: make(map[string][20]byte),
		operators:      make(map[[40]byte]bool),
	}
}

func tokenKey(tokenID *big.Int) string {
	if tokenID == nil {
		return "0"
	}
	return tokenID.String()
}

func operatorKey(owner, operator [20]byte) [40]byte {
	var key [40]byte
	copy(key[:20], owner[:])
	copy(key[20:], operator[:])
	return key
}

// Mint records owner as the holder of tokenID. Existing tokens cannot be
// minted twice.
func (m *Memory) Mint(owner [20]byte, tokenID *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tokenKey(tokenID)
	if _, ok := m.owners[key]; ok {
		return fmt.Errorf("registry: token %s already minted", key)
	}
	m.owners[key] = owner
	return nil
}

// OwnerOf returns the current owner of tokenID.
func (m *Memory) OwnerOf(tokenID *big.Int) ([20]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	owner, ok := m.owners[tokenKey(tokenID)]
	if !ok {
		return [20]byte{}, fmt.Errorf("%w: %s", ErrUnknownToken, tokenKey(tokenID))
	}
	return owner, nil
}

// Transfer moves tokenID from one holder to another, failing when from is not
// the current owner. Any per-token approval is cleared by the transfer.
func (m *Memory) Transfer(from, to [20]byte, tokenID *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tokenKey(tokenID)
	owner, ok := m.owners[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, key)
	}
	if owner != from {
		return fmt.Errorf("%w: token %s", ErrNotOwner, key)
	}
	m.owners[key] = to
	delete(m.tokenApprovals, key)
	return nil
}

// Approve grants spender per-token transfer rights for tokenID.
func (m *Memory) Approve(spender [20]byte, tokenID *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tokenKey(tokenID)
	if _, ok := m.owners[key]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, key)
	}
	m.tokenApprovals[key] = spender
	return nil
}

// SetApprovalForAll grants or revokes blanket operator rights over every
// token held by owner.
func (m *Memory) SetApprovalForAll(owner, operator [20]byte, approved bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if approved {
		m.operators[operatorKey(owner, operator)] = true
		return
	}
	delete(m.operators, operatorKey(owner, operator))
}

// IsApprovedForAll reports whether operator holds blanket rights from owner.
func (m *Memory) IsApprovedForAll(owner, operator [20]byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.operators[operatorKey(owner, operator)], nil
}

// ApprovedFor returns the spender holding per-token rights for tokenID, or
// the zero address when none exists.
func (m *Memory) ApprovedFor(tokenID *big.Int) ([20]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tokenApprovals[tokenKey(tokenID)], nil
}
