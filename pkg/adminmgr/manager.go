// Package adminmgr decides what a session is allowed to do: which admin
// flags it holds, which console commands it may run and whether it may
// place entities outside sandbox mode.
package adminmgr

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/crystal-station/gostation/pkg/boltstore"
	"github.com/crystal-station/gostation/pkg/player"
	"github.com/google/uuid"
)

// AccountStore is the persisted account source. *boltstore.Store satisfies it.
type AccountStore interface {
	GetAccount(name string) (*boltstore.Account, error)
	SetAdminFlags(name string, flags uint32) error
}

// Manager holds the admin flags of every live session.
type Manager struct {
	mu    sync.RWMutex
	flags map[uuid.UUID]AdminFlags
	store AccountStore
}

// NewManager creates an admin manager. store may be nil, in which case
// flags only live as long as the session.
func NewManager(store AccountStore) *Manager {
	return &Manager{
		flags: make(map[uuid.UUID]AdminFlags),
		store: store,
	}
}

// LoadSession reads the session's admin flags from its account.
// A session without an account gets no flags.
func (m *Manager) LoadSession(s *player.Session) AdminFlags {
	var f AdminFlags
	if m.store != nil {
		acc, err := m.store.GetAccount(s.Name)
		switch {
		case err == nil:
			f = AdminFlags(acc.AdminFlags)
		case !errors.Is(err, boltstore.ErrNotFound):
			log.Printf("[admin] loading flags for %s: %v", s.Name, err)
		}
	}
	m.mu.Lock()
	m.flags[s.ID] = f
	m.mu.Unlock()
	if f != 0 {
		log.Printf("[admin] %s logged in with flags %s", s.Name, f)
	}
	return f
}

// SetFlags replaces a session's flags and persists them to its account.
func (m *Manager) SetFlags(s *player.Session, f AdminFlags) error {
	m.mu.Lock()
	m.flags[s.ID] = f
	m.mu.Unlock()
	log.Printf("[admin] %s flags set to %s", s.Name, f)
	if m.store == nil {
		return nil
	}
	if err := m.store.SetAdminFlags(s.Name, uint32(f)); err != nil && !errors.Is(err, boltstore.ErrNotFound) {
		return fmt.Errorf("adminmgr: persist flags for %s: %w", s.Name, err)
	}
	return nil
}

// Forget drops a session's cached flags.
func (m *Manager) Forget(s *player.Session) {
	m.mu.Lock()
	delete(m.flags, s.ID)
	m.mu.Unlock()
}

// Flags returns the session's admin flags.
func (m *Manager) Flags(s *player.Session) AdminFlags {
	if s == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.flags[s.ID]
}

// IsAdmin reports whether the session holds any admin flag.
func (m *Manager) IsAdmin(s *player.Session) bool {
	return m.Flags(s) != 0
}

// HasAdminFlag reports whether the session holds flag. HOST implies all flags.
func (m *Manager) HasAdminFlag(s *player.Session, flag AdminFlags) bool {
	if s == nil {
		return false
	}
	return m.Flags(s).Has(flag)
}
