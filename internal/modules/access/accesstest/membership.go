// Package accesstest provides an in-memory access.Membership for tests.
package accesstest

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/georgemunganga/bikeservice-backend/internal/modules/access"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/permission"
)

type grantKey struct{ user, store uuid.UUID }

// Membership holds stores and staff grants in maps.
type Membership struct {
	mu     sync.RWMutex
	stores map[uuid.UUID]access.StoreState
	grants map[grantKey]access.Grant

	// Err, when set, is returned by every lookup.
	Err error
}

func NewMembership() *Membership {
	return &Membership{stores: map[uuid.UUID]access.StoreState{}, grants: map[grantKey]access.Grant{}}
}

// AddStore registers an active store owned by owner.
func (m *Membership) AddStore(storeID, owner uuid.UUID) {
	m.mu.Lock()
	m.stores[storeID] = access.StoreState{ID: storeID, OwnerID: owner, IsActive: true}
	m.mu.Unlock()
}

func (m *Membership) SetStoreActive(storeID uuid.UUID, active bool) {
	m.mu.Lock()
	st := m.stores[storeID]
	st.IsActive = active
	m.stores[storeID] = st
	m.mu.Unlock()
}

// Grant gives user an active grant at store.
func (m *Membership) Grant(userID, storeID uuid.UUID, perms ...permission.Permission) {
	m.mu.Lock()
	m.grants[grantKey{userID, storeID}] = access.Grant{StoreID: storeID, UserID: userID, Permissions: perms, IsActive: true}
	m.mu.Unlock()
}

func (m *Membership) Revoke(userID, storeID uuid.UUID) {
	m.mu.Lock()
	delete(m.grants, grantKey{userID, storeID})
	m.mu.Unlock()
}

func (m *Membership) StoreState(ctx context.Context, storeID uuid.UUID) (*access.StoreState, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.stores[storeID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (m *Membership) FindActiveGrant(ctx context.Context, userID, storeID uuid.UUID) (*access.Grant, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.grants[grantKey{userID, storeID}]
	if !ok || !g.IsActive {
		return nil, nil
	}
	return &g, nil
}
