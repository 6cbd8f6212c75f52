// Package registry resolves platform roles to addresses.
package registry

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Role is a 32-byte role identifier: the role name, right-padded with zeros.
type Role [32]byte

// Well-known roles.
var (
	RoleBouncer        = MustRole("LEGION_BOUNCER")
	RoleSigner         = MustRole("LEGION_SIGNER")
	RoleFeeReceiver    = MustRole("LEGION_FEE_RECEIVER")
	RoleVestingFactory = MustRole("LEGION_VESTING_FACTORY")
)

// NewRole builds a role from its name.
func NewRole(name string) (Role, error) {
	var r Role
	if len(name) > len(r) {
		return r, fmt.Errorf("%w: %q", ErrRoleNameTooLong, name)
	}
	copy(r[:], name)
	return r, nil
}

// MustRole is NewRole for compile-time constants.
func MustRole(name string) Role {
	r, err := NewRole(name)
	if err != nil {
		panic(err)
	}
	return r
}

// String returns the role name.
func (r Role) String() string {
	return string(bytes.TrimRight(r[:], "\x00"))
}

// Registry resolves a role to an address; the zero address means unset.
type Registry interface {
	Resolve(role Role) common.Address
}

// MemRegistry is an in-memory Registry safe for concurrent use.
type MemRegistry struct {
	mu    sync.RWMutex
	addrs map[Role]common.Address
}

var _ Registry = (*MemRegistry)(nil)

// NewMemRegistry creates an empty registry.
func NewMemRegistry() *MemRegistry {
	return &MemRegistry{addrs: make(map[Role]common.Address)}
}

// Resolve returns the address registered for role.
func (r *MemRegistry) Resolve(role Role) common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.addrs[role]
}

// Set registers addr for role.
func (r *MemRegistry) Set(role Role, addr common.Address) error {
	if addr == (common.Address{}) {
		return ErrZeroAddress
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addrs[role] = addr
	return nil
}

// Overlay resolves role to addr and every other role through base.
type Overlay struct {
	base Registry
	role Role
	addr common.Address
}

var _ Registry = (*Overlay)(nil)

// NewOverlay wraps base so that role resolves to addr.
func NewOverlay(base Registry, role Role, addr common.Address) *Overlay {
	return &Overlay{base: base, role: role, addr: addr}
}

// Resolve implements Registry.
func (o *Overlay) Resolve(role Role) common.Address {
	if role == o.role {
		return o.addr
	}
	return o.base.Resolve(role)
}
