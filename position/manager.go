package position

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// Manager issues the soulbound identifiers that investors hold for their
// positions. An owner holds at most one position per sale; 0 means none.
type Manager interface {
	PositionIDOf(owner common.Address) uint64
	CreatePosition(owner common.Address) (uint64, error)
	TransferPosition(from, to common.Address, id uint64) error
	BurnPosition(owner common.Address) error
}

// ManagerState is the durable form of a MemManager.
type ManagerState struct {
	NextID uint64            `json:"nextId"`
	Owners []OwnerAssignment `json:"owners"`
}

// OwnerAssignment records that Owner holds position ID.
type OwnerAssignment struct {
	Owner common.Address `json:"owner"`
	ID    uint64         `json:"id"`
}

// MemManager is an in-memory, journaled Manager. Identifiers start at 1.
type MemManager struct {
	nextID    uint64
	ids       map[common.Address]uint64
	snapshots []ManagerState
}

var _ Manager = (*MemManager)(nil)

// NewMemManager creates an empty manager.
func NewMemManager() *MemManager {
	return &MemManager{nextID: 1, ids: make(map[common.Address]uint64)}
}

// PositionIDOf returns the owner's position id, or 0.
func (m *MemManager) PositionIDOf(owner common.Address) uint64 {
	return m.ids[owner]
}

// OwnerOf returns the holder of id.
func (m *MemManager) OwnerOf(id uint64) (common.Address, bool) {
	for owner, held := range m.ids {
		if held == id {
			return owner, true
		}
	}
	return common.Address{}, false
}

// CreatePosition mints a fresh id for owner.
func (m *MemManager) CreatePosition(owner common.Address) (uint64, error) {
	if owner == (common.Address{}) {
		return 0, ErrZeroAddress
	}
	if m.ids[owner] != 0 {
		return 0, fmt.Errorf("%w: %s", ErrAlreadyHasPosition, owner.Hex())
	}
	id := m.nextID
	m.nextID++
	m.ids[owner] = id
	return id, nil
}

// TransferPosition reassigns id from from to to. The receiver must not
// already hold a position.
func (m *MemManager) TransferPosition(from, to common.Address, id uint64) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if from == to {
		return ErrSameOwner
	}
	if m.ids[from] != id || id == 0 {
		return fmt.Errorf("%w: %s does not hold %d", ErrNotOwner, from.Hex(), id)
	}
	if m.ids[to] != 0 {
		return fmt.Errorf("%w: %s", ErrAlreadyHasPosition, to.Hex())
	}
	delete(m.ids, from)
	m.ids[to] = id
	return nil
}

// BurnPosition removes owner's position id.
func (m *MemManager) BurnPosition(owner common.Address) error {
	if m.ids[owner] == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, owner.Hex())
	}
	delete(m.ids, owner)
	return nil
}

// State returns the manager's durable state.
func (m *MemManager) State() ManagerState {
	st := ManagerState{NextID: m.nextID, Owners: make([]OwnerAssignment, 0, len(m.ids))}
	for owner, id := range m.ids {
		st.Owners = append(st.Owners, OwnerAssignment{Owner: owner, ID: id})
	}
	sort.Slice(st.Owners, func(i, j int) bool { return st.Owners[i].ID < st.Owners[j].ID })
	return st
}

// Restore replaces the manager's state.
func (m *MemManager) Restore(st ManagerState) {
	m.nextID = st.NextID
	if m.nextID == 0 {
		m.nextID = 1
	}
	m.ids = make(map[common.Address]uint64, len(st.Owners))
	for _, o := range st.Owners {
		m.ids[o.Owner] = o.ID
	}
}

// Snapshot records the current state and returns its id.
func (m *MemManager) Snapshot() int {
	m.snapshots = append(m.snapshots, m.State())
	return len(m.snapshots) - 1
}

// RevertToSnapshot restores the state recorded by Snapshot(id) and drops
// every later snapshot.
func (m *MemManager) RevertToSnapshot(id int) {
	if id < 0 || id >= len(m.snapshots) {
		panic(fmt.Errorf("%w: %d", ErrInvalidSnapshot, id))
	}
	m.Restore(m.snapshots[id])
	m.snapshots = m.snapshots[:id]
}

// DiscardSnapshot forgets snapshot id and every later one.
func (m *MemManager) DiscardSnapshot(id int) {
	if id >= 0 && id < len(m.snapshots) {
		m.snapshots = m.snapshots[:id]
	}
}
