package state

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"
)

var (
	// ErrRoleAssigned is returned when granting a role the account already holds.
	ErrRoleAssigned = errors.New("account already has role")
	// ErrRoleMissing is returned when revoking a role the account does not hold.
	ErrRoleMissing = errors.New("account does not have role")
)

func (m *Manager) loadRole(role string) ([][]byte, error) {
	data, err := m.get(roleKey(role))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return [][]byte{}, nil
	}
	var members [][]byte
	if err := rlp.DecodeBytes(data, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (m *Manager) writeRole(role string, members [][]byte) error {
	if len(members) == 0 {
		m.del(roleKey(role))
		return nil
	}
	encoded, err := rlp.EncodeToBytes(members)
	if err != nil {
		return err
	}
	m.put(roleKey(role), encoded)
	return nil
}

// SetRole associates an address with the specified role. The stored list
// remains sorted for determinism. Granting an existing member returns
// ErrRoleAssigned.
func (m *Manager) SetRole(role string, addr []byte) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("role must not be empty")
	}
	if len(addr) == 0 {
		return fmt.Errorf("address must not be empty")
	}
	members, err := m.loadRole(trimmed)
	if err != nil {
		return err
	}
	for _, existing := range members {
		if bytes.Equal(existing, addr) {
			return ErrRoleAssigned
		}
	}
	members = append(members, append([]byte(nil), addr...))
	sort.Slice(members, func(i, j int) bool {
		return bytes.Compare(members[i], members[j]) < 0
	})
	return m.writeRole(trimmed, members)
}

// RemoveRole revokes the role from the address.
func (m *Manager) RemoveRole(role string, addr []byte) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("role must not be empty")
	}
	members, err := m.loadRole(trimmed)
	if err != nil {
		return err
	}
	for i, existing := range members {
		if bytes.Equal(existing, addr) {
			members = append(members[:i], members[i+1:]...)
			return m.writeRole(trimmed, members)
		}
	}
	return ErrRoleMissing
}

// RoleMembers returns all addresses assigned to the provided role.
func (m *Manager) RoleMembers(role string) ([][]byte, error) {
	return m.loadRole(strings.TrimSpace(role))
}

// HasRole reports whether the provided address is associated with the
// specified role. Errors while reading the underlying state result in a false
// return.
func (m *Manager) HasRole(role string, addr []byte) bool {
	if len(addr) == 0 {
		return false
	}
	members, err := m.loadRole(strings.TrimSpace(role))
	if err != nil {
		return false
	}
	for _, member := range members {
		if bytes.Equal(member, addr) {
			return true
		}
	}
	return false
}

// SetPaused toggles the pause flag for a module.
func (m *Manager) SetPaused(module string, paused bool) error {
	trimmed := strings.TrimSpace(module)
	if trimmed == "" {
		return fmt.Errorf("module must not be empty")
	}
	if !paused {
		m.del(pauseKey(trimmed))
		return nil
	}
	m.put(pauseKey(trimmed), []byte{1})
	return nil
}

// IsPaused implements the pause view consumed by native module guards.
func (m *Manager) IsPaused(module string) bool {
	data, err := m.get(pauseKey(strings.TrimSpace(module)))
	if err != nil {
		return false
	}
	return len(data) == 1 && data[0] == 1
}
