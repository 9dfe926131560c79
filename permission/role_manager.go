package permission

import (
	"fmt"
	"sort"

	"github.com/MrEthical07/goStage/user"
)

// RoleManager holds the action mask granted to each role. It is immutable
// after NewRoleManager.
type RoleManager struct {
	registry *Registry
	roles    map[user.Role]Mask64
}

// NewRoleManager resolves grants against registry. A role missing from
// grants is denied everything; a role present with no actions is known but
// powerless.
func NewRoleManager(registry *Registry, grants map[user.Role][]string) (*RoleManager, error) {
	rm := &RoleManager{
		registry: registry,
		roles:    make(map[user.Role]Mask64, len(grants)),
	}
	for role, actions := range grants {
		if !role.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
		}
		mask, err := registry.Mask(actions...)
		if err != nil {
			return nil, fmt.Errorf("role %s: %w", role, err)
		}
		rm.roles[role] = mask
	}
	return rm, nil
}

func (rm *RoleManager) Mask(role user.Role) (Mask64, bool) {
	mask, ok := rm.roles[role]
	return mask, ok
}

// Allows reports whether role holds action. Unknown roles and actions are
// denied.
func (rm *RoleManager) Allows(role user.Role, action string) bool {
	bit, ok := rm.registry.Bit(action)
	if !ok {
		return false
	}
	return rm.roles[role].Has(bit)
}

// Actions lists the action names granted to role, sorted.
func (rm *RoleManager) Actions(role user.Role) []string {
	mask := rm.roles[role]
	out := make([]string, 0, mask.Len())
	for bit := 0; bit < maxBits && len(out) < mask.Len(); bit++ {
		if !mask.Has(bit) {
			continue
		}
		if name, ok := rm.registry.Name(bit); ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Count returns the number of known roles.
func (rm *RoleManager) Count() int {
	return len(rm.roles)
}
