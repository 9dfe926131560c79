package user

import "strings"

// Role is the closed set of account roles.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleSousAdmin  Role = "SOUS_ADMIN"
	RoleEnseignant Role = "ENSEIGNANT"
	RoleEtudiant   Role = "ETUDIANT"
)

// Roles lists every known role in declaration order.
func Roles() []Role {
	return []Role{RoleAdmin, RoleSousAdmin, RoleEnseignant, RoleEtudiant}
}

// ParseRole normalizes raw (trim, upper-case) and reports whether it names a
// known role. Unknown values are returned normalized with ok == false.
func ParseRole(raw string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(raw)))
	return r, r.Valid()
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSousAdmin, RoleEnseignant, RoleEtudiant:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}
