package users

// RoleType is the authorization level derived from a principal.
type RoleType string

const (
	RoleUser  RoleType = "user"
	RoleAdmin RoleType = "admin"
)

// AdminIdentities is the set of principal emails that resolve to RoleAdmin.
// Matching is exact and case-sensitive.
type AdminIdentities map[string]struct{}

func NewAdminIdentities(emails ...string) AdminIdentities {
	a := make(AdminIdentities, len(emails))
	for _, e := range emails {
		if e != "" {
			a[e] = struct{}{}
		}
	}
	return a
}

func (a AdminIdentities) Contains(email string) bool {
	_, ok := a[email]
	return ok
}

// DeriveRole is recomputed on every session resolution and never cached apart from
// the session it was derived from.
func DeriveRole(p Principal, admins AdminIdentities) RoleType {
	if p.Email != "" && admins.Contains(p.Email) {
		return RoleAdmin
	}
	return RoleUser
}
