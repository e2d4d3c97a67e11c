package rbac

// Role names carried in access tokens.
const (
	RoleMember     = "member"
	RoleAdmin      = "admin"
	RoleOwner      = "owner"
	RoleSuperAdmin = "super_admin"
	RoleSupport    = "support" // hidden; opt-in per route
)

// CallerRoles may place and take calls.
var CallerRoles = []string{RoleMember, RoleAdmin, RoleOwner}

// OperatorRoles may read workspace call reports and trigger maintenance.
var OperatorRoles = []string{RoleAdmin, RoleOwner}

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

func IsHiddenRole(role string) bool { return role == RoleSupport }

// Allows reports whether role passes a check that admits allowed.
// super_admin always passes; hidden roles pass only when listed.
func Allows(role string, allowed ...string) bool {
	if role == "" {
		return false
	}
	if IsSuperAdmin(role) {
		return true
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
