package domain

// Role differentiates the two portals.
type Role string

const (
	RoleBusiness Role = "business"
	RoleSupport  Role = "support"
)

// Account is one of the fixed demo identities.
type Account struct {
	Identity string `json:"identity"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
}

const (
	BusinessIdentity = "business.user@contoso.com"
	SupportIdentity  = "support.engineer@contoso.com"

	// ApproverIdentity is assigned to every incident routed for approval.
	ApproverIdentity = "security.approver@contoso.com"
)

// DemoAccounts returns the two known identities.
func DemoAccounts() []Account {
	return []Account{
		{Identity: BusinessIdentity, Name: "Business User", Role: RoleBusiness},
		{Identity: SupportIdentity, Name: "Support Engineer", Role: RoleSupport},
	}
}

// LookupAccount finds a demo account by exact identity.
func LookupAccount(identity string) (Account, bool) {
	for _, acc := range DemoAccounts() {
		if acc.Identity == identity {
			return acc, true
		}
	}
	return Account{}, false
}

// AccountsWithRole lists demo accounts holding role.
func AccountsWithRole(role Role) []Account {
	var out []Account
	for _, acc := range DemoAccounts() {
		if acc.Role == role {
			out = append(out, acc)
		}
	}
	return out
}
