package security

import (
	"sort"
	"strings"
)

const rolePrefix = "ROLE_"

// Principal is the authenticated identity rebuilt from the credential store on every request.
type Principal struct {
	UserID       uint
	Username     string
	Name         string
	PasswordHash string
	roles        map[string]struct{}
}

// NewPrincipal builds a principal from the stored comma-separated role string.
func NewPrincipal(userID uint, email, name, passwordHash, auth string) *Principal {
	return &Principal{
		UserID:       userID,
		Username:     email,
		Name:         name,
		PasswordHash: passwordHash,
		roles:        ParseRoles(auth),
	}
}

// ParseRoles splits a role string such as "ROLE_USER,ROLE_ADMIN" into a set of tokens.
// Blank tokens are dropped and duplicates collapse.
func ParseRoles(auth string) map[string]struct{} {
	roles := make(map[string]struct{})
	for _, token := range strings.Split(auth, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		roles[token] = struct{}{}
	}
	return roles
}

// HasRole reports whether the principal holds role, given either bare ("ADMIN") or prefixed ("ROLE_ADMIN").
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	bare := strings.TrimPrefix(role, rolePrefix)
	if _, ok := p.roles[bare]; ok {
		return true
	}
	_, ok := p.roles[rolePrefix+bare]
	return ok
}

// HasAnyRole reports whether the principal holds at least one of roles.
func (p *Principal) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if p.HasRole(r) {
			return true
		}
	}
	return false
}

// Roles returns the role tokens in sorted order.
func (p *Principal) Roles() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.roles))
	for r := range p.roles {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Account state flags. Lockout, expiry and disablement are not modelled, so all of them hold.
func (p *Principal) AccountNonExpired() bool     { return true }
func (p *Principal) AccountNonLocked() bool      { return true }
func (p *Principal) CredentialsNonExpired() bool { return true }
func (p *Principal) Enabled() bool               { return true }
