package security

import (
	"path"
	"strings"
)

// Access is the requirement a rule places on a request.
type Access int

const (
	// PermitAll skips authentication entirely.
	PermitAll Access = iota
	// Authenticated requires any principal regardless of role.
	Authenticated
	// HasAnyRole requires one of the rule's roles.
	HasAnyRole
)

// Decision is the outcome of evaluating the policy for a request.
type Decision int

const (
	Permit Decision = iota
	RedirectToLogin
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Permit:
		return "permit"
	case RedirectToLogin:
		return "redirect_login"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Rule maps path patterns to an access requirement.
// A pattern is an exact path, a path.Match glob ("/board/*"), or a prefix ending in "/**".
type Rule struct {
	Patterns []string
	Access   Access
	Roles    []string
}

// Matches reports whether p is covered by any of the rule's patterns.
func (r Rule) Matches(p string) bool {
	for _, pattern := range r.Patterns {
		if matchPattern(pattern, p) {
			return true
		}
	}
	return false
}

func matchPattern(pattern, p string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
		return p == prefix || strings.HasPrefix(p, prefix+"/")
	}
	if !strings.ContainsAny(pattern, "*?[") {
		return pattern == p
	}
	ok, err := path.Match(pattern, p)
	return err == nil && ok
}

// Policy is an ordered rule list evaluated first-match-wins, plus the login/logout targets.
// Paths no rule matches require an authenticated principal.
type Policy struct {
	Rules            []Rule
	LoginPath        string
	LoginSuccessPath string
	LogoutPath       string
	LogoutSuccessURL string
}

// DefaultPolicy is the route authorization used by the application.
func DefaultPolicy() *Policy {
	return &Policy{
		Rules: []Rule{
			{Patterns: []string{"/css/**", "/js/**", "/images/**", "/fonts/**", "/vendor/**", "/assets/**"}, Access: PermitAll},
			{Patterns: []string{"/login", "/signup", "/user"}, Access: PermitAll},
			{Patterns: []string{"/health"}, Access: PermitAll},
			{Patterns: []string{"/board/file"}, Access: Authenticated},
			{Patterns: []string{"/", "/board", "/board/*", "/boardwrite"}, Access: HasAnyRole, Roles: []string{"USER", "ADMIN"}},
			{Patterns: []string{"/admin", "/admin/**"}, Access: HasAnyRole, Roles: []string{"ADMIN"}},
			{Patterns: []string{"/**"}, Access: Authenticated},
		},
		LoginPath:        "/login",
		LoginSuccessPath: "/",
		LogoutPath:       "/logout",
		LogoutSuccessURL: "/login",
	}
}

// Match returns the first rule covering p.
func (pol *Policy) Match(p string) Rule {
	for _, rule := range pol.Rules {
		if rule.Matches(p) {
			return rule
		}
	}
	return Rule{Access: Authenticated}
}

// Decide evaluates the request path against the principal, which is nil for anonymous requests.
func (pol *Policy) Decide(p string, principal *Principal) Decision {
	rule := pol.Match(p)
	switch rule.Access {
	case PermitAll:
		return Permit
	case HasAnyRole:
		if principal == nil {
			return RedirectToLogin
		}
		if principal.HasAnyRole(rule.Roles...) {
			return Permit
		}
		return Forbidden
	default:
		if principal == nil {
			return RedirectToLogin
		}
		return Permit
	}
}
