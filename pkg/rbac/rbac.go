// Package rbac implements C12: a per-tool role gate over a static
// tool→allowed-roles map, with a process-wide strict mode that decides
// whether an absent user context is denied or waved through.
package rbac

import (
	"fmt"
	"strings"

	"github.com/unergybot/tke/pkg/models"
)

// Gate enforces the protected-tool role allowlist.
type Gate struct {
	protected  map[string]map[string]bool
	strictMode bool
}

// New builds a Gate from a tool→roles map (as loaded from
// config.RBACConfig.ProtectedToolRoles) and the strict-mode flag.
func New(protectedToolRoles map[string][]string, strictMode bool) *Gate {
	protected := make(map[string]map[string]bool, len(protectedToolRoles))
	for tool, roles := range protectedToolRoles {
		set := make(map[string]bool, len(roles))
		for _, r := range roles {
			set[strings.ToLower(r)] = true
		}
		protected[tool] = set
	}
	return &Gate{protected: protected, strictMode: strictMode}
}

// Allow reports whether toolName may run for user. A nil user is denied
// only when strict mode is on; an unprotected tool always passes.
func (g *Gate) Allow(toolName string, user *models.UserContext) error {
	allowedRoles, isProtected := g.protected[toolName]
	if !isProtected {
		return nil
	}

	if user == nil {
		if g.strictMode {
			return fmt.Errorf("%w: %s requires authentication", models.ErrPermission, toolName)
		}
		return nil
	}

	for _, role := range user.Roles {
		if allowedRoles[strings.ToLower(role)] {
			return nil
		}
	}
	return fmt.Errorf("%w: user %s lacks a role allowed to call %s", models.ErrPermission, user.UserID, toolName)
}
