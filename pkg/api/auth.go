package api

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/unergybot/tke/pkg/models"
)

// userFromHeaders builds a UserContext from oauth2-proxy-style forwarded
// headers. Returns nil when no identity header is present, which is valid
// input to pkg/rbac.Gate.Allow as long as strict mode is off.
func userFromHeaders(c *gin.Context) *models.UserContext {
	userID := c.GetHeader("X-Forwarded-User")
	if userID == "" {
		userID = c.GetHeader("X-Forwarded-Email")
	}
	if userID == "" {
		return nil
	}
	var roles []string
	if raw := c.GetHeader("X-Forwarded-Roles"); raw != "" {
		for _, r := range strings.Split(raw, ",") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, r)
			}
		}
	}
	return &models.UserContext{
		UserID: userID,
		Roles:  roles,
		OrgID:  c.GetHeader("X-Forwarded-Org"),
	}
}
