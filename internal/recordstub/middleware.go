package recordstub

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"messaging-core/internal/models"
)

const callerContextKey = "callerMatricule"

// AuthMiddleware resolves the caller from the Authorization header. The
// stub treats the bearer token as the caller's matricule and registers
// unknown callers on first sight so a fresh database is usable immediately.
func AuthMiddleware(users UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}
		matricule := parts[1]

		role := models.ParticipantRole(c.GetHeader("X-Role"))
		if role != models.RoleInstructor {
			role = models.RoleStudent
		}
		if err := users.Ensure(c.Request.Context(), models.Participant{
			Matricule:   matricule,
			DisplayName: matricule,
			Role:        role,
			Online:      true,
		}); err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to register caller"})
			return
		}

		c.Set(callerContextKey, matricule)
		c.Next()
	}
}

func callerFromContext(c *gin.Context) string {
	return c.GetString(callerContextKey)
}
