package middlewares

import (
	"net/http"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/Jorge523757/DIGITSOFT/models"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"github.com/gin-gonic/gin"
)

// SessionMiddleware resolves the "token" header to the session user. Requests
// without a token pass through anonymous; an unknown token is rejected.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		username, exists, err := models.ResolveSession(token)
		if err != nil || !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		ctx := c.Request.Context()
		user, err := models.GetUserByUsername(ctx, username)
		if err != nil || !user.IsActive {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx = utils.SetTokenInContext(ctx, token)
		ctx = utils.SetUsernameInContext(ctx, user.Username)
		ctx = utils.SetUserIdInContext(ctx, user.ID)
		ctx = utils.SetUserNameInContext(ctx, user.Name)
		ctx = utils.SetRoleInContext(ctx, string(user.Role))
		if user.Role == models.UserRoleCustomer {
			customer, err := models.GetCustomerByUserId(ctx, user.ID)
			if err == nil {
				ctx = utils.SetCustomerIdInContext(ctx, customer.ID)
			} else if utils.KindOf(err) != utils.ErrorKindNotFound {
				config.LogError(config.GetLogger(), "sessionMiddleware.go", "SessionMiddleware", "GetCustomerByUserId", user.Username, err)
			}
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
