package handlers

import (
	"net/http"

	"github.com/Jorge523757/DIGITSOFT/models"
	"github.com/Jorge523757/DIGITSOFT/utils"
	"github.com/gin-gonic/gin"
)

type loginInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func login(c *gin.Context) {
	var input loginInput
	if !bindJSON(c, &input) {
		return
	}
	info, err := models.Login(c.Request.Context(), input.Username, input.Password)
	if err != nil {
		respondError(c, "login", err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func register(c *gin.Context) {
	var input models.NewRegistration
	if !bindJSON(c, &input) {
		return
	}
	user, err := models.Register(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "register", err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func logout(c *gin.Context) {
	ok, err := models.Logout(c.Request.Context())
	if err != nil {
		respondError(c, "logout", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": ok})
}

type meResponse struct {
	*models.User
	Home       string `json:"home"`
	CustomerId *int   `json:"customer_id,omitempty"`
}

func me(c *gin.Context) {
	ctx := c.Request.Context()
	username, _ := utils.GetUsernameFromContext(ctx)
	user, err := models.GetUserByUsername(ctx, username)
	if err != nil {
		respondError(c, "me", err)
		return
	}
	res := meResponse{User: user, Home: models.HomeForRole(user.Role)}
	if customerId, ok := utils.GetCustomerIdFromContext(ctx); ok && customerId > 0 {
		res.CustomerId = &customerId
	}
	c.JSON(http.StatusOK, res)
}

type changePasswordInput struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func changePassword(c *gin.Context) {
	var input changePasswordInput
	if !bindJSON(c, &input) {
		return
	}
	user, err := models.ChangePassword(c.Request.Context(), input.OldPassword, input.NewPassword)
	if err != nil {
		respondError(c, "changePassword", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func listNotifications(c *gin.Context) {
	var filter models.NotificationFilter
	if !bindQuery(c, &filter) {
		return
	}
	list, err := models.ListNotifications(c.Request.Context(), filter)
	if err != nil {
		respondError(c, "listNotifications", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func markNotificationRead(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	notification, err := models.MarkNotificationRead(c.Request.Context(), id)
	if err != nil {
		respondError(c, "markNotificationRead", err)
		return
	}
	c.JSON(http.StatusOK, notification)
}
