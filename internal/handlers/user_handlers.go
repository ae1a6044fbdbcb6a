package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// UserHandler serves the authenticated user's own profile.
type UserHandler struct {
	db *gorm.DB
}

func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{db: db}
}

// Me returns the current user, including the credit balance.
func (h *UserHandler) Me(c echo.Context) error {
	user, err := currentUser(c, h.db)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}
