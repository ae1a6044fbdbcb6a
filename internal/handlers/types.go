package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"clipper_app_echo/internal/models"
)

// CheckoutRequest is the body of POST /api/checkout.
type CheckoutRequest struct {
	PriceID string `json:"price_id"`
}

// ProcessVideoRequest is the body of POST /api/process-video.
type ProcessVideoRequest struct {
	S3Key    string `json:"s3_key"`
	Filename string `json:"filename,omitempty"`
}

func getStringFromContext(c echo.Context, key string) string {
	if val := c.Get(key); val != nil {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return ""
}

// currentUser resolves the authenticated request to a local user row,
// creating it on first sight of the Firebase UID.
func currentUser(c echo.Context, db *gorm.DB) (*models.User, error) {
	uid := getStringFromContext(c, "userUID")
	if uid == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Missing user session")
	}

	var user models.User
	err := db.Where(&models.User{FirebaseUID: uid}).
		Attrs(&models.User{
			Email: getStringFromContext(c, "userEmail"),
			Name:  getStringFromContext(c, "userName"),
		}).
		FirstOrCreate(&user).Error
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "Failed to load user")
	}
	return &user, nil
}
