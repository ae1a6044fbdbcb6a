package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"clipper_app_echo/internal/models"
	"clipper_app_echo/internal/services"
)

// clipURLCacheTTL keeps cached links comfortably inside the presign TTL so a
// cached URL never outlives its signature.
const clipURLCacheTTL = 50 * time.Minute

// ClipHandler serves the user's generated clips and their playback URLs.
type ClipHandler struct {
	db     *gorm.DB
	cache  *services.RedisCache
	signer services.ObjectURLSigner
}

func NewClipHandler(db *gorm.DB, cache *services.RedisCache, signer services.ObjectURLSigner) *ClipHandler {
	return &ClipHandler{db: db, cache: cache, signer: signer}
}

// ListClips returns the user's clips, newest first.
func (h *ClipHandler) ListClips(c echo.Context) error {
	user, err := currentUser(c, h.db)
	if err != nil {
		return err
	}

	var clips []models.Clip
	if err := h.db.WithContext(c.Request().Context()).
		Where("user_id = ?", user.ID).
		Order("created_at desc").
		Find(&clips).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch clips")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"clips": clips})
}

// ClipURL returns a time-boxed playback URL for one of the user's clips.
func (h *ClipHandler) ClipURL(c echo.Context) error {
	user, err := currentUser(c, h.db)
	if err != nil {
		return err
	}

	clipID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid clip ID")
	}
	ctx := c.Request().Context()

	var clip models.Clip
	if err := h.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", clipID, user.ID).
		First(&clip).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Clip not found")
	}

	if h.signer == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Storage not configured")
	}

	presign := func() (string, error) {
		return h.signer.PresignClipURL(ctx, clip.S3Key)
	}

	var url string
	if h.cache != nil {
		url, err = services.GetOrSet(h.cache, ctx, fmt.Sprintf("clip-url:%d", clip.ID), clipURLCacheTTL, presign)
	} else {
		url, err = presign()
	}
	if err != nil {
		c.Logger().Error(err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate play URL")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"url":     url,
	})
}
