package handlers

import (
	"net/http"
	"path"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"clipper_app_echo/internal/models"
	"clipper_app_echo/internal/services"
)

// VideoHandler records uploads and hands them to the processing pipeline.
type VideoHandler struct {
	db        *gorm.DB
	publisher services.VideoEventPublisher
}

func NewVideoHandler(db *gorm.DB, publisher services.VideoEventPublisher) *VideoHandler {
	return &VideoHandler{db: db, publisher: publisher}
}

// ProcessVideo queues an uploaded object for clip generation. The pipeline
// trigger is fire-and-forget; this endpoint succeeds once the upload row is
// recorded.
func (h *VideoHandler) ProcessVideo(c echo.Context) error {
	user, err := currentUser(c, h.db)
	if err != nil {
		return err
	}

	var req ProcessVideoRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}
	if req.S3Key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing s3_key")
	}

	filename := req.Filename
	if filename == "" {
		filename = path.Base(req.S3Key)
	}

	upload := models.Upload{
		UserID:   user.ID,
		S3Key:    req.S3Key,
		Filename: filename,
		Status:   models.UploadStatusQueued,
	}
	if err := h.db.WithContext(c.Request().Context()).Create(&upload).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to queue upload")
	}

	if h.publisher != nil {
		h.publisher.PublishProcessVideo(services.ProcessVideoEvent{
			UploadID: upload.ID,
			UserID:   user.ID,
			S3Key:    upload.S3Key,
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":        true,
		"upload_id": upload.ID,
	})
}

// ListUploads returns the user's upload queue, newest first.
func (h *VideoHandler) ListUploads(c echo.Context) error {
	user, err := currentUser(c, h.db)
	if err != nil {
		return err
	}

	var uploads []models.Upload
	if err := h.db.WithContext(c.Request().Context()).
		Where("user_id = ?", user.ID).
		Order("created_at desc").
		Find(&uploads).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch uploads")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"uploads": uploads})
}
