package handler

import (
	"net/http"

	"clearlot/internal/middleware"
	"clearlot/pkg/cloudinary"
	"clearlot/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxUploadBytes caps chat attachments at 25 MB.
const maxUploadBytes = 25 << 20

type UploadHandler struct {
	blobs cloudinary.Client
	log   *zap.Logger
}

func NewUploadHandler(blobs cloudinary.Client) *UploadHandler {
	return &UploadHandler{blobs: blobs, log: logger.WithModule("uploads")}
}

// Upload stores a chat attachment and returns its URL for use in SendMessage.
func (h *UploadHandler) Upload(c *gin.Context) {
	userID := middleware.GetUserID(c)
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if header.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return
	}
	defer f.Close()

	result, err := h.blobs.UploadFile(c.Request.Context(), f, "chat", header.Filename)
	if err != nil {
		h.log.Error("upload failed", zap.Uint("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"url":       result.URL,
		"file_name": result.Name,
		"file_size": result.Size,
	})
}
