package controllers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fleetfox/fleetfox/internal/services"
	"github.com/fleetfox/fleetfox/pkg/domain"
)

const maxPhotoSize = 25 * 1024 * 1024 // 25 MB

// allowedImageTypes is the set of MIME types accepted for slot photos.
// http.DetectContentType covers JPEG, PNG, and GIF via magic-byte sniffing;
// WebP needs its own check because the WHATWG sniff spec omits it.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WEBP"
}

func allowedImageMIME(data []byte) (string, bool) {
	if isWebP(data) {
		return "image/webp", true
	}
	mime := http.DetectContentType(data)
	if allowedImageTypes[mime] {
		return mime, true
	}
	return "", false
}

type uploadImageController struct{ svc services.SessionService }

func NewUploadImageController(svc services.SessionService) *uploadImageController {
	return &uploadImageController{svc: svc}
}

func (h *uploadImageController) Handle(c *gin.Context) {
	slot := domain.PhotoSlot(c.Param("slot"))
	if !slot.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown photo slot"})
		return
	}

	if err := c.Request.ParseMultipartForm(maxPhotoSize); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to parse form"})
		return
	}
	file, _, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxPhotoSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read image"})
		return
	}
	if len(data) > maxPhotoSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
		return
	}
	mime, ok := allowedImageMIME(data)
	if !ok {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported image format"})
		return
	}

	foxID := c.PostForm("fox_id")
	if foxID == "" {
		foxID = c.Query("fox_id")
	}

	rec, err := h.svc.Upload(c.Request.Context(), c.Param("id"), slot, foxID, mime, data)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}
