package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/attachments"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
)

// AttachmentHandler manages file attachment endpoints.
type AttachmentHandler struct {
	manager    *attachments.Manager
	groupRepo  repositories.GroupRepository
	defaultTTL time.Duration
	audit      *telemetry.AuditEmitter
}

// NewAttachmentHandler constructs an AttachmentHandler.
func NewAttachmentHandler(manager *attachments.Manager, groupRepo repositories.GroupRepository, defaultTTL time.Duration, audit *telemetry.AuditEmitter) *AttachmentHandler {
	return &AttachmentHandler{
		manager:    manager,
		groupRepo:  groupRepo,
		defaultTTL: defaultTTL,
		audit:      audit,
	}
}

// ValidateUpload runs the policy pass without storing anything.
func (h *AttachmentHandler) ValidateUpload(c *gin.Context) {
	groupID, ok := pathInt(c, "group_id")
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	if !h.requireMember(c, groupID, userID) {
		return
	}

	var descriptor models.FileDescriptor
	if err := c.ShouldBindJSON(&descriptor); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.manager.Validate(c.Request.Context(), descriptor, groupID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Upload stores a file bound to an existing message. The request is
// multipart form data with a single "file" part.
func (h *AttachmentHandler) Upload(c *gin.Context) {
	groupID, messageID, ok := pathGroupMessage(c)
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	if !h.requireMember(c, groupID, userID) {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file part"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file part"})
		return
	}
	defer file.Close()

	descriptor := models.FileDescriptor{
		FileName:  fileHeader.Filename,
		SizeBytes: fileHeader.Size,
		MimeType:  fileHeader.Header.Get("Content-Type"),
	}

	att, err := h.manager.Upload(c.Request.Context(), descriptor, groupID, messageID, userID, file)
	if err != nil {
		if attachments.IsPartialWrite(err) {
			// The object exists but the message has no attachment row. This
			// window is reported, not silently retried.
			h.emitAudit(c, "ERROR", "attachment_upload", "metadata registration failed after object write")
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "attachment metadata not recorded",
				"partial": true,
			})
			return
		}
		h.emitAudit(c, "ERROR", "attachment_upload", "upload refused")
		respondError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "attachment_upload", "attachment stored")
	c.JSON(http.StatusCreated, att)
}

// DownloadURL mints a fresh signed URL for the attachment.
func (h *AttachmentHandler) DownloadURL(c *gin.Context) {
	attachmentID, ok := pathInt(c, "attachment_id")
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	ttl := h.defaultTTL
	if raw := c.Query("ttl"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ttl"})
			return
		}
		ttl = time.Duration(seconds) * time.Second
	}

	url, err := h.manager.DownloadURL(c.Request.Context(), attachmentID, userID, ttl)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "expires_in": int(ttl.Seconds())})
}

// ServeObject streams the object for a valid signed token. This route is
// capability-gated by the token itself, not by the auth middleware.
func (h *AttachmentHandler) ServeObject(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "missing token"})
		return
	}

	att, rc, err := h.manager.Serve(c.Request.Context(), token)
	if err != nil {
		respondError(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Disposition", `attachment; filename="`+att.FileName+`"`)
	c.DataFromReader(http.StatusOK, att.SizeBytes, att.MimeType, rc, nil)
}

func (h *AttachmentHandler) requireMember(c *gin.Context, groupID, userID int) bool {
	member, err := h.groupRepo.IsMember(c.Request.Context(), groupID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "membership check failed"})
		return false
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
		return false
	}
	return true
}

func (h *AttachmentHandler) emitAudit(c *gin.Context, level, action, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, action, text, requestIDFromContext(c), userIDFromContext(c))
}
