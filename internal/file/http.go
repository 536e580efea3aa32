package file

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nbatyrov/boxstore/internal/batch"
	"github.com/nbatyrov/boxstore/internal/bucket"
	"github.com/nbatyrov/boxstore/internal/identity"
	"github.com/nbatyrov/boxstore/internal/metrics"
	"github.com/nbatyrov/boxstore/internal/quota"
)

// RegisterRoutes mounts file operations under the provided router group.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	group.POST("/buckets/:bucketID/files", handler.uploadFile)
	group.GET("/buckets/:bucketID/files", handler.listFiles)
	group.GET("/buckets/:bucketID/files/:fileID/download", handler.downloadFile)
	group.PATCH("/buckets/:bucketID/files/:fileID", handler.renameFile)
	group.DELETE("/buckets/:bucketID/files/:fileID", handler.deleteFile)
	group.POST("/buckets/:bucketID/files/:fileID/publish", handler.setVisibility(true))
	group.POST("/buckets/:bucketID/files/:fileID/unpublish", handler.setVisibility(false))
	group.GET("/buckets/:bucketID/files/:fileID/share-link", handler.shareLink)
	group.POST("/buckets/:bucketID/files/batch-delete", handler.batchDelete)
}

type httpHandler struct {
	service *Service
}

func (h *httpHandler) uploadFile(c *gin.Context) {
	_, b, ok := h.requireBucket(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file payload"})
		return
	}
	defer src.Close()

	part := UploadPart{
		Filename:    fileHeader.Filename,
		ContentType: contentTypeOf(fileHeader.Header.Get("Content-Type")),
		Size:        fileHeader.Size,
		Content:     src,
	}
	makePublic := c.Query("public") == "true"

	entry, err := h.service.Upload(c.Request.Context(), b, part, makePublic)
	if err != nil {
		var uploadErr *UploadError
		switch {
		case errors.Is(err, quota.ErrMemoryQuotaExceeded):
			c.JSON(http.StatusForbidden, gin.H{"error": "storage quota exceeded"})
		case errors.Is(err, quota.ErrAPIQuotaExceeded):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "api call quota exceeded"})
		case errors.Is(err, quota.ErrStatsNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "usage stats not found"})
		case errors.As(err, &uploadErr):
			c.JSON(http.StatusBadGateway, gin.H{"error": "upload stream failed"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to upload file"})
		}
		return
	}

	metrics.UploadsTotal.Inc()
	metrics.UploadedBytes.Add(float64(entry.Size))
	c.JSON(http.StatusCreated, entry)
}

func (h *httpHandler) listFiles(c *gin.Context) {
	ownerID, b, ok := h.requireBucket(c)
	if !ok {
		return
	}

	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	entries, err := h.service.List(c.Request.Context(), Query{OwnerID: ownerID, BucketID: b.ID}, offset, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list files"})
		return
	}

	total, err := h.service.Count(c.Request.Context(), Query{OwnerID: ownerID, BucketID: b.ID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count files"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"files": entries, "total": total})
}

func (h *httpHandler) downloadFile(c *gin.Context) {
	_, entry, ok := h.requireFile(c)
	if !ok {
		return
	}

	reader, contentEncoding, err := h.service.Download(c.Request.Context(), entry, c.GetHeader("Accept-Encoding"))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to open download stream"})
		return
	}
	defer reader.Close()

	c.Header("Content-Type", entry.MimeType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", entry.Name))
	if contentEncoding != "" {
		c.Header("Content-Encoding", contentEncoding)
	}

	if _, err := io.Copy(c.Writer, reader); err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	metrics.DownloadsTotal.Inc()
}

type renameRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *httpHandler) renameFile(c *gin.Context) {
	_, entry, ok := h.requireFile(c)
	if !ok {
		return
	}

	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.Rename(c.Request.Context(), entry, req.Name); err != nil {
		switch {
		case errors.Is(err, ErrFileNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		case errors.Is(err, quota.ErrStatsNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "usage stats not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rename file"})
		}
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *httpHandler) deleteFile(c *gin.Context) {
	_, entry, ok := h.requireFile(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), entry); err != nil {
		if errors.Is(err, ErrFileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete file"})
		return
	}

	metrics.DeletesTotal.Inc()
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) setVisibility(public bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, entry, ok := h.requireFile(c)
		if !ok {
			return
		}

		if err := h.service.SetVisibility(c.Request.Context(), entry, public); err != nil {
			switch {
			case errors.Is(err, quota.ErrAPIQuotaExceeded):
				c.JSON(http.StatusTooManyRequests, gin.H{"error": "api call quota exceeded"})
			case errors.Is(err, quota.ErrStatsNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "usage stats not found"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to change visibility"})
			}
			return
		}

		c.Status(http.StatusNoContent)
	}
}

const defaultShareLinkTTL = 15 * time.Minute

func (h *httpHandler) shareLink(c *gin.Context) {
	_, entry, ok := h.requireFile(c)
	if !ok {
		return
	}

	ttl := defaultShareLinkTTL
	if raw := c.Query("ttl"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ttl"})
			return
		}
		ttl = parsed
	}

	link, err := h.service.ShareLink(c.Request.Context(), entry, ttl)
	if err != nil {
		switch {
		case errors.Is(err, quota.ErrAPIQuotaExceeded):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "api call quota exceeded"})
		case errors.Is(err, quota.ErrStatsNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "usage stats not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mint share link"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": link, "expires": time.Now().Add(ttl)})
}

type batchDeleteRequest struct {
	Refs     []string `json:"refs"`
	FailFast bool     `json:"fail_fast"`
}

func (h *httpHandler) batchDelete(c *gin.Context) {
	ownerID, b, ok := h.requireBucket(c)
	if !ok {
		return
	}

	var req batchDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	policy := batch.CollectAndContinue
	if req.FailFast {
		policy = batch.FailFast
	}

	deleted, err := h.service.DeleteMany(c.Request.Context(), ownerID, b.ID, req.Refs, policy)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "batch delete failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (h *httpHandler) requireBucket(c *gin.Context) (uuid.UUID, bucket.Entry, bool) {
	ownerID, ok := identity.Owner(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return uuid.Nil, bucket.Entry{}, false
	}

	b, err := h.service.LookupBucket(c.Request.Context(), c.Param("bucketID"))
	if err != nil || b.OwnerID != ownerID {
		if err == nil || errors.Is(err, bucket.ErrBucketNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "bucket not found"})
			return uuid.Nil, bucket.Entry{}, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch bucket"})
		return uuid.Nil, bucket.Entry{}, false
	}
	return ownerID, b, true
}

func (h *httpHandler) requireFile(c *gin.Context) (uuid.UUID, Entry, bool) {
	ownerID, b, ok := h.requireBucket(c)
	if !ok {
		return uuid.Nil, Entry{}, false
	}

	entry, err := h.service.Get(c.Request.Context(), c.Param("fileID"), &ownerID)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return uuid.Nil, Entry{}, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch file"})
		return uuid.Nil, Entry{}, false
	}
	// A file is only addressable under the bucket that holds it.
	if entry.BucketID != b.ID {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return uuid.Nil, Entry{}, false
	}
	return ownerID, entry, true
}

func contentTypeOf(declared string) string {
	if declared == "" {
		return "application/octet-stream"
	}
	return declared
}
