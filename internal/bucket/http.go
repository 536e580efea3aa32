package bucket

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nbatyrov/boxstore/internal/batch"
	"github.com/nbatyrov/boxstore/internal/identity"
	"github.com/nbatyrov/boxstore/internal/quota"
)

// RegisterRoutes mounts bucket endpoints onto the router.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	group.POST("/buckets", handler.createBucket)
	group.GET("/buckets", handler.listBuckets)
	group.GET("/buckets/:bucketID", handler.getBucket)
	group.DELETE("/buckets/:bucketID", handler.deleteBucket)
	group.POST("/buckets/batch-delete", handler.batchDelete)
}

type httpHandler struct {
	service *Service
}

type createBucketRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *httpHandler) createBucket(c *gin.Context) {
	ownerID, ok := identity.Owner(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req createBucketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := h.service.Create(c.Request.Context(), ownerID, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, ErrBucketNameExists):
			c.JSON(http.StatusConflict, gin.H{"error": "bucket name already exists"})
		case errors.Is(err, ErrBucketNameRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "bucket name required"})
		case errors.Is(err, quota.ErrAPIQuotaExceeded):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "api call quota exceeded"})
		case errors.Is(err, quota.ErrStatsNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "usage stats not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create bucket"})
		}
		return
	}

	c.JSON(http.StatusCreated, entry)
}

func (h *httpHandler) listBuckets(c *gin.Context) {
	ownerID, ok := identity.Owner(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	entries, err := h.service.List(c.Request.Context(), ownerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list buckets"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"buckets": entries})
}

func (h *httpHandler) getBucket(c *gin.Context) {
	ownerID, ok := identity.Owner(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	entry, err := h.service.Lookup(c.Request.Context(), c.Param("bucketID"))
	if err != nil || entry.OwnerID != ownerID {
		if err == nil || err == ErrBucketNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "bucket not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch bucket"})
		return
	}

	c.JSON(http.StatusOK, entry)
}

func (h *httpHandler) deleteBucket(c *gin.Context) {
	ownerID, ok := identity.Owner(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	entry, err := h.service.Lookup(c.Request.Context(), c.Param("bucketID"))
	if err != nil || entry.OwnerID != ownerID {
		if err == nil || err == ErrBucketNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "bucket not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch bucket"})
		return
	}

	if err := h.service.Delete(c.Request.Context(), entry); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete bucket"})
		return
	}

	c.Status(http.StatusNoContent)
}

type batchDeleteRequest struct {
	Refs     []string `json:"refs"`
	FailFast bool     `json:"fail_fast"`
}

func (h *httpHandler) batchDelete(c *gin.Context) {
	ownerID, ok := identity.Owner(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
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

	deleted, err := h.service.DeleteMany(c.Request.Context(), ownerID, req.Refs, policy)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "batch delete failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}
