package quota

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nbatyrov/boxstore/internal/identity"
)

// RegisterRoutes mounts usage endpoints onto the router.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	group.GET("/usage", handler.getUsage)
}

type httpHandler struct {
	service *Service
}

func (h *httpHandler) getUsage(c *gin.Context) {
	ownerID, ok := identity.Owner(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	stats, err := h.service.GetStats(c.Request.Context(), ownerID)
	if err != nil {
		if err == ErrStatsNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "usage stats not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch usage"})
		return
	}

	c.JSON(http.StatusOK, stats)
}
