package metrics

import (
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests *prometheus.CounterVec

	// UploadsTotal counts completed uploads.
	UploadsTotal prometheus.Counter
	// UploadedBytes counts bytes accepted through the upload pipeline.
	UploadedBytes prometheus.Counter
	// DownloadsTotal counts served downloads.
	DownloadsTotal prometheus.Counter
	// DeletesTotal counts deleted files.
	DeletesTotal prometheus.Counter

	initOnce sync.Once
)

// InitMetrics registers the service collectors. Safe to call more than once.
func InitMetrics() {
	initOnce.Do(func() {
		httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "boxstore_http_requests_total",
			Help: "HTTP requests by method, path and status.",
		}, []string{"method", "path", "status"})

		UploadsTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "boxstore_uploads_total",
			Help: "Completed file uploads.",
		})
		UploadedBytes = promauto.NewCounter(prometheus.CounterOpts{
			Name: "boxstore_uploaded_bytes_total",
			Help: "Bytes accepted through the upload pipeline.",
		})
		DownloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "boxstore_downloads_total",
			Help: "Served file downloads.",
		})
		DeletesTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "boxstore_deletes_total",
			Help: "Deleted files.",
		})
	})
}

// Middleware counts every request by route and status.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}
