package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *handlers) clearTestData(c *gin.Context) {
	res, err := h.svc.Maintenance.ClearTestData(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) dedupeScreenshots(c *gin.Context) {
	res, err := h.svc.Maintenance.DedupeScreenshotReviews(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) removeLastScreenshot(c *gin.Context) {
	removed, err := h.svc.Maintenance.RemoveLatestScreenshotReview(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// verifyData reports record counts and the most recent entries.
func (h *handlers) verifyData(c *gin.Context) {
	stats, err := h.svc.Maintenance.Stats(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
