package metadata

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Handler serves metadata lookups for the dashboard's add-link form
type Handler struct {
	fetcher *Fetcher
}

// NewHandler creates a new metadata handler
func NewHandler(fetcher *Fetcher) *Handler {
	return &Handler{fetcher: fetcher}
}

// Get returns the metadata of the page at ?url=
// @Summary Fetch page metadata
// @Description Unreachable pages yield the URL as title and no image
// @Tags metadata
// @Produce json
// @Param url query string true "Page URL"
// @Success 200 {object} PageMetadata
// @Failure 400 {object} map[string]string "url is required"
// @Security BearerAuth
// @Router /metadata [get]
func (h *Handler) Get(c *gin.Context) {
	rawURL := strings.TrimSpace(c.Query("url"))
	if rawURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	c.JSON(http.StatusOK, h.fetcher.Fetch(c.Request.Context(), rawURL))
}

// RegisterRoutes registers metadata routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/metadata", h.Get)
}
