package tags

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mypocket/mypocket/pkg/mypocket/apperr"
	"github.com/mypocket/mypocket/pkg/mypocket/auth"
)

// Handler handles tag-related requests
type Handler struct {
	registry *Registry
}

// NewHandler creates a new tags handler
func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

// TagRequest is the body of create and rename
type TagRequest struct {
	Label string `json:"label"`
}

// List returns the user's tags with link counts
// @Summary List tags
// @Description List the user's tags with the number of links carrying each
// @Tags tags
// @Produce json
// @Param q query string false "Label prefix"
// @Success 200 {array} TagWithCount
// @Security BearerAuth
// @Router /tags [get]
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	tags, err := h.registry.ListWithCounts(c.Request.Context(), userID, c.Query("q"))
	if err != nil {
		apperr.Respond(c, err, "Failed to fetch tags")
		return
	}

	c.JSON(http.StatusOK, tags)
}

// Create creates a tag
// @Summary Create a tag
// @Tags tags
// @Accept json
// @Produce json
// @Param request body TagRequest true "Tag label"
// @Success 201 {object} bookmarks.Tag
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 409 {object} map[string]string "Tag already exists"
// @Security BearerAuth
// @Router /tags [post]
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req TagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tag, err := h.registry.Create(c.Request.Context(), userID, req.Label)
	if err != nil {
		apperr.Respond(c, err, "Failed to create tag")
		return
	}

	c.JSON(http.StatusCreated, tag)
}

// Lookup finds a tag by label, ignoring case
// @Summary Find a tag by label
// @Tags tags
// @Produce json
// @Param label query string true "Tag label"
// @Success 200 {object} bookmarks.Tag
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 404 {object} map[string]string "Tag not found"
// @Security BearerAuth
// @Router /tags/lookup [get]
func (h *Handler) Lookup(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	tag, err := h.registry.GetByLabel(c.Request.Context(), userID, c.Query("label"))
	if err != nil {
		apperr.Respond(c, err, "Failed to fetch tag")
		return
	}
	if tag == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tag not found"})
		return
	}

	c.JSON(http.StatusOK, tag)
}

// Get returns a single tag
// @Summary Get a tag
// @Tags tags
// @Produce json
// @Param id path string true "Tag ID"
// @Success 200 {object} bookmarks.Tag
// @Failure 404 {object} map[string]string "Tag not found"
// @Security BearerAuth
// @Router /tags/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	tag, err := h.registry.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		apperr.Respond(c, err, "Failed to fetch tag")
		return
	}

	c.JSON(http.StatusOK, tag)
}

// Rename changes a tag's label
// @Summary Rename a tag
// @Tags tags
// @Accept json
// @Produce json
// @Param id path string true "Tag ID"
// @Param request body TagRequest true "New label"
// @Success 200 {object} bookmarks.Tag
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 404 {object} map[string]string "Tag not found"
// @Failure 409 {object} map[string]string "Tag already exists"
// @Security BearerAuth
// @Router /tags/{id} [put]
func (h *Handler) Rename(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req TagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tag, err := h.registry.Rename(c.Request.Context(), userID, c.Param("id"), req.Label)
	if err != nil {
		apperr.Respond(c, err, "Failed to rename tag")
		return
	}

	c.JSON(http.StatusOK, tag)
}

// Delete deletes a tag and its associations
// @Summary Delete a tag
// @Tags tags
// @Produce json
// @Param id path string true "Tag ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string "Tag not found"
// @Security BearerAuth
// @Router /tags/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	if err := h.registry.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		apperr.Respond(c, err, "Failed to delete tag")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Tag deleted"})
}

// Cleanup removes tags no link uses
// @Summary Remove unused tags
// @Tags tags
// @Produce json
// @Success 200 {object} map[string]int
// @Security BearerAuth
// @Router /tags/cleanup [post]
func (h *Handler) Cleanup(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	removed, err := h.registry.RemoveOrphaned(c.Request.Context(), userID)
	if err != nil {
		apperr.Respond(c, err, "Failed to clean up tags")
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// RegisterRoutes registers tag routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/tags", h.List)
	rg.POST("/tags", h.Create)
	rg.GET("/tags/lookup", h.Lookup)
	rg.POST("/tags/cleanup", h.Cleanup)
	rg.GET("/tags/:id", h.Get)
	rg.PUT("/tags/:id", h.Rename)
	rg.DELETE("/tags/:id", h.Delete)
}
