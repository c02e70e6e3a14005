package links

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mypocket/mypocket/pkg/mypocket/apperr"
	"github.com/mypocket/mypocket/pkg/mypocket/auth"
	"github.com/mypocket/mypocket/pkg/mypocket/bookmarks"
	"github.com/mypocket/mypocket/pkg/mypocket/search"
)

// Handler handles link-related requests
type Handler struct {
	repo *Repository
}

// NewHandler creates a new links handler
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// CreateLinkRequest is the body of POST /links. The dashboard sends tag ids;
// the browser extension sends tag labels in Tags instead.
type CreateLinkRequest struct {
	Title  string   `json:"title"`
	URL    string   `json:"url"`
	Note   string   `json:"note"`
	Image  string   `json:"image"`
	TagIDs []string `json:"tag_ids"`
	Tags   []string `json:"tags"`
}

// UpdateLinkRequest is the body of PUT /links/:id. When Tags is present the
// link's tags are reconciled with it before the fields are written.
type UpdateLinkRequest struct {
	Title string           `json:"title"`
	URL   string           `json:"url"`
	Note  string           `json:"note"`
	Image string           `json:"image"`
	Tags  *[]bookmarks.Tag `json:"tags"`
}

// ReconcileTagsRequest is the tag list at the end of an edit session. New
// tags carry ids starting with "temp-".
type ReconcileTagsRequest struct {
	Tags []bookmarks.Tag `json:"tags"`
}

// List returns one page of the user's links. See search.ParseParams for the
// query parameters.
// @Summary List links
// @Description Search, sort and paginate the user's links
// @Tags links
// @Produce json
// @Param q query string false "Match title, URL or note"
// @Param tag query []string false "Tag ids, any match" collectionFormat(multi)
// @Param sort query string false "Sort order" Enums(newest, oldest, title-asc, title-desc)
// @Param page query int false "Page number"
// @Param per_page query int false "Links per page"
// @Success 200 {object} search.Page
// @Security BearerAuth
// @Router /links [get]
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	all, err := h.repo.List(c.Request.Context(), userID)
	if err != nil {
		apperr.Respond(c, err, "Failed to fetch links")
		return
	}

	params := search.ParseParams(c.Request.URL.Query())
	c.JSON(http.StatusOK, search.Paginate(all, params.Options()))
}

// Create saves a new link
// @Summary Save a link
// @Description Save a link tagged by id, or by label when tags is set
// @Tags links
// @Accept json
// @Produce json
// @Param request body CreateLinkRequest true "Link details"
// @Success 201 {object} bookmarks.Link
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 409 {object} map[string]string "Link already saved"
// @Security BearerAuth
// @Router /links [post]
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var (
		link *bookmarks.Link
		err  error
	)
	if req.Tags != nil {
		link, err = h.repo.Save(c.Request.Context(), userID, SaveInput{
			Title: req.Title,
			URL:   req.URL,
			Note:  req.Note,
			Tags:  req.Tags,
		})
	} else {
		link, err = h.repo.Create(c.Request.Context(), userID, CreateInput{
			Title:  req.Title,
			URL:    req.URL,
			Note:   req.Note,
			Image:  req.Image,
			TagIDs: req.TagIDs,
		})
	}
	if err != nil {
		apperr.Respond(c, err, "Failed to create link")
		return
	}

	c.JSON(http.StatusCreated, link)
}

// Get returns a single link
// @Summary Get a link
// @Tags links
// @Produce json
// @Param id path string true "Link ID"
// @Success 200 {object} bookmarks.Link
// @Failure 404 {object} map[string]string "Link not found"
// @Security BearerAuth
// @Router /links/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	link, err := h.repo.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		apperr.Respond(c, err, "Failed to fetch link")
		return
	}

	c.JSON(http.StatusOK, link)
}

// Update overwrites a link's fields and, when given, its tags
// @Summary Update a link
// @Description Overwrite a link's fields, reconciling its tags first when tags is set
// @Tags links
// @Accept json
// @Produce json
// @Param id path string true "Link ID"
// @Param request body UpdateLinkRequest true "Link details"
// @Success 200 {object} bookmarks.Link
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 404 {object} map[string]string "Link not found"
// @Security BearerAuth
// @Router /links/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req UpdateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	in := UpdateInput{ID: c.Param("id"), Title: req.Title, URL: req.URL, Note: req.Note, Image: req.Image}

	var (
		link *bookmarks.Link
		err  error
	)
	if req.Tags != nil {
		desired := *req.Tags
		if desired == nil {
			desired = []bookmarks.Tag{}
		}
		link, err = h.repo.Edit(c.Request.Context(), userID, in, desired)
	} else {
		link, err = h.repo.Update(c.Request.Context(), userID, in)
	}
	if err != nil {
		apperr.Respond(c, err, "Failed to update link")
		return
	}

	c.JSON(http.StatusOK, link)
}

// Delete deletes a link
// @Summary Delete a link
// @Description Delete a link and sweep the tags it left unused
// @Tags links
// @Produce json
// @Param id path string true "Link ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string "Link not found"
// @Security BearerAuth
// @Router /links/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	if err := h.repo.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		apperr.Respond(c, err, "Failed to delete link")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Link deleted"})
}

// ReconcileTags replaces a link's tags with the result of an edit session
// @Summary Apply a tag edit session
// @Description New tags carry ids starting with "temp-"
// @Tags links
// @Accept json
// @Produce json
// @Param id path string true "Link ID"
// @Param request body ReconcileTagsRequest true "Desired tags"
// @Success 200 {object} ReconcileResult
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 404 {object} map[string]string "Link not found"
// @Security BearerAuth
// @Router /links/{id}/tags [put]
func (h *Handler) ReconcileTags(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req ReconcileTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Tags == nil {
		req.Tags = []bookmarks.Tag{}
	}

	result, err := h.repo.ReconcileTags(c.Request.Context(), userID, c.Param("id"), req.Tags)
	if err != nil {
		apperr.Respond(c, err, "Failed to update tags")
		return
	}

	c.JSON(http.StatusOK, result)
}

// AddTag attaches a tag to a link
// @Summary Attach a tag
// @Tags links
// @Produce json
// @Param id path string true "Link ID"
// @Param tagId path string true "Tag ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string "Link or tag not found"
// @Failure 409 {object} map[string]string "Tag already added to this link"
// @Security BearerAuth
// @Router /links/{id}/tags/{tagId} [post]
func (h *Handler) AddTag(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	if err := h.repo.AddTag(c.Request.Context(), userID, c.Param("id"), c.Param("tagId")); err != nil {
		apperr.Respond(c, err, "Failed to add tag")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Tag added"})
}

// RemoveTag detaches a tag from a link
// @Summary Detach a tag
// @Tags links
// @Produce json
// @Param id path string true "Link ID"
// @Param tagId path string true "Tag ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string "Link not found"
// @Security BearerAuth
// @Router /links/{id}/tags/{tagId} [delete]
func (h *Handler) RemoveTag(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	if err := h.repo.RemoveTag(c.Request.Context(), userID, c.Param("id"), c.Param("tagId")); err != nil {
		apperr.Respond(c, err, "Failed to remove tag")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Tag removed"})
}

// ListByTag returns the links carrying a tag
// @Summary List a tag's links
// @Tags tags
// @Produce json
// @Param id path string true "Tag ID"
// @Success 200 {array} bookmarks.Link
// @Failure 404 {object} map[string]string "Tag not found"
// @Security BearerAuth
// @Router /tags/{id}/links [get]
func (h *Handler) ListByTag(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	links, err := h.repo.ListByTag(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		apperr.Respond(c, err, "Failed to fetch links")
		return
	}

	c.JSON(http.StatusOK, links)
}

// Search matches links in the database, newest first and unpaginated
// @Summary Search links
// @Description Match title, URL or note and keep links carrying any of the tags
// @Tags links
// @Produce json
// @Param q query string false "Text to match"
// @Param tag query []string false "Tag ids, any match" collectionFormat(multi)
// @Success 200 {array} bookmarks.Link
// @Security BearerAuth
// @Router /links/search [get]
func (h *Handler) Search(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	links, err := h.repo.Search(c.Request.Context(), userID, c.Query("q"), c.QueryArray("tag"))
	if err != nil {
		apperr.Respond(c, err, "Failed to search links")
		return
	}

	c.JSON(http.StatusOK, links)
}

// RegisterRoutes registers link routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/links", h.List)
	rg.POST("/links", h.Create)
	rg.GET("/links/search", h.Search)
	rg.GET("/links/:id", h.Get)
	rg.PUT("/links/:id", h.Update)
	rg.DELETE("/links/:id", h.Delete)
	rg.PUT("/links/:id/tags", h.ReconcileTags)
	rg.POST("/links/:id/tags/:tagId", h.AddTag)
	rg.DELETE("/links/:id/tags/:tagId", h.RemoveTag)
	rg.GET("/tags/:id/links", h.ListByTag)
}
