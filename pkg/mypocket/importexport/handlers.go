package importexport

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mypocket/mypocket/pkg/mypocket/apperr"
	"github.com/mypocket/mypocket/pkg/mypocket/auth"
)

// MaxImportSize caps an uploaded CSV file
const MaxImportSize = 10 << 20

// Handler handles import and export requests
type Handler struct {
	reconciler *Reconciler
}

// NewHandler creates a new import/export handler
func NewHandler(reconciler *Reconciler) *Handler {
	return &Handler{reconciler: reconciler}
}

// Import reads a CSV file, either as the raw request body or as the
// multipart field "file", and imports it.
// @Summary Import links from CSV
// @Description Rows whose URL is already saved are skipped. Tags are matched by label.
// @Tags import
// @Accept text/csv
// @Accept multipart/form-data
// @Produce json
// @Param file formData file false "CSV file"
// @Success 200 {object} Result
// @Failure 400 {object} map[string]string "Empty or unreadable file"
// @Security BearerAuth
// @Router /import [post]
func (h *Handler) Import(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	content, err := readUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.reconciler.Import(c.Request.Context(), userID, content)
	if err != nil {
		apperr.Respond(c, err, "Failed to import links")
		return
	}

	c.JSON(http.StatusOK, result)
}

func readUpload(c *gin.Context) (string, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxImportSize)

	var r io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, err := c.FormFile("file")
		if err != nil {
			return "", fmt.Errorf("file is required")
		}
		f, err := file.Open()
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return "", fmt.Errorf("file is empty")
	}
	return string(data), nil
}

// Export returns the user's links as CSV. With download=true the response
// is sent as an attachment.
// @Summary Export links as CSV
// @Tags import
// @Produce text/csv
// @Param download query bool false "Send as an attachment"
// @Success 200 {string} string "CSV with title, url, note and tags columns"
// @Security BearerAuth
// @Router /export [get]
func (h *Handler) Export(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	content, err := h.reconciler.Export(c.Request.Context(), userID)
	if err != nil {
		apperr.Respond(c, err, "Failed to export links")
		return
	}

	if c.Query("download") == "true" {
		filename := fmt.Sprintf("mypocket-%s.csv", time.Now().UTC().Format("2006-01-02"))
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	}
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(content))
}

// RegisterRoutes registers import/export routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/import", h.Import)
	rg.GET("/export", h.Export)
}
