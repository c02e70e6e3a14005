package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("Title and URL are required"), http.StatusBadRequest},
		{"conflict", Conflict("Tag already exists"), http.StatusConflict},
		{"not found", NotFound("Link not found"), http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("load link: %w", NotFound("Link not found")), http.StatusNotFound},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Status(tt.err))
		})
	}
}

func TestRespondHidesInternalErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	resp := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(resp)
	Respond(c, errors.New("UNIQUE constraint failed: links.url"), "Failed to create link")

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.JSONEq(t, `{"error":"Failed to create link"}`, resp.Body.String())
}

func TestRespondUsesKnownMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)

	resp := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(resp)
	Respond(c, fmt.Errorf("attach: %w", Conflict("Tag already added to this link")), "Failed to add tag")

	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.JSONEq(t, `{"error":"Tag already added to this link"}`, resp.Body.String())
}
