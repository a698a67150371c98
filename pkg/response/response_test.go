package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func perform(handler gin.HandlerFunc) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/t", handler)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/t", nil)
	router.ServeHTTP(w, req)
	return w
}

func TestSuccess(t *testing.T) {
	w := perform(func(c *gin.Context) {
		Success(c, "ok", gin.H{"value": 1})
	})

	require.Equal(t, http.StatusOK, w.Code)
	var body Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "ok", body.Message)
	assert.NotNil(t, body.Data)
}

func TestFailKeeps200(t *testing.T) {
	w := perform(func(c *gin.Context) {
		Fail(c, "business failure", nil)
	})

	require.Equal(t, http.StatusOK, w.Code)
	var body Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
}

func TestFailWithStatus(t *testing.T) {
	w := perform(func(c *gin.Context) {
		FailWithStatus(c, http.StatusBadRequest, "invalid", nil)
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
