package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func perform(handler gin.HandlerFunc, method, origin string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handler)
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(method, "/ping", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestAllowsConfiguredOrigin(t *testing.T) {
	handler := New(Options{Origins: []string{"https://app.example.com/"}})

	resp := perform(handler, http.MethodGet, "https://app.example.com")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "https://app.example.com", resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestOmitsHeaderForUnknownOrigin(t *testing.T) {
	handler := New(Options{Origins: []string{"https://app.example.com"}})

	resp := perform(handler, http.MethodGet, "https://evil.example.com")
	assert.Empty(t, resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestEmptyOriginListAllowsAny(t *testing.T) {
	handler := New(Options{})

	resp := perform(handler, http.MethodGet, "https://anywhere.example.com")
	assert.Equal(t, "https://anywhere.example.com", resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestPreflightShortCircuits(t *testing.T) {
	handler := New(Options{Origins: []string{"https://app.example.com"}})

	resp := perform(handler, http.MethodOptions, "https://app.example.com")
	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Empty(t, resp.Body.String())
}

func TestConfiguredMethodsAndHeaders(t *testing.T) {
	handler := New(Options{
		Methods: []string{http.MethodGet, http.MethodPost},
		Headers: []string{"Authorization"},
	})

	resp := perform(handler, http.MethodGet, "https://app.example.com")
	assert.Equal(t, "GET, POST", resp.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Authorization", resp.Header().Get("Access-Control-Allow-Headers"))
}
