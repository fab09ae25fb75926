package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(cfg Config, method, origin string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(cfg))
	r.Any("/timetable", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(method, "/timetable", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORSAllowedOrigin(t *testing.T) {
	cfg := Config{AllowedOrigins: []string{"https://portal.school.test/"}, ExposeHeaders: []string{"Content-Disposition"}}

	w := serve(cfg, http.MethodGet, "https://portal.school.test")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://portal.school.test", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "Content-Disposition", w.Header().Get("Access-Control-Expose-Headers"))

	w = serve(cfg, http.MethodGet, "https://evil.test")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	w := serve(Config{MaxAge: 10 * time.Minute}, http.MethodOptions, "https://kiosk.school.test")
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://kiosk.school.test", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)
	assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
}

func TestCORSAnyOriginWithoutHeader(t *testing.T) {
	w := serve(Config{}, http.MethodGet, "")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
