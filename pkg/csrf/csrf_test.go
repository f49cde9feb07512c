package csrf

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"warbler/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRouter(cfg config.CSRFConfig, expected string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Gate(cfg, func(*gin.Context) string { return expected }))
	ok := func(c *gin.Context) { c.String(http.StatusOK, "ok") }
	r.GET("/read", ok)
	r.POST("/write", ok)
	return r
}

func TestGate(t *testing.T) {
	cfg := config.CSRFConfig{Enabled: true, HeaderName: "X-CSRF-Token", FormField: "csrf_token"}

	tests := []struct {
		name     string
		method   string
		path     string
		expected string
		header   string
		form     string
		want     int
	}{
		{"safe method skips", http.MethodGet, "/read", "tok", "", "", http.StatusOK},
		{"header match", http.MethodPost, "/write", "tok", "tok", "", http.StatusOK},
		{"form match", http.MethodPost, "/write", "tok", "", "tok", http.StatusOK},
		{"missing token", http.MethodPost, "/write", "tok", "", "", http.StatusUnauthorized},
		{"wrong token", http.MethodPost, "/write", "tok", "other", "", http.StatusUnauthorized},
		{"no session", http.MethodPost, "/write", "", "", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(cfg, tt.expected)

			var req *http.Request
			if tt.form != "" {
				body := url.Values{"csrf_token": {tt.form}}.Encode()
				req = httptest.NewRequest(tt.method, tt.path, strings.NewReader(body))
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			} else {
				req = httptest.NewRequest(tt.method, tt.path, nil)
			}
			if tt.header != "" {
				req.Header.Set("X-CSRF-Token", tt.header)
			}

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.JSONEq(t, `{"code":401,"message":"Access unauthorized."}`, rec.Body.String())
			}
		})
	}
}

func TestGate_Disabled(t *testing.T) {
	r := newRouter(config.CSRFConfig{Enabled: false}, "")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/write", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("abc", "abc"))
	assert.False(t, Valid("abc", "abd"))
	assert.False(t, Valid("", ""))
	assert.False(t, Valid("abc", ""))
}
