package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		allowedOrigins []string
		requestOrigin  string
		wantAllowed    bool
	}{
		{
			name:           "Allowed Origin",
			allowedOrigins: []string{"http://localhost:5173"},
			requestOrigin:  "http://localhost:5173",
			wantAllowed:    true,
		},
		{
			name:           "Disallowed Origin",
			allowedOrigins: []string{"http://localhost:5173"},
			requestOrigin:  "http://evil.com",
			wantAllowed:    false,
		},
		{
			name:           "Wildcard Origin",
			allowedOrigins: []string{"*"},
			requestOrigin:  "http://anywhere.com",
			wantAllowed:    true,
		},
		{
			name:           "Multiple Allowed Origins",
			allowedOrigins: []string{"http://localhost:5173", "http://backtest.example.com"},
			requestOrigin:  "http://backtest.example.com",
			wantAllowed:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			s := &Server{
				router:      router,
				corsOrigins: tt.allowedOrigins,
			}
			router.Use(s.corsMiddleware())

			router.GET("/ping", func(c *gin.Context) {
				c.String(200, "pong")
			})

			req, _ := http.NewRequest("GET", "/ping", nil)
			if tt.requestOrigin != "" {
				req.Header.Set("Origin", tt.requestOrigin)
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, 200, w.Code)

			allowOrigin := w.Header().Get("Access-Control-Allow-Origin")
			if tt.wantAllowed {
				assert.Equal(t, tt.requestOrigin, allowOrigin)
			} else {
				assert.Empty(t, allowOrigin)
			}
		})
	}
}

func TestCORSMiddleware_PreflightShortCircuit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	s := &Server{
		router:      router,
		corsOrigins: []string{"http://localhost:5173"},
	}
	router.Use(s.corsMiddleware())
	router.POST("/api/backtest", func(c *gin.Context) {
		c.String(200, "should not reach handler on preflight")
	})

	req, _ := http.NewRequest("OPTIONS", "/api/backtest", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}
