package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func get(engine *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	return w
}

func TestRouterMountsUnderVersionedPrefix(t *testing.T) {
	engine := gin.New()

	NewRouter(engine).
		Register(RegistrarFunc(func(api *gin.RouterGroup) {
			api.GET("/ping", func(c *gin.Context) {
				c.String(http.StatusOK, "pong")
			})
		})).
		Setup()

	w := get(engine, "/api/v1/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())

	// Nothing mounted at the bare path
	assert.Equal(t, http.StatusNotFound, get(engine, "/ping").Code)
}

func TestRouterWithAPIVersion(t *testing.T) {
	engine := gin.New()

	NewRouter(engine, WithAPIVersion("v2")).
		Register(RegistrarFunc(func(api *gin.RouterGroup) {
			api.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
		})).
		Setup()

	assert.Equal(t, http.StatusOK, get(engine, "/api/v2/ping").Code)
	assert.Equal(t, http.StatusNotFound, get(engine, "/api/v1/ping").Code)
}

func TestRouterMultipleRegistrars(t *testing.T) {
	engine := gin.New()

	reconRoutes := RegistrarFunc(func(api *gin.RouterGroup) {
		api.GET("/reconciliation/runs", func(c *gin.Context) {
			c.String(http.StatusOK, "runs")
		})
	})
	riskRoutes := RegistrarFunc(func(api *gin.RouterGroup) {
		api.GET("/risk/scores", func(c *gin.Context) {
			c.String(http.StatusOK, "scores")
		})
	})

	NewRouter(engine).Register(reconRoutes).Register(riskRoutes).Setup()

	assert.Equal(t, "runs", get(engine, "/api/v1/reconciliation/runs").Body.String())
	assert.Equal(t, "scores", get(engine, "/api/v1/risk/scores").Body.String())
}

func TestSetupWithoutRegistrars(t *testing.T) {
	engine := gin.New()

	assert.NotPanics(t, func() {
		NewRouter(engine).Setup()
	})
}
