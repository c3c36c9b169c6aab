package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedEngine(t *testing.T) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	engine := gin.New()
	engine.Use(GinMiddleware(zap.New(core)))
	return engine, logs
}

func perform(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	engine.ServeHTTP(rec, req)
	return rec
}

func TestGinMiddleware_LogsTransferSubmission(t *testing.T) {
	engine, logs := newObservedEngine(t)
	engine.POST("/api/v1/transfers", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	perform(engine, http.MethodPost, "/api/v1/transfers")

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "POST", fields["method"])
	assert.Equal(t, "/api/v1/transfers", fields["path"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
}

func TestGinMiddleware_ZoneRoutesCarryZoneID(t *testing.T) {
	engine, logs := newObservedEngine(t)
	engine.POST("/api/v1/zones/:id/status", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	perform(engine, http.MethodPost, "/api/v1/zones/zone-east/status")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "zone-east", entries[0].ContextMap()["zone_id"])
}

func TestGinMiddleware_RejectionLogsAtWarn(t *testing.T) {
	engine, logs := newObservedEngine(t)
	engine.POST("/api/v1/transfers", func(c *gin.Context) {
		c.Status(http.StatusConflict)
	})

	perform(engine, http.MethodPost, "/api/v1/transfers")

	entries := logs.FilterMessage("request rejected").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestGinMiddleware_ServerErrorLogsAtError(t *testing.T) {
	engine, logs := newObservedEngine(t)
	engine.GET("/api/v1/balances", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})

	perform(engine, http.MethodGet, "/api/v1/balances")

	entries := logs.FilterMessage("request failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
}

func TestGinMiddleware_SkipsProbes(t *testing.T) {
	engine, logs := newObservedEngine(t)
	engine.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	engine.GET("/readyz", func(c *gin.Context) { c.Status(http.StatusOK) })

	perform(engine, http.MethodGet, "/healthz")
	perform(engine, http.MethodGet, "/readyz")

	assert.Zero(t, logs.Len(), "probe traffic stays out of the access log")
}

func TestGinMiddleware_QueryStringLogged(t *testing.T) {
	engine, logs := newObservedEngine(t)
	engine.GET("/api/v1/incidents", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	perform(engine, http.MethodGet, "/api/v1/incidents?zone_id=zone-east&limit=10")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "zone_id=zone-east&limit=10", entries[0].ContextMap()["query"])
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	engine := gin.New()
	engine.Use(Recovery(zap.New(core)))
	engine.POST("/api/v1/transfers", func(c *gin.Context) {
		panic("posting exploded")
	})

	rec := perform(engine, http.MethodPost, "/api/v1/transfers")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	entries := logs.FilterMessage("panic recovered").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "posting exploded", entries[0].ContextMap()["error"])
}

func TestGetGinLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(GinMiddleware(zap.NewNop()))

	var fromContext *zap.Logger
	engine.GET("/api/v1/zones", func(c *gin.Context) {
		fromContext = GetGinLogger(c)
		c.Status(http.StatusOK)
	})

	perform(engine, http.MethodGet, "/api/v1/zones")
	assert.NotNil(t, fromContext)
}

func TestGetGinLogger_DefaultsToNop(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	assert.NotNil(t, GetGinLogger(c))
}
