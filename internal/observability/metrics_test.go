package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHTTPMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(HTTPMetricsMiddleware())
	r.GET("/chats/:chat_id/messages", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/chats/:chat_id/messages", "204"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/chats/abc/messages", nil))
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/chats/:chat_id/messages", "204"))

	assert.Equal(t, before+1, after)
}

func TestSplitFullMethod(t *testing.T) {
	service, method := splitFullMethod("/grpc.health.v1.Health/Check")
	assert.Equal(t, "grpc.health.v1.Health", service)
	assert.Equal(t, "Check", method)

	service, method = splitFullMethod("bogus")
	assert.Equal(t, "unknown", service)
	assert.Equal(t, "unknown", method)
}

func TestModerationCounters(t *testing.T) {
	before := testutil.ToFloat64(moderationActionsTotal.WithLabelValues("temporary_kick"))
	IncModerationAction("temporary_kick")
	assert.Equal(t, before+1, testutil.ToFloat64(moderationActionsTotal.WithLabelValues("temporary_kick")))

	IncWSActive()
	IncWSActive()
	DecWSActive()
	assert.GreaterOrEqual(t, testutil.ToFloat64(wsActiveConnections), float64(1))
}
