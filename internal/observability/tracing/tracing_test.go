package tracing

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSafeAttributesDropsPersonalData(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("package_id", "1"),
		attribute.String("phone", "+201000000000"),
		attribute.String("token", "secret"),
	)
	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("package_id"), attrs[0].Key)
}

func TestSafeErrorTrimsMultiline(t *testing.T) {
	err := SafeError(errors.New("gateway failed\nbody: {...}"))
	assert.EqualError(t, err, "gateway failed")
	assert.Nil(t, SafeError(nil))
}

func TestGinMiddlewareNamesSpanAfterRoute(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/bills/:id", func(c *gin.Context) {
		c.Set("bill_id", c.Param("id"))
		_ = c.Error(errors.New("boom\ndetails"))
		c.Status(http.StatusInternalServerError)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bills/42", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "GET /bills/:id", span.Name())

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "42", attrs["elmcorner.bill_id"].AsString())
	assert.Equal(t, int64(500), attrs["http.status_code"].AsInt64())
	require.Len(t, span.Events(), 1)
}
