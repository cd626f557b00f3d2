package tracing

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSafeAttributesDropsContent(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("provider.type", "azure"),
		attribute.String("reference_text", "hello world"),
	)
	require.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("provider.type"), attrs[0].Key)
}

func TestSafeErrorTruncates(t *testing.T) {
	assert.Nil(t, SafeError(nil))
	err := SafeError(errors.New(strings.Repeat("x", 1000)))
	assert.Len(t, err.Error(), maxErrorLength)
}

func TestClampRatio(t *testing.T) {
	assert.Equal(t, 0.0, clampRatio(-1))
	assert.Equal(t, 1.0, clampRatio(3))
	assert.Equal(t, 0.25, clampRatio(0.25))
}

func TestGinMiddlewareRecordsServerSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.New("provider down"))
		c.Status(http.StatusInternalServerError)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "HTTP GET /boom", spans[0].Name())
	assert.Len(t, spans[0].Events(), 1)
}

func TestWrapHTTPClientKeepsSettings(t *testing.T) {
	base := &http.Client{Timeout: 42}
	wrapped := WrapHTTPClient(base)
	assert.Equal(t, base.Timeout, wrapped.Timeout)
	assert.NotNil(t, wrapped.Transport)
	assert.Nil(t, base.Transport)
}

func TestGinMiddlewareTagsAssessmentTier(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.POST("/api/assessments/professional", func(c *gin.Context) {
		c.Set("provider_type", "azure")
		c.Status(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/assessments/professional", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "professional", attrs["assessment.tier"].AsString())
	assert.Equal(t, "azure", attrs["provider.type"].AsString())
}

func TestGatewayAttributesSkipsOtherRoutes(t *testing.T) {
	assert.Empty(t, gatewayAttributes("/api/redeem", ""))
	assert.Len(t, gatewayAttributes("/api/assessments", " "), 1)
}
