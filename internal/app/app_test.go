package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/product-catalog/internal/domain/auth"
	"github.com/xenking/product-catalog/internal/domain/product"
	"github.com/xenking/product-catalog/internal/storage/memory"
	"github.com/xenking/product-catalog/pkg/health"
)

type noopTelemetry struct{}

func (noopTelemetry) TracerProvider() trace.TracerProvider { return tracenoop.NewTracerProvider() }
func (noopTelemetry) MeterProvider() metric.MeterProvider  { return metricnoop.NewMeterProvider() }

type staticTokens map[string]auth.TokenInfo

func (s staticTokens) FindByHash(_ context.Context, hash string) (*auth.TokenInfo, error) {
	info, ok := s[hash]
	if !ok {
		return nil, auth.ErrUnauthenticated
	}
	return &info, nil
}

func newTestHandler(t *testing.T, cfg *Config) (http.Handler, *health.Health) {
	t.Helper()

	svc, err := product.NewService(memory.NewProductRepository(), memory.NewBlobStore(), product.ServiceConfig{
		MaxImageBytes:  cfg.Upload.MaxBytes,
		TracerProvider: tracenoop.NewTracerProvider(),
		MeterProvider:  metricnoop.NewMeterProvider(),
	})
	require.NoError(t, err)

	hash := auth.HashToken("secret", []byte(cfg.TokenPepper))
	h := health.New()
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return NewHTTPHandler(ctx, HTTPDeps{
		Config:    cfg,
		Products:  svc,
		Tokens:    staticTokens{hash: {ID: "t1", UserID: 1, TokenHash: hash}},
		Health:    h,
		Telemetry: noopTelemetry{},
	}), h
}

func testConfig() *Config {
	return &Config{
		TokenPepper: "pepper",
		Upload:      UploadConfig{MaxBytes: 1 << 20},
		RateLimit:   RateLimitConfig{Max: 100, Window: time.Minute},
		CORS:        CORSConfig{Origins: []string{"*"}},
	}
}

func TestHTTPHandler_Health(t *testing.T) {
	srv, h := newTestHandler(t, testConfig())

	for _, path := range []string{"/livez", "/readyz"} {
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	}

	h.SetReady(false)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHTTPHandler_ProductRoutes(t *testing.T) {
	srv, _ := newTestHandler(t, testConfig())

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/products", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/products",
		strings.NewReader(`{"name":"Widget","description":"A widget","price":5}`))
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "http://shop.example.com")
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "100", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestHTTPHandler_RateLimitedPerToken(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Max = 1
	srv, _ := newTestHandler(t, cfg)

	get := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		req.Header.Set("Authorization", "Bearer secret")
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusOK, get())
	assert.Equal(t, http.StatusTooManyRequests, get())
}

func TestNewBlobStore(t *testing.T) {
	h := health.New()

	fs, err := newBlobStore(StorageConfig{Driver: StorageFilesystem, Root: t.TempDir()}, nil, h)
	require.NoError(t, err)
	assert.NotNil(t, fs)

	mem, err := newBlobStore(StorageConfig{Driver: StorageMemory}, nil, h)
	require.NoError(t, err)
	assert.IsType(t, &memory.BlobStore{}, mem)

	_, err = newBlobStore(StorageConfig{Driver: "s3"}, nil, h)
	assert.Error(t, err)
}

func TestHTTPHandler_BogusTokensShareAddressLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Max = 2
	srv, _ := newTestHandler(t, cfg)

	limited := 0
	for i := range 50 {
		req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		req.RemoteAddr = "198.51.100.7:40000"
		req.Header.Set("Authorization", "Bearer bogus-"+strconv.Itoa(i))
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		if w.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 48, limited)
}
