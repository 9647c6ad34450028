package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apihandlers "github.com/anstrom/scanexport/internal/api/handlers"
	"github.com/anstrom/scanexport/internal/config"
	"github.com/anstrom/scanexport/internal/logging"
	"github.com/anstrom/scanexport/internal/metrics"
)

// MockDB provides a mock database for testing
type MockDB struct {
	mock.Mock
}

func (m *MockDB) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func newTestServer(t *testing.T, mutate func(*config.Config), opts ...Option) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.API.Port = 18080
	if mutate != nil {
		mutate(cfg)
	}
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	return New(cfg, opts...)
}

func serve(s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, bytes.NewReader(body)))
	return rec
}

func TestNew(t *testing.T) {
	s := newTestServer(t, nil)

	assert.Equal(t, "127.0.0.1:18080", s.GetAddress())
	assert.NotNil(t, s.GetRouter())
	assert.NotNil(t, s.Handler())
}

func TestServer_HealthRoutes(t *testing.T) {
	db := &MockDB{}
	db.On("Ping", mock.Anything).Return(nil).Once()

	s := newTestServer(t, nil, WithDatabase(db), WithScheduledJobs(func() int { return 2 }))

	rec := serve(s, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var health apihandlers.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, apihandlers.StatusHealthy, health.Status)
	assert.Equal(t, apihandlers.StatusOK, health.Checks["database"])
	require.NotNil(t, health.Scheduled)
	assert.Equal(t, 2, *health.Scheduled)
	db.AssertExpectations(t)

	assert.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/api/v1/liveness", nil).Code)
	assert.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/api/v1/version", nil).Code)
}

func TestServer_HealthDatabaseDown(t *testing.T) {
	db := &MockDB{}
	db.On("Ping", mock.Anything).Return(assert.AnError)

	s := newTestServer(t, nil, WithDatabase(db))
	rec := serve(s, http.MethodGet, "/api/v1/health", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_Middleware(t *testing.T) {
	s := newTestServer(t, nil)
	rec := serve(s, http.MethodGet, "/api/v1/liveness", nil)

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	assert.Equal(t, http.StatusMethodNotAllowed, serve(s, http.MethodPost, "/api/v1/health", nil).Code)
	assert.Equal(t, http.StatusNotFound, serve(s, http.MethodGet, "/api/v1/scans", nil).Code)
}

func TestServer_ConvertAndMetrics(t *testing.T) {
	report, err := os.ReadFile(filepath.Join("..", "scanning", "testdata", "single_port.xml"))
	require.NoError(t, err)

	registry := metrics.NewPrometheusMetrics()
	s := newTestServer(t, nil, WithMetrics(registry))

	rec := serve(s, http.MethodPost, "/api/v1/convert/csv", report)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "192.168.1.10,ipv4,tcp,80,open")
	assert.False(t, registry.LastBatch().IsZero())

	rec = serve(s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `scanexport_api_requests_total{method="POST",path="/api/v1/convert/{format}",status="200"} 1`)
	assert.Contains(t, body, `scanexport_batch_documents_total{format="csv",status="decoded"} 1`)
}

func TestServer_MetricsDisabled(t *testing.T) {
	s := newTestServer(t, nil)
	assert.Equal(t, http.StatusNotFound, serve(s, http.MethodGet, "/metrics", nil).Code)
}

func TestServer_RequestSizeLimit(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.API.MaxRequestSize = 32
	})

	rec := serve(s, http.MethodPost, "/api/v1/convert/json", bytes.Repeat([]byte("x"), 64))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestServer_APIKeyAuthentication(t *testing.T) {
	key := "sx_" + strings.Repeat("k", 32)
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	require.NoError(t, err)

	s := newTestServer(t, func(cfg *config.Config) {
		cfg.API.Auth.Enabled = true
		cfg.API.Auth.KeyHashes = []string{string(hash)}
	})
	report, err := os.ReadFile(filepath.Join("..", "scanning", "testdata", "single_port.xml"))
	require.NoError(t, err)

	rec := serve(s, http.MethodPost, "/api/v1/convert/csv", report)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/convert/csv", bytes.NewReader(report))
	req.Header.Set("Authorization", "Bearer "+key)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health stays open.
	assert.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/api/v1/liveness", nil).Code)
}

func TestServer_CORS(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.API.CORS.Enabled = true
		cfg.API.CORS.AllowedOrigins = []string{"https://dashboard.example.com"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/convert/json", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://dashboard.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_ServeAndStop(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := newTestServer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, listener) }()

	url := "http://" + listener.Addr().String() + "/api/v1/liveness"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}
