package api

import (
	"io"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/wireterm/termstation/internal/gateway"
)

// DummyResponseWriter implements http.ResponseWriter but discards all data.
// This eliminates overhead from httptest.NewRecorder() in benchmarks.
type DummyResponseWriter struct{}

func (d *DummyResponseWriter) Header() http.Header {
	return http.Header{}
}

func (d *DummyResponseWriter) Write(data []byte) (int, error) {
	return len(data), nil
}

func (d *DummyResponseWriter) WriteHeader(statusCode int) {}

// setupBenchmarkRouter wraps SetupRouter with benchmark mode configuration.
func setupBenchmarkRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	gin.DefaultWriter = io.Discard
	gw := gateway.New(gateway.Config{})
	return SetupRouter(gw, "*", true)
}

// benchmarkRequest executes an HTTP request against the router for
// benchmarking. It recreates the request for each iteration since HTTP
// request bodies can only be read once.
func benchmarkRequest(b *testing.B, router *gin.Engine, method, path string) {
	w := new(DummyResponseWriter)
	for b.Loop() {
		req, _ := http.NewRequest(method, path, nil)
		router.ServeHTTP(w, req)
	}
}

// BenchmarkHealthCheck benchmarks the liveness probe, the hottest HTTP path
// in this system (a container orchestrator polls it continuously).
func BenchmarkHealthCheck(b *testing.B) {
	router := setupBenchmarkRouter()
	benchmarkRequest(b, router, http.MethodGet, "/health")
}

// BenchmarkRootWelcome benchmarks the root informational route.
func BenchmarkRootWelcome(b *testing.B) {
	router := setupBenchmarkRouter()
	benchmarkRequest(b, router, http.MethodGet, "/")
}
