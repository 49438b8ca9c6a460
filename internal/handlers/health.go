package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mtben82-coder/voicebubble-backend/internal/cache"
	"github.com/mtben82-coder/voicebubble-backend/internal/llm"
)

// HealthHandler reports cache-backend connectivity and upstream
// reachability for operational monitoring. The pipeline itself never
// consults this; it reads the backend status directly.
type HealthHandler struct {
	Backend     cache.Backend
	Client      llm.Client
	Environment string
	StartedAt   time.Time
}

func NewHealthHandler(backend cache.Backend, client llm.Client, environment string) *HealthHandler {
	return &HealthHandler{
		Backend:     backend,
		Client:      client,
		Environment: environment,
		StartedAt:   time.Now(),
	}
}

type serviceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	Environment string `json:"environment"`
	Services    struct {
		Cache    serviceHealth `json:"cache"`
		Upstream serviceHealth `json:"upstream"`
	} `json:"services"`
}

// Health handles GET /health. The dependency probes run in parallel;
// a disabled cache does not fail the check (the cache is optional by
// design), but an unreachable upstream does.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var (
		cacheHealth    serviceHealth
		upstreamHealth serviceHealth
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cacheHealth = h.probeCache(gctx)
		return nil
	})
	g.Go(func() error {
		if h.Client.HealthCheck(gctx) {
			upstreamHealth = serviceHealth{Status: "healthy"}
		} else {
			upstreamHealth = serviceHealth{Status: "unhealthy", Message: "Upstream not reachable"}
		}
		return nil
	})
	_ = g.Wait()

	cacheOK := cacheHealth.Status == "connected" || cacheHealth.Status == "disabled"
	allHealthy := cacheOK && upstreamHealth.Status == "healthy"

	resp := healthResponse{
		Status:      "ok",
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Environment: h.Environment,
	}
	resp.Services.Cache = cacheHealth
	resp.Services.Upstream = upstreamHealth

	status := http.StatusOK
	if !allHealthy {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (h *HealthHandler) probeCache(ctx context.Context) serviceHealth {
	state := h.Backend.Status()
	switch state {
	case cache.StatusDisabled:
		return serviceHealth{Status: "disabled", Message: "Cache backend not configured"}
	case cache.StatusConnected:
		if err := h.Backend.Ping(ctx); err != nil {
			return serviceHealth{Status: "error", Message: err.Error()}
		}
		return serviceHealth{Status: "connected", Message: "Cache operational"}
	default:
		return serviceHealth{Status: state.String(), Message: "Cache backend not connected"}
	}
}

// Stats handles GET /stats: process and cache metrics for monitoring.
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"uptime_seconds": int64(time.Since(h.StartedAt).Seconds()),
		"go_version":     runtime.Version(),
		"goroutines":     runtime.NumGoroutine(),
		"memory": map[string]uint64{
			"heap_alloc_bytes": mem.HeapAlloc,
			"sys_bytes":        mem.Sys,
			"num_gc":           uint64(mem.NumGC),
		},
		"cache": map[string]string{
			"status": h.Backend.Status().String(),
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Root handles GET /: a small service banner with the route map.
func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":        "VoiceBubble API",
		"version":     "1.0.0",
		"description": "Backend for voice transcription and text rewriting",
		"endpoints": map[string]string{
			"health":        "GET /health",
			"stats":         "GET /stats",
			"metrics":       "GET /metrics",
			"transcribe":    "POST /api/transcribe",
			"rewrite":       "POST /api/rewrite (SSE streaming)",
			"rewrite_batch": "POST /api/rewrite/batch",
			"transform":     "POST /api/transform/transform-text",
			"translate":     "POST /api/transform/translate-text",
			"languages":     "GET /api/transform/languages",
			"actions":       "POST /api/actions/extract",
		},
	})
}
