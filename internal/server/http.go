package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skypro1111/live-caption-service/internal/config"
	"github.com/skypro1111/live-caption-service/internal/metrics"
	"github.com/skypro1111/live-caption-service/internal/pipeline"
	"github.com/skypro1111/live-caption-service/internal/transcript"
)

// HTTPServer provides HTTP API endpoints for monitoring and the live
// transcript feed
type HTTPServer struct {
	server    *http.Server
	logger    *slog.Logger
	config    *config.Config
	pipe      *pipeline.Pipeline
	merger    *transcript.Merger
	udpServer *UDPServer
	metrics   *metrics.Metrics
	hub       *CaptionHub

	// Server state
	startTime time.Time
	mu        sync.RWMutex
}

// NewHTTPServer creates a new HTTP API server
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger, appConfig *config.Config,
	pipe *pipeline.Pipeline, merger *transcript.Merger, udpServer *UDPServer, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		pipe:      pipe,
		merger:    merger,
		udpServer: udpServer,
		metrics:   m,
		hub:       NewCaptionHub(merger, m, logger),
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Health check endpoint
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	// Transcript history endpoint
	mux.HandleFunc("/transcript", h.withMetrics("/transcript", h.handleTranscript))

	// Live caption websocket feed (metrics tracked by the hub)
	mux.HandleFunc("/ws", h.hub.HandleWebsocket)

	// Configuration endpoint
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))

	// Statistics endpoint
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("/metrics", promhttp.Handler())

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		// Response writer wrapper captures the status code
		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	h.hub.Close()

	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(h.startTime)
	udpStats := h.udpServer.GetStatistics()
	pipeStats := h.pipe.GetStats()
	mergerStats := h.merger.GetStats()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]interface{}{
			"name":    "live-caption-service",
			"version": "1.0.0",
		},
		"components": map[string]interface{}{
			"udp_server": map[string]interface{}{
				"status":              "running",
				"datagrams_received":  udpStats.DatagramsReceived,
				"datagrams_processed": udpStats.DatagramsProcessed,
				"parse_errors":        udpStats.ParseErrors,
				"queue_size":          udpStats.QueueSize,
			},
			"pipeline": map[string]interface{}{
				"status":      string(pipeStats.State),
				"queue_depth": pipeStats.Queue.Depth,
				"speaking":    pipeStats.Accumulator.Speaking,
			},
			"transcript": map[string]interface{}{
				"status":       "running",
				"history_size": mergerStats.HistorySize,
				"clients":      h.hub.ClientCount(),
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleTranscript implements the /transcript endpoint
func (h *HTTPServer) handleTranscript(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	history := h.merger.History()

	response := map[string]interface{}{
		"total_segments": len(history),
		"timestamp":      time.Now().UTC(),
		"segments":       history,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Return sanitized configuration (remove sensitive data)
	sanitizedConfig := map[string]interface{}{
		"server": map[string]interface{}{
			"udp_port":     h.config.Server.UDPPort,
			"bind_address": h.config.Server.BindAddress,
			"buffer_size":  h.config.Server.BufferSize,
		},
		"audio": map[string]interface{}{
			"channels":             h.config.Audio.Channels,
			"target_sample_rate":   h.config.Audio.TargetSampleRate,
			"min_segment_duration": h.config.Audio.MinSegmentDuration,
			"max_segment_duration": h.config.Audio.MaxSegmentDuration,
			"silence_timeout":      h.config.Audio.SilenceTimeout,
			"forced_interval":      h.config.Audio.ForcedInterval,
			"min_segment_bytes":    h.config.Audio.MinSegmentBytes,
		},
		"vad": map[string]interface{}{
			"energy_threshold": h.config.VAD.EnergyThreshold,
			"peak_threshold":   h.config.VAD.PeakThreshold,
			"energy_scale":     h.config.VAD.EnergyScale,
		},
		"merge": map[string]interface{}{
			"time_window":          h.config.Merge.TimeWindow,
			"similarity_threshold": h.config.Merge.SimilarityThreshold,
			"recent_window":        h.config.Merge.RecentWindow,
			"history_limit":        h.config.Merge.HistoryLimit,
		},
		"recognition": map[string]interface{}{
			"backend":        h.config.Recognition.Backend,
			"endpoint":       h.config.Recognition.Endpoint,
			"model":          h.config.Recognition.Model,
			"timeout":        h.config.Recognition.Timeout,
			"max_retries":    h.config.Recognition.MaxRetries,
			"max_concurrent": h.config.Recognition.MaxConcurrent,
			// Note: API key is intentionally omitted for security
		},
		"translation": map[string]interface{}{
			"enabled":         h.config.Translation.Enabled,
			"endpoint":        h.config.Translation.Endpoint,
			"source_language": h.config.Translation.SourceLanguage,
			"target_language": h.config.Translation.TargetLanguage,
			"timeout":         h.config.Translation.Timeout,
			// Note: API key is intentionally omitted for security
		},
		"pipeline": map[string]interface{}{
			"shutdown_grace": h.config.Pipeline.ShutdownGrace,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sanitizedConfig)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	udpStats := h.udpServer.GetStatistics()
	pipeStats := h.pipe.GetStats()
	mergerStats := h.merger.GetStats()
	uptime := time.Since(h.startTime)

	stats := map[string]interface{}{
		"uptime":     uptime.String(),
		"timestamp":  time.Now().UTC(),
		"udp":        udpStats,
		"pipeline":   pipeStats,
		"transcript": mergerStats,
		"websocket": map[string]interface{}{
			"clients": h.hub.ClientCount(),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "Live Caption Service",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":           "API documentation",
			"GET /health":     "Service health check",
			"GET /transcript": "Current transcript history",
			"GET /ws":         "Live caption websocket feed",
			"GET /config":     "Get service configuration",
			"GET /stats":      "Get service statistics",
			"GET /metrics":    "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apiDoc)
}
