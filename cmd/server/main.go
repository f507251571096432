package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/skypro1111/live-caption-service/internal/config"
	"github.com/skypro1111/live-caption-service/internal/metrics"
	"github.com/skypro1111/live-caption-service/internal/pipeline"
	"github.com/skypro1111/live-caption-service/internal/recognition"
	"github.com/skypro1111/live-caption-service/internal/server"
	"github.com/skypro1111/live-caption-service/internal/transcript"
	"github.com/skypro1111/live-caption-service/internal/translation"
	"github.com/skypro1111/live-caption-service/internal/vad"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "live-caption-service"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	envPath := flag.String("env", "", "Path to optional .env file with API keys")
	flag.Parse()

	// Load .env before the config so env overrides are visible
	if *envPath != "" {
		if err := godotenv.Load(*envPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load env file %s: %v\n", *envPath, err)
			os.Exit(1)
		}
	} else {
		// Best effort: a local .env is optional
		_ = godotenv.Load()
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.Int("udp_port", cfg.Server.UDPPort),
		slog.String("bind_address", cfg.Server.BindAddress),
		slog.Int("channels", cfg.Audio.Channels),
		slog.Int("target_sample_rate", cfg.Audio.TargetSampleRate),
		slog.Float64("min_segment_duration", cfg.Audio.MinSegmentDuration),
		slog.Float64("max_segment_duration", cfg.Audio.MaxSegmentDuration),
		slog.String("recognition_backend", cfg.Recognition.Backend),
		slog.Bool("translation_enabled", cfg.Translation.Enabled),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Initialize voice activity gate
	gate, err := vad.NewGate(cfg.VAD.EnergyThreshold, cfg.VAD.PeakThreshold, cfg.VAD.EnergyScale)
	if err != nil {
		logger.Error("Failed to create voice activity gate", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize recognition backend
	recognizer, err := buildRecognizer(cfg.Recognition)
	if err != nil {
		logger.Error("Failed to create recognizer", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Recognition backend initialized",
		slog.String("backend", cfg.Recognition.Backend),
	)

	// Initialize translation client (if enabled)
	var translator transcript.Translator
	if cfg.Translation.Enabled {
		client, err := translation.NewClient(translation.Config{
			Endpoint: cfg.Translation.Endpoint,
			APIKey:   cfg.Translation.APIKey,
			Timeout:  cfg.Translation.GetTimeoutDuration(),
		})
		if err != nil {
			logger.Error("Failed to create translation client", slog.String("error", err.Error()))
			os.Exit(1)
		}
		translator = client
		logger.Info("Translation client initialized",
			slog.String("source_language", cfg.Translation.SourceLanguage),
			slog.String("target_language", cfg.Translation.TargetLanguage),
		)
	}

	// Initialize transcript merger
	merger := transcript.NewMerger(transcript.MergerConfig{
		TimeWindow:          cfg.Merge.TimeWindow,
		SimilarityThreshold: cfg.Merge.SimilarityThreshold,
		RecentWindow:        cfg.Merge.RecentWindow,
		HistoryLimit:        cfg.Merge.HistoryLimit,
		Translator:          translator,
		SourceLanguage:      cfg.Translation.SourceLanguage,
		TargetLanguage:      cfg.Translation.TargetLanguage,
		TranslationTimeout:  cfg.Translation.GetTimeoutDuration(),
		Metrics:             appMetrics,
	}, logger)

	// Initialize pipeline
	pipe := pipeline.New(pipeline.Config{
		Channels:           cfg.Audio.Channels,
		MinSegmentDuration: cfg.Audio.GetMinSegmentDuration(),
		MaxSegmentDuration: cfg.Audio.GetMaxSegmentDuration(),
		SilenceTimeout:     cfg.Audio.GetSilenceTimeout(),
		ForcedInterval:     cfg.Audio.GetForcedInterval(),
		MinSegmentBytes:    cfg.Audio.MinSegmentBytes,
		RecognitionTimeout: cfg.Recognition.GetTimeoutDuration(),
		ShutdownGrace:      cfg.Pipeline.GetShutdownGrace(),
		SourceLanguage:     cfg.Translation.SourceLanguage,
		TargetLanguage:     cfg.Translation.TargetLanguage,
		TranslationEnabled: cfg.Translation.Enabled,
	}, gate, recognizer, merger, appMetrics, logger)

	pipe.Start()

	// Initialize UDP capture server
	udpServer := server.NewUDPServer(&cfg.Server, logger, pipe)
	logger.Info("UDP capture server initialized")

	// Initialize HTTP API server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, pipe, merger, udpServer, appMetrics)
		logger.Info("HTTP API server initialized",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)
	}

	// Start UDP server
	if err := udpServer.Start(); err != nil {
		logger.Error("Failed to start UDP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start HTTP server (if enabled)
	if httpServer != nil {
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("udp_address", fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.UDPPort)),
	)

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop UDP server first (stop accepting new audio)
	if err := udpServer.Stop(); err != nil {
		logger.Error("Error stopping UDP server", slog.String("error", err.Error()))
	}

	// Drain the pipeline: queued segments get the grace period to finish,
	// then outstanding recognitions are cancelled
	pipe.Stop()

	// Stop HTTP server last so clients can observe the drain
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	// Get final statistics
	udpStats := udpServer.GetStatistics()
	pipeStats := pipe.GetStats()
	mergerStats := merger.GetStats()
	logger.Info("Final service statistics",
		slog.Uint64("datagrams_received", udpStats.DatagramsReceived),
		slog.Uint64("datagrams_processed", udpStats.DatagramsProcessed),
		slog.Uint64("parse_errors", udpStats.ParseErrors),
		slog.Uint64("segments_enqueued", pipeStats.Queue.Enqueued),
		slog.Uint64("recognition_failures", pipeStats.RecognitionFailures),
		slog.Uint64("transcript_segments", mergerStats.Created),
	)

	logger.Info("Service stopped")
}

// buildRecognizer constructs the configured recognition backend.
func buildRecognizer(cfg config.RecognitionConfig) (recognition.Recognizer, error) {
	switch cfg.Backend {
	case "openai":
		return recognition.NewOpenAIRecognizer(cfg.APIKey, cfg.Model)
	case "http":
		return recognition.NewClient(recognition.Config{
			Endpoint:      cfg.Endpoint,
			APIKey:        cfg.APIKey,
			Model:         cfg.Model,
			Timeout:       cfg.GetTimeoutDuration(),
			MaxRetries:    cfg.MaxRetries,
			MaxConcurrent: cfg.MaxConcurrent,
		})
	default:
		return nil, fmt.Errorf("unknown recognition backend: %s", cfg.Backend)
	}
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
