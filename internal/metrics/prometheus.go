package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the live caption service
type Metrics struct {
	// Ingestion metrics
	ChunksIngested prometheus.Counter
	BytesIngested  prometheus.Counter
	ChunksRejected prometheus.Counter

	// VAD metrics
	VADChunksProcessed prometheus.Counter
	VADVoiceDetected   prometheus.Counter

	// Segmentation metrics
	SegmentsCreated      prometheus.Counter
	SegmentDuration      prometheus.Histogram
	SegmentSize          prometheus.Histogram
	SegmentsDroppedShort prometheus.Counter
	SegmentsDroppedDrain prometheus.Counter
	QueueDepth           prometheus.Gauge

	// Recognition metrics
	RecognitionRequests  prometheus.Counter
	RecognitionSuccesses prometheus.Counter
	RecognitionFailures  prometheus.Counter
	RecognitionDuration  prometheus.Histogram

	// Translation metrics
	TranslationRequests prometheus.Counter
	TranslationFailures prometheus.Counter

	// Transcript merger metrics
	TranscriptCreated     prometheus.Counter
	TranscriptRefined     prometheus.Counter
	TranscriptDiscarded   prometheus.Counter
	TranscriptHistorySize prometheus.Gauge

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec

	// Websocket metrics
	WebsocketClients prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ChunksIngested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caption_chunks_ingested_total",
			Help: "Total number of raw audio chunks accepted by the pipeline",
		}),
		BytesIngested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caption_bytes_ingested_total",
			Help: "Total raw audio bytes accepted by the pipeline",
		}),
		ChunksRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caption_chunks_rejected_total",
			Help: "Total chunks rejected because the pipeline was not running",
		}),

		VADChunksProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caption_vad_chunks_processed_total",
			Help: "Total number of chunks evaluated by the voice activity gate",
		}),
		VADVoiceDetected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caption_vad_voice_detected_total",
			Help: "Total number of chunks with voice detected",
		}),

		SegmentsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caption_segments_created_total",
			Help: "Total number of audio segments created by the accumulator",
		}),
		SegmentDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "caption_segment_duration_seconds",
			Help:    "Duration of created audio segments",
			Buckets: prometheus.LinearBuckets(1, 1, 12), // 1s to 12s
		}),
		SegmentSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "caption_segment_size_bytes",
			Help:    "Raw size of created audio segments in bytes",
			Buckets: prometheus.ExponentialBuckets(4096, 2, 12), // 4KB to ~8MB
		}),
		SegmentsDroppedShort: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caption_segments_dropped_short_total",
			Help: "Total segments discarded as too short after conversion",
		}),
		SegmentsDroppedDrain: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caption_segments_dropped_draining_total",
			Help: "Total segments dropped because the dispatch queue was draining",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "caption_dispatch_queue_depth",
			Help: "Current number of segments waiting for recognition",
		}),

		RecognitionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caption_recognition_requests_total",
			Help: "Total number of recognition requests dispatched",
		}),
		RecognitionSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caption_recognition_successes_total",
			Help: "Total number of successful recognition requests",
		}),
		RecognitionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caption_recognition_failures_total",
			Help: "Total number of failed or timed-out recognition requests",
		}),
		RecognitionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "caption_recognition_duration_seconds",
			Help:    "Duration of recognition requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		}),

		TranslationRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caption_translation_requests_total",
			Help: "Total number of translation requests",
		}),
		TranslationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caption_translation_failures_total",
			Help: "Total number of failed translation requests",
		}),

		TranscriptCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caption_transcript_created_total",
			Help: "Total transcript segments appended as new entries",
		}),
		TranscriptRefined: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caption_transcript_refined_total",
			Help: "Total transcript segments refined in place",
		}),
		TranscriptDiscarded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caption_transcript_discarded_total",
			Help: "Total transcript segments discarded as duplicates",
		}),
		TranscriptHistorySize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "caption_transcript_history_size",
			Help: "Current number of retained transcript segments",
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caption_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "caption_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caption_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),

		WebsocketClients: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "caption_websocket_clients",
			Help: "Current number of connected caption websocket clients",
		}),
	}
}

// RecordChunkIngested records one accepted raw chunk
func (m *Metrics) RecordChunkIngested(sizeBytes int) {
	m.ChunksIngested.Inc()
	m.BytesIngested.Add(float64(sizeBytes))
}

// RecordChunkRejected increments the rejected chunks counter
func (m *Metrics) RecordChunkRejected() {
	m.ChunksRejected.Inc()
}

// RecordVADChunk records one gate evaluation
func (m *Metrics) RecordVADChunk(hasVoice bool) {
	m.VADChunksProcessed.Inc()
	if hasVoice {
		m.VADVoiceDetected.Inc()
	}
}

// RecordSegmentCreated records a segment produced by the accumulator
func (m *Metrics) RecordSegmentCreated(durationSeconds float64, sizeBytes int) {
	m.SegmentsCreated.Inc()
	m.SegmentDuration.Observe(durationSeconds)
	m.SegmentSize.Observe(float64(sizeBytes))
}

// SetQueueDepth sets the current dispatch queue depth
func (m *Metrics) SetQueueDepth(depth int) {
	m.QueueDepth.Set(float64(depth))
}

// RecordRecognitionSuccess records a successful recognition
func (m *Metrics) RecordRecognitionSuccess(durationSeconds float64) {
	m.RecognitionRequests.Inc()
	m.RecognitionSuccesses.Inc()
	m.RecognitionDuration.Observe(durationSeconds)
}

// RecordRecognitionFailure records a failed or timed-out recognition
func (m *Metrics) RecordRecognitionFailure(durationSeconds float64) {
	m.RecognitionRequests.Inc()
	m.RecognitionFailures.Inc()
	m.RecognitionDuration.Observe(durationSeconds)
}

// RecordTranslationRequest records one translation attempt
func (m *Metrics) RecordTranslationRequest() {
	m.TranslationRequests.Inc()
}

// RecordTranslationFailure records a failed translation attempt
func (m *Metrics) RecordTranslationFailure() {
	m.TranslationFailures.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
