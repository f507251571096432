package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/skypro1111/live-caption-service/internal/audio"
	"github.com/skypro1111/live-caption-service/internal/metrics"
	"github.com/skypro1111/live-caption-service/internal/recognition"
	"github.com/skypro1111/live-caption-service/internal/segment"
	"github.com/skypro1111/live-caption-service/internal/transcript"
	"github.com/skypro1111/live-caption-service/internal/vad"
)

// State represents the pipeline lifecycle state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDraining State = "draining"
	StateStopped  State = "stopped"
)

// Config contains pipeline configuration
type Config struct {
	Channels           int
	MinSegmentDuration time.Duration
	MaxSegmentDuration time.Duration
	SilenceTimeout     time.Duration
	ForcedInterval     time.Duration
	MinSegmentBytes    int // minimum converted payload size worth recognizing
	RecognitionTimeout time.Duration
	ShutdownGrace      time.Duration
	SourceLanguage     string // latin-script language, translated when enabled
	TargetLanguage     string
	TranslationEnabled bool
}

// Pipeline connects the capture path to the transcript: voice activity
// gating, segment accumulation, a draining dispatch queue, concurrent
// recognition, and the merger. Chunks are accepted only while running;
// Stop drains queued segments before cancelling outstanding work.
type Pipeline struct {
	config     Config
	gate       *vad.Gate
	acc        *segment.Accumulator
	queue      *segment.Queue
	recognizer recognition.Recognizer
	merger     *transcript.Merger
	metrics    *metrics.Metrics
	logger     *slog.Logger

	state   State
	stateMu sync.RWMutex

	// hardCtx bounds recognition requests. It outlives Stop's drain phase
	// and is cancelled only when the grace period expires.
	hardCtx    context.Context
	hardCancel context.CancelFunc

	dispatchWg sync.WaitGroup // dispatch loop
	workersWg  sync.WaitGroup // in-flight recognitions

	unsubscribe func()

	segmentsDroppedShort uint64
	recognitionFailures  uint64
	statsMu              sync.Mutex
}

// Stats represents pipeline statistics for monitoring.
type Stats struct {
	State                State                    `json:"state"`
	Accumulator          segment.AccumulatorStats `json:"accumulator"`
	Queue                segment.QueueStats       `json:"queue"`
	SegmentsDroppedShort uint64                   `json:"segments_dropped_short"`
	RecognitionFailures  uint64                   `json:"recognition_failures"`
}

// New creates a pipeline. The metrics parameter may be nil.
func New(config Config, gate *vad.Gate, recognizer recognition.Recognizer,
	merger *transcript.Merger, m *metrics.Metrics, logger *slog.Logger) *Pipeline {

	if config.Channels < 1 {
		config.Channels = 1
	}
	if config.RecognitionTimeout <= 0 {
		config.RecognitionTimeout = 30 * time.Second
	}
	if config.ShutdownGrace <= 0 {
		config.ShutdownGrace = 8 * time.Second
	}

	return &Pipeline{
		config: config,
		gate:   gate,
		acc: segment.NewAccumulator(segment.AccumulatorConfig{
			Channels:           config.Channels,
			MinSegmentDuration: config.MinSegmentDuration,
			MaxSegmentDuration: config.MaxSegmentDuration,
			SilenceTimeout:     config.SilenceTimeout,
			ForcedInterval:     config.ForcedInterval,
		}),
		queue:      segment.NewQueue(),
		recognizer: recognizer,
		merger:     merger,
		metrics:    m,
		logger:     logger,
		state:      StateIdle,
	}
}

// Start transitions the pipeline to running and launches the dispatch loop.
func (p *Pipeline) Start() {
	p.stateMu.Lock()
	if p.state != StateIdle {
		p.stateMu.Unlock()
		return
	}
	p.state = StateRunning
	p.hardCtx, p.hardCancel = context.WithCancel(context.Background())
	p.stateMu.Unlock()

	if p.metrics != nil {
		events, cancel := p.merger.Subscribe()
		p.unsubscribe = cancel
		go p.observeMergeEvents(events)
	}

	p.dispatchWg.Add(1)
	go p.dispatchLoop()

	p.merger.PublishStatus(string(StateRunning))
	p.logger.Info("Pipeline started",
		slog.Int("channels", p.config.Channels),
		slog.Duration("recognition_timeout", p.config.RecognitionTimeout),
	)
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.state
}

// Ingest feeds one raw capture chunk (interleaved little-endian float32)
// through the gate and the accumulator. Chunks are rejected unless the
// pipeline is running. Returns true if the chunk was accepted.
func (p *Pipeline) Ingest(chunk []byte, sampleRate int) bool {
	if p.State() != StateRunning {
		if p.metrics != nil {
			p.metrics.RecordChunkRejected()
		}
		return false
	}

	if p.metrics != nil {
		p.metrics.RecordChunkIngested(len(chunk))
	}

	hasVoice, energy := p.gate.Detect(chunk, p.config.Channels)
	if p.metrics != nil {
		p.metrics.RecordVADChunk(hasVoice)
	}

	seg := p.acc.Ingest(chunk, sampleRate, hasVoice)
	if seg == nil {
		return true
	}

	p.logger.Debug("Segment accumulated",
		slog.String("segment_id", seg.ID),
		slog.Float64("duration", seg.Duration()),
		slog.Int("size_bytes", len(seg.Data)),
		slog.Float64("last_energy", energy),
	)

	if !p.queue.Enqueue(seg) {
		if p.metrics != nil {
			p.metrics.SegmentsDroppedDrain.Inc()
		}
		return true
	}

	if p.metrics != nil {
		p.metrics.RecordSegmentCreated(seg.Duration(), len(seg.Data))
		p.metrics.SetQueueDepth(p.queue.Len())
	}

	return true
}

// Stop drains the pipeline and shuts it down in two phases: queued segments
// and in-flight recognitions get the grace period to finish, then whatever
// remains is hard-cancelled. Safe to call once; later calls are no-ops.
func (p *Pipeline) Stop() {
	p.stateMu.Lock()
	if p.state != StateRunning {
		p.stateMu.Unlock()
		return
	}
	p.state = StateDraining
	p.stateMu.Unlock()

	p.logger.Info("Pipeline draining", slog.Int("queue_depth", p.queue.Len()))
	p.merger.PublishStatus(string(StateDraining))

	// Whatever audio is still buffered becomes a final segment before the
	// queue closes to producers.
	if final := p.acc.FinalFlush(); final != nil {
		if p.queue.Enqueue(final) && p.metrics != nil {
			p.metrics.RecordSegmentCreated(final.Duration(), len(final.Data))
		}
	}

	p.queue.SignalDraining()

	done := make(chan struct{})
	go func() {
		p.dispatchWg.Wait()
		p.workersWg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(p.config.ShutdownGrace):
		p.logger.Warn("Shutdown grace period expired, cancelling outstanding recognitions",
			slog.Duration("grace", p.config.ShutdownGrace),
		)
		p.hardCancel()
		<-done
	}

	p.hardCancel()

	p.stateMu.Lock()
	p.state = StateStopped
	p.stateMu.Unlock()

	p.merger.PublishStatus(string(StateStopped))

	if p.unsubscribe != nil {
		p.unsubscribe()
	}

	p.logger.Info("Pipeline stopped")
}

// dispatchLoop pulls segments off the queue and hands each to its own
// recognition worker. Exits when the queue is drained.
func (p *Pipeline) dispatchLoop() {
	defer p.dispatchWg.Done()

	for {
		seg, ok := p.queue.Dequeue()
		if !ok {
			return
		}

		if p.metrics != nil {
			p.metrics.SetQueueDepth(p.queue.Len())
		}

		p.workersWg.Add(1)
		go func(seg *segment.Segment) {
			defer p.workersWg.Done()
			p.process(seg)
		}(seg)
	}
}

// process converts one segment to the recognition format, runs recognition
// under its own deadline, classifies the language, and merges the result.
func (p *Pipeline) process(seg *segment.Segment) {
	converted := audio.ConvertToMono16k(seg.Data, seg.Channels, seg.SampleRate)

	if len(converted)*2 < p.config.MinSegmentBytes {
		p.statsMu.Lock()
		p.segmentsDroppedShort++
		p.statsMu.Unlock()

		if p.metrics != nil {
			p.metrics.SegmentsDroppedShort.Inc()
		}

		p.logger.Debug("Segment dropped, too short after conversion",
			slog.String("segment_id", seg.ID),
			slog.Int("converted_bytes", len(converted)*2),
		)
		return
	}

	wavData, err := audio.EncodeWAV(converted, audio.TargetSampleRate)
	if err != nil {
		p.logger.Error("Failed to encode WAV clip",
			slog.String("segment_id", seg.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	ctx, cancel := context.WithTimeout(p.hardCtx, p.config.RecognitionTimeout)
	defer cancel()

	startTime := time.Now()
	text, err := p.recognizer.Recognize(ctx, wavData)
	elapsed := time.Since(startTime)

	if err != nil {
		p.statsMu.Lock()
		p.recognitionFailures++
		p.statsMu.Unlock()

		if p.metrics != nil {
			p.metrics.RecordRecognitionFailure(elapsed.Seconds())
		}

		p.logger.Warn("Recognition failed, segment dropped",
			slog.String("segment_id", seg.ID),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
		return
	}

	if p.metrics != nil {
		p.metrics.RecordRecognitionSuccess(elapsed.Seconds())
	}

	if text == "" {
		p.logger.Debug("Recognition returned empty text, segment dropped",
			slog.String("segment_id", seg.ID),
		)
		return
	}

	language := transcript.ClassifyLanguage(text, p.config.SourceLanguage, p.config.TargetLanguage)

	p.merger.Merge(&transcript.TranscriptSegment{
		ID:               seg.ID,
		Text:             text,
		Language:         language,
		NeedsTranslation: p.config.TranslationEnabled && language == p.config.SourceLanguage,
		Start:            seg.Start,
		End:              seg.End,
		Final:            true,
	})
}

// observeMergeEvents mirrors merger outcomes into Prometheus metrics. Exits
// when the subscription channel is closed.
func (p *Pipeline) observeMergeEvents(events <-chan transcript.Event) {
	for ev := range events {
		switch ev.Type {
		case transcript.EventCreated:
			p.metrics.TranscriptCreated.Inc()
		case transcript.EventRefined:
			p.metrics.TranscriptRefined.Inc()
		case transcript.EventDiscarded:
			p.metrics.TranscriptDiscarded.Inc()
		}

		p.metrics.TranscriptHistorySize.Set(float64(p.merger.GetStats().HistorySize))
	}
}

// GetStats returns current pipeline statistics.
func (p *Pipeline) GetStats() Stats {
	p.statsMu.Lock()
	droppedShort := p.segmentsDroppedShort
	failures := p.recognitionFailures
	p.statsMu.Unlock()

	return Stats{
		State:                p.State(),
		Accumulator:          p.acc.GetStats(),
		Queue:                p.queue.GetStats(),
		SegmentsDroppedShort: droppedShort,
		RecognitionFailures:  failures,
	}
}
