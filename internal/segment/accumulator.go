package segment

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// bytesPerSample is the width of one float32 source sample.
const bytesPerSample = 4

// Segment represents one bounded span of captured audio judged to contain a
// complete utterance. Data holds the raw interleaved float32 bytes exactly as
// captured; format conversion happens downstream at dispatch time.
type Segment struct {
	ID         string
	Data       []byte
	SampleRate int
	Channels   int
	Start      float64 // stream position in seconds, half-open interval
	End        float64
	CreatedAt  time.Time
}

// Duration returns the audio duration of the segment in seconds.
func (s *Segment) Duration() float64 {
	return s.End - s.Start
}

// AccumulatorConfig contains the segmentation timing policy.
type AccumulatorConfig struct {
	Channels           int
	MinSegmentDuration time.Duration
	MaxSegmentDuration time.Duration
	SilenceTimeout     time.Duration
	ForcedInterval     time.Duration
}

// Accumulator consumes raw audio chunks together with their voice-activity
// signal and decides when the buffered audio constitutes a complete segment.
// All state is guarded by a single mutex; Ingest never blocks beyond the
// buffer append.
type Accumulator struct {
	config AccumulatorConfig

	buf        []byte
	speaking   bool
	lastVoice  time.Time
	lastFlush  time.Time
	sampleRate int

	// consumedBytes tracks the stream position of the buffer start, so
	// segment intervals can be reported in stream seconds.
	consumedBytes int64

	segmentsCreated uint64

	mu sync.Mutex
}

// AccumulatorStats represents accumulator state for monitoring.
type AccumulatorStats struct {
	BufferedBytes    int     `json:"buffered_bytes"`
	BufferedDuration float64 `json:"buffered_duration_sec"`
	Speaking         bool    `json:"speaking"`
	SegmentsCreated  uint64  `json:"segments_created"`
}

// NewAccumulator creates a segment accumulator with the given timing policy.
func NewAccumulator(config AccumulatorConfig) *Accumulator {
	if config.Channels < 1 {
		config.Channels = 1
	}

	return &Accumulator{config: config}
}

// Ingest appends one chunk to the buffer and evaluates the trigger policy.
// It returns a completed segment when a trigger fires, nil otherwise.
//
// Triggers, first match wins:
//  1. buffered duration reached the maximum segment duration
//  2. speech was observed, the buffer passed the minimum duration, and the
//     silence since the last voice activity exceeded the silence timeout
//  3. the buffer passed the minimum duration and the forced interval elapsed
//     since the last flush; this fires even if speech was never observed
func (a *Accumulator) Ingest(chunk []byte, sampleRate int, hasVoice bool) *Segment {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()

	if a.sampleRate == 0 {
		a.sampleRate = sampleRate
		a.lastFlush = now
	}

	a.buf = append(a.buf, chunk...)

	if hasVoice {
		a.speaking = true
		a.lastVoice = now
	}

	buffered := a.bufferedDuration()

	switch {
	case buffered >= a.config.MaxSegmentDuration:
		return a.flush(now)

	case a.speaking &&
		buffered >= a.config.MinSegmentDuration &&
		now.Sub(a.lastVoice) >= a.config.SilenceTimeout:
		return a.flush(now)

	case buffered >= a.config.MinSegmentDuration &&
		now.Sub(a.lastFlush) >= a.config.ForcedInterval:
		return a.flush(now)
	}

	return nil
}

// FinalFlush returns whatever audio remains buffered, regardless of the
// minimum duration. Used once at shutdown so captured audio is not lost.
// Returns nil when the buffer is empty.
func (a *Accumulator) FinalFlush() *Segment {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.buf) == 0 {
		return nil
	}

	return a.flush(time.Now())
}

// flush snapshots the buffer into a segment and resets accumulation state.
// Caller must hold the mutex.
func (a *Accumulator) flush(now time.Time) *Segment {
	bps := a.bytesPerSecond()

	seg := &Segment{
		ID:         uuid.NewString(),
		Data:       a.buf,
		SampleRate: a.sampleRate,
		Channels:   a.config.Channels,
		Start:      float64(a.consumedBytes) / bps,
		End:        float64(a.consumedBytes+int64(len(a.buf))) / bps,
		CreatedAt:  now,
	}

	a.consumedBytes += int64(len(a.buf))
	a.buf = make([]byte, 0, len(seg.Data))
	a.speaking = false
	a.lastFlush = now
	a.segmentsCreated++

	return seg
}

// bufferedDuration derives the buffered audio duration from the byte count.
// Caller must hold the mutex.
func (a *Accumulator) bufferedDuration() time.Duration {
	if a.sampleRate == 0 {
		return 0
	}

	seconds := float64(len(a.buf)) / a.bytesPerSecond()
	return time.Duration(seconds * float64(time.Second))
}

// bytesPerSecond returns the byte rate of the raw capture format.
// Caller must hold the mutex; sampleRate must be latched.
func (a *Accumulator) bytesPerSecond() float64 {
	rate := a.sampleRate
	if rate == 0 {
		rate = 1
	}

	return float64(a.config.Channels * bytesPerSample * rate)
}

// GetStats returns current accumulator statistics.
func (a *Accumulator) GetStats() AccumulatorStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	return AccumulatorStats{
		BufferedBytes:    len(a.buf),
		BufferedDuration: a.bufferedDuration().Seconds(),
		Speaking:         a.speaking,
		SegmentsCreated:  a.segmentsCreated,
	}
}
