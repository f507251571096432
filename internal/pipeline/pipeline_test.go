package pipeline

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skypro1111/live-caption-service/internal/transcript"
	"github.com/skypro1111/live-caption-service/internal/vad"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRecognizer returns canned text and counts invocations.
type fakeRecognizer struct {
	text  string
	err   error
	delay time.Duration

	calls int64
}

func (f *fakeRecognizer) Recognize(ctx context.Context, wavData []byte) (string, error) {
	atomic.AddInt64(&f.calls, 1)

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	return f.text, f.err
}

func (f *fakeRecognizer) callCount() int64 {
	return atomic.LoadInt64(&f.calls)
}

// voiceChunk builds a raw mono float32 chunk of the given duration at 16kHz
// with constant amplitude.
func voiceChunk(d time.Duration, amplitude float32) []byte {
	samples := int(d.Seconds() * 16000)
	out := make([]byte, samples*4)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(amplitude))
	}
	return out
}

func testConfig() Config {
	return Config{
		Channels:           1,
		MinSegmentDuration: 10 * time.Millisecond,
		MaxSegmentDuration: 50 * time.Millisecond,
		SilenceTimeout:     time.Hour,
		ForcedInterval:     time.Hour,
		MinSegmentBytes:    100,
		RecognitionTimeout: 2 * time.Second,
		ShutdownGrace:      2 * time.Second,
		SourceLanguage:     "en",
		TargetLanguage:     "uk",
	}
}

func newTestPipeline(config Config, rec *fakeRecognizer) (*Pipeline, *transcript.Merger) {
	merger := transcript.NewMerger(transcript.MergerConfig{
		TimeWindow:          3.0,
		SimilarityThreshold: 0.6,
		RecentWindow:        5,
		HistoryLimit:        100,
	}, testLogger())

	return New(config, vad.NewDefaultGate(), rec, merger, nil, testLogger()), merger
}

// waitForHistory polls until the transcript reaches the expected size.
func waitForHistory(t *testing.T, merger *transcript.Merger, want int) []transcript.TranscriptSegment {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		history := merger.History()
		if len(history) >= want {
			return history
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("Transcript never reached %d segments", want)
	return nil
}

func TestPipelineRejectsChunksWhenNotRunning(t *testing.T) {
	pipe, _ := newTestPipeline(testConfig(), &fakeRecognizer{text: "hi"})

	if pipe.Ingest(voiceChunk(10*time.Millisecond, 0.5), 16000) {
		t.Error("Ingest should be rejected before Start")
	}

	if pipe.State() != StateIdle {
		t.Errorf("Expected idle state, got %s", pipe.State())
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	rec := &fakeRecognizer{text: "hello world from the pipeline"}
	pipe, merger := newTestPipeline(testConfig(), rec)

	pipe.Start()
	defer pipe.Stop()

	if pipe.State() != StateRunning {
		t.Fatalf("Expected running state, got %s", pipe.State())
	}

	// 50ms of loud audio hits the max segment duration trigger
	if !pipe.Ingest(voiceChunk(50*time.Millisecond, 0.5), 16000) {
		t.Fatal("Ingest should succeed while running")
	}

	history := waitForHistory(t, merger, 1)

	if history[0].Text != "hello world from the pipeline" {
		t.Errorf("Unexpected transcript text: '%s'", history[0].Text)
	}

	if history[0].Language != "en" {
		t.Errorf("Expected language 'en', got '%s'", history[0].Language)
	}

	if !history[0].Final {
		t.Error("Pipeline segments should be final")
	}
}

func TestPipelineDropsShortSegments(t *testing.T) {
	config := testConfig()
	config.MinSegmentBytes = 1 << 20 // larger than any test segment

	rec := &fakeRecognizer{text: "should never be called"}
	pipe, merger := newTestPipeline(config, rec)

	pipe.Start()

	pipe.Ingest(voiceChunk(50*time.Millisecond, 0.5), 16000)

	pipe.Stop()

	if rec.callCount() != 0 {
		t.Errorf("Recognizer should not be called for short segments, got %d calls", rec.callCount())
	}

	if len(merger.History()) != 0 {
		t.Error("Short segments should not reach the transcript")
	}

	if pipe.GetStats().SegmentsDroppedShort == 0 {
		t.Error("Expected dropped-short counter to increase")
	}
}

func TestPipelineDropsFailedRecognitions(t *testing.T) {
	rec := &fakeRecognizer{err: errors.New("backend unavailable")}
	pipe, merger := newTestPipeline(testConfig(), rec)

	pipe.Start()
	pipe.Ingest(voiceChunk(50*time.Millisecond, 0.5), 16000)
	pipe.Stop()

	if len(merger.History()) != 0 {
		t.Error("Failed recognitions should not reach the transcript")
	}

	if pipe.GetStats().RecognitionFailures == 0 {
		t.Error("Expected recognition failure counter to increase")
	}
}

func TestPipelineDropsEmptyRecognitionText(t *testing.T) {
	rec := &fakeRecognizer{text: ""}
	pipe, merger := newTestPipeline(testConfig(), rec)

	pipe.Start()
	pipe.Ingest(voiceChunk(50*time.Millisecond, 0.5), 16000)
	pipe.Stop()

	if rec.callCount() == 0 {
		t.Error("Recognizer should have been called")
	}

	if len(merger.History()) != 0 {
		t.Error("Empty recognitions should not reach the transcript")
	}
}

func TestPipelineStopFlushesBufferedAudio(t *testing.T) {
	config := testConfig()
	// Buffered audio never reaches a trigger on its own
	config.MinSegmentDuration = time.Hour
	config.MaxSegmentDuration = 2 * time.Hour

	rec := &fakeRecognizer{text: "final words"}
	pipe, merger := newTestPipeline(config, rec)

	pipe.Start()
	pipe.Ingest(voiceChunk(30*time.Millisecond, 0.5), 16000)

	pipe.Stop()

	if pipe.State() != StateStopped {
		t.Errorf("Expected stopped state, got %s", pipe.State())
	}

	history := merger.History()
	if len(history) != 1 {
		t.Fatalf("Expected 1 transcript segment from the final flush, got %d", len(history))
	}

	if history[0].Text != "final words" {
		t.Errorf("Unexpected transcript text: '%s'", history[0].Text)
	}

	// Chunks after Stop are rejected
	if pipe.Ingest(voiceChunk(10*time.Millisecond, 0.5), 16000) {
		t.Error("Ingest should be rejected after Stop")
	}
}

func TestPipelineStopBoundedBySlowRecognition(t *testing.T) {
	config := testConfig()
	config.ShutdownGrace = 100 * time.Millisecond

	rec := &fakeRecognizer{text: "slow", delay: 10 * time.Second}
	pipe, merger := newTestPipeline(config, rec)

	pipe.Start()
	pipe.Ingest(voiceChunk(50*time.Millisecond, 0.5), 16000)

	// Give the dispatcher time to start the recognition
	time.Sleep(50 * time.Millisecond)

	startTime := time.Now()
	pipe.Stop()
	elapsed := time.Since(startTime)

	if elapsed > 2*time.Second {
		t.Errorf("Stop took %v, should be bounded by the grace period", elapsed)
	}

	if pipe.State() != StateStopped {
		t.Errorf("Expected stopped state, got %s", pipe.State())
	}

	if len(merger.History()) != 0 {
		t.Error("Cancelled recognition should not reach the transcript")
	}
}
