package transcript

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMergerConfig() MergerConfig {
	return MergerConfig{
		TimeWindow:          3.0,
		SimilarityThreshold: 0.6,
		RecentWindow:        5,
		HistoryLimit:        100,
	}
}

type fakeTranslator struct {
	text string
	err  error
}

func (f *fakeTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	return f.text, f.err
}

type fakeTranslationMetrics struct {
	requests int64
	failures int64
}

func (f *fakeTranslationMetrics) RecordTranslationRequest() {
	atomic.AddInt64(&f.requests, 1)
}

func (f *fakeTranslationMetrics) RecordTranslationFailure() {
	atomic.AddInt64(&f.failures, 1)
}

// waitForTranslation polls the history until the first segment carries
// translated text or the timeout expires.
func waitForTranslation(t *testing.T, m *Merger) string {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		history := m.History()
		if len(history) > 0 && history[0].TranslatedText != "" {
			return history[0].TranslatedText
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatal("Translation result never arrived")
	return ""
}

func TestMergerRefinesLongerText(t *testing.T) {
	m := NewMerger(testMergerConfig(), testLogger())

	m.Merge(&TranscriptSegment{ID: "s1", Text: "hello wor", Start: 10.0, End: 13.0, Final: true})
	m.Merge(&TranscriptSegment{ID: "s2", Text: "hello world", Start: 10.5, End: 14.0, Final: true})

	history := m.History()
	if len(history) != 1 {
		t.Fatalf("Expected 1 history entry after refinement, got %d", len(history))
	}

	if history[0].ID != "s1" {
		t.Errorf("Refinement should keep the original segment ID, got %s", history[0].ID)
	}

	if history[0].Text != "hello world" {
		t.Errorf("Expected refined text 'hello world', got '%s'", history[0].Text)
	}

	if history[0].End != 14.0 {
		t.Errorf("Expected refined end 14.0, got %f", history[0].End)
	}

	stats := m.GetStats()
	if stats.Refined != 1 {
		t.Errorf("Expected 1 refinement, got %d", stats.Refined)
	}
}

func TestMergerDiscardsDuplicateReplay(t *testing.T) {
	m := NewMerger(testMergerConfig(), testLogger())

	m.Merge(&TranscriptSegment{ID: "s1", Text: "hello world", Start: 10.0, End: 13.0})
	m.Merge(&TranscriptSegment{ID: "s2", Text: "hello world", Start: 10.0, End: 13.0})

	history := m.History()
	if len(history) != 1 {
		t.Fatalf("Expected 1 history entry after duplicate, got %d", len(history))
	}

	stats := m.GetStats()
	if stats.Discarded != 1 {
		t.Errorf("Expected 1 discarded segment, got %d", stats.Discarded)
	}
	if stats.Created != 1 {
		t.Errorf("Expected 1 created segment, got %d", stats.Created)
	}
}

func TestMergerAppendsDistinctSegments(t *testing.T) {
	m := NewMerger(testMergerConfig(), testLogger())

	m.Merge(&TranscriptSegment{ID: "s1", Text: "hello world", Start: 10.0, End: 13.0})
	// Similar text but outside the time window: not a match
	m.Merge(&TranscriptSegment{ID: "s2", Text: "hello world again", Start: 30.0, End: 33.0})

	history := m.History()
	if len(history) != 2 {
		t.Fatalf("Expected 2 history entries, got %d", len(history))
	}

	if history[0].ID != "s1" || history[1].ID != "s2" {
		t.Error("History should preserve insertion order")
	}
}

func TestMergerHistoryEviction(t *testing.T) {
	config := testMergerConfig()
	config.HistoryLimit = 10

	m := NewMerger(config, testLogger())

	for i := 0; i < 15; i++ {
		m.Merge(&TranscriptSegment{
			ID:    fmt.Sprintf("s%d", i),
			Text:  fmt.Sprintf("utterance number %d spoken here", i),
			Start: float64(i * 100),
			End:   float64(i*100 + 3),
		})
	}

	history := m.History()
	if len(history) != 10 {
		t.Fatalf("Expected history capped at 10, got %d", len(history))
	}

	if history[0].ID != "s5" {
		t.Errorf("Expected oldest retained segment s5, got %s", history[0].ID)
	}

	stats := m.GetStats()
	if stats.Evicted != 5 {
		t.Errorf("Expected 5 evicted segments, got %d", stats.Evicted)
	}
}

func TestMergerTranslationSuccess(t *testing.T) {
	config := testMergerConfig()
	config.Translator = &fakeTranslator{text: "привіт світ"}
	config.SourceLanguage = "en"
	config.TargetLanguage = "uk"

	m := NewMerger(config, testLogger())

	m.Merge(&TranscriptSegment{
		ID: "s1", Text: "hello world", Language: "en",
		NeedsTranslation: true, Start: 10.0, End: 13.0,
	})

	translated := waitForTranslation(t, m)
	if translated != "привіт світ" {
		t.Errorf("Expected translated text, got '%s'", translated)
	}
}

func TestMergerTranslationFailureMarker(t *testing.T) {
	config := testMergerConfig()
	config.Translator = &fakeTranslator{err: errors.New("backend down")}
	config.SourceLanguage = "en"
	config.TargetLanguage = "uk"

	m := NewMerger(config, testLogger())

	m.Merge(&TranscriptSegment{
		ID: "s1", Text: "hello world", Language: "en",
		NeedsTranslation: true, Start: 10.0, End: 13.0,
	})

	translated := waitForTranslation(t, m)
	if translated != TranslationFailedMarker {
		t.Errorf("Expected failure marker '%s', got '%s'", TranslationFailedMarker, translated)
	}
}

func TestMergerTranslationMetrics(t *testing.T) {
	counts := &fakeTranslationMetrics{}

	config := testMergerConfig()
	config.Translator = &fakeTranslator{err: errors.New("backend down")}
	config.SourceLanguage = "en"
	config.TargetLanguage = "uk"
	config.Metrics = counts

	m := NewMerger(config, testLogger())

	m.Merge(&TranscriptSegment{
		ID: "s1", Text: "hello world", Language: "en",
		NeedsTranslation: true, Start: 10.0, End: 13.0,
	})

	waitForTranslation(t, m)

	if got := atomic.LoadInt64(&counts.requests); got != 1 {
		t.Errorf("Expected 1 translation request recorded, got %d", got)
	}
	if got := atomic.LoadInt64(&counts.failures); got != 1 {
		t.Errorf("Expected 1 translation failure recorded, got %d", got)
	}

	// A successful translation records the request but no failure
	counts = &fakeTranslationMetrics{}
	config.Translator = &fakeTranslator{text: "привіт світ"}
	config.Metrics = counts

	m = NewMerger(config, testLogger())

	m.Merge(&TranscriptSegment{
		ID: "s1", Text: "hello world", Language: "en",
		NeedsTranslation: true, Start: 10.0, End: 13.0,
	})

	waitForTranslation(t, m)

	if got := atomic.LoadInt64(&counts.requests); got != 1 {
		t.Errorf("Expected 1 translation request recorded, got %d", got)
	}
	if got := atomic.LoadInt64(&counts.failures); got != 0 {
		t.Errorf("Expected no translation failures recorded, got %d", got)
	}
}

func TestMergerSkipsTranslationWhenNotNeeded(t *testing.T) {
	config := testMergerConfig()
	config.Translator = &fakeTranslator{text: "should not appear"}
	config.SourceLanguage = "en"
	config.TargetLanguage = "uk"

	m := NewMerger(config, testLogger())

	m.Merge(&TranscriptSegment{
		ID: "s1", Text: "привіт світ", Language: "uk",
		NeedsTranslation: false, Start: 10.0, End: 13.0,
	})

	time.Sleep(50 * time.Millisecond)

	history := m.History()
	if history[0].TranslatedText != "" {
		t.Errorf("Segment should not be translated, got '%s'", history[0].TranslatedText)
	}
}

func TestMergerEvents(t *testing.T) {
	m := NewMerger(testMergerConfig(), testLogger())

	events, cancel := m.Subscribe()
	defer cancel()

	m.Merge(&TranscriptSegment{ID: "s1", Text: "hello wor", Start: 10.0, End: 13.0})
	m.Merge(&TranscriptSegment{ID: "s2", Text: "hello world", Start: 10.5, End: 14.0})
	m.PublishStatus("draining")

	expected := []EventType{EventCreated, EventRefined, EventStatus}
	for _, want := range expected {
		select {
		case ev := <-events:
			if ev.Type != want {
				t.Errorf("Expected event type %s, got %s", want, ev.Type)
			}
		case <-time.After(time.Second):
			t.Fatalf("Timed out waiting for %s event", want)
		}
	}
}

func TestOverlapSimilarity(t *testing.T) {
	if got := overlapSimilarity("", ""); got != 0 {
		t.Errorf("Expected 0 for empty texts, got %f", got)
	}

	if got := overlapSimilarity("abc", "abc"); got != 1.0 {
		t.Errorf("Expected 1.0 for identical texts, got %f", got)
	}

	// No shared characters
	if got := overlapSimilarity("abc", "xyz"); got != 0 {
		t.Errorf("Expected 0 for disjoint texts, got %f", got)
	}
}

func TestIsSubstring(t *testing.T) {
	if !isSubstring("Hello World", "hello") {
		t.Error("Expected case-insensitive substring match")
	}

	if !isSubstring("world", "Hello World") {
		t.Error("Expected substring match in either direction")
	}

	if isSubstring("abc", "xyz") {
		t.Error("Unrelated texts should not match")
	}
}
