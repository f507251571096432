package transcript

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"
)

// TranslationFailedMarker is written to TranslatedText when the translation
// backend fails; translation errors never propagate to the caller.
const TranslationFailedMarker = "[translation failed]"

// TranscriptSegment is one recognized utterance in the transcript. Segments
// are mutated in place when a later recognition result refines them.
type TranscriptSegment struct {
	ID               string  `json:"id"`
	Text             string  `json:"text"`
	Language         string  `json:"language"`
	NeedsTranslation bool    `json:"needs_translation"`
	Start            float64 `json:"start"` // seconds, half-open interval
	End              float64 `json:"end"`
	TranslatedText   string  `json:"translated_text,omitempty"`
	Final            bool    `json:"final"`
}

// EventType identifies the outcome of a merge or a pipeline status change.
type EventType string

const (
	EventCreated   EventType = "created"
	EventRefined   EventType = "refined"
	EventDiscarded EventType = "discarded"
	EventStatus    EventType = "status"
)

// Event is delivered to subscribers on every merge outcome and status change.
type Event struct {
	Type    EventType          `json:"type"`
	Segment *TranscriptSegment `json:"segment,omitempty"`
	Status  string             `json:"status,omitempty"`
}

// Translator converts text between languages. Implementations must be safe
// for concurrent use.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// TranslationMetrics records translation attempts and failures. Implementations
// must be safe for concurrent use.
type TranslationMetrics interface {
	RecordTranslationRequest()
	RecordTranslationFailure()
}

// MergerConfig contains the duplicate-merge policy and translation wiring.
type MergerConfig struct {
	TimeWindow          float64 // max start-time delta in seconds for a match
	SimilarityThreshold float64 // character-overlap score above which texts match
	RecentWindow        int     // how many recent segments are candidates
	HistoryLimit        int     // retained history bound, oldest evicted

	Translator         Translator // nil disables translation
	SourceLanguage     string     // language that requires translation
	TargetLanguage     string
	TranslationTimeout time.Duration

	Metrics TranslationMetrics // may be nil
}

// MergerStats represents merger statistics for monitoring.
type MergerStats struct {
	HistorySize uint64 `json:"history_size"`
	Created     uint64 `json:"created"`
	Refined     uint64 `json:"refined"`
	Discarded   uint64 `json:"discarded"`
	Evicted     uint64 `json:"evicted"`
}

// Merger maintains the bounded transcript history and merges incoming
// segments into it. All merge decisions are serialized under one mutex so
// concurrent refinements cannot corrupt an entry.
type Merger struct {
	config  MergerConfig
	logger  *slog.Logger
	history []*TranscriptSegment

	created   uint64
	refined   uint64
	discarded uint64
	evicted   uint64

	subscribers map[int]chan Event
	nextSubID   int

	mu sync.Mutex
}

// NewMerger creates a transcript merger.
func NewMerger(config MergerConfig, logger *slog.Logger) *Merger {
	if config.TranslationTimeout <= 0 {
		config.TranslationTimeout = 15 * time.Second
	}

	return &Merger{
		config:      config,
		logger:      logger,
		subscribers: make(map[int]chan Event),
	}
}

// Merge folds a newly recognized segment into the history. When a recent
// segment covers the same utterance the incoming text either refines it in
// place (if strictly longer) or is discarded as a duplicate; otherwise the
// segment is appended. Never blocks on translation: translated text is filled
// asynchronously.
func (m *Merger) Merge(seg *TranscriptSegment) {
	m.mu.Lock()

	if existing := m.findMatch(seg); existing != nil {
		if len(seg.Text) > len(existing.Text) {
			existing.Text = seg.Text
			existing.End = seg.End
			m.refined++

			m.logger.Debug("Transcript segment refined",
				slog.String("segment_id", existing.ID),
				slog.String("text", existing.Text),
				slog.Float64("start", existing.Start),
				slog.Float64("end", existing.End),
			)

			retranslate := existing.NeedsTranslation && m.config.Translator != nil
			m.publishLocked(Event{Type: EventRefined, Segment: existing.snapshot()})
			m.mu.Unlock()

			if retranslate {
				go m.translate(existing)
			}
			return
		}

		m.discarded++
		m.logger.Debug("Duplicate transcript segment discarded",
			slog.String("segment_id", seg.ID),
			slog.String("text", seg.Text),
			slog.String("kept_segment_id", existing.ID),
		)
		m.publishLocked(Event{Type: EventDiscarded, Segment: seg.snapshot()})
		m.mu.Unlock()
		return
	}

	m.history = append(m.history, seg)
	m.created++

	for len(m.history) > m.config.HistoryLimit {
		m.history[0] = nil
		m.history = m.history[1:]
		m.evicted++
	}

	m.logger.Info("Transcript segment added",
		slog.String("segment_id", seg.ID),
		slog.String("text", seg.Text),
		slog.String("language", seg.Language),
		slog.Float64("start", seg.Start),
		slog.Float64("end", seg.End),
	)

	translate := seg.NeedsTranslation && m.config.Translator != nil
	m.publishLocked(Event{Type: EventCreated, Segment: seg.snapshot()})
	m.mu.Unlock()

	if translate {
		go m.translate(seg)
	}
}

// findMatch scans the most recent segments, newest first, for one covering
// the same utterance. Caller must hold the mutex.
func (m *Merger) findMatch(seg *TranscriptSegment) *TranscriptSegment {
	first := len(m.history) - m.config.RecentWindow
	if first < 0 {
		first = 0
	}

	for i := len(m.history) - 1; i >= first; i-- {
		candidate := m.history[i]

		if math.Abs(seg.Start-candidate.Start) > m.config.TimeWindow {
			continue
		}

		if isSubstring(seg.Text, candidate.Text) ||
			overlapSimilarity(seg.Text, candidate.Text) > m.config.SimilarityThreshold {
			return candidate
		}
	}

	return nil
}

// translate fills the segment's translated text, writing the failure marker
// on any error. Runs outside the merger lock.
func (m *Merger) translate(seg *TranscriptSegment) {
	ctx, cancel := context.WithTimeout(context.Background(), m.config.TranslationTimeout)
	defer cancel()

	m.mu.Lock()
	text := seg.Text
	m.mu.Unlock()

	if m.config.Metrics != nil {
		m.config.Metrics.RecordTranslationRequest()
	}

	translated, err := m.config.Translator.Translate(ctx, text,
		m.config.SourceLanguage, m.config.TargetLanguage)
	if err != nil {
		if m.config.Metrics != nil {
			m.config.Metrics.RecordTranslationFailure()
		}
		m.logger.Warn("Translation failed",
			slog.String("segment_id", seg.ID),
			slog.String("error", err.Error()),
		)
		translated = TranslationFailedMarker
	}

	m.mu.Lock()
	seg.TranslatedText = translated
	m.publishLocked(Event{Type: EventRefined, Segment: seg.snapshot()})
	m.mu.Unlock()
}

// History returns a snapshot of the retained transcript, oldest first.
func (m *Merger) History() []TranscriptSegment {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]TranscriptSegment, 0, len(m.history))
	for _, seg := range m.history {
		out = append(out, *seg)
	}

	return out
}

// GetStats returns current merger statistics.
func (m *Merger) GetStats() MergerStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return MergerStats{
		HistorySize: uint64(len(m.history)),
		Created:     m.created,
		Refined:     m.refined,
		Discarded:   m.discarded,
		Evicted:     m.evicted,
	}
}

// Subscribe registers an event channel. The returned cancel function removes
// the subscription. Slow subscribers lose events rather than block merging.
func (m *Merger) Subscribe() (<-chan Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSubID
	m.nextSubID++

	ch := make(chan Event, 64)
	m.subscribers[id] = ch

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		if sub, ok := m.subscribers[id]; ok {
			delete(m.subscribers, id)
			close(sub)
		}
	}
}

// PublishStatus notifies subscribers of a pipeline status change.
func (m *Merger) PublishStatus(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.publishLocked(Event{Type: EventStatus, Status: status})
}

// publishLocked fans an event out to subscribers without blocking.
// Caller must hold the mutex.
func (m *Merger) publishLocked(ev Event) {
	for _, ch := range m.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// snapshot copies the segment so subscribers never observe later mutations.
func (s *TranscriptSegment) snapshot() *TranscriptSegment {
	copied := *s
	return &copied
}

// isSubstring reports whether either text is a case-insensitive substring of
// the other.
func isSubstring(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	return strings.Contains(la, lb) || strings.Contains(lb, la)
}

// overlapSimilarity is a cheap, order-insensitive similarity score: the share
// of the shorter text's characters that appear anywhere in the longer text,
// normalized by the longer text's length.
func overlapSimilarity(a, b string) float64 {
	ra, rb := []rune(strings.ToLower(a)), []rune(strings.ToLower(b))
	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}
	// ra is now the longer text
	if len(ra) == 0 {
		return 0
	}

	present := make(map[rune]bool, len(ra))
	for _, r := range ra {
		present[r] = true
	}

	matched := 0
	for _, r := range rb {
		if present[r] {
			matched++
		}
	}

	return float64(matched) / float64(len(ra))
}
