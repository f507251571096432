package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	HTTP        HTTPConfig        `yaml:"http"`
	Audio       AudioConfig       `yaml:"audio"`
	VAD         VADConfig         `yaml:"vad"`
	Merge       MergeConfig       `yaml:"merge"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Translation TranslationConfig `yaml:"translation"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig contains UDP capture ingress configuration
type ServerConfig struct {
	UDPPort     int    `yaml:"udp_port"`
	BindAddress string `yaml:"bind_address"`
	BufferSize  int    `yaml:"buffer_size"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// AudioConfig contains segmentation and format conversion parameters
type AudioConfig struct {
	Channels           int     `yaml:"channels"`
	TargetSampleRate   int     `yaml:"target_sample_rate"`
	MinSegmentDuration float64 `yaml:"min_segment_duration"` // seconds
	MaxSegmentDuration float64 `yaml:"max_segment_duration"` // seconds
	SilenceTimeout     float64 `yaml:"silence_timeout"`      // seconds
	ForcedInterval     float64 `yaml:"forced_interval"`      // seconds
	MinSegmentBytes    int     `yaml:"min_segment_bytes"`    // converted payload size
}

// VADConfig contains voice activity gate thresholds
type VADConfig struct {
	EnergyThreshold float64 `yaml:"energy_threshold"`
	PeakThreshold   float64 `yaml:"peak_threshold"`
	EnergyScale     float64 `yaml:"energy_scale"`
}

// MergeConfig contains transcript merge policy parameters
type MergeConfig struct {
	TimeWindow          float64 `yaml:"time_window"` // seconds
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	RecentWindow        int     `yaml:"recent_window"`
	HistoryLimit        int     `yaml:"history_limit"`
}

// RecognitionConfig contains speech recognition backend configuration
type RecognitionConfig struct {
	Backend       string `yaml:"backend"` // "http" or "openai"
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxRetries    int    `yaml:"max_retries"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// TranslationConfig contains translation backend configuration
type TranslationConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Endpoint       string `yaml:"endpoint"`
	APIKey         string `yaml:"api_key"`
	SourceLanguage string `yaml:"source_language"` // language that requires translation
	TargetLanguage string `yaml:"target_language"`
	Timeout        int    `yaml:"timeout"` // seconds
}

// PipelineConfig contains pipeline lifecycle parameters
type PipelineConfig struct {
	ShutdownGrace int `yaml:"shutdown_grace"` // seconds
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file. API keys may be supplied
// via the RECOGNITION_API_KEY and TRANSLATION_API_KEY environment variables,
// which take precedence over the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if key := os.Getenv("RECOGNITION_API_KEY"); key != "" {
		config.Recognition.APIKey = key
	}
	if key := os.Getenv("TRANSLATION_API_KEY"); key != "" {
		config.Translation.APIKey = key
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}

	if err := c.Merge.Validate(); err != nil {
		return fmt.Errorf("merge config: %w", err)
	}

	if err := c.Recognition.Validate(); err != nil {
		return fmt.Errorf("recognition config: %w", err)
	}

	if err := c.Translation.Validate(); err != nil {
		return fmt.Errorf("translation config: %w", err)
	}

	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.UDPPort < 1 || s.UDPPort > 65535 {
		return fmt.Errorf("udp_port must be between 1 and 65535, got %d", s.UDPPort)
	}

	if s.BindAddress == "" {
		return fmt.Errorf("bind_address cannot be empty")
	}

	if s.BufferSize < 1024 {
		return fmt.Errorf("buffer_size must be at least 1024 bytes, got %d", s.BufferSize)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.Channels < 1 {
		return fmt.Errorf("channels must be at least 1, got %d", a.Channels)
	}

	if a.TargetSampleRate != 16000 {
		return fmt.Errorf("target_sample_rate must be 16000 Hz, got %d", a.TargetSampleRate)
	}

	if a.MinSegmentDuration <= 0 {
		return fmt.Errorf("min_segment_duration must be positive, got %f", a.MinSegmentDuration)
	}

	if a.MaxSegmentDuration <= a.MinSegmentDuration {
		return fmt.Errorf("max_segment_duration (%f) must be greater than min_segment_duration (%f)",
			a.MaxSegmentDuration, a.MinSegmentDuration)
	}

	if a.SilenceTimeout <= 0 {
		return fmt.Errorf("silence_timeout must be positive, got %f", a.SilenceTimeout)
	}

	if a.ForcedInterval <= 0 {
		return fmt.Errorf("forced_interval must be positive, got %f", a.ForcedInterval)
	}

	if a.MinSegmentBytes < 0 {
		return fmt.Errorf("min_segment_bytes cannot be negative, got %d", a.MinSegmentBytes)
	}

	return nil
}

// Validate validates VAD configuration
func (v *VADConfig) Validate() error {
	if v.EnergyThreshold < 0 {
		return fmt.Errorf("energy_threshold cannot be negative, got %f", v.EnergyThreshold)
	}

	if v.PeakThreshold < 0 || v.PeakThreshold > 1 {
		return fmt.Errorf("peak_threshold must be between 0 and 1, got %f", v.PeakThreshold)
	}

	if v.EnergyScale <= 0 {
		return fmt.Errorf("energy_scale must be positive, got %f", v.EnergyScale)
	}

	return nil
}

// Validate validates merge configuration
func (m *MergeConfig) Validate() error {
	if m.TimeWindow <= 0 {
		return fmt.Errorf("time_window must be positive, got %f", m.TimeWindow)
	}

	if m.SimilarityThreshold <= 0 || m.SimilarityThreshold >= 1 {
		return fmt.Errorf("similarity_threshold must be between 0 and 1 (exclusive), got %f", m.SimilarityThreshold)
	}

	if m.RecentWindow < 1 {
		return fmt.Errorf("recent_window must be at least 1, got %d", m.RecentWindow)
	}

	if m.HistoryLimit < m.RecentWindow {
		return fmt.Errorf("history_limit (%d) must be at least recent_window (%d)",
			m.HistoryLimit, m.RecentWindow)
	}

	return nil
}

// Validate validates recognition configuration
func (r *RecognitionConfig) Validate() error {
	validBackends := map[string]bool{"http": true, "openai": true}
	if !validBackends[r.Backend] {
		return fmt.Errorf("backend must be 'http' or 'openai', got '%s'", r.Backend)
	}

	if r.Backend == "http" && r.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty for http backend")
	}

	if r.APIKey == "" {
		return fmt.Errorf("api_key cannot be empty")
	}

	if r.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", r.Timeout)
	}

	if r.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", r.MaxRetries)
	}

	if r.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", r.MaxConcurrent)
	}

	return nil
}

// Validate validates translation configuration
func (t *TranslationConfig) Validate() error {
	if !t.Enabled {
		return nil
	}

	if t.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty when translation is enabled")
	}

	if t.SourceLanguage == "" {
		return fmt.Errorf("source_language cannot be empty when translation is enabled")
	}

	if t.TargetLanguage == "" {
		return fmt.Errorf("target_language cannot be empty when translation is enabled")
	}

	if t.SourceLanguage == t.TargetLanguage {
		return fmt.Errorf("source_language and target_language must differ, both are '%s'", t.SourceLanguage)
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	return nil
}

// Validate validates pipeline configuration
func (p *PipelineConfig) Validate() error {
	if p.ShutdownGrace < 1 {
		return fmt.Errorf("shutdown_grace must be at least 1 second, got %d", p.ShutdownGrace)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetMinSegmentDuration returns the minimum segment duration as a time.Duration
func (a *AudioConfig) GetMinSegmentDuration() time.Duration {
	return time.Duration(a.MinSegmentDuration * float64(time.Second))
}

// GetMaxSegmentDuration returns the maximum segment duration as a time.Duration
func (a *AudioConfig) GetMaxSegmentDuration() time.Duration {
	return time.Duration(a.MaxSegmentDuration * float64(time.Second))
}

// GetSilenceTimeout returns the silence timeout as a time.Duration
func (a *AudioConfig) GetSilenceTimeout() time.Duration {
	return time.Duration(a.SilenceTimeout * float64(time.Second))
}

// GetForcedInterval returns the forced flush interval as a time.Duration
func (a *AudioConfig) GetForcedInterval() time.Duration {
	return time.Duration(a.ForcedInterval * float64(time.Second))
}

// GetTimeoutDuration returns the recognition timeout as a time.Duration
func (r *RecognitionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(r.Timeout) * time.Second
}

// GetTimeoutDuration returns the translation timeout as a time.Duration
func (t *TranslationConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

// GetShutdownGrace returns the shutdown grace period as a time.Duration
func (p *PipelineConfig) GetShutdownGrace() time.Duration {
	return time.Duration(p.ShutdownGrace) * time.Second
}
