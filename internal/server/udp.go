package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/skypro1111/live-caption-service/internal/config"
	"github.com/skypro1111/live-caption-service/internal/pipeline"
	"github.com/skypro1111/live-caption-service/internal/protocol"
)

// UDPServer receives capture datagrams and feeds them into the pipeline
type UDPServer struct {
	conn   *net.UDPConn
	config *config.ServerConfig
	logger *slog.Logger
	pipe   *pipeline.Pipeline

	// Concurrency management. The receiver and the processor are waited on
	// separately: the receiver must be fully stopped before the datagram
	// channel closes, or its send select could panic on a closed channel.
	ctx         context.Context
	cancel      context.CancelFunc
	receiverWg  sync.WaitGroup
	processorWg sync.WaitGroup

	// Datagram processing
	datagramChan chan *incomingDatagram

	// Metrics (basic counters for now)
	datagramsReceived  uint64
	datagramsProcessed uint64
	parseErrors        uint64
	rejected           uint64
	mu                 sync.RWMutex
}

// incomingDatagram represents a received UDP datagram with metadata
type incomingDatagram struct {
	data       []byte
	remoteAddr *net.UDPAddr
	timestamp  time.Time
}

// NewUDPServer creates a new UDP capture server instance
func NewUDPServer(cfg *config.ServerConfig, logger *slog.Logger, pipe *pipeline.Pipeline) *UDPServer {
	ctx, cancel := context.WithCancel(context.Background())

	return &UDPServer{
		config:       cfg,
		logger:       logger,
		pipe:         pipe,
		ctx:          ctx,
		cancel:       cancel,
		datagramChan: make(chan *incomingDatagram, 1000), // Buffer for 1000 datagrams
	}
}

// Start begins listening for capture datagrams
func (s *UDPServer) Start() error {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", s.config.BindAddress, s.config.UDPPort))
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP: %w", err)
	}

	s.conn = conn

	if err := s.conn.SetReadBuffer(s.config.BufferSize); err != nil {
		s.logger.Warn("Failed to set UDP read buffer size",
			slog.Int("buffer_size", s.config.BufferSize),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("UDP capture server started",
		slog.String("address", addr.String()),
		slog.Int("buffer_size", s.config.BufferSize),
	)

	// Datagram processing is single-worker: chunk order within the stream
	// must be preserved for the accumulator.
	s.processorWg.Add(1)
	go s.datagramProcessor()

	s.receiverWg.Add(1)
	go s.receiveLoop()

	return nil
}

// Stop gracefully stops the UDP server
func (s *UDPServer) Stop() error {
	s.logger.Info("Stopping UDP capture server...")

	s.cancel()

	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.logger.Warn("Error closing UDP connection", slog.String("error", err.Error()))
		}
	}

	// The receiver must be gone before the channel closes; it still holds a
	// send case on datagramChan until its loop exits.
	s.receiverWg.Wait()

	close(s.datagramChan)

	s.processorWg.Wait()

	s.mu.RLock()
	received := s.datagramsReceived
	processed := s.datagramsProcessed
	parseErrors := s.parseErrors
	rejected := s.rejected
	s.mu.RUnlock()

	s.logger.Info("UDP capture server stopped",
		slog.Uint64("datagrams_received", received),
		slog.Uint64("datagrams_processed", processed),
		slog.Uint64("parse_errors", parseErrors),
		slog.Uint64("rejected", rejected),
	)

	return nil
}

// receiveLoop is the main datagram receiving loop
func (s *UDPServer) receiveLoop() {
	defer s.receiverWg.Done()

	buffer := make([]byte, s.config.BufferSize)

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Info("Receive loop stopping due to context cancellation")
			return
		default:
			// Continue to receive datagrams
		}

		// Set read deadline to check for context cancellation periodically
		if err := s.conn.SetReadDeadline(time.Now().Add(1 * time.Second)); err != nil {
			s.logger.Error("Failed to set read deadline", slog.String("error", err.Error()))
			continue
		}

		n, remoteAddr, err := s.conn.ReadFromUDP(buffer)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue // Check context and try again
			}

			select {
			case <-s.ctx.Done():
				return
			default:
				s.logger.Error("Failed to read UDP datagram", slog.String("error", err.Error()))
				continue
			}
		}

		s.mu.Lock()
		s.datagramsReceived++
		s.mu.Unlock()

		// Copy out: the read buffer is reused
		data := make([]byte, n)
		copy(data, buffer[:n])

		dg := &incomingDatagram{
			data:       data,
			remoteAddr: remoteAddr,
			timestamp:  time.Now(),
		}

		select {
		case s.datagramChan <- dg:
			// Datagram queued successfully
		default:
			s.logger.Warn("Datagram processing queue full, dropping datagram",
				slog.String("remote_addr", remoteAddr.String()),
				slog.Int("datagram_size", n),
			)
		}
	}
}

// datagramProcessor processes datagrams from the channel in arrival order
func (s *UDPServer) datagramProcessor() {
	defer s.processorWg.Done()

	s.logger.Debug("Datagram processor started")

	for dg := range s.datagramChan {
		s.handleDatagram(dg)
	}

	s.logger.Debug("Datagram processor stopped")
}

// handleDatagram parses and ingests a single capture datagram
func (s *UDPServer) handleDatagram(dg *incomingDatagram) {
	parsed, err := protocol.ParseDatagram(dg.data)
	if err != nil {
		s.mu.Lock()
		s.parseErrors++
		s.mu.Unlock()

		s.logger.Error("Failed to parse datagram",
			slog.String("remote_addr", dg.remoteAddr.String()),
			slog.Int("datagram_size", len(dg.data)),
			slog.String("error", err.Error()),
		)
		return
	}

	if !s.pipe.Ingest(parsed.Audio, parsed.SampleRate) {
		s.mu.Lock()
		s.rejected++
		s.mu.Unlock()

		s.logger.Debug("Chunk rejected, pipeline not running",
			slog.String("remote_addr", dg.remoteAddr.String()),
			slog.Int("audio_size", len(parsed.Audio)),
		)
		return
	}

	s.mu.Lock()
	s.datagramsProcessed++
	s.mu.Unlock()
}

// GetStatistics returns current server statistics
func (s *UDPServer) GetStatistics() ServerStatistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return ServerStatistics{
		DatagramsReceived:  s.datagramsReceived,
		DatagramsProcessed: s.datagramsProcessed,
		ParseErrors:        s.parseErrors,
		Rejected:           s.rejected,
		QueueSize:          uint64(len(s.datagramChan)),
		QueueCapacity:      uint64(cap(s.datagramChan)),
	}
}

// ServerStatistics represents capture server performance metrics
type ServerStatistics struct {
	DatagramsReceived  uint64 `json:"datagrams_received"`
	DatagramsProcessed uint64 `json:"datagrams_processed"`
	ParseErrors        uint64 `json:"parse_errors"`
	Rejected           uint64 `json:"rejected"`
	QueueSize          uint64 `json:"queue_size"`
	QueueCapacity      uint64 `json:"queue_capacity"`
}
