package websocket

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ob1hnk/triolingo/internal/audio"
)

const (
	defaultIdleTimeout     = 10 * time.Minute
	defaultCleanupInterval = time.Minute
)

// SessionCleanupService drops audio uploads that stopped receiving chunks
// without a SESSION_END
type SessionCleanupService struct {
	assembler   *audio.Assembler
	idleTimeout time.Duration
	interval    time.Duration
	logger      *zap.Logger
	stopChan    chan struct{}
	stopOnce    sync.Once
}

// NewSessionCleanupService creates a new session cleanup service. Non
// positive durations select the defaults.
func NewSessionCleanupService(assembler *audio.Assembler, idleTimeout, interval time.Duration, logger *zap.Logger) *SessionCleanupService {
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleTimeout
	}
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	return &SessionCleanupService{
		assembler:   assembler,
		idleTimeout: idleTimeout,
		interval:    interval,
		logger:      logger,
		stopChan:    make(chan struct{}),
	}
}

// Start begins the background cleanup process
func (s *SessionCleanupService) Start() {
	go s.cleanupLoop()
	s.logger.Info("Session cleanup service started",
		zap.Duration("idleTimeout", s.idleTimeout),
		zap.Duration("interval", s.interval))
}

// Stop gracefully stops the cleanup service
func (s *SessionCleanupService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.logger.Info("Session cleanup service stopped")
	})
}

func (s *SessionCleanupService) cleanupLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case now := <-ticker.C:
			s.runCleanup(now)
		}
	}
}

// runCleanup removes sessions idle at now and returns how many were removed
func (s *SessionCleanupService) runCleanup(now time.Time) int {
	removed := s.assembler.RemoveIdle(now, s.idleTimeout)
	if len(removed) > 0 {
		s.logger.Info("Removed idle audio sessions",
			zap.Strings("sessionIDs", removed),
			zap.Int("remaining", s.assembler.Count()))
	}
	return len(removed)
}
