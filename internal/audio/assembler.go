package audio

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ob1hnk/triolingo/domain/entities"
)

// Assembler buffers out-of-order audio chunks per session and reassembles
// them into one payload.
type Assembler struct {
	mu       sync.RWMutex
	sessions map[string]*entities.AudioSession
	logger   *zap.Logger
}

// NewAssembler creates an empty assembler
func NewAssembler(logger *zap.Logger) *Assembler {
	return &Assembler{
		sessions: make(map[string]*entities.AudioSession),
		logger:   logger,
	}
}

// Create opens a session. An existing session with the same id is replaced.
func (a *Assembler) Create(sessionID string, format entities.AudioFormat, sampleRate, channels int) error {
	session := entities.NewAudioSession(sessionID, format, sampleRate, channels)
	if err := session.Validate(); err != nil {
		return err
	}

	a.mu.Lock()
	_, replaced := a.sessions[sessionID]
	a.sessions[sessionID] = session
	a.mu.Unlock()

	if replaced {
		a.logger.Warn("Audio session replaced", zap.String("sessionID", sessionID))
	}
	a.logger.Info("Audio session created",
		zap.String("sessionID", sessionID),
		zap.String("format", string(session.Format)),
		zap.Int("sampleRate", session.SampleRate),
		zap.Int("channels", session.Channels))
	return nil
}

// AddChunk stores one chunk. Chunks may arrive in any index order.
func (a *Assembler) AddChunk(sessionID string, index int, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	session, ok := a.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", entities.ErrSessionNotFound, sessionID)
	}
	session.AddChunk(index, data)

	a.logger.Debug("Audio chunk added",
		zap.String("sessionID", sessionID),
		zap.Int("chunkIndex", index),
		zap.Int("size", len(data)),
		zap.Int("totalChunks", len(session.Chunks)))
	return nil
}

// Assemble merges the session's chunks. The session stays registered; the
// caller removes it.
func (a *Assembler) Assemble(sessionID string) ([]byte, error) {
	a.mu.Lock()
	session, ok := a.sessions[sessionID]
	if !ok {
		a.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", entities.ErrSessionNotFound, sessionID)
	}
	if len(session.Chunks) == 0 {
		a.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", entities.ErrEmptyBuffer, sessionID)
	}
	session.Complete = true
	snapshot := *session
	snapshot.Chunks = session.SortedChunks()
	a.mu.Unlock()

	return merge(&snapshot, a.logger), nil
}

// Session returns the voice metadata of an open session
func (a *Assembler) Session(sessionID string) (entities.AudioSession, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	session, ok := a.sessions[sessionID]
	if !ok {
		return entities.AudioSession{}, false
	}
	snapshot := *session
	snapshot.Chunks = nil
	return snapshot, true
}

// Remove deletes the session and reports whether it existed
func (a *Assembler) Remove(sessionID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.sessions[sessionID]; !ok {
		return false
	}
	delete(a.sessions, sessionID)
	return true
}

func (a *Assembler) Has(sessionID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.sessions[sessionID]
	return ok
}

func (a *Assembler) Count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.sessions)
}

// RemoveIdle drops sessions that have not received a chunk within timeout
// and returns their ids
func (a *Assembler) RemoveIdle(now time.Time, timeout time.Duration) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	var removed []string
	for id, session := range a.sessions {
		if session.IsIdle(now, timeout) {
			delete(a.sessions, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// merge expects chunks already sorted by index.
func merge(session *entities.AudioSession, logger *zap.Logger) []byte {
	if !session.Format.IsContainerWAV() {
		logger.Warn("Audio format not fully supported, joining chunk bytes",
			zap.String("sessionID", session.ID),
			zap.String("format", string(session.Format)))
		return joinChunks(session.Chunks)
	}

	merged, err := mergeWAVChunks(session, logger)
	if err == nil {
		return merged
	}

	logger.Info("Chunks are not WAV files, treating as PCM",
		zap.String("sessionID", session.ID),
		zap.Int("sampleRate", session.SampleRate),
		zap.Int("channels", session.Channels),
		zap.Error(err))

	params := WAVParams{
		Channels:    session.Channels,
		SampleWidth: entities.DefaultSampleWidth,
		SampleRate:  session.SampleRate,
	}
	pcm := joinChunks(session.Chunks)
	if extra := len(pcm) % params.BlockAlign(); extra != 0 {
		logger.Warn("Dropping trailing partial PCM frame",
			zap.String("sessionID", session.ID),
			zap.Int("bytes", extra))
	}
	return EncodeWAV(params, pcm)
}

// mergeWAVChunks fails as a whole when any chunk is not a WAV file.
func mergeWAVChunks(session *entities.AudioSession, logger *zap.Logger) ([]byte, error) {
	first, _, err := DecodeWAV(session.Chunks[0].Data)
	if err != nil {
		return nil, err
	}

	var frames []byte
	for _, chunk := range session.Chunks {
		params, chunkFrames, err := DecodeWAV(chunk.Data)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", chunk.Index, err)
		}
		if params != first {
			logger.Warn("WAV chunk parameters mismatch",
				zap.String("sessionID", session.ID),
				zap.Int("chunkIndex", chunk.Index),
				zap.Int("channels", params.Channels),
				zap.Int("sampleWidth", params.SampleWidth),
				zap.Int("sampleRate", params.SampleRate))
		}
		frames = append(frames, chunkFrames...)
	}

	logger.Info("WAV chunks merged",
		zap.String("sessionID", session.ID),
		zap.Int("chunks", len(session.Chunks)),
		zap.Int("frames", first.FrameCount(len(frames))))

	return EncodeWAV(first, frames), nil
}

func joinChunks(chunks []entities.AudioChunk) []byte {
	size := 0
	for _, c := range chunks {
		size += len(c.Data)
	}
	out := make([]byte, 0, size)
	for _, c := range chunks {
		out = append(out, c.Data...)
	}
	return out
}
