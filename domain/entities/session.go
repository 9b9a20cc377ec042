package entities

import (
	"fmt"
	"sort"
	"time"
)

// AudioChunk is one client supplied slice of an utterance
type AudioChunk struct {
	Index int
	Data  []byte
}

// AudioSession buffers the chunks of a single utterance upload. It lives in
// process memory only and is dropped once assembled.
type AudioSession struct {
	ID         string
	Format     AudioFormat
	SampleRate int
	Channels   int
	Chunks     []AudioChunk
	Complete   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewAudioSession creates a session applying the default sample rate and
// channel count when they are not positive
func NewAudioSession(id string, format AudioFormat, sampleRate, channels int) *AudioSession {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if channels <= 0 {
		channels = DefaultChannels
	}
	if format == "" {
		format = AudioFormatWAV
	}
	now := time.Now()
	return &AudioSession{
		ID:         id,
		Format:     format,
		SampleRate: sampleRate,
		Channels:   channels,
		Chunks:     make([]AudioChunk, 0),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// AddChunk appends a chunk in arrival order. Duplicate indices are kept.
func (s *AudioSession) AddChunk(index int, data []byte) {
	buf := make([]byte, len(data))
	copy(buf, data)
	s.Chunks = append(s.Chunks, AudioChunk{Index: index, Data: buf})
	s.UpdatedAt = time.Now()
}

// SortedChunks returns the chunks ordered by index. The sort is stable so
// chunks sharing an index stay in arrival order.
func (s *AudioSession) SortedChunks() []AudioChunk {
	sorted := make([]AudioChunk, len(s.Chunks))
	copy(sorted, s.Chunks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Index < sorted[j].Index
	})
	return sorted
}

// TotalBytes sums the payload size of every buffered chunk
func (s *AudioSession) TotalBytes() int {
	total := 0
	for _, c := range s.Chunks {
		total += len(c.Data)
	}
	return total
}

// IsIdle reports whether the session saw no chunk for longer than timeout
func (s *AudioSession) IsIdle(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.UpdatedAt) > timeout
}

// Validate validates the session data
func (s *AudioSession) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: session ID is required", ErrValidation)
	}
	if s.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive", ErrValidation)
	}
	if s.Channels <= 0 {
		return fmt.Errorf("%w: channel count must be positive", ErrValidation)
	}
	return nil
}
