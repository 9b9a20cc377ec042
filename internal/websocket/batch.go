package websocket

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ob1hnk/triolingo/domain/entities"
	"github.com/ob1hnk/triolingo/internal/audio"
	"github.com/ob1hnk/triolingo/usecase"
)

const processingProgress = 0.5

// batchHandler serves SESSION_START / AUDIO_CHUNK / SESSION_END uploads.
// Every finished upload is one conversation turn; the history lives as
// long as the connection.
type batchHandler struct {
	client    *Client
	service   *usecase.ConversationService
	assembler *audio.Assembler

	conversationID string
	// sessions opened on this connection and their languages
	sessions map[string]string
	current  string

	logger *zap.Logger
}

func newBatchHandler(c *Client, service *usecase.ConversationService) *batchHandler {
	conversationID := uuid.NewString()
	return &batchHandler{
		client:         c,
		service:        service,
		assembler:      c.hub.deps.Assembler,
		conversationID: conversationID,
		sessions:       make(map[string]string),
		logger:         c.logger.With(zap.String("conversationID", conversationID)),
	}
}

func (h *batchHandler) handle(msg interface{}) {
	switch m := msg.(type) {
	case *SessionStartMessage:
		h.current = m.SessionID
		h.handleSessionStart(m)
	case *AudioChunkMessage:
		h.current = m.SessionID
		h.handleAudioChunk(m)
	case *SessionEndMessage:
		h.current = m.SessionID
		h.handleSessionEnd(m)
	default:
		h.fail(h.current, fmt.Errorf("%w: %T", entities.ErrUnknownType, msg))
	}
}

func (h *batchHandler) fail(sessionID string, err error) {
	if sessionID == "" {
		sessionID = h.current
	}
	h.client.sendJSON(CreateErrorMessage(MessageTypeError, sessionID, ErrorCode(err), err.Error()))
}

func (h *batchHandler) handleSessionStart(m *SessionStartMessage) {
	format := entities.ParseAudioFormat(m.AudioFormat)
	if err := h.assembler.Create(m.SessionID, format, m.SampleRate, m.Channels); err != nil {
		h.fail(m.SessionID, err)
		return
	}

	language := m.Language
	if language == "" {
		language = h.client.hub.deps.DefaultLanguage
	}
	h.sessions[m.SessionID] = language

	h.client.sendJSON(CreateAckMessage(MessageTypeAck, m.SessionID, "Session started"))
	h.logger.Info("Session started",
		zap.String("sessionID", m.SessionID),
		zap.String("format", string(format)),
		zap.String("language", language))
}

func (h *batchHandler) handleAudioChunk(m *AudioChunkMessage) {
	if !h.assembler.Has(m.SessionID) {
		h.client.sendJSON(CreateErrorMessage(MessageTypeError, m.SessionID, ErrorCodeSessionNotFound,
			"Session not found. Please start a session first."))
		return
	}

	data, err := DecodeAudio(m.AudioData)
	if err != nil {
		h.logger.Error("Failed to decode audio data", zap.String("sessionID", m.SessionID), zap.Error(err))
		h.fail(m.SessionID, err)
		return
	}

	if err := h.assembler.AddChunk(m.SessionID, *m.ChunkIndex, data); err != nil {
		h.fail(m.SessionID, err)
		return
	}

	ack := CreateAckMessage(MessageTypeAck, m.SessionID, "Chunk received")
	ack.ChunkIndex = m.ChunkIndex
	h.client.sendJSON(ack)
}

func (h *batchHandler) handleSessionEnd(m *SessionEndMessage) {
	session, ok := h.assembler.Session(m.SessionID)
	if !ok {
		h.client.sendJSON(CreateErrorMessage(MessageTypeError, m.SessionID, ErrorCodeSessionNotFound, "Session not found."))
		return
	}

	h.client.sendJSON(&ProcessingMessage{
		BaseMessage: BaseMessage{Type: MessageTypeProcessing, SessionID: m.SessionID},
		Status:      "Processing audio and generating response...",
		Progress:    processingProgress,
	})

	language, ok := h.sessions[m.SessionID]
	if !ok {
		language = h.client.hub.deps.DefaultLanguage
	}

	// the upload is consumed whether or not processing succeeds
	data, err := h.assembler.Assemble(m.SessionID)
	h.assembler.Remove(m.SessionID)
	delete(h.sessions, m.SessionID)
	if err != nil {
		h.processingFailed(m.SessionID, err)
		return
	}

	format := session.Format
	if format.IsContainerWAV() {
		format = entities.AudioFormatWAV
	}
	input := entities.NewVoiceInput(data, format, session.SampleRate, session.Channels,
		fmt.Sprintf("audio_%s.%s", m.SessionID, format))

	started := time.Now()
	result, err := h.service.Execute(h.client.ctx, input, h.conversationID, language)
	if err != nil {
		h.processingFailed(m.SessionID, err)
		return
	}

	response := &ResultMessage{
		BaseMessage: BaseMessage{Type: MessageTypeResult, SessionID: m.SessionID},
		Text:        result.Response,
	}
	if h.service.HasTranscript() {
		transcript := result.Transcript
		response.Transcription = &transcript
	}
	h.client.sendJSON(response)

	h.logger.Info("Session completed",
		zap.String("sessionID", m.SessionID),
		zap.Duration("elapsed", time.Since(started)))
}

func (h *batchHandler) processingFailed(sessionID string, err error) {
	h.logger.Error("Failed to process session",
		zap.String("sessionID", sessionID),
		zap.Error(err))
	h.client.sendJSON(CreateErrorMessage(MessageTypeError, sessionID, ErrorCodeProcessing,
		fmt.Sprintf("Failed to process audio: %v", err)))
}

func (h *batchHandler) close() {
	for sessionID := range h.sessions {
		if h.assembler.Remove(sessionID) {
			h.logger.Info("Dropped unfinished session", zap.String("sessionID", sessionID))
		}
	}
	h.sessions = nil

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.service.ClearSession(ctx, h.conversationID); err != nil {
		h.logger.Warn("Failed to clear conversation history", zap.Error(err))
	}
}
