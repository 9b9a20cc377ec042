package websocket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ob1hnk/triolingo/adapters/realtime"
	"github.com/ob1hnk/triolingo/domain/entities"
	"github.com/ob1hnk/triolingo/domain/repositories"
)

type streamMode int

const (
	// streamCommit waits for STREAM_COMMIT and relays one response per commit
	streamCommit streamMode = iota
	// streamServerVAD lets the upstream detect turns and relays every
	// response until the stream stops
	streamServerVAD
)

func (m streamMode) String() string {
	if m == streamServerVAD {
		return "server_vad"
	}
	return "commit"
}

// streamHandler proxies a client audio stream to one upstream realtime
// session at a time
type streamHandler struct {
	client *Client
	mode   streamMode

	sessionID      string
	conversationID string
	bridge         repositories.RealtimeSession
	relay          *relayTask

	logger *zap.Logger
}

func newStreamHandler(c *Client, mode streamMode) *streamHandler {
	conversationID := uuid.NewString()
	return &streamHandler{
		client:         c,
		mode:           mode,
		conversationID: conversationID,
		logger: c.logger.With(
			zap.String("conversationID", conversationID),
			zap.String("streamMode", mode.String())),
	}
}

func (h *streamHandler) handle(msg interface{}) {
	h.reapRelay()

	switch m := msg.(type) {
	case *StreamStartMessage:
		h.handleStart(m)
	case *StreamAudioMessage:
		data, err := DecodeAudio(m.AudioData)
		if err != nil {
			h.fail(m.SessionID, fmt.Errorf("failed to decode audio: %w", err))
			return
		}
		h.forwardAudio(m.SessionID, data)
	case *StreamCommitMessage:
		if h.mode != streamCommit {
			h.fail(m.SessionID, fmt.Errorf("%w: %s is not used with server turn detection", entities.ErrUnknownType, m.Type))
			return
		}
		h.handleCommit(m)
	case *StreamStopMessage:
		h.stopStream()
		h.client.sendJSON(CreateAckMessage(MessageTypeStreamAck, m.SessionID, "Stream stopped"))
	default:
		h.fail(h.sessionID, fmt.Errorf("%w: %T", entities.ErrUnknownType, msg))
	}
}

func (h *streamHandler) handleBinary(data []byte) {
	h.reapRelay()
	h.forwardAudio(h.sessionID, data)
}

func (h *streamHandler) fail(sessionID string, err error) {
	if sessionID == "" {
		sessionID = h.sessionID
	}
	h.client.sendJSON(CreateErrorMessage(MessageTypeStreamError, sessionID, ErrorCode(err), err.Error()))
}

func (h *streamHandler) handleStart(m *StreamStartMessage) {
	if h.bridge != nil {
		h.logger.Info("Restarting stream", zap.String("previousSessionID", h.sessionID))
		h.stopStream()
	}

	if h.client.hub.deps.NewRealtime == nil {
		h.fail(m.SessionID, fmt.Errorf("%w: realtime backend is not configured", entities.ErrHandshake))
		return
	}

	language := m.Language
	if language == "" {
		language = h.client.hub.deps.DefaultLanguage
	}

	bridge := h.client.hub.deps.NewRealtime()
	if err := bridge.Connect(h.client.ctx); err != nil {
		bridge.Close()
		h.logger.Error("Failed to connect upstream", zap.String("sessionID", m.SessionID), zap.Error(err))
		h.fail(m.SessionID, err)
		return
	}

	var turnDetection *repositories.TurnDetectionConfig
	if h.mode == streamServerVAD {
		turnDetection = realtime.ServerVAD()
	}
	cfg := h.client.hub.deps.RealtimeDefaults.SessionConfig(language, turnDetection)
	if err := bridge.Configure(h.client.ctx, cfg); err != nil {
		bridge.Close()
		h.logger.Error("Failed to configure upstream", zap.String("sessionID", m.SessionID), zap.Error(err))
		h.fail(m.SessionID, err)
		return
	}

	h.sessionID = m.SessionID
	h.bridge = bridge

	h.client.sendJSON(CreateAckMessage(MessageTypeStreamAck, m.SessionID, "Stream started"))
	h.logger.Info("Stream started",
		zap.String("sessionID", m.SessionID),
		zap.String("language", language))

	if h.mode == streamServerVAD {
		h.startRelay(true, MessageTypeResponseEnd)
	}
}

func (h *streamHandler) forwardAudio(sessionID string, data []byte) {
	if h.bridge == nil {
		h.fail(sessionID, fmt.Errorf("%w: send STREAM_START first", entities.ErrNotStarted))
		return
	}

	if err := h.bridge.SendAudio(data); err != nil {
		h.logger.Error("Failed to forward audio", zap.String("sessionID", h.sessionID), zap.Error(err))
		h.client.sendJSON(CreateErrorMessage(MessageTypeStreamError, sessionID, ErrorCodeStream, err.Error()))
		if errors.Is(err, entities.ErrConnectionClosed) {
			h.stopStream()
		}
		return
	}

	// server VAD clients stream continuously and are not acknowledged per frame
	if h.mode == streamCommit {
		h.client.sendJSON(CreateAckMessage(MessageTypeStreamAck, sessionID, "Audio forwarded"))
	}
}

func (h *streamHandler) handleCommit(m *StreamCommitMessage) {
	if h.bridge == nil {
		h.fail(m.SessionID, fmt.Errorf("%w: stream not started", entities.ErrNotStarted))
		return
	}
	if h.relay != nil {
		h.fail(m.SessionID, fmt.Errorf("%w: a response is already in progress", entities.ErrValidation))
		return
	}

	if err := h.bridge.Commit(); err != nil {
		h.commitFailed(m.SessionID, err)
		return
	}
	if err := h.bridge.RequestResponse(repositories.ResponseOptions{Modalities: []string{"text"}}); err != nil {
		h.commitFailed(m.SessionID, err)
		return
	}

	h.client.sendJSON(CreateAckMessage(MessageTypeStreamAck, m.SessionID, "Audio committed - generating response"))
	h.startRelay(false, MessageTypeStreamEnd)
}

func (h *streamHandler) commitFailed(sessionID string, err error) {
	h.logger.Error("Failed to commit audio", zap.String("sessionID", sessionID), zap.Error(err))
	h.client.sendJSON(CreateErrorMessage(MessageTypeStreamError, sessionID, ErrorCodeStream, err.Error()))
	if errors.Is(err, entities.ErrConnectionClosed) {
		h.stopStream()
	}
}

// reapRelay collects a relay that ended on its own. An ended server VAD
// relay means the upstream failed, so the stream is torn down and the
// client has to start a new one.
func (h *streamHandler) reapRelay() {
	if h.relay == nil || !h.relay.ended.Load() {
		return
	}
	h.relay.stop()
	h.relay = nil
	if h.mode == streamServerVAD {
		h.stopStream()
	}
}

// stopStream cancels the relay, waits for it, then closes the upstream
func (h *streamHandler) stopStream() {
	if h.relay != nil {
		h.relay.stop()
		h.relay = nil
	}
	if h.bridge != nil {
		if err := h.bridge.Close(); err != nil {
			h.logger.Debug("Upstream close returned error", zap.Error(err))
		}
		h.bridge = nil
		h.logger.Info("Stream stopped", zap.String("sessionID", h.sessionID))
	}
}

func (h *streamHandler) close() {
	h.stopStream()

	store := h.client.hub.deps.Store
	if store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Clear(ctx, h.conversationID); err != nil {
		h.logger.Warn("Failed to clear conversation history", zap.Error(err))
	}
}
