package websocket

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ob1hnk/triolingo/domain/entities"
	"github.com/ob1hnk/triolingo/domain/repositories"
)

// relayTask is a running relay goroutine
type relayTask struct {
	cancel context.CancelFunc
	done   chan struct{}
	// ended is set before the relay sends its last message
	ended atomic.Bool
}

// stop cancels the relay and waits for it to return
func (r *relayTask) stop() {
	r.cancel()
	<-r.done
}

// startRelay starts forwarding upstream events to the client. endType is
// the message sent when a response completes.
func (h *streamHandler) startRelay(keepOpen bool, endType MessageType) {
	ctx, cancel := context.WithCancel(h.client.ctx)
	task := &relayTask{cancel: cancel, done: make(chan struct{})}
	unregister := h.client.hub.relays.Register(h.client.id, cancel)

	r := &relay{
		bridge:         h.bridge,
		client:         h.client,
		store:          h.client.hub.deps.Store,
		sessionID:      h.sessionID,
		conversationID: h.conversationID,
		endType:        endType,
		ended:          &task.ended,
		logger:         h.logger,
	}

	go func() {
		defer close(task.done)
		defer unregister()
		defer cancel()
		defer task.ended.Store(true)
		r.run(ctx, keepOpen)
	}()

	h.relay = task
}

type relay struct {
	bridge         repositories.RealtimeSession
	client         *Client
	store          repositories.ConversationStore
	sessionID      string
	conversationID string
	endType        MessageType
	ended          *atomic.Bool
	logger         *zap.Logger
}

// run relays events until the upstream finishes, fails or ctx is done.
// Errors are reported to the client best-effort.
func (r *relay) run(ctx context.Context, keepOpen bool) {
	var fullText strings.Builder
	base := func(t MessageType) BaseMessage {
		return BaseMessage{Type: t, SessionID: r.sessionID}
	}

	for event, err := range r.bridge.Events(ctx, keepOpen) {
		if err != nil {
			if ctx.Err() != nil {
				r.logger.Debug("Relay cancelled", zap.String("sessionID", r.sessionID))
				return
			}
			r.logger.Error("Error streaming responses", zap.String("sessionID", r.sessionID), zap.Error(err))
			r.ended.Store(true)
			r.client.sendJSONContext(ctx, CreateErrorMessage(MessageTypeStreamError, r.sessionID, ErrorCodeStream, err.Error()))
			return
		}

		switch event.Kind {
		case repositories.RealtimeEventSpeechStarted:
			r.client.sendJSONContext(ctx, &BaseMessage{Type: MessageTypeSpeechStarted, SessionID: r.sessionID})

		case repositories.RealtimeEventTranscript:
			if event.Text == "" {
				continue
			}
			r.client.sendJSONContext(ctx, &TranscriptMessage{BaseMessage: base(MessageTypeTranscript), Transcript: event.Text})
			r.record(entities.MessageRoleUser, event.Text)

		case repositories.RealtimeEventTextDelta:
			if event.Text == "" {
				continue
			}
			fullText.WriteString(event.Text)
			r.client.sendJSONContext(ctx, &TextDeltaMessage{BaseMessage: base(MessageTypeTextDelta), Delta: event.Text})

		case repositories.RealtimeEventTextDone:
			if fullText.Len() == 0 && event.Text != "" {
				fullText.WriteString(event.Text)
			}

		case repositories.RealtimeEventResponseDone:
			text := fullText.String()
			fullText.Reset()
			if !keepOpen {
				r.ended.Store(true)
			}
			r.client.sendJSONContext(ctx, &StreamEndMessage{BaseMessage: base(r.endType), FullText: text})
			r.record(entities.MessageRoleAssistant, text)
			r.logger.Info("Response completed",
				zap.String("sessionID", r.sessionID),
				zap.Int("length", len(text)))

		case repositories.RealtimeEventError:
			message := event.ErrorMessage
			if message == "" {
				message = "Unknown error"
			}
			r.ended.Store(true)
			r.client.sendJSONContext(ctx, CreateErrorMessage(MessageTypeStreamError, r.sessionID, ErrorCodeUpstream, message))
			return
		}
	}
}

func (r *relay) record(role entities.MessageRole, text string) {
	if r.store == nil || text == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := r.store.Append(ctx, r.conversationID, entities.ConversationMessage{Role: role, Content: text})
	if err != nil {
		r.logger.Warn("Failed to record streamed turn", zap.Error(err))
	}
}
