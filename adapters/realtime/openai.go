package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ob1hnk/triolingo/domain/entities"
	"github.com/ob1hnk/triolingo/domain/repositories"
)

const (
	// Time allowed to write a message to the upstream.
	writeWait = 10 * time.Second

	defaultHandshakeTimeout = 60 * time.Second
	defaultURL              = "wss://api.openai.com/v1/realtime"
	defaultModel            = "gpt-4o-realtime-preview"
)

// Config holds the upstream realtime endpoint settings
type Config struct {
	URL              string
	Model            string
	APIKey           string
	HandshakeTimeout time.Duration
}

// Bridge is a RealtimeSession over a gorilla websocket connection speaking
// the OpenAI realtime event protocol.
type Bridge struct {
	config Config
	dialer *websocket.Dialer
	logger *zap.Logger

	mu    sync.Mutex
	state repositories.RealtimeState
	conn  *websocket.Conn

	// one writer and one reader at a time
	writeMu sync.Mutex
	readMu  sync.Mutex

	closeOnce sync.Once
}

// NewBridge creates a disconnected bridge
func NewBridge(config Config, logger *zap.Logger) *Bridge {
	if config.URL == "" {
		config.URL = defaultURL
	}
	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = defaultHandshakeTimeout
	}
	return &Bridge{
		config: config,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeTimeout,
		},
		logger: logger,
		state:  repositories.RealtimeDisconnected,
	}
}

// NewFactory returns a factory producing fresh bridges sharing config
func NewFactory(config Config, logger *zap.Logger) repositories.RealtimeSessionFactory {
	return func() repositories.RealtimeSession {
		return NewBridge(config, logger)
	}
}

// State implements repositories.RealtimeSession
func (b *Bridge) State() repositories.RealtimeState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Connect dials the upstream and waits for session.created. The whole
// handshake is bounded by the configured timeout.
func (b *Bridge) Connect(ctx context.Context) error {
	b.mu.Lock()
	if b.state != repositories.RealtimeDisconnected {
		state := b.state
		b.mu.Unlock()
		return fmt.Errorf("%w: connect in state %s", entities.ErrInvalidState, state)
	}
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, b.config.HandshakeTimeout)
	defer cancel()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+b.config.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	url := fmt.Sprintf("%s?model=%s", b.config.URL, b.config.Model)
	conn, resp, err := b.dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("%w: dial failed with status %d: %w", entities.ErrHandshake, resp.StatusCode, err)
		}
		return fmt.Errorf("%w: dial failed: %w", entities.ErrHandshake, err)
	}

	msg, err := readWithContext(ctx, conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("%w: waiting for %s: %w", entities.ErrHandshake, EventSessionCreated, err)
	}

	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil || env.Type != EventSessionCreated {
		conn.Close()
		return fmt.Errorf("%w: expected %s, got %q", entities.ErrHandshake, EventSessionCreated, env.Type)
	}

	b.mu.Lock()
	b.conn = conn
	b.state = repositories.RealtimeConnected
	b.mu.Unlock()

	b.logger.Info("Realtime session connected",
		zap.String("url", b.config.URL),
		zap.String("model", b.config.Model))
	return nil
}

// Configure sends session.update and requires the next event to be
// session.updated. Any other outcome closes the bridge.
func (b *Bridge) Configure(ctx context.Context, cfg repositories.RealtimeSessionConfig) error {
	conn, err := b.connFor("configure", repositories.RealtimeConnected)
	if err != nil {
		return err
	}

	if cfg.InputAudioFormat == "" {
		cfg.InputAudioFormat = "pcm16"
	}
	if cfg.OutputAudioFormat == "" {
		cfg.OutputAudioFormat = "pcm16"
	}

	if err := b.writeJSON(conn, newSessionUpdate(cfg)); err != nil {
		b.Close()
		return fmt.Errorf("%w: %w", entities.ErrConfiguration, err)
	}

	b.readMu.Lock()
	msg, err := readWithContext(ctx, conn)
	b.readMu.Unlock()
	if err != nil {
		b.Close()
		return fmt.Errorf("%w: waiting for %s: %w", entities.ErrConfiguration, EventSessionUpdated, err)
	}

	event, err := decodeEvent(msg)
	if err != nil {
		b.Close()
		return fmt.Errorf("%w: %w", entities.ErrConfiguration, err)
	}
	if event.Type != EventSessionUpdated {
		b.Close()
		if event.Kind == repositories.RealtimeEventError {
			return fmt.Errorf("%w: upstream error %s: %s", entities.ErrConfiguration, event.ErrorCode, event.ErrorMessage)
		}
		return fmt.Errorf("%w: expected %s, got %q", entities.ErrConfiguration, EventSessionUpdated, event.Type)
	}

	b.mu.Lock()
	if b.state == repositories.RealtimeConnected {
		b.state = repositories.RealtimeConfigured
	}
	b.mu.Unlock()

	b.logger.Info("Realtime session configured",
		zap.Strings("modalities", cfg.Modalities),
		zap.Bool("serverVAD", cfg.TurnDetection != nil))
	return nil
}

// SendAudio implements repositories.RealtimeSession
func (b *Bridge) SendAudio(pcm []byte) error {
	conn, err := b.connFor("send audio", repositories.RealtimeConfigured, repositories.RealtimeActive)
	if err != nil {
		return err
	}

	if err := b.writeJSON(conn, audioAppendEvent{
		Type:  EventInputAudioAppend,
		Audio: base64.StdEncoding.EncodeToString(pcm),
	}); err != nil {
		return err
	}

	b.mu.Lock()
	if b.state == repositories.RealtimeConfigured {
		b.state = repositories.RealtimeActive
	}
	b.mu.Unlock()
	return nil
}

// Commit implements repositories.RealtimeSession
func (b *Bridge) Commit() error {
	return b.sendControl("commit", typeOnlyEvent{Type: EventInputAudioCommit})
}

// ClearBuffer implements repositories.RealtimeSession
func (b *Bridge) ClearBuffer() error {
	return b.sendControl("clear buffer", typeOnlyEvent{Type: EventInputAudioClear})
}

// RequestResponse implements repositories.RealtimeSession
func (b *Bridge) RequestResponse(opts repositories.ResponseOptions) error {
	return b.sendControl("request response", newResponseCreate(opts))
}

// CancelResponse implements repositories.RealtimeSession
func (b *Bridge) CancelResponse() error {
	return b.sendControl("cancel response", typeOnlyEvent{Type: EventResponseCancel})
}

func (b *Bridge) sendControl(op string, event any) error {
	conn, err := b.connFor(op, repositories.RealtimeConfigured, repositories.RealtimeActive)
	if err != nil {
		return err
	}
	return b.writeJSON(conn, event)
}

// Events reads upstream events until a terminal event (unless keepOpen),
// the connection fails, or ctx is done. Cancelling ctx interrupts a blocked
// read, after which the connection can no longer be read and the bridge
// should be closed. Malformed frames are logged and skipped.
func (b *Bridge) Events(ctx context.Context, keepOpen bool) iter.Seq2[repositories.RealtimeEvent, error] {
	return func(yield func(repositories.RealtimeEvent, error) bool) {
		conn, err := b.connFor("read events", repositories.RealtimeConfigured, repositories.RealtimeActive)
		if err != nil {
			yield(repositories.RealtimeEvent{}, err)
			return
		}

		b.readMu.Lock()
		defer b.readMu.Unlock()

		for {
			msg, err := readWithContext(ctx, conn)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					yield(repositories.RealtimeEvent{}, ctxErr)
					return
				}
				if b.State() != repositories.RealtimeClosed {
					b.logger.Warn("Realtime upstream read failed", zap.Error(err))
					b.Close()
				}
				yield(repositories.RealtimeEvent{}, fmt.Errorf("%w: %w", entities.ErrConnectionClosed, err))
				return
			}

			event, err := decodeEvent(msg)
			if err != nil {
				b.logger.Warn("Skipping malformed upstream event", zap.Error(err))
				continue
			}

			if event.Kind == repositories.RealtimeEventError {
				b.logger.Error("Received error event from upstream",
					zap.String("code", event.ErrorCode),
					zap.String("message", event.ErrorMessage))
			}

			if !yield(event, nil) {
				return
			}
			if !keepOpen && event.Terminal() {
				return
			}
		}
	}
}

// Close implements repositories.RealtimeSession. Only the first call has
// any effect.
func (b *Bridge) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		conn := b.conn
		b.state = repositories.RealtimeClosed
		b.mu.Unlock()

		if conn == nil {
			return
		}

		b.writeMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		b.writeMu.Unlock()

		err = conn.Close()
		b.logger.Info("Realtime session closed")
	})
	return err
}

func (b *Bridge) connFor(op string, allowed ...repositories.RealtimeState) (*websocket.Conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range allowed {
		if b.state == s {
			return b.conn, nil
		}
	}
	if b.state == repositories.RealtimeClosed {
		return nil, fmt.Errorf("%w: %s after close", entities.ErrConnectionClosed, op)
	}
	return nil, fmt.Errorf("%w: %s in state %s", entities.ErrInvalidState, op, b.state)
}

func (b *Bridge) writeJSON(conn *websocket.Conn, v any) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(v); err != nil {
		return fmt.Errorf("failed to write upstream event: %w", err)
	}
	return nil
}

// readWithContext reads one message, unblocking when ctx is done by
// expiring the read deadline.
func readWithContext(ctx context.Context, conn *websocket.Conn) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
		defer conn.SetReadDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	_, msg, err := conn.ReadMessage()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			return nil, fmt.Errorf("%w: %w", ctxErr, err)
		}
		return nil, err
	}
	return msg, nil
}
