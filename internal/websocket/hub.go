package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ob1hnk/triolingo/adapters/realtime"
	"github.com/ob1hnk/triolingo/domain/repositories"
	"github.com/ob1hnk/triolingo/internal/audio"
	"github.com/ob1hnk/triolingo/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks

	defaultLanguage = "ko"
)

var errClientClosed = errors.New("client connection closed")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Endpoint selects the protocol and pipeline served on a connection
type Endpoint string

const (
	// EndpointSpeechTwoStage serves batch uploads through transcription and
	// text generation
	EndpointSpeechTwoStage Endpoint = "speech_v1"
	// EndpointSpeechSingleStage serves batch uploads through one audio
	// understanding call
	EndpointSpeechSingleStage Endpoint = "speech_v2"
	// EndpointSpeechStreaming relays audio upstream and answers on
	// STREAM_COMMIT
	EndpointSpeechStreaming Endpoint = "speech_v3"
	// EndpointRealtime relays audio upstream with server side turn
	// detection across many turns
	EndpointRealtime Endpoint = "realtime_v1"
)

// HubDeps are the services shared by every connection
type HubDeps struct {
	Assembler   *audio.Assembler
	TwoStage    *usecase.ConversationService
	SingleStage *usecase.ConversationService
	// Store records streamed turns; may be nil
	Store repositories.ConversationStore
	// NewRealtime creates upstream sessions for the streaming endpoints;
	// may be nil when no realtime backend is configured
	NewRealtime      repositories.RealtimeSessionFactory
	RealtimeDefaults realtime.SessionDefaults
	DefaultLanguage  string
}

// Hub maintains the set of active clients
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	deps      HubDeps
	validator *MessageValidator
	relays    *RelayTracker

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(deps HubDeps, logger *zap.Logger) *Hub {
	if deps.DefaultLanguage == "" {
		deps.DefaultLanguage = defaultLanguage
	}
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deps:       deps,
		validator:  NewMessageValidator(),
		relays:     NewRelayTracker(),
		logger:     logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.logger.Info("Client registered",
				zap.String("clientID", client.id),
				zap.String("endpoint", string(client.endpoint)))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("clientID", client.id))
		}
	}
}

// ActiveClients counts connected clients per endpoint
func (h *Hub) ActiveClients() map[Endpoint]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	counts := make(map[Endpoint]int)
	for _, c := range h.clients {
		counts[c.endpoint]++
	}
	return counts
}

// ActiveRelays reports the number of running upstream relays
func (h *Hub) ActiveRelays() int {
	return h.relays.Count()
}

// RealtimeAvailable reports whether streaming endpoints can reach an
// upstream
func (h *Hub) RealtimeAvailable() bool {
	return h.deps.NewRealtime != nil
}

// Shutdown cancels every running relay and waits for them to finish
func (h *Hub) Shutdown(ctx context.Context) bool {
	canceled := h.relays.CancelAll()
	h.logger.Info("Cancelling active relays", zap.Int("count", canceled))
	return h.relays.Wait(ctx)
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// messageHandler implements one endpoint protocol. All calls happen on the
// connection's read goroutine.
type messageHandler interface {
	handle(msg interface{})
	// fail reports a message that could not be dispatched
	fail(sessionID string, err error)
	// close releases everything the connection owns
	close()
}

// binaryHandler is implemented by handlers accepting raw audio frames
type binaryHandler interface {
	handleBinary(data []byte)
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	id       string
	endpoint Endpoint
	handler  messageHandler

	// ctx is cancelled when the connection goes away
	ctx    context.Context
	cancel context.CancelFunc

	logger *zap.Logger
}

// HandleWebSocket upgrades the request and serves endpoint on it
func HandleWebSocket(hub *Hub, c echo.Context, endpoint Endpoint, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan WriteData, 256),
		id:       id,
		endpoint: endpoint,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.With(zap.String("clientID", id)),
	}
	client.handler = hub.newHandler(client)

	client.hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

func (h *Hub) newHandler(c *Client) messageHandler {
	switch c.endpoint {
	case EndpointSpeechTwoStage:
		return newBatchHandler(c, h.deps.TwoStage)
	case EndpointSpeechSingleStage:
		return newBatchHandler(c, h.deps.SingleStage)
	case EndpointRealtime:
		return newStreamHandler(c, streamServerVAD)
	default:
		return newStreamHandler(c, streamCommit)
	}
}

// readPump pumps messages from the websocket connection to the handler.
// Teardown runs here so no handler work outlives the connection.
func (c *Client) readPump() {
	defer func() {
		c.cancel()
		c.handler.close()
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.processBinaryAudioChunk(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}

		// processing can outlast pongWait; any client message proves liveness
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) processMessage(message []byte) {
	msg, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Rejected client message", zap.Error(err))
		c.handler.fail(SessionIDOf(message), err)
		return
	}
	c.handler.handle(msg)
}

func (c *Client) processBinaryAudioChunk(data []byte) {
	bh, ok := c.handler.(binaryHandler)
	if !ok {
		c.logger.Warn("Binary frames are not supported on this endpoint",
			zap.String("endpoint", string(c.endpoint)),
			zap.Int("size", len(data)))
		return
	}
	bh.handleBinary(data)
}

// sendJSON queues v for the write pump. It gives up once the connection is
// gone.
func (c *Client) sendJSON(v interface{}) error {
	return c.sendJSONContext(c.ctx, v)
}

// sendJSONContext is sendJSON for callers with a shorter-lived ctx. ctx must
// be derived from the client's ctx.
func (c *Client) sendJSONContext(ctx context.Context, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return errClientClosed
	default:
	}

	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
		return nil
	case <-ctx.Done():
		return errClientClosed
	}
}
