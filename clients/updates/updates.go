package updates

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Message types sent by the service.
const (
	TypeActivityUpdate = "activity_update"
	TypeAnalysisUpdate = "analysis_update"
)

// Update is a single push message. Formatted, Sections and Suggestions are
// only present on analysis updates.
type Update struct {
	Type        string    `json:"type"`
	Formatted   string    `json:"formatted,omitempty"`
	Sections    []Section `json:"sections,omitempty"`
	Suggestions []string  `json:"suggestions,omitempty"`
}

// Section mirrors assistantapi.Section for analysis updates.
type Section struct {
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
}

// Handler receives decoded updates. It runs on the client's read goroutine.
type Handler func(Update)

// UpdatesClient owns one push channel connection. It does not reconnect,
// send heartbeats or back off: once the connection drops it stays closed
// and the read error is reported on Errors.
type UpdatesClient struct {
	logger *zap.Logger

	wsURL  string
	dialer *websocket.Dialer

	connMu sync.Mutex
	conn   *websocket.Conn

	handlerMu sync.RWMutex
	handlers  []Handler

	errCh   chan error
	closeCh chan struct{}

	msgCount        uint64
	lastMsgUnixNano int64
}

func NewUpdatesClient(logger *zap.Logger, wsURL string) *UpdatesClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &UpdatesClient{
		logger: logger,
		wsURL:  wsURL,
		dialer: websocket.DefaultDialer,

		errCh:   make(chan error, 16),
		closeCh: make(chan struct{}),
	}
}

// OnMessage registers a handler for decoded updates. Handlers registered
// after Connect receive only later messages.
func (c *UpdatesClient) OnMessage(h Handler) {
	if h == nil {
		return
	}
	c.handlerMu.Lock()
	c.handlers = append(c.handlers, h)
	c.handlerMu.Unlock()
}

// Connect dials the push channel and starts reading. The connection is closed
// when ctx is done or Close is called.
func (c *UpdatesClient) Connect(ctx context.Context) error {
	if c.wsURL == "" {
		return fmt.Errorf("push channel url is empty")
	}

	c.connMu.Lock()
	alreadyConnected := c.conn != nil
	c.connMu.Unlock()
	if alreadyConnected {
		return fmt.Errorf("already connected")
	}

	conn, _, err := c.dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial push channel: %w", err)
	}

	c.logger.Info("push channel connected", zap.String("url", c.wsURL))

	conn.SetCloseHandler(func(code int, text string) error {
		c.logger.Warn(
			"push channel close frame received",
			zap.Int("code", code),
			zap.String("reason", text),
		)
		return nil
	})

	c.connMu.Lock()
	c.conn = conn
	closeCh := c.closeCh
	c.connMu.Unlock()

	go c.readLoop(conn, closeCh)

	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-closeCh:
		}
	}()

	return nil
}

// Connected reports whether a connection is currently open.
func (c *UpdatesClient) Connected() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn != nil
}

// Errors delivers read errors. A read error ends the connection.
func (c *UpdatesClient) Errors() <-chan error {
	return c.errCh
}

type WSStats struct {
	Connected     bool
	MessageCount  uint64
	LastMessageAt time.Time
}

func (c *UpdatesClient) Stats() WSStats {
	n := atomic.LoadUint64(&c.msgCount)
	ns := atomic.LoadInt64(&c.lastMsgUnixNano)

	var t time.Time
	if ns > 0 {
		t = time.Unix(0, ns)
	}

	return WSStats{
		Connected:     c.Connected(),
		MessageCount:  n,
		LastMessageAt: t,
	}
}

// Close ends the connection. It is safe to call more than once.
func (c *UpdatesClient) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	select {
	case <-c.closeCh:
	default:
		close(c.closeCh)
	}
	c.closeCh = make(chan struct{})

	var err error
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}

	return err
}

// ParseUpdate decodes one push message. Messages without a type are rejected.
func ParseUpdate(data []byte) (Update, error) {
	var u Update
	if err := json.Unmarshal(data, &u); err != nil {
		return Update{}, fmt.Errorf("decode update: %w", err)
	}
	if u.Type == "" {
		return Update{}, fmt.Errorf("update has no type")
	}
	return u, nil
}

func (c *UpdatesClient) readLoop(conn *websocket.Conn, closeCh chan struct{}) {
	c.logger.Debug("push channel read loop started")

	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-closeCh:
				c.logger.Debug("push channel read loop exiting: closed")
				return
			default:
			}

			c.logger.Warn("push channel lost", zap.Error(err))
			select {
			case c.errCh <- err:
			default:
			}
			c.dropConn(conn)
			return
		}

		atomic.AddUint64(&c.msgCount, 1)
		atomic.StoreInt64(&c.lastMsgUnixNano, time.Now().UnixNano())

		c.emitFrame(b)
	}
}

// dropConn forgets conn if it is still the current connection.
func (c *UpdatesClient) dropConn(conn *websocket.Conn) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == conn {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// emitFrame accepts either a single JSON object or a JSON array of objects.
func (c *UpdatesClient) emitFrame(b []byte) {
	trimmed := b
	for len(trimmed) > 0 && (trimmed[0] == ' ' || trimmed[0] == '\n' || trimmed[0] == '\t' || trimmed[0] == '\r') {
		trimmed = trimmed[1:]
	}

	if len(trimmed) == 0 {
		return
	}

	if trimmed[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			c.logger.Warn(
				"push channel bad json array frame",
				zap.Error(err),
				zap.ByteString("frame", b),
			)
			return
		}

		for _, one := range arr {
			c.forward(one)
		}
		return
	}

	c.forward(trimmed)
}

func (c *UpdatesClient) forward(msg []byte) {
	u, err := ParseUpdate(msg)
	if err != nil {
		c.logger.Warn("push channel dropped message", zap.Error(err), zap.ByteString("frame", msg))
		return
	}

	c.handlerMu.RLock()
	handlers := make([]Handler, len(c.handlers))
	copy(handlers, c.handlers)
	c.handlerMu.RUnlock()

	for _, h := range handlers {
		h(u)
	}
}
