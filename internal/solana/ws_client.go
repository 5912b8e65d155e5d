package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"solana-token-sale/internal/observability"
)

// ErrClientClosed is returned by a closed WebSocket client.
var ErrClientClosed = errors.New("websocket client closed")

// WSConfig configures WebSocket client behavior.
type WSConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout     time.Duration
	SubscribeTimeout time.Duration
	// Commitment sent with every subscription.
	Commitment string
	// Buffer is the capacity of each notification channel.
	Buffer int
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  30 * time.Second,
		Commitment:        "confirmed",
		Buffer:            1024,
	}
}

type logsSubscription struct {
	filter LogsFilter
	ch     chan LogNotification
}

// pendingSubscribe is a logsSubscribe request awaiting its confirmation.
// The confirmation registers sub before any later frame is read.
type pendingSubscribe struct {
	sub     *logsSubscription
	replace bool
	oldID   int64
	confirm chan int64
}

// LogsClient implements WSClient using gorilla/websocket. After a dropped
// connection it redials with exponential backoff and resubscribes every
// active filter on the same channels.
type LogsClient struct {
	endpoint string
	config   WSConfig
	log      *logrus.Entry
	metrics  *observability.Metrics

	connMu sync.Mutex
	conn   *websocket.Conn

	closed    atomic.Bool
	requestID atomic.Uint64

	mu sync.Mutex
	// subs is keyed by the server-assigned subscription id.
	subs map[int64]*logsSubscription
	// pending maps request id to the subscription it confirms.
	pending map[uint64]*pendingSubscribe

	// ctx is cancelled by Close and bounds redials.
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewLogsClient connects to endpoint. config and metrics may be nil.
func NewLogsClient(ctx context.Context, endpoint string, config *WSConfig, metrics *observability.Metrics, log logrus.FieldLogger) (*LogsClient, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	c := &LogsClient{
		endpoint: endpoint,
		config:   cfg,
		log:      log.WithField("component", "ws"),
		metrics:  metrics,
		subs:     make(map[int64]*logsSubscription),
		pending:  make(map[uint64]*pendingSubscribe),
		done:     make(chan struct{}),
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.conn = conn

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

func (c *LogsClient) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return conn, nil
}

// SubscribeLogs subscribes to program logs matching the filter.
func (c *LogsClient) SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error) {
	sub := &logsSubscription{
		filter: filter,
		ch:     make(chan LogNotification, c.config.Buffer),
	}
	if err := c.subscribe(ctx, &pendingSubscribe{sub: sub}); err != nil {
		return nil, err
	}
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	return sub.ch, nil
}

// subscribe sends logsSubscribe for p.sub and waits until handleMessage has
// registered it under the confirmed subscription id.
func (c *LogsClient) subscribe(ctx context.Context, p *pendingSubscribe) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	filter := p.sub.filter

	var mentions map[string]any
	if len(filter.Mentions) > 0 {
		mentions = map[string]any{"mentions": filter.Mentions}
	} else {
		mentions = map[string]any{"all": nil}
	}

	reqID := c.requestID.Add(1)
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "logsSubscribe",
		Params: []any{
			mentions,
			map[string]string{"commitment": c.config.Commitment},
		},
	}

	p.confirm = make(chan int64, 1)
	c.mu.Lock()
	c.pending[reqID] = p
	c.mu.Unlock()

	// forget withdraws the request. A confirmation that won the race has
	// already registered the subscription, so it is reported as success.
	forget := func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.pending[reqID]; ok {
			delete(c.pending, reqID)
			return false
		}
		return true
	}

	if err := c.writeJSON(req); err != nil {
		if forget() {
			return nil
		}
		return fmt.Errorf("write subscribe: %w", err)
	}

	timer := time.NewTimer(c.config.SubscribeTimeout)
	defer timer.Stop()

	select {
	case <-p.confirm:
		return nil
	case <-timer.C:
		if forget() {
			return nil
		}
		return fmt.Errorf("subscription timeout after %s", c.config.SubscribeTimeout)
	case <-c.done:
		return ErrClientClosed
	case <-ctx.Done():
		if forget() {
			return nil
		}
		return ctx.Err()
	}
}

func (c *LogsClient) writeJSON(v any) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return errors.New("not connected")
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return c.conn.WriteJSON(v)
}

// Close closes the connection and every subscription channel.
func (c *LogsClient) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)
	c.cancel()

	c.connMu.Lock()
	if c.conn != nil {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()

	// No goroutine sends on the channels after wg.Wait.
	c.mu.Lock()
	for id, sub := range c.subs {
		close(sub.ch)
		delete(c.subs, id)
	}
	c.mu.Unlock()
	return nil
}

func (c *LogsClient) readLoop() {
	defer c.wg.Done()

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		_ = conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.log.WithError(err).Warn("websocket read failed, reconnecting")
			if !c.reconnect() {
				return
			}
			continue
		}

		c.handleMessage(message)
	}
}

// reconnect redials until it succeeds or the client is closed.
func (c *LogsClient) reconnect() bool {
	c.connMu.Lock()
	_ = c.conn.Close()
	c.connMu.Unlock()

	delay := c.config.ReconnectDelay
	for {
		select {
		case <-c.done:
			return false
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(c.ctx, 30*time.Second)
		conn, err := c.dial(ctx)
		cancel()
		if err == nil {
			c.connMu.Lock()
			if c.closed.Load() {
				c.connMu.Unlock()
				_ = conn.Close()
				return false
			}
			c.conn = conn
			c.connMu.Unlock()
			break
		}

		c.log.WithError(err).WithField("retry_in", delay).Warn("websocket reconnect failed")
		delay *= 2
		if delay > c.config.MaxReconnectDelay {
			delay = c.config.MaxReconnectDelay
		}
	}

	if c.metrics != nil {
		c.metrics.RecordWSReconnect()
	}
	c.log.Info("websocket reconnected")

	// Confirmations arrive through readLoop, so resubscribing must not block it.
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.resubscribeAll()
	}()
	return true
}

func (c *LogsClient) resubscribeAll() {
	c.mu.Lock()
	old := make(map[int64]*logsSubscription, len(c.subs))
	for id, sub := range c.subs {
		old[id] = sub
	}
	c.mu.Unlock()

	for oldID, sub := range old {
		ctx, cancel := context.WithTimeout(c.ctx, c.config.SubscribeTimeout)
		err := c.subscribe(ctx, &pendingSubscribe{sub: sub, replace: true, oldID: oldID})
		cancel()
		if err != nil && !errors.Is(err, ErrClientClosed) {
			c.log.WithError(err).WithField("subscription", oldID).Warn("resubscribe failed")
		}
	}
}

func (c *LogsClient) handleMessage(message []byte) {
	var msg wsMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.log.WithError(err).Debug("ignoring malformed websocket message")
		return
	}

	switch {
	case msg.Method == "logsNotification" && msg.Params != nil:
		c.handleLogsNotification(msg.Params)
	case msg.Error != nil:
		c.log.WithFields(logrus.Fields{
			"request_id": msg.ID,
			"code":       msg.Error.Code,
		}).Warn(msg.Error.Message)
	case msg.ID != 0 && msg.Result != nil:
		var subID int64
		if err := json.Unmarshal(msg.Result, &subID); err != nil {
			// unsubscribe acknowledgements carry a bool
			return
		}
		c.mu.Lock()
		if p, ok := c.pending[msg.ID]; ok {
			delete(c.pending, msg.ID)
			if p.replace && c.subs[p.oldID] == p.sub {
				delete(c.subs, p.oldID)
			}
			c.subs[subID] = p.sub
			p.confirm <- subID
		}
		c.mu.Unlock()
	}
}

func (c *LogsClient) handleLogsNotification(params *wsNotificationParams) {
	value := params.Result.Value
	n := LogNotification{
		Signature: value.Signature,
		Logs:      value.Logs,
		Err:       value.Err,
	}
	if params.Result.Context != nil {
		n.Slot = params.Result.Context.Slot
	}

	c.mu.Lock()
	sub, ok := c.subs[params.Subscription]
	c.mu.Unlock()
	if !ok {
		return
	}

	// Block until delivered; a slow consumer applies backpressure to the socket.
	select {
	case sub.ch <- n:
	case <-c.done:
	}
}

func (c *LogsClient) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				// A dead connection surfaces in readLoop.
				_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.config.WriteTimeout))
			}
			c.connMu.Unlock()
		}
	}
}

type wsRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

// wsMessage is any frame the server sends: a response or a notification.
type wsMessage struct {
	JSONRPC string                `json:"jsonrpc"`
	ID      uint64                `json:"id,omitempty"`
	Result  json.RawMessage       `json:"result,omitempty"`
	Error   *RPCError             `json:"error,omitempty"`
	Method  string                `json:"method,omitempty"`
	Params  *wsNotificationParams `json:"params,omitempty"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext  `json:"context"`
	Value   wsLogsValue `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsLogsValue struct {
	Signature string   `json:"signature"`
	Logs      []string `json:"logs"`
	Err       any      `json:"err"`
}

var _ WSClient = (*LogsClient)(nil)
