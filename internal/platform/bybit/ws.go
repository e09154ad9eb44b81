package bybit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ksenkin/tradediary/internal/domain"
)

const (
	// DefaultWSURL is the Bybit v5 private stream endpoint.
	DefaultWSURL = "wss://stream.bybit.com/v5/private"

	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed between inbound messages. Bybit answers
	// the JSON ping op, which resets the deadline like a pong would.
	pongWait = 30 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff.
	maxReconnectDelay = 60 * time.Second

	// authExpiryWindow is how far in the future the auth expires field is set.
	authExpiryWindow = 10 * time.Second
)

// ExecutionHandler is called with the fills of one execution push.
type ExecutionHandler func([]domain.RawFill)

// WSClient streams private execution events from Bybit in real time, so
// fills land in the diary without waiting for the next REST sync.
type WSClient struct {
	wsURL     string
	apiKey    string
	apiSecret string

	mu     sync.RWMutex
	conn   *websocket.Conn
	closed bool

	handlerMu         sync.RWMutex
	executionHandlers []ExecutionHandler

	// done is closed when the client shuts down.
	done chan struct{}
}

// NewWSClient creates a private-stream client for the given credentials.
func NewWSClient(wsURL, apiKey, apiSecret string) *WSClient {
	if wsURL == "" {
		wsURL = DefaultWSURL
	}
	return &WSClient{
		wsURL:     wsURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		done:      make(chan struct{}),
	}
}

// Connect dials the private stream, authenticates, and subscribes to the
// execution topic.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("bybit/ws: client is closed")
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("bybit/ws: connect: %w", err)
	}
	w.conn = conn

	w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		w.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	if err := w.sendAuth(); err != nil {
		conn.Close()
		w.conn = nil
		return fmt.Errorf("bybit/ws: auth: %w", err)
	}
	if err := w.sendSubscribe(); err != nil {
		conn.Close()
		w.conn = nil
		return fmt.Errorf("bybit/ws: subscribe: %w", err)
	}

	go w.readLoop()
	go w.pingLoop()

	return nil
}

// OnExecution registers a handler called for every execution push.
func (w *WSClient) OnExecution(handler ExecutionHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.executionHandlers = append(w.executionHandlers, handler)
}

// Close shuts down the WebSocket connection.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	close(w.done)

	if w.conn != nil {
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return w.conn.Close()
	}
	return nil
}

// sendAuth sends the private-stream auth op. The signature is
// HMAC-SHA256(secret, "GET/realtime"+expires) hex-encoded, with expires in
// milliseconds. Caller must hold w.mu.
func (w *WSClient) sendAuth() error {
	expires := time.Now().Add(authExpiryWindow).UnixMilli()

	mac := hmac.New(sha256.New, []byte(w.apiSecret))
	mac.Write([]byte("GET/realtime" + strconv.FormatInt(expires, 10)))
	sig := hex.EncodeToString(mac.Sum(nil))

	return w.writeJSON(wsAuth{
		Op:   "auth",
		Args: []any{w.apiKey, expires, sig},
	})
}

// sendSubscribe subscribes to the execution topic. Caller must hold w.mu.
func (w *WSClient) sendSubscribe() error {
	return w.writeJSON(wsSubscribe{
		Op:   "subscribe",
		Args: []string{"execution"},
	})
}

// writeJSON marshals and sends one command. Caller must hold w.mu.
func (w *WSClient) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop continuously reads messages from the WebSocket and dispatches
// them to handlers. On disconnect it attempts reconnection.
func (w *WSClient) readLoop() {
	defer func() {
		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()
		if conn != nil {
			conn.Close()
		}
	}()

	for {
		select {
		case <-w.done:
			return
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
				return
			default:
			}

			w.reconnect()
			return
		}

		conn.SetReadDeadline(time.Now().Add(pongWait))
		w.handleMessage(message)
	}
}

// pingLoop sends periodic JSON ping ops to keep the connection alive.
func (w *WSClient) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.mu.RLock()
			conn := w.conn
			w.mu.RUnlock()

			if conn == nil {
				return
			}

			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"op":"ping"}`)); err != nil {
				return
			}
		}
	}
}

// handleMessage parses a raw WebSocket message and routes execution pushes.
func (w *WSClient) handleMessage(raw []byte) {
	var msg wsMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if msg.Topic != "execution" || len(msg.Data) == 0 {
		return
	}

	fills := make([]domain.RawFill, 0, len(msg.Data))
	for _, e := range msg.Data {
		fills = append(fills, e.ToRawFill())
	}

	w.handlerMu.RLock()
	handlers := w.executionHandlers
	w.handlerMu.RUnlock()

	for _, h := range handlers {
		h(fills)
	}
}

// reconnect attempts to re-establish the WebSocket connection with
// exponential backoff.
func (w *WSClient) reconnect() {
	delay := reconnectDelay

	for {
		select {
		case <-w.done:
			return
		default:
		}

		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := w.Connect(ctx)
		cancel()

		if err == nil {
			return
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}
