package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsIdlePingInterval = 30 * time.Second
	wsWriteTimeout     = 10 * time.Second
	wsReadLimit        = 4096
	wsClientBuffer     = 16
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wsClient is one subscriber. Slow clients lose messages instead of
// stalling the broadcaster.
type wsClient struct {
	send chan []byte
}

func (c *wsClient) sendJSON(msg wsMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// broadcaster fans values of one type out to every connected client.
// encode turns a value into the frame clients receive.
type broadcaster[T any] struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	queue   chan T
	encode  func(T) wsMessage
}

func newBroadcaster[T any](buffer int, encode func(T) wsMessage) *broadcaster[T] {
	return &broadcaster[T]{
		clients: make(map[*wsClient]struct{}),
		queue:   make(chan T, buffer),
		encode:  encode,
	}
}

func (b *broadcaster[T]) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case v := <-b.queue:
			b.mu.Lock()
			if len(b.clients) > 0 {
				msg := b.encode(v)
				for client := range b.clients {
					client.sendJSON(msg)
				}
			}
			b.mu.Unlock()
		}
	}
}

// offer queues v without blocking and reports whether it was accepted.
func (b *broadcaster[T]) offer(v T) bool {
	select {
	case b.queue <- v:
		return true
	default:
		return false
	}
}

func (b *broadcaster[T]) HasClients() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients) > 0
}

func (b *broadcaster[T]) register() *wsClient {
	c := &wsClient{send: make(chan []byte, wsClientBuffer)}
	b.mu.Lock()
	b.clients[c] = struct{}{}
	b.mu.Unlock()
	return c
}

func (b *broadcaster[T]) unregister(c *wsClient) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.send)
	}
	b.mu.Unlock()
}

// serve upgrades the request and keeps the client subscribed until the peer
// leaves. greet, when set, runs before any broadcast reaches the client.
func (b *broadcaster[T]) serve(w http.ResponseWriter, r *http.Request, greet func(*wsClient), onMessage func(*wsClient, []byte)) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		backendLog.Debug().Err(err).Str("path", r.URL.Path).Msg("ws-upgrade")
		return
	}
	client := b.register()
	if greet != nil {
		greet(client)
	}

	go func() {
		defer conn.Close()
		if err := writeWSWithHeartbeat(conn, client.send); err != nil {
			backendLog.Debug().Err(err).Str("path", r.URL.Path).Msg("ws-write")
		}
	}()

	var handle func([]byte)
	if onMessage != nil {
		handle = func(message []byte) { onMessage(client, message) }
	}
	readWS(conn, handle)
	b.unregister(client)
}

// writeWSWithHeartbeat drains send into conn and emits a JSON ping whenever
// the connection has been idle for wsIdlePingInterval.
func writeWSWithHeartbeat(conn *websocket.Conn, send <-chan []byte) error {
	ticker := time.NewTicker(wsIdlePingInterval)
	defer ticker.Stop()
	lastWrite := time.Now()
	pingPayload := mustMarshal(wsMessage{Type: "ping"})

	write := func(data []byte) error {
		if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return err
		}
		lastWrite = time.Now()
		return nil
	}

	for {
		select {
		case msg, ok := <-send:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
				return nil
			}
			if err := write(msg); err != nil {
				return err
			}
		case <-ticker.C:
			if time.Since(lastWrite) < wsIdlePingInterval {
				continue
			}
			if err := write(pingPayload); err != nil {
				return err
			}
		}
	}
}

// readWS blocks until the peer goes away, handing every text frame to
// onMessage. onMessage may be nil for push-only streams.
func readWS(conn *websocket.Conn, onMessage func([]byte)) {
	conn.SetReadLimit(wsReadLimit)
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				backendLog.Debug().Err(err).Msg("ws-read")
			}
			return
		}
		if onMessage != nil {
			onMessage(message)
		}
	}
}
