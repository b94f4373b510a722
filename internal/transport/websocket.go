package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	applog "levelmeter/internal/log"

	"github.com/gorilla/websocket"
)

// MeterPath is the HTTP path clients connect to for snapshots.
const MeterPath = "/meter"

const (
	broadcastQueueSize = 256
	writeTimeout       = time.Second
)

var wsLog = applog.Named("websocket")

// WebSocketTransport implements the Transport interface by broadcasting each
// value it is sent as a JSON text frame to every client connected on
// MeterPath. Frames are dropped when the broadcast queue is full. Send never
// waits on the client lock, so a slow client cannot stall the caller.
type WebSocketTransport struct {
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex // Protects clients; never held by Send
	broadcast chan []byte
	done      chan struct{}
	listener  net.Listener
	server    *http.Server

	clientCount atomic.Int32
	closed      atomic.Bool
	dropped     atomic.Uint64
}

// NewWebSocketTransport listens on addr and starts serving. Use ":0" for an
// ephemeral port and Addr to find it.
func NewWebSocketTransport(addr string) (*WebSocketTransport, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	wst := &WebSocketTransport{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Meter displays are served from anywhere
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, broadcastQueueSize),
		done:      make(chan struct{}),
		listener:  ln,
	}

	wst.start()
	return wst, nil
}

// Addr returns the address the server is listening on.
func (wst *WebSocketTransport) Addr() string {
	return wst.listener.Addr().String()
}

// start begins the WebSocket server
func (wst *WebSocketTransport) start() {
	mux := http.NewServeMux()
	mux.HandleFunc(MeterPath, wst.handleWebSocket)

	wst.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		wsLog.Infof("serving snapshots on ws://%s%s", wst.Addr(), MeterPath)
		if err := wst.server.Serve(wst.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			wsLog.Errorf("server error: %v", err)
		}
	}()

	go wst.handleBroadcasts()
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wsLog.Warnf("upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	if wst.closed.Load() {
		wst.clientsMu.Unlock()
		conn.Close()
		return
	}
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.clientCount.Store(int32(total))
	wst.clientsMu.Unlock()
	wsLog.Infof("client %s connected, total: %d", conn.RemoteAddr(), total)

	// Clients never send; the read loop only detects disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				wst.removeClient(conn)
				return
			}
		}
	}()
}

func (wst *WebSocketTransport) removeClient(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	total := len(wst.clients)
	wst.clientCount.Store(int32(total))
	wst.clientsMu.Unlock()

	if ok {
		conn.Close()
		wsLog.Infof("client %s disconnected, total: %d", conn.RemoteAddr(), total)
	}
}

// handleBroadcasts sends messages to all connected clients. Writes happen
// outside clientsMu on a copy of the client list.
func (wst *WebSocketTransport) handleBroadcasts() {
	var targets []*websocket.Conn
	for {
		var msg []byte
		select {
		case msg = <-wst.broadcast:
		case <-wst.done:
			return
		}

		targets = targets[:0]
		wst.clientsMu.Lock()
		for client := range wst.clients {
			targets = append(targets, client)
		}
		wst.clientsMu.Unlock()

		for _, client := range targets {
			client.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := client.WriteMessage(websocket.TextMessage, msg); err != nil {
				wsLog.Warnf("error sending to client %s: %v", client.RemoteAddr(), err)
				wst.removeClient(client)
			}
		}
	}
}

// ClientCount returns the number of connected clients.
func (wst *WebSocketTransport) ClientCount() int {
	return int(wst.clientCount.Load())
}

// Dropped returns the number of frames dropped because the queue was full.
func (wst *WebSocketTransport) Dropped() uint64 {
	return wst.dropped.Load()
}

// Send encodes data as JSON and queues it for broadcast. It is a no-op
// without clients or after Close, and never blocks.
func (wst *WebSocketTransport) Send(data any) error {
	if wst.closed.Load() || wst.clientCount.Load() == 0 {
		return nil
	}

	msg, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	select {
	case wst.broadcast <- msg:
	default:
		wst.dropped.Add(1)
	}
	return nil
}

// Close shuts down the WebSocket server and disconnects all clients.
func (wst *WebSocketTransport) Close() error {
	wst.clientsMu.Lock()
	if !wst.closed.CompareAndSwap(false, true) {
		wst.clientsMu.Unlock()
		return nil
	}
	for client := range wst.clients {
		client.Close()
	}
	wst.clients = make(map[*websocket.Conn]bool)
	wst.clientCount.Store(0)
	close(wst.done)
	wst.clientsMu.Unlock()

	wsLog.Infof("closing server")
	return wst.server.Close()
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)
