package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zeusync/enginedb/internal/core/observability/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// pending frames per client; a client that falls this far behind misses
// frames but still sees at least one refresh after the backlog drains
const clientBacklog = 8

type refreshFrame struct {
	Type string `json:"type"`
	Op   string `json:"op,omitempty"`
}

type feedClient struct {
	conn *websocket.Conn
	send chan refreshFrame
	done chan struct{}
	once sync.Once
}

func (c *feedClient) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

type refreshFeed struct {
	maxClients   int
	writeTimeout time.Duration
	logger       log.Log

	mu      sync.Mutex
	clients map[*feedClient]struct{}
}

func newRefreshFeed(maxClients int, writeTimeout time.Duration, logger log.Log) *refreshFeed {
	return &refreshFeed{
		maxClients:   maxClients,
		writeTimeout: writeTimeout,
		logger:       logger,
		clients:      make(map[*feedClient]struct{}),
	}
}

func (f *refreshFeed) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

func (f *refreshFeed) add(c *feedClient) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.maxClients > 0 && len(f.clients) >= f.maxClients {
		return false
	}
	f.clients[c] = struct{}{}
	return true
}

func (f *refreshFeed) remove(c *feedClient) {
	f.mu.Lock()
	delete(f.clients, c)
	f.mu.Unlock()
	c.close()
}

// broadcast never blocks the publishing store call.
func (f *refreshFeed) broadcast(frame refreshFrame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.clients {
		select {
		case c.send <- frame:
		default:
		}
	}
}

func (f *refreshFeed) closeAll() {
	f.mu.Lock()
	clients := make([]*feedClient, 0, len(f.clients))
	for c := range f.clients {
		clients = append(clients, c)
	}
	f.clients = make(map[*feedClient]struct{})
	f.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping"),
			time.Now().Add(time.Second))
		c.close()
	}
}

func (f *refreshFeed) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if f.maxClients > 0 && f.count() >= f.maxClients {
		http.Error(w, ErrMaxClientsReached.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("websocket upgrade failed", log.Error(err))
		return
	}

	c := &feedClient{
		conn: conn,
		send: make(chan refreshFrame, clientBacklog),
		done: make(chan struct{}),
	}
	if !f.add(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, ErrMaxClientsReached.Error()),
			time.Now().Add(time.Second))
		c.close()
		return
	}
	f.logger.Debug("feed client connected", log.String("remote", conn.RemoteAddr().String()))

	go f.readLoop(c)
	f.writeLoop(c)
}

// readLoop discards client frames; it exists to process control frames and
// notice disconnects.
func (f *refreshFeed) readLoop(c *feedClient) {
	defer f.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (f *refreshFeed) writeLoop(c *feedClient) {
	defer f.remove(c)
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(f.writeTimeout))
			if err := c.conn.WriteJSON(frame); err != nil {
				f.logger.Debug("dropping feed client", log.String("remote", c.conn.RemoteAddr().String()), log.Error(err))
				return
			}
		}
	}
}
