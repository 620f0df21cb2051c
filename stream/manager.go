// Package stream pushes balance changes to WebSocket subscribers. Clients
// watch addresses over a small JSON protocol; a watcher polls the dev-node
// for new blocks and publishes changed balances to whoever watches them.
package stream

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Update is a balance change pushed to subscribers. Balance is a decimal
// string so values above 2^53 survive JSON.
type Update struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Block   uint64 `json:"block"`
}

// request is what clients send: {"action":"watch","address":"0x..."}
type request struct {
	Action  string `json:"action"`
	Address string `json:"address"`
}

type reply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Manager tracks connected clients and their watched addresses
type Manager struct {
	register   chan *client
	unregister chan *client
	updates    chan Update
	log        *logrus.Logger

	mu      sync.Mutex
	clients map[*client]bool
	watched map[string]int // lowercased address -> subscriber count

	validate func(string) bool
}

// NewManager creates a new stream manager. validate rejects malformed
// addresses before they enter the watch list.
func NewManager(validate func(string) bool, log *logrus.Logger) *Manager {
	return &Manager{
		register:   make(chan *client),
		unregister: make(chan *client),
		updates:    make(chan Update, 64),
		clients:    make(map[*client]bool),
		watched:    make(map[string]int),
		validate:   validate,
		log:        log,
	}
}

// Run starts the manager loop
func (m *Manager) Run() {
	for {
		select {
		case c := <-m.register:
			m.mu.Lock()
			m.clients[c] = true
			m.mu.Unlock()
			m.log.Infof("Stream client connected. Total clients: %d", m.clientCount())
		case c := <-m.unregister:
			m.mu.Lock()
			if _, ok := m.clients[c]; ok {
				delete(m.clients, c)
				for addr := range c.watching {
					m.dropWatch(addr)
				}
				close(c.send)
			}
			m.mu.Unlock()
			m.log.Infof("Stream client disconnected. Total clients: %d", m.clientCount())
		case u := <-m.updates:
			m.deliver(u)
		}
	}
}

// Publish queues a balance update for delivery. Never blocks the caller;
// updates are dropped when the queue is full.
func (m *Manager) Publish(u Update) {
	select {
	case m.updates <- u:
	default:
		m.log.Warnf("Dropping stream update for %s, queue full", u.Address)
	}
}

// Watched returns the distinct addresses any client currently watches.
func (m *Manager) Watched() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	addrs := make([]string, 0, len(m.watched))
	for addr := range m.watched {
		addrs = append(addrs, addr)
	}
	return addrs
}

func (m *Manager) deliver(u Update) {
	addr := strings.ToLower(u.Address)
	data, err := json.Marshal(u)
	if err != nil {
		m.log.Errorf("Failed to marshal stream update: %v", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for c := range m.clients {
		if !c.watching[addr] {
			continue
		}
		select {
		case c.send <- data:
		default:
			// Slow consumer, cut it loose. Closing the connection makes
			// its read pump exit and unregister the client.
			c.conn.Close()
		}
	}
}

func (m *Manager) addWatch(addr string) {
	m.watched[addr]++
}

func (m *Manager) dropWatch(addr string) {
	if m.watched[addr] <= 1 {
		delete(m.watched, addr)
		return
	}
	m.watched[addr]--
}

func (m *Manager) clientCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// client is one WebSocket connection and its watch set
type client struct {
	conn     *websocket.Conn
	send     chan []byte
	watching map[string]bool
	log      *logrus.Logger
}

// Serve registers conn with the manager and starts its read and write pumps.
func (m *Manager) Serve(conn *websocket.Conn) {
	c := &client{
		conn:     conn,
		send:     make(chan []byte, 64),
		watching: make(map[string]bool),
		log:      m.log,
	}
	m.register <- c
	go c.writePump()
	go c.readPump(m)
}

// readPump pumps subscription requests from the connection to the manager
func (c *client) readPump(m *Manager) {
	defer func() {
		m.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Errorf("Stream read error: %v", err)
			}
			break
		}

		var req request
		if err := json.Unmarshal(message, &req); err != nil {
			c.respond(reply{Error: "invalid request"})
			continue
		}
		c.handle(m, req)
	}
}

func (c *client) handle(m *Manager, req request) {
	addr := strings.ToLower(req.Address)
	switch req.Action {
	case "watch":
		if !m.validate(req.Address) {
			c.respond(reply{Error: "invalid address: " + req.Address})
			return
		}
		m.mu.Lock()
		if !c.watching[addr] {
			c.watching[addr] = true
			m.addWatch(addr)
		}
		m.mu.Unlock()
		c.respond(reply{OK: true})
	case "unwatch":
		m.mu.Lock()
		if c.watching[addr] {
			delete(c.watching, addr)
			m.dropWatch(addr)
		}
		m.mu.Unlock()
		c.respond(reply{OK: true})
	default:
		c.respond(reply{Error: "unknown action: " + req.Action})
	}
}

func (c *client) respond(r reply) {
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// writePump pumps queued frames to the connection
func (c *client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
