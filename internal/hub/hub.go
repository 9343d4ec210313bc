// Package hub fans triage progress events out to connected back-office
// clients over websockets.
package hub

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"
)

type broadcastItem struct {
	ticketID string
	data     []byte
}

type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastItem
	token      string
	mu         sync.RWMutex
	ctxWrap    *ctxWrapper
	running    atomic.Bool
}

type ctxWrapper struct {
	ctx context.Context
}

func New(token string) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		broadcast:  make(chan broadcastItem, 256),
		token:      token,
		ctxWrap:    &ctxWrapper{ctx: context.Background()},
	}
}

func (h *Hub) getContext() context.Context {
	if h.ctxWrap != nil {
		return h.ctxWrap.ctx
	}
	return context.Background()
}

func (h *Hub) Run(ctx context.Context) {
	h.ctxWrap = &ctxWrapper{ctx: ctx}
	h.running.Store(true)
	defer h.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for _, c := range h.clients {
				close(c.send)
			}
			h.clients = make(map[string]*Client)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			go client.writePump(h.getContext())
			go client.readPump(h.getContext())
			log.Printf("client connected: %s (total: %d)", client.id, h.ClientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.mu.Unlock()
			log.Printf("client disconnected: %s (total: %d)", client.id, h.ClientCount())

		case item := <-h.broadcast:
			h.mu.RLock()
			for _, c := range h.clients {
				if !c.wantsTicket(item.ticketID) {
					continue
				}
				select {
				case c.send <- item.data:
				default:
					log.Printf("client %s send buffer full, dropping message", c.id)
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" || token != h.token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Printf("websocket accept error: %v", err)
		return
	}

	client := newClient(conn, h)

	select {
	case h.register <- client:
	default:
		log.Printf("hub not accepting connections")
		conn.Close(websocket.StatusTryAgainLater, "server busy")
	}
}

// BroadcastTriageEvent pushes one triage progress event to every client
// subscribed to the ticket. Non-blocking; events are dropped when the hub is
// saturated.
func (h *Hub) BroadcastTriageEvent(msg TriageEventMessage) {
	if msg.Ts == 0 {
		msg.Ts = time.Now().UnixMilli()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("error marshaling triage event: %v", err)
		return
	}
	select {
	case h.broadcast <- broadcastItem{ticketID: msg.TicketID, data: data}:
	default:
		log.Printf("broadcast channel full, dropping triage event")
	}
}

func (h *Hub) SendError(client *Client, message string) {
	msg := ErrorMessage{Type: "error", Message: message}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("error marshaling error message: %v", err)
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) isRunning() bool {
	return h.running.Load()
}

func (h *Hub) unregisterClient(c *Client) {
	if !h.isRunning() {
		c.conn.Close(websocket.StatusNormalClosure, "")
		return
	}
	select {
	case h.unregister <- c:
	default:
		log.Printf("unregister channel full for client %s, forcing close", c.id)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}
}
