package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/karmankarshows/carshow/internal/logger"
	"github.com/karmankarshows/carshow/internal/models"
	"github.com/karmankarshows/carshow/internal/services"
)

// Message types sent to clients.
const (
	TypeVotingStatus = "voting_status"
	TypeVoteRecorded = "vote_recorded"
	TypeCountdown    = "countdown"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // leaderboard screens are served from other hosts at events
	},
}

// outbound is a message addressed to the clients following one show.
// An empty slug reaches every client. A non-nil to reaches only that client.
type outbound struct {
	slug string
	to   *Client
	msg  models.WSMessage
}

// Hub maintains the set of active clients and broadcasts messages to the clients
type Hub struct {
	log        logger.Logger
	shows      services.ShowServicer
	clients    map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	slug string
	send chan models.WSMessage
}

// New creates a new Hub instance with injected dependencies
func New(log logger.Logger, shows services.ShowServicer) *Hub {
	return &Hub{
		log:        log,
		shows:      shows,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Start begins the hub's main loop in a goroutine
func (h *Hub) Start() {
	go h.run()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.log.Debug("Client connected", "show", client.slug, "total_clients", total)
			go h.greet(client)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.log.Debug("Client disconnected", "total_clients", total)

		case out := <-h.broadcast:
			h.mutex.RLock()
			for client := range h.clients {
				if out.to != nil && out.to != client {
					continue
				}
				if out.slug != "" && client.slug != "" && client.slug != out.slug {
					continue
				}
				select {
				case client.send <- out.msg:
				default:
					// send buffer full
					go func(c *Client) {
						h.unregister <- c
					}(client)
				}
			}
			h.mutex.RUnlock()
		}
	}
}

// greet sends the current voting status to a new client.
func (h *Hub) greet(client *Client) {
	if client.slug == "" {
		return
	}
	status, err := h.shows.Status(context.Background(), client.slug)
	if err != nil {
		h.log.Debug("No status for client", "show", client.slug, "error", err)
		return
	}
	select {
	case h.broadcast <- outbound{to: client, msg: models.WSMessage{Type: TypeVotingStatus, Payload: status}}:
	default:
		h.log.Warn("WebSocket greeting dropped", "show", client.slug)
	}
}

// BroadcastMessage queues a message for the clients following a show.
// Messages are dropped when the hub is backed up.
func (h *Hub) BroadcastMessage(slug, msgType string, payload interface{}) {
	select {
	case h.broadcast <- outbound{slug: slug, msg: models.WSMessage{Type: msgType, Payload: payload}}:
	default:
		h.log.Warn("WebSocket broadcast dropped", "type", msgType, "show", slug)
	}
}

// BroadcastVotingStatus implements services.Broadcaster
func (h *Hub) BroadcastVotingStatus(status services.VotingStatus) {
	h.BroadcastMessage(status.ShowSlug, TypeVotingStatus, status)
}

// BroadcastVoteRecorded implements services.Broadcaster
func (h *Hub) BroadcastVoteRecorded(vote services.VoteRecorded) {
	h.BroadcastMessage(vote.ShowSlug, TypeVoteRecorded, vote)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("WebSocket error", "error", err)
			}
			break
		}

		var msg models.WSMessage
		if err := json.Unmarshal(message, &msg); err == nil {
			c.hub.log.Debug("Received message", "type", msg.Type)
		}
	}
}

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
			if err := c.conn.WriteJSON(message); err != nil {
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

// ServeWs upgrades the request and follows the show named by the "show"
// query parameter. Without it the client receives every show's messages.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("WebSocket upgrade error", "error", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		slug: r.URL.Query().Get("show"),
		send: make(chan models.WSMessage, sendBuffer),
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// StartVotingCountdown ticks every interval until ctx is done. Each tick
// closes any show whose deadline has passed and sends the time remaining
// for shows still counting down.
func (h *Hub) StartVotingCountdown(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info("Voting countdown stopped")
			return
		case <-ticker.C:
			h.checkAndUpdateCountdown(ctx)
		}
	}
}

func (h *Hub) checkAndUpdateCountdown(ctx context.Context) {
	shows, err := h.shows.ListShows(ctx)
	if err != nil {
		h.log.Warn("Countdown could not list shows", "error", err)
		return
	}
	for _, show := range shows {
		if !show.VotingOpen || show.VotingEndsAt == nil {
			continue
		}
		// Status closes the show and broadcasts when the deadline has passed.
		status, err := h.shows.Status(ctx, show.Slug)
		if err != nil {
			h.log.Warn("Countdown status failed", "show", show.Slug, "error", err)
			continue
		}
		if status.Open && status.EndsAt != nil {
			h.BroadcastMessage(show.Slug, TypeCountdown, map[string]interface{}{
				"show_slug":         show.Slug,
				"seconds_remaining": status.SecondsRemaining,
			})
		}
	}
}
