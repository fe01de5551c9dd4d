package services

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024
)

// TopicBoard is the board-wide topic every client is subscribed to on
// connect. Task mutations are published here.
const TopicBoard = "board"

// Client represents a connected WebSocket subscriber.
type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID string
}

// Event is the standard message format pushed to subscribers.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// clientCommand is what a connected client may send upstream: pings and
// topic subscriptions. Anything else is dropped; clients cannot publish.
type clientCommand struct {
	Type  string `json:"type"`
	Topic string `json:"topic,omitempty"`
}

// ReadPump consumes messages from the WebSocket connection. Clients may
// only ping and manage their subscriptions; publishing is server-side.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithError(err).Warn("websocket read error")
			}
			break
		}

		var cmd clientCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			logrus.WithError(err).Warn("malformed websocket message")
			continue
		}

		switch cmd.Type {
		case "ping":
			// Reply directly to this client only
			pong, err := json.Marshal(Event{
				Type: "pong",
				Data: map[string]string{"timestamp": time.Now().Format(time.RFC3339)},
			})
			if err == nil {
				c.Send <- pong
			}
		case "subscribe":
			if cmd.Topic != "" {
				c.Hub.Subscribe(c, cmd.Topic)
			}
		case "unsubscribe":
			if cmd.Topic != "" {
				c.Hub.UnsubscribeTopic(c, cmd.Topic)
			}
		default:
			logrus.WithField("type", cmd.Type).Debug("dropping unsupported client message")
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current WebSocket message
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte("\n"))
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type subscription struct {
	client *Client
	topic  string
}

type publication struct {
	topic   string
	payload []byte
}

// Hub maintains the set of active clients and fans published events out to
// every subscriber of the event's topic. Delivery is fire-and-forget: a
// subscriber whose send buffer is full is dropped, and nothing is surfaced
// to the publisher.
type Hub struct {
	topics      map[string]map[*Client]bool
	memberships map[*Client]map[string]bool

	register    chan *Client
	unregister  chan *Client
	subscribe   chan subscription
	unsubscribe chan subscription
	publish     chan publication
}

// NewHub creates a new hub instance.
func NewHub() *Hub {
	return &Hub{
		topics:      make(map[string]map[*Client]bool),
		memberships: make(map[*Client]map[string]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan subscription),
		unsubscribe: make(chan subscription),
		publish:     make(chan publication),
	}
}

// Register adds a client to the hub, subscribed to the board topic.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client and all its subscriptions.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe adds the client to a topic.
func (h *Hub) Subscribe(client *Client, topic string) {
	h.subscribe <- subscription{client: client, topic: topic}
}

// UnsubscribeTopic removes the client from a topic.
func (h *Hub) UnsubscribeTopic(client *Client, topic string) {
	h.unsubscribe <- subscription{client: client, topic: topic}
}

// Publish sends an event to every client currently subscribed to topic.
// Clients that connect later do not receive it.
func (h *Hub) Publish(topic string, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).Error("failed to marshal event")
		return
	}
	h.publish <- publication{topic: topic, payload: payload}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addSubscription(client, TopicBoard)
			logrus.WithField("user_id", client.UserID).Info("client connected")
		case client := <-h.unregister:
			if _, ok := h.memberships[client]; ok {
				h.dropClient(client)
				logrus.WithField("user_id", client.UserID).Info("client disconnected")
			}
		case sub := <-h.subscribe:
			h.addSubscription(sub.client, sub.topic)
		case sub := <-h.unsubscribe:
			if subscribers, ok := h.topics[sub.topic]; ok {
				delete(subscribers, sub.client)
				if len(subscribers) == 0 {
					delete(h.topics, sub.topic)
				}
			}
			if topics, ok := h.memberships[sub.client]; ok {
				delete(topics, sub.topic)
			}
		case pub := <-h.publish:
			subscribers := h.topics[pub.topic]
			logrus.WithFields(logrus.Fields{
				"topic":       pub.topic,
				"subscribers": len(subscribers),
			}).Debug("publishing event")

			for client := range subscribers {
				select {
				case client.Send <- pub.payload:
				default:
					// Client's send buffer is full, assume disconnected
					logrus.WithField("user_id", client.UserID).Warn("client send buffer full, dropping client")
					h.dropClient(client)
				}
			}
		}
	}
}

func (h *Hub) addSubscription(client *Client, topic string) {
	if _, ok := h.memberships[client]; !ok {
		h.memberships[client] = make(map[string]bool)
	}
	h.memberships[client][topic] = true
	if _, ok := h.topics[topic]; !ok {
		h.topics[topic] = make(map[*Client]bool)
	}
	h.topics[topic][client] = true
}

func (h *Hub) dropClient(client *Client) {
	for topic := range h.memberships[client] {
		delete(h.topics[topic], client)
		if len(h.topics[topic]) == 0 {
			delete(h.topics, topic)
		}
	}
	delete(h.memberships, client)
	close(client.Send)
}
