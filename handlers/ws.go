package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/taskflow-app/taskflow/services"
)

// WSHandler upgrades authenticated connections and registers them with the
// fanout hub.
type WSHandler struct {
	hub *services.Hub
}

func NewWSHandler(hub *services.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

// Handle upgrades the HTTP connection to a WebSocket connection. The new
// client is subscribed to the board topic; it receives events published
// from then on, and pulls the recent feed over HTTP for anything earlier.
func (h *WSHandler) Handle(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		respondMessage(w, http.StatusUnauthorized, "Access token missing")
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // CORS policy is enforced at the HTTP layer
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &services.Client{
		Hub:    h.hub,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		UserID: claims.UserID,
	}
	h.hub.Register(client)
	logrus.WithField("user_id", claims.UserID).Info("websocket client registered")

	go client.WritePump()
	go client.ReadPump()
}
