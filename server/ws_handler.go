package server

import (
	"encoding/json"
	"net/http"

	"pulsefm/core/session"
	"pulsefm/logger"
	"pulsefm/model"

	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocketHandler upgrades a listener connection and registers it with
// the hub. The api key identifies the client across reconnects; an
// optional bearer token (query or Authorization header) carries the
// role.
func (h *APIHandler) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	apiKey := r.URL.Query().Get("apiKey")
	if apiKey == "" {
		apiKey = r.Header.Get("X-API-Key")
	}
	if apiKey == "" {
		writeBadRequest(w, "apiKey is required")
		return
	}

	name := r.URL.Query().Get("name")
	role := model.RoleListener
	clientID := apiKey

	claims := h.claimsFromRequest(r)
	if claims == nil {
		if token := r.URL.Query().Get("token"); token != "" {
			claims = h.claimsFromToken(token)
		}
	}
	if claims != nil {
		role = claims.Role
		clientID = claims.ClientID
		if name == "" {
			name = claims.ClientName
		}
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	sess := h.sessions.Register(r.Context(), apiKey, clientID, name, role)
	client := session.NewClient(h.hub, conn, apiKey, sess.ConnectionID)
	h.hub.Register(client)

	h.greet(client, sess)

	go client.WritePump()
	client.ReadPump(r.Context(), h.sessions.Touch)

	h.sessions.MarkDisconnected(apiKey)
}

// greet seeds a fresh connection with its session descriptor and the
// current now-playing record, so clients render without waiting for the
// next broadcast.
func (h *APIHandler) greet(client *session.Client, sess *model.ClientSession) {
	h.push(client, model.Notification(model.ActionOnStart, sess))
	h.push(client, model.Notification(model.ActionNowPlaying, h.state.Now()))
}

func (h *APIHandler) push(client *session.Client, msg *model.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Warn("greeting encode failed", logger.ErrorField(err))
		return
	}
	select {
	case client.Send <- data:
	default:
	}
}
