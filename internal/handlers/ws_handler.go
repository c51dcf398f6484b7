package handlers

import (
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/yourorg/classifieds/services/relay-service/internal/config"
	"github.com/yourorg/classifieds/services/relay-service/internal/relay"
)

// WSHandler owns the websocket side of the relay: it upgrades connections,
// runs the per-connection read loop and feeds decoded frames to the hub.
type WSHandler struct {
	hub    *relay.Hub
	cfg    *config.Config
	logger *zap.SugaredLogger
}

func NewWSHandler(hub *relay.Hub, cfg *config.Config, logger *zap.SugaredLogger) *WSHandler {
	return &WSHandler{hub: hub, cfg: cfg, logger: logger}
}

// WS returns the connection handler mounted behind the fiber websocket
// upgrade middleware.
func (h *WSHandler) WS() func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		client := relay.NewClient(conn, h.cfg.WS.SendBufferSize)
		h.hub.Register(client)
		h.logger.Debugw("connection opened", "connId", client.ID, "remote", conn.RemoteAddr())

		go client.WritePump(h.cfg.PingInterval, h.cfg.WriteDeadline)
		h.readPump(conn, client)
	}
}

func (h *WSHandler) readPump(conn *websocket.Conn, client *relay.Client) {
	defer func() {
		h.hub.Unregister(client)
		h.logger.Debugw("connection closed", "connId", client.ID)
	}()

	pongWait := 2 * h.cfg.PingInterval
	conn.SetReadLimit(h.cfg.WS.MaxMessageSizeBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				h.logger.Debugw("read error", "connId", client.ID, "err", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		var env relay.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			client.Enqueue(relay.EncodeEvent(relay.EventError, "invalid frame"))
			continue
		}
		h.hub.Dispatch(client, env)
	}
}
