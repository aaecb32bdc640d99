package handler

import (
	"net/http"
	"time"

	"clearlot/internal/middleware"
	"clearlot/internal/models"
	"clearlot/internal/repository"
	"clearlot/internal/stream"
	"clearlot/internal/ws"
	"clearlot/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSHandler upgrades an authenticated connection and bridges the push streams
// onto it: the user's conversation list, their notification feed, and any
// conversation message logs the client asks to watch.
type WSHandler struct {
	hub    *ws.Hub
	broker *stream.Broker
	users  *repository.UserRepository
	log    *zap.Logger
}

func NewWSHandler(hub *ws.Hub, broker *stream.Broker, users *repository.UserRepository) *WSHandler {
	return &WSHandler{hub: hub, broker: broker, users: users, log: logger.WithModule("ws")}
}

type wsFrame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// inbound control frames from the client
type wsCommand struct {
	Action         string `json:"action"` // watch_conversation, unwatch_conversation
	ConversationID uint   `json:"conversation_id"`
}

func (h *WSHandler) Serve(c *gin.Context) {
	userID := middleware.GetUserID(c)
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Uint("user_id", userID), zap.Error(err))
		return
	}

	client := ws.NewClient(userID)
	h.hub.Register(client)
	if h.hub.UserConnCount(userID) == 1 {
		if err := h.users.SetOnline(userID, true); err != nil {
			h.log.Warn("online flag update failed", zap.Uint("user_id", userID), zap.Error(err))
		}
	}

	unsubList := h.broker.SubscribeToConversationList(userID, userID, func(list []stream.ConversationEntry) {
		client.Push(wsFrame{Type: "conversation_list", Data: list})
	})
	unsubNotif := h.broker.SubscribeToNotifications(userID, userID, func(list []models.Notification) {
		client.Push(wsFrame{Type: "notifications", Data: list})
	})
	msgUnsubs := make(map[uint]stream.Unsubscribe)

	cleanup := func() {
		unsubList()
		unsubNotif()
		for _, unsub := range msgUnsubs {
			unsub()
		}
		client.Close()
		if h.hub.UserConnCount(userID) == 0 {
			if err := h.users.SetOnline(userID, false); err != nil {
				h.log.Warn("online flag update failed", zap.Uint("user_id", userID), zap.Error(err))
			}
		}
		conn.Close()
	}

	// writer pump
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case data, ok := <-client.Send:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if !ok {
					conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// reader pump owns the subscription map; commands arrive one at a time
	defer cleanup()
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		var cmd wsCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		switch cmd.Action {
		case "watch_conversation":
			if _, watching := msgUnsubs[cmd.ConversationID]; watching {
				continue
			}
			convID := cmd.ConversationID
			msgUnsubs[convID] = h.broker.SubscribeToConversationMessages(userID, convID, func(list []models.Message) {
				client.Push(wsFrame{Type: "messages", Data: gin.H{"conversation_id": convID, "messages": list}})
			})
		case "unwatch_conversation":
			if unsub, watching := msgUnsubs[cmd.ConversationID]; watching {
				unsub()
				delete(msgUnsubs, cmd.ConversationID)
			}
		}
	}
}
