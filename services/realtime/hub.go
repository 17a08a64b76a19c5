// Package realtimesvc pushes chat events to connected websocket clients.
// Clients subscribe to one chat session (a room); events broadcast to a
// room fan out to every socket in it.
package realtimesvc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/studentbuddy/backend/core"
	"github.com/studentbuddy/backend/core/mentor"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

type (
	roomEvent struct {
		room    string
		payload []byte
	}

	client struct {
		hub  *Hub
		room string
		conn *websocket.Conn
		send chan []byte
	}

	Hub struct {
		logger     core.Logger
		upgrader   websocket.Upgrader
		register   chan *client
		unregister chan *client
		broadcast  chan roomEvent
		done       chan struct{}
		rooms      map[string]map[*client]struct{}
	}
)

var errHubStopped = errors.New("realtime hub stopped")

var _ mentor.Broadcaster = (*Hub)(nil)

func NewHub(logger core.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// cross-origin browsers are let in; auth happens before the upgrade
			CheckOrigin: func(*http.Request) bool { return true },
		},
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan roomEvent, 64),
		done:       make(chan struct{}),
		rooms:      make(map[string]map[*client]struct{}),
	}
}

// Run owns the room table; all mutations go through the hub's channels
// so no locks are needed. It returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case cl := <-h.register:
			room, ok := h.rooms[cl.room]
			if !ok {
				room = make(map[*client]struct{})
				h.rooms[cl.room] = room
			}
			room[cl] = struct{}{}

		case cl := <-h.unregister:
			if room, ok := h.rooms[cl.room]; ok {
				if _, ok = room[cl]; ok {
					delete(room, cl)
					close(cl.send)
					if len(room) == 0 {
						delete(h.rooms, cl.room)
					}
				}
			}

		case evt := <-h.broadcast:
			room := h.rooms[evt.room]
			for cl := range room {
				select {
				case cl.send <- evt.payload:
				default:
					// slow consumer; drop it
					delete(room, cl)
					close(cl.send)
				}
			}
			if len(room) == 0 {
				delete(h.rooms, evt.room)
			}

		case <-ctx.Done():
			for _, room := range h.rooms {
				for cl := range room {
					close(cl.send)
				}
			}
			h.rooms = make(map[string]map[*client]struct{})
			close(h.done)
			return
		}
	}
}

// Broadcast pushes a chat event to every client in the session's room.
func (h *Hub) Broadcast(sessionID string, event mentor.ChatEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error(fmt.Sprintf("encoding chat event: %v", err), err)
		return
	}
	select {
	case h.broadcast <- roomEvent{room: sessionID, payload: payload}:
	default:
		h.logger.Warn("realtime broadcast buffer full; dropping event")
	}
}

// ServeWS upgrades the request and subscribes the socket to the session's
// room. The caller must have authorized access to the session already.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	cl := &client{
		hub:  h,
		room: sessionID,
		conn: conn,
		send: make(chan []byte, 16),
	}
	select {
	case h.register <- cl:
	case <-h.done:
		_ = conn.Close()
		return errHubStopped
	}

	go cl.writePump()
	go cl.readPump()
	return nil
}

// readPump relays inbound messages to the client's room, so typing
// indicators and student messages reach other open tabs of the session.
func (cl *client) readPump() {
	defer func() {
		select {
		case cl.hub.unregister <- cl:
		case <-cl.hub.done:
		}
		_ = cl.conn.Close()
	}()

	cl.conn.SetReadLimit(maxMessageSize)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := cl.conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case cl.hub.broadcast <- roomEvent{room: cl.room, payload: payload}:
		default:
		}
	}
}

func (cl *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
