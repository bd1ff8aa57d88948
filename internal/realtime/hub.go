package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"tailtribe/internal/platform/logger"
)

// Event es lo que recibe el cliente por el websocket.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type envelope struct {
	userID string
	msg    []byte
}

// Hub mantiene las conexiones abiertas por usuario. Un usuario puede tener
// varias (pestañas, móvil). Todo cambio del mapa pasa por Run.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	push       chan envelope
	mutex      sync.RWMutex
	log        logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client, 128),
		unregister: make(chan *Client, 128),
		push:       make(chan envelope, 1024),
		log:        log,
	}
}

// Run procesa altas, bajas y envíos hasta que ctx se cancela.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case c := <-h.register:
			if c == nil {
				continue
			}
			h.mutex.Lock()
			set, ok := h.clients[c.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[c.userID] = set
			}
			set[c] = struct{}{}
			h.mutex.Unlock()
			h.log.Debug("ws connected", map[string]any{"user_id": c.userID, "total": h.Connections()})

		case c := <-h.unregister:
			if c == nil {
				continue
			}
			h.remove(c)
			h.log.Debug("ws disconnected", map[string]any{"user_id": c.userID, "total": h.Connections()})

		case env := <-h.push:
			h.mutex.RLock()
			snapshot := make([]*Client, 0, len(h.clients[env.userID]))
			for c := range h.clients[env.userID] {
				snapshot = append(snapshot, c)
			}
			h.mutex.RUnlock()

			for _, c := range snapshot {
				select {
				case c.send <- env.msg:
				default:
					// cliente lento: se desconecta
					h.remove(c)
					h.log.Warn("ws client dropped", map[string]any{"user_id": c.userID, "reason": "send_buffer_full"})
				}
			}
		}
	}
}

func (h *Hub) remove(c *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for uid, set := range h.clients {
		for c := range set {
			close(c.send)
		}
		delete(h.clients, uid)
	}
}

func (h *Hub) Register(c *Client) {
	if h == nil {
		return
	}
	h.register <- c
}

func (h *Hub) Unregister(c *Client) {
	if h == nil {
		return
	}
	h.unregister <- c
}

// Push implementa el Pusher de notificaciones y mensajería. Nunca bloquea:
// si la cola está llena el evento se descarta (el dato ya está persistido).
func (h *Hub) Push(userID, eventType string, data any) {
	if h == nil || userID == "" {
		return
	}
	b, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		h.log.Error("ws marshal failed", map[string]any{"type": eventType, "error": err})
		return
	}
	select {
	case h.push <- envelope{userID: userID, msg: b}:
	default:
		h.log.Warn("ws push dropped", map[string]any{"user_id": userID, "reason": "buffer_full"})
	}
}

// Connections devuelve el total de conexiones abiertas.
func (h *Hub) Connections() int {
	if h == nil {
		return 0
	}
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

func (h *Hub) UserConnections(userID string) int {
	if h == nil {
		return 0
	}
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients[userID])
}
