package hub

import (
	"encoding/json"
	"sync"

	"github.com/weiawesome/wes-io-live/community-chat/pkg/log"
)

// Hub is the registry of live connections and the rooms they subscribe to.
//
// Private rooms live in their own namespace keyed by user id: joining a
// named room never subscribes to another user's private room, and Publish
// never reaches one. Only PublishToUser does.
//
// mu guards the client and room maps and every room's member set against
// mutation: Register, Join, Leave and Unregister take it exclusively, so a
// publish never observes a subscriber set halfway through a disconnect.
// Publishes share mu and serialize per room on room.mu, which keeps every
// subscriber of one room seeing that room's messages in the same order.
type Hub struct {
	clients map[string]*Client // clientID -> client
	rooms   map[string]*room   // roomID -> members
	private map[string]*room   // uid -> that user's connections
	mu      sync.RWMutex
}

type room struct {
	mu      sync.Mutex
	members map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]*room),
		private: make(map[string]*room),
	}
}

// Register adds an authenticated client and subscribes it to its private room.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	uid := client.Session.PrivateRoom()
	if client.Session.AddRoom(uid) {
		addMember(h.private, uid, client)
	}

	l := log.L()
	l.Debug().Str(log.FieldConnID, client.ID).Str(log.FieldUserID, client.Session.Identity.UID).Msg("client registered")
}

// Join subscribes client to roomID. It is a no-op for an empty id, an
// unregistered client, the client's own private room or a room the client
// already belongs to, and reports whether the subscription was added.
func (h *Hub) Join(client *Client, roomID string) bool {
	if roomID == "" || roomID == client.Session.PrivateRoom() {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.ID] != client {
		return false
	}
	return h.joinLocked(client, roomID)
}

func (h *Hub) joinLocked(client *Client, roomID string) bool {
	if !client.Session.AddRoom(roomID) {
		return false
	}
	addMember(h.rooms, roomID, client)
	return true
}

func addMember(rooms map[string]*room, key string, client *Client) {
	r, ok := rooms[key]
	if !ok {
		r = &room{members: make(map[*Client]struct{})}
		rooms[key] = r
	}
	r.members[client] = struct{}{}
}

// Leave unsubscribes client from roomID. The private room cannot be left.
func (h *Hub) Leave(client *Client, roomID string) bool {
	if roomID == "" || roomID == client.Session.PrivateRoom() {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if !client.Session.RemoveRoom(roomID) {
		return false
	}
	removeMember(h.rooms, roomID, client)
	return true
}

// Unregister removes client from every room and closes its send channel.
// Safe to call more than once.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if h.clients[client.ID] != client {
		h.mu.Unlock()
		return
	}

	delete(h.clients, client.ID)
	uid := client.Session.PrivateRoom()
	for _, roomID := range client.Session.Close() {
		if roomID == uid {
			removeMember(h.private, uid, client)
		} else {
			removeMember(h.rooms, roomID, client)
		}
	}
	close(client.Send)
	h.mu.Unlock()

	l := log.L()
	l.Debug().Str(log.FieldConnID, client.ID).Msg("client unregistered")
}

func removeMember(rooms map[string]*room, key string, client *Client) {
	r, ok := rooms[key]
	if !ok {
		return
	}
	delete(r.members, client)
	if len(r.members) == 0 {
		delete(rooms, key)
	}
}

// Publish delivers data to every current subscriber of roomID and returns the
// number of clients it was queued for. Subscribers whose send buffer is full
// miss the message and are disconnected.
func (h *Hub) Publish(roomID string, data []byte) int {
	return h.publish(h.rooms, roomID, data)
}

// PublishJSON marshals message and publishes it to roomID.
func (h *Hub) PublishJSON(roomID string, message interface{}) (int, error) {
	data, err := json.Marshal(message)
	if err != nil {
		return 0, err
	}
	return h.Publish(roomID, data), nil
}

// PublishToUser delivers data to every connection of uid through its
// private room.
func (h *Hub) PublishToUser(uid string, data []byte) int {
	return h.publish(h.private, uid, data)
}

// PublishJSONToUser marshals message and publishes it to uid's private room.
func (h *Hub) PublishJSONToUser(uid string, message interface{}) (int, error) {
	data, err := json.Marshal(message)
	if err != nil {
		return 0, err
	}
	return h.PublishToUser(uid, data), nil
}

func (h *Hub) publish(rooms map[string]*room, key string, data []byte) int {
	var slow []*Client
	delivered := 0

	h.mu.RLock()
	if r, ok := rooms[key]; ok {
		r.mu.Lock()
		for client := range r.members {
			select {
			case client.Send <- data:
				delivered++
			default:
				slow = append(slow, client)
			}
		}
		r.mu.Unlock()
	}
	h.mu.RUnlock()

	for _, client := range slow {
		l := log.L()
		l.Warn().Str(log.FieldConnID, client.ID).Str(log.FieldRoomID, key).Msg("send buffer full, dropping client")
		go h.Unregister(client)
	}

	return delivered
}

// deliver queues data for a single registered client.
func (h *Hub) deliver(client *Client, data []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.clients[client.ID] != client {
		return false
	}
	select {
	case client.Send <- data:
		return true
	default:
		return false
	}
}

// RoomSize returns the number of subscribers of roomID.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if r, ok := h.rooms[roomID]; ok {
		return len(r.members)
	}
	return 0
}

// UserConnections returns the number of connections subscribed to uid's
// private room.
func (h *Hub) UserConnections(uid string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if r, ok := h.private[uid]; ok {
		return len(r.members)
	}
	return 0
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll unregisters every client; used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.Unregister(c)
	}
}
