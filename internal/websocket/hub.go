package websocket

import "github.com/rs/zerolog/log"

// targetedMessage carries a payload destined for one meeting's subscribers.
type targetedMessage struct {
	meetingID string
	payload   []byte
}

// Hub maintains the set of active clients and broadcasts messages to them.
// All client and subscription state is owned by the Run goroutine; other
// goroutines talk to it only through channels.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Inbound messages for global broadcast.
	Broadcast chan []byte

	// Inbound messages for a single meeting's subscribers.
	targeted chan targetedMessage

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	// A map of meeting IDs to a set of clients subscribed to it.
	subscriptions map[string]map[*Client]bool
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		Broadcast:     make(chan []byte, 16),
		targeted:      make(chan targetedMessage, 16),
		Register:      make(chan *Client),
		Unregister:    make(chan *Client),
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
	}
}

// Run starts the Hub's message processing loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.clients[client] = true
			log.Info().Int("total_clients", len(h.clients)).Msg("Client connected")
			// If the client asked for a specific meeting on registration,
			// subscribe them right away.
			if client.MeetingID != "" {
				h.addSubscription(client, client.MeetingID)
			}
		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.removeSubscription(client)
				log.Info().Int("total_clients", len(h.clients)).Msg("Client disconnected")
			}
		case message := <-h.Broadcast:
			for client := range h.clients {
				h.deliver(client, message)
			}
		case msg := <-h.targeted:
			for client := range h.subscriptions[msg.meetingID] {
				h.deliver(client, msg.payload)
			}
		}
	}
}

// NotifyMeeting broadcasts a meeting lifecycle change to every connected
// client, and once more to clients subscribed to the specific meeting.
func (h *Hub) NotifyMeeting(meetingID, action string, payload interface{}) {
	message := NewEventMessage(action, payload)
	if message == nil {
		return
	}
	select {
	case h.Broadcast <- message:
	default:
		log.Warn().Str("action", action).Msg("Dropping global feed message, hub backlogged")
	}
	h.BroadcastTo(meetingID, message)
}

// BroadcastTo sends a message to all clients subscribed to a specific meeting ID.
func (h *Hub) BroadcastTo(meetingID string, message []byte) {
	select {
	case h.targeted <- targetedMessage{meetingID: meetingID, payload: message}:
	default:
		log.Warn().Str("meeting_id", meetingID).Msg("Dropping meeting feed message, hub backlogged")
	}
}

// deliver hands a message to one client, evicting it if its send buffer is
// full. Slow consumers must not stall the hub loop.
func (h *Hub) deliver(client *Client, message []byte) {
	select {
	case client.Send <- message:
	default:
		close(client.Send)
		delete(h.clients, client)
		h.removeSubscription(client)
	}
}

func (h *Hub) addSubscription(client *Client, meetingID string) {
	if h.subscriptions[meetingID] == nil {
		h.subscriptions[meetingID] = make(map[*Client]bool)
	}
	h.subscriptions[meetingID][client] = true
}

func (h *Hub) removeSubscription(client *Client) {
	for meetingID, subs := range h.subscriptions {
		if _, ok := subs[client]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.subscriptions, meetingID)
			}
		}
	}
}
