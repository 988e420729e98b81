// Package messaging manages the realtime channel between the server and
// connected SDK clients.
package messaging

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tourloop/tourloop-go/internal/infrastructure/observability/logging"
	"github.com/tourloop/tourloop-go/pkg/config"
)

// Message is the envelope every frame on the SDK socket uses.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Frame types on the SDK socket. ClientContext is the one inbound type; the
// rest are pushed to clients.
const (
	MessageContentStart    = "content-start"
	MessageTrackConditions = "track-conditions"
	MessageEventTracked    = "event-tracked"
	MessageClientContext   = "client-context"
	MessagePing            = "ping"
)

// SDKClient represents a single connected SDK client.
type SDKClient struct {
	Conn           *websocket.Conn
	EnvironmentID  string
	ExternalUserID string
	Send           chan []byte
}

// SDKBroadcaster manages all connected SDK clients per environment and
// pushes activation results to them.
type SDKBroadcaster struct {
	environmentClients map[string]map[*SDKClient]bool
	register           chan *SDKClient
	unregister         chan *SDKClient
	logger             *logging.ChanneledLogger
	mu                 sync.RWMutex
}

// NewSDKBroadcaster creates a new broadcaster instance.
func NewSDKBroadcaster(logger *logging.ChanneledLogger) *SDKBroadcaster {
	return &SDKBroadcaster{
		environmentClients: make(map[string]map[*SDKClient]bool),
		register:           make(chan *SDKClient),
		unregister:         make(chan *SDKClient),
		logger:             logger,
	}
}

// Run starts the broadcaster's main loop. This should be run as a goroutine.
func (b *SDKBroadcaster) Run() {
	ticker := time.NewTicker(config.SocketPingInterval)
	defer ticker.Stop()

	for {
		select {
		case client := <-b.register:
			b.mu.Lock()
			if _, ok := b.environmentClients[client.EnvironmentID]; !ok {
				b.environmentClients[client.EnvironmentID] = make(map[*SDKClient]bool)
			}
			if len(b.environmentClients[client.EnvironmentID]) >= config.MaxSocketsPerEnvironment {
				b.mu.Unlock()
				close(client.Send)
				if b.logger != nil {
					b.logger.Websocket().Warn("SDK client rejected, environment socket limit reached",
						"environmentId", client.EnvironmentID)
				}
				continue
			}
			b.environmentClients[client.EnvironmentID][client] = true
			b.mu.Unlock()
			if b.logger != nil {
				b.logger.Websocket().Info("SDK client registered",
					"environmentId", client.EnvironmentID, "userId", client.ExternalUserID)
			}

		case client := <-b.unregister:
			b.mu.Lock()
			if clients, ok := b.environmentClients[client.EnvironmentID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(b.environmentClients, client.EnvironmentID)
					}
				}
			}
			b.mu.Unlock()
			if b.logger != nil {
				b.logger.Websocket().Info("SDK client unregistered",
					"environmentId", client.EnvironmentID, "userId", client.ExternalUserID)
			}

		case <-ticker.C:
			b.broadcastPing()
		}
	}
}

// Register queues a client for registration.
func (b *SDKBroadcaster) Register(client *SDKClient) {
	b.register <- client
}

// Unregister queues a client for unregistration.
func (b *SDKBroadcaster) Unregister(client *SDKClient) {
	b.unregister <- client
}

// SendToUser pushes a message to every connection held by one user in one
// environment. Slow clients are skipped rather than blocking the hub.
func (b *SDKBroadcaster) SendToUser(environmentID, externalUserID string, msg Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		if b.logger != nil {
			b.logger.Websocket().Error("Failed to marshal SDK message", "error", err.Error())
		}
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for client := range b.environmentClients[environmentID] {
		if client.ExternalUserID != externalUserID {
			continue
		}
		select {
		case client.Send <- raw:
		default:
		}
	}
}

// BroadcastToEnvironment pushes a message to every client in an environment.
func (b *SDKBroadcaster) BroadcastToEnvironment(environmentID string, msg Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for client := range b.environmentClients[environmentID] {
		select {
		case client.Send <- raw:
		default:
		}
	}
}

// ClientCount reports how many clients an environment currently holds.
func (b *SDKBroadcaster) ClientCount(environmentID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.environmentClients[environmentID])
}

func (b *SDKBroadcaster) broadcastPing() {
	raw, _ := json.Marshal(Message{Type: MessagePing})

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, clients := range b.environmentClients {
		for client := range clients {
			select {
			case client.Send <- raw:
			default:
			}
		}
	}
}

// WritePump drains a client's send channel onto its socket. Runs as one
// goroutine per connection; returns when the channel closes or a write
// fails.
func (c *SDKClient) WritePump() {
	defer c.Conn.Close()
	for raw := range c.Send {
		c.Conn.SetWriteDeadline(time.Now().Add(config.SocketWriteTimeout))
		if err := c.Conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			return
		}
	}
	c.Conn.SetWriteDeadline(time.Now().Add(config.SocketWriteTimeout))
	c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}
