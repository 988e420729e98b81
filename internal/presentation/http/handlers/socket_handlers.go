package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tourloop/tourloop-go/internal/application/services"
	"github.com/tourloop/tourloop-go/internal/domain/rules"
	"github.com/tourloop/tourloop-go/internal/infrastructure/environment"
	"github.com/tourloop/tourloop-go/internal/infrastructure/messaging"
	"github.com/tourloop/tourloop-go/internal/infrastructure/observability/logging"
	"github.com/tourloop/tourloop-go/internal/presentation/http/middleware"
	"github.com/tourloop/tourloop-go/pkg/config"
)

// SocketHandlers upgrades SDK connections onto the broadcaster and feeds
// inbound client context reports back into the activation pipeline.
type SocketHandlers struct {
	broadcaster  *messaging.SDKBroadcaster
	startService *services.ContentStartService
	logger       *logging.ChanneledLogger
	upgrader     websocket.Upgrader
}

// NewSocketHandlers creates websocket handlers with injected dependencies.
// The start service already persists reported client contexts, so no direct
// cache dependency is needed here.
func NewSocketHandlers(
	broadcaster *messaging.SDKBroadcaster,
	startService *services.ContentStartService,
	logger *logging.ChanneledLogger,
) *SocketHandlers {
	return &SocketHandlers{
		broadcaster:  broadcaster,
		startService: startService,
		logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin scoping happens through the environment token.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// GetSocket handles GET /api/v1/ws - upgrades the connection and keeps it
// registered on the broadcaster until either side closes it.
func (h *SocketHandlers) GetSocket(c *gin.Context) {
	envCtx, exists := middleware.GetEnvironmentContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "environment context not found"})
		return
	}

	userID, ok := middleware.GetExternalUserID(c)
	if !ok {
		userID = c.Query("externalUserId")
	}
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "externalUserId is required"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.Websocket().Error("Websocket upgrade failed",
				"environmentId", envCtx.EnvironmentID, "error", err.Error())
		}
		return
	}

	client := &messaging.SDKClient{
		Conn:           conn,
		EnvironmentID:  envCtx.EnvironmentID,
		ExternalUserID: userID,
		Send:           make(chan []byte, 64),
	}
	h.broadcaster.Register(client)

	go client.WritePump()
	go h.readPump(client, envCtx)
}

// inboundMessage defers payload decoding until the type is known.
type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// readPump drains inbound frames until the connection dies. Client context
// reports re-run the activation pipeline; the result is pushed back over the
// same socket. Everything else only proves the connection is alive.
func (h *SocketHandlers) readPump(client *messaging.SDKClient, envCtx *environment.Context) {
	defer func() {
		h.broadcaster.Unregister(client)
		client.Conn.Close()
	}()

	client.Conn.SetReadLimit(65536)
	client.Conn.SetReadDeadline(time.Now().Add(config.SocketPongTimeout))
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(config.SocketPongTimeout))
	})

	for {
		_, raw, err := client.Conn.ReadMessage()
		if err != nil {
			return
		}
		client.Conn.SetReadDeadline(time.Now().Add(config.SocketPongTimeout))

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if msg.Type == messaging.MessageClientContext {
			h.handleClientContextReport(client, envCtx, msg.Payload)
		}
	}
}

// handleClientContextReport stores the reported state and re-runs the
// activation pipeline against it, pushing the outcome to the client.
func (h *SocketHandlers) handleClientContextReport(client *messaging.SDKClient, envCtx *environment.Context, payload json.RawMessage) {
	var clientCtx rules.ClientContext
	if err := json.Unmarshal(payload, &clientCtx); err != nil {
		if h.logger != nil {
			h.logger.Websocket().Warn("Malformed client context report",
				"environmentId", envCtx.EnvironmentID, "userId", client.ExternalUserID)
		}
		return
	}

	ctx := context.Background()
	result := h.startService.StartSingletonContent(ctx, envCtx, &services.ContentStartInput{
		ExternalUserID: client.ExternalUserID,
		ClientContext:  &clientCtx,
	})

	h.broadcaster.SendToUser(envCtx.EnvironmentID, client.ExternalUserID, messaging.Message{
		Type:    messaging.MessageContentStart,
		Payload: result,
	})
}
