package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/unimarket/backend/internal/auth"
	"github.com/unimarket/backend/internal/service"
)

// Gateway upgrades HTTP requests to live connections and dispatches client
// events into the chat service. The bearer token travels in the handshake
// query string, not per event; a connection that fails verification is
// rejected before the upgrade and never reaches the registry.
type Gateway struct {
	hub      *Hub
	svc      service.ChatService
	verifier auth.TokenVerifier
	upgrader websocket.Upgrader
}

func NewGateway(hub *Hub, svc service.ChatService, verifier auth.TokenVerifier, allowedOrigins []string) *Gateway {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}
	return &Gateway{
		hub:      hub,
		svc:      svc,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				return allowed[r.Header.Get("Origin")]
			},
		},
	}
}

// ServeWS handles GET /ws.
func (g *Gateway) ServeWS(c echo.Context) error {
	token := c.QueryParam("token")
	uid, err := g.verifier.Verify(c.Request().Context(), token)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	conn, err := g.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return nil
	}

	client := newClient(g.hub, conn, uid)
	g.hub.Register(client)
	log.Printf("ws: user %s connected (%s)", uid, client.id)

	go client.writePump()
	client.readPump(g)
	log.Printf("ws: user %s disconnected (%s)", uid, client.id)
	return nil
}

func (g *Gateway) handle(c *Client, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("ws: bad frame from user %s: %v", c.uid, err)
		return
	}

	// Event handlers run on the connection's read goroutine; each one is a
	// single persist-then-broadcast unit. A fresh context keeps an abrupt
	// disconnect from cancelling a write that is already in flight — only
	// the ack to the closed connection is lost.
	ctx := context.Background()

	switch env.Event {
	case eventJoinConversation:
		var p conversationPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		// Membership is checked once at join; the participant set of a
		// conversation never changes after creation.
		if _, err := g.svc.GetConversation(ctx, p.ConversationID, c.uid); err != nil {
			g.ack(c, env.AckID, ackError(err))
			return
		}
		g.hub.Join(c, p.ConversationID)
		g.ack(c, env.AckID, ackPayload{Success: true})

	case eventLeaveConversation:
		var p conversationPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		g.hub.Leave(c, p.ConversationID)

	case eventSendMessage:
		var p sendMessagePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			g.ack(c, env.AckID, ackPayload{Error: "invalid_payload"})
			return
		}
		msg, err := g.svc.SendMessage(ctx, p.ConversationID, c.uid, p.Content)
		if err != nil {
			g.ack(c, env.AckID, ackError(err))
			return
		}
		g.ack(c, env.AckID, ackPayload{Success: true, Message: msg})

	case eventMarkMessagesRead:
		var p conversationPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		if _, err := g.svc.MarkRead(ctx, p.ConversationID, c.uid); err != nil {
			log.Printf("ws: mark read conv %d user %s: %v", p.ConversationID, c.uid, err)
		}

	case eventTypingStart:
		g.relayTyping(c, env.Data, eventUserTyping)

	case eventTypingStop:
		g.relayTyping(c, env.Data, eventUserStoppedTyping)

	default:
		log.Printf("ws: unknown event %q from user %s", env.Event, c.uid)
	}
}

func (g *Gateway) relayTyping(c *Client, data json.RawMessage, event string) {
	var p conversationPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	g.hub.RelayToOthers(p.ConversationID, c, event, typingPayload{
		ConversationID: p.ConversationID,
		UserID:         c.uid,
	})
}

// ack answers the specific caller. Errors travel in the ack payload; the
// connection itself is never closed over a failed operation.
func (g *Gateway) ack(c *Client, ackID *uint64, payload ackPayload) {
	if ackID == nil {
		return
	}
	data, err := json.Marshal(outEnvelope{Event: eventAck, AckID: ackID, Data: payload})
	if err != nil {
		return
	}
	g.hub.deliver(c, data)
}

func ackError(err error) ackPayload {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return ackPayload{Error: "not_found"}
	case errors.Is(err, service.ErrForbidden), errors.Is(err, service.ErrSelfChat):
		return ackPayload{Error: "forbidden"}
	case errors.Is(err, service.ErrInvalidArgument):
		return ackPayload{Error: "invalid_argument"}
	default:
		return ackPayload{Error: "internal"}
	}
}
