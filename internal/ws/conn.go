package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"yaca/internal/auth"
	"yaca/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	readLimit  = 1 << 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// TokenAuthorizer resolves a bare token to a principal.
type TokenAuthorizer interface {
	AuthorizeToken(ctx context.Context, token string) (string, error)
}

// Poster persists and publishes a message on behalf of a principal.
type Poster interface {
	Post(ctx context.Context, author, text, principal string) (models.ChatMessage, error)
}

// InboundMessage is a frame sent by a subscriber.
type InboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Serve upgrades an authorized request to a subscriber connection. The token
// comes from the Authorization header or the token query parameter, since
// browsers cannot set headers on websocket handshakes. onError writes the
// response for rejected handshakes.
func Serve(h *Hub, authz TokenAuthorizer, poster Poster, onError func(*gin.Context, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			token = auth.BearerToken(c.GetHeader("Authorization"))
		}
		username, err := authz.AuthorizeToken(c.Request.Context(), token)
		if err != nil {
			onError(c, err)
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Debug().Err(err).Str("username", username).Msg("websocket upgrade")
			return
		}
		client := NewClient(username)
		if !h.Register(client) {
			_ = conn.Close()
			return
		}
		log.Debug().Str("client", client.id).Str("username", username).Msg("subscriber connected")

		go client.writePump(conn)
		client.readPump(conn, h, poster)
	}
}

// readPump runs until the peer goes away; its exit unregisters the client.
func (c *Client) readPump(conn *websocket.Conn, h *Hub, poster Poster) {
	defer func() {
		h.Unregister(c)
		_ = conn.Close()
		log.Debug().Str("client", c.id).Str("username", c.username).Msg("subscriber disconnected")
	}()
	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var in InboundMessage
		if err := json.Unmarshal(data, &in); err != nil || in.Type != "message" {
			continue
		}
		// Inbound frames go through the same persist-then-publish path as HTTP posts.
		if _, err := poster.Post(context.Background(), c.username, in.Text, c.username); err != nil {
			log.Debug().Err(err).Str("username", c.username).Msg("websocket post rejected")
		}
	}
}

func (c *Client) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
