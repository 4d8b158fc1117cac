package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/streamkit/header"
	"github.com/kbukum/streamkit/logger"
)

// PrincipalKey is the gin context key holding the authorized principal.
const PrincipalKey = "principal"

// ConnectedEvent is the payload of the connected event sent when a client
// attaches.
type ConnectedEvent struct {
	ClientID  string            `json:"client_id"`
	UserID    string            `json:"user_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Authorizer validates a bearer token and returns the authenticated
// principal. jwt.Service.ValidatorFunc produces one.
type Authorizer func(token string) (any, error)

// Handler serves the event stream endpoint, attaching each request to the
// hub as a client.
type Handler struct {
	hub       *Hub
	cfg       Config
	authorize Authorizer
	identify  func(c *gin.Context) []ClientOption
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithAuthorizer requires a valid bearer token on every connection. The
// token is read from the Authorization header or, since EventSource cannot
// set headers, the access_token query parameter.
func WithAuthorizer(fn Authorizer) HandlerOption {
	return func(h *Handler) {
		h.authorize = fn
	}
}

// WithClientIdentity derives extra client options from the request, e.g.
// user metadata from the authorized principal stored under PrincipalKey.
func WithClientIdentity(fn func(c *gin.Context) []ClientOption) HandlerOption {
	return func(h *Handler) {
		h.identify = fn
	}
}

// NewHandler creates a handler streaming hub events. Zero fields of cfg
// fall back to defaults.
func NewHandler(hub *Hub, cfg Config, opts ...HandlerOption) *Handler {
	cfg.ApplyDefaults()
	h := &Handler{hub: hub, cfg: cfg}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle is the gin endpoint. It authorizes the request when an Authorizer
// is configured, issues the session cookie, registers the client with the
// hub, and streams events until the client disconnects or the hub stops.
func (h *Handler) Handle(c *gin.Context) {
	if h.authorize != nil {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authorization required",
			})
			return
		}
		principal, err := h.authorize(token)
		if err != nil {
			logger.Warn("Rejected stream connection", map[string]interface{}{
				logger.FieldError: err.Error(),
			})
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token",
			})
			return
		}
		c.Set(PrincipalKey, principal)
	}

	clientID := c.Query("client_id")
	if clientID == "" {
		clientID = uuid.New().String()
	}

	opts := []ClientOption{
		WithBuffer(h.cfg.ClientBuffer),
		WithSessionID(h.session(c)),
	}
	if h.identify != nil {
		opts = append(opts, h.identify(c)...)
	}

	h.serve(c, clientID, opts...)
}

// session returns the request's session ID, minting one and issuing the
// session cookie when the request carries none.
func (h *Handler) session(c *gin.Context) string {
	if sid, err := c.Cookie(h.cfg.SessionCookie); err == nil && sid != "" {
		return sid
	}
	sid := uuid.New().String()
	cookie := header.Cookie{
		Name:     h.cfg.SessionCookie,
		Value:    sid,
		Path:     "/",
		HTTPOnly: true,
	}
	c.Writer.Header().Add("Set-Cookie", cookie.String())
	return sid
}

// bearerToken extracts the bearer token from the Authorization header or
// the access_token query parameter.
func bearerToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	return c.Query("access_token")
}

// serve streams hub events to the client until the connection ends.
func (h *Handler) serve(c *gin.Context, clientID string, opts ...ClientOption) {
	w := c.Writer

	// Event streams outlive any server write timeout; clear the deadline
	// where the stack supports it and rely on keep-alives where it does not.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		logger.Warn("Could not clear write deadline", map[string]interface{}{
			logger.FieldClientID: clientID,
			logger.FieldError:    err.Error(),
		})
	}

	wh := w.Header()
	wh.Set("Content-Type", "text/event-stream")
	wh.Set("Cache-Control", "no-cache")
	wh.Set("Connection", "keep-alive")
	wh.Set("Access-Control-Allow-Origin", h.cfg.AllowOrigin)
	wh.Set("X-Accel-Buffering", "no") // disable nginx buffering

	client := NewClient(clientID, opts...)
	h.hub.Register(client)
	defer h.hub.Unregister(client)

	connected, _ := json.Marshal(ConnectedEvent{
		ClientID:  clientID,
		UserID:    client.UserID(),
		SessionID: client.SessionID(),
		Metadata:  client.Metadata(),
	})
	ev := Event{Event: EventTypeConnected, Data: string(connected)}
	_, _ = w.Write(ev.Encode())
	w.Flush()

	logger.Debug("Client connected", map[string]interface{}{
		logger.FieldClientID:  clientID,
		logger.FieldSessionID: client.SessionID(),
		"remote_addr":         c.Request.RemoteAddr,
	})

	keepAlive := time.NewTicker(h.cfg.KeepaliveInterval)
	defer keepAlive.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			logger.Debug("Client disconnected", map[string]interface{}{
				logger.FieldClientID: clientID,
				"reason":             ctx.Err().Error(),
			})
			return

		case <-h.hub.Done():
			logger.Debug("Hub stopped, closing stream", map[string]interface{}{
				logger.FieldClientID: clientID,
			})
			return

		case data, ok := <-client.Events():
			if !ok {
				logger.Debug("Client channel closed", map[string]interface{}{
					logger.FieldClientID: clientID,
				})
				return
			}
			ev := Event{Data: string(data)}
			_, _ = w.Write(ev.Encode())
			w.Flush()

		case <-keepAlive.C:
			// Comment lines keep the connection alive through proxies.
			_, _ = fmt.Fprintf(w, ": %s %d\n\n", EventTypeKeepAlive, time.Now().Unix())
			w.Flush()
		}
	}
}
