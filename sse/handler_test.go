package sse

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/streamkit/header"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestStream wires a running hub and a handler into an httptest server.
func newTestStream(t *testing.T, cfg Config, opts ...HandlerOption) (*Hub, *httptest.Server) {
	t.Helper()

	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	handler := NewHandler(hub, cfg, opts...)
	engine := gin.New()
	engine.GET(handler.cfg.Path, handler.Handle)

	ts := httptest.NewServer(engine)
	t.Cleanup(ts.Close)
	return hub, ts
}

func readConnected(t *testing.T, r Reader) ConnectedEvent {
	t.Helper()

	ev, err := r.Next()
	if err != nil {
		t.Fatalf("reading connected event: %v", err)
	}
	if ev.Event != EventTypeConnected {
		t.Fatalf("first event type = %q, want %q", ev.Event, EventTypeConnected)
	}
	var connected ConnectedEvent
	if err := json.Unmarshal([]byte(ev.Data), &connected); err != nil {
		t.Fatalf("connected payload is not valid JSON: %v", err)
	}
	return connected
}

func TestHandler_ConnectAndBroadcast(t *testing.T) {
	hub, ts := newTestStream(t, Config{KeepaliveInterval: time.Minute})

	resp, err := http.Get(ts.URL + "/events?client_id=test:h1")
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	r := NewReader(resp.Body)
	defer r.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q, want text/event-stream", ct)
	}

	connected := readConnected(t, r)
	if connected.ClientID != "test:h1" {
		t.Errorf("client ID = %q, want 'test:h1'", connected.ClientID)
	}
	if connected.SessionID == "" {
		t.Error("expected a session ID")
	}

	hub.BroadcastToPattern("test:*", []byte("payload-1"))
	ev, err := r.Next()
	if err != nil {
		t.Fatalf("reading broadcast: %v", err)
	}
	if ev.Data != "payload-1" {
		t.Errorf("broadcast data = %q, want 'payload-1'", ev.Data)
	}

	// Disconnecting unregisters the client.
	r.Close()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := hub.ClientCount(); got != 0 {
		t.Errorf("clients after disconnect = %d, want 0", got)
	}
}

func TestHandler_GeneratesClientID(t *testing.T) {
	_, ts := newTestStream(t, Config{})

	resp, err := http.Get(ts.URL + "/events")
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	r := NewReader(resp.Body)
	defer r.Close()

	connected := readConnected(t, r)
	if connected.ClientID == "" {
		t.Error("expected a generated client ID")
	}
}

func TestHandler_SessionCookie(t *testing.T) {
	_, ts := newTestStream(t, Config{})

	resp, err := http.Get(ts.URL + "/events")
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	r := NewReader(resp.Body)
	defer r.Close()

	raw := resp.Header.Get("Set-Cookie")
	if raw == "" {
		t.Fatal("expected a Set-Cookie header on first connect")
	}
	cookie, err := header.ParseSetCookie(raw, true)
	if err != nil {
		t.Fatalf("issued cookie does not parse: %v", err)
	}
	if cookie.Name != "sse_session" {
		t.Errorf("cookie name = %q, want 'sse_session'", cookie.Name)
	}
	if !cookie.HTTPOnly {
		t.Error("session cookie should be HttpOnly")
	}
	if cookie.Path != "/" {
		t.Errorf("cookie path = %q, want '/'", cookie.Path)
	}

	connected := readConnected(t, r)
	if connected.SessionID != cookie.Value {
		t.Errorf("session ID %q does not match cookie value %q", connected.SessionID, cookie.Value)
	}
}

func TestHandler_ReusesExistingSession(t *testing.T) {
	_, ts := newTestStream(t, Config{})

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/events", http.NoBody)
	req.AddCookie(&http.Cookie{Name: "sse_session", Value: "existing-123"})
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	r := NewReader(resp.Body)
	defer r.Close()

	if sc := resp.Header.Get("Set-Cookie"); sc != "" {
		t.Errorf("unexpected Set-Cookie %q for a request with a session", sc)
	}
	connected := readConnected(t, r)
	if connected.SessionID != "existing-123" {
		t.Errorf("session ID = %q, want 'existing-123'", connected.SessionID)
	}
}

func TestHandler_Keepalive(t *testing.T) {
	_, ts := newTestStream(t, Config{KeepaliveInterval: 20 * time.Millisecond})

	resp, err := http.Get(ts.URL + "/events")
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer resp.Body.Close()

	// Keep-alives are comment lines, invisible to Reader; scan the wire.
	sc := bufio.NewScanner(resp.Body)
	for i := 0; i < 50 && sc.Scan(); i++ {
		if strings.HasPrefix(sc.Text(), ": "+EventTypeKeepAlive) {
			return
		}
	}
	t.Error("no keepalive comment seen on the wire")
}

func TestHandler_Authorization(t *testing.T) {
	authorize := func(token string) (any, error) {
		if token == "letmein" {
			return "user-42", nil
		}
		return nil, errors.New("unknown token")
	}
	identify := func(c *gin.Context) []ClientOption {
		if principal, ok := c.Get(PrincipalKey); ok {
			if id, ok := principal.(string); ok {
				return []ClientOption{WithUserID(id)}
			}
		}
		return nil
	}
	_, ts := newTestStream(t, Config{},
		WithAuthorizer(authorize),
		WithClientIdentity(identify),
	)

	t.Run("missing token", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/events")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", resp.StatusCode)
		}
		body, _ := io.ReadAll(resp.Body)
		if !strings.Contains(string(body), "authorization required") {
			t.Errorf("body = %q, want authorization error", body)
		}
	})

	t.Run("invalid token", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+"/events", http.NoBody)
		req.Header.Set("Authorization", "Bearer nope")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", resp.StatusCode)
		}
		body, _ := io.ReadAll(resp.Body)
		if !strings.Contains(string(body), "invalid token") {
			t.Errorf("body = %q, want invalid token error", body)
		}
	})

	t.Run("token via query parameter", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/events?access_token=letmein")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		r := NewReader(resp.Body)
		defer r.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		connected := readConnected(t, r)
		if connected.UserID != "user-42" {
			t.Errorf("user ID = %q, want 'user-42'", connected.UserID)
		}
	})

	t.Run("token via bearer header", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+"/events", http.NoBody)
		req.Header.Set("Authorization", "Bearer letmein")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		r := NewReader(resp.Body)
		defer r.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		connected := readConnected(t, r)
		if connected.UserID != "user-42" {
			t.Errorf("user ID = %q, want 'user-42'", connected.UserID)
		}
	})
}

func TestHandler_HubStopEndsStream(t *testing.T) {
	hub, ts := newTestStream(t, Config{})

	resp, err := http.Get(ts.URL + "/events")
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	r := NewReader(resp.Body)
	defer r.Close()

	readConnected(t, r)
	hub.Stop()

	// The handler returns once the hub stops, ending the response body.
	if _, err := r.Next(); err == nil {
		t.Error("expected stream end after hub stop")
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		query  string
		want   string
	}{
		{"bearer header", "Bearer tok123", "", "tok123"},
		{"query fallback", "", "tok456", "tok456"},
		{"header wins over query", "Bearer tok123", "tok456", "tok123"},
		{"malformed scheme", "Basic dXNlcg==", "", ""},
		{"bare token in header", "tok789", "", ""},
		{"nothing", "", "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			url := "/events"
			if tc.query != "" {
				url += "?access_token=" + tc.query
			}
			c.Request = httptest.NewRequest(http.MethodGet, url, http.NoBody)
			if tc.header != "" {
				c.Request.Header.Set("Authorization", tc.header)
			}

			if got := bearerToken(c); got != tc.want {
				t.Errorf("bearerToken() = %q, want %q", got, tc.want)
			}
		})
	}
}
