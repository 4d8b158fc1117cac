package sse

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/streamkit/component"
	"github.com/kbukum/streamkit/version"
)

const componentName = "sse-server"

// startTime records when the process started for uptime calculation.
var startTime = time.Now()

// Component bundles the hub, handler, and HTTP server into a single
// lifecycle-managed unit. Register it with the component registry so
// Start/Stop are handled automatically.
type Component struct {
	server  *Server
	hub     *Hub
	handler *Handler
	path    string
	port    int

	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

var (
	_ component.Component     = (*Component)(nil)
	_ component.Describable   = (*Component)(nil)
	_ component.RouteProvider = (*Component)(nil)
)

// NewComponent wires a hub, a stream handler, and an h2c server together.
// Apply defaults and validate both configs before calling, typically
// through the config loader.
func NewComponent(serverCfg ServerConfig, cfg Config, opts ...HandlerOption) *Component {
	hub := NewHub()
	handler := NewHandler(hub, cfg, opts...)
	srv := NewServer(serverCfg)

	c := &Component{
		server:  srv,
		hub:     hub,
		handler: handler,
		path:    handler.cfg.Path,
		port:    serverCfg.Port,
	}

	srv.Engine().GET(c.path, handler.Handle)
	srv.Engine().GET("/health", c.health)
	srv.Engine().GET("/info", c.info)

	return c
}

// Hub returns the underlying Hub for event broadcasting and client management.
func (c *Component) Hub() *Hub { return c.hub }

// Name returns the component name.
func (c *Component) Name() string { return componentName }

// Start launches the hub loop and the HTTP server.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.hub.Run()
	}()

	if err := c.server.Start(ctx); err != nil {
		c.hub.Stop()
		c.wg.Wait()
		return err
	}

	c.started = true
	return nil
}

// Stop shuts down the hub first so attached stream handlers return, then
// drains the HTTP server.
func (c *Component) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return nil
	}
	c.started = false

	c.hub.Stop()
	c.wg.Wait()
	return c.server.Stop(ctx)
}

// Health reports the hub's client count.
func (c *Component) Health(_ context.Context) component.Health {
	return component.Health{
		Name:    c.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d clients connected", c.hub.ClientCount()),
	}
}

// Describe returns infrastructure summary info for the startup log.
func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    "SSE Server",
		Type:    "server",
		Details: fmt.Sprintf("%s h2c", c.server.Addr()),
		Port:    c.port,
	}
}

// Routes reports the registered HTTP routes for the startup log.
func (c *Component) Routes() []component.Route {
	return []component.Route{
		{Method: http.MethodGet, Path: c.path, Handler: "sse.Handler"},
		{Method: http.MethodGet, Path: "/health", Handler: "sse.Health"},
		{Method: http.MethodGet, Path: "/info", Handler: "sse.Info"},
	}
}

func (c *Component) health(g *gin.Context) {
	g.JSON(http.StatusOK, gin.H{
		"status":  string(component.StatusHealthy),
		"clients": c.hub.ClientCount(),
	})
}

func (c *Component) info(g *gin.Context) {
	v := version.GetVersionInfo()
	g.JSON(http.StatusOK, gin.H{
		"service":    componentName,
		"version":    v.Version,
		"git_commit": v.GitCommit,
		"git_branch": v.GitBranch,
		"build_time": v.BuildTime,
		"go_version": v.GoVersion,
		"is_release": v.IsRelease,
		"is_dirty":   v.IsDirty,
		"uptime":     time.Since(startTime).String(),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}
