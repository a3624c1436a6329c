package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/logsleuth/logsleuth/internal/rpc"
)

// keepaliveInterval is the idle timeout after which the SSE stream emits a
// keepalive event.
const keepaliveInterval = 30 * time.Second

// Server is the HTTP/SSE surface: GET / for server info, GET /connect for the
// event stream, POST /message/:client_id for JSON-RPC requests.
type Server struct {
	echo       *echo.Echo
	hub        *Hub
	dispatcher *rpc.Dispatcher
	name       string
	version    string
}

// NewServer wires the routes onto a fresh echo instance.
func NewServer(name, version string, dispatcher *rpc.Dispatcher) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	s := &Server{
		echo:       e,
		hub:        NewHub(),
		dispatcher: dispatcher,
		name:       name,
		version:    version,
	}

	e.GET("/", s.handleRoot)
	e.GET("/connect", s.handleConnect)
	e.POST("/message/:client_id", s.handleMessage)

	return s
}

// Hub exposes the client registry, mainly for broadcasts and tests.
func (s *Server) Hub() *Hub { return s.hub }

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"name":      s.name,
		"version":   s.version,
		"transport": "sse",
		"endpoints": map[string]string{
			"connect": "/connect",
			"message": "/message",
		},
	})
}

// handleConnect runs the per-client SSE stream until the client goes away.
// The stream alternates between draining the queue and emitting keepalives.
func (s *Server) handleConnect(c echo.Context) error {
	client := s.hub.Connect()
	defer s.hub.Disconnect(client.ID)

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	connected, _ := json.Marshal(map[string]string{
		"client_id": client.ID,
		"server":    s.name,
		"version":   s.version,
	})
	if err := writeEvent(resp, "connected", connected); err != nil {
		return nil
	}

	ctx := c.Request().Context()
	keepalive := time.NewTimer(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case data := <-client.Messages():
			if err := writeEvent(resp, "message", data); err != nil {
				return nil
			}
			resetTimer(keepalive, keepaliveInterval)

		case <-keepalive.C:
			ka, _ := json.Marshal(map[string]int64{"timestamp": time.Now().Unix()})
			if err := writeEvent(resp, "keepalive", ka); err != nil {
				return nil
			}
			keepalive.Reset(keepaliveInterval)
		}
	}
}

// handleMessage accepts a JSON-RPC request for a connected client, dispatches
// it, and queues the response for the client's SSE stream. The HTTP reply is
// only an acknowledgement; the RPC result travels over SSE.
func (s *Server) handleMessage(c echo.Context) error {
	clientID := c.Param("client_id")
	if !s.hub.Has(clientID) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "client not found"})
	}

	var req rpc.Request
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
	}

	resp := s.dispatcher.Dispatch(c.Request().Context(), &req)
	if resp != nil {
		if err := s.hub.Enqueue(clientID, resp); err != nil {
			// Client vanished between the registry check and the
			// enqueue; the response is lost by design.
			log.Printf("WARN: response for %s dropped: %v", clientID, err)
		}
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func writeEvent(w *echo.Response, event string, data []byte) error {
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	w.Flush()
	return nil
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
