package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Bucknalla/go-robot-locus/internal/config"
	"github.com/Bucknalla/go-robot-locus/locus"
)

// message is the envelope of every websocket push.
type message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type client struct {
	id   string
	conn *websocket.Conn
}

// WebServer hosts the locus page and drives one replay controller.
type WebServer struct {
	settings   config.Settings
	log        zerolog.Logger
	loc        *time.Location
	controller *locus.Controller
	plotter    *locus.Plotter
	upgrader   websocket.Upgrader

	mu        sync.Mutex
	clients   map[*client]bool
	broadcast chan message
}

// NewWebServer creates a server replaying from the configured endpoint,
// or from synthetic positions when no endpoint is set.
func NewWebServer(settings config.Settings, log zerolog.Logger, opts ...locus.Option) (*WebServer, error) {
	return newWebServer(settings, fetcherFor(settings), log, opts...)
}

func fetcherFor(settings config.Settings) locus.Fetcher {
	if settings.Endpoint == "" {
		return locus.NewDemoFetcher(time.Second)
	}
	return locus.NewHTTPFetcher(replayConfig(settings), nil)
}

func replayConfig(settings config.Settings) locus.Config {
	cfg := locus.DefaultConfig()
	cfg.Endpoint = settings.Endpoint
	cfg.Path = locus.PathFor(settings.Prefix)
	cfg.Bearer = settings.Bearer
	if settings.Interval > 0 {
		cfg.Interval = settings.Interval
	}
	if settings.DefaultBound > 0 {
		cfg.DefaultBound = settings.DefaultBound
	}
	if settings.Timeout > 0 {
		cfg.Timeout = settings.Timeout
	}
	return cfg
}

func newWebServer(settings config.Settings, fetcher locus.Fetcher, log zerolog.Logger, opts ...locus.Option) (*WebServer, error) {
	cfg := replayConfig(settings)

	scaler, err := locus.NewScalerFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	plotter, err := locus.NewPlotter(scaler)
	if err != nil {
		return nil, err
	}

	ws := &WebServer{
		settings: settings,
		log:      log,
		loc:      time.Local,
		plotter:  plotter,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients:   make(map[*client]bool),
		broadcast: make(chan message, 256),
	}

	opts = append([]locus.Option{locus.WithLogger(log)}, opts...)
	ws.controller, err = locus.NewController(cfg, fetcher, scaler, plotter, ws, opts...)
	if err != nil {
		return nil, err
	}
	return ws, nil
}

// SetControls implements locus.View.
func (ws *WebServer) SetControls(c locus.Controls) {
	ws.publish(message{Type: "controls", Data: c})
}

// ShowStatus implements locus.View.
func (ws *WebServer) ShowStatus(s locus.Status) {
	ws.publish(message{Type: "status", Data: s})
}

// publish never blocks: it runs under the controller lock.
func (ws *WebServer) publish(m message) {
	select {
	case ws.broadcast <- m:
	default:
		ws.log.Warn().Str("type", m.Type).Msg("broadcast queue full, dropping update")
	}
}

func (ws *WebServer) broadcastToClients(ctx context.Context) {
	for {
		var m message
		select {
		case m = <-ws.broadcast:
		case <-ctx.Done():
			return
		}

		ws.mu.Lock()
		for c := range ws.clients {
			if err := c.conn.WriteJSON(m); err != nil {
				ws.log.Warn().Err(err).Str("client", c.id).Msg("websocket write error")
				c.conn.Close()
				delete(ws.clients, c)
			}
		}
		ws.mu.Unlock()
	}
}

func (ws *WebServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	c := &client{id: uuid.NewString(), conn: conn}
	status := ws.controller.Status()

	// Register and greet under the same lock so the greeting is the first
	// message the client sees.
	ws.mu.Lock()
	ws.clients[c] = true
	total := len(ws.clients)
	err = conn.WriteJSON(message{Type: "status", Data: status})
	if err == nil {
		err = conn.WriteJSON(message{Type: "controls", Data: locus.Gate(true, true, status.State)})
	}
	ws.mu.Unlock()
	ws.log.Info().Str("client", c.id).Int("clients", total).Msg("client connected")
	if err != nil {
		ws.log.Warn().Err(err).Str("client", c.id).Msg("error sending status")
	}

	// The page only listens; reads detect the disconnect.
	for err == nil {
		_, _, err = conn.ReadMessage()
	}

	ws.mu.Lock()
	delete(ws.clients, c)
	total = len(ws.clients)
	ws.mu.Unlock()
	ws.log.Info().Str("client", c.id).Int("clients", total).Msg("client disconnected")
}

// showRequest is the body of POST /api/show.
type showRequest struct {
	Start  string `json:"st"`
	End    string `json:"et"`
	Bearer string `json:"bearer,omitempty"`
	Path   string `json:"path,omitempty"`
}

func (ws *WebServer) handleShow(w http.ResponseWriter, r *http.Request) {
	var req showRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.log.Debug().Err(err).Msg("invalid show request")
		writeError(w, http.StatusBadRequest)
		return
	}
	start, end, err := locus.ParseRange(req.Start, req.End, ws.loc)
	if err != nil {
		ws.log.Debug().Err(err).Msg("invalid show range")
		writeError(w, http.StatusBadRequest)
		return
	}
	if req.Path != "" {
		if err := locus.CheckPath(req.Path); err != nil {
			ws.log.Debug().Err(err).Msg("invalid show path")
			writeError(w, http.StatusBadRequest)
			return
		}
	}

	q := locus.Query{Start: start, End: end, Bearer: req.Bearer, Path: req.Path}
	// The replay outlives the request.
	if err := ws.controller.Show(context.Background(), q); err != nil {
		if errors.Is(err, locus.ErrReplayRunning) {
			writeError(w, http.StatusConflict)
			return
		}
		ws.log.Error().Err(err).Msg("failed to start replay")
		writeError(w, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (ws *WebServer) handleStop(w http.ResponseWriter, r *http.Request) {
	ws.controller.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (ws *WebServer) handleClear(w http.ResponseWriter, r *http.Request) {
	ws.controller.Clear()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (ws *WebServer) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ws.controller.Status())
}

func (ws *WebServer) handleGate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	controls := locus.Gate(q.Get("st") != "", q.Get("et") != "", ws.controller.State())
	writeJSON(w, http.StatusOK, controls)
}

func (ws *WebServer) handlePlot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := ws.plotter.WriteTo(w); err != nil {
		ws.log.Warn().Err(err).Msg("failed to write plot")
	}
}

// Router builds the HTTP routes of the server.
func (ws *WebServer) Router() *mux.Router {
	r := mux.NewRouter().StrictSlash(true)
	r.NotFoundHandler = errorHandler(http.StatusNotFound)
	r.MethodNotAllowedHandler = errorHandler(http.StatusMethodNotAllowed)

	r.HandleFunc("/locus/", ws.handlePage).Methods(http.MethodGet, http.MethodHead)
	if ws.settings.Demo {
		r.HandleFunc(locus.DefaultPath, ws.handlePositions).Methods(http.MethodGet, http.MethodHead)
	}

	// API routes
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/show", ws.handleShow).Methods(http.MethodPost)
	api.HandleFunc("/stop", ws.handleStop).Methods(http.MethodPost)
	api.HandleFunc("/clear", ws.handleClear).Methods(http.MethodPost)
	api.HandleFunc("/status", ws.handleGetStatus).Methods(http.MethodGet)
	api.HandleFunc("/gate", ws.handleGate).Methods(http.MethodGet)
	api.HandleFunc("/plot.svg", ws.handlePlot).Methods(http.MethodGet)
	api.HandleFunc("/ws", ws.handleWebSocket)

	// Handle favicon.ico requests
	r.HandleFunc("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

// writeJSON encodes v as the response body.
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeError writes {"error": <status text>}.
func writeError(w http.ResponseWriter, code int) {
	writeJSON(w, code, map[string]string{"error": http.StatusText(code)})
}

func errorHandler(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, code)
	})
}
