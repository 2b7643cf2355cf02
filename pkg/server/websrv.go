package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/crystal-station/gostation/pkg/events"
	"github.com/crystal-station/gostation/pkg/player"
	"github.com/gorilla/websocket"
)

// WebConfig holds configuration for the web server.
type WebConfig struct {
	ServerName  string
	Port        int
	Host        string
	Domain      string
	CertFile    string
	KeyFile     string
	CertDir     string
	CORSOrigins []string
	RateLimit   int
	JWTSecret   string
	JWTExpiry   int
}

// WebConfigFrom derives the web settings from a GameConf.
func WebConfigFrom(gc *GameConf) WebConfig {
	return WebConfig{
		ServerName:  gc.ServerName,
		Port:        gc.WebPort,
		Host:        gc.WebHost,
		Domain:      gc.WebDomain,
		CertFile:    gc.TLSCert,
		KeyFile:     gc.TLSKey,
		CertDir:     gc.CertDir,
		CORSOrigins: gc.CORSOrigins,
		RateLimit:   gc.RateLimit,
		JWTSecret:   gc.JWTSecret,
		JWTExpiry:   gc.JWTExpiry,
	}
}

// WebServer provides the HTTP/WebSocket transport for the game.
type WebServer struct {
	game      *Game
	httpSrv   *http.Server
	mux       *http.ServeMux
	auth      *AuthService
	rl        *rateLimiter
	upgrader  websocket.Upgrader
	startTime time.Time

	sweepEvery time.Duration // rate limiter cleanup interval
	done       chan struct{}
	stopOnce   sync.Once
}

// NewWebServer creates a web server bound to the game.
func NewWebServer(game *Game, cfg WebConfig) *WebServer {
	origins := newOriginPolicy(cfg.CORSOrigins)
	ws := &WebServer{
		game:      game,
		mux:       http.NewServeMux(),
		auth:      NewAuthService(game.Store, cfg.JWTSecret, cfg.JWTExpiry),
		rl:        newRateLimiter(cfg.RateLimit),
		startTime: time.Now(),

		sweepEvery: 5 * time.Minute,
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins.allows(origin)
			},
		},
	}

	ws.registerRoutes(cfg, origins)
	return ws
}

// Auth returns the auth service for external use (e.g., REST handlers).
func (ws *WebServer) Auth() *AuthService {
	return ws.auth
}

// Handler returns the root handler with middleware applied.
func (ws *WebServer) Handler() http.Handler {
	return ws.httpSrv.Handler
}

// registerRoutes sets up all HTTP routes.
func (ws *WebServer) registerRoutes(cfg WebConfig, origins originPolicy) {
	// Apply global middleware: CORS -> rate limit
	handler := http.Handler(ws.mux)
	handler = rateLimitMiddleware(ws.rl, handler)
	handler = corsMiddleware(origins, handler)

	ws.httpSrv = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: handler,
	}

	// WebSocket endpoint
	ws.mux.HandleFunc("GET /ws", ws.handleWebSocket)

	// Auth endpoints
	ws.mux.HandleFunc("POST /api/v1/auth/login", ws.handleAuthLogin)
	ws.mux.HandleFunc("POST /api/v1/auth/refresh", ws.handleAuthRefresh)
	ws.mux.HandleFunc("POST /api/v1/auth/register", ws.handleAuthRegister)

	// REST API endpoints
	ws.RegisterRESTRoutes()

	// Health endpoint (no auth)
	ws.mux.HandleFunc("GET /health", ws.handleHealth)

	// Prometheus metrics endpoint
	ws.mux.Handle("GET /metrics", ws.game.Metrics.Handler())
}

// Start begins listening. Uses HTTPS when TLS certs are available,
// falls back to plain HTTP otherwise (development mode).
func (ws *WebServer) Start(cfg WebConfig) error {
	go ws.sweepRateLimits()

	// Try TLS setup; fall back to HTTP if no certs available
	hasTLS := cfg.Domain != "" || (cfg.CertFile != "" && cfg.KeyFile != "") || cfg.CertDir != ""
	if hasTLS {
		setup, err := SetupTLS(cfg)
		if err != nil {
			log.Printf("[web] TLS setup failed (%v), falling back to HTTP", err)
		} else {
			ws.httpSrv.TLSConfig = setup.Config
			if !setup.NotAfter.IsZero() {
				ws.game.Metrics.tlsCertExpiry.Set(float64(setup.NotAfter.Unix()))
			}

			// Let's Encrypt needs port 80 for ACME challenges.
			if setup.Autocert != nil {
				go func() {
					httpSrv := &http.Server{
						Addr:    ":80",
						Handler: setup.Autocert.HTTPHandler(nil),
					}
					log.Printf("[web] ACME HTTP challenge listener on :80")
					if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						log.Printf("[web] ACME HTTP listener error: %v", err)
					}
				}()
			}

			log.Printf("[web] listening on %s (HTTPS, %s)", ws.httpSrv.Addr, setup.Source)
			err = ws.httpSrv.ListenAndServeTLS("", "")
			if err == http.ErrServerClosed {
				return nil
			}
			return err
		}
	}

	// Plain HTTP fallback
	log.Printf("[web] listening on %s (HTTP)", ws.httpSrv.Addr)
	err := ws.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// sweepRateLimits drops expired rate limiter buckets until Stop.
func (ws *WebServer) sweepRateLimits() {
	ticker := time.NewTicker(ws.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ws.done:
			return
		case <-ticker.C:
			ws.rl.cleanup()
		}
	}
}

// Stop gracefully shuts down the web server and its background sweeper.
func (ws *WebServer) Stop(ctx context.Context) error {
	ws.stopOnce.Do(func() { close(ws.done) })
	return ws.httpSrv.Shutdown(ctx)
}

// --- WebSocket Handler ---

// WSMessage is the JSON frame the server sends to clients.
type WSMessage struct {
	Type string         `json:"type"`
	Text string         `json:"text,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

// wsLogin is the data of a client "login" frame.
type wsLogin struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// handleWebSocket upgrades an HTTP connection to a WebSocket. A valid token
// logs the client in at once; otherwise the first frame must be a login.
func (ws *WebServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	var claims *Claims
	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = bearerToken(r)
	}
	if token != "" {
		var err error
		claims, err = ws.auth.ValidateToken(token)
		if err != nil {
			http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
			return
		}
	}

	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[web] websocket upgrade error: %v", err)
		return
	}

	wc := &wsConn{conn: conn, addr: clientIP(r)}
	if claims != nil {
		ws.login(wc, claims.Name)
	} else {
		wc.sendJSON(WSMessage{Type: "welcome", Text: `Connected. Send {"type":"login","data":{"name":"...","password":"..."}} to authenticate.`})
	}

	go ws.readLoop(wc)
}

// wsConn holds the WebSocket connection, its write mutex and, once logged
// in, its session.
type wsConn struct {
	conn    *websocket.Conn
	addr    string
	mu      sync.Mutex
	session *player.Session
}

func (wc *wsConn) sendJSON(msg WSMessage) {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	wc.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := wc.conn.WriteJSON(msg); err != nil {
		log.Printf("[ws] write to %s: %v", wc.addr, err)
	}
}

// sendEvent encodes a bus event for the websocket.
func (wc *wsConn) sendEvent(ev events.Event) {
	wc.sendJSON(WSMessage{Type: ev.Type.String(), Text: ev.Text, Data: ev.Data})
}

func (ws *WebServer) login(wc *wsConn, name string) {
	g := ws.game
	g.Mu.Lock()
	s := g.Connect(name, wc.addr, wc.sendEvent)
	flags := g.Admins.Flags(s)
	g.Mu.Unlock()

	wc.session = s
	wc.sendJSON(WSMessage{
		Type: "login",
		Data: map[string]any{
			"name":        s.Name,
			"channel":     s.Channel,
			"admin_flags": flags.Names(),
		},
	})
	log.Printf("[ws:%d] %s logged in from %s", s.Channel, s.Name, wc.addr)
}

func (ws *WebServer) readLoop(wc *wsConn) {
	defer func() {
		if wc.session != nil {
			ws.game.Mu.Lock()
			ws.game.Disconnect(wc.session)
			ws.game.Mu.Unlock()
			log.Printf("[ws:%d] WebSocket closed from %s", wc.session.Channel, wc.addr)
		}
		wc.conn.Close()
	}()

	for {
		_, msgBytes, err := wc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] read error from %s: %v", wc.addr, err)
			}
			return
		}

		if wc.session == nil {
			ws.handleLoginFrame(wc, msgBytes)
			continue
		}

		ws.game.Mu.Lock()
		err = ws.game.Dispatcher.DispatchRaw(wc.session, msgBytes)
		ws.game.Mu.Unlock()
		if err != nil {
			wc.sendJSON(WSMessage{Type: "error", Text: err.Error()})
		}
	}
}

func (ws *WebServer) handleLoginFrame(wc *wsConn, data []byte) {
	var env struct {
		Type string  `json:"type"`
		Data wsLogin `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil || env.Type != "login" {
		wc.sendJSON(WSMessage{Type: "error", Text: "Log in first."})
		return
	}
	acc, err := ws.auth.Authenticate(env.Data.Name, env.Data.Password)
	if err != nil {
		wc.sendJSON(WSMessage{Type: "error", Text: "Invalid credentials"})
		return
	}
	ws.login(wc, acc.Name)
}

// --- Auth HTTP Handlers ---

func (ws *WebServer) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req wsLogin
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	token, err := ws.auth.Login(req.Name, req.Password)
	if err != nil {
		http.Error(w, `{"error":"invalid credentials"}`, http.StatusUnauthorized)
		return
	}
	writeJSON(w, map[string]string{"token": token})
}

func (ws *WebServer) handleAuthRefresh(w http.ResponseWriter, r *http.Request) {
	token, _ := bearerToken(r)
	if token == "" {
		http.Error(w, `{"error":"authorization required"}`, http.StatusUnauthorized)
		return
	}
	newToken, err := ws.auth.RefreshToken(token)
	if err != nil {
		http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
		return
	}
	writeJSON(w, map[string]string{"token": newToken})
}

func (ws *WebServer) handleAuthRegister(w http.ResponseWriter, r *http.Request) {
	var req wsLogin
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if err := ws.auth.Register(req.Name, req.Password); err != nil {
		log.Printf("[web] register %q: %v", req.Name, err)
		http.Error(w, `{"error":"registration failed"}`, http.StatusBadRequest)
		return
	}
	writeJSONStatus(w, http.StatusCreated, map[string]string{"name": req.Name})
}

// --- Health Handler ---

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":         "ok",
		"version":        Version,
		"uptime_seconds": time.Since(ws.startTime).Seconds(),
		"sandbox":        ws.game.Sandbox.Enabled(),
	})
}
