package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/crystal-station/gostation/pkg/adminlog"
	"github.com/crystal-station/gostation/pkg/adminmgr"
	"github.com/crystal-station/gostation/pkg/boltstore"
	"github.com/crystal-station/gostation/pkg/events"
	"github.com/crystal-station/gostation/pkg/player"
	"github.com/google/uuid"
)

// RegisterRESTRoutes registers all REST API endpoints on the web server's mux.
// Called from WebServer.registerRoutes after the mux is created.
func (ws *WebServer) RegisterRESTRoutes() {
	// WHO list (optional auth)
	ws.mux.Handle("GET /api/v1/who",
		authMiddleware(ws.auth, false, http.HandlerFunc(ws.handleWho)))

	// Command execution (required auth)
	ws.mux.Handle("POST /api/v1/command",
		authMiddleware(ws.auth, true, http.HandlerFunc(ws.handleCommand)))

	// Sandbox state (read: anyone, write: SERVER)
	ws.mux.HandleFunc("GET /api/v1/sandbox", ws.handleGetSandbox)
	ws.mux.Handle("PUT /api/v1/sandbox",
		authMiddleware(ws.auth, true, requireFlag(adminmgr.FlagServer, http.HandlerFunc(ws.handlePutSandbox))))

	// Admin log (ADMIN)
	ws.mux.Handle("GET /api/v1/adminlog",
		authMiddleware(ws.auth, true, requireFlag(adminmgr.FlagAdmin, http.HandlerFunc(ws.handleAdminLog))))

	// Account admin flags (HOST)
	ws.mux.Handle("PUT /api/v1/accounts/{name}/flags",
		authMiddleware(ws.auth, true, requireFlag(adminmgr.FlagHost, http.HandlerFunc(ws.handlePutFlags))))
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// --- WHO ---

func (ws *WebServer) handleWho(w http.ResponseWriter, r *http.Request) {
	type whoEntry struct {
		Name   string `json:"name"`
		Status string `json:"status"`
		OnFor  string `json:"on_for"`
	}

	now := time.Now()
	entries := []whoEntry{}
	for _, s := range ws.game.Players.Sessions() {
		if s.Status() == player.StatusConnecting {
			continue
		}
		entries = append(entries, whoEntry{
			Name:   s.Name,
			Status: s.Status().String(),
			OnFor:  FormatConnTime(now.Sub(s.ConnTime)),
		})
	}

	writeJSON(w, map[string]any{
		"players": entries,
		"count":   len(entries),
	})
}

// --- Command Execution ---

// captureBuffer collects text events sent to a transient REST session.
type captureBuffer struct {
	mu    sync.Mutex
	lines []string
}

func (c *captureBuffer) add(ev events.Event) {
	if ev.Type != events.EvText {
		return
	}
	c.mu.Lock()
	c.lines = append(c.lines, ev.Text)
	c.mu.Unlock()
}

func (ws *WebServer) handleCommand(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req struct {
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		http.Error(w, `{"error":"command is required"}`, http.StatusBadRequest)
		return
	}

	// The command runs on a transient session carrying the account's flags;
	// it is never registered with the player manager.
	output := &captureBuffer{}
	s := &player.Session{ID: uuid.New(), Name: claims.Name, Addr: clientIP(r), ConnTime: time.Now(), SendFunc: output.add}

	g := ws.game
	g.Mu.Lock()
	g.Bus.Subscribe(s.ID, s)
	g.Admins.LoadSession(s)
	ok := g.Console.ExecuteCommand(s, req.Command)
	g.Admins.Forget(s)
	g.Bus.Unsubscribe(s.ID, s)
	g.Mu.Unlock()

	output.mu.Lock()
	defer output.mu.Unlock()
	writeJSON(w, map[string]any{
		"ok":     ok,
		"output": output.lines,
	})
}

// --- Sandbox ---

func (ws *WebServer) handleGetSandbox(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]bool{"sandbox": ws.game.Sandbox.Enabled()})
}

func (ws *WebServer) handlePutSandbox(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		http.Error(w, `{"error":"enabled is required"}`, http.StatusBadRequest)
		return
	}
	claims := ClaimsFromContext(r.Context())

	ws.game.Mu.Lock()
	ws.game.SetSandbox(*req.Enabled, claims.Name)
	ws.game.Mu.Unlock()

	writeJSON(w, map[string]bool{"sandbox": *req.Enabled})
}

// --- Admin Log ---

func (ws *WebServer) handleAdminLog(w http.ResponseWriter, r *http.Request) {
	if ws.game.AdminLog == nil {
		http.Error(w, `{"error":"admin log not configured"}`, http.StatusServiceUnavailable)
		return
	}
	q := r.URL.Query()
	f := adminlog.Filter{
		User: q.Get("user"),
		Type: q.Get("type"),
	}
	if v := q.Get("impact"); v != "" {
		f.MinImpact = adminlog.ParseImpact(v)
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, `{"error":"invalid limit"}`, http.StatusBadRequest)
			return
		}
		f.Limit = n
	}
	entries, err := ws.game.AdminLog.Query(f)
	if err != nil {
		http.Error(w, `{"error":"query failed"}`, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []adminlog.Entry{}
	}
	writeJSON(w, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// --- Account Flags ---

func (ws *WebServer) handlePutFlags(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Flags string `json:"flags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	flags := adminmgr.AdminFlags(0)
	if !strings.EqualFold(strings.TrimSpace(req.Flags), "none") {
		var err error
		flags, err = adminmgr.ParseFlags(req.Flags)
		if err != nil {
			http.Error(w, `{"error":"unknown admin flag"}`, http.StatusBadRequest)
			return
		}
	}
	name := r.PathValue("name")

	g := ws.game
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.Store == nil {
		http.Error(w, `{"error":"no account store"}`, http.StatusServiceUnavailable)
		return
	}
	// An online player's cached flags and account are updated together.
	var err error
	if s, ok := g.Players.GetSessionByName(name); ok {
		err = g.Admins.SetFlags(s, flags)
	} else {
		err = g.Store.SetAdminFlags(name, uint32(flags))
	}
	if err != nil {
		if errors.Is(err, boltstore.ErrNotFound) {
			http.Error(w, `{"error":"account not found"}`, http.StatusNotFound)
			return
		}
		log.Printf("[rest] set flags for %s: %v", name, err)
		http.Error(w, `{"error":"update failed"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"name": name, "flags": flags.String()})
}
