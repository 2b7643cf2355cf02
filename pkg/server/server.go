package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"
)

// Server runs the game behind its web transport and drives periodic
// housekeeping.
type Server struct {
	Conf      *GameConf
	Game      *Game
	webServer *WebServer
	webCfg    WebConfig

	// CheckpointInterval is how often the admin log WAL is checkpointed.
	CheckpointInterval time.Duration
	// ArchiveInterval is how often a data archive is written.
	// Zero disables periodic archives.
	ArchiveInterval time.Duration
}

// NewServer creates a server for game.
func NewServer(game *Game) *Server {
	cfg := WebConfigFrom(game.Conf)
	return &Server{
		Conf:               game.Conf,
		Game:               game,
		webServer:          NewWebServer(game, cfg),
		webCfg:             cfg,
		CheckpointInterval: 10 * time.Minute,
		ArchiveInterval:    6 * time.Hour,
	}
}

// Web returns the web transport.
func (s *Server) Web() *WebServer {
	return s.webServer
}

// Start runs until ctx is cancelled or the web server fails.
func (s *Server) Start(ctx context.Context) error {
	if s.Game.Conf.PrototypeDir != "" {
		if err := s.Game.Prototypes.Watch(ctx, nil); err != nil {
			log.Printf("[server] prototype hot reload disabled: %v", err)
		}
	}
	go s.housekeeping(ctx)

	log.Printf("[server] %s starting, sandbox %v, run level %s",
		s.Game.Conf.ServerName, s.Game.Sandbox.Enabled(), s.Game.Ticker.RunLevel())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.webServer.Start(s.webCfg)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: web: %w", err)
		}
		return nil
	case <-ctx.Done():
		return s.Stop()
	}
}

// Stop shuts the web server down and disconnects every session.
func (s *Server) Stop() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := s.webServer.Stop(shutdownCtx)
	s.Game.Shutdown()
	if s.Game.AdminLog != nil {
		if cerr := s.Game.AdminLog.Checkpoint(); cerr != nil {
			log.Printf("[server] admin log checkpoint: %v", cerr)
		}
	}
	log.Printf("[server] stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Server) housekeeping(ctx context.Context) {
	checkpoint := time.NewTicker(s.CheckpointInterval)
	defer checkpoint.Stop()

	var archiveC <-chan time.Time
	if s.ArchiveInterval > 0 && s.Game.Conf.ArchiveDir != "" {
		t := time.NewTicker(s.ArchiveInterval)
		defer t.Stop()
		archiveC = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-checkpoint.C:
			if s.Game.AdminLog != nil {
				if err := s.Game.AdminLog.Checkpoint(); err != nil {
					log.Printf("[server] admin log checkpoint: %v", err)
				}
			}
		case <-archiveC:
			path, err := s.Game.Archive()
			if err != nil {
				log.Printf("[server] archive: %v", err)
			} else {
				log.Printf("[server] archived station data to %s", filepath.Base(path))
			}
		}
	}
}
