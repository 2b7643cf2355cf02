package adminmgr

import (
	"strings"
	"sync"

	"github.com/crystal-station/gostation/pkg/player"
)

// DefaultCommandFlags lists the flags each restricted command needs.
// Commands missing from the table are open to every session.
var DefaultCommandFlags = map[string]AdminFlags{
	"aghost":   FlagAdmin,
	"respawn":  FlagAdmin,
	"adminlog": FlagAdmin,
	"archive":  FlagServer,
	"sandbox":  FlagServer,
	"setadmin": FlagHost,
	"spawn":    FlagSpawn,
}

// ConGroupController gates console commands and admin placement.
type ConGroupController struct {
	admins *Manager

	mu       sync.RWMutex
	required map[string]AdminFlags
}

// NewConGroupController creates a controller seeded with DefaultCommandFlags.
func NewConGroupController(admins *Manager) *ConGroupController {
	req := make(map[string]AdminFlags, len(DefaultCommandFlags))
	for k, v := range DefaultCommandFlags {
		req[k] = v
	}
	return &ConGroupController{admins: admins, required: req}
}

// SetCommandFlags sets the flags required to run cmd. Zero opens it to everyone.
func (c *ConGroupController) SetCommandFlags(cmd string, flags AdminFlags) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cmd = strings.ToLower(cmd)
	if flags == 0 {
		delete(c.required, cmd)
		return
	}
	c.required[cmd] = flags
}

// CommandFlags returns the flags required to run cmd.
func (c *ConGroupController) CommandFlags(cmd string) AdminFlags {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.required[strings.ToLower(cmd)]
}

// CanCommand reports whether s may run cmd.
func (c *ConGroupController) CanCommand(s *player.Session, cmd string) bool {
	need := c.CommandFlags(cmd)
	if need == 0 {
		return true
	}
	return c.admins.HasAdminFlag(s, need)
}

// CanAdminPlace reports whether s may place entities while sandbox mode is off.
func (c *ConGroupController) CanAdminPlace(s *player.Session) bool {
	return c.admins.HasAdminFlag(s, FlagSpawn)
}
