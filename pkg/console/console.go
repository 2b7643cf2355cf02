// Package console runs text commands typed by players and admins.
package console

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/crystal-station/gostation/pkg/events"
	"github.com/crystal-station/gostation/pkg/loc"
	"github.com/crystal-station/gostation/pkg/player"
)

// Permissions decides whether a session may run a command.
// *adminmgr.ConGroupController satisfies it.
type Permissions interface {
	CanCommand(s *player.Session, cmd string) bool
}

// Shell is the execution context handed to a command.
type Shell struct {
	Host    *Host
	Session *player.Session // nil for the server console
	Name    string
	Line    string
}

// WriteLine sends text to whoever ran the command.
func (sh *Shell) WriteLine(text string) {
	sh.Host.reply(sh.Session, text)
}

// WriteError sends an error line to whoever ran the command.
func (sh *Shell) WriteError(text string) {
	sh.Host.reply(sh.Session, "Error: "+text)
}

// Usage reports the command's usage string.
func (sh *Shell) Usage() {
	if cmd, ok := sh.Host.command(sh.Name); ok {
		sh.WriteLine(sh.Host.loc.GetString("console-usage", "usage", cmd.Usage))
	}
}

// Handler implements a command. args excludes the command name.
type Handler func(sh *Shell, args []string)

// Command is a registered console command.
type Command struct {
	Name  string
	Help  string
	Usage string
	Run   Handler
}

// Host owns the command table.
type Host struct {
	perms Permissions
	bus   *events.Bus
	loc   *loc.Catalog

	mu       sync.RWMutex
	commands map[string]*Command

	// OnExecute, if set, runs after a command is permitted and before it runs.
	OnExecute func(s *player.Session, name, line string)
}

// NewHost creates a console host. perms may be nil, which allows everything.
func NewHost(perms Permissions, bus *events.Bus, catalog *loc.Catalog) *Host {
	return &Host{
		perms:    perms,
		bus:      bus,
		loc:      catalog,
		commands: make(map[string]*Command),
	}
}

// RegisterCommand adds a command. Registering a name twice replaces it.
func (h *Host) RegisterCommand(name, help, usage string, run Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := strings.ToLower(name)
	if _, dup := h.commands[key]; dup {
		log.Printf("[console] replacing command %s", name)
	}
	h.commands[key] = &Command{Name: name, Help: help, Usage: usage, Run: run}
}

// UnregisterCommand removes a command.
func (h *Host) UnregisterCommand(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.commands, strings.ToLower(name))
}

// Commands returns the registered commands sorted by name.
func (h *Host) Commands() []*Command {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Command, 0, len(h.commands))
	for _, c := range h.commands {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup returns the command registered under name.
func (h *Host) Lookup(name string) (*Command, bool) {
	return h.command(name)
}

func (h *Host) command(name string) (*Command, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.commands[strings.ToLower(name)]
	return c, ok
}

// CanCommand reports whether s may run the named command. The server console
// (nil session) may run anything.
func (h *Host) CanCommand(s *player.Session, name string) bool {
	if s == nil || h.perms == nil {
		return true
	}
	return h.perms.CanCommand(s, strings.ToLower(name))
}

// ExecuteCommand parses and runs one command line for s. It returns false if
// the command was unknown, denied, or the line could not be parsed.
func (h *Host) ExecuteCommand(s *player.Session, line string) bool {
	args, err := SplitArgs(line)
	if err != nil {
		h.reply(s, "Error: "+err.Error())
		return false
	}
	if len(args) == 0 {
		return false
	}
	name := strings.ToLower(args[0])

	cmd, ok := h.command(name)
	if !ok {
		h.reply(s, h.loc.GetString("console-unknown-command", "command", args[0]))
		return false
	}
	if !h.CanCommand(s, name) {
		h.reply(s, h.loc.GetString("console-no-permission", "command", cmd.Name))
		return false
	}
	if h.OnExecute != nil {
		h.OnExecute(s, cmd.Name, line)
	}
	cmd.Run(&Shell{Host: h, Session: s, Name: cmd.Name, Line: line}, args[1:])
	return true
}

func (h *Host) reply(s *player.Session, text string) {
	if s == nil {
		log.Printf("[console] %s", text)
		return
	}
	if h.bus != nil {
		h.bus.EmitToSession(s.ID, events.Event{Type: events.EvText, Text: text})
	}
}

// SplitArgs splits a command line into words. Double or single quotes group
// words, and a backslash escapes the next character outside single quotes.
func SplitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inWord = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inWord = true
		case r == ' ' || r == '\t':
			if inWord {
				args = append(args, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if escaped {
		return nil, fmt.Errorf("trailing backslash")
	}
	if inWord {
		args = append(args, cur.String())
	}
	return args, nil
}
