package server

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/crystal-station/gostation/pkg/adminlog"
	"github.com/crystal-station/gostation/pkg/adminmgr"
	"github.com/crystal-station/gostation/pkg/console"
	"github.com/crystal-station/gostation/pkg/ecs"
	"github.com/mitchellh/go-wordwrap"
)

// registerCommands adds the server-level console commands.
func (g *Game) registerCommands() {
	g.Console.RegisterCommand("help", "List commands you can run, or describe one.", "help [command]", g.cmdHelp)
	g.Console.RegisterCommand("who", "List connected players.", "who", g.cmdWho)
	g.Console.RegisterCommand("setadmin", "Set a player's admin flags.", "setadmin <player> <flags|none>", g.cmdSetAdmin)
	g.Console.RegisterCommand("adminlog", "Show recent admin log entries.", "adminlog [min impact] [player] [limit]", g.cmdAdminLog)
	g.Console.RegisterCommand("spawn", "Spawn a prototype at your position.", "spawn <prototype> [x y]", g.cmdSpawn)
	g.Console.RegisterCommand("archive", "Archive station data, or list archives.", "archive [list]", g.cmdArchive)
}

// helpWidth is the column console help text wraps at.
const helpWidth = 72

func (g *Game) cmdHelp(sh *console.Shell, args []string) {
	if len(args) > 0 {
		c, ok := g.Console.Lookup(args[0])
		if !ok || !g.Console.CanCommand(sh.Session, c.Name) {
			sh.WriteError("no such command: " + args[0])
			return
		}
		sh.WriteLine("Usage: " + c.Usage)
		for _, line := range strings.Split(wordwrap.WrapString(c.Help, helpWidth), "\n") {
			sh.WriteLine(line)
		}
		return
	}
	const nameCol = 15
	for _, c := range g.Console.Commands() {
		if !g.Console.CanCommand(sh.Session, c.Name) {
			continue
		}
		lines := strings.Split(wordwrap.WrapString(c.Help, helpWidth-nameCol), "\n")
		sh.WriteLine(fmt.Sprintf("%-*s%s", nameCol, c.Name, lines[0]))
		for _, l := range lines[1:] {
			sh.WriteLine(strings.Repeat(" ", nameCol) + l)
		}
	}
}

func (g *Game) cmdWho(sh *console.Shell, _ []string) {
	now := time.Now()
	sessions := g.Players.Sessions()
	sh.WriteLine(fmt.Sprintf("%-20s %-10s %-8s %s", "Player Name", "Status", "On For", "Flags"))
	for _, s := range sessions {
		sh.WriteLine(fmt.Sprintf("%-20s %-10s %-8s %s",
			s.Name, s.Status(), FormatConnTime(now.Sub(s.ConnTime)), g.Admins.Flags(s)))
	}
	sh.WriteLine(fmt.Sprintf("%d players connected.", len(sessions)))
}

func (g *Game) cmdSetAdmin(sh *console.Shell, args []string) {
	if len(args) < 2 {
		sh.Usage()
		return
	}
	flags := adminmgr.AdminFlags(0)
	if !strings.EqualFold(args[1], "none") {
		var err error
		flags, err = adminmgr.ParseFlags(strings.Join(args[1:], " "))
		if err != nil {
			sh.WriteError(err.Error())
			return
		}
	}

	target, online := g.Players.GetSessionByName(args[0])
	switch {
	case online:
		if err := g.Admins.SetFlags(target, flags); err != nil {
			sh.WriteError(err.Error())
			return
		}
	case g.Store != nil:
		if err := g.Store.SetAdminFlags(args[0], uint32(flags)); err != nil {
			sh.WriteError(err.Error())
			return
		}
	default:
		sh.WriteError(fmt.Sprintf("no such player %q", args[0]))
		return
	}
	sh.WriteLine(fmt.Sprintf("%s now has flags %s.", args[0], flags))
}

func (g *Game) cmdAdminLog(sh *console.Shell, args []string) {
	if g.AdminLog == nil {
		sh.WriteError("admin log is not configured")
		return
	}
	f := adminlog.Filter{Limit: 20}
	if len(args) > 0 {
		f.MinImpact = adminlog.ParseImpact(args[0])
	}
	if len(args) > 1 {
		f.User = args[1]
	}
	if len(args) > 2 {
		n, err := strconv.Atoi(args[2])
		if err != nil || n <= 0 {
			sh.Usage()
			return
		}
		f.Limit = n
	}
	entries, err := g.AdminLog.Query(f)
	if err != nil {
		sh.WriteError(err.Error())
		return
	}
	for _, e := range entries {
		sh.WriteLine(fmt.Sprintf("[%s] %-7s %-8s %s", e.Time.Format(time.DateTime), e.Impact, e.Type, e.Message))
	}
	sh.WriteLine(fmt.Sprintf("%d entries.", len(entries)))
}

func (g *Game) cmdSpawn(sh *console.Shell, args []string) {
	if len(args) != 1 && len(args) != 3 {
		sh.Usage()
		return
	}
	var coords ecs.Coordinates
	if sh.Session != nil {
		if uid, ok := sh.Session.AttachedEntity(); ok {
			coords = g.World.Transform(uid).Coordinates
		}
	}
	if len(args) == 3 {
		x, errX := strconv.ParseFloat(args[1], 64)
		y, errY := strconv.ParseFloat(args[2], 64)
		if errX != nil || errY != nil {
			sh.Usage()
			return
		}
		coords.X, coords.Y = x, y
	}
	uid, err := g.World.Spawn(args[0], coords)
	if err != nil {
		sh.WriteError(err.Error())
		return
	}
	sh.WriteLine(fmt.Sprintf("Spawned %s as %s.", args[0], uid))
}

// FormatConnTime formats a duration as connection time.
func FormatConnTime(d time.Duration) string {
	secs := int(d.Seconds())
	hours := secs / 3600
	mins := (secs % 3600) / 60
	return fmt.Sprintf("%02d:%02d", hours, mins)
}
