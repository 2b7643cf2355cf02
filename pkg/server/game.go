package server

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/crystal-station/gostation/pkg/administration"
	"github.com/crystal-station/gostation/pkg/adminlog"
	"github.com/crystal-station/gostation/pkg/adminmgr"
	"github.com/crystal-station/gostation/pkg/boltstore"
	"github.com/crystal-station/gostation/pkg/console"
	"github.com/crystal-station/gostation/pkg/ecs"
	"github.com/crystal-station/gostation/pkg/events"
	"github.com/crystal-station/gostation/pkg/items"
	"github.com/crystal-station/gostation/pkg/loc"
	"github.com/crystal-station/gostation/pkg/mind"
	"github.com/crystal-station/gostation/pkg/netmsg"
	"github.com/crystal-station/gostation/pkg/placement"
	"github.com/crystal-station/gostation/pkg/player"
	"github.com/crystal-station/gostation/pkg/prototype"
	"github.com/crystal-station/gostation/pkg/rules"
	"github.com/crystal-station/gostation/pkg/sandbox"
	"github.com/crystal-station/gostation/pkg/ticker"
	"github.com/crystal-station/gostation/pkg/verbs"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"
)

// SettingSandbox is the bolt settings key holding the last sandbox state.
const SettingSandbox = "sandbox_default"

// Game wires every game system together. The world is not safe for
// concurrent use: transports hold Mu while they touch game state.
type Game struct {
	Mu sync.Mutex

	Conf     *GameConf
	Store    *boltstore.Store // nil when running without persistence
	AdminLog *adminlog.Store  // nil when running without an admin log

	Loc        *loc.Catalog
	Prototypes *prototype.Manager
	World      *ecs.World
	Bus        *events.Bus
	Dispatcher *netmsg.Dispatcher
	Players    *player.Manager
	Minds      *mind.System

	Admins   *adminmgr.Manager
	ConGroup *adminmgr.ConGroupController
	Console  *console.Host

	Ticker     *ticker.Ticker
	Verbs      *verbs.System
	AdminVerbs *administration.AdminVerbSystem
	Placement  *placement.Manager
	Sandbox    *sandbox.System

	Metrics   *Metrics
	StartTime time.Time

	archiveGroup singleflight.Group
	unsubs       []func()
}

// NewGame builds the game from conf. store and alog may be nil.
func NewGame(conf *GameConf, store *boltstore.Store, alog *adminlog.Store) (*Game, error) {
	if conf == nil {
		conf = DefaultGameConf()
	}
	g := &Game{
		Conf:       conf,
		Store:      store,
		AdminLog:   alog,
		Loc:        loc.New(language.AmericanEnglish),
		Prototypes: prototype.NewManager(),
		World:      ecs.NewWorld(),
		Bus:        events.NewBus(),
		Dispatcher: netmsg.NewDispatcher(),
		Players:    player.NewManager(),
		StartTime:  time.Now(),
	}

	if conf.LocaleFile != "" {
		if err := g.Loc.LoadFile(conf.LocaleFile); err != nil {
			return nil, fmt.Errorf("server: loading locale: %w", err)
		}
	}

	items.RegisterComponents(g.Prototypes)
	mind.RegisterComponents(g.Prototypes)
	ticker.RegisterComponents(g.Prototypes)
	if conf.PrototypeDir != "" {
		if err := g.Prototypes.LoadDir(conf.PrototypeDir); err != nil {
			return nil, fmt.Errorf("server: loading prototypes: %w", err)
		}
	}
	g.World.SetSpawner(g.Prototypes)
	g.Minds = mind.NewSystem(g.World)

	var accounts adminmgr.AccountStore
	if store != nil {
		accounts = store
	}
	g.Admins = adminmgr.NewManager(accounts)
	g.ConGroup = adminmgr.NewConGroupController(g.Admins)
	g.Console = console.NewHost(g.ConGroup, g.Bus, g.Loc)

	g.Ticker = ticker.New(g.World, g.Players, g.Minds, g.Bus, g.Loc)
	g.Ticker.RegisterCommands(g.Console)

	var logger verbs.AdminLogger
	if alog != nil {
		logger = alog
	}
	g.Verbs = verbs.NewSystem(g.World, logger, g.Loc)
	g.Verbs.RegisterCommands(g.Console)
	g.unsubs = append(g.unsubs, g.Verbs.Subscribe(g.Dispatcher, g.Bus)...)

	rd := rules.Deps{World: g.World, Minds: g.Minds, Bus: g.Bus, Loc: g.Loc}
	g.AdminVerbs = administration.NewAdminVerbSystem(g.World, g.Admins, administration.AntagRules{
		Traitor:  &rules.TraitorRule{Deps: rd},
		Nukeops:  &rules.NukeopsRule{Deps: rd},
		Pirates:  &rules.PiratesRule{Deps: rd},
		Zombify:  &rules.Zombify{Deps: rd},
		EvilTwin: &rules.EvilTwin{Deps: rd},
	}, g.Loc)
	g.AdminVerbs.Initialize()

	g.Placement = placement.NewManager(g.World, g.Bus, g.Loc)
	g.unsubs = append(g.unsubs, g.Placement.Subscribe(g.Dispatcher))

	g.Sandbox = sandbox.New(sandbox.Deps{
		World:      g.World,
		Bus:        g.Bus,
		Dispatcher: g.Dispatcher,
		Players:    g.Players,
		ConGroup:   g.ConGroup,
		Placement:  g.Placement,
		Console:    g.Console,
		Ticker:     g.Ticker,
		Prototypes: g.Prototypes,
	})
	g.Sandbox.Initialize()
	g.Sandbox.RegisterCommands(g.Console, g.Loc)

	g.registerCommands()
	g.unsubs = append(g.unsubs, netmsg.Subscribe(g.Dispatcher, g.consoleCommandReceived))

	g.Metrics = NewMetrics(g)
	g.wireHooks()

	if store != nil {
		g.Sandbox.SetEnabled(store.GetBool(SettingSandbox, conf.SandboxDefault))
	} else if conf.SandboxDefault {
		g.Sandbox.SetEnabled(true)
	}
	if conf.AutoRound {
		g.Ticker.StartRound()
	}
	return g, nil
}

// wireHooks connects system callbacks to metrics, persistence and the admin log.
func (g *Game) wireHooks() {
	g.Verbs.OnExecuted = func(v verbs.Verb) {
		g.Metrics.verbsExecuted.WithLabelValues(v.Text).Inc()
	}
	g.Placement.OnResult = func(allowed bool) {
		if allowed {
			g.Metrics.placements.WithLabelValues("allowed").Inc()
		} else {
			g.Metrics.placements.WithLabelValues("denied").Inc()
		}
	}
	g.Sandbox.OnChanged = func(enabled bool) {
		if enabled {
			g.Metrics.sandboxEnabled.Set(1)
		} else {
			g.Metrics.sandboxEnabled.Set(0)
		}
		if g.Store != nil {
			if err := g.Store.PutBool(SettingSandbox, enabled); err != nil {
				log.Printf("[sandbox] persisting state: %v", err)
			}
		}
	}
	g.Sandbox.OnAdminPlacement = func(p *netmsg.MsgPlacement) {
		name := "unknown"
		if s, ok := g.Players.GetSessionByChannel(p.MsgChannel); ok {
			name = s.Name
		}
		g.logAdmin(adminlog.Entry{
			Type:    adminlog.TypeSandbox,
			Impact:  adminlog.ImpactMedium,
			User:    name,
			Message: fmt.Sprintf("%s placed %s outside sandbox mode", name, p.EntityType),
		})
	}
	g.Console.OnExecute = func(s *player.Session, name, line string) {
		if g.ConGroup.CommandFlags(name) == 0 {
			return
		}
		user := "server"
		if s != nil {
			user = s.Name
		}
		g.logAdmin(adminlog.Entry{
			Type:    adminlog.TypeConsole,
			Impact:  adminlog.ImpactLow,
			User:    user,
			Message: fmt.Sprintf("%s ran %q", user, line),
		})
	}
	if g.AdminLog != nil {
		g.AdminLog.OnWrite = func(e adminlog.Entry) {
			g.Metrics.adminLogWrites.WithLabelValues(e.Type).Inc()
		}
	}
}

func (g *Game) logAdmin(e adminlog.Entry) {
	if g.AdminLog == nil {
		log.Printf("[admin] %s", e.Message)
		return
	}
	if _, err := g.AdminLog.Add(e); err != nil {
		log.Printf("[admin] writing admin log: %v", err)
	}
}

func (g *Game) consoleCommandReceived(m *netmsg.MsgConsoleCommand, args netmsg.EntitySessionEventArgs) {
	if args.SenderSession == nil {
		return
	}
	g.Console.ExecuteCommand(args.SenderSession, m.Line)
}

// Connect registers a new session for name, delivering its events through
// send, and moves it to Connected. A session joining mid-round is spawned.
// Callers must hold Mu.
func (g *Game) Connect(name, addr string, send func(ev events.Event)) *player.Session {
	s := g.Players.NewSession(name, addr)
	s.SendFunc = send
	g.Bus.Subscribe(s.ID, s)
	g.Admins.LoadSession(s)
	g.Metrics.connectionsTotal.Inc()
	g.Players.SetStatus(s, player.StatusConnected)

	if g.Ticker.RunLevel() == ticker.InRound {
		if _, err := g.Ticker.SpawnPlayer(s); err != nil {
			log.Printf("[game] spawning %s: %v", s.Name, err)
		}
	}
	return s
}

// Disconnect detaches the session from its body and mind and forgets it.
// The body stays in the world. Callers must hold Mu.
func (g *Game) Disconnect(s *player.Session) {
	if uid, ok := s.AttachedEntity(); ok {
		ecs.Remove[player.Actor](g.World, uid)
	}
	if m, ok := g.Minds.ForSession(s); ok {
		g.Minds.SetSession(m, nil)
	}
	g.Players.Detach(s)
	g.Admins.Forget(s)
	g.Bus.Unsubscribe(s.ID, s)
	g.Players.Remove(s)
}

// SetSandbox changes sandbox mode on behalf of user and records it in the
// admin log. Callers must hold Mu.
func (g *Game) SetSandbox(enabled bool, user string) {
	g.Sandbox.SetEnabled(enabled)
	state := "off"
	if enabled {
		state = "on"
	}
	g.logAdmin(adminlog.Entry{
		Type:    adminlog.TypeSandbox,
		Impact:  adminlog.ImpactHigh,
		User:    user,
		Message: fmt.Sprintf("%s turned sandbox mode %s", user, state),
	})
}

// Shutdown stops every system subscription.
func (g *Game) Shutdown() {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	g.Sandbox.Shutdown()
	g.AdminVerbs.Shutdown()
	for _, u := range g.unsubs {
		u()
	}
	g.unsubs = nil
	for _, s := range g.Players.Sessions() {
		g.Disconnect(s)
	}
}
