package verbs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/crystal-station/gostation/pkg/console"
	"github.com/crystal-station/gostation/pkg/ecs"
	"github.com/crystal-station/gostation/pkg/events"
	"github.com/crystal-station/gostation/pkg/netmsg"
	"github.com/crystal-station/gostation/pkg/player"
)

// RegisterCommands adds the listverbs and invokeverb console commands.
func (s *System) RegisterCommands(host *console.Host) {
	host.RegisterCommand("listverbs", "List the verbs you can run on an entity.", "listverbs <uid>",
		func(sh *console.Shell, args []string) {
			user, target, ok := s.shellTargets(sh, args, 1)
			if !ok {
				return
			}
			vs := s.GetLocalVerbs(target, user)
			if len(vs) == 0 {
				sh.WriteLine(fmt.Sprintf("No verbs on %s.", s.describe(target)))
				return
			}
			for _, v := range vs {
				if v.Category != CategoryNone {
					sh.WriteLine(fmt.Sprintf("[%s] %s", v.Category, v.Text))
				} else {
					sh.WriteLine(v.Text)
				}
			}
		})

	host.RegisterCommand("invokeverb", "Run a verb on an entity by its name.", "invokeverb <uid> <verb text>",
		func(sh *console.Shell, args []string) {
			user, target, ok := s.shellTargets(sh, args, 2)
			if !ok {
				return
			}
			text := strings.Join(args[1:], " ")
			if !s.InvokeByName(user, target, text) {
				sh.WriteError(fmt.Sprintf("no verb %q on %s", text, s.describe(target)))
			}
		})
}

// shellTargets resolves the running user's entity and the uid argument.
func (s *System) shellTargets(sh *console.Shell, args []string, minArgs int) (user, target ecs.EntityUID, ok bool) {
	if len(args) < minArgs {
		sh.Usage()
		return ecs.Invalid, ecs.Invalid, false
	}
	n, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || !s.w.Exists(ecs.EntityUID(n)) {
		sh.WriteError(fmt.Sprintf("no entity %q", args[0]))
		return ecs.Invalid, ecs.Invalid, false
	}
	if sh.Session != nil {
		user, _ = sh.Session.AttachedEntity()
	}
	return user, ecs.EntityUID(n), true
}

// Subscribe routes client verb requests. Replies go to the sender through bus.
func (s *System) Subscribe(d *netmsg.Dispatcher, bus *events.Bus) []func() {
	return []func(){
		netmsg.Subscribe(d, func(m *netmsg.MsgGetVerbs, args netmsg.EntitySessionEventArgs) {
			user, ok := sessionEntity(args.SenderSession)
			if !ok || !s.w.Exists(m.Target) {
				return
			}
			reply := &netmsg.MsgVerbs{Target: m.Target, Verbs: Info(s.GetLocalVerbs(m.Target, user))}
			bus.EmitToSession(args.SenderSession.ID, reply.ToEvent())
		}),
		netmsg.Subscribe(d, func(m *netmsg.MsgInvokeVerb, args netmsg.EntitySessionEventArgs) {
			user, ok := sessionEntity(args.SenderSession)
			if !ok || !s.w.Exists(m.Target) {
				return
			}
			s.InvokeByName(user, m.Target, m.Text)
		}),
	}
}

func sessionEntity(s *player.Session) (ecs.EntityUID, bool) {
	if s == nil {
		return ecs.Invalid, false
	}
	return s.AttachedEntity()
}
