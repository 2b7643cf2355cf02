package ticker

import (
	"fmt"

	"github.com/crystal-station/gostation/pkg/console"
	"github.com/crystal-station/gostation/pkg/player"
)

// RegisterCommands adds ghost, aghost, suicide, respawn and round control commands.
func (t *Ticker) RegisterCommands(host *console.Host) {
	host.RegisterCommand("ghost", "Leave your body and observe.", "ghost",
		func(sh *console.Shell, args []string) {
			if s, ok := t.requireSession(sh); ok {
				if _, err := t.Ghost(s, false); err != nil {
					sh.WriteError(err.Error())
				}
			}
		})

	host.RegisterCommand("aghost", "Become an admin ghost.", "aghost",
		func(sh *console.Shell, args []string) {
			if s, ok := t.requireSession(sh); ok {
				if _, err := t.Ghost(s, true); err != nil {
					sh.WriteError(err.Error())
				}
			}
		})

	host.RegisterCommand("suicide", "End your current body.", "suicide",
		func(sh *console.Shell, args []string) {
			if s, ok := t.requireSession(sh); ok {
				if err := t.Suicide(s); err != nil {
					sh.WriteError(err.Error())
				}
			}
		})

	host.RegisterCommand("respawn", "Respawn yourself or a named player.", "respawn [player]",
		func(sh *console.Shell, args []string) {
			target := sh.Session
			if len(args) > 0 {
				s, ok := t.players.GetSessionByName(args[0])
				if !ok {
					sh.WriteError(fmt.Sprintf("no player %q", args[0]))
					return
				}
				target = s
			}
			if target == nil {
				sh.Usage()
				return
			}
			if !t.registered(target) {
				sh.WriteError("this command needs a connected player")
				return
			}
			if _, err := t.Respawn(target); err != nil {
				sh.WriteError(err.Error())
			}
		})

	host.RegisterCommand("restartround", "Return everyone to the lobby.", "restartround",
		func(sh *console.Shell, args []string) {
			t.RestartRound()
			sh.WriteLine("Round restarted.")
		})

	host.RegisterCommand("startround", "Start the round.", "startround",
		func(sh *console.Shell, args []string) {
			t.StartRound()
			sh.WriteLine(fmt.Sprintf("Run level is %s.", t.RunLevel()))
		})
}

// requireSession returns the caller's session if it is a connected player.
// Sessions unknown to the player manager, such as the ones HTTP commands run
// on, cannot own a body.
func (t *Ticker) requireSession(sh *console.Shell) (*player.Session, bool) {
	if sh.Session == nil {
		sh.WriteError("this command needs a player")
		return nil, false
	}
	if !t.registered(sh.Session) {
		sh.WriteError("this command needs a connected player")
		return nil, false
	}
	return sh.Session, true
}

func (t *Ticker) registered(s *player.Session) bool {
	got, ok := t.players.Get(s.ID)
	return ok && got == s
}
