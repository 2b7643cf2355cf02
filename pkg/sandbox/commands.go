package sandbox

import (
	"strings"

	"github.com/crystal-station/gostation/pkg/console"
	"github.com/crystal-station/gostation/pkg/loc"
)

// RegisterCommands adds the sandbox console command.
func (s *System) RegisterCommands(host *console.Host, catalog *loc.Catalog) {
	host.RegisterCommand("sandbox", "Show or toggle sandbox mode.", "sandbox [on|off|status]",
		func(sh *console.Shell, args []string) {
			arg := "status"
			if len(args) > 0 {
				arg = strings.ToLower(args[0])
			}
			switch arg {
			case "on", "true", "1", "enable":
				s.SetEnabled(true)
				sh.WriteLine(catalog.GetString("sandbox-enabled"))
			case "off", "false", "0", "disable":
				s.SetEnabled(false)
				sh.WriteLine(catalog.GetString("sandbox-disabled"))
			case "status":
				state := "disabled"
				if s.Enabled() {
					state = "enabled"
				}
				sh.WriteLine(catalog.GetString("sandbox-status", "state", state))
			default:
				sh.Usage()
			}
		})
}
