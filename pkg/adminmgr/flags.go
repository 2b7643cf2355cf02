package adminmgr

import (
	"fmt"
	"sort"
	"strings"
)

// AdminFlags is a bitmask of admin privileges.
type AdminFlags uint32

const (
	FlagAdmin   AdminFlags = 1 << iota // Basic admin verbs and commands
	FlagFun                            // Antag assignment and other event tools
	FlagSpawn                          // Place entities outside sandbox mode
	FlagDebug                          // Debug commands
	FlagHost                           // Server host; implies every other flag
	FlagBan                            // Bans
	FlagServer                         // Server-wide toggles such as sandbox mode
	FlagVarEdit                        // Direct component editing
)

// FlagTable maps the canonical flag names to their bits.
var FlagTable = map[string]AdminFlags{
	"ADMIN":   FlagAdmin,
	"FUN":     FlagFun,
	"SPAWN":   FlagSpawn,
	"DEBUG":   FlagDebug,
	"HOST":    FlagHost,
	"BAN":     FlagBan,
	"SERVER":  FlagServer,
	"VAREDIT": FlagVarEdit,
}

// ParseFlags parses a list of flag names separated by spaces, commas or
// pipes. A leading '+' on a name is accepted. Names are case-insensitive.
func ParseFlags(s string) (AdminFlags, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == '|' || r == '\t'
	})
	var out AdminFlags
	for _, f := range fields {
		name := strings.ToUpper(strings.TrimPrefix(f, "+"))
		bit, ok := FlagTable[name]
		if !ok {
			return 0, fmt.Errorf("adminmgr: unknown admin flag %q", f)
		}
		out |= bit
	}
	return out, nil
}

// Names returns the flag names set in f, sorted.
func (f AdminFlags) Names() []string {
	var out []string
	for name, bit := range FlagTable {
		if f&bit != 0 {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (f AdminFlags) String() string {
	if f == 0 {
		return "NONE"
	}
	return strings.Join(f.Names(), " ")
}

// Has reports whether f grants every bit of want. HOST grants everything.
func (f AdminFlags) Has(want AdminFlags) bool {
	if f&FlagHost != 0 {
		return true
	}
	return f&want == want
}
