package tui

import "strings"

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

var commandAliases = map[string]string{
	"c":         "contacts",
	"contact":   "contacts",
	"contacts":  "contacts",
	"o":         "open",
	"open":      "open",
	"chat":      "open",
	"t":         "templates",
	"tpl":       "templates",
	"templates": "templates",
	"f":         "flows",
	"flows":     "flows",
	"d":         "details",
	"details":   "details",
	"reconnect": "reconnect",
	"logout":    "logout",
	"h":         "help",
	"?":         "help",
	"help":      "help",
	"q":         "quit",
	"q!":        "quit",
	"quit":      "quit",
}

// ParseCommand parses a command string (without the leading ':'). Aliases
// resolve to their full name; unknown names are kept as typed.
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if full, ok := commandAliases[cmd.Name]; ok {
		cmd.Name = full
	}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}

// Known reports whether the command name is recognised.
func (c Command) Known() bool {
	_, ok := commandAliases[c.Name]
	return ok
}
