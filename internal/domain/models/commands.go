package models

import "strings"

// CommandType enumerates supported worker command categories.
type CommandType string

const (
	CommandLog     CommandType = "log"
	CommandHealth  CommandType = "health"
	CommandSale    CommandType = "sale"
	CommandExpense CommandType = "expense"
	CommandReport  CommandType = "report"
	CommandUnknown CommandType = "unknown"
)

var commandAliases = map[string]CommandType{
	"log":     CommandLog,
	"daily":   CommandLog,
	"health":  CommandHealth,
	"sale":    CommandSale,
	"sales":   CommandSale,
	"expense": CommandExpense,
	"report":  CommandReport,
	"kpi":     CommandReport,
}

// Command represents a parsed worker instruction extracted from WhatsApp text.
type Command struct {
	Type CommandType
	Raw  string
	Args []string
}

// ParseCommand derives a Command instance from free-form text messages.
func ParseCommand(message string) Command {
	tokens := strings.Fields(strings.ToLower(strings.TrimSpace(message)))
	cmd := Command{Type: CommandUnknown, Raw: message}
	if len(tokens) == 0 {
		return cmd
	}

	if t, ok := commandAliases[strings.TrimPrefix(tokens[0], "/")]; ok {
		cmd.Type = t
	}
	if len(tokens) > 1 {
		cmd.Args = tokens[1:]
	}
	return cmd
}
