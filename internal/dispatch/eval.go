package dispatch

import (
	"strings"

	"github.com/arsenal-framework/arsenal/internal/session"
)

const helpText = `Navigation:
  ls [prefix]            List modules, optionally under a dotted prefix
  search <query>         Search module metadata
  use <id-or-cve>        Load a module (select works too)
  back                   Unload the current module

Module operations:
  info [id-or-cve]       Show module details and options
  show options           Show the current module's options
  set <option> <value>   Configure an option on the current module
  run                    Execute the current module (exploit works too)

Utility:
  help                   Show this help
  clear                  Clear the screen
  exit / quit            Leave the shell`

// Eval parses one shell line and dispatches it. Every verb yields a uniform
// Result or error; errors are rendered by the caller and never terminate the
// shell.
func (d *Dispatcher) Eval(sess *session.Session, line string) (Result, error) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return Result{Kind: KindNone}, nil
	}
	verb := strings.ToLower(tokens[0])
	args := tokens[1:]

	switch verb {
	case "help", "?":
		return Result{Kind: KindHelp, Message: helpText}, nil

	case "ls", "list":
		prefix := ""
		if len(args) > 0 {
			prefix = args[0]
		}
		return d.List(prefix)

	case "search":
		return d.Search(strings.Join(args, " "))

	case "use", "select":
		if len(args) != 1 {
			return Result{}, &UsageError{Usage: "use <id-or-cve>"}
		}
		return d.Use(sess, args[0])

	case "info":
		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		return d.Info(sess, name)

	case "show":
		if len(args) != 1 || args[0] != "options" {
			return Result{}, &UsageError{Usage: "show options"}
		}
		return d.Show(sess)

	case "set":
		if len(args) < 2 {
			return Result{}, &UsageError{Usage: "set <option> <value>"}
		}
		return d.SetOption(sess, args[0], strings.Join(args[1:], " "))

	case "run", "exploit":
		return d.Run(sess)

	case "back":
		return d.Back(sess)

	default:
		return Result{}, &UnknownCommandError{Command: verb}
	}
}
