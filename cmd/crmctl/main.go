package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matheus3301/wppcrm/internal/console"
	"github.com/matheus3301/wppcrm/internal/session"
	"go.uber.org/fx"
)

// errUsage marks argument errors; usage is printed instead of the error.
var errUsage = errors.New("usage")

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, c *cli, args []string) error
}

var commands = map[string]command{
	"login":         {"login <username>", "Log in and store the tokens", cmdLogin},
	"logout":        {"logout", "Forget the stored tokens", cmdLogout},
	"whoami":        {"whoami", "Show the logged-in user", cmdWhoami},
	"token":         {"token", "Show the access token expiry", cmdToken},
	"refresh":       {"refresh", "Force a token refresh", cmdRefresh},
	"contacts":      {"contacts [--page N] [--size N]", "List contacts", cmdContacts},
	"contact":       {"contact <id>", "Show one contact", cmdContact},
	"messages":      {"messages <contact-id> [--page N]", "List a conversation, oldest first", cmdMessages},
	"send":          {"send <contact-id> <text>", "Send a text message", cmdSend},
	"templates":     {"templates", "List message templates", cmdTemplates},
	"send-template": {"send-template <template-id> <contact-id> [--params file.yaml]", "Send a template", cmdSendTemplate},
	"flows":         {"flows", "List flows", cmdFlows},
	"watch":         {"watch", "Stream realtime events until interrupted", cmdWatch},
}

var commandOrder = []string{
	"login", "logout", "whoami", "token", "refresh",
	"contacts", "contact", "messages", "send",
	"templates", "send-template", "flows", "watch",
}

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	verbose := flag.Bool("v", false, "log to stderr")
	flag.Usage = printUsage
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}

	var core *console.App
	app := fx.New(
		console.Module(console.Params{
			SessionName: sessionName,
			Binary:      "crmctl",
			Stderr:      *verbose,
		}),
		console.FxLogger(),
		fx.Populate(&core),
	)
	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.run(ctx, &cli{core: core, json: *jsonFlag, out: os.Stdout, in: os.Stdin}, args[1:])
	stop()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelStop()
	_ = app.Stop(stopCtx)

	switch {
	case errors.Is(err, errUsage):
		fmt.Fprintf(os.Stderr, "usage: crmctl %s\n", cmd.usage)
		os.Exit(2)
	case err != nil:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: crmctl [--session <name>] [--json] [-v] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	for _, name := range commandOrder {
		c := commands[name]
		fmt.Fprintf(os.Stderr, "  %-62s %s\n", c.usage, c.help)
	}
}
