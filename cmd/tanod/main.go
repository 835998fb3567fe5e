// Command tanod manages contributor accounts and sessions from the shell and
// serves the HTTP auth endpoints.
//
// Settings come from TANOD_* environment variables; see pkg/config.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/lborres/tanod/pkg/config"
)

const usage = `usage: tanod <command> [flags]

commands:
  register    create an account
  login       sign in and print a session token
  validate    check a session token
  logout      revoke a session token
  whoami      print the account behind a session token
  passwd      change the password of the signed-in account
  deactivate  deactivate the signed-in account
  list        list all accounts
  sweep       remove expired and revoked sessions
  serve       run the HTTP server
`

// errUsage marks a bad invocation; run exits with status 2.
var errUsage = errors.New("usage")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr, config.Load))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, load func() (config.Config, error)) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(stderr, usage)
		if len(args) == 0 {
			return 2
		}
		return 0
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "tanod: unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	cfg, err := load()
	if err != nil {
		fmt.Fprintf(stderr, "tanod: %v\n", err)
		return 1
	}

	a, err := newApp(ctx, cfg, stdin, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "tanod: %v\n", err)
		return 1
	}
	defer a.close()

	if err := cmd(ctx, a, args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			return 2
		}
		fmt.Fprintf(stderr, "tanod: %v\n", err)
		return 1
	}
	return 0
}
