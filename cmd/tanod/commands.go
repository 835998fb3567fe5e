package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/lborres/tanod"
	"github.com/lborres/tanod/core"
)

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"register":   runRegister,
	"login":      runLogin,
	"validate":   runValidate,
	"logout":     runLogout,
	"whoami":     runWhoami,
	"passwd":     runPasswd,
	"deactivate": runDeactivate,
	"list":       runList,
	"sweep":      runSweep,
	"serve":      runServe,
}

// newFlagSet returns a flag set that reports usage errors on stderr.
func (a *app) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	// the flag set has already printed the problem
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return nil
}

// tokenFlag registers -token, defaulting to TANOD_TOKEN.
func tokenFlag(fs *flag.FlagSet) *string {
	return fs.String("token", os.Getenv("TANOD_TOKEN"), "session token (default $TANOD_TOKEN)")
}

func requireFlag(fs *flag.FlagSet, name, value string) error {
	if value == "" {
		fmt.Fprintf(fs.Output(), "%s: -%s is required\n", fs.Name(), name)
		fs.Usage()
		return errUsage
	}
	return nil
}

func runRegister(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("register")
	email := fs.String("email", "", "account email")
	name := fs.String("name", "", "display name")
	background := fs.String("background", "", "cultural background")
	profession := fs.String("profession", "", "profession")
	location := fs.String("location", "", "location")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireFlag(fs, "email", *email); err != nil {
		return err
	}

	secret, err := a.readSecret("Password: ")
	if err != nil {
		return err
	}

	id, err := a.tanod.Register(ctx, tanod.RegisterInput{
		Email:       *email,
		Secret:      secret,
		DisplayName: *name,
		Profile: tanod.Profile{
			CulturalBackground: *background,
			Profession:         *profession,
			Location:           *location,
		},
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(a.stdout, id)
	return nil
}

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("login")
	email := fs.String("email", "", "account email")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireFlag(fs, "email", *email); err != nil {
		return err
	}

	secret, err := a.readSecret("Password: ")
	if err != nil {
		return err
	}

	res, err := a.tanod.Login(ctx, *email, secret)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.stdout, res.Token)
	fmt.Fprintf(a.stderr, "session expires %s\n", res.Session.ExpiresAt.Format(time.RFC3339))
	return nil
}

func runValidate(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("validate")
	token := tokenFlag(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireFlag(fs, "token", *token); err != nil {
		return err
	}

	data, err := a.tanod.ValidateSession(ctx, *token)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "valid\t%s\t%s\t%s\n", data.Account.ID, data.Account.Email, data.Session.ExpiresAt.Format(time.RFC3339))
	return nil
}

func runLogout(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("logout")
	token := tokenFlag(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireFlag(fs, "token", *token); err != nil {
		return err
	}

	return a.tanod.Logout(ctx, *token)
}

func runWhoami(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("whoami")
	token := tokenFlag(fs)
	if err := parse(fs, args); err != nil {
		return err
	}

	acc, err := a.signedIn(ctx, *token)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(acc)
}

func runPasswd(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("passwd")
	token := tokenFlag(fs)
	if err := parse(fs, args); err != nil {
		return err
	}

	acc, err := a.signedIn(ctx, *token)
	if err != nil {
		return err
	}

	current, err := a.readSecret("Current password: ")
	if err != nil {
		return err
	}
	next, err := a.readSecret("New password: ")
	if err != nil {
		return err
	}

	if err := a.tanod.ChangePassword(ctx, acc.ID, current, next); err != nil {
		return err
	}
	fmt.Fprintln(a.stderr, "password changed")
	return nil
}

func runDeactivate(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("deactivate")
	token := tokenFlag(fs)
	if err := parse(fs, args); err != nil {
		return err
	}

	acc, err := a.signedIn(ctx, *token)
	if err != nil {
		return err
	}

	secret, err := a.readSecret("Password: ")
	if err != nil {
		return err
	}

	if err := a.tanod.Deactivate(ctx, acc.ID, secret); err != nil {
		return err
	}
	fmt.Fprintln(a.stderr, "account deactivated")
	return nil
}

func runList(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("list")
	if err := parse(fs, args); err != nil {
		return err
	}

	accounts, err := a.tanod.ListAccounts(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tNAME\tROLE\tACTIVE\tCREATED\tLAST LOGIN")
	for _, acc := range accounts {
		lastLogin := "-"
		if acc.LastLoginAt != nil {
			lastLogin = acc.LastLoginAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\t%s\n",
			acc.ID, acc.Email, acc.DisplayName, acc.Role, acc.IsActive, acc.CreatedAt.Format(time.RFC3339), lastLogin)
	}
	return w.Flush()
}

func runSweep(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("sweep")
	if err := parse(fs, args); err != nil {
		return err
	}

	removed, err := a.tanod.Sweep(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "removed %d sessions\n", removed)
	return nil
}

// signedIn resolves the token to its account.
func (a *app) signedIn(ctx context.Context, token string) (*core.Account, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: no token given (use -token or TANOD_TOKEN)", core.ErrUnauthenticated)
	}
	data, err := a.tanod.ValidateSession(ctx, token)
	if err != nil {
		return nil, err
	}
	return data.Account, nil
}
