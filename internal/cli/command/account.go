package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tally-go/internal/cli/config"
	"github.com/yndnr/tally-go/internal/cli/connection"
)

// AccountCommand returns the account subcommand group.
func AccountCommand() *cli.Command {
	return &cli.Command{
		Name:    "account",
		Aliases: []string{"acct"},
		Usage:   "Create and inspect accounts",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create an account and print its token",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "save",
						Usage: "Store the token and server in the CLI config file",
					},
				},
				Action: accountCreate,
			},
			{
				Name:      "show",
				Aliases:   []string{"get"},
				Usage:     "Show an account with all its counters",
				ArgsUsage: "[TOKEN]",
				Action:    accountShow,
			},
		},
	}
}

func accountCreate(c *cli.Context) error {
	client := newClient(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := client.Post(ctx, "/accounts", nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	var acct accountView
	if err := connection.ParseResponse(resp, &acct); err != nil {
		return err
	}

	if c.Bool("save") {
		s := settingsFrom(c)
		file := s.File
		if file == nil {
			file = config.Default()
		}
		file.Server = s.Server
		file.Token = acct.Token
		if err := config.Save(file, s.ConfigPath); err != nil {
			return fmt.Errorf("save token: %w", err)
		}
	}

	return render(c, acct)
}

func accountShow(c *cli.Context) error {
	tok := c.Args().First()
	if tok == "" {
		var err error
		if tok, err = accountToken(c); err != nil {
			return err
		}
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := newClient(c).Get(ctx, accountPath(tok))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var acct accountView
	if err := connection.ParseResponse(resp, &acct); err != nil {
		return err
	}
	return render(c, acct)
}
