package command

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tally-go/internal/cli/connection"
)

// CounterCommand returns the counter subcommand group.
func CounterCommand() *cli.Command {
	return &cli.Command{
		Name:    "counter",
		Aliases: []string{"ctr"},
		Usage:   "Manage the counters of an account",
		Subcommands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a counter; the id is derived from the name",
				ArgsUsage: "NAME",
				Action:    counterCreate,
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List counters in creation order",
				Action:  counterList,
			},
			{
				Name:      "show",
				Aliases:   []string{"get"},
				Usage:     "Show a counter's entries",
				ArgsUsage: "ID",
				Action:    counterShow,
			},
			{
				Name:      "inc",
				Aliases:   []string{"increment"},
				Usage:     "Add one to a counter for a date (default today on the server)",
				ArgsUsage: "ID [--date YYYY-MM-DD]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "date",
						Aliases: []string{"d"},
						Usage:   "Date as YYYY-MM-DD",
					},
				},
				Action: counterIncrement,
			},
		},
	}
}

func counterCreate(c *cli.Context) error {
	name, err := requireArg(c, "counter name")
	if err != nil {
		return err
	}
	tok, err := accountToken(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := newClient(c).Post(ctx, accountPath(tok, "counters"), map[string]string{"name": name})
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var ctr counterView
	if err := connection.ParseResponse(resp, &ctr); err != nil {
		return err
	}
	return render(c, ctr)
}

func counterList(c *cli.Context) error {
	tok, err := accountToken(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := newClient(c).Get(ctx, accountPath(tok, "counters"))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var list counterListView
	if err := connection.ParseResponse(resp, &list); err != nil {
		return err
	}
	return render(c, list)
}

func counterShow(c *cli.Context) error {
	id, err := requireArg(c, "counter ID")
	if err != nil {
		return err
	}
	tok, err := accountToken(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := newClient(c).Get(ctx, accountPath(tok, "counters", id))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var ctr counterView
	if err := connection.ParseResponse(resp, &ctr); err != nil {
		return err
	}
	return render(c, ctr)
}

func counterIncrement(c *cli.Context) error {
	id, date, err := incrementArgs(c)
	if err != nil {
		return err
	}
	tok, err := accountToken(c)
	if err != nil {
		return err
	}

	// A nil body lets the server pick today in its own zone.
	var body any
	if date != "" {
		if _, err := time.Parse(time.DateOnly, date); err != nil {
			return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", date)
		}
		body = map[string]string{"date": date}
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := newClient(c).Post(ctx, accountPath(tok, "counters", id, "increment"), body)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var ctr counterView
	if err := connection.ParseResponse(resp, &ctr); err != nil {
		return err
	}
	return render(c, ctr)
}

// incrementArgs returns the counter ID and date of an inc command. cli stops
// flag parsing at the first positional argument, so a --date written after
// the ID arrives in the tail and is picked up here.
func incrementArgs(c *cli.Context) (id, date string, err error) {
	args := c.Args().Slice()
	if len(args) == 0 || args[0] == "" {
		return "", "", errors.New("counter ID required")
	}
	id, date = args[0], c.String("date")

	rest := args[1:]
	for len(rest) > 0 {
		arg := rest[0]
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if !strings.HasPrefix(arg, "-") || (name != "date" && name != "d") {
			return "", "", fmt.Errorf("unexpected argument %q", arg)
		}
		if !hasValue {
			if len(rest) < 2 {
				return "", "", fmt.Errorf("flag %s needs a value", arg)
			}
			value, rest = rest[1], rest[1:]
		}
		date, rest = value, rest[1:]
	}
	return id, date, nil
}
