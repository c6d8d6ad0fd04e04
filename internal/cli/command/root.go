package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tally-go/internal/cli/config"
	"github.com/yndnr/tally-go/internal/cli/connection"
	"github.com/yndnr/tally-go/internal/cli/output"
	"github.com/yndnr/tally-go/internal/infra/buildinfo"
)

const settingsKey = "settings"

// errNoToken is returned by commands that need an account but got none.
var errNoToken = errors.New("no account token: pass --token, set TALLY_TOKEN or run 'account create --save'")

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "tally-cli",
		Usage:   "Command-line client for the tally counter service",
		Version: buildinfo.Get().String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			AccountCommand(),
			CounterCommand(),
			SystemCommand(),
		},
		Before: loadSettings,
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "Server address (e.g., 127.0.0.1:5080)",
			EnvVars: []string{"TALLY_SERVER"},
		},
		&cli.StringFlag{
			Name:    "token",
			Aliases: []string{"t"},
			Usage:   "Account token",
			EnvVars: []string{"TALLY_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Request timeout",
			Value: connection.DefaultTimeout,
		},
		&cli.StringFlag{
			Name:    "config",
			Usage:   "CLI config file",
			EnvVars: []string{"TALLY_CLI_CONFIG"},
			Value:   config.DefaultConfigPath(),
		},
	}
}

// Settings is the effective configuration of one invocation: the config
// file overlaid with flags and environment.
type Settings struct {
	Server     string
	Token      string
	Output     output.Format
	Wide       bool
	Timeout    time.Duration
	ConfigPath string
	File       *config.CLIConfig
}

func loadSettings(c *cli.Context) error {
	path := c.String("config")
	file, err := config.Load(path)
	if err != nil {
		return err
	}

	merged := config.Merge(file, map[string]string{
		"server": c.String("server"),
		"output": c.String("output"),
		"token":  c.String("token"),
	})
	format, err := output.ParseFormat(merged.Output)
	if err != nil {
		return err
	}

	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[settingsKey] = &Settings{
		Server:     merged.Server,
		Token:      merged.Token,
		Output:     format,
		Wide:       c.Bool("wide"),
		Timeout:    c.Duration("timeout"),
		ConfigPath: path,
		File:       file,
	}
	return nil
}

// settingsFrom returns the settings loaded by the app's Before hook.
func settingsFrom(c *cli.Context) *Settings {
	if s, ok := c.App.Metadata[settingsKey].(*Settings); ok {
		return s
	}
	d := config.Default()
	return &Settings{Server: d.Server, Output: output.FormatTable, Timeout: connection.DefaultTimeout}
}

// newClient builds the HTTP client for this invocation.
func newClient(c *cli.Context) *connection.HTTPClient {
	s := settingsFrom(c)
	return connection.NewHTTPClient(s.Server, s.Timeout)
}

// requestContext bounds one command by the configured timeout.
func requestContext(c *cli.Context) (context.Context, context.CancelFunc) {
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, settingsFrom(c).Timeout)
}

// accountToken returns the token of the account to act on.
func accountToken(c *cli.Context) (string, error) {
	if tok := settingsFrom(c).Token; tok != "" {
		return tok, nil
	}
	return "", errNoToken
}

// render writes data in the selected output format.
func render(c *cli.Context, data any) error {
	s := settingsFrom(c)
	return output.NewFormatter(s.Output, s.Wide).Format(writer(c), data)
}

func writer(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return io.Discard
}

// requireArg returns the single positional argument or a usage error.
// Flags placed after it are not parsed by cli, so extra arguments are
// rejected rather than silently dropped.
func requireArg(c *cli.Context, name string) (string, error) {
	v := c.Args().First()
	if v == "" {
		return "", fmt.Errorf("%s required", name)
	}
	if c.NArg() > 1 {
		return "", fmt.Errorf("unexpected arguments after %s: %s", name, strings.Join(c.Args().Tail(), " "))
	}
	return v, nil
}
