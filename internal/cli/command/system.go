package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tally-go/internal/cli/connection"
	"github.com/yndnr/tally-go/internal/infra/buildinfo"
)

// SystemCommand returns the system subcommand group.
func SystemCommand() *cli.Command {
	return &cli.Command{
		Name:    "system",
		Aliases: []string{"sys"},
		Usage:   "Server and client status",
		Subcommands: []*cli.Command{
			{
				Name:   "health",
				Usage:  "Check server liveness and readiness",
				Action: systemHealth,
			},
			{
				Name:   "version",
				Usage:  "Show client build information",
				Action: systemVersion,
			},
		},
	}
}

func systemHealth(c *cli.Context) error {
	client := newClient(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	view := healthView{Server: client.BaseURL()}

	resp, err := client.Get(ctx, "/health")
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}
	var health struct {
		Status string `json:"status"`
	}
	if err := connection.ParseResponse(resp, &health); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	view.Health = health.Status

	// A failed readiness check is reported, not returned: the server is up.
	resp, err = client.Get(ctx, "/ready")
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}
	var ready struct {
		Status string `json:"status"`
	}
	if err := connection.ParseResponse(resp, &ready); err != nil {
		view.Ready = "not ready"
	} else {
		view.Ready = ready.Status
	}

	return render(c, view)
}

func systemVersion(c *cli.Context) error {
	info := buildinfo.Get()
	return render(c, versionView{
		Version:   info.Version,
		Commit:    info.Commit,
		BuildTime: info.BuildTime,
		GoVersion: info.GoVersion,
		Platform:  info.Platform,
	})
}
