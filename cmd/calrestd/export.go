package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/cyp0633/calrest/restclient"
	"github.com/cyp0633/calrest/server"
	"github.com/emersion/go-ical"
	"github.com/urfave/cli/v2"
)

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Print an event of a running server as iCalendar.",
		ArgsUsage: "<event id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080" + server.DefaultBaseURI, Usage: "API base URL.", EnvVars: []string{"CALREST_URL"}},
			&cli.StringFlag{Name: "username", Required: true, EnvVars: []string{"CALREST_USERNAME"}},
			&cli.StringFlag{Name: "password", EnvVars: []string{"CALREST_PASSWORD"}},
		},
		Action: func(c *cli.Context) error {
			id, err := strconv.ParseInt(c.Args().First(), 10, 64)
			if err != nil {
				return fmt.Errorf("event id must be a number, got %q", c.Args().First())
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
			client, err := restclient.Dial(c.String("url"), c.String("username"), c.String("password"), &restclient.Config{Logger: logger})
			if err != nil {
				return err
			}
			cal, err := client.ExportEvent(c.Context, id)
			if err != nil {
				return err
			}
			return ical.NewEncoder(c.App.Writer).Encode(cal)
		},
	}
}
