package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "calrestd",
		Usage: "Calendar event REST API with recurring events and invitations.",
		Commands: []*cli.Command{
			serveCommand(),
			validateCommand(),
			exportCommand(),
		},
	}
}
