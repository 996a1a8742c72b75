package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	// .env is optional; convenient for local debugging.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "soldash",
		Usage: "Solana dapp transaction dashboard CLI",
		Description: `A command-line tool for managing and debugging the soldash service.

Use this CLI to inspect database state, manage the reconcile schedule,
stream record events from NATS, and exercise the HTTP API.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			// Database inspection commands
			{
				Name:  "db",
				Usage: "Database inspection commands",
				Subcommands: []*cli.Command{
					listTransactionsCommand(),
					getTransactionCommand(),
					listPendingCommand(),
					migrateCommand(),
				},
			},
			// Temporal inspection and management commands
			{
				Name:  "temporal",
				Usage: "Temporal inspection and management commands",
				Subcommands: []*cli.Command{
					listSchedulesCommand(),
					describeScheduleCommand(),
					ensureScheduleCommand(),
					pauseScheduleCommand(),
					resumeScheduleCommand(),
					deleteScheduleCommand(),
				},
			},
			// NATS record event streaming commands
			{
				Name:  "nats",
				Usage: "NATS record event streaming commands",
				Subcommands: []*cli.Command{
					subscribeCommand(),
					inspectStreamCommand(),
				},
			},
			// Client commands (HTTP API)
			clientCommands(),
			// Server utility commands
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "temporal-host",
				Usage:   "Temporal server address",
				EnvVars: []string{"TEMPORAL_HOST"},
				Value:   "localhost:7233",
			},
			&cli.StringFlag{
				Name:    "temporal-namespace",
				Usage:   "Temporal namespace",
				EnvVars: []string{"TEMPORAL_NAMESPACE"},
				Value:   "default",
			},
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "Server URL for HTTP API commands",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
