package main

import (
	"strings"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/habitrefresh/internal/cli"
	"github.com/julianstephens/habitrefresh/internal/config"
	"github.com/julianstephens/habitrefresh/internal/constants"
	"github.com/julianstephens/habitrefresh/internal/errors"
	"github.com/julianstephens/habitrefresh/internal/logger"
	"github.com/julianstephens/habitrefresh/internal/storage"
)

var CLI struct {
	Version kong.VersionFlag
	Config  string `help:"Config file path." type:"path" default:"~/.config/habitrefresh/config.toml"`
	EnvFile string `help:"Optional .env file with HABITREFRESH_* overrides." type:"path" default:".env"`
	Debug   bool   `help:"Log at debug level and mirror logs to stderr."`

	Init    cli.InitCmd    `cmd:"" help:"Write a default config and initialize the state database."`
	Run     cli.RunCmd     `cmd:"" help:"Run the daily refresh daemon."`
	Refresh cli.RefreshCmd `cmd:"" help:"Run one refresh cycle now."`
	Status  cli.StatusCmd  `cmd:"" help:"Show the day guard and daemon state." default:"1"`
	Doctor  cli.DoctorCmd  `cmd:"" help:"Run health checks and diagnostics."`

	Consumer struct {
		Add    cli.ConsumerAddCmd    `cmd:"" help:"Register a display consumer."`
		Remove cli.ConsumerRemoveCmd `cmd:"" help:"Unregister a display consumer."`
		List   cli.ConsumerListCmd   `cmd:"" help:"List registered consumers."`
	} `cmd:"" help:"Manage display consumers."`
	Trigger struct {
		Refresh cli.TriggerRefreshCmd `cmd:"" help:"Ask the daemon to run a cycle."`
		Recover cli.TriggerRecoverCmd `cmd:"" help:"Send the daemon a restart notification."`
	} `cmd:"" help:"Send commands to a running daemon."`
	Keyring struct {
		Set    cli.KeyringSetCmd    `cmd:"" help:"Store the habit database connection string."`
		Get    cli.KeyringGetCmd    `cmd:"" help:"Show the stored connection string (password masked)."`
		Delete cli.KeyringDeleteCmd `cmd:"" help:"Delete the stored connection string."`
	} `cmd:"" help:"Manage habit database credentials in the OS keyring."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Refreshes habit widget data once per calendar day"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{"version": constants.Version},
	)

	// Command() includes nested names and argument placeholders
	command := strings.Fields(ctx.Command())[0]

	cfg, err := config.Load(CLI.Config, CLI.EnvFile)
	if err != nil {
		errors.Fatal(err)
	}
	if CLI.Debug {
		cfg.Debug = true
	}

	if err := logger.Init(logger.Config{
		Debug:     cfg.Debug,
		ConfigDir: cfg.Dir,
		Stderr:    command == "run",
		Format:    cfg.LogFormat,
	}); err != nil {
		errors.Fatalf("failed to initialize logger: %v", err)
	}

	store := storage.New(cfg.StatePath)
	defer store.Close()

	appCtx := &cli.Context{
		Config:     cfg,
		ConfigPath: CLI.Config,
		Store:      store,
	}

	// init creates the database, doctor reports on it and keyring never touches it
	switch command {
	case "init", "doctor", "keyring":
	default:
		if err := store.Load(); err != nil {
			errors.Fatal(err)
		}
	}

	if err := ctx.Run(appCtx); err != nil {
		store.Close()
		errors.Fatal(err)
	}
}
