package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"go.mau.fi/util/ptr"

	"github.com/Aryan-cloud-arch/LOGGING-ALL-THE-CHATS/pkg/config"
	"github.com/Aryan-cloud-arch/LOGGING-ALL-THE-CHATS/pkg/mirror"
)

var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

type contextKey int

const (
	contextKeyConfig contextKey = iota
	contextKeyLogger
)

func getConfig(ctx *cli.Context) *config.Config {
	return ctx.Context.Value(contextKeyConfig).(*config.Config)
}

func getLogger(ctx *cli.Context) *zerolog.Logger {
	return ctx.Context.Value(contextKeyLogger).(*zerolog.Logger)
}

func prepareApp(ctx *cli.Context) error {
	if err := config.LoadEnvFile(ctx.String("env-file"), ctx.IsSet("env-file")); err != nil {
		return err
	}
	cfg, err := config.Load(ctx.String("config"), !ctx.Bool("no-update"))
	if err != nil {
		return err
	}
	if cfg.Logging.MinLevel == nil {
		cfg.Logging.MinLevel = ptr.Ptr(zerolog.InfoLevel)
	}
	log, err := cfg.Logging.Compile()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	newCtx := context.WithValue(ctx.Context, contextKeyConfig, cfg)
	newCtx = context.WithValue(newCtx, contextKeyLogger, log)
	ctx.Context = log.WithContext(newCtx)
	return nil
}

// requiresValidConfig loads the config and refuses to continue if anything needed to mirror is missing.
func requiresValidConfig(ctx *cli.Context) error {
	if err := prepareApp(ctx); err != nil {
		return err
	}
	return getConfig(ctx).Validate()
}

func main() {
	app := &cli.App{
		Name:    "dmmirror",
		Usage:   "Mirror a direct-message conversation into a backup group",
		Version: fmt.Sprintf("%s (%s, built %s)", Tag, Commit, BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   "config.yaml",
				EnvVars: []string{config.EnvPrefix + "CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a dotenv file with secrets",
				Value: ".env",
			},
			&cli.BoolFlag{
				Name:  "no-update",
				Usage: "Don't write new config options back to the config file",
			},
		},
		Commands: []*cli.Command{
			runCommand,
			loginCommand,
			generateConfigCommand,
			statsCommand,
			historyCommand,
			chainCommand,
			checkpointCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		var ce *mirror.ConfigurationError
		if errors.As(err, &ce) {
			fmt.Fprintln(os.Stderr, "Configuration problems:")
			for _, problem := range ce.Problems {
				fmt.Fprintf(os.Stderr, "  - %s\n", problem)
			}
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
