// Package cli provides the command-line interface for paflow.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ntt-security-japan/gopowerautomate/pkg/config"
	"github.com/ntt-security-japan/gopowerautomate/pkg/logger"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Log debug messages to stderr",
		EnvVars: []string{"PAFLOW_VERBOSE"},
	},
	&cli.StringFlag{
		Name:    "log-file",
		Usage:   "Append log messages to this file",
		EnvVars: []string{"PAFLOW_LOG_FILE"},
	},
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to workspace paflow.yaml (default: ./paflow.yaml if present)",
		EnvVars: []string{"PAFLOW_CONFIG"},
	},
}

// NewApp builds the paflow application.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "paflow",
		Usage:   "Build Power Automate flows from YAML and package them for import",
		Version: Version,
		Description: `paflow renders Power Automate workflow definitions from declarative
YAML flow files and packages them into the legacy import zip.

Examples:
  paflow render flow.yaml
  paflow render --xor-key 12,34 flow.yaml
  paflow package --output dist --connection shared_teams=shared-teams-1234 flow.yaml
  paflow validate flows/
  paflow sample --output dist`,
		Flags:  GlobalFlags,
		Before: setupLogging,
		After: func(*cli.Context) error {
			logger.Close()
			return nil
		},
		Commands: []*cli.Command{
			renderCommand,
			packageCommand,
			validateCommand,
			sampleCommand,
			connectorsCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging(c *cli.Context) error {
	if path := c.String("log-file"); path != "" {
		if err := logger.Init(path); err != nil {
			fmt.Fprintf(c.App.ErrWriter, "Warning: %v\n", err)
		}
	} else if c.Bool("verbose") {
		logger.SetOutput(c.App.ErrWriter)
	}
	logger.SetVerbose(c.Bool("verbose"))
	return nil
}

// globalString returns a flag from the command or, when unset there, from
// the parent context.
func globalString(c *cli.Context, name string) string {
	if c.IsSet(name) {
		return c.String(name)
	}
	for _, parent := range c.Lineage()[1:] {
		if parent != nil && parent.IsSet(name) {
			return parent.String(name)
		}
	}
	return c.String(name)
}

// loadWorkspace loads --config, or paflow.yaml from the working directory.
func loadWorkspace(c *cli.Context) (*config.Config, error) {
	if path := globalString(c, "config"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.LoadFromDir(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
