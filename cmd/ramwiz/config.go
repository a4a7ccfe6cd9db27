package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/ziadomalik/ramwiz/internal/display"
	"github.com/ziadomalik/ramwiz/internal/logger"
)

// Config is the CLI configuration file (~/.config/ramwiz/config.yaml).
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "ramwiz", "config.yaml")
}

// loadConfig reads the YAML config file. A missing or unset file simply
// yields zero values; flags keep their defaults then.
func loadConfig() (Config, error) {
	var cfg Config
	path := configPath()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// configCmd manages the display config store: per-command colors and clock
// periods plus the memory layout, shared between users as YAML.
func configCmd() *cli.Command {
	var store string

	storeFlag := &cli.StringFlag{
		Name:        "store",
		Usage:       "display config store (default: the user config store)",
		Destination: &store,
	}
	resolveStore := func() (string, error) {
		if store != "" {
			return store, nil
		}
		return display.StorePath()
	}

	return &cli.Command{
		Name:  "config",
		Usage: "Manage the display configuration store",
		Commands: []*cli.Command{
			{
				Name:      "export",
				Usage:     "Write the display config store as a YAML file",
				ArgsUsage: "<out.yaml>",
				Flags:     []cli.Flag{storeFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() < 1 {
						return cli.Exit("usage: ramwiz config export [flags] <out.yaml>", 2)
					}
					storePath, err := resolveStore()
					if err != nil {
						return err
					}
					cfg, err := display.Load(storePath)
					if err != nil {
						return err
					}
					out := cmd.Args().First()
					if err := display.ExportYAML(out, cfg); err != nil {
						return err
					}
					logger.FromContext(ctx).Info("config exported",
						"store", storePath, "output", out)
					return nil
				},
			},
			{
				Name:      "import",
				Usage:     "Merge a YAML config file into the display config store",
				ArgsUsage: "<in.yaml>",
				Flags:     []cli.Flag{storeFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() < 1 {
						return cli.Exit("usage: ramwiz config import [flags] <in.yaml>", 2)
					}
					storePath, err := resolveStore()
					if err != nil {
						return err
					}
					in, err := display.ImportYAML(cmd.Args().First())
					if err != nil {
						return err
					}
					cfg, err := display.Load(storePath)
					if err != nil {
						return err
					}
					// Sections absent from the file leave the store untouched.
					if in.CommandConfig != nil {
						cfg.CommandConfig = in.CommandConfig
					}
					if in.MemoryLayout != nil {
						cfg.MemoryLayout = in.MemoryLayout
					}
					if err := display.Save(storePath, cfg); err != nil {
						return err
					}
					logger.FromContext(ctx).Info("config imported",
						"store", storePath, "input", cmd.Args().First())
					return nil
				},
			},
		},
	}
}
