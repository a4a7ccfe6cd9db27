package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/ziadomalik/ramwiz/internal/display"
	"github.com/ziadomalik/ramwiz/internal/logger"
	"github.com/ziadomalik/ramwiz/internal/trace"
)

// extractCmd dumps the structure-of-arrays transfer buffer for a range of
// entries, mainly for debugging what the viewer would receive.
func extractCmd() *cli.Command {
	var (
		start      uint64
		count      int64
		output     string
		configFile string
	)

	return &cli.Command{
		Name:      "extract",
		Usage:     "Write the SoA transfer buffer for an entry range to a file",
		ArgsUsage: "<path.ram2>",
		Flags: []cli.Flag{
			&cli.Uint64Flag{
				Name:        "start",
				Usage:       "first entry index",
				Destination: &start,
			},
			&cli.Int64Flag{
				Name:        "count",
				Usage:       "number of entries",
				Value:       1000,
				Destination: &count,
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "output file",
				Value:       "extract.bin",
				Destination: &output,
			},
			&cli.StringFlag{
				Name:        "display-config",
				Usage:       "display config JSON (default: the user config store)",
				Destination: &configFile,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() < 1 {
				return cli.Exit("usage: ramwiz extract [flags] <path.ram2>", 2)
			}

			path := configFile
			if path == "" {
				p, err := display.StorePath()
				if err == nil {
					path = p
				}
			}
			var cmdCfg *display.CommandConfig
			if path != "" {
				cfg, err := display.Load(path)
				if err != nil {
					return err
				}
				cmdCfg = cfg.CommandConfig
			}

			st, err := trace.Open(cmd.Args().First())
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			slice, err := st.LoadEntrySlice(start, int(count))
			if err != nil {
				return err
			}
			buf := trace.Extract(slice, cmdCfg)
			if err := os.WriteFile(output, buf, 0o644); err != nil {
				return err
			}

			logger.FromContext(ctx).Info("extracted range",
				"start", start, "count", count, "bytes", len(buf), "output", output)
			return nil
		},
	}
}
