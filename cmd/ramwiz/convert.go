package main

import (
	"context"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/ziadomalik/ramwiz/internal/csvtrace"
	"github.com/ziadomalik/ramwiz/internal/logger"
)

func convertCmd() *cli.Command {
	var output string

	return &cli.Command{
		Name:      "convert",
		Usage:     "Convert a legacy delimited-text trace to the RAM2 binary format",
		ArgsUsage: "<path.csv>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "output file (default: input with .ram2 extension)",
				Destination: &output,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() < 1 {
				return cli.Exit("usage: ramwiz convert [-o out.ram2] <path.csv>", 2)
			}
			src := cmd.Args().First()
			dst := output
			if dst == "" {
				dst = strings.TrimSuffix(src, ".csv") + ".ram2"
			}

			log := logger.FromContext(ctx)
			log.Info("converting trace", "src", src, "dst", dst)
			commands, events, err := csvtrace.Convert(src, dst)
			if err != nil {
				return err
			}
			log.Info("conversion done", "events", events, "commands", commands)
			return nil
		},
	}
}
