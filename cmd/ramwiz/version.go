package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/ziadomalik/ramwiz/internal/version"
)

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the ramwiz version",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Println("ramwiz", version.String())
			return nil
		},
	}
}
