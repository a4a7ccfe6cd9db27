package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/ziadomalik/ramwiz/internal/api"
	"github.com/ziadomalik/ramwiz/internal/display"
	"github.com/ziadomalik/ramwiz/internal/logger"
	"github.com/ziadomalik/ramwiz/internal/session"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		tracePath   string
		readTimeout time.Duration
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the trace engine REST API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8420",
				Destination: &addr,
			},
			&cli.StringFlag{
				Name:        "trace",
				Usage:       "trace file to load at startup",
				Destination: &tracePath,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read header timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)

			cliCfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cliCfg.ServerAddress != "" && !cmd.IsSet("addr") {
				addr = cliCfg.ServerAddress
			}

			storePath, err := display.StorePath()
			if err != nil {
				return err
			}
			dispCfg, err := display.Load(storePath)
			if err != nil {
				return err
			}

			sessions := session.NewManager()
			if tracePath != "" {
				loaded, _, err := sessions.Load(tracePath)
				if err != nil {
					return err
				}
				log.Info("trace loaded",
					"path", tracePath,
					"events", loaded.Meta.TotalEvents,
					"clk_min", loaded.Meta.MinClk,
					"clk_max", loaded.Meta.MaxClk)
			}

			server := api.NewServer(sessions, dispCfg, storePath)
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)

			log.Info("starting server", "address", addr)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
