package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"
	"time"

	_ "net/http/pprof"
	_ "time/tzdata"

	_ "github.com/KimMachineGun/automemlimit"
	"github.com/joho/godotenv"
	"github.com/royalcat/rgeocount/internal/telemetry"
	"github.com/urfave/cli/v3"
	_ "go.uber.org/automaxprocs"
)

const appName = "rgeocount"

func main() {
	var client *telemetry.Client

	app := &cli.App{
		Name:        appName,
		Description: "Counts point records per region, resolving points on shared region borders",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  "otel-endpoint",
				Usage: "OTLP http endpoint, falls back to RGEOCOUNT_OTEL_ENDPOINT",
			},
			&cli.StringFlag{
				Name:      "env-file",
				TakesFile: true,
				Usage:     "dotenv file loaded before anything else",
			},
		},
		Before: func(ctx *cli.Context) error {
			if err := loadEnv(ctx.String("env-file")); err != nil {
				return err
			}

			var level slog.Level
			if err := level.UnmarshalText([]byte(ctx.String("log-level"))); err != nil {
				return fmt.Errorf("invalid log level: %w", err)
			}

			endpoint := ctx.String("otel-endpoint")
			if endpoint == "" {
				endpoint = os.Getenv("RGEOCOUNT_OTEL_ENDPOINT")
			}

			var err error
			client, err = telemetry.Setup(ctx.Context, appName, endpoint, level)
			if err != nil {
				return fmt.Errorf("failed to initialize telemetry: %w", err)
			}
			return nil
		},
		After: func(ctx *cli.Context) error {
			if client == nil {
				return nil
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			client.Shutdown(shutdownCtx)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:    "count",
				Aliases: []string{"c"},
				Usage:   "count orders per region",
				Flags: append(inputFlags(),
					&cli.StringFlag{
						Name:        "date",
						Aliases:     []string{"d"},
						Usage:       "YYYY-MM-DD or all",
						DefaultText: "all",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "table",
						Usage:   "table, csv, json or geojson",
					},
					&cli.StringFlag{
						Name:        "out",
						TakesFile:   true,
						Usage:       "output file",
						DefaultText: "stdout",
					},
					&cli.StringFlag{
						Name:      "stats",
						TakesFile: true,
						Usage:     "write a runtime statistics report to this file",
					},
					&cli.BoolFlag{
						Name:  "no-progress",
						Usage: "hide the progress bar",
					},
					&cli.StringFlag{
						Name:        "pprof.listen",
						DefaultText: "",
					},
					&cli.BoolFlag{
						Name:        "pprof.profile",
						DefaultText: "",
					},
				),
				Action: count,
			},
			{
				Name:   "dates",
				Usage:  "list dates that have orders inside a region",
				Flags:  inputFlags(),
				Action: dates,
			},
			{
				Name:  "serve",
				Usage: "classify once and serve counts over http",
				Flags: append(inputFlags(),
					&cli.StringFlag{
						Name:  "listen",
						Value: ":8080",
					},
				),
				Action: serve,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadEnv(file string) error {
	if file != "" {
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", file, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

func startProfiling(ctx *cli.Context) (stop func(), err error) {
	log := slog.Default()

	if pprofListen := ctx.String("pprof.listen"); pprofListen != "" {
		go func() {
			log.Info("Starting pprof server", "address", pprofListen)
			err := http.ListenAndServe(pprofListen, nil)
			if err != nil {
				log.Error("Error starting pprof server", "error", err)
			}
		}()
	}

	if !ctx.Bool("pprof.profile") {
		return func() {}, nil
	}

	f, err := os.OpenFile("profile.cpu.pprof", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("error creating pprof file: %w", err)
	}
	err = pprof.StartCPUProfile(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error starting pprof: %w", err)
	}
	return func() {
		pprof.StopCPUProfile()
		f.Close()
	}, nil
}
