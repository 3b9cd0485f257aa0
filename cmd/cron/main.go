package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"haxquest/internal/bootstrap"
	"haxquest/internal/jobs"

	"github.com/joho/godotenv"
	"github.com/samber/do"
	"github.com/urfave/cli/v2"
)

func init() {
	// for development
	//nolint:errcheck
	godotenv.Load("../../.env")

	// for production
	//nolint:errcheck
	godotenv.Load("./.env")
}

func main() {
	container := bootstrap.NewContainer(map[string]string{})

	app := &cli.App{
		Name: "cronjob",
		Commands: []*cli.Command{
			commandCronjob(container),
			commandRunOnce(container),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func commandCronjob(container *do.Injector) *cli.Command {
	return &cli.Command{
		Name:  "cron",
		Usage: "run the maintenance schedule until interrupted",
		Action: func(c *cli.Context) error {
			list, err := jobs.Default(container)
			if err != nil {
				return err
			}
			runner, err := jobs.NewRunner(list...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			runner.Start()
			slog.Info("cron started", "jobs", len(list))
			<-ctx.Done()
			<-runner.Stop().Done()
			return nil
		},
	}
}

func commandRunOnce(container *do.Injector) *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "run one job immediately",
		ArgsUsage: "<job name>",
		Action: func(c *cli.Context) error {
			list, err := jobs.Default(container)
			if err != nil {
				return err
			}
			name := c.Args().First()
			for _, job := range list {
				if job.Name() == name {
					return job.Run(c.Context)
				}
			}
			names := make([]string, 0, len(list))
			for _, job := range list {
				names = append(names, job.Name())
			}
			return cli.Exit("unknown job "+name+", one of: "+strings.Join(names, ", "), 1)
		},
	}
}
