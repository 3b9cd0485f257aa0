package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"haxquest/internal/api/handler"
	"haxquest/internal/bootstrap"
	"haxquest/internal/jobs"
	"haxquest/internal/services"

	"github.com/hiendaovinh/toolkit/pkg/env"
	"github.com/joho/godotenv"
	"github.com/samber/do"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
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
	vs, err := env.EnvsRequired(
		services.CONFIG_ADMIN_API_KEY,
	)
	if err != nil {
		log.Fatal(err)
	}

	container := bootstrap.NewContainer(vs)

	app := &cli.App{
		Name: "api",
		Commands: []*cli.Command{
			commandServer(container),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func commandServer(container *do.Injector) *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "start the web server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Value: "0.0.0.0:8080",
				Usage: "serve address",
			},
			&cli.BoolFlag{
				Name:  "with-cron",
				Usage: "run the maintenance jobs in this process",
			},
		},
		Action: func(c *cli.Context) error {
			vs := do.MustInvokeNamed[map[string]string](container, "envs")
			router, err := handler.New(&handler.Config{
				Container: container,
				Mode:      vs["API_MODE"],
				Origins:   strings.Split(vs["API_ORIGINS"], ","),
			})
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:    c.String("addr"),
				Handler: router,
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errWg, errCtx := errgroup.WithContext(ctx)

			errWg.Go(func() error {
				slog.Info("listen and serve", "addr", c.String("addr"), "mode", vs["API_MODE"])
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					return err
				}
				return nil
			})

			if c.Bool("with-cron") {
				list, err := jobs.Default(container)
				if err != nil {
					return err
				}
				runner, err := jobs.NewRunner(list...)
				if err != nil {
					return err
				}
				runner.Start()
				errWg.Go(func() error {
					<-errCtx.Done()
					<-runner.Stop().Done()
					return nil
				})
			}

			errWg.Go(func() error {
				<-errCtx.Done()
				return srv.Shutdown(context.WithoutCancel(errCtx))
			})

			return errWg.Wait()
		},
	}
}
