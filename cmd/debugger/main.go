package main

import (
	"fmt"
	"log"
	"os"

	"haxquest/internal/bootstrap"
	"haxquest/internal/services"

	"github.com/joho/godotenv"
	"github.com/samber/do"
	"github.com/segmentio/encoding/json"
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
		Name: "debugger",
		Commands: []*cli.Command{
			commandInspectUser(container),
			commandReplayStats(container),
			commandEvictUser(container),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

type userReport struct {
	Progress any `json:"progress"`
	Score    any `json:"score"`
	Balance  any `json:"balance"`
	Ledger   any `json:"ledger"`
}

func commandInspectUser(container *do.Injector) *cli.Command {
	return &cli.Command{
		Name:  "inspect-user",
		Usage: "print a user's progress, score, balance and latest ledger entries",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "userid",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			serviceProgress, err := do.Invoke[*services.ServiceProgress](container)
			if err != nil {
				return err
			}
			serviceLeaderboard, err := do.Invoke[*services.ServiceLeaderboard](container)
			if err != nil {
				return err
			}
			serviceEconomy, err := do.Invoke[*services.ServiceEconomy](container)
			if err != nil {
				return err
			}

			userID := c.String("userid")
			progress, err := serviceProgress.Get(c.Context, userID)
			if err != nil {
				return err
			}
			balance, err := serviceEconomy.Balance(c.Context, userID)
			if err != nil {
				return err
			}
			ledger, err := serviceEconomy.Entries(c.Context, userID, 0)
			if err != nil {
				return err
			}

			return printJSON(userReport{progress, serviceLeaderboard.Score(progress), balance, ledger})
		},
	}
}

func commandReplayStats(container *do.Injector) *cli.Command {
	return &cli.Command{
		Name:  "replay-stats",
		Usage: "print the replay cache backlog and its slo level",
		Action: func(c *cli.Context) error {
			serviceSLO, err := do.Invoke[*services.ServiceSLO](container)
			if err != nil {
				return err
			}

			stats, slo, err := serviceSLO.Check(c.Context)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"replay": stats, "slo": slo})
		},
	}
}

func commandEvictUser(container *do.Injector) *cli.Command {
	return &cli.Command{
		Name:  "evict-user",
		Usage: "drop a user's progress from the in-process mirror",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "userid",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			serviceProgress, err := do.Invoke[*services.ServiceProgress](container)
			if err != nil {
				return err
			}

			n, err := serviceProgress.EvictFromMemory(c.Context, c.String("userid"))
			if err != nil {
				return err
			}
			fmt.Printf("evicted %d row(s)\n", n)
			return nil
		},
	}
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
