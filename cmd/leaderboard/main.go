package main

import (
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"haxquest/internal/bootstrap"
	"haxquest/internal/scoring"
	"haxquest/internal/services"

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
		Name: "leaderboard",
		Commands: []*cli.Command{
			commandShowLeaderboard(container),
			commandClearCache(container),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func commandShowLeaderboard(container *do.Injector) *cli.Command {
	return &cli.Command{
		Name:        "show",
		Description: "Print the uncached standings of a season",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "season",
				Value: string(scoring.SeasonWeekly),
			},
			&cli.IntFlag{
				Name:  "limit",
				Value: services.LEADERBOARD_DEFAULT_LIMIT,
			},
		},
		Action: func(c *cli.Context) error {
			season, err := scoring.ParseSeason(c.String("season"))
			if err != nil {
				return err
			}
			serviceLeaderboard, err := do.Invoke[*services.ServiceLeaderboard](container)
			if err != nil {
				return err
			}

			entries, err := serviceLeaderboard.Standings(c.Context, season, c.Int("limit"))
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RANK\tUSER\tCOMPOSITE\tHAX\tSTREAK\tUPDATED")
			for _, e := range entries {
				fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%s\n", e.Rank, e.UserID, e.Score.CompositeScore, e.Score.TotalHax, e.StreakDays, e.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
}

func commandClearCache(container *do.Injector) *cli.Command {
	return &cli.Command{
		Name:        "clear-cache",
		Description: "Drop the cached leaderboards of every season",
		Action: func(c *cli.Context) error {
			serviceLeaderboard, err := do.Invoke[*services.ServiceLeaderboard](container)
			if err != nil {
				return err
			}
			serviceLeaderboard.ClearLeaderboardCache(c.Context)
			fmt.Println("done")
			return nil
		},
	}
}
