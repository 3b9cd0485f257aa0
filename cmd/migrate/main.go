package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"haxquest/internal/bootstrap"
	"haxquest/internal/datastore"
	"haxquest/internal/models"
	"haxquest/internal/services"

	"github.com/hiendaovinh/toolkit/pkg/env"
	"github.com/joho/godotenv"
	"github.com/samber/do"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
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
	app := &cli.App{
		Name: "migrate",
		Commands: []*cli.Command{
			commandMigration(),
			commandImportProgress(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func commandMigration() *cli.Command {
	return &cli.Command{
		Name:        "migrate",
		Description: "Create the progress, audit, replay and ledger tables",
		Action: func(c *cli.Context) error {
			vs, err := env.EnvsRequired("DB_DSN")
			if err != nil {
				return err
			}

			db := getDb(vs["DB_DSN"], os.Getenv("DB_PASSWORD"))
			defer db.Close()

			if err := datastore.CreateTables(c.Context, db); err != nil {
				return err
			}

			fmt.Println("Migration success")
			return nil
		},
	}
}

// commandImportProgress merges snapshots from a CSV export into the
// configured storage. Rows go through the normal merge, so re-running an
// import never lowers progress.
func commandImportProgress() *cli.Command {
	return &cli.Command{
		Name:        "import-progress",
		Description: "Merge user progress from a CSV file: user_id,completed_task_ids(;),streak_days,bonus_xp,bonus_hax,last_active_date",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			f, err := os.Open(c.String("file"))
			if err != nil {
				return err
			}
			defer f.Close()

			container := bootstrap.NewContainer(map[string]string{})
			serviceProgress, err := do.Invoke[*services.ServiceProgress](container)
			if err != nil {
				return err
			}

			imported, failed, err := importProgress(c.Context, serviceProgress, f)
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d snapshots, %d rejected\n", imported, failed)
			return nil
		},
	}
}

func importProgress(ctx context.Context, serviceProgress *services.ServiceProgress, r io.Reader) (int, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 6

	header := true
	imported, failed := 0, 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, failed, err
		}
		if header {
			header = false
			if record[0] == "user_id" {
				continue
			}
		}

		snapshot, err := parseProgressRecord(record)
		if err == nil {
			_, err = serviceProgress.Upsert(ctx, record[0], snapshot)
		}
		if err != nil {
			log.Println(record[0], err)
			failed++
			continue
		}
		imported++
	}
	return imported, failed, nil
}

func parseProgressRecord(record []string) (*models.ProgressSnapshot, error) {
	snapshot := &models.ProgressSnapshot{
		CompletedTaskIDs: []string{},
		LastActiveDate:   strings.TrimSpace(record[5]),
	}
	for _, id := range strings.Split(record[1], ";") {
		if id = strings.TrimSpace(id); id != "" {
			snapshot.CompletedTaskIDs = append(snapshot.CompletedTaskIDs, id)
		}
	}

	counters := []*int{&snapshot.StreakDays, &snapshot.BonusXP, &snapshot.BonusHax}
	for i, target := range counters {
		raw := strings.TrimSpace(record[2+i])
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", 3+i, err)
		}
		*target = v
	}
	return snapshot, nil
}

func getDb(dsn, password string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithPassword(password),
	))

	return bun.NewDB(sqldb, pgdialect.New())
}
