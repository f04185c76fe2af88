package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/joho/godotenv"

	"github.com/bazaarhub/bazaar-backend/pkg/config"
	"github.com/bazaarhub/bazaar-backend/pkg/db"
	"github.com/bazaarhub/bazaar-backend/pkg/logger"
	"github.com/bazaarhub/bazaar-backend/pkg/migrate"
)

func main() {
	cmd := flag.String("cmd", "up", "up|down|to|status|validate")
	dir := flag.String("dir", "", "migrations directory on disk (default: embedded set)")
	version := flag.Int64("version", 0, "target version for -cmd=to")
	flag.Parse()

	_ = godotenv.Load()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	ctx := logg.WithFields(context.Background(), map[string]any{"cmd": *cmd, "dir": *dir})

	if *cmd == "validate" {
		var err error
		if *dir == "" {
			err = migrate.ValidateFS(migrate.Embedded())
		} else {
			err = migrate.ValidateDir(*dir)
		}
		exitOn(ctx, logg, "validate migrations", err)
		logg.Info(ctx, "migrate.valid")
		return
	}

	cfg, err := config.Load()
	exitOn(ctx, logg, "load config", err)
	logg = logger.FromConfig("migrate", cfg.App)
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	dbClient, err := db.New(ctx, cfg.DB, logg)
	exitOn(ctx, logg, "connect database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	exitOn(ctx, logg, "sql handle", err)
	runner, err := migrate.NewRunner(sqlDB, *dir)
	exitOn(ctx, logg, "load migrations", err)

	switch *cmd {
	case "up":
		applied, err := runner.Up(ctx)
		exitOn(ctx, logg, "migrate up", err)
		logg.Info(logg.WithField(ctx, "applied", applied), "migrate.up_done")
	case "down":
		exitOn(ctx, logg, "migrate down", runner.Down(ctx))
	case "to":
		if *version <= 0 {
			exitOn(ctx, logg, "migrate to", fmt.Errorf("-version is required"))
		}
		exitOn(ctx, logg, "migrate to", runner.To(ctx, *version))
	case "status":
		rows, err := runner.Status(ctx)
		exitOn(ctx, logg, "migrate status", err)
		printStatus(rows)
	default:
		exitOn(ctx, logg, "parse flags", fmt.Errorf("unknown -cmd %q", *cmd))
	}
}

func printStatus(rows []migrate.Status) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tAPPLIED\tFILE")
	for _, row := range rows {
		applied := "pending"
		if row.Applied {
			applied = row.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", row.Version, applied, row.File)
	}
	_ = tw.Flush()
}

func exitOn(ctx context.Context, logg *logger.Logger, step string, err error) {
	if err == nil {
		return
	}
	logg.Error(logg.WithField(ctx, "step", step), "migrate.failed", err)
	os.Exit(1)
}
