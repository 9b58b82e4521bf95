// Command migrate inspects and changes the database schema.
//
//	migrate up               apply pending SQL migrations
//	migrate apply            apply the schema the way the server does at boot
//	migrate auto             run GORM AutoMigrate only
//	migrate status           show the schema plan, pending migrations and missing tables
//	migrate verify           fail if applied migrations were edited or are unknown
//	migrate down <version>   revert one migration
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"nexify/internal/config"
	"nexify/internal/database"
	"nexify/internal/observability"

	"gorm.io/gorm"
)

type command func(ctx context.Context, db *gorm.DB, cfg *config.Config, args []string) error

var commands = map[string]command{
	"up": func(ctx context.Context, db *gorm.DB, _ *config.Config, _ []string) error {
		return database.RunMigrations(ctx, db)
	},
	"apply": func(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
		return database.ApplySchema(ctx, db, cfg)
	},
	"auto": func(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
		cfg.DBSchemaMode = database.SchemaModeAuto
		return database.ApplySchema(ctx, db, cfg)
	},
	"status": status,
	"verify": func(ctx context.Context, db *gorm.DB, _ *config.Config, _ []string) error {
		return database.VerifyMigrations(ctx, db)
	},
	"down": func(ctx context.Context, db *gorm.DB, _ *config.Config, args []string) error {
		if len(args) != 1 {
			return errors.New("usage: migrate down <version>")
		}
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[0])
		}
		return database.RollbackMigration(ctx, db, version)
	},
}

func status(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	st, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return err
	}
	fmt.Printf("env:      %s\n", st.Environment)
	fmt.Printf("mode:     %s (sql=%t auto=%t)\n", st.Plan.Mode, st.Plan.SQL, st.Plan.AutoMigrate)
	fmt.Printf("applied:  %d\n", len(st.Applied))
	fmt.Printf("pending:  %d\n", len(st.Pending))
	for _, m := range st.Pending {
		fmt.Printf("  - %s\n", m)
	}
	if len(st.MissingTables) > 0 {
		fmt.Printf("missing tables: %s\n", strings.Join(st.MissingTables, ", "))
	}
	return nil
}

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: migrate <up|apply|auto|status|verify|down> [version]")
	}
	flag.Parse()

	name := strings.ToLower(flag.Arg(0))
	cmd, ok := commands[name]
	if !ok {
		flag.Usage()
		os.Exit(2)
	}

	log := observability.GlobalLogger.With(slog.String("command", name))
	if err := run(cmd, flag.Args()[1:]); err != nil {
		log.Error("migrate failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("migrate finished")
}

func run(cmd command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer func() { _ = sqlDB.Close() }()
	}
	return cmd(context.Background(), db, cfg, args)
}
