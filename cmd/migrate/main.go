package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/semla/internal/app"
	"github.com/shrimpsizemoose/semla/internal/migrate"
)

func main() {
	var (
		configPath = flag.String("config", "config.toml", "Path to config file")
		legacyFile = flag.String("file", "", "Legacy data file, overrides legacy.file from config")
	)
	flag.Parse()

	config, err := app.LoadConfig(*configPath)
	if err != nil {
		logger.Error.Fatalf("Failed to load config: %v", err)
	}

	path := config.Legacy.File
	if *legacyFile != "" {
		path = *legacyFile
	}
	if path == "" {
		path = "data.json"
	}

	st, err := app.NewStore(config.DBConfig())
	if err != nil {
		logger.Error.Fatalf("Failed to init store: %v", err)
	}
	defer st.Close()

	logger.Info.Printf("Starting migration from %s", path)

	report, err := migrate.NewMigrator(st, config.Legacy.BackupSuffix).Run(context.Background(), path)
	if errors.Is(err, migrate.ErrNoLegacyData) {
		logger.Info.Printf("No %s file found. Migration skipped.", path)
		return
	}
	if report != nil {
		fmt.Printf("Migration completed!\n%s\n", report)
	}
	if err != nil {
		logger.Error.Printf("Migration failed: %v", err)
		st.Close()
		os.Exit(1)
	}

	logger.Info.Printf("Original data backed up to %s", report.BackupPath)
	logger.Info.Println("You can now delete the legacy file after verifying the migration.")
}
