package main

import (
	"os"
	"strings"

	"github.com/nimasrn/receipt-gateway/internal/app"
	"github.com/nimasrn/receipt-gateway/internal/config"
	"github.com/nimasrn/receipt-gateway/pkg/logger"
	"github.com/nimasrn/receipt-gateway/pkg/pg"
)

// main.go --env=.env --dir=./migrations [--status]
func main() {
	envPath := app.EnvPath(os.Args)
	if envPath == "" {
		if _, err := os.Stat(".env"); err == nil {
			envPath = ".env"
		}
	}
	if err := config.Load(envPath); err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	pgConf := app.WriteConfig(config.Get())
	dir := getMigrationPath(os.Args)
	if dir == "" {
		os.Exit(1)
	}

	if hasFlag(os.Args, "--status") {
		if err := pg.MigrationStatus(pgConf, dir); err != nil {
			logger.Error("migration: error reading status", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := pg.Migrate(pgConf, dir); err != nil {
		logger.Error("migration: error running migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("migration: done", "dir", dir)
}

func hasFlag(args []string, flag string) bool {
	for _, v := range args {
		if v == flag {
			return true
		}
	}
	return false
}

func getMigrationPath(args []string) string {
	dir := "./migrations"
	for _, v := range args {
		if strings.HasPrefix(v, "--dir=") {
			dir = strings.TrimPrefix(v, "--dir=")
		}
	}
	if _, err := os.Stat(dir); err != nil {
		logger.Error("failed to open the migrations dir, got error" + err.Error())
		return ""
	}
	return dir
}
