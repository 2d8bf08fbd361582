package app

import (
	"fmt"
	"strings"

	"github.com/shrimpsizemoose/semla/internal/store"
	"github.com/shrimpsizemoose/semla/internal/store/postgres"
	"github.com/shrimpsizemoose/semla/internal/store/sqlite"
)

func NewStore(cfg store.DBConfig) (store.DataStore, error) {
	if cfg.Type == "" {
		cfg.Type = store.DBTypeSQLite
		if strings.HasPrefix(cfg.DSN, "postgres") {
			cfg.Type = store.DBTypePostgres
		}
	}

	switch cfg.Type {
	case store.DBTypePostgres:
		return postgres.NewPostgresStore(cfg)
	case store.DBTypeSQLite:
		return sqlite.NewSQLiteStore(cfg)
	default:
		return nil, fmt.Errorf("unable to determine database type from DSN: %s", cfg.DSN)
	}
}
