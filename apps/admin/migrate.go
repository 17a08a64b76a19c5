package main

import (
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/pkg/errors"

	"github.com/studentbuddy/backend/storage/database"
)

var migrateRunFunc = runMigration // mockable

func (cli *commandLine) migrate(command string) error {
	return migrateRunFunc(command, cli.db)
}

func runMigration(command string, db *sql.DB) error {
	m, err := database.NewMigrator(db)
	if err != nil {
		return err
	}

	switch command {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-1)
	case "reset":
		err = m.Down()
	case "version":
		v, dirty, vErr := m.Version()
		if vErr != nil && vErr != migrate.ErrNilVersion {
			return vErr
		}
		fmt.Printf("version: %d (dirty: %t)\n", v, dirty)
		return nil
	default:
		return fmt.Errorf("%q: no such command", command)
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
