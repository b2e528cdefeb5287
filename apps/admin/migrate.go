package main

import (
	"context"

	"github.com/trezcool/goose"

	appfs "github.com/trezcool/hocsinh/fs"
	"github.com/trezcool/hocsinh/storage/database"
)

var gooseRunFunc = goose.RunFS // mockable

// migrate runs a goose command on the embedded migrations of the database engine.
// A successful `up` also brings tables created by older releases up to date.
func (cli *commandLine) migrate(args []string) error {
	if err := goose.SetDialect(cli.dialect.GooseDialect()); err != nil {
		return err
	}

	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	if err := gooseRunFunc(args[0], cli.db.DB, appfs.FS, database.MigrationsDir(cli.dialect), arguments...); err != nil {
		return err
	}

	if args[0] == "up" {
		return database.EnsureSchema(context.Background(), cli.db, cli.dialect, cli.logger)
	}
	return nil
}
