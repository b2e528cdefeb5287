package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/hocsinh/core"
	"github.com/trezcool/hocsinh/core/student"
	exportsvc "github.com/trezcool/hocsinh/services/export"
	"github.com/trezcool/hocsinh/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *sqlx.DB
	dialect    database.Dialect
	studentSvc student.Service
	sweeper    *exportsvc.Sweeper
	logger     core.Logger
	out        io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]            - run a goose migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  hashpassword -email EMAIL         - print an ADMIN_ACCOUNTS entry, the password is prompted next")
	fmt.Fprintln(cli.out, "  sample [-count N] [-bots]         - generate sample students (or bots)")
	fmt.Fprintln(cli.out, "  clear [-all -yes]                 - delete synthetic students (or every student)")
	fmt.Fprintln(cli.out, "  sweep                             - remove stale export files now")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	hashPasswordCmd := flag.NewFlagSet("hashpassword", flag.ExitOnError)
	hashPasswordEmail := hashPasswordCmd.String("email", "", "The admin's email. The password will be prompted next.")

	sampleCmd := flag.NewFlagSet("sample", flag.ExitOnError)
	sampleCount := sampleCmd.Int("count", 0, "How many records to generate (defaults to 50 samples or 10 bots).")
	sampleBots := sampleCmd.Bool("bots", false, "Generate bots instead of sample students.")

	clearCmd := flag.NewFlagSet("clear", flag.ExitOnError)
	clearAll := clearCmd.Bool("all", false, "Delete every student, not only synthetic ones, and restart ids.")
	clearYes := clearCmd.Bool("yes", false, "Confirm -all.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "hashpassword":
		if err := hashPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *hashPasswordEmail == "" {
			hashPasswordCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			hashPasswordCmd.Usage()
			return errHelp
		}
		return cli.hashPassword(*hashPasswordEmail, string(pwd))

	case "sample":
		if err := sampleCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.generate(*sampleCount, *sampleBots)

	case "clear":
		if err := clearCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *clearAll && !*clearYes {
			fmt.Fprintln(cli.out, "clear -all deletes every student, add -yes to confirm")
			return errHelp
		}
		return cli.clear(*clearAll)

	case "sweep":
		return cli.sweep()

	default:
		cli.printUsage()
		return errHelp
	}
}
