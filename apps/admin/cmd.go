package main

import (
	"bytes"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/cohort"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp             = errors.New("help provided")
	errPasswordMismatch = errors.New("passwords do not match")
)

type commandLine struct {
	conf    *core.Config
	db      *sql.DB
	usrRepo user.Repository
	chtRepo cohort.Repository
	chtSvc  cohort.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  createdb - create the database if it does not exist")
	fmt.Println("  migrate COMMAND [args] - run a goose migration command (up, down, status, ...)")
	fmt.Println("  adduser -name NAME -email EMAIL [-staff] - create or update a user; the password is prompted")
	fmt.Println("  resetpassword -email EMAIL - reset a user's password; the password is prompted")
	fmt.Println("  importdesign -file FILE [-name NAME] [-cohort ID] [-validate] - create or update a cohort from a design document")
	fmt.Println("  exportdesign -cohort ID [-output FILE] [-indent N] - export a cohort's design document; without an ID, list cohorts")
	fmt.Println("  seed [-start YYYY-MM-DD] - create a demo cohort from the built-in design")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "createdb":
		return cli.createDB()

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
		addUserName := addUserCmd.String("name", "", "The user's full name.")
		addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
		addUserStaff := addUserCmd.Bool("staff", false, "Grant staff access.")
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword(true /* confirm */)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserEmail, string(pwd), *addUserStaff)

	case "resetpassword":
		resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
		resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword(false)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordEmail, string(pwd))

	case "importdesign":
		importCmd := flag.NewFlagSet("importdesign", flag.ExitOnError)
		importFile := importCmd.String("file", "", "Path to the design document (JSON).")
		importName := importCmd.String("name", "", "Override the document's cohort name.")
		importCohort := importCmd.Int("cohort", 0, "Update this cohort instead of creating a new one.")
		importValidate := importCmd.Bool("validate", false, "Validate the document without importing it.")
		if err := importCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importFile == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importDesign(*importFile, *importName, *importCohort, *importValidate)

	case "exportdesign":
		exportCmd := flag.NewFlagSet("exportdesign", flag.ExitOnError)
		exportCohort := exportCmd.Int("cohort", 0, "The cohort to export; omit to list cohorts.")
		exportOutput := exportCmd.String("output", "", "Write the document to this file instead of stdout.")
		exportIndent := exportCmd.Int("indent", 2, "JSON indentation width.")
		if err := exportCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *exportCohort == 0 {
			return cli.listCohorts()
		}
		return cli.exportDesign(*exportCohort, *exportOutput, *exportIndent)

	case "seed":
		seedCmd := flag.NewFlagSet("seed", flag.ExitOnError)
		seedStart := seedCmd.String("start", "", "The cohort start date (YYYY-MM-DD); defaults to next Monday.")
		if err := seedCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.seed(*seedStart)

	default:
		cli.printUsage()
		return errHelp
	}
}

func promptPassword(confirm bool) ([]byte, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return nil, err
	}
	if len(pwd) == 0 || !confirm {
		return pwd, nil
	}
	fmt.Print("Confirm password:")
	confirmed, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(pwd, confirmed) {
		return nil, errPasswordMismatch
	}
	return pwd, nil
}
