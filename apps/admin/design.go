package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/cohort"
)

// importDesign loads a design document from disk and imports it. With
// validateOnly it runs a dry run and prints the document's summary; field
// errors are listed one per line either way.
func (cli *commandLine) importDesign(file, nameOverride string, cohortID int, validateOnly bool) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	var d cohort.Design
	if err = json.Unmarshal(data, &d); err != nil {
		return err
	}

	c, err := cli.chtSvc.ImportDesign(context.Background(), d, cohort.ImportOptions{
		NameOverride: nameOverride,
		CohortID:     cohortID,
		DryRun:       validateOnly,
	})
	if err != nil {
		var vErr *core.ValidationError
		if errors.As(err, &vErr) {
			for _, fld := range vErr.Fields {
				fmt.Printf("%s: %s\n", fld.Field, fld.Error)
			}
		}
		return err
	}

	if validateOnly {
		fmt.Printf("design is valid: %s\n", d.Summary())
		return nil
	}
	fmt.Printf("imported cohort #%d %q (%s to %s)\n", c.ID, c.Name, c.StartDate, c.EndDate)
	return nil
}

func (cli *commandLine) exportDesign(cohortID int, output string, indent int) error {
	d, err := cli.chtSvc.ExportDesign(context.Background(), cohortID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(d, "", strings.Repeat(" ", indent))
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if output == "" {
		fmt.Print(string(data))
		return nil
	}
	return os.WriteFile(output, data, 0644)
}

func (cli *commandLine) listCohorts() error {
	cohorts, err := cli.chtRepo.QueryAllCohorts(context.Background())
	if err != nil {
		return err
	}
	if len(cohorts) == 0 {
		fmt.Println("no cohorts")
		return nil
	}
	for _, c := range cohorts {
		fmt.Printf("#%d %q (%s to %s)\n", c.ID, c.Name, c.StartDate, c.EndDate)
	}
	return nil
}
