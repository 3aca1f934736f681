package main

import (
	"fmt"
	"time"

	"github.com/arnavshah/shiftflow-api/pkg/auth"
	"github.com/arnavshah/shiftflow-api/pkg/calendar"
	"github.com/arnavshah/shiftflow-api/pkg/grid"
	"github.com/arnavshah/shiftflow-api/pkg/models"
	"github.com/arnavshah/shiftflow-api/pkg/tasks"
	"github.com/spf13/cobra"
)

// monthArg parses an optional YYYY-MM argument, defaulting to this month.
func monthArg(args []string) (time.Time, error) {
	if len(args) == 0 {
		return calendar.FirstOfMonth(time.Now()), nil
	}
	return calendar.ParseMonth(args[0])
}

func newCalendarCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "calendar [YYYY-MM]",
		Short: "List the dates of a month",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			anchor, err := monthArg(args)
			if err != nil {
				return err
			}
			for _, d := range calendar.Generate(anchor) {
				fmt.Fprintln(cmd.OutOrStdout(), d)
			}
			return nil
		},
	}
}

func newCredentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Credential maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show which accounts have a password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()
			creds := auth.NewCredentialStore(e.store, e.cfg.Auth.BcryptCost, e.logger)
			creds.Start()
			defer creds.Close()
			if err := creds.Err(); err != nil {
				return err
			}

			ids := []string{models.ManagerID}
			for _, s := range e.cfg.Roster {
				ids = append(ids, s.ID)
			}
			out := cmd.OutOrStdout()
			for _, id := range ids {
				status := "not set"
				if creds.Has(id) {
					status = "set"
				}
				fmt.Fprintf(out, "%-12s %s\n", id, status)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "reset <account-id>",
		Short: "Delete an account's password so it is set up again at next login",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()
			id := models.NormalizeAccountID(args[0])
			if _, _, ok := e.cfg.Roster.Resolve(id); !ok {
				return fmt.Errorf("unknown account %q", id)
			}
			creds := auth.NewCredentialStore(e.store, e.cfg.Auth.BcryptCost, e.logger)
			creds.Start()
			defer creds.Close()
			if err := creds.Err(); err != nil {
				return err
			}
			if !creds.Has(id) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s has no password\n", id)
				return nil
			}
			if err := creds.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password of %s reset\n", id)
			return nil
		},
	})
	return cmd
}

// withCatalog runs fn against a started catalog.
func withCatalog(fn func(e *env, c *tasks.Catalog) error) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()
	c := tasks.NewCatalog(e.store, e.cfg.Tasks, e.logger)
	c.Start()
	defer c.Close()
	if err := c.Err(); err != nil {
		return err
	}
	return fn(e, c)
}

func printTasks(cmd *cobra.Command, list tasks.List) {
	for i, name := range list {
		fmt.Fprintf(cmd.OutOrStdout(), "%d. %s (%s)\n", i+1, name, list.Color(name))
	}
}

func newTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Task catalog maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tasks in order with their colors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(func(_ *env, c *tasks.Catalog) error {
				printTasks(cmd, c.List())
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: "Append a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(func(_ *env, c *tasks.Catalog) error {
				if err := c.Add(cmd.Context(), args[0]); err != nil {
					return err
				}
				printTasks(cmd, c.List())
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a task; existing assignments keep its name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(func(_ *env, c *tasks.Catalog) error {
				if err := c.Remove(cmd.Context(), args[0]); err != nil {
					return err
				}
				printTasks(cmd, c.List())
				return nil
			})
		},
	})
	return cmd
}

func newSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary [YYYY-MM]",
		Short: "Print assigned days per staff member and the fairness score",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			anchor, err := monthArg(args)
			if err != nil {
				return err
			}
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			board := grid.NewBoard(e.store, e.cfg.Roster, e.logger)
			board.Start()
			defer board.Close()
			if err := board.Err(); err != nil {
				return err
			}

			s := board.Summary(calendar.Generate(anchor))
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n", calendar.FormatMonth(anchor))
			for _, row := range s.Staff {
				fmt.Fprintf(out, "%-12s %-16s %3d days  %3d declared  %3d ng\n",
					row.StaffID, row.Name, row.AssignedDays, row.Declared, row.Unavailable)
			}
			fmt.Fprintf(out, "total %d, fairness %.1f%%\n", s.TotalAssigned, s.FairnessScore)
			return nil
		},
	}
}
