package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zeusync/btcore/internal/core/bt/template"
)

var pushCmd = &cobra.Command{
	Use:   "push <file>...",
	Short: "Validate template files and save them to the template store",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, cleanup, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		for _, path := range args {
			tmpl, err := template.LoadFile(path)
			if err != nil {
				return err
			}
			if _, err = tmpl.Build(app.Registry); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if err = app.Store.Save(cmd.Context(), tmpl); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pushed %s\n", tmpl.Name)
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored templates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, cleanup, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		names, err := app.Store.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <name>...",
	Short: "Remove stored templates",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, cleanup, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		for _, name := range args {
			if err = app.Store.Delete(cmd.Context(), name); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pushCmd, listCmd, deleteCmd)
}
